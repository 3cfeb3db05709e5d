// Package templatefile reads and writes task template definitions as YAML.
package templatefile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/xvierd/cadence/internal/domain"
	"github.com/xvierd/cadence/internal/services"
	"gopkg.in/yaml.v3"
)

const (
	dateLayout     = time.DateOnly
	dateTimeLayout = "2006-01-02 15:04"
)

// File is the top-level document.
type File struct {
	Templates []Definition `yaml:"templates"`
}

// Definition is one template as written by hand.
type Definition struct {
	Title       string      `yaml:"title"`
	Description string      `yaml:"description,omitempty"`
	Kind        string      `yaml:"kind,omitempty"`
	Start       string      `yaml:"start"`
	End         string      `yaml:"end,omitempty"`
	Timezone    string      `yaml:"timezone,omitempty"`
	Recurrence  *Recurrence `yaml:"recurrence,omitempty"`
	Reminders   *Reminders  `yaml:"reminders,omitempty"`
	Policy      *Policy     `yaml:"policy,omitempty"`
	Metadata    *Metadata   `yaml:"metadata,omitempty"`
	KeyResults  []string    `yaml:"key_results,omitempty"`
	Activate    bool        `yaml:"activate,omitempty"`
}

// Recurrence describes the repeat rule and its end condition.
type Recurrence struct {
	Kind       string    `yaml:"kind"`
	Interval   int       `yaml:"interval,omitempty"`
	Weekdays   []string  `yaml:"weekdays,omitempty"`
	Days       []int     `yaml:"days,omitempty"`
	Nth        []NthSpec `yaml:"nth,omitempty"`
	Expression string    `yaml:"expression,omitempty"`
	Until      string    `yaml:"until,omitempty"`
	Count      int       `yaml:"count,omitempty"`
}

// NthSpec selects the Nth weekday of a month, -1 meaning the last.
type NthSpec struct {
	N       int    `yaml:"n"`
	Weekday string `yaml:"weekday"`
}

// Reminders lists the alerts of a template.
type Reminders struct {
	Enabled *bool   `yaml:"enabled,omitempty"`
	Alerts  []Alert `yaml:"alerts"`
}

// Alert is either minutes_before or at.
type Alert struct {
	MinutesBefore *int   `yaml:"minutes_before,omitempty"`
	At            string `yaml:"at,omitempty"`
	Channel       string `yaml:"channel,omitempty"`
	Message       string `yaml:"message,omitempty"`
}

// Policy mirrors domain.SchedulingPolicy.
type Policy struct {
	AllowReschedule  *bool `yaml:"allow_reschedule,omitempty"`
	MaxDelayDays     int   `yaml:"max_delay_days,omitempty"`
	SkipWeekends     bool  `yaml:"skip_weekends,omitempty"`
	SkipHolidays     bool  `yaml:"skip_holidays,omitempty"`
	WorkingHoursOnly bool  `yaml:"working_hours_only,omitempty"`
}

// Metadata mirrors domain.Metadata with a textual estimate such as "45m".
type Metadata struct {
	Category   string   `yaml:"category,omitempty"`
	Tags       []string `yaml:"tags,omitempty"`
	Priority   int      `yaml:"priority,omitempty"`
	Difficulty int      `yaml:"difficulty,omitempty"`
	Estimate   string   `yaml:"estimate,omitempty"`
}

// ReadFile parses the definitions in path. Times without an explicit
// timezone are read in timezone.
func ReadFile(path, timezone string) ([]services.CreateTemplateRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, timezone)
}

// Read parses a template document. Unknown keys are rejected.
func Read(r io.Reader, timezone string) ([]services.CreateTemplateRequest, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("invalid template yaml: %w", err)
	}

	reqs := make([]services.CreateTemplateRequest, 0, len(file.Templates))
	for i, def := range file.Templates {
		req, err := def.Request(timezone)
		if err != nil {
			return nil, fmt.Errorf("template %d (%q): %w", i+1, def.Title, err)
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// Request converts the definition into a creation request.
func (d Definition) Request(timezone string) (services.CreateTemplateRequest, error) {
	tz := d.Timezone
	if tz == "" {
		tz = timezone
	}

	start, dateOnly, err := ParseMoment(d.Start, tz)
	if err != nil {
		return services.CreateTemplateRequest{}, fmt.Errorf("start: %w", err)
	}
	tc := domain.TimeConfig{Kind: domain.TimeKind(d.Kind), Start: start, Timezone: tz}
	if d.End != "" {
		end, _, err := ParseMoment(d.End, tz)
		if err != nil {
			return services.CreateTemplateRequest{}, fmt.Errorf("end: %w", err)
		}
		tc.End = &end
	}
	if tc.Kind == "" {
		switch {
		case dateOnly:
			tc.Kind = domain.TimeAllDay
		case tc.End != nil:
			tc.Kind = domain.TimeRange
		default:
			tc.Kind = domain.TimeTimed
		}
	}
	if d.Recurrence != nil {
		if tc.Recurrence, err = d.Recurrence.rule(tz); err != nil {
			return services.CreateTemplateRequest{}, fmt.Errorf("recurrence: %w", err)
		}
	}

	req := services.CreateTemplateRequest{
		Title:          d.Title,
		Description:    d.Description,
		Time:           tc,
		KeyResultLinks: d.KeyResults,
		Activate:       d.Activate,
	}

	if d.Reminders != nil {
		req.Reminders.Enabled = len(d.Reminders.Alerts) > 0
		if d.Reminders.Enabled != nil {
			req.Reminders.Enabled = *d.Reminders.Enabled
		}
		for i, a := range d.Reminders.Alerts {
			spec, err := a.spec(tz)
			if err != nil {
				return services.CreateTemplateRequest{}, fmt.Errorf("alert %d: %w", i+1, err)
			}
			req.Reminders.Alerts = append(req.Reminders.Alerts, spec)
		}
	}

	if p := d.Policy; p != nil {
		policy := domain.DefaultSchedulingPolicy()
		if p.AllowReschedule != nil {
			policy.AllowReschedule = *p.AllowReschedule
		}
		policy.MaxDelayDays = p.MaxDelayDays
		policy.SkipWeekends = p.SkipWeekends
		policy.SkipHolidays = p.SkipHolidays
		policy.WorkingHoursOnly = p.WorkingHoursOnly
		req.Policy = &policy
	}

	if m := d.Metadata; m != nil {
		md := domain.Metadata{
			Category:   m.Category,
			Tags:       m.Tags,
			Priority:   m.Priority,
			Difficulty: m.Difficulty,
		}
		if m.Estimate != "" {
			est, err := time.ParseDuration(m.Estimate)
			if err != nil {
				return services.CreateTemplateRequest{}, fmt.Errorf("metadata.estimate: %w", err)
			}
			md.EstimatedDuration = &est
		}
		req.Metadata = &md
	}

	return req, nil
}

func (r Recurrence) rule(tz string) (domain.RecurrenceRule, error) {
	repeat := domain.Repeat{Interval: r.Interval, End: domain.Never()}
	if repeat.Interval == 0 {
		repeat.Interval = 1
	}
	switch {
	case r.Until != "" && r.Count > 0:
		return nil, errors.New("until and count are mutually exclusive")
	case r.Until != "":
		until, dateOnly, err := ParseMoment(r.Until, tz)
		if err != nil {
			return nil, fmt.Errorf("until: %w", err)
		}
		// A bare date includes the whole day.
		if dateOnly {
			until = until.EndOfDay()
		}
		repeat.End = domain.UntilDate(until)
	case r.Count > 0:
		repeat.End = domain.AfterCount(r.Count)
	}

	switch domain.RecurrenceKind(strings.ToLower(r.Kind)) {
	case domain.RecurrenceNone, "":
		return domain.NoRecurrence{}, nil
	case domain.RecurrenceDaily:
		return domain.Daily{Repeat: repeat}, nil
	case domain.RecurrenceWeekly:
		days, err := parseWeekdays(r.Weekdays)
		if err != nil {
			return nil, err
		}
		return domain.Weekly{Repeat: repeat, Weekdays: days}, nil
	case domain.RecurrenceMonthly:
		m := domain.Monthly{Repeat: repeat, Days: r.Days}
		for _, n := range r.Nth {
			wd, err := ParseWeekday(n.Weekday)
			if err != nil {
				return nil, err
			}
			m.NthWeekdays = append(m.NthWeekdays, domain.NthWeekday{N: n.N, Weekday: wd})
		}
		return m, nil
	case domain.RecurrenceYearly:
		return domain.Yearly{Repeat: repeat}, nil
	case domain.RecurrenceCustom:
		return domain.Custom{Repeat: repeat, Expression: r.Expression}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRecurrence, r.Kind)
	}
}

func (a Alert) spec(tz string) (domain.AlertSpec, error) {
	var timing domain.AlertTiming
	switch {
	case a.MinutesBefore != nil && a.At != "":
		return domain.AlertSpec{}, errors.New("minutes_before and at are mutually exclusive")
	case a.MinutesBefore != nil:
		timing = domain.MinutesBefore(*a.MinutesBefore)
	case a.At != "":
		at, _, err := ParseMoment(a.At, tz)
		if err != nil {
			return domain.AlertSpec{}, fmt.Errorf("at: %w", err)
		}
		timing = domain.AbsoluteAt(at)
	default:
		return domain.AlertSpec{}, errors.New("one of minutes_before or at is required")
	}
	return domain.NewAlertSpec(timing, domain.Channel(a.Channel), a.Message), nil
}

// ParseMoment reads "2006-01-02 15:04" or a bare date in tz. A bare date
// yields an all-day moment and true.
func ParseMoment(s, tz string) (domain.Moment, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.Moment{}, false, errors.New("time is required")
	}
	if t, err := time.Parse(dateTimeLayout, s); err == nil {
		return domain.NewMoment(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), tz), false, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return domain.Moment{}, false, fmt.Errorf("cannot parse %q, want YYYY-MM-DD or YYYY-MM-DD HH:MM", s)
	}
	return domain.NewDate(t.Year(), t.Month(), t.Day(), tz), true, nil
}

func parseWeekdays(names []string) ([]time.Weekday, error) {
	days := make([]time.Weekday, 0, len(names))
	for _, name := range names {
		wd, err := ParseWeekday(name)
		if err != nil {
			return nil, err
		}
		days = append(days, wd)
	}
	return days, nil
}

// ParseWeekday accepts full or three-letter English weekday names.
func ParseWeekday(name string) (time.Weekday, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if n == full || n == full[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}

// Write encodes templates as a document that Read accepts.
func Write(w io.Writer, templates []*domain.TaskTemplate) error {
	file := File{Templates: make([]Definition, 0, len(templates))}
	for _, t := range templates {
		file.Templates = append(file.Templates, FromTemplate(t))
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("failed to encode templates: %w", err)
	}
	return enc.Close()
}

// FromTemplate converts a stored template into its file form. Runtime state
// (status, stats, IDs) is not exported.
func FromTemplate(t *domain.TaskTemplate) Definition {
	d := Definition{
		Title:       t.Title,
		Description: t.Description,
		Kind:        string(t.Time.Kind),
		Start:       FormatMoment(t.Time.Start),
		Timezone:    t.Time.Timezone,
		KeyResults:  t.KeyResultLinks,
		Activate:    t.Status == domain.TemplateActive,
	}
	if d.Timezone == "" {
		d.Timezone = t.Time.Start.Timezone()
	}
	if t.Time.End != nil {
		d.End = FormatMoment(*t.Time.End)
	}
	if rule := t.Time.Recurrence; rule != nil && rule.Kind() != domain.RecurrenceNone {
		d.Recurrence = recurrenceOf(rule)
	}

	if len(t.Reminders.Alerts) > 0 || t.Reminders.Enabled {
		enabled := t.Reminders.Enabled
		rem := &Reminders{Enabled: &enabled}
		for _, spec := range t.Reminders.Alerts {
			a := Alert{Channel: string(spec.Channel), Message: spec.Message}
			if spec.Timing.Kind == domain.TimingAbsolute {
				a.At = FormatMoment(spec.Timing.At)
			} else {
				n := spec.Timing.MinutesBefore
				a.MinutesBefore = &n
			}
			rem.Alerts = append(rem.Alerts, a)
		}
		d.Reminders = rem
	}

	p := t.Policy
	allow := p.AllowReschedule
	d.Policy = &Policy{
		AllowReschedule:  &allow,
		MaxDelayDays:     p.MaxDelayDays,
		SkipWeekends:     p.SkipWeekends,
		SkipHolidays:     p.SkipHolidays,
		WorkingHoursOnly: p.WorkingHoursOnly,
	}

	m := t.Metadata
	d.Metadata = &Metadata{
		Category:   m.Category,
		Tags:       m.Tags,
		Priority:   m.Priority,
		Difficulty: m.Difficulty,
	}
	if m.EstimatedDuration != nil {
		d.Metadata.Estimate = m.EstimatedDuration.String()
	}
	return d
}

func recurrenceOf(rule domain.RecurrenceRule) *Recurrence {
	r := &Recurrence{Kind: string(rule.Kind())}
	switch v := rule.(type) {
	case domain.Daily:
		r.Interval = v.Interval
	case domain.Weekly:
		r.Interval = v.Interval
		for _, wd := range v.Weekdays {
			r.Weekdays = append(r.Weekdays, strings.ToLower(wd.String()[:3]))
		}
	case domain.Monthly:
		r.Interval = v.Interval
		r.Days = v.Days
		for _, n := range v.NthWeekdays {
			r.Nth = append(r.Nth, NthSpec{N: n.N, Weekday: strings.ToLower(n.Weekday.String()[:3])})
		}
	case domain.Yearly:
		r.Interval = v.Interval
	case domain.Custom:
		r.Interval = v.Interval
		r.Expression = v.Expression
	}
	end := rule.Termination()
	switch end.Kind {
	case domain.EndUntilDate:
		r.Until = FormatMoment(end.Until)
	case domain.EndAfterCount:
		r.Count = end.Count
	}
	return r
}

// FormatMoment is the inverse of ParseMoment.
func FormatMoment(m domain.Moment) string {
	if m.IsAllDay() {
		return m.Time().Format(dateLayout)
	}
	return m.Time().Format(dateTimeLayout)
}
