package domain

import (
	"slices"
	"strings"
	"time"
)

// TimeKind describes how a task occupies time.
type TimeKind string

const (
	TimeAllDay TimeKind = "all_day"
	TimeTimed  TimeKind = "timed"
	TimeRange  TimeKind = "time_range"
)

// IsValid reports whether k is a known time kind.
func (k TimeKind) IsValid() bool {
	switch k {
	case TimeAllDay, TimeTimed, TimeRange:
		return true
	default:
		return false
	}
}

// TimeConfig is the template's base schedule.
type TimeConfig struct {
	Kind       TimeKind
	Start      Moment
	End        *Moment
	Recurrence RecurrenceRule
	Timezone   string
}

// Duration is the base length of one occurrence, zero without an end.
func (c TimeConfig) Duration() time.Duration {
	if c.End == nil {
		return 0
	}
	return c.End.Sub(c.Start)
}

// SchedulingPolicy controls rescheduling and which occurrences are kept.
type SchedulingPolicy struct {
	AllowReschedule  bool `json:"allow_reschedule"`
	MaxDelayDays     int  `json:"max_delay_days,omitempty"`
	SkipWeekends     bool `json:"skip_weekends,omitempty"`
	SkipHolidays     bool `json:"skip_holidays,omitempty"`
	WorkingHoursOnly bool `json:"working_hours_only,omitempty"`
}

// DefaultSchedulingPolicy allows unlimited rescheduling and skips nothing.
func DefaultSchedulingPolicy() SchedulingPolicy {
	return SchedulingPolicy{AllowReschedule: true}
}

// Metadata is descriptive data copied onto every generated instance.
type Metadata struct {
	Category          string
	Tags              []string
	Priority          int
	Difficulty        int
	EstimatedDuration *time.Duration
}

// TemplateStatus is the lifecycle state of a template.
type TemplateStatus string

const (
	TemplateDraft    TemplateStatus = "draft"
	TemplateActive   TemplateStatus = "active"
	TemplatePaused   TemplateStatus = "paused"
	TemplateArchived TemplateStatus = "archived"
)

// TemplateStats are the template's analytics counters.
type TemplateStats struct {
	TotalInstances     int
	CompletedInstances int
	LastGeneratedAt    *Moment
}

// TaskTemplate is a reusable, possibly repeating task definition.
type TaskTemplate struct {
	ID             string
	Title          string
	Description    string
	Time           TimeConfig
	Reminders      ReminderConfig
	Policy         SchedulingPolicy
	Metadata       Metadata
	KeyResultLinks []string
	Status         TemplateStatus
	Stats          TemplateStats
	CreatedAt      Moment
	UpdatedAt      Moment
}

// NewTemplate creates a draft template. A nil recurrence means one-off.
func NewTemplate(title string, tc TimeConfig, now Moment) *TaskTemplate {
	if tc.Recurrence == nil {
		tc.Recurrence = NoRecurrence{}
	}
	if tc.Kind == "" {
		tc.Kind = TimeTimed
	}
	return &TaskTemplate{
		ID:             generateID(),
		Title:          title,
		Time:           tc,
		Policy:         DefaultSchedulingPolicy(),
		Metadata:       Metadata{Priority: 3, Difficulty: 3, Tags: []string{}},
		KeyResultLinks: []string{},
		Status:         TemplateDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ValidateConfiguration runs every configuration check and collects failures.
func (t *TaskTemplate) ValidateConfiguration() ValidationResult {
	res := ValidationResult{Valid: true, Errors: []FieldError{}}
	if strings.TrimSpace(t.Title) == "" {
		res.add("title", "title is required")
	}
	if t.Time.Start.IsZero() {
		res.add("time.start", "base time is required")
	}
	if !t.Time.Kind.IsValid() {
		res.add("time.kind", "unknown time kind "+string(t.Time.Kind))
	}
	if t.Time.Kind == TimeRange {
		switch {
		case t.Time.End == nil:
			res.add("time.end", "end time is required for a time range")
		case !t.Time.End.After(t.Time.Start):
			res.add("time.end", "end time must be after start time")
		}
	}
	if t.Time.Recurrence == nil {
		res.add("time.recurrence", "recurrence rule is required")
	} else if err := t.Time.Recurrence.Validate(); err != nil {
		res.add("time.recurrence", err.Error())
	}
	if t.Reminders.Enabled && len(t.Reminders.Alerts) == 0 {
		res.add("reminders.alerts", "at least one alert is required when reminders are enabled")
	}
	for _, a := range t.Reminders.Alerts {
		if err := a.Validate(); err != nil {
			res.add("reminders.alerts", err.Error())
		}
	}
	if d := t.Metadata.EstimatedDuration; d != nil && *d <= 0 {
		res.add("metadata.estimated_duration", "estimated duration must be positive")
	}
	if p := t.Metadata.Priority; p < 1 || p > 5 {
		res.add("metadata.priority", "priority must be between 1 and 5")
	}
	if d := t.Metadata.Difficulty; d < 1 || d > 5 {
		res.add("metadata.difficulty", "difficulty must be between 1 and 5")
	}
	if t.Policy.MaxDelayDays < 0 {
		res.add("policy.max_delay_days", "max delay days must not be negative")
	}
	return res
}

func (t *TaskTemplate) reject(action, reason string) error {
	return &TransitionError{Entity: "template", Action: action, From: string(t.Status), Reason: reason}
}

// CanActivate reports whether the template may become active.
func (t *TaskTemplate) CanActivate() (bool, string) {
	if t.Status == TemplateActive {
		return false, "template is already active"
	}
	return true, ""
}

// CanPause reports whether the template may be paused.
func (t *TaskTemplate) CanPause() (bool, string) {
	if t.Status != TemplateActive {
		return false, "only active templates can be paused"
	}
	return true, ""
}

// CanArchive reports whether the template may be archived.
func (t *TaskTemplate) CanArchive() (bool, string) {
	if t.Status == TemplateArchived {
		return false, "template is already archived"
	}
	return true, ""
}

// CanDelete reports whether the template may be deleted without a cascade.
func (t *TaskTemplate) CanDelete() (bool, string) {
	if t.Stats.TotalInstances > 0 {
		return false, "template still has generated instances; use force to delete them too"
	}
	return true, ""
}

// CanEdit reports whether the template may be modified.
func (t *TaskTemplate) CanEdit() (bool, string) {
	if t.Status == TemplateArchived {
		return false, "archived templates cannot be edited"
	}
	return true, ""
}

// CanGenerate reports whether the template may produce new instances.
func (t *TaskTemplate) CanGenerate() (bool, string) {
	if t.Status != TemplateActive {
		return false, "only active templates generate instances"
	}
	return true, ""
}

// Activate moves the template to active after validating its configuration.
func (t *TaskTemplate) Activate(now Moment) error {
	if ok, reason := t.CanActivate(); !ok {
		return t.reject("activate", reason)
	}
	if err := t.ValidateConfiguration().Err(); err != nil {
		return err
	}
	t.Status = TemplateActive
	t.UpdatedAt = now
	return nil
}

// Pause stops generation until the template is activated again.
func (t *TaskTemplate) Pause(now Moment) error {
	if ok, reason := t.CanPause(); !ok {
		return t.reject("pause", reason)
	}
	t.Status = TemplatePaused
	t.UpdatedAt = now
	return nil
}

// Archive retires the template.
func (t *TaskTemplate) Archive(now Moment) error {
	if ok, reason := t.CanArchive(); !ok {
		return t.reject("archive", reason)
	}
	t.Status = TemplateArchived
	t.UpdatedAt = now
	return nil
}

// RecordGenerated bumps the analytics after n instances were produced.
func (t *TaskTemplate) RecordGenerated(n int, now Moment) {
	t.Stats.TotalInstances += n
	t.Stats.LastGeneratedAt = &now
	t.UpdatedAt = now
}

// RecordRemoved lowers the instance counters after instances were deleted.
func (t *TaskTemplate) RecordRemoved(total, completed int) {
	t.Stats.TotalInstances = max(0, t.Stats.TotalInstances-total)
	t.Stats.CompletedInstances = max(0, t.Stats.CompletedInstances-completed)
}

// RecordCompletion adjusts the completed counter by delta (+1 or -1).
func (t *TaskTemplate) RecordCompletion(delta int) {
	t.Stats.CompletedInstances = max(0, t.Stats.CompletedInstances+delta)
}

// Clone returns a deep copy.
func (t *TaskTemplate) Clone() *TaskTemplate {
	c := *t
	if t.Time.End != nil {
		end := *t.Time.End
		c.Time.End = &end
	}
	c.Reminders.Alerts = slices.Clone(t.Reminders.Alerts)
	c.Metadata = t.Metadata.clone()
	c.KeyResultLinks = slices.Clone(t.KeyResultLinks)
	if t.Stats.LastGeneratedAt != nil {
		at := *t.Stats.LastGeneratedAt
		c.Stats.LastGeneratedAt = &at
	}
	return &c
}

func (m Metadata) clone() Metadata {
	c := m
	c.Tags = slices.Clone(m.Tags)
	if m.EstimatedDuration != nil {
		d := *m.EstimatedDuration
		c.EstimatedDuration = &d
	}
	return c
}

// TemplatePatch is a partial template edit; nil fields stay unchanged.
type TemplatePatch struct {
	Title          *string
	Description    *string
	Time           *TimeConfig
	Reminders      *ReminderConfig
	Policy         *SchedulingPolicy
	Metadata       *Metadata
	KeyResultLinks []string
}

// ApplyPatch edits the template. The edit is all-or-nothing: when the result
// fails validation the template is left untouched.
func (t *TaskTemplate) ApplyPatch(p TemplatePatch, now Moment) error {
	if ok, reason := t.CanEdit(); !ok {
		return t.reject("edit", reason)
	}
	next := t.Clone()
	if p.Title != nil {
		next.Title = *p.Title
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Time != nil {
		next.Time = *p.Time
		if next.Time.Recurrence == nil {
			next.Time.Recurrence = NoRecurrence{}
		}
	}
	if p.Reminders != nil {
		next.Reminders = *p.Reminders
	}
	if p.Policy != nil {
		next.Policy = *p.Policy
	}
	if p.Metadata != nil {
		next.Metadata = p.Metadata.clone()
	}
	if p.KeyResultLinks != nil {
		next.KeyResultLinks = slices.Clone(p.KeyResultLinks)
	}
	if err := next.ValidateConfiguration().Err(); err != nil {
		return err
	}
	next.UpdatedAt = now
	*t = *next
	return nil
}
