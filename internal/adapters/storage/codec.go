package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xvierd/cadence/internal/domain"
)

// The data column of each table holds one of the records below as JSON.
// Indexed fields (status, template, scheduled time) are duplicated into
// their own columns for querying.

type momentRecord struct {
	At       time.Time `json:"at"`
	AllDay   bool      `json:"all_day,omitempty"`
	Timezone string    `json:"tz,omitempty"`
}

func encodeMoment(m domain.Moment) *momentRecord {
	if m.IsZero() {
		return nil
	}
	return &momentRecord{At: m.Time(), AllDay: m.IsAllDay(), Timezone: m.Timezone()}
}

func decodeMoment(r *momentRecord) domain.Moment {
	if r == nil {
		return domain.Moment{}
	}
	return domain.Restore(r.At, r.Timezone, r.AllDay)
}

func encodeMomentPtr(m *domain.Moment) *momentRecord {
	if m == nil {
		return nil
	}
	return encodeMoment(*m)
}

func decodeMomentPtr(r *momentRecord) *domain.Moment {
	if r == nil {
		return nil
	}
	m := decodeMoment(r)
	return &m
}

type endRecord struct {
	Kind  domain.EndKind `json:"kind"`
	Until *momentRecord  `json:"until,omitempty"`
	Count int            `json:"count,omitempty"`
}

type nthRecord struct {
	N       int          `json:"n"`
	Weekday time.Weekday `json:"weekday"`
}

type ruleRecord struct {
	Kind       domain.RecurrenceKind `json:"kind"`
	Interval   int                   `json:"interval,omitempty"`
	End        *endRecord            `json:"end,omitempty"`
	Weekdays   []time.Weekday        `json:"weekdays,omitempty"`
	Days       []int                 `json:"days,omitempty"`
	Nth        []nthRecord           `json:"nth,omitempty"`
	Expression string                `json:"expression,omitempty"`
}

func encodeRule(rule domain.RecurrenceRule) ruleRecord {
	if rule == nil {
		return ruleRecord{Kind: domain.RecurrenceNone}
	}
	rec := ruleRecord{Kind: rule.Kind()}
	if rule.Kind() != domain.RecurrenceNone {
		end := rule.Termination()
		rec.End = &endRecord{Kind: end.Kind, Until: encodeMoment(end.Until), Count: end.Count}
	}
	switch r := rule.(type) {
	case domain.Daily:
		rec.Interval = r.Interval
	case domain.Weekly:
		rec.Interval = r.Interval
		rec.Weekdays = r.Weekdays
	case domain.Monthly:
		rec.Interval = r.Interval
		rec.Days = r.Days
		for _, n := range r.NthWeekdays {
			rec.Nth = append(rec.Nth, nthRecord{N: n.N, Weekday: n.Weekday})
		}
	case domain.Yearly:
		rec.Interval = r.Interval
	case domain.Custom:
		rec.Interval = r.Interval
		rec.Expression = r.Expression
	}
	return rec
}

func decodeRule(rec ruleRecord) (domain.RecurrenceRule, error) {
	repeat := domain.Repeat{Interval: rec.Interval, End: domain.Never()}
	if rec.End != nil {
		repeat.End = domain.EndCondition{Kind: rec.End.Kind, Until: decodeMoment(rec.End.Until), Count: rec.End.Count}
	}
	switch rec.Kind {
	case domain.RecurrenceNone, "":
		return domain.NoRecurrence{}, nil
	case domain.RecurrenceDaily:
		return domain.Daily{Repeat: repeat}, nil
	case domain.RecurrenceWeekly:
		return domain.Weekly{Repeat: repeat, Weekdays: rec.Weekdays}, nil
	case domain.RecurrenceMonthly:
		m := domain.Monthly{Repeat: repeat, Days: rec.Days}
		for _, n := range rec.Nth {
			m.NthWeekdays = append(m.NthWeekdays, domain.NthWeekday{N: n.N, Weekday: n.Weekday})
		}
		return m, nil
	case domain.RecurrenceYearly:
		return domain.Yearly{Repeat: repeat}, nil
	case domain.RecurrenceCustom:
		return domain.Custom{Repeat: repeat, Expression: rec.Expression}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRecurrence, rec.Kind)
	}
}

type alertSpecRecord struct {
	ID            string            `json:"id"`
	Timing        domain.TimingKind `json:"timing"`
	MinutesBefore int               `json:"minutes_before,omitempty"`
	At            *momentRecord     `json:"at,omitempty"`
	Channel       domain.Channel    `json:"channel"`
	Message       string            `json:"message,omitempty"`
}

func encodeAlertSpec(s domain.AlertSpec) alertSpecRecord {
	return alertSpecRecord{
		ID:            s.ID,
		Timing:        s.Timing.Kind,
		MinutesBefore: s.Timing.MinutesBefore,
		At:            encodeMoment(s.Timing.At),
		Channel:       s.Channel,
		Message:       s.Message,
	}
}

func decodeAlertSpec(r alertSpecRecord) domain.AlertSpec {
	return domain.AlertSpec{
		ID:      r.ID,
		Timing:  domain.AlertTiming{Kind: r.Timing, MinutesBefore: r.MinutesBefore, At: decodeMoment(r.At)},
		Channel: r.Channel,
		Message: r.Message,
	}
}

type metadataRecord struct {
	Category          string   `json:"category,omitempty"`
	Tags              []string `json:"tags"`
	Priority          int      `json:"priority"`
	Difficulty        int      `json:"difficulty"`
	EstimatedDuration *int64   `json:"estimated_duration_ms,omitempty"`
}

func encodeMetadata(m domain.Metadata) metadataRecord {
	rec := metadataRecord{Category: m.Category, Tags: m.Tags, Priority: m.Priority, Difficulty: m.Difficulty}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	if m.EstimatedDuration != nil {
		ms := m.EstimatedDuration.Milliseconds()
		rec.EstimatedDuration = &ms
	}
	return rec
}

func decodeMetadata(r metadataRecord) domain.Metadata {
	m := domain.Metadata{Category: r.Category, Tags: r.Tags, Priority: r.Priority, Difficulty: r.Difficulty}
	if m.Tags == nil {
		m.Tags = []string{}
	}
	if r.EstimatedDuration != nil {
		d := time.Duration(*r.EstimatedDuration) * time.Millisecond
		m.EstimatedDuration = &d
	}
	return m
}

type templateRecord struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	TimeKind    domain.TimeKind `json:"time_kind"`
	Start       *momentRecord   `json:"start"`
	End         *momentRecord   `json:"end,omitempty"`
	Rule        ruleRecord      `json:"rule"`
	Timezone    string          `json:"timezone,omitempty"`

	RemindersEnabled bool              `json:"reminders_enabled"`
	Alerts           []alertSpecRecord `json:"alerts"`

	Policy   domain.SchedulingPolicy `json:"policy"`
	Metadata metadataRecord          `json:"metadata"`
	Links    []string                `json:"key_result_links"`

	TotalInstances     int           `json:"total_instances"`
	CompletedInstances int           `json:"completed_instances"`
	LastGeneratedAt    *momentRecord `json:"last_generated_at,omitempty"`
	CreatedAt          *momentRecord `json:"created_at"`
	UpdatedAt          *momentRecord `json:"updated_at"`
}

func encodeTemplate(t *domain.TaskTemplate) ([]byte, error) {
	rec := templateRecord{
		Title:              t.Title,
		Description:        t.Description,
		TimeKind:           t.Time.Kind,
		Start:              encodeMoment(t.Time.Start),
		End:                encodeMomentPtr(t.Time.End),
		Rule:               encodeRule(t.Time.Recurrence),
		Timezone:           t.Time.Timezone,
		RemindersEnabled:   t.Reminders.Enabled,
		Alerts:             make([]alertSpecRecord, 0, len(t.Reminders.Alerts)),
		Policy:             t.Policy,
		Metadata:           encodeMetadata(t.Metadata),
		Links:              t.KeyResultLinks,
		TotalInstances:     t.Stats.TotalInstances,
		CompletedInstances: t.Stats.CompletedInstances,
		LastGeneratedAt:    encodeMomentPtr(t.Stats.LastGeneratedAt),
		CreatedAt:          encodeMoment(t.CreatedAt),
		UpdatedAt:          encodeMoment(t.UpdatedAt),
	}
	for _, a := range t.Reminders.Alerts {
		rec.Alerts = append(rec.Alerts, encodeAlertSpec(a))
	}
	if rec.Links == nil {
		rec.Links = []string{}
	}
	return json.Marshal(rec)
}

func decodeTemplate(id string, status domain.TemplateStatus, data []byte) (*domain.TaskTemplate, error) {
	var rec templateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode template %s: %w", id, err)
	}
	rule, err := decodeRule(rec.Rule)
	if err != nil {
		return nil, fmt.Errorf("failed to decode template %s: %w", id, err)
	}
	t := &domain.TaskTemplate{
		ID:          id,
		Title:       rec.Title,
		Description: rec.Description,
		Time: domain.TimeConfig{
			Kind:       rec.TimeKind,
			Start:      decodeMoment(rec.Start),
			End:        decodeMomentPtr(rec.End),
			Recurrence: rule,
			Timezone:   rec.Timezone,
		},
		Reminders:      domain.ReminderConfig{Enabled: rec.RemindersEnabled, Alerts: make([]domain.AlertSpec, 0, len(rec.Alerts))},
		Policy:         rec.Policy,
		Metadata:       decodeMetadata(rec.Metadata),
		KeyResultLinks: rec.Links,
		Status:         status,
		Stats: domain.TemplateStats{
			TotalInstances:     rec.TotalInstances,
			CompletedInstances: rec.CompletedInstances,
			LastGeneratedAt:    decodeMomentPtr(rec.LastGeneratedAt),
		},
		CreatedAt: decodeMoment(rec.CreatedAt),
		UpdatedAt: decodeMoment(rec.UpdatedAt),
	}
	for _, a := range rec.Alerts {
		t.Reminders.Alerts = append(t.Reminders.Alerts, decodeAlertSpec(a))
	}
	if t.KeyResultLinks == nil {
		t.KeyResultLinks = []string{}
	}
	return t, nil
}

type snoozeRecord struct {
	SnoozedAt *momentRecord `json:"snoozed_at"`
	Until     *momentRecord `json:"until"`
	Reason    string        `json:"reason,omitempty"`
}

type alertStateRecord struct {
	ID            string             `json:"id"`
	Spec          alertSpecRecord    `json:"spec"`
	Status        domain.AlertStatus `json:"status"`
	ScheduledTime *momentRecord      `json:"scheduled_time"`
	TriggeredAt   *momentRecord      `json:"triggered_at,omitempty"`
	DismissedAt   *momentRecord      `json:"dismissed_at,omitempty"`
	SnoozedUntil  *momentRecord      `json:"snoozed_until,omitempty"`
	Snoozes       []snoozeRecord     `json:"snoozes"`
}

type eventRecord struct {
	Type   domain.EventType `json:"type"`
	At     *momentRecord    `json:"at"`
	Detail string           `json:"detail,omitempty"`
}

type instanceRecord struct {
	Title             string          `json:"title"`
	Description       string          `json:"description,omitempty"`
	TimeKind          domain.TimeKind `json:"time_kind"`
	End               *momentRecord   `json:"end,omitempty"`
	EstimatedDuration *int64          `json:"estimated_duration_ms,omitempty"`
	AllowReschedule   bool            `json:"allow_reschedule"`
	MaxDelayDays      int             `json:"max_delay_days,omitempty"`
	BaseScheduled     *momentRecord   `json:"base_scheduled"`
	Scheduled         *momentRecord   `json:"scheduled"`

	Metadata metadataRecord `json:"metadata"`
	Links    []string       `json:"key_result_links"`

	ActualStart *momentRecord `json:"actual_start,omitempty"`
	ActualEnd   *momentRecord `json:"actual_end,omitempty"`
	CompletedAt *momentRecord `json:"completed_at,omitempty"`

	Alerts      []alertStateRecord `json:"alerts"`
	SnoozeCount int                `json:"snooze_count"`
	Events      []eventRecord      `json:"events"`

	CreatedAt *momentRecord `json:"created_at"`
	UpdatedAt *momentRecord `json:"updated_at"`
}

func encodeInstance(i *domain.TaskInstance) ([]byte, error) {
	rec := instanceRecord{
		Title:           i.Title,
		Description:     i.Description,
		TimeKind:        i.Time.Kind,
		End:             encodeMomentPtr(i.Time.End),
		AllowReschedule: i.Time.AllowReschedule,
		MaxDelayDays:    i.Time.MaxDelayDays,
		BaseScheduled:   encodeMoment(i.Time.BaseScheduled),
		Scheduled:       encodeMoment(i.Time.Scheduled),
		Metadata:        encodeMetadata(i.Metadata),
		Links:           i.KeyResultLinks,
		ActualStart:     encodeMomentPtr(i.ActualStart),
		ActualEnd:       encodeMomentPtr(i.ActualEnd),
		CompletedAt:     encodeMomentPtr(i.CompletedAt),
		Alerts:          make([]alertStateRecord, 0, len(i.Reminders.Alerts)),
		SnoozeCount:     i.Reminders.SnoozeCount,
		Events:          make([]eventRecord, 0, len(i.Events)),
		CreatedAt:       encodeMoment(i.CreatedAt),
		UpdatedAt:       encodeMoment(i.UpdatedAt),
	}
	if i.Time.EstimatedDuration != nil {
		ms := i.Time.EstimatedDuration.Milliseconds()
		rec.EstimatedDuration = &ms
	}
	if rec.Links == nil {
		rec.Links = []string{}
	}
	for _, a := range i.Reminders.Alerts {
		ar := alertStateRecord{
			ID:            a.ID,
			Spec:          encodeAlertSpec(a.Spec),
			Status:        a.Status,
			ScheduledTime: encodeMoment(a.ScheduledTime),
			TriggeredAt:   encodeMomentPtr(a.TriggeredAt),
			DismissedAt:   encodeMomentPtr(a.DismissedAt),
			SnoozedUntil:  encodeMomentPtr(a.SnoozedUntil),
			Snoozes:       make([]snoozeRecord, 0, len(a.Snoozes)),
		}
		for _, s := range a.Snoozes {
			ar.Snoozes = append(ar.Snoozes, snoozeRecord{SnoozedAt: encodeMoment(s.SnoozedAt), Until: encodeMoment(s.Until), Reason: s.Reason})
		}
		rec.Alerts = append(rec.Alerts, ar)
	}
	for _, e := range i.Events {
		rec.Events = append(rec.Events, eventRecord{Type: e.Type, At: encodeMoment(e.At), Detail: e.Detail})
	}
	return json.Marshal(rec)
}

func decodeInstance(id, templateID string, status domain.InstanceStatus, data []byte) (*domain.TaskInstance, error) {
	var rec instanceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode instance %s: %w", id, err)
	}
	i := &domain.TaskInstance{
		ID:          id,
		TemplateID:  templateID,
		Title:       rec.Title,
		Description: rec.Description,
		Time: domain.InstanceTimeConfig{
			Kind:            rec.TimeKind,
			Scheduled:       decodeMoment(rec.Scheduled),
			End:             decodeMomentPtr(rec.End),
			AllowReschedule: rec.AllowReschedule,
			MaxDelayDays:    rec.MaxDelayDays,
			BaseScheduled:   decodeMoment(rec.BaseScheduled),
		},
		Metadata:       decodeMetadata(rec.Metadata),
		KeyResultLinks: rec.Links,
		Status:         status,
		ActualStart:    decodeMomentPtr(rec.ActualStart),
		ActualEnd:      decodeMomentPtr(rec.ActualEnd),
		CompletedAt:    decodeMomentPtr(rec.CompletedAt),
		Reminders: domain.ReminderState{
			Alerts:      make([]domain.AlertState, 0, len(rec.Alerts)),
			SnoozeCount: rec.SnoozeCount,
		},
		Events:    make([]domain.LifecycleEvent, 0, len(rec.Events)),
		CreatedAt: decodeMoment(rec.CreatedAt),
		UpdatedAt: decodeMoment(rec.UpdatedAt),
	}
	if rec.EstimatedDuration != nil {
		d := time.Duration(*rec.EstimatedDuration) * time.Millisecond
		i.Time.EstimatedDuration = &d
	}
	if i.KeyResultLinks == nil {
		i.KeyResultLinks = []string{}
	}
	for _, ar := range rec.Alerts {
		a := domain.AlertState{
			ID:            ar.ID,
			Spec:          decodeAlertSpec(ar.Spec),
			Status:        ar.Status,
			ScheduledTime: decodeMoment(ar.ScheduledTime),
			TriggeredAt:   decodeMomentPtr(ar.TriggeredAt),
			DismissedAt:   decodeMomentPtr(ar.DismissedAt),
			SnoozedUntil:  decodeMomentPtr(ar.SnoozedUntil),
			Snoozes:       make([]domain.SnoozeEntry, 0, len(ar.Snoozes)),
		}
		for _, s := range ar.Snoozes {
			a.Snoozes = append(a.Snoozes, domain.SnoozeEntry{SnoozedAt: decodeMoment(s.SnoozedAt), Until: decodeMoment(s.Until), Reason: s.Reason})
		}
		i.Reminders.Alerts = append(i.Reminders.Alerts, a)
	}
	for _, e := range rec.Events {
		i.Events = append(i.Events, domain.LifecycleEvent{Type: e.Type, At: decodeMoment(e.At), Detail: e.Detail})
	}
	return i, nil
}
