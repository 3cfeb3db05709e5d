// Package domain contains the core scheduling entities for cadence.
// These entities represent templates, their generated instances and reminder
// timelines, and are independent of any external frameworks or infrastructure.
package domain

import (
	"fmt"
	"slices"
	"time"
)

// DefaultInstanceDuration is the length assumed for instances without an end
// time or estimate.
const DefaultInstanceDuration = 60 * time.Minute

// InstanceStatus represents the current state of a task instance.
type InstanceStatus string

const (
	StatusPending    InstanceStatus = "pending"
	StatusInProgress InstanceStatus = "in_progress"
	StatusCompleted  InstanceStatus = "completed"
	StatusCancelled  InstanceStatus = "cancelled"
	// StatusOverdue is never stored; see EffectiveStatus.
	StatusOverdue InstanceStatus = "overdue"
)

// IsValid reports whether s is a status an instance can be stored in.
func (s InstanceStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further work happens in this status.
func (s InstanceStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// InstanceTimeConfig is the schedule of one instance.
type InstanceTimeConfig struct {
	Kind              TimeKind
	Scheduled         Moment
	End               *Moment
	EstimatedDuration *time.Duration
	AllowReschedule   bool
	MaxDelayDays      int
	// BaseScheduled is the originally generated time; reschedule windows are
	// measured from it.
	BaseScheduled Moment
}

// EventType names an entry of the lifecycle event log.
type EventType string

const (
	EventCreated        EventType = "created"
	EventStarted        EventType = "started"
	EventCompleted      EventType = "completed"
	EventCancelled      EventType = "cancelled"
	EventUndone         EventType = "undone"
	EventRescheduled    EventType = "rescheduled"
	EventUpdated        EventType = "updated"
	EventAlertTriggered EventType = "alert_triggered"
	EventAlertDismissed EventType = "alert_dismissed"
	EventAlertSnoozed   EventType = "alert_snoozed"
)

// LifecycleEvent is one entry of the instance event log.
type LifecycleEvent struct {
	Type   EventType
	At     Moment
	Detail string
}

// TaskInstance is a concrete, schedulable occurrence of a template.
type TaskInstance struct {
	ID             string
	TemplateID     string
	Title          string
	Description    string
	Time           InstanceTimeConfig
	Metadata       Metadata
	KeyResultLinks []string
	Status         InstanceStatus
	ActualStart    *Moment
	ActualEnd      *Moment
	CompletedAt    *Moment
	Reminders      ReminderState
	Events         []LifecycleEvent
	CreatedAt      Moment
	UpdatedAt      Moment
}

// NewInstance creates a pending ad hoc instance scheduled at scheduled.
func NewInstance(templateID, title string, tc InstanceTimeConfig, now Moment) *TaskInstance {
	if tc.BaseScheduled.IsZero() {
		tc.BaseScheduled = tc.Scheduled
	}
	if tc.Kind == "" {
		tc.Kind = TimeTimed
	}
	inst := &TaskInstance{
		ID:             generateID(),
		TemplateID:     templateID,
		Title:          title,
		Time:           tc,
		Metadata:       Metadata{Priority: 3, Difficulty: 3, Tags: []string{}},
		KeyResultLinks: []string{},
		Status:         StatusPending,
		Reminders:      ReminderState{Alerts: []AlertState{}},
		Events:         []LifecycleEvent{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	inst.record(EventCreated, now, "")
	return inst
}

// InstantiateTemplate builds the instance for one occurrence of t. The end
// keeps the template's base duration and reminders are derived from the
// template's alerts when enabled.
func InstantiateTemplate(t *TaskTemplate, occurrence, now Moment) *TaskInstance {
	tc := InstanceTimeConfig{
		Kind:              t.Time.Kind,
		Scheduled:         occurrence,
		AllowReschedule:   t.Policy.AllowReschedule,
		MaxDelayDays:      t.Policy.MaxDelayDays,
		BaseScheduled:     occurrence,
		EstimatedDuration: t.Metadata.clone().EstimatedDuration,
	}
	if t.Time.End != nil {
		end := occurrence.Add(t.Time.Duration())
		tc.End = &end
	}
	inst := NewInstance(t.ID, t.Title, tc, now)
	inst.Description = t.Description
	inst.Metadata = t.Metadata.clone()
	inst.KeyResultLinks = slices.Clone(t.KeyResultLinks)
	if t.Reminders.Enabled {
		inst.Reminders.Alerts = ComputeReminderSchedule(occurrence, t.Reminders.Alerts, now)
	}
	return inst
}

func (i *TaskInstance) record(t EventType, now Moment, detail string) {
	i.Events = append(i.Events, LifecycleEvent{Type: t, At: now, Detail: detail})
	i.UpdatedAt = now
}

func (i *TaskInstance) reject(action, reason string) error {
	return &TransitionError{Entity: "instance", Action: action, From: string(i.Status), Reason: reason}
}

// EffectiveInterval is the time span the instance occupies: the end time when
// set, otherwise the estimate, otherwise DefaultInstanceDuration.
func (i *TaskInstance) EffectiveInterval() (start, end Moment) {
	start = i.Time.Scheduled
	switch {
	case i.Time.End != nil:
		end = *i.Time.End
	case i.Time.EstimatedDuration != nil && *i.Time.EstimatedDuration > 0:
		end = start.Add(*i.Time.EstimatedDuration)
	default:
		end = start.Add(DefaultInstanceDuration)
	}
	return start, end
}

// EffectiveStatus derives overdue: a pending instance whose scheduled time
// has passed, or an in-progress one whose effective end has passed. An
// all-day instance stays due until the end of its day.
func (i *TaskInstance) EffectiveStatus(now Moment) InstanceStatus {
	switch i.Status {
	case StatusPending:
		due := i.Time.Scheduled
		if i.Time.Kind == TimeAllDay || due.IsAllDay() {
			due = due.EndOfDay()
		}
		if now.After(due) {
			return StatusOverdue
		}
	case StatusInProgress:
		if _, end := i.EffectiveInterval(); now.After(end) {
			return StatusOverdue
		}
	}
	return i.Status
}

// ActualDuration is the time between start and completion, when both exist.
func (i *TaskInstance) ActualDuration() (time.Duration, bool) {
	if i.ActualStart == nil || i.ActualEnd == nil {
		return 0, false
	}
	return i.ActualEnd.Sub(*i.ActualStart), true
}

// CanStart reports whether the instance may be started.
func (i *TaskInstance) CanStart() (bool, string) {
	if i.Status != StatusPending {
		return false, "only pending instances can be started"
	}
	return true, ""
}

// CanComplete reports whether the instance may be completed.
func (i *TaskInstance) CanComplete() (bool, string) {
	switch i.Status {
	case StatusCompleted:
		return false, "instance is already completed"
	case StatusCancelled:
		return false, "cancelled instances cannot be completed"
	}
	return true, ""
}

// CanCancel reports whether the instance may be cancelled.
func (i *TaskInstance) CanCancel() (bool, string) {
	switch i.Status {
	case StatusCompleted:
		return false, "completed instances cannot be cancelled"
	case StatusCancelled:
		return false, "instance is already cancelled"
	}
	return true, ""
}

// CanUndoComplete reports whether a completion may be reverted.
func (i *TaskInstance) CanUndoComplete() (bool, string) {
	if i.Status != StatusCompleted {
		return false, "only completed instances can be reverted"
	}
	return true, ""
}

// CanReschedule reports whether the instance may move to newTime.
func (i *TaskInstance) CanReschedule(newTime Moment) (bool, string) {
	switch {
	case i.Status == StatusCompleted:
		return false, "completed instances cannot be rescheduled"
	case i.Status == StatusCancelled:
		return false, "cancelled instances cannot be rescheduled"
	case !i.Time.AllowReschedule:
		return false, "rescheduling is not allowed for this instance"
	case newTime.IsZero():
		return false, "new time is required"
	}
	if n := i.Time.MaxDelayDays; n > 0 {
		limit := i.Time.BaseScheduled.AddDays(n)
		if newTime.After(limit) {
			return false, fmt.Sprintf("new time is more than %d days after %s", n, i.Time.BaseScheduled)
		}
	}
	return true, ""
}

// Start marks the instance as in progress.
func (i *TaskInstance) Start(now Moment) error {
	if ok, reason := i.CanStart(); !ok {
		return i.reject("start", reason)
	}
	i.Status = StatusInProgress
	i.ActualStart = &now
	i.record(EventStarted, now, "")
	return nil
}

// Complete marks the instance as completed.
func (i *TaskInstance) Complete(now Moment) error {
	if ok, reason := i.CanComplete(); !ok {
		return i.reject("complete", reason)
	}
	i.Status = StatusCompleted
	i.CompletedAt = &now
	i.ActualEnd = &now
	detail := ""
	if d, ok := i.ActualDuration(); ok {
		detail = "took " + d.Round(time.Second).String()
	}
	i.record(EventCompleted, now, detail)
	return nil
}

// Cancel abandons the instance.
func (i *TaskInstance) Cancel(now Moment, reason string) error {
	if ok, why := i.CanCancel(); !ok {
		return i.reject("cancel", why)
	}
	i.Status = StatusCancelled
	i.record(EventCancelled, now, reason)
	return nil
}

// UndoComplete returns a completed instance to in progress.
func (i *TaskInstance) UndoComplete(now Moment) error {
	if ok, reason := i.CanUndoComplete(); !ok {
		return i.reject("undo", reason)
	}
	i.Status = StatusInProgress
	i.CompletedAt = nil
	i.ActualEnd = nil
	i.record(EventUndone, now, "")
	return nil
}

// Reschedule moves the instance to newTime. The end time and open relative
// alerts move by the same offset.
func (i *TaskInstance) Reschedule(newTime, now Moment) error {
	if ok, reason := i.CanReschedule(newTime); !ok {
		return i.reject("reschedule", reason)
	}
	old := i.Time.Scheduled
	var end *Moment
	if i.Time.End != nil {
		e := i.Time.End.Add(newTime.Sub(old))
		end = &e
	}
	i.retime(newTime, end)
	i.record(EventRescheduled, now, fmt.Sprintf("%s -> %s", old, newTime))
	return nil
}

// ApplyTemplateTime re-times the instance after its template's schedule
// changed. The instance keeps its own date and takes the template's clock,
// kind and duration. Reschedule policy does not apply.
func (i *TaskInstance) ApplyTemplateTime(tc TimeConfig, now Moment) {
	scheduled := i.Time.Scheduled.AtClockOf(tc.Start)
	var end *Moment
	if tc.End != nil {
		e := scheduled.Add(tc.Duration())
		end = &e
	}
	i.Time.Kind = tc.Kind
	i.Time.BaseScheduled = i.Time.BaseScheduled.AtClockOf(tc.Start)
	i.retime(scheduled, end)
	i.record(EventUpdated, now, "schedule")
}

// ReplaceReminders swaps the whole alert set for alerts. The instance-wide
// snooze counter is kept.
func (i *TaskInstance) ReplaceReminders(alerts []AlertState, now Moment) {
	i.Reminders.Alerts = alerts
	i.record(EventUpdated, now, "reminders")
}

// retime moves the schedule; pending relative alerts follow it.
func (i *TaskInstance) retime(scheduled Moment, end *Moment) {
	i.Time.Scheduled = scheduled
	i.Time.End = end
	for n := range i.Reminders.Alerts {
		a := &i.Reminders.Alerts[n]
		if a.Status == AlertPending && a.Spec.Timing.Kind == TimingRelative {
			a.ScheduledTime = a.Spec.Timing.TriggerFor(scheduled)
		}
	}
	i.sortAlerts()
}

func (i *TaskInstance) sortAlerts() {
	slices.SortStableFunc(i.Reminders.Alerts, func(a, b AlertState) int {
		return a.ScheduledTime.Compare(b.ScheduledTime)
	})
}

// Alert returns the alert with the given ID.
func (i *TaskInstance) Alert(id string) (*AlertState, error) {
	for n := range i.Reminders.Alerts {
		if i.Reminders.Alerts[n].ID == id {
			return &i.Reminders.Alerts[n], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAlertNotFound, id)
}

func rejectAlert(a *AlertState, action, reason string) error {
	return &TransitionError{Entity: "alert", Action: action, From: string(a.Status), Reason: reason}
}

// TriggerAlert fires a pending alert, or a snoozed one whose snooze ran out.
func (i *TaskInstance) TriggerAlert(alertID string, now Moment) error {
	a, err := i.Alert(alertID)
	if err != nil {
		return err
	}
	if i.Status.IsTerminal() {
		return rejectAlert(a, "trigger", "instance is "+string(i.Status))
	}
	if a.Status != AlertPending && a.Status != AlertSnoozed {
		return rejectAlert(a, "trigger", "only pending or snoozed alerts can be triggered")
	}
	a.Status = AlertTriggered
	a.TriggeredAt = &now
	a.SnoozedUntil = nil
	i.record(EventAlertTriggered, now, alertID)
	return nil
}

// DismissAlert closes a triggered or snoozed alert.
func (i *TaskInstance) DismissAlert(alertID string, now Moment) error {
	a, err := i.Alert(alertID)
	if err != nil {
		return err
	}
	if a.Status != AlertTriggered && a.Status != AlertSnoozed {
		return rejectAlert(a, "dismiss", "only triggered or snoozed alerts can be dismissed")
	}
	a.Status = AlertDismissed
	a.DismissedAt = &now
	a.SnoozedUntil = nil
	i.record(EventAlertDismissed, now, alertID)
	return nil
}

// SnoozeAlert postpones an alert until until and bumps the snooze counter.
func (i *TaskInstance) SnoozeAlert(alertID string, until Moment, reason string, now Moment) error {
	a, err := i.Alert(alertID)
	if err != nil {
		return err
	}
	if i.Status.IsTerminal() {
		return rejectAlert(a, "snooze", "instance is "+string(i.Status))
	}
	if a.Status != AlertPending && a.Status != AlertTriggered {
		return rejectAlert(a, "snooze", "only pending or triggered alerts can be snoozed")
	}
	if !until.After(now) {
		return rejectAlert(a, "snooze", "snooze must end in the future")
	}
	a.Status = AlertSnoozed
	a.SnoozedUntil = &until
	a.Snoozes = append(a.Snoozes, SnoozeEntry{SnoozedAt: now, Until: until, Reason: reason})
	i.Reminders.SnoozeCount++
	i.record(EventAlertSnoozed, now, alertID)
	return nil
}

// NextReminder returns the open alert that fires first.
func (i *TaskInstance) NextReminder() (AlertState, bool) {
	var next AlertState
	found := false
	for _, a := range i.Reminders.Alerts {
		if !a.IsOpen() {
			continue
		}
		if !found || a.FireTime().Before(next.FireTime()) {
			next, found = a, true
		}
	}
	return next, found
}

// DueAlerts returns the open alerts whose fire time is at or before now.
func (i *TaskInstance) DueAlerts(now Moment) []AlertState {
	if i.Status.IsTerminal() {
		return nil
	}
	var due []AlertState
	for _, a := range i.Reminders.Alerts {
		if a.IsOpen() && !a.FireTime().After(now) {
			due = append(due, a)
		}
	}
	return due
}

// Clone returns a deep copy.
func (i *TaskInstance) Clone() *TaskInstance {
	c := *i
	c.Time.End = clonePtr(i.Time.End)
	c.Time.EstimatedDuration = clonePtr(i.Time.EstimatedDuration)
	c.Metadata = i.Metadata.clone()
	c.KeyResultLinks = slices.Clone(i.KeyResultLinks)
	c.ActualStart = clonePtr(i.ActualStart)
	c.ActualEnd = clonePtr(i.ActualEnd)
	c.CompletedAt = clonePtr(i.CompletedAt)
	c.Reminders.Alerts = make([]AlertState, len(i.Reminders.Alerts))
	for n, a := range i.Reminders.Alerts {
		a.TriggeredAt = clonePtr(a.TriggeredAt)
		a.DismissedAt = clonePtr(a.DismissedAt)
		a.SnoozedUntil = clonePtr(a.SnoozedUntil)
		a.Snoozes = slices.Clone(a.Snoozes)
		c.Reminders.Alerts[n] = a
	}
	c.Events = slices.Clone(i.Events)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// MarkUpdated appends an update entry to the event log.
func (i *TaskInstance) MarkUpdated(now Moment, detail string) {
	i.record(EventUpdated, now, detail)
}
