package schedule

import (
	"slices"
	"strings"

	"github.com/xvierd/cadence/internal/domain"
)

// TemplateChanges classifies a template edit by facet.
type TemplateChanges struct {
	Title          bool
	Description    bool
	TimeConfig     bool
	ReminderConfig bool
}

// Any reports whether at least one facet changed.
func (c TemplateChanges) Any() bool {
	return c.Title || c.Description || c.TimeConfig || c.ReminderConfig
}

// String lists the changed facets, e.g. "title,time".
func (c TemplateChanges) String() string {
	var parts []string
	if c.Title {
		parts = append(parts, "title")
	}
	if c.Description {
		parts = append(parts, "description")
	}
	if c.TimeConfig {
		parts = append(parts, "time")
	}
	if c.ReminderConfig {
		parts = append(parts, "reminders")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// DiffTemplates compares two versions of the same template.
func DiffTemplates(before, after *domain.TaskTemplate) TemplateChanges {
	return TemplateChanges{
		Title:          before.Title != after.Title,
		Description:    before.Description != after.Description,
		TimeConfig:     !timeConfigEqual(before.Time, after.Time),
		ReminderConfig: !reminderConfigEqual(before.Reminders, after.Reminders),
	}
}

// Propagate re-applies the changed facets of t to its instances and returns
// the instances that were modified. Titles only reach pending instances;
// the other facets reach every instance that is not completed, cancelled
// ones included.
// Changed reminders replace the alert set with a freshly computed one.
func Propagate(changes TemplateChanges, t *domain.TaskTemplate, instances []*domain.TaskInstance, now domain.Moment) []*domain.TaskInstance {
	updated := []*domain.TaskInstance{}
	if !changes.Any() {
		return updated
	}
	for _, inst := range instances {
		if inst.TemplateID != t.ID || inst.Status == domain.StatusCompleted {
			continue
		}
		touched := false
		if changes.Title && inst.Status == domain.StatusPending && inst.Title != t.Title {
			inst.Title = t.Title
			inst.MarkUpdated(now, "title")
			touched = true
		}
		if changes.Description && inst.Description != t.Description {
			inst.Description = t.Description
			inst.MarkUpdated(now, "description")
			touched = true
		}
		if changes.TimeConfig {
			inst.ApplyTemplateTime(t.Time, now)
			touched = true
		}
		if changes.ReminderConfig {
			var alerts []domain.AlertState
			if t.Reminders.Enabled {
				alerts = domain.ComputeReminderSchedule(inst.Time.Scheduled, t.Reminders.Alerts, now)
			} else {
				alerts = []domain.AlertState{}
			}
			inst.ReplaceReminders(alerts, now)
			touched = true
		}
		if touched {
			updated = append(updated, inst)
		}
	}
	return updated
}

func momentPtrEqual(a, b *domain.Moment) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b) && a.IsAllDay() == b.IsAllDay()
}

func timeConfigEqual(a, b domain.TimeConfig) bool {
	return a.Kind == b.Kind &&
		a.Timezone == b.Timezone &&
		a.Start.Equal(b.Start) &&
		a.Start.IsAllDay() == b.Start.IsAllDay() &&
		momentPtrEqual(a.End, b.End) &&
		ruleEqual(a.Recurrence, b.Recurrence)
}

func endEqual(a, b domain.EndCondition) bool {
	return a.Kind == b.Kind && a.Count == b.Count && a.Until.Equal(b.Until)
}

func ruleEqual(a, b domain.RecurrenceRule) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() || !endEqual(a.Termination(), b.Termination()) {
		return false
	}
	switch ra := a.(type) {
	case domain.NoRecurrence:
		return true
	case domain.Daily:
		return ra.Interval == b.(domain.Daily).Interval
	case domain.Weekly:
		rb := b.(domain.Weekly)
		return ra.Interval == rb.Interval && slices.Equal(ra.Weekdays, rb.Weekdays)
	case domain.Monthly:
		rb := b.(domain.Monthly)
		return ra.Interval == rb.Interval && slices.Equal(ra.Days, rb.Days) && slices.Equal(ra.NthWeekdays, rb.NthWeekdays)
	case domain.Yearly:
		return ra.Interval == b.(domain.Yearly).Interval
	case domain.Custom:
		rb := b.(domain.Custom)
		return ra.Interval == rb.Interval && ra.Expression == rb.Expression
	default:
		return false
	}
}

func reminderConfigEqual(a, b domain.ReminderConfig) bool {
	if a.Enabled != b.Enabled || len(a.Alerts) != len(b.Alerts) {
		return false
	}
	for i := range a.Alerts {
		x, y := a.Alerts[i], b.Alerts[i]
		if x.Channel != y.Channel || x.Message != y.Message ||
			x.Timing.Kind != y.Timing.Kind ||
			x.Timing.MinutesBefore != y.Timing.MinutesBefore ||
			!x.Timing.At.Equal(y.Timing.At) {
			return false
		}
	}
	return true
}
