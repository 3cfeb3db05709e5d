package domain

import (
	"fmt"
	"sort"
)

// Channel is the delivery route of a reminder.
type Channel string

const (
	ChannelNotification Channel = "notification"
	ChannelEmail        Channel = "email"
	ChannelSound        Channel = "sound"
)

// IsValid reports whether c is a known channel.
func (c Channel) IsValid() bool {
	switch c {
	case ChannelNotification, ChannelEmail, ChannelSound:
		return true
	default:
		return false
	}
}

// TimingKind names an AlertTiming variant.
type TimingKind string

const (
	TimingRelative TimingKind = "relative"
	TimingAbsolute TimingKind = "absolute"
)

// AlertTiming is either "N minutes before the scheduled time" or a fixed moment.
type AlertTiming struct {
	Kind          TimingKind
	MinutesBefore int
	At            Moment
}

// MinutesBefore returns a timing relative to the scheduled time.
func MinutesBefore(n int) AlertTiming {
	return AlertTiming{Kind: TimingRelative, MinutesBefore: n}
}

// AbsoluteAt returns a timing fixed at m.
func AbsoluteAt(m Moment) AlertTiming {
	return AlertTiming{Kind: TimingAbsolute, At: m}
}

// TriggerFor computes the trigger time for a task scheduled at scheduled.
func (t AlertTiming) TriggerFor(scheduled Moment) Moment {
	if t.Kind == TimingAbsolute {
		return t.At
	}
	return scheduled.AddMinutes(-t.MinutesBefore)
}

// AlertSpec is one reminder rule of a template.
type AlertSpec struct {
	ID      string
	Timing  AlertTiming
	Channel Channel
	Message string
}

// NewAlertSpec creates an alert rule with a fresh ID.
func NewAlertSpec(timing AlertTiming, channel Channel, message string) AlertSpec {
	if channel == "" {
		channel = ChannelNotification
	}
	return AlertSpec{ID: generateID(), Timing: timing, Channel: channel, Message: message}
}

// Validate checks the rule's fields.
func (s AlertSpec) Validate() error {
	switch s.Timing.Kind {
	case TimingRelative:
		if s.Timing.MinutesBefore < 0 {
			return fmt.Errorf("minutes before must not be negative: %d", s.Timing.MinutesBefore)
		}
	case TimingAbsolute:
		if s.Timing.At.IsZero() {
			return fmt.Errorf("absolute alert time is required")
		}
	default:
		return fmt.Errorf("unknown alert timing %q", s.Timing.Kind)
	}
	if !s.Channel.IsValid() {
		return fmt.Errorf("unknown alert channel %q", s.Channel)
	}
	return nil
}

// AlertStatus is the runtime state of one alert.
type AlertStatus string

const (
	AlertPending   AlertStatus = "pending"
	AlertTriggered AlertStatus = "triggered"
	AlertDismissed AlertStatus = "dismissed"
	AlertSnoozed   AlertStatus = "snoozed"
)

// SnoozeEntry records one snooze.
type SnoozeEntry struct {
	SnoozedAt Moment
	Until     Moment
	Reason    string
}

// AlertState is the runtime state of one alert on an instance.
type AlertState struct {
	ID            string
	Spec          AlertSpec
	Status        AlertStatus
	ScheduledTime Moment
	TriggeredAt   *Moment
	DismissedAt   *Moment
	SnoozedUntil  *Moment
	Snoozes       []SnoozeEntry
}

// FireTime is when the alert should next go off: the snooze end for snoozed
// alerts, the computed trigger time otherwise.
func (a AlertState) FireTime() Moment {
	if a.Status == AlertSnoozed && a.SnoozedUntil != nil {
		return *a.SnoozedUntil
	}
	return a.ScheduledTime
}

// IsOpen reports whether the alert can still go off.
func (a AlertState) IsOpen() bool {
	return a.Status == AlertPending || a.Status == AlertSnoozed
}

// ReminderConfig is the template-level reminder setup.
type ReminderConfig struct {
	Enabled bool
	Alerts  []AlertSpec
}

// ReminderState is the instance-level reminder timeline.
type ReminderState struct {
	Alerts      []AlertState
	SnoozeCount int
}

// ComputeReminderSchedule derives alert states for a task scheduled at
// scheduled. Alerts triggering at or before now are dropped; the rest are
// sorted by trigger time and start pending.
func ComputeReminderSchedule(scheduled Moment, alerts []AlertSpec, now Moment) []AlertState {
	out := make([]AlertState, 0, len(alerts))
	for _, spec := range alerts {
		trigger := spec.Timing.TriggerFor(scheduled)
		if !trigger.After(now) {
			continue
		}
		out = append(out, AlertState{
			ID:            generateID(),
			Spec:          spec,
			Status:        AlertPending,
			ScheduledTime: trigger,
			Snoozes:       []SnoozeEntry{},
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ScheduledTime.Before(out[j].ScheduledTime)
	})
	return out
}
