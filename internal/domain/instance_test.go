package domain

import (
	"errors"
	"testing"
	"time"
)

func newTestInstance() *TaskInstance {
	end := utc(2025, 1, 6, 10, 0)
	inst := NewInstance("tmpl-1", "Write report", InstanceTimeConfig{
		Kind:            TimeRange,
		Scheduled:       utc(2025, 1, 6, 9, 0),
		End:             &end,
		AllowReschedule: true,
	}, utc(2025, 1, 1, 0, 0))
	inst.Reminders.Alerts = ComputeReminderSchedule(inst.Time.Scheduled, []AlertSpec{
		NewAlertSpec(MinutesBefore(30), ChannelNotification, ""),
		NewAlertSpec(MinutesBefore(60), ChannelSound, ""),
	}, utc(2025, 1, 1, 0, 0))
	return inst
}

func TestTaskInstance_Transitions(t *testing.T) {
	now := utc(2025, 1, 6, 9, 5)
	tests := []struct {
		name    string
		from    InstanceStatus
		action  func(*TaskInstance) error
		want    InstanceStatus
		wantErr bool
	}{
		{"start pending", StatusPending, func(i *TaskInstance) error { return i.Start(now) }, StatusInProgress, false},
		{"start in progress", StatusInProgress, func(i *TaskInstance) error { return i.Start(now) }, StatusInProgress, true},
		{"start completed", StatusCompleted, func(i *TaskInstance) error { return i.Start(now) }, StatusCompleted, true},
		{"start cancelled", StatusCancelled, func(i *TaskInstance) error { return i.Start(now) }, StatusCancelled, true},
		{"complete pending", StatusPending, func(i *TaskInstance) error { return i.Complete(now) }, StatusCompleted, false},
		{"complete in progress", StatusInProgress, func(i *TaskInstance) error { return i.Complete(now) }, StatusCompleted, false},
		{"complete completed", StatusCompleted, func(i *TaskInstance) error { return i.Complete(now) }, StatusCompleted, true},
		{"complete cancelled", StatusCancelled, func(i *TaskInstance) error { return i.Complete(now) }, StatusCancelled, true},
		{"cancel pending", StatusPending, func(i *TaskInstance) error { return i.Cancel(now, "") }, StatusCancelled, false},
		{"cancel in progress", StatusInProgress, func(i *TaskInstance) error { return i.Cancel(now, "") }, StatusCancelled, false},
		{"cancel completed", StatusCompleted, func(i *TaskInstance) error { return i.Cancel(now, "") }, StatusCompleted, true},
		{"cancel cancelled", StatusCancelled, func(i *TaskInstance) error { return i.Cancel(now, "") }, StatusCancelled, true},
		{"undo pending", StatusPending, func(i *TaskInstance) error { return i.UndoComplete(now) }, StatusPending, true},
		{"undo cancelled", StatusCancelled, func(i *TaskInstance) error { return i.UndoComplete(now) }, StatusCancelled, true},
		{"undo completed", StatusCompleted, func(i *TaskInstance) error { return i.UndoComplete(now) }, StatusInProgress, false},
		{"reschedule cancelled", StatusCancelled, func(i *TaskInstance) error {
			return i.Reschedule(utc(2025, 1, 7, 9, 0), now)
		}, StatusCancelled, true},
		{"reschedule completed", StatusCompleted, func(i *TaskInstance) error {
			return i.Reschedule(utc(2025, 1, 7, 9, 0), now)
		}, StatusCompleted, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := newTestInstance()
			inst.Status = tt.from

			err := tt.action(inst)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var te *TransitionError
				if !errors.As(err, &te) {
					t.Errorf("expected TransitionError, got %T", err)
				}
			}
			if inst.Status != tt.want {
				t.Errorf("status = %s, want %s", inst.Status, tt.want)
			}
		})
	}
}

func TestTaskInstance_CompleteAndUndo(t *testing.T) {
	inst := newTestInstance()
	if err := inst.Start(utc(2025, 1, 6, 9, 0)); err != nil {
		t.Fatal(err)
	}
	if err := inst.Complete(utc(2025, 1, 6, 9, 45)); err != nil {
		t.Fatal(err)
	}
	if d, ok := inst.ActualDuration(); !ok || d != 45*time.Minute {
		t.Errorf("ActualDuration() = %v, %v, want 45m", d, ok)
	}

	before := inst.Clone()
	if err := inst.UndoComplete(utc(2025, 1, 6, 10, 0)); err != nil {
		t.Fatal(err)
	}

	if inst.Status != StatusInProgress {
		t.Errorf("status = %s, want in_progress", inst.Status)
	}
	if inst.CompletedAt != nil || inst.ActualEnd != nil {
		t.Error("undo should clear completedAt and actualEnd")
	}
	if inst.ActualStart == nil || !inst.ActualStart.Equal(*before.ActualStart) {
		t.Error("undo should keep actualStart")
	}
	if inst.Title != before.Title || !inst.Time.Scheduled.Equal(before.Time.Scheduled) {
		t.Error("undo changed unrelated fields")
	}
	if got := inst.Events[len(inst.Events)-1].Type; got != EventUndone {
		t.Errorf("last event = %s, want undone", got)
	}
}

func TestTaskInstance_Reschedule(t *testing.T) {
	now := utc(2025, 1, 5, 12, 0)

	t.Run("moves end and relative alerts", func(t *testing.T) {
		inst := newTestInstance()
		if err := inst.Reschedule(utc(2025, 1, 7, 14, 0), now); err != nil {
			t.Fatal(err)
		}
		if !inst.Time.End.Equal(utc(2025, 1, 7, 15, 0)) {
			t.Errorf("end = %s, want 15:00 next day", inst.Time.End)
		}
		if !inst.Reminders.Alerts[0].ScheduledTime.Equal(utc(2025, 1, 7, 13, 0)) {
			t.Errorf("first alert = %s, want 13:00", inst.Reminders.Alerts[0].ScheduledTime)
		}
		if !inst.Time.BaseScheduled.Equal(utc(2025, 1, 6, 9, 0)) {
			t.Error("reschedule must keep the base scheduled time")
		}
	})

	t.Run("disallowed by flag", func(t *testing.T) {
		inst := newTestInstance()
		inst.Time.AllowReschedule = false
		if ok, reason := inst.CanReschedule(utc(2025, 1, 7, 9, 0)); ok || reason == "" {
			t.Error("expected reschedule to be refused")
		}
	})

	t.Run("max delay window", func(t *testing.T) {
		inst := newTestInstance()
		inst.Time.MaxDelayDays = 2
		if ok, _ := inst.CanReschedule(utc(2025, 1, 8, 9, 0)); !ok {
			t.Error("exactly at the window edge should be allowed")
		}
		if ok, _ := inst.CanReschedule(utc(2025, 1, 8, 9, 1)); ok {
			t.Error("past the window should be refused")
		}
	})

	t.Run("completed", func(t *testing.T) {
		inst := newTestInstance()
		inst.Status = StatusCompleted
		if err := inst.Reschedule(utc(2025, 1, 7, 9, 0), now); err == nil {
			t.Error("expected error for completed instance")
		}
	})
}

func TestInstanceStatus_IsValid(t *testing.T) {
	for _, s := range []InstanceStatus{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled} {
		if !s.IsValid() {
			t.Errorf("%s should be valid", s)
		}
	}
	for _, s := range []InstanceStatus{StatusOverdue, "done", ""} {
		if s.IsValid() {
			t.Errorf("%q should not be valid", s)
		}
	}
}

func TestTaskInstance_EffectiveStatus(t *testing.T) {
	tests := []struct {
		name   string
		status InstanceStatus
		now    Moment
		want   InstanceStatus
	}{
		{"pending before", StatusPending, utc(2025, 1, 6, 8, 0), StatusPending},
		{"pending after scheduled", StatusPending, utc(2025, 1, 6, 9, 1), StatusOverdue},
		{"in progress within window", StatusInProgress, utc(2025, 1, 6, 9, 30), StatusInProgress},
		{"in progress past end", StatusInProgress, utc(2025, 1, 6, 10, 1), StatusOverdue},
		{"completed never overdue", StatusCompleted, utc(2026, 1, 1, 0, 0), StatusCompleted},
		{"cancelled never overdue", StatusCancelled, utc(2026, 1, 1, 0, 0), StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := newTestInstance()
			inst.Status = tt.status
			if got := inst.EffectiveStatus(tt.now); got != tt.want {
				t.Errorf("EffectiveStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTaskInstance_EffectiveStatus_AllDay(t *testing.T) {
	inst := NewInstance("tmpl-1", "Review", InstanceTimeConfig{
		Kind:      TimeAllDay,
		Scheduled: NewDate(2025, 1, 6, "UTC"),
	}, utc(2025, 1, 1, 0, 0))

	tests := []struct {
		name string
		now  Moment
		want InstanceStatus
	}{
		{"start of its day", utc(2025, 1, 6, 0, 1), StatusPending},
		{"late in its day", utc(2025, 1, 6, 23, 59), StatusPending},
		{"next day", utc(2025, 1, 7, 0, 0), StatusOverdue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := inst.EffectiveStatus(tt.now); got != tt.want {
				t.Errorf("EffectiveStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTaskInstance_EffectiveInterval(t *testing.T) {
	inst := newTestInstance()
	inst.Time.End = nil

	if _, end := inst.EffectiveInterval(); !end.Equal(utc(2025, 1, 6, 10, 0)) {
		t.Errorf("default end = %s, want one hour after start", end)
	}
	est := 15 * time.Minute
	inst.Time.EstimatedDuration = &est
	if _, end := inst.EffectiveInterval(); !end.Equal(utc(2025, 1, 6, 9, 15)) {
		t.Errorf("estimated end = %s, want 09:15", end)
	}
}

func TestTaskInstance_Alerts(t *testing.T) {
	now := utc(2025, 1, 6, 8, 0)

	t.Run("snooze then dismiss", func(t *testing.T) {
		inst := newTestInstance()
		id := inst.Reminders.Alerts[0].ID

		if err := inst.TriggerAlert(id, now); err != nil {
			t.Fatal(err)
		}
		if err := inst.SnoozeAlert(id, now.AddMinutes(10), "busy", now); err != nil {
			t.Fatal(err)
		}
		a, _ := inst.Alert(id)
		if a.Status != AlertSnoozed || len(a.Snoozes) != 1 || a.Snoozes[0].Reason != "busy" {
			t.Errorf("unexpected alert state %+v", a)
		}
		if inst.Reminders.SnoozeCount != 1 {
			t.Errorf("SnoozeCount = %d, want 1", inst.Reminders.SnoozeCount)
		}
		if err := inst.DismissAlert(id, now.AddMinutes(5)); err != nil {
			t.Fatal(err)
		}
		if a, _ := inst.Alert(id); a.Status != AlertDismissed || a.DismissedAt == nil {
			t.Errorf("expected dismissed alert, got %+v", a)
		}
	})

	t.Run("state machine has no snooze cap", func(t *testing.T) {
		inst := newTestInstance()
		id := inst.Reminders.Alerts[0].ID
		for n := 0; n < 10; n++ {
			if err := inst.SnoozeAlert(id, now.AddMinutes(n+1), "", now); err != nil {
				t.Fatalf("snooze %d: %v", n, err)
			}
			if err := inst.TriggerAlert(id, now.AddMinutes(n+1)); err != nil {
				t.Fatalf("trigger %d: %v", n, err)
			}
		}
		if inst.Reminders.SnoozeCount != 10 {
			t.Errorf("SnoozeCount = %d, want 10", inst.Reminders.SnoozeCount)
		}
	})

	t.Run("invalid transitions", func(t *testing.T) {
		inst := newTestInstance()
		id := inst.Reminders.Alerts[0].ID
		if err := inst.DismissAlert(id, now); err == nil {
			t.Error("dismissing a pending alert should fail")
		}
		if err := inst.SnoozeAlert(id, now, "", now); err == nil {
			t.Error("snoozing into the past should fail")
		}
		if err := inst.TriggerAlert("missing", now); !errors.Is(err, ErrAlertNotFound) {
			t.Errorf("expected ErrAlertNotFound, got %v", err)
		}
	})

	t.Run("next reminder", func(t *testing.T) {
		inst := newTestInstance()
		next, ok := inst.NextReminder()
		if !ok || !next.ScheduledTime.Equal(utc(2025, 1, 6, 8, 0)) {
			t.Fatalf("NextReminder() = %+v, %v", next, ok)
		}
		_ = inst.TriggerAlert(next.ID, now)
		next, ok = inst.NextReminder()
		if !ok || !next.ScheduledTime.Equal(utc(2025, 1, 6, 8, 30)) {
			t.Errorf("NextReminder() after trigger = %+v, %v", next, ok)
		}
		_ = inst.SnoozeAlert(next.ID, utc(2025, 1, 6, 8, 10), "", now)
		next, _ = inst.NextReminder()
		if !next.FireTime().Equal(utc(2025, 1, 6, 8, 10)) {
			t.Errorf("snoozed alert should fire at 08:10, got %s", next.FireTime())
		}
		for _, a := range inst.Reminders.Alerts {
			_ = inst.DismissAlert(a.ID, now)
		}
		if _, ok := inst.NextReminder(); ok {
			t.Error("expected no reminder once all are closed")
		}
	})

	t.Run("due alerts", func(t *testing.T) {
		inst := newTestInstance()
		if due := inst.DueAlerts(utc(2025, 1, 6, 8, 0)); len(due) != 1 {
			t.Errorf("DueAlerts() = %d, want 1", len(due))
		}
		inst.Status = StatusCancelled
		if due := inst.DueAlerts(utc(2025, 1, 6, 9, 0)); len(due) != 0 {
			t.Error("cancelled instance should have no due alerts")
		}
	})
}

func TestInstantiateTemplate(t *testing.T) {
	tmpl := newTestTemplate()
	tmpl.Description = "Sync with the team"
	tmpl.Time.Kind = TimeRange
	end := tmpl.Time.Start.AddMinutes(15)
	tmpl.Time.End = &end
	tmpl.Reminders = ReminderConfig{Enabled: true, Alerts: []AlertSpec{NewAlertSpec(MinutesBefore(5), ChannelNotification, "")}}
	tmpl.KeyResultLinks = []string{"kr-7"}

	occurrence := utc(2025, 1, 9, 9, 0)
	inst := InstantiateTemplate(tmpl, occurrence, utc(2025, 1, 1, 0, 0))

	if inst.TemplateID != tmpl.ID || inst.Title != tmpl.Title || inst.Description != tmpl.Description {
		t.Errorf("instance did not inherit template fields: %+v", inst)
	}
	if !inst.Time.End.Equal(utc(2025, 1, 9, 9, 15)) {
		t.Errorf("end = %s, want 09:15", inst.Time.End)
	}
	if len(inst.Reminders.Alerts) != 1 || !inst.Reminders.Alerts[0].ScheduledTime.Equal(utc(2025, 1, 9, 8, 55)) {
		t.Errorf("unexpected alerts %+v", inst.Reminders.Alerts)
	}
	tmpl.KeyResultLinks[0] = "changed"
	if inst.KeyResultLinks[0] != "kr-7" {
		t.Error("instance shares key result links with its template")
	}
	if inst.Events[0].Type != EventCreated {
		t.Errorf("first event = %s, want created", inst.Events[0].Type)
	}
}
