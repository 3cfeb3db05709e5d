package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xvierd/cadence/internal/domain"
	"github.com/xvierd/cadence/internal/ports"
)

func TestInstanceService_CreateInstance(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("ad hoc instance", func(t *testing.T) {
		inst, err := f.instances.CreateInstance(ctx, CreateInstanceRequest{
			Title:  "Dentist",
			Time:   domain.InstanceTimeConfig{Scheduled: day(7, 14, 0)},
			Alerts: []domain.AlertSpec{domain.NewAlertSpec(domain.MinutesBefore(60), domain.ChannelSound, "leave now")},
		})
		require.NoError(t, err)
		assert.Empty(t, inst.TemplateID)
		assert.Equal(t, domain.StatusPending, inst.Status)
		assert.True(t, inst.Time.AllowReschedule)
		require.Len(t, inst.Reminders.Alerts, 1)
		assert.True(t, inst.Reminders.Alerts[0].ScheduledTime.Equal(day(7, 13, 0)))

		found, err := f.instances.GetInstance(ctx, inst.ID)
		require.NoError(t, err)
		assert.Equal(t, "Dentist", found.Title)
	})

	t.Run("invalid requests", func(t *testing.T) {
		before := day(7, 9, 0)
		tests := []struct {
			name string
			req  CreateInstanceRequest
		}{
			{"missing title", CreateInstanceRequest{Time: domain.InstanceTimeConfig{Scheduled: day(7, 10, 0)}}},
			{"missing time", CreateInstanceRequest{Title: "x"}},
			{"end before start", CreateInstanceRequest{Title: "x", Time: domain.InstanceTimeConfig{Scheduled: day(7, 10, 0), End: &before}}},
			{"bad alert", CreateInstanceRequest{Title: "x", Time: domain.InstanceTimeConfig{Scheduled: day(7, 10, 0)}, Alerts: []domain.AlertSpec{{Timing: domain.MinutesBefore(-5), Channel: domain.ChannelEmail}}}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.instances.CreateInstance(ctx, tt.req)
				assert.Error(t, err)
			})
		}
	})
}

func TestInstanceService_Lifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tmpl, instances := f.standup(t, 3)
	id := instances[0].ID

	f.clock.Set(day(6, 9, 2))
	inst, err := f.instances.StartInstance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, inst.Status)

	f.clock.Set(day(6, 9, 20))
	inst, err = f.instances.CompleteInstance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, inst.Status)
	d, ok := inst.ActualDuration()
	require.True(t, ok)
	assert.Equal(t, 18*time.Minute, d)

	stored, err := f.templates.GetTemplate(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Stats.CompletedInstances)

	_, err = f.instances.CompleteInstance(ctx, id)
	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)

	inst, err = f.instances.UndoComplete(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, inst.Status)
	assert.Nil(t, inst.CompletedAt)

	stored, err = f.templates.GetTemplate(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.Stats.CompletedInstances)

	inst, err = f.instances.CancelInstance(ctx, instances[1].ID, "sick day")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, inst.Status)

	_, err = f.instances.StartInstance(ctx, instances[1].ID)
	require.ErrorAs(t, err, &terr)

	_, err = f.instances.StartInstance(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrInstanceNotFound)
}

func TestInstanceService_RescheduleInstance(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tmpl, instances := f.standup(t, 2)

	t.Run("moves end and alerts and reports conflicts", func(t *testing.T) {
		result, err := f.instances.RescheduleInstance(ctx, instances[0].ID, day(7, 9, 5))
		require.NoError(t, err)
		inst := result.Instance
		assert.True(t, inst.Time.Scheduled.Equal(day(7, 9, 5)))
		assert.True(t, inst.Time.End.Equal(day(7, 9, 20)))
		assert.True(t, inst.Reminders.Alerts[0].ScheduledTime.Equal(day(7, 8, 55)))

		require.Len(t, result.Conflicts, 1)
		assert.Equal(t, instances[1].ID, result.Conflicts[0].ID)
	})

	t.Run("template policy forbids rescheduling", func(t *testing.T) {
		policy := domain.SchedulingPolicy{AllowReschedule: false}
		_, err := f.templates.UpdateTemplate(ctx, tmpl.ID, domain.TemplatePatch{Policy: &policy})
		require.NoError(t, err)

		_, err = f.instances.RescheduleInstance(ctx, instances[1].ID, day(8, 11, 0))
		var terr *domain.TransitionError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, "reschedule", terr.Action)

		inst, err := f.instances.GetInstance(ctx, instances[1].ID)
		require.NoError(t, err)
		assert.True(t, inst.Time.Scheduled.Equal(day(7, 9, 0)))
	})
}

func TestInstanceService_DeleteInstance(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tmpl, instances := f.standup(t, 3)
	_, err := f.instances.CompleteInstance(ctx, instances[0].ID)
	require.NoError(t, err)

	require.NoError(t, f.instances.DeleteInstance(ctx, instances[0].ID))

	stored, err := f.templates.GetTemplate(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Stats.TotalInstances)
	assert.Zero(t, stored.Stats.CompletedInstances)

	err = f.instances.DeleteInstance(ctx, instances[0].ID)
	assert.ErrorIs(t, err, domain.ErrInstanceNotFound)
}

func TestInstanceService_Alerts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.instances.SetSettings(Settings{MaxSnoozes: 2, DefaultSnooze: 5 * time.Minute})
	_, instances := f.standup(t, 3)
	id := instances[0].ID
	alertID := instances[0].Reminders.Alerts[0].ID

	t.Run("next reminder", func(t *testing.T) {
		next, err := f.instances.NextReminder(ctx)
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, id, next.InstanceID)
		assert.True(t, next.Alert.FireTime().Equal(day(6, 8, 50)))
	})

	t.Run("due reminders", func(t *testing.T) {
		due, err := f.instances.DueReminders(ctx)
		require.NoError(t, err)
		assert.Empty(t, due)

		f.clock.Set(day(6, 8, 52))
		due, err = f.instances.DueReminders(ctx)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, alertID, due[0].AlertID)
		assert.Equal(t, "Standup", due[0].Title)

		open, err := f.instances.OpenReminders(ctx)
		require.NoError(t, err)
		assert.Len(t, open, 3)
	})

	t.Run("snooze uses the default duration and the cap", func(t *testing.T) {
		inst, err := f.instances.SnoozeAlert(ctx, id, alertID, nil, "on a call")
		require.NoError(t, err)
		a, err := inst.Alert(alertID)
		require.NoError(t, err)
		assert.Equal(t, domain.AlertSnoozed, a.Status)
		assert.True(t, a.SnoozedUntil.Equal(day(6, 8, 57)))

		next, err := f.instances.NextReminder(ctx)
		require.NoError(t, err)
		assert.True(t, next.Alert.FireTime().Equal(day(6, 8, 57)))

		_, err = f.instances.TriggerAlert(ctx, id, alertID)
		require.NoError(t, err)

		until := day(6, 9, 30)
		_, err = f.instances.SnoozeAlert(ctx, id, alertID, &until, "")
		require.NoError(t, err)

		_, err = f.instances.TriggerAlert(ctx, id, alertID)
		require.NoError(t, err)

		_, err = f.instances.SnoozeAlert(ctx, id, alertID, nil, "")
		assert.ErrorIs(t, err, domain.ErrSnoozeLimitReached)

		inst, err = f.instances.DismissAlert(ctx, id, alertID)
		require.NoError(t, err)
		a, _ = inst.Alert(alertID)
		assert.Equal(t, domain.AlertDismissed, a.Status)
		assert.Equal(t, 2, inst.Reminders.SnoozeCount)
	})

	t.Run("unknown alert", func(t *testing.T) {
		_, err := f.instances.TriggerAlert(ctx, id, "nope")
		assert.ErrorIs(t, err, domain.ErrAlertNotFound)
	})

	t.Run("unlimited snoozes", func(t *testing.T) {
		f.instances.SetSettings(Settings{MaxSnoozes: 0})
		other := instances[1].ID
		otherAlert := instances[1].Reminders.Alerts[0].ID
		for i := 0; i < 4; i++ {
			_, err := f.instances.SnoozeAlert(ctx, other, otherAlert, nil, "")
			require.NoError(t, err, "snooze %d", i)
			_, err = f.instances.TriggerAlert(ctx, other, otherAlert)
			require.NoError(t, err)
		}
	})
}

func TestInstanceService_Conflicts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, standups := f.standup(t, 2)
	end := day(6, 9, 30)
	overlap, err := f.instances.CreateInstance(ctx, CreateInstanceRequest{
		Title: "Interview",
		Time:  domain.InstanceTimeConfig{Kind: domain.TimeRange, Scheduled: day(6, 9, 10), End: &end},
	})
	require.NoError(t, err)

	conflicts, err := f.instances.DetectConflicts(ctx, overlap.ID)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, standups[0].ID, conflicts[0].ID)

	all, err := f.instances.AllConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = f.instances.CancelInstance(ctx, overlap.ID, "")
	require.NoError(t, err)
	conflicts, err = f.instances.DetectConflicts(ctx, standups[0].ID)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	listed, err := f.instances.ListInstances(ctx, ports.OpenInstances())
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}
