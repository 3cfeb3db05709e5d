package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xvierd/cadence/internal/adapters/storage"
	"github.com/xvierd/cadence/internal/domain"
	"github.com/xvierd/cadence/internal/ports"
)

// day returns a UTC moment in January 2025; the 6th is a Monday.
func day(d, hour, minute int) domain.Moment {
	return domain.NewMoment(2025, time.January, d, hour, minute, "UTC")
}

type fixture struct {
	store     ports.Storage
	clock     *domain.FixedClock
	templates *TemplateService
	instances *InstanceService
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clock := domain.NewFixedClock(day(6, 8, 0))
	return &fixture{
		store:     store,
		clock:     clock,
		templates: NewTemplateService(store, clock, zerolog.Nop()),
		instances: NewInstanceService(store, clock, zerolog.Nop()),
	}
}

func standupRequest() CreateTemplateRequest {
	end := day(6, 9, 15)
	return CreateTemplateRequest{
		Title: "Standup",
		Time: domain.TimeConfig{
			Kind:       domain.TimeRange,
			Start:      day(6, 9, 0),
			End:        &end,
			Recurrence: domain.Daily{Repeat: domain.Repeat{Interval: 1, End: domain.Never()}},
		},
		Reminders: domain.ReminderConfig{Enabled: true, Alerts: []domain.AlertSpec{
			domain.NewAlertSpec(domain.MinutesBefore(10), domain.ChannelNotification, ""),
		}},
		Activate: true,
	}
}

func (f *fixture) standup(t *testing.T, generate int) (*domain.TaskTemplate, []*domain.TaskInstance) {
	t.Helper()
	ctx := context.Background()
	tmpl, err := f.templates.CreateTemplate(ctx, standupRequest())
	require.NoError(t, err)
	if generate == 0 {
		return tmpl, nil
	}
	report, err := f.templates.GenerateInstances(ctx, tmpl.ID, GenerateRequest{Count: generate})
	require.NoError(t, err)
	require.Len(t, report.Instances, generate)
	return report.Template, report.Instances
}

func TestTemplateService_CreateTemplate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("draft by default", func(t *testing.T) {
		tmpl, err := f.templates.CreateTemplate(ctx, CreateTemplateRequest{
			Title: "Water plants",
			Time:  domain.TimeConfig{Start: day(6, 18, 0)},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TemplateDraft, tmpl.Status)
		assert.Equal(t, domain.TimeTimed, tmpl.Time.Kind)
		require.NotNil(t, tmpl.Metadata.EstimatedDuration)
		assert.Equal(t, time.Hour, *tmpl.Metadata.EstimatedDuration)

		found, err := f.templates.GetTemplate(ctx, tmpl.ID)
		require.NoError(t, err)
		assert.Equal(t, "Water plants", found.Title)
	})

	t.Run("activated on request", func(t *testing.T) {
		tmpl, err := f.templates.CreateTemplate(ctx, standupRequest())
		require.NoError(t, err)
		assert.Equal(t, domain.TemplateActive, tmpl.Status)
	})

	t.Run("invalid configuration", func(t *testing.T) {
		_, err := f.templates.CreateTemplate(ctx, CreateTemplateRequest{
			Time: domain.TimeConfig{
				Start:      day(6, 9, 0),
				Recurrence: domain.Daily{Repeat: domain.Repeat{Interval: 0}},
			},
		})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		fields := []string{}
		for _, fe := range verr.Result.Errors {
			fields = append(fields, fe.Field)
		}
		assert.Contains(t, fields, "title")
		assert.Contains(t, fields, "time.recurrence")
	})
}

func TestTemplateService_ListAndSearch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.standup(t, 0)
	_, err := f.templates.CreateTemplate(ctx, CreateTemplateRequest{Title: "Pay rent", Time: domain.TimeConfig{Start: day(6, 9, 0)}})
	require.NoError(t, err)

	all, err := f.templates.ListTemplates(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active := domain.TemplateActive
	only, err := f.templates.ListTemplates(ctx, &active)
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "Standup", only[0].Title)

	found, err := f.templates.SearchTemplates(ctx, "rent")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Pay rent", found[0].Title)
}

func TestTemplateService_Transitions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tmpl, err := f.templates.CreateTemplate(ctx, CreateTemplateRequest{Title: "Read", Time: domain.TimeConfig{Start: day(6, 21, 0)}})
	require.NoError(t, err)

	_, err = f.templates.PauseTemplate(ctx, tmpl.ID)
	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "pause", terr.Action)

	got, err := f.templates.ActivateTemplate(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TemplateActive, got.Status)

	got, err = f.templates.PauseTemplate(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TemplatePaused, got.Status)

	_, err = f.templates.GenerateInstances(ctx, tmpl.ID, GenerateRequest{Count: 1})
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "generate", terr.Action)

	got, err = f.templates.ArchiveTemplate(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TemplateArchived, got.Status)

	stored, err := f.templates.GetTemplate(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TemplateArchived, stored.Status)

	_, err = f.templates.ActivateTemplate(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
}

func TestTemplateService_GenerateInstances(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tmpl, instances := f.standup(t, 5)
	for i, inst := range instances {
		assert.True(t, inst.Time.Scheduled.Equal(day(6+i, 9, 0)), "instance %d at %s", i, inst.Time.Scheduled)
		assert.True(t, inst.Time.End.Equal(day(6+i, 9, 15)))
		require.Len(t, inst.Reminders.Alerts, 1)
		assert.True(t, inst.Reminders.Alerts[0].ScheduledTime.Equal(day(6+i, 8, 50)))
	}

	stored, err := f.templates.GetTemplate(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Stats.TotalInstances)
	require.NotNil(t, stored.Stats.LastGeneratedAt)

	t.Run("existing occurrences are not duplicated", func(t *testing.T) {
		report, err := f.templates.GenerateInstances(ctx, tmpl.ID, GenerateRequest{Count: 7})
		require.NoError(t, err)
		assert.Len(t, report.Instances, 2)
		assert.Equal(t, 5, report.Existing)
		assert.Equal(t, 7, report.Template.Stats.TotalInstances)
	})

	t.Run("range", func(t *testing.T) {
		from, to := day(13, 0, 0), day(15, 23, 59)
		report, err := f.templates.GenerateInstances(ctx, tmpl.ID, GenerateRequest{From: &from, To: &to})
		require.NoError(t, err)
		require.Len(t, report.Instances, 3)
		assert.True(t, report.Instances[0].Time.Scheduled.Equal(day(13, 9, 0)))
	})

	t.Run("default count", func(t *testing.T) {
		other, err := f.templates.CreateTemplate(ctx, CreateTemplateRequest{
			Title:          "Stretch",
			Time:           domain.TimeConfig{Start: day(6, 15, 0), Recurrence: domain.Daily{Repeat: domain.Repeat{Interval: 1, End: domain.Never()}}},
			KeyResultLinks: []string{"kr-health"},
			Activate:       true,
		})
		require.NoError(t, err)
		f.templates.SetSettings(Settings{MaxInstances: 4})
		report, err := f.templates.GenerateInstances(ctx, other.ID, GenerateRequest{})
		require.NoError(t, err)
		assert.Len(t, report.Instances, 4)
		assert.Equal(t, []string{"kr-health"}, report.Instances[0].KeyResultLinks)
	})
}

func TestTemplateService_GenerateReportsConflicts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, standups := f.standup(t, 1)

	end := day(6, 9, 40)
	review, err := f.templates.CreateTemplate(ctx, CreateTemplateRequest{
		Title:    "Code review",
		Time:     domain.TimeConfig{Kind: domain.TimeRange, Start: day(6, 9, 10), End: &end},
		Activate: true,
	})
	require.NoError(t, err)

	report, err := f.templates.GenerateInstances(ctx, review.ID, GenerateRequest{Count: 3})
	require.NoError(t, err)
	require.Len(t, report.Instances, 1, "a one-off template yields one instance")

	conflicts := report.Conflicts[report.Instances[0].ID]
	require.Len(t, conflicts, 1)
	assert.Equal(t, standups[0].ID, conflicts[0].ID)
}

func TestTemplateService_GenerateSkipsWeekends(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	req := standupRequest()
	req.Policy = &domain.SchedulingPolicy{AllowReschedule: true, SkipWeekends: true}
	tmpl, err := f.templates.CreateTemplate(ctx, req)
	require.NoError(t, err)

	report, err := f.templates.GenerateInstances(ctx, tmpl.ID, GenerateRequest{Count: 6})
	require.NoError(t, err)
	require.Len(t, report.Instances, 6)
	assert.Equal(t, 2, report.Skipped)
	assert.True(t, report.Instances[5].Time.Scheduled.Equal(day(13, 9, 0)))
}

func TestTemplateService_UpdateTemplate_CancelledInstances(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tmpl, instances := f.standup(t, 3)
	_, err := f.instances.CancelInstance(ctx, instances[1].ID, "offsite")
	require.NoError(t, err)
	_, err = f.instances.CompleteInstance(ctx, instances[2].ID)
	require.NoError(t, err)

	desc := "Bring blockers"
	result, err := f.templates.UpdateTemplate(ctx, tmpl.ID, domain.TemplatePatch{Description: &desc})
	require.NoError(t, err)
	assert.Len(t, result.Updated, 2)

	cancelled, err := f.instances.GetInstance(ctx, instances[1].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, "Bring blockers", cancelled.Description)

	completed, err := f.instances.GetInstance(ctx, instances[2].ID)
	require.NoError(t, err)
	assert.Empty(t, completed.Description)
}

func TestTemplateService_UpdateTemplate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tmpl, instances := f.standup(t, 3)
	_, err := f.instances.StartInstance(ctx, instances[0].ID)
	require.NoError(t, err)

	t.Run("title reaches pending instances only", func(t *testing.T) {
		title := "Daily sync"
		result, err := f.templates.UpdateTemplate(ctx, tmpl.ID, domain.TemplatePatch{Title: &title})
		require.NoError(t, err)
		assert.True(t, result.Changes.Title)
		assert.False(t, result.Changes.TimeConfig)
		assert.Len(t, result.Updated, 2)

		started, err := f.instances.GetInstance(ctx, instances[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "Standup", started.Title)

		pending, err := f.instances.GetInstance(ctx, instances[1].ID)
		require.NoError(t, err)
		assert.Equal(t, "Daily sync", pending.Title)
	})

	t.Run("time change moves every open instance", func(t *testing.T) {
		end := day(6, 10, 30)
		tc := domain.TimeConfig{
			Kind:       domain.TimeRange,
			Start:      day(6, 10, 0),
			End:        &end,
			Recurrence: domain.Daily{Repeat: domain.Repeat{Interval: 1, End: domain.Never()}},
		}
		result, err := f.templates.UpdateTemplate(ctx, tmpl.ID, domain.TemplatePatch{Time: &tc})
		require.NoError(t, err)
		assert.Len(t, result.Updated, 3)

		for i, inst := range instances {
			got, err := f.instances.GetInstance(ctx, inst.ID)
			require.NoError(t, err)
			assert.True(t, got.Time.Scheduled.Equal(day(6+i, 10, 0)), "instance %d at %s", i, got.Time.Scheduled)
			assert.True(t, got.Time.End.Equal(day(6+i, 10, 30)))
		}
	})

	t.Run("no-op edit touches nothing", func(t *testing.T) {
		desc := ""
		result, err := f.templates.UpdateTemplate(ctx, tmpl.ID, domain.TemplatePatch{Description: &desc})
		require.NoError(t, err)
		assert.False(t, result.Changes.Any())
		assert.Empty(t, result.Updated)
	})

	t.Run("invalid edit is rejected", func(t *testing.T) {
		blank := "  "
		_, err := f.templates.UpdateTemplate(ctx, tmpl.ID, domain.TemplatePatch{Title: &blank})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)

		stored, err := f.templates.GetTemplate(ctx, tmpl.ID)
		require.NoError(t, err)
		assert.Equal(t, "Daily sync", stored.Title)
	})
}

func TestTemplateService_DeleteTemplate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("unused template", func(t *testing.T) {
		tmpl, _ := f.standup(t, 0)
		removed, err := f.templates.DeleteTemplate(ctx, tmpl.ID, false)
		require.NoError(t, err)
		assert.Zero(t, removed)
	})

	t.Run("template with instances needs force", func(t *testing.T) {
		tmpl, _ := f.standup(t, 3)

		_, err := f.templates.DeleteTemplate(ctx, tmpl.ID, false)
		var terr *domain.TransitionError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, "delete", terr.Action)

		removed, err := f.templates.DeleteTemplate(ctx, tmpl.ID, true)
		require.NoError(t, err)
		assert.Equal(t, 3, removed)

		_, err = f.templates.GetTemplate(ctx, tmpl.ID)
		assert.True(t, errors.Is(err, domain.ErrTemplateNotFound))
		left, err := f.instances.ListInstances(ctx, ports.InstanceFilter{TemplateID: tmpl.ID})
		require.NoError(t, err)
		assert.Empty(t, left)
	})
}
