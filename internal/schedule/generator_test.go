package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xvierd/cadence/internal/domain"
)

func jan(day, hour, minute int) domain.Moment {
	return domain.NewMoment(2025, time.January, day, hour, minute, "UTC")
}

func newTemplate(start domain.Moment, rule domain.RecurrenceRule) *domain.TaskTemplate {
	return domain.NewTemplate("Focus block", domain.TimeConfig{
		Kind:       domain.TimeTimed,
		Start:      start,
		Recurrence: rule,
		Timezone:   "UTC",
	}, jan(1, 0, 0))
}

func scheduledTimes(instances []*domain.TaskInstance) []domain.Moment {
	out := make([]domain.Moment, 0, len(instances))
	for _, inst := range instances {
		out = append(out, inst.Time.Scheduled)
	}
	return out
}

func assertMoments(t *testing.T, want, got []domain.Moment) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Equal(got[i]), "occurrence %d: got %s, want %s", i, got[i], want[i])
	}
}

func every(n int, end domain.EndCondition) domain.Repeat {
	return domain.Repeat{Interval: n, End: end}
}

func TestGenerateBoundedCount_WeekdaysFromTuesday(t *testing.T) {
	tmpl := newTemplate(jan(6, 9, 0), domain.Weekly{
		Repeat:   every(1, domain.Never()),
		Weekdays: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
	})
	gen := NewGenerator(domain.NewFixedClock(jan(7, 10, 0)), DefaultOptions())

	res := gen.GenerateBoundedCount(tmpl, 6)

	assertMoments(t, []domain.Moment{
		jan(8, 9, 0), jan(10, 9, 0), jan(13, 9, 0),
		jan(15, 9, 0), jan(17, 9, 0), jan(20, 9, 0),
	}, scheduledTimes(res.Instances))
	assert.False(t, res.Truncated)
	for _, inst := range res.Instances {
		assert.Equal(t, tmpl.ID, inst.TemplateID)
		assert.Equal(t, domain.StatusPending, inst.Status)
	}
}

func TestGenerateBoundedCount(t *testing.T) {
	tests := []struct {
		name string
		rule domain.RecurrenceRule
		base domain.Moment
		now  domain.Moment
		max  int
		want []domain.Moment
	}{
		{
			name: "one-off in the past still yields one",
			rule: domain.NoRecurrence{},
			base: jan(2, 9, 0),
			now:  jan(20, 0, 0),
			max:  5,
			want: []domain.Moment{jan(2, 9, 0)},
		},
		{
			name: "count limit measured from base",
			rule: domain.Daily{Repeat: every(1, domain.AfterCount(5))},
			base: jan(1, 9, 0),
			now:  jan(3, 12, 0),
			max:  10,
			want: []domain.Moment{jan(4, 9, 0), jan(5, 9, 0)},
		},
		{
			name: "until date is inclusive",
			rule: domain.Daily{Repeat: every(3, domain.UntilDate(jan(10, 9, 0)))},
			base: jan(1, 9, 0),
			now:  jan(1, 0, 0),
			max:  10,
			want: []domain.Moment{jan(1, 9, 0), jan(4, 9, 0), jan(7, 9, 0), jan(10, 9, 0)},
		},
		{
			name: "occurrence equal to now is kept",
			rule: domain.Daily{Repeat: every(1, domain.Never())},
			base: jan(1, 9, 0),
			now:  jan(5, 9, 0),
			max:  2,
			want: []domain.Moment{jan(5, 9, 0), jan(6, 9, 0)},
		},
		{
			name: "monthly clamps the 31st",
			rule: domain.Monthly{Repeat: every(1, domain.Never())},
			base: jan(31, 10, 0),
			now:  jan(1, 0, 0),
			max:  4,
			want: []domain.Moment{
				jan(31, 10, 0),
				domain.NewMoment(2025, time.February, 28, 10, 0, "UTC"),
				domain.NewMoment(2025, time.March, 31, 10, 0, "UTC"),
				domain.NewMoment(2025, time.April, 30, 10, 0, "UTC"),
			},
		},
		{
			name: "zero max",
			rule: domain.Daily{Repeat: every(1, domain.Never())},
			base: jan(1, 9, 0),
			now:  jan(1, 0, 0),
			max:  0,
			want: []domain.Moment{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := NewGenerator(domain.NewFixedClock(tt.now), DefaultOptions())
			res := gen.GenerateBoundedCount(newTemplate(tt.base, tt.rule), tt.max)
			assertMoments(t, tt.want, scheduledTimes(res.Instances))
		})
	}
}

func TestGenerateBoundedCount_Truncated(t *testing.T) {
	tmpl := newTemplate(jan(1, 9, 0), domain.Daily{Repeat: every(1, domain.Never())})
	gen := NewGenerator(domain.NewFixedClock(jan(1, 0, 0)), DefaultOptions())

	res := gen.GenerateBoundedCount(tmpl, 5000)

	assert.True(t, res.Truncated)
	assert.Len(t, res.Instances, domain.MaxGenerationIterations)
	assert.Equal(t, domain.MaxGenerationIterations, res.Iterations)
}

func TestGenerate_MisconfiguredRule(t *testing.T) {
	zero := every(0, domain.Never())
	tests := []struct {
		name string
		rule domain.RecurrenceRule
	}{
		{"daily", domain.Daily{Repeat: zero}},
		{"weekly", domain.Weekly{Repeat: zero, Weekdays: []time.Weekday{time.Monday}}},
		{"monthly", domain.Monthly{Repeat: zero}},
		{"missing rule", nil},
	}
	gen := NewGenerator(domain.NewFixedClock(jan(1, 0, 0)), DefaultOptions())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := newTemplate(jan(6, 9, 0), domain.Daily{Repeat: every(1, domain.Never())})
			tmpl.Time.Recurrence = tt.rule

			res := gen.GenerateBoundedCount(tmpl, 5)
			assert.Empty(t, res.Instances)
			assert.Error(t, res.Invalid)
			assert.False(t, res.Truncated)

			res = gen.GenerateInRange(tmpl, jan(1, 0, 0), jan(31, 0, 0))
			assert.Empty(t, res.Instances)
			assert.Error(t, res.Invalid)
		})
	}
}

func TestGenerateBoundedCount_KeepsBaseDuration(t *testing.T) {
	tmpl := newTemplate(jan(6, 9, 0), domain.Daily{Repeat: every(1, domain.Never())})
	end := jan(6, 9, 30)
	tmpl.Time.Kind = domain.TimeRange
	tmpl.Time.End = &end
	tmpl.Reminders = domain.ReminderConfig{
		Enabled: true,
		Alerts:  []domain.AlertSpec{domain.NewAlertSpec(domain.MinutesBefore(30), domain.ChannelNotification, "")},
	}
	gen := NewGenerator(domain.NewFixedClock(jan(6, 8, 45)), DefaultOptions())

	res := gen.GenerateBoundedCount(tmpl, 3)

	require.Len(t, res.Instances, 3)
	for _, inst := range res.Instances {
		require.NotNil(t, inst.Time.End)
		assert.Equal(t, 30*time.Minute, inst.Time.End.Sub(inst.Time.Scheduled))
	}
	assert.Empty(t, res.Instances[0].Reminders.Alerts, "alert at 08:30 is already past")
	assert.Len(t, res.Instances[1].Reminders.Alerts, 1)
}

func TestGenerateBoundedCount_Policy(t *testing.T) {
	t.Run("skip weekends", func(t *testing.T) {
		tmpl := newTemplate(jan(6, 9, 0), domain.Daily{Repeat: every(1, domain.Never())})
		tmpl.Policy.SkipWeekends = true
		gen := NewGenerator(domain.NewFixedClock(jan(5, 0, 0)), DefaultOptions())

		res := gen.GenerateBoundedCount(tmpl, 7)

		assertMoments(t, []domain.Moment{
			jan(6, 9, 0), jan(7, 9, 0), jan(8, 9, 0), jan(9, 9, 0), jan(10, 9, 0),
			jan(13, 9, 0), jan(14, 9, 0),
		}, scheduledTimes(res.Instances))
		assert.Equal(t, 2, res.Skipped)
	})

	t.Run("skip holidays", func(t *testing.T) {
		tmpl := newTemplate(jan(6, 9, 0), domain.Daily{Repeat: every(1, domain.Never())})
		tmpl.Policy.SkipHolidays = true
		opts := DefaultOptions()
		opts.Holidays = []domain.Moment{domain.NewDate(2025, time.January, 7, "UTC")}
		gen := NewGenerator(domain.NewFixedClock(jan(5, 0, 0)), opts)

		res := gen.GenerateBoundedCount(tmpl, 2)

		assertMoments(t, []domain.Moment{jan(6, 9, 0), jan(8, 9, 0)}, scheduledTimes(res.Instances))
	})

	t.Run("working hours only", func(t *testing.T) {
		tmpl := newTemplate(jan(6, 0, 0), domain.Custom{Repeat: every(1, domain.Never()), Expression: "0 * * * *"})
		tmpl.Policy.WorkingHoursOnly = true
		gen := NewGenerator(domain.NewFixedClock(jan(5, 0, 0)), DefaultOptions())

		res := gen.GenerateBoundedCount(tmpl, 3)

		assertMoments(t, []domain.Moment{jan(6, 9, 0), jan(6, 10, 0), jan(6, 11, 0)}, scheduledTimes(res.Instances))
		assert.Equal(t, 9, res.Skipped)
	})

	t.Run("skipped occurrences use up the count", func(t *testing.T) {
		tmpl := newTemplate(jan(10, 9, 0), domain.Daily{Repeat: every(1, domain.AfterCount(3))})
		tmpl.Policy.SkipWeekends = true
		gen := NewGenerator(domain.NewFixedClock(jan(1, 0, 0)), DefaultOptions())

		res := gen.GenerateBoundedCount(tmpl, 10)

		assertMoments(t, []domain.Moment{jan(10, 9, 0)}, scheduledTimes(res.Instances))
	})
}

func TestGenerateInRange(t *testing.T) {
	tests := []struct {
		name       string
		rule       domain.RecurrenceRule
		start, end domain.Moment
		want       []domain.Moment
	}{
		{
			name:  "bounds are inclusive",
			rule:  domain.Daily{Repeat: every(1, domain.Never())},
			start: jan(3, 9, 0),
			end:   jan(5, 9, 0),
			want:  []domain.Moment{jan(3, 9, 0), jan(4, 9, 0), jan(5, 9, 0)},
		},
		{
			name:  "count limit applies from base",
			rule:  domain.Daily{Repeat: every(1, domain.AfterCount(3))},
			start: jan(2, 0, 0),
			end:   jan(10, 0, 0),
			want:  []domain.Moment{jan(2, 9, 0), jan(3, 9, 0)},
		},
		{
			name:  "one-off outside range",
			rule:  domain.NoRecurrence{},
			start: jan(2, 0, 0),
			end:   jan(3, 0, 0),
			want:  []domain.Moment{},
		},
		{
			name:  "inverted range",
			rule:  domain.Daily{Repeat: every(1, domain.Never())},
			start: jan(5, 0, 0),
			end:   jan(3, 0, 0),
			want:  []domain.Moment{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := NewGenerator(domain.NewFixedClock(jan(1, 0, 0)), DefaultOptions())
			res := gen.GenerateInRange(newTemplate(jan(1, 9, 0), tt.rule), tt.start, tt.end)
			assertMoments(t, tt.want, scheduledTimes(res.Instances))
		})
	}
}
