package domain

import (
	"errors"
	"testing"
	"time"
)

func utc(year int, month time.Month, day, hour, minute int) Moment {
	return NewMoment(year, month, day, hour, minute, "UTC")
}

func every1(end EndCondition) Repeat { return Repeat{Interval: 1, End: end} }

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name   string
		rule   RecurrenceRule
		base   Moment
		from   Moment
		want   Moment
		wantOK bool
	}{
		{
			name:   "one-off before base",
			rule:   NoRecurrence{},
			base:   utc(2025, 1, 10, 9, 0),
			from:   utc(2025, 1, 1, 0, 0),
			want:   utc(2025, 1, 10, 9, 0),
			wantOK: true,
		},
		{
			name:   "one-off at base yields nothing",
			rule:   NoRecurrence{},
			base:   utc(2025, 1, 10, 9, 0),
			from:   utc(2025, 1, 10, 9, 0),
			wantOK: false,
		},
		{
			name:   "daily before base returns base",
			rule:   Daily{every1(Never())},
			base:   utc(2025, 1, 10, 9, 0),
			from:   utc(2025, 1, 1, 12, 0),
			want:   utc(2025, 1, 10, 9, 0),
			wantOK: true,
		},
		{
			name:   "daily strictly after reference",
			rule:   Daily{every1(Never())},
			base:   utc(2025, 1, 1, 9, 0),
			from:   utc(2025, 1, 1, 9, 0),
			want:   utc(2025, 1, 2, 9, 0),
			wantOK: true,
		},
		{
			name:   "every two days stays on the base grid",
			rule:   Daily{Repeat{Interval: 2, End: Never()}},
			base:   utc(2025, 1, 1, 9, 0),
			from:   utc(2025, 1, 4, 10, 0),
			want:   utc(2025, 1, 5, 9, 0),
			wantOK: true,
		},
		{
			name:   "weekly on weekdays picks next configured day",
			rule:   Weekly{Repeat: every1(Never()), Weekdays: []time.Weekday{time.Monday, time.Wednesday, time.Friday}},
			base:   utc(2025, 1, 6, 9, 0),
			from:   utc(2025, 1, 7, 12, 0),
			want:   utc(2025, 1, 8, 9, 0),
			wantOK: true,
		},
		{
			name:   "biweekly skips off weeks",
			rule:   Weekly{Repeat: Repeat{Interval: 2, End: Never()}, Weekdays: []time.Weekday{time.Monday}},
			base:   utc(2025, 1, 6, 9, 0),
			from:   utc(2025, 1, 6, 9, 0),
			want:   utc(2025, 1, 20, 9, 0),
			wantOK: true,
		},
		{
			name:   "weekly without weekdays steps seven days",
			rule:   Weekly{Repeat: every1(Never())},
			base:   utc(2025, 1, 6, 9, 0),
			from:   utc(2025, 1, 8, 0, 0),
			want:   utc(2025, 1, 13, 9, 0),
			wantOK: true,
		},
		{
			name:   "monthly clamps day 31 in February",
			rule:   Monthly{Repeat: every1(Never())},
			base:   utc(2025, 1, 31, 10, 0),
			from:   utc(2025, 1, 31, 10, 0),
			want:   utc(2025, 2, 28, 10, 0),
			wantOK: true,
		},
		{
			name:   "monthly returns to base day after clamping",
			rule:   Monthly{Repeat: every1(Never())},
			base:   utc(2025, 1, 31, 10, 0),
			from:   utc(2025, 2, 28, 10, 0),
			want:   utc(2025, 3, 31, 10, 0),
			wantOK: true,
		},
		{
			name: "monthly explicit day and last friday",
			rule: Monthly{
				Repeat:      every1(Never()),
				Days:        []int{15},
				NthWeekdays: []NthWeekday{{N: -1, Weekday: time.Friday}},
			},
			base:   utc(2025, 1, 1, 8, 0),
			from:   utc(2025, 1, 15, 8, 0),
			want:   utc(2025, 1, 31, 8, 0),
			wantOK: true,
		},
		{
			name:   "yearly leap day clamps",
			rule:   Yearly{every1(Never())},
			base:   utc(2024, 2, 29, 7, 30),
			from:   utc(2024, 2, 29, 7, 30),
			want:   utc(2025, 2, 28, 7, 30),
			wantOK: true,
		},
		{
			name:   "cron weekdays at nine",
			rule:   Custom{Repeat: every1(Never()), Expression: "0 9 * * 1-5"},
			base:   utc(2025, 1, 1, 0, 0),
			from:   utc(2025, 1, 3, 9, 0),
			want:   utc(2025, 1, 6, 9, 0),
			wantOK: true,
		},
		{
			name:   "cron never fires before base",
			rule:   Custom{Repeat: every1(Never()), Expression: "0 9 * * *"},
			base:   utc(2025, 1, 6, 9, 0),
			from:   utc(2025, 1, 1, 0, 0),
			want:   utc(2025, 1, 6, 9, 0),
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextOccurrence(tt.rule, tt.base, tt.from)
			if ok != tt.wantOK {
				t.Fatalf("NextOccurrence() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("NextOccurrence() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNextOccurrence_DailyOffsetsAreMultiplesOfInterval(t *testing.T) {
	base := utc(2025, 3, 1, 6, 0)
	rule := Daily{Repeat{Interval: 3, End: Never()}}
	from := base.Add(-time.Minute)
	for i := 0; i < 20; i++ {
		next, ok := NextOccurrence(rule, base, from)
		if !ok {
			t.Fatal("expected an occurrence")
		}
		if d := DaysBetween(base, next); d%3 != 0 {
			t.Fatalf("occurrence %s is %d days from base", next, d)
		}
		if !next.After(from) {
			t.Fatalf("occurrence %s not after %s", next, from)
		}
		from = next
	}
}

func TestNextOccurrence_ZeroInterval(t *testing.T) {
	base := utc(2025, 1, 6, 9, 0)
	zero := Repeat{Interval: 0, End: Never()}
	rules := map[string]RecurrenceRule{
		"daily":          Daily{zero},
		"weekly":         Weekly{Repeat: zero},
		"weekly on days": Weekly{Repeat: zero, Weekdays: []time.Weekday{time.Monday}},
		"monthly":        Monthly{Repeat: zero},
		"monthly days":   Monthly{Repeat: zero, Days: []int{15}},
		"yearly":         Yearly{zero},
	}

	for name, rule := range rules {
		t.Run(name, func(t *testing.T) {
			if next, ok := NextOccurrence(rule, base, base); ok {
				t.Errorf("NextOccurrence() = %s, want no occurrence", next)
			}
		})
	}
}

func TestNthWeekdayOf(t *testing.T) {
	tests := []struct {
		name   string
		month  time.Month
		nth    NthWeekday
		want   int
		wantOK bool
	}{
		{"first monday of march", time.March, NthWeekday{N: 1, Weekday: time.Monday}, 3, true},
		{"last friday of january", time.January, NthWeekday{N: -1, Weekday: time.Friday}, 31, true},
		{"fifth monday of february", time.February, NthWeekday{N: 5, Weekday: time.Monday}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := nthWeekdayOf(2025, tt.month, tt.nth)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("nthWeekdayOf() = %d, %v, want %d, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestEndCondition_Reached(t *testing.T) {
	until := utc(2025, 1, 10, 9, 0)
	tests := []struct {
		name      string
		end       EndCondition
		candidate Moment
		count     int
		want      bool
	}{
		{"never", Never(), utc(2099, 1, 1, 0, 0), 5000, false},
		{"until on the date", UntilDate(until), until, 0, false},
		{"until after the date", UntilDate(until), until.Add(time.Minute), 0, true},
		{"count below", AfterCount(3), until, 2, false},
		{"count reached", AfterCount(3), until, 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.end.Reached(tt.candidate, tt.count); got != tt.want {
				t.Errorf("Reached() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecurrenceRule_Validate(t *testing.T) {
	tests := []struct {
		name string
		rule RecurrenceRule
		want error
	}{
		{"none", NoRecurrence{}, nil},
		{"zero interval", Daily{Repeat{Interval: 0}}, ErrInvalidInterval},
		{"zero count", Daily{Repeat{Interval: 1, End: AfterCount(0)}}, ErrInvalidCount},
		{"missing until", Yearly{Repeat{Interval: 1, End: EndCondition{Kind: EndUntilDate}}}, ErrInvalidUntil},
		{"bad weekday", Weekly{Repeat: every1(Never()), Weekdays: []time.Weekday{7}}, ErrInvalidWeekday},
		{"duplicate weekday", Weekly{Repeat: every1(Never()), Weekdays: []time.Weekday{1, 1}}, ErrInvalidWeekday},
		{"bad month day", Monthly{Repeat: every1(Never()), Days: []int{32}}, ErrInvalidMonthDay},
		{"bad nth", Monthly{Repeat: every1(Never()), NthWeekdays: []NthWeekday{{N: 6}}}, ErrInvalidMonthDay},
		{"bad cron", Custom{Repeat: every1(Never()), Expression: "every tuesday"}, ErrInvalidExpression},
		{"good cron", Custom{Repeat: every1(Never()), Expression: "@daily"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDescribeRule(t *testing.T) {
	tests := []struct {
		rule RecurrenceRule
		want string
	}{
		{NoRecurrence{}, "once"},
		{Daily{every1(Never())}, "every day"},
		{Weekly{Repeat: Repeat{Interval: 2, End: AfterCount(4)}, Weekdays: []time.Weekday{time.Monday}}, "every 2 weeks on Mon for 4 occurrences"},
		{Custom{Repeat: every1(Never()), Expression: "@hourly"}, "cron @hourly"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := DescribeRule(tt.rule); got != tt.want {
				t.Errorf("DescribeRule() = %q, want %q", got, tt.want)
			}
		})
	}
}
