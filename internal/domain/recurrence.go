package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// MaxGenerationIterations bounds every occurrence loop regardless of the
// rule's end condition.
const MaxGenerationIterations = 1000

// monthlyScanLimit bounds the months inspected for one monthly occurrence
// when explicit day rules never match (e.g. a fifth Monday).
const monthlyScanLimit = 60

// RecurrenceKind names a RecurrenceRule variant.
type RecurrenceKind string

const (
	RecurrenceNone    RecurrenceKind = "none"
	RecurrenceDaily   RecurrenceKind = "daily"
	RecurrenceWeekly  RecurrenceKind = "weekly"
	RecurrenceMonthly RecurrenceKind = "monthly"
	RecurrenceYearly  RecurrenceKind = "yearly"
	RecurrenceCustom  RecurrenceKind = "custom"
)

// EndKind names an EndCondition variant.
type EndKind string

const (
	EndNever      EndKind = "never"
	EndUntilDate  EndKind = "until"
	EndAfterCount EndKind = "count"
)

// EndCondition decides when a recurrence stops producing occurrences.
type EndCondition struct {
	Kind  EndKind
	Until Moment
	Count int
}

// Never returns an end condition that never triggers.
func Never() EndCondition { return EndCondition{Kind: EndNever} }

// UntilDate stops once a candidate falls after until.
func UntilDate(until Moment) EndCondition { return EndCondition{Kind: EndUntilDate, Until: until} }

// AfterCount stops after n occurrences.
func AfterCount(n int) EndCondition { return EndCondition{Kind: EndAfterCount, Count: n} }

// Validate checks the variant's fields.
func (e EndCondition) Validate() error {
	switch e.Kind {
	case EndNever, "":
		return nil
	case EndUntilDate:
		if e.Until.IsZero() {
			return ErrInvalidUntil
		}
		return nil
	case EndAfterCount:
		if e.Count < 1 {
			return fmt.Errorf("%w: %d", ErrInvalidCount, e.Count)
		}
		return nil
	default:
		return fmt.Errorf("unknown end condition %q", e.Kind)
	}
}

// Reached reports whether candidate must not be produced, given that count
// occurrences were already produced before it.
func (e EndCondition) Reached(candidate Moment, count int) bool {
	switch e.Kind {
	case EndUntilDate:
		return candidate.After(e.Until)
	case EndAfterCount:
		return count >= e.Count
	default:
		return false
	}
}

// Repeat holds the fields shared by every repeating variant.
type Repeat struct {
	Interval int
	End      EndCondition
}

func (r Repeat) validate() error {
	if r.Interval < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidInterval, r.Interval)
	}
	return r.End.Validate()
}

// RecurrenceRule is a closed set of variants: NoRecurrence, Daily, Weekly,
// Monthly, Yearly and Custom.
type RecurrenceRule interface {
	Kind() RecurrenceKind
	Validate() error
	Termination() EndCondition
	isRecurrenceRule()
}

// NoRecurrence is a one-off schedule.
type NoRecurrence struct{}

// Daily repeats every Interval days.
type Daily struct{ Repeat }

// Weekly repeats every Interval weeks, optionally on specific weekdays.
type Weekly struct {
	Repeat
	Weekdays []time.Weekday
}

// NthWeekday selects the Nth weekday of a month; N = -1 is the last one.
type NthWeekday struct {
	N       int
	Weekday time.Weekday
}

// Monthly repeats every Interval months, on the base day or on explicit days.
type Monthly struct {
	Repeat
	Days        []int
	NthWeekdays []NthWeekday
}

// Yearly repeats every Interval years on the base month and day.
type Yearly struct{ Repeat }

// Custom repeats on a cron expression (five fields or an @descriptor).
// The expression carries its own cadence, Interval is only validated.
type Custom struct {
	Repeat
	Expression string
}

func (NoRecurrence) isRecurrenceRule() {}
func (Daily) isRecurrenceRule()        {}
func (Weekly) isRecurrenceRule()       {}
func (Monthly) isRecurrenceRule()      {}
func (Yearly) isRecurrenceRule()       {}
func (Custom) isRecurrenceRule()       {}

func (NoRecurrence) Kind() RecurrenceKind { return RecurrenceNone }
func (Daily) Kind() RecurrenceKind        { return RecurrenceDaily }
func (Weekly) Kind() RecurrenceKind       { return RecurrenceWeekly }
func (Monthly) Kind() RecurrenceKind      { return RecurrenceMonthly }
func (Yearly) Kind() RecurrenceKind       { return RecurrenceYearly }
func (Custom) Kind() RecurrenceKind       { return RecurrenceCustom }

func (NoRecurrence) Termination() EndCondition { return Never() }
func (r Repeat) Termination() EndCondition     { return r.End }

func (NoRecurrence) Validate() error { return nil }
func (r Daily) Validate() error      { return r.validate() }
func (r Yearly) Validate() error     { return r.validate() }

func (r Weekly) Validate() error {
	if err := r.validate(); err != nil {
		return err
	}
	seen := make(map[time.Weekday]bool, len(r.Weekdays))
	for _, d := range r.Weekdays {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("%w: %d", ErrInvalidWeekday, d)
		}
		if seen[d] {
			return fmt.Errorf("%w: duplicate %s", ErrInvalidWeekday, d)
		}
		seen[d] = true
	}
	return nil
}

func (r Monthly) Validate() error {
	if err := r.validate(); err != nil {
		return err
	}
	for _, d := range r.Days {
		if d < 1 || d > 31 {
			return fmt.Errorf("%w: %d", ErrInvalidMonthDay, d)
		}
	}
	for _, nth := range r.NthWeekdays {
		if nth.N == 0 || nth.N < -1 || nth.N > 5 {
			return fmt.Errorf("%w: nth %d", ErrInvalidMonthDay, nth.N)
		}
		if nth.Weekday < time.Sunday || nth.Weekday > time.Saturday {
			return fmt.Errorf("%w: %d", ErrInvalidWeekday, nth.Weekday)
		}
	}
	return nil
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func (r Custom) Validate() error {
	if err := r.validate(); err != nil {
		return err
	}
	if _, err := cronParser.Parse(r.Expression); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	return nil
}

// NextOccurrence returns the first occurrence of rule strictly after from.
// Occurrences are anchored at base and keep base's time of day; none is
// earlier than base. The boolean is false when the rule yields nothing more,
// including calendar rules whose interval is below 1.
func NextOccurrence(rule RecurrenceRule, base, from Moment) (Moment, bool) {
	switch r := rule.(type) {
	case NoRecurrence:
		if base.After(from) {
			return base, true
		}
		return Moment{}, false
	case Daily:
		if r.Interval < 1 {
			return Moment{}, false
		}
		return everyNDays(base, from, r.Interval), true
	case Weekly:
		if r.Interval < 1 {
			return Moment{}, false
		}
		if len(r.Weekdays) == 0 {
			return everyNDays(base, from, 7*r.Interval), true
		}
		return nextWeekday(r, base, from)
	case Monthly:
		if r.Interval < 1 {
			return Moment{}, false
		}
		if len(r.Days) == 0 && len(r.NthWeekdays) == 0 {
			n := monthsBetween(base, from) / r.Interval
			return firstAfter(from, n, func(i int) Moment { return base.AddMonthsClamped(i * r.Interval) }), true
		}
		return nextMonthDay(r, base, from)
	case Yearly:
		if r.Interval < 1 {
			return Moment{}, false
		}
		y0, _, _ := base.Date()
		y1, _, _ := from.Date()
		n := (y1 - y0) / r.Interval
		return firstAfter(from, n, func(i int) Moment { return base.AddYearsClamped(i * r.Interval) }), true
	case Custom:
		return nextCron(r, base, from)
	default:
		return Moment{}, false
	}
}

func everyNDays(base, from Moment, step int) Moment {
	n := DaysBetween(base, from) / step
	return firstAfter(from, n, func(i int) Moment { return base.AddDays(i * step) })
}

// firstAfter walks at(n), at(n+1), ... and returns the first value after
// from. n is a lower bound: at(n-1) is known not to be after from.
func firstAfter(from Moment, n int, at func(int) Moment) Moment {
	if n < 0 {
		n = 0
	}
	for {
		c := at(n)
		if c.After(from) {
			return c
		}
		n++
	}
}

func monthsBetween(a, b Moment) int {
	ay, am, _ := a.Date()
	by, bm, _ := b.Date()
	return (by-ay)*12 + int(bm-am)
}

func nextWeekday(r Weekly, base, from Moment) (Moment, bool) {
	allowed := make(map[time.Weekday]bool, len(r.Weekdays))
	for _, d := range r.Weekdays {
		allowed[d] = true
	}
	weekStart := base.StartOfDay().AddDays(-int(base.Weekday()))
	day := Later(base, from).AtClockOf(base)
	limit := 7*r.Interval + 7
	for i := 0; i <= limit; i++ {
		c := day.AddDays(i)
		if !allowed[c.Weekday()] || c.Before(base) || !c.After(from) {
			continue
		}
		if (DaysBetween(weekStart, c)/7)%r.Interval != 0 {
			continue
		}
		return c, true
	}
	return Moment{}, false
}

func nextMonthDay(r Monthly, base, from Moment) (Moment, bool) {
	n := monthsBetween(base, from) / r.Interval
	if n < 0 {
		n = 0
	}
	for i := 0; i < monthlyScanLimit; i++ {
		month := base.AddMonthsClamped((n + i) * r.Interval)
		for _, c := range monthCandidates(r, base, month) {
			if !c.Before(base) && c.After(from) {
				return c, true
			}
		}
	}
	return Moment{}, false
}

// monthCandidates lists the rule's dates within month's calendar month at
// base's clock, ascending.
func monthCandidates(r Monthly, base, month Moment) []Moment {
	y, m, _ := month.Date()
	days := make(map[int]bool, len(r.Days)+len(r.NthWeekdays))
	for _, d := range r.Days {
		days[min(d, DaysIn(y, m))] = true
	}
	for _, nth := range r.NthWeekdays {
		if d, ok := nthWeekdayOf(y, m, nth); ok {
			days[d] = true
		}
	}
	sorted := make([]int, 0, len(days))
	for d := range days {
		sorted = append(sorted, d)
	}
	sort.Ints(sorted)
	out := make([]Moment, 0, len(sorted))
	for _, d := range sorted {
		out = append(out, base.OnDay(y, m, d))
	}
	return out
}

func nthWeekdayOf(year int, month time.Month, nth NthWeekday) (int, bool) {
	last := DaysIn(year, month)
	if nth.N == -1 {
		lw := time.Date(year, month, last, 0, 0, 0, 0, time.UTC).Weekday()
		return last - (int(lw)-int(nth.Weekday)+7)%7, true
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Weekday()
	day := 1 + (int(nth.Weekday)-int(first)+7)%7 + (nth.N-1)*7
	if day > last {
		return 0, false
	}
	return day, true
}

func nextCron(r Custom, base, from Moment) (Moment, bool) {
	sched, err := cronParser.Parse(r.Expression)
	if err != nil {
		return Moment{}, false
	}
	ref := Later(base.Add(-time.Second), from)
	next := sched.Next(ref.Time())
	if next.IsZero() {
		return Moment{}, false
	}
	return At(next, base.Timezone()), true
}

// DescribeRule renders a rule for humans, e.g. "every 2 weeks on Mon, Wed".
func DescribeRule(rule RecurrenceRule) string {
	var b strings.Builder
	switch r := rule.(type) {
	case NoRecurrence:
		return "once"
	case Daily:
		b.WriteString(every(r.Interval, "day"))
	case Weekly:
		b.WriteString(every(r.Interval, "week"))
		if len(r.Weekdays) > 0 {
			names := make([]string, 0, len(r.Weekdays))
			for _, d := range r.Weekdays {
				names = append(names, d.String()[:3])
			}
			b.WriteString(" on " + strings.Join(names, ", "))
		}
	case Monthly:
		b.WriteString(every(r.Interval, "month"))
		if len(r.Days) > 0 {
			b.WriteString(fmt.Sprintf(" on days %v", r.Days))
		}
	case Yearly:
		b.WriteString(every(r.Interval, "year"))
	case Custom:
		b.WriteString("cron " + r.Expression)
	default:
		return "unknown"
	}
	end := rule.Termination()
	switch end.Kind {
	case EndUntilDate:
		b.WriteString(" until " + end.Until.Time().Format("2006-01-02"))
	case EndAfterCount:
		b.WriteString(fmt.Sprintf(" for %d occurrences", end.Count))
	}
	return b.String()
}

func every(n int, unit string) string {
	if n == 1 {
		return "every " + unit
	}
	return fmt.Sprintf("every %d %ss", n, unit)
}
