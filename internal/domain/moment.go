package domain

import (
	"fmt"
	"time"
)

// Moment is an immutable point in time. It carries the calendar date, an
// optional clock time (all-day moments have none) and the label of the
// timezone it was created in. The label is informational: arithmetic runs on
// the underlying instant in the location resolved from it, falling back to UTC.
type Moment struct {
	t        time.Time
	allDay   bool
	timezone string
}

// At wraps an instant as a timed Moment read in the given timezone. An empty
// timezone keeps the instant's own location.
func At(t time.Time, timezone string) Moment {
	if timezone == "" {
		return Moment{t: t, timezone: t.Location().String()}
	}
	loc := locationFor(timezone)
	return Moment{t: t.In(loc), timezone: labelFor(timezone, loc)}
}

// NewMoment builds a timed Moment from wall-clock fields in the given timezone.
func NewMoment(year int, month time.Month, day, hour, minute int, timezone string) Moment {
	loc := locationFor(timezone)
	return Moment{t: time.Date(year, month, day, hour, minute, 0, 0, loc), timezone: labelFor(timezone, loc)}
}

// NewDate builds an all-day Moment anchored at the start of the given date.
func NewDate(year int, month time.Month, day int, timezone string) Moment {
	loc := locationFor(timezone)
	return Moment{t: time.Date(year, month, day, 0, 0, 0, 0, loc), allDay: true, timezone: labelFor(timezone, loc)}
}

// Restore rebuilds a stored Moment, re-resolving the timezone label so that
// calendar arithmetic uses the named location again.
func Restore(t time.Time, timezone string, allDay bool) Moment {
	if t.IsZero() {
		return Moment{}
	}
	loc := locationFor(timezone)
	return Moment{t: t.In(loc), allDay: allDay, timezone: labelFor(timezone, loc)}
}

// AllDay returns the moment flagged as all-day at the start of its date.
func (m Moment) AllDay() Moment {
	out := m.StartOfDay()
	out.allDay = true
	return out
}

func locationFor(timezone string) *time.Location {
	if timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func labelFor(timezone string, loc *time.Location) string {
	if timezone != "" {
		return timezone
	}
	return loc.String()
}

// Time returns the underlying instant.
func (m Moment) Time() time.Time { return m.t }

// Timestamp returns the epoch timestamp in milliseconds.
func (m Moment) Timestamp() int64 { return m.t.UnixMilli() }

// Timezone returns the originating timezone label.
func (m Moment) Timezone() string { return m.timezone }

// IsAllDay reports whether the moment has no clock time.
func (m Moment) IsAllDay() bool { return m.allDay }

// IsZero reports whether the moment was never set.
func (m Moment) IsZero() bool { return m.t.IsZero() }

// Date returns the calendar date of the moment.
func (m Moment) Date() (year int, month time.Month, day int) { return m.t.Date() }

// Clock returns hour and minute. All-day moments report 0, 0.
func (m Moment) Clock() (hour, minute int) {
	if m.allDay {
		return 0, 0
	}
	return m.t.Hour(), m.t.Minute()
}

// Weekday returns the day of the week.
func (m Moment) Weekday() time.Weekday { return m.t.Weekday() }

func (m Moment) with(t time.Time) Moment {
	return Moment{t: t, allDay: m.allDay, timezone: m.timezone}
}

// Compare returns -1, 0 or +1.
func (m Moment) Compare(o Moment) int { return m.t.Compare(o.t) }

// Before reports whether m is strictly before o.
func (m Moment) Before(o Moment) bool { return m.t.Before(o.t) }

// After reports whether m is strictly after o.
func (m Moment) After(o Moment) bool { return m.t.After(o.t) }

// Equal reports whether both moments denote the same instant.
func (m Moment) Equal(o Moment) bool { return m.t.Equal(o.t) }

// Within reports whether m lies in [start, end], both ends inclusive.
func (m Moment) Within(start, end Moment) bool {
	return !m.t.Before(start.t) && !m.t.After(end.t)
}

// Sub returns m - o.
func (m Moment) Sub(o Moment) time.Duration { return m.t.Sub(o.t) }

// Add returns the moment shifted by d.
func (m Moment) Add(d time.Duration) Moment { return m.with(m.t.Add(d)) }

// AddMinutes returns the moment shifted by n minutes.
func (m Moment) AddMinutes(n int) Moment { return m.Add(time.Duration(n) * time.Minute) }

// AddDays returns the moment shifted by n calendar days, keeping the wall clock.
func (m Moment) AddDays(n int) Moment { return m.with(m.t.AddDate(0, 0, n)) }

// AddMonthsClamped shifts by n months. When the day does not exist in the
// target month it lands on that month's last day.
func (m Moment) AddMonthsClamped(n int) Moment {
	y, mo, d := m.t.Date()
	first := time.Date(y, mo, 1, 0, 0, 0, 0, m.t.Location()).AddDate(0, n, 0)
	return m.OnDay(first.Year(), first.Month(), d)
}

// AddYearsClamped shifts by n years; Feb 29 becomes Feb 28 in common years.
func (m Moment) AddYearsClamped(n int) Moment {
	y, mo, d := m.t.Date()
	return m.OnDay(y+n, mo, d)
}

// OnDay moves the moment to the given date, clamping the day to the month
// length and keeping the wall clock.
func (m Moment) OnDay(year int, month time.Month, day int) Moment {
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return m.with(time.Date(year, month, day, m.t.Hour(), m.t.Minute(), m.t.Second(), m.t.Nanosecond(), m.t.Location()))
}

// StartOfDay returns 00:00 of the moment's date.
func (m Moment) StartOfDay() Moment {
	y, mo, d := m.t.Date()
	return m.with(time.Date(y, mo, d, 0, 0, 0, 0, m.t.Location()))
}

// EndOfDay returns the last representable instant of the moment's date.
func (m Moment) EndOfDay() Moment {
	return m.StartOfDay().AddDays(1).Add(-time.Nanosecond)
}

// AtClockOf returns the date of m at the wall clock of ref.
func (m Moment) AtClockOf(ref Moment) Moment {
	y, mo, d := m.t.Date()
	out := time.Date(y, mo, d, ref.t.Hour(), ref.t.Minute(), ref.t.Second(), ref.t.Nanosecond(), m.t.Location())
	return Moment{t: out, allDay: ref.allDay, timezone: m.timezone}
}

// String formats the moment for display.
func (m Moment) String() string {
	if m.IsZero() {
		return "-"
	}
	if m.allDay {
		return m.t.Format("2006-01-02")
	}
	return fmt.Sprintf("%s (%s)", m.t.Format("2006-01-02 15:04"), m.timezone)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysBetween returns the number of calendar days from a's date to b's date.
func DaysBetween(a, b Moment) int {
	ay, am, ad := a.t.Date()
	by, bm, bd := b.t.In(a.t.Location()).Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// Later returns the later of two moments.
func Later(a, b Moment) Moment {
	if b.After(a) {
		return b
	}
	return a
}
