// Package schedule expands templates into instances, detects time conflicts
// between instances and propagates template edits onto existing instances.
package schedule

import (
	"time"

	"github.com/xvierd/cadence/internal/domain"
)

// Options configures the scheduling-policy filters.
type Options struct {
	// Holidays are matched by calendar date only.
	Holidays []domain.Moment
	// WorkdayStart and WorkdayEnd are offsets from midnight bounding
	// working hours, start inclusive and end exclusive.
	WorkdayStart time.Duration
	WorkdayEnd   time.Duration
}

// DefaultOptions uses a 09:00-17:00 working day and no holidays.
func DefaultOptions() Options {
	return Options{WorkdayStart: 9 * time.Hour, WorkdayEnd: 17 * time.Hour}
}

// Result is the outcome of one generation run.
type Result struct {
	Instances []*domain.TaskInstance
	// Iterations is the number of occurrences evaluated.
	Iterations int
	// Skipped counts occurrences dropped by the scheduling policy.
	Skipped int
	// Truncated is set when the iteration bound stopped generation before
	// the rule or the requested bound did.
	Truncated bool
	// Invalid holds the reason a misconfigured rule produced nothing.
	Invalid error
}

// Generator expands templates into instances.
type Generator struct {
	clock domain.Clock
	opts  Options
}

// NewGenerator creates a generator reading "now" from clock.
func NewGenerator(clock domain.Clock, opts Options) *Generator {
	return &Generator{clock: clock, opts: opts}
}

// GenerateBoundedCount produces up to maxInstances instances for occurrences
// at or after now. A one-off template always yields exactly one instance.
func (g *Generator) GenerateBoundedCount(t *domain.TaskTemplate, maxInstances int) Result {
	now := g.clock.Now()
	if maxInstances <= 0 {
		return Result{Instances: []*domain.TaskInstance{}}
	}
	if _, once := t.Time.Recurrence.(domain.NoRecurrence); once {
		return Result{
			Instances:  []*domain.TaskInstance{domain.InstantiateTemplate(t, t.Time.Start, now)},
			Iterations: 1,
		}
	}

	res := Result{Instances: []*domain.TaskInstance{}}
	g.walk(t, now, &res, func(occ domain.Moment) bool {
		if occ.Before(now) {
			return false
		}
		res.Instances = append(res.Instances, domain.InstantiateTemplate(t, occ, now))
		return len(res.Instances) >= maxInstances
	})
	return res
}

// GenerateInRange produces an instance for every occurrence within
// [start, end], both bounds included.
func (g *Generator) GenerateInRange(t *domain.TaskTemplate, start, end domain.Moment) Result {
	now := g.clock.Now()
	res := Result{Instances: []*domain.TaskInstance{}}
	if end.Before(start) {
		return res
	}
	if _, once := t.Time.Recurrence.(domain.NoRecurrence); once {
		res.Iterations = 1
		if t.Time.Start.Within(start, end) {
			res.Instances = append(res.Instances, domain.InstantiateTemplate(t, t.Time.Start, now))
		}
		return res
	}

	g.walk(t, start, &res, func(occ domain.Moment) bool {
		if occ.After(end) {
			return true
		}
		if occ.Before(start) {
			return false
		}
		res.Instances = append(res.Instances, domain.InstantiateTemplate(t, occ, now))
		return false
	})
	return res
}

// walk feeds visit every occurrence of t's rule, in order, until visit
// returns true, the rule's end condition is reached or the iteration bound
// is hit. Rules without a count limit start at from instead of the base so
// old templates do not burn through the bound; counted rules always start at
// the base because every earlier occurrence uses up the count.
func (g *Generator) walk(t *domain.TaskTemplate, from domain.Moment, res *Result, visit func(domain.Moment) bool) {
	rule := t.Time.Recurrence
	if rule == nil {
		res.Invalid = domain.ErrUnknownRecurrence
		return
	}
	if err := rule.Validate(); err != nil {
		res.Invalid = err
		return
	}
	base := t.Time.Start
	end := rule.Termination()

	cursor := base.Add(-time.Nanosecond)
	if end.Kind != domain.EndAfterCount && from.After(base) {
		cursor = from.Add(-time.Nanosecond)
	}

	produced := 0
	for {
		if res.Iterations >= domain.MaxGenerationIterations {
			res.Truncated = true
			return
		}
		occ, ok := domain.NextOccurrence(rule, base, cursor)
		if !ok || end.Reached(occ, produced) {
			return
		}
		res.Iterations++
		produced++
		cursor = occ

		if g.skip(t, occ) {
			res.Skipped++
			continue
		}
		if visit(occ) {
			return
		}
	}
}

// skip applies the template's scheduling policy.
func (g *Generator) skip(t *domain.TaskTemplate, occ domain.Moment) bool {
	p := t.Policy
	if p.SkipWeekends {
		if wd := occ.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return true
		}
	}
	if p.SkipHolidays && g.isHoliday(occ) {
		return true
	}
	if p.WorkingHoursOnly && t.Time.Kind != domain.TimeAllDay && g.opts.WorkdayEnd > g.opts.WorkdayStart {
		h, m := occ.Clock()
		offset := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
		if offset < g.opts.WorkdayStart || offset >= g.opts.WorkdayEnd {
			return true
		}
	}
	return false
}

func (g *Generator) isHoliday(occ domain.Moment) bool {
	y, m, d := occ.Date()
	for _, h := range g.opts.Holidays {
		hy, hm, hd := h.Date()
		if hy == y && hm == m && hd == d {
			return true
		}
	}
	return false
}
