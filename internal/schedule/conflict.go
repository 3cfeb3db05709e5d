package schedule

import (
	"sort"

	"github.com/xvierd/cadence/internal/domain"
)

// Conflict is an overlap between two instances.
type Conflict struct {
	A, B         *domain.TaskInstance
	OverlapStart domain.Moment
	OverlapEnd   domain.Moment
}

// FindConflicts returns the instances in existing whose effective interval
// overlaps candidate's. Instances sharing the candidate's ID and terminal
// instances are ignored; a terminal candidate conflicts with nothing.
func FindConflicts(candidate *domain.TaskInstance, existing []*domain.TaskInstance) []*domain.TaskInstance {
	out := []*domain.TaskInstance{}
	if candidate.Status.IsTerminal() {
		return out
	}
	for _, other := range existing {
		if other.ID == candidate.ID || other.Status.IsTerminal() {
			continue
		}
		if Overlaps(candidate, other) {
			out = append(out, other)
		}
	}
	return out
}

// Overlaps reports whether the half-open intervals [s1,e1) and [s2,e2) of a
// and b intersect.
func Overlaps(a, b *domain.TaskInstance) bool {
	s1, e1 := a.EffectiveInterval()
	s2, e2 := b.EffectiveInterval()
	return s1.Before(e2) && s2.Before(e1)
}

// FindAllConflicts reports every overlapping pair within instances, ordered
// by overlap start.
func FindAllConflicts(instances []*domain.TaskInstance) []Conflict {
	live := make([]*domain.TaskInstance, 0, len(instances))
	for _, inst := range instances {
		if !inst.Status.IsTerminal() {
			live = append(live, inst)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		return live[i].Time.Scheduled.Before(live[j].Time.Scheduled)
	})

	var out []Conflict
	for i, a := range live {
		_, endA := a.EffectiveInterval()
		for _, b := range live[i+1:] {
			startB, endB := b.EffectiveInterval()
			if !startB.Before(endA) {
				break
			}
			if a.ID == b.ID || !Overlaps(a, b) {
				continue
			}
			out = append(out, Conflict{A: a, B: b, OverlapStart: startB, OverlapEnd: earlier(endA, endB)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OverlapStart.Before(out[j].OverlapStart)
	})
	return out
}

func earlier(a, b domain.Moment) domain.Moment {
	if b.Before(a) {
		return b
	}
	return a
}
