// Package services implements the application layer (use cases)
// following hexagonal architecture principles.
package services

import (
	"time"

	"github.com/xvierd/cadence/internal/domain"
	"github.com/xvierd/cadence/internal/schedule"
)

// Settings tunes the use cases. The zero value of each field falls back to
// the matching default.
type Settings struct {
	Schedule schedule.Options
	// MaxInstances is the bounded-generation count used when a request
	// does not name one.
	MaxInstances int
	// DefaultDuration becomes the estimate of timed templates created
	// without one.
	DefaultDuration time.Duration
	// MaxSnoozes caps snoozes per instance; 0 means unlimited.
	MaxSnoozes int
	// DefaultSnooze is used when a snooze does not say how long.
	DefaultSnooze time.Duration
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		Schedule:        schedule.DefaultOptions(),
		MaxInstances:    10,
		DefaultDuration: domain.DefaultInstanceDuration,
		MaxSnoozes:      3,
		DefaultSnooze:   10 * time.Minute,
	}
}

func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.Schedule.WorkdayEnd == 0 {
		s.Schedule = def.Schedule
	}
	if s.MaxInstances <= 0 {
		s.MaxInstances = def.MaxInstances
	}
	if s.DefaultDuration <= 0 {
		s.DefaultDuration = def.DefaultDuration
	}
	if s.DefaultSnooze <= 0 {
		s.DefaultSnooze = def.DefaultSnooze
	}
	if s.MaxSnoozes < 0 {
		s.MaxSnoozes = 0
	}
	return s
}

func rejectTemplate(t *domain.TaskTemplate, action, reason string) error {
	return &domain.TransitionError{Entity: "template", Action: action, From: string(t.Status), Reason: reason}
}
