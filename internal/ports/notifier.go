package ports

import (
	"context"

	"github.com/xvierd/cadence/internal/domain"
)

// Reminder is one due alert ready for delivery.
type Reminder struct {
	InstanceID string
	AlertID    string
	Title      string
	Message    string
	Channel    domain.Channel
	Scheduled  domain.Moment
	FireAt     domain.Moment
}

// Key identifies the reminder for one particular firing of an alert.
func (r Reminder) Key() string {
	return r.InstanceID + "/" + r.AlertID + "@" + r.FireAt.Time().UTC().Format("20060102T150405")
}

// Notifier delivers reminders to the user.
// This is a driven port (implemented by adapters).
type Notifier interface {
	// Deliver sends the reminder over its channel.
	Deliver(ctx context.Context, r Reminder) error

	// IsEnabled returns true if delivery is switched on.
	IsEnabled() bool
}
