// Package notification provides desktop notification utilities.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/xvierd/cadence/internal/config"
	"github.com/xvierd/cadence/internal/domain"
	"github.com/xvierd/cadence/internal/ports"
	"golang.org/x/time/rate"
)

// ErrThrottled is returned when deliveries exceed the configured rate.
var ErrThrottled = errors.New("notification rate limit exceeded")

type sendFunc func(title, message string) error

// Notifier delivers reminders as desktop notifications.
type Notifier struct {
	cfg     *config.NotificationConfig
	limiter *rate.Limiter
	notify  sendFunc
	alert   sendFunc
}

// Ensure Notifier implements ports.Notifier.
var _ ports.Notifier = (*Notifier)(nil)

// New creates a new notifier with the given configuration.
func New(cfg *config.NotificationConfig) *Notifier {
	n := &Notifier{
		cfg:    cfg,
		notify: func(title, message string) error { return beeep.Notify(title, message, "") },
		alert:  func(title, message string) error { return beeep.Alert(title, message, "") },
	}
	if cfg != nil && cfg.RatePerMinute > 0 {
		n.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), cfg.RatePerMinute)
	}
	return n
}

// Deliver displays the reminder if notifications are enabled. Sound alerts
// use an audible notification when sound is on; email alerts have no mail
// transport and are shown on the desktop instead.
func (n *Notifier) Deliver(ctx context.Context, r ports.Reminder) error {
	if !n.IsEnabled() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.limiter != nil && !n.limiter.Allow() {
		return ErrThrottled
	}

	title := "⏰ " + r.Title
	message := r.Message
	if message == "" {
		message = fmt.Sprintf("Scheduled at %s", r.Scheduled)
	}

	switch r.Channel {
	case domain.ChannelSound:
		if n.cfg.Sound {
			return n.alert(title, message)
		}
		return n.notify(title, message)
	case domain.ChannelEmail:
		return n.notify(title, "✉ "+message)
	default:
		return n.notify(title, message)
	}
}

// Notify displays a plain desktop notification if enabled.
func (n *Notifier) Notify(title, message string) error {
	if !n.IsEnabled() {
		return nil
	}
	return n.notify(title, message)
}

// IsEnabled returns true if notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	return n.cfg != nil && n.cfg.Enabled
}
