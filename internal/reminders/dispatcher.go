package reminders

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/xvierd/cadence/internal/domain"
	"github.com/xvierd/cadence/internal/ports"
)

// Source lists the alerts that can still go off.
type Source interface {
	OpenReminders(ctx context.Context) ([]ports.Reminder, error)
}

// Recorder persists that an alert went off.
type Recorder interface {
	TriggerAlert(ctx context.Context, instanceID, alertID string) (*domain.TaskInstance, error)
}

// Dispatcher keeps an Engine in sync with storage and delivers what it
// emits. Each firing is recorded before it is delivered, so an alert that
// was dismissed or completed in the meantime is not delivered.
type Dispatcher struct {
	engine   *Engine
	source   Source
	recorder Recorder
	notifier ports.Notifier
	logger   zerolog.Logger
	interval atomic.Int64
}

// NewDispatcher creates a dispatcher re-reading source every interval and
// timing firings against clock.
func NewDispatcher(source Source, recorder Recorder, notifier ports.Notifier, clock domain.Clock, logger zerolog.Logger, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = time.Minute
	}
	d := &Dispatcher{
		engine:   NewEngine(clock, 64),
		source:   source,
		recorder: recorder,
		notifier: notifier,
		logger:   logger.With().Str("component", "reminders").Logger(),
	}
	d.interval.Store(int64(interval))
	return d
}

// SetInterval changes the sync interval from the next tick on. It is safe
// to call while Run is active.
func (d *Dispatcher) SetInterval(interval time.Duration) {
	if interval > 0 {
		d.interval.Store(int64(interval))
	}
}

// Sync makes the queue match the open reminders: alerts that closed are
// withdrawn and new or moved firings are queued. It returns how many
// firings were queued.
func (d *Dispatcher) Sync(ctx context.Context) (int, error) {
	reminders, err := d.source.OpenReminders(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load reminders: %w", err)
	}

	if n := d.engine.Retain(reminders); n > 0 {
		d.logger.Debug().Int("withdrawn", n).Msg("closed reminders withdrawn")
	}
	added := 0
	for _, r := range reminders {
		ok, err := d.engine.Schedule(r)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

// Run dispatches reminders until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.engine.Start()
	defer d.engine.Stop()

	n, err := d.Sync(ctx)
	if err != nil {
		return err
	}
	d.logger.Info().Int("queued", n).Msg("reminder dispatch started")

	current := time.Duration(d.interval.Load())
	ticker := time.NewTicker(current)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if dropped := d.engine.Dropped(); dropped > 0 {
				d.logger.Warn().Uint64("dropped", dropped).Msg("reminders dropped while dispatching")
			}
			return nil
		case <-ticker.C:
			if next := time.Duration(d.interval.Load()); next != current {
				current = next
				ticker.Reset(current)
			}
			if n, err := d.Sync(ctx); err != nil {
				d.logger.Error().Err(err).Msg("reminder sync failed")
			} else if n > 0 {
				d.logger.Debug().Int("queued", n).Msg("reminders queued")
			}
		case r, ok := <-d.engine.C():
			if !ok {
				return nil
			}
			d.dispatch(ctx, r)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, r ports.Reminder) {
	log := d.logger.With().Str("instance", r.InstanceID).Str("alert", r.AlertID).Logger()

	if _, err := d.recorder.TriggerAlert(ctx, r.InstanceID, r.AlertID); err != nil {
		log.Debug().Err(err).Msg("reminder skipped")
		return
	}
	if d.notifier == nil || !d.notifier.IsEnabled() {
		log.Info().Str("title", r.Title).Msg("reminder triggered")
		return
	}
	if err := d.notifier.Deliver(ctx, r); err != nil {
		log.Error().Err(err).Msg("reminder delivery failed")
		return
	}
	log.Info().Str("title", r.Title).Str("channel", string(r.Channel)).Msg("reminder delivered")
}
