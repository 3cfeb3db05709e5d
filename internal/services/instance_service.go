package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xvierd/cadence/internal/domain"
	"github.com/xvierd/cadence/internal/ports"
	"github.com/xvierd/cadence/internal/schedule"
)

// InstanceService handles task instance use cases.
type InstanceService struct {
	storage  ports.Storage
	clock    domain.Clock
	logger   zerolog.Logger
	settings Settings
}

// NewInstanceService creates a new instance service.
func NewInstanceService(storage ports.Storage, clock domain.Clock, logger zerolog.Logger) *InstanceService {
	return &InstanceService{
		storage:  storage,
		clock:    clock,
		logger:   logger.With().Str("service", "instance").Logger(),
		settings: DefaultSettings(),
	}
}

// SetSettings updates the service settings.
func (s *InstanceService) SetSettings(settings Settings) {
	s.settings = settings.withDefaults()
}

// CreateInstanceRequest contains the data needed for an ad hoc instance.
type CreateInstanceRequest struct {
	Title       string
	Description string
	Time        domain.InstanceTimeConfig
	Alerts      []domain.AlertSpec
	Metadata    *domain.Metadata
	// Locked forbids rescheduling the instance.
	Locked bool
}

// CreateInstance stores an instance that does not belong to any template.
func (s *InstanceService) CreateInstance(ctx context.Context, req CreateInstanceRequest) (*domain.TaskInstance, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, errors.New("invalid instance: title is required")
	}
	if req.Time.Scheduled.IsZero() {
		return nil, errors.New("invalid instance: scheduled time is required")
	}
	if req.Time.End != nil && !req.Time.End.After(req.Time.Scheduled) {
		return nil, errors.New("invalid instance: end must be after the scheduled time")
	}
	for _, spec := range req.Alerts {
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("invalid alert: %w", err)
		}
	}

	now := s.clock.Now()
	tc := req.Time
	tc.AllowReschedule = !req.Locked
	inst := domain.NewInstance("", req.Title, tc, now)
	inst.Description = req.Description
	if req.Metadata != nil {
		inst.Metadata = *req.Metadata
	}
	inst.Reminders.Alerts = domain.ComputeReminderSchedule(inst.Time.Scheduled, req.Alerts, now)

	if err := s.storage.Instances().Save(ctx, inst); err != nil {
		return nil, fmt.Errorf("failed to save instance: %w", err)
	}

	return inst, nil
}

// GetInstance retrieves a single instance by ID.
func (s *InstanceService) GetInstance(ctx context.Context, id string) (*domain.TaskInstance, error) {
	return s.storage.Instances().FindByID(ctx, id)
}

// ListInstances retrieves instances matching the filter.
func (s *InstanceService) ListInstances(ctx context.Context, filter ports.InstanceFilter) ([]*domain.TaskInstance, error) {
	return s.storage.Instances().Find(ctx, filter)
}

// StartInstance marks an instance as in progress.
func (s *InstanceService) StartInstance(ctx context.Context, id string) (*domain.TaskInstance, error) {
	return s.mutate(ctx, id, func(inst *domain.TaskInstance, now domain.Moment) error {
		return inst.Start(now)
	})
}

// CompleteInstance marks an instance as completed and counts the completion
// on its template.
func (s *InstanceService) CompleteInstance(ctx context.Context, id string) (*domain.TaskInstance, error) {
	inst, err := s.mutate(ctx, id, func(inst *domain.TaskInstance, now domain.Moment) error {
		return inst.Complete(now)
	})
	if err != nil {
		return nil, err
	}
	if err := s.adjustTemplate(ctx, inst.TemplateID, func(t *domain.TaskTemplate) { t.RecordCompletion(1) }); err != nil {
		return nil, err
	}
	return inst, nil
}

// UndoComplete reverts a completion.
func (s *InstanceService) UndoComplete(ctx context.Context, id string) (*domain.TaskInstance, error) {
	inst, err := s.mutate(ctx, id, func(inst *domain.TaskInstance, now domain.Moment) error {
		return inst.UndoComplete(now)
	})
	if err != nil {
		return nil, err
	}
	if err := s.adjustTemplate(ctx, inst.TemplateID, func(t *domain.TaskTemplate) { t.RecordCompletion(-1) }); err != nil {
		return nil, err
	}
	return inst, nil
}

// CancelInstance abandons an instance.
func (s *InstanceService) CancelInstance(ctx context.Context, id, reason string) (*domain.TaskInstance, error) {
	return s.mutate(ctx, id, func(inst *domain.TaskInstance, now domain.Moment) error {
		return inst.Cancel(now, reason)
	})
}

// RescheduleResult reports a move and the open instances it now overlaps.
type RescheduleResult struct {
	Instance  *domain.TaskInstance
	Conflicts []*domain.TaskInstance
}

// RescheduleInstance moves an instance to newTime. The owning template's
// current policy must still allow rescheduling. Conflicts are advisory.
func (s *InstanceService) RescheduleInstance(ctx context.Context, id string, newTime domain.Moment) (*RescheduleResult, error) {
	inst, err := s.storage.Instances().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find instance: %w", err)
	}

	if inst.TemplateID != "" {
		tmpl, err := s.storage.Templates().FindByID(ctx, inst.TemplateID)
		if err != nil {
			return nil, fmt.Errorf("failed to find template: %w", err)
		}
		if !tmpl.Policy.AllowReschedule {
			return nil, &domain.TransitionError{
				Entity: "instance",
				Action: "reschedule",
				From:   string(inst.Status),
				Reason: "template does not allow rescheduling",
			}
		}
	}

	if err := inst.Reschedule(newTime, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.storage.Instances().Update(ctx, inst); err != nil {
		return nil, fmt.Errorf("failed to update instance: %w", err)
	}

	conflicts, err := s.conflictsFor(ctx, inst)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		s.logger.Info().Str("instance", id).Int("conflicts", len(conflicts)).Msg("rescheduled instance overlaps other work")
	}

	return &RescheduleResult{Instance: inst, Conflicts: conflicts}, nil
}

// DeleteInstance removes an instance and lowers its template's counters.
func (s *InstanceService) DeleteInstance(ctx context.Context, id string) error {
	inst, err := s.storage.Instances().FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find instance: %w", err)
	}
	if err := s.storage.Instances().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete instance: %w", err)
	}

	completed := 0
	if inst.Status == domain.StatusCompleted {
		completed = 1
	}
	return s.adjustTemplate(ctx, inst.TemplateID, func(t *domain.TaskTemplate) { t.RecordRemoved(1, completed) })
}

// TriggerAlert fires an alert.
func (s *InstanceService) TriggerAlert(ctx context.Context, id, alertID string) (*domain.TaskInstance, error) {
	return s.mutate(ctx, id, func(inst *domain.TaskInstance, now domain.Moment) error {
		return inst.TriggerAlert(alertID, now)
	})
}

// DismissAlert closes an alert.
func (s *InstanceService) DismissAlert(ctx context.Context, id, alertID string) (*domain.TaskInstance, error) {
	return s.mutate(ctx, id, func(inst *domain.TaskInstance, now domain.Moment) error {
		return inst.DismissAlert(alertID, now)
	})
}

// SnoozeAlert postpones an alert until until, or by the default snooze when
// until is nil. The configured snooze cap applies per instance.
func (s *InstanceService) SnoozeAlert(ctx context.Context, id, alertID string, until *domain.Moment, reason string) (*domain.TaskInstance, error) {
	return s.mutate(ctx, id, func(inst *domain.TaskInstance, now domain.Moment) error {
		if limit := s.settings.MaxSnoozes; limit > 0 && inst.Reminders.SnoozeCount >= limit {
			return fmt.Errorf("%w: %d of %d used", domain.ErrSnoozeLimitReached, inst.Reminders.SnoozeCount, limit)
		}
		target := now.Add(s.settings.DefaultSnooze)
		if until != nil {
			target = *until
		}
		return inst.SnoozeAlert(alertID, target, reason, now)
	})
}

// NextReminder returns the open alert that fires first across all open
// instances, or nil when nothing is pending.
func (s *InstanceService) NextReminder(ctx context.Context) (*domain.ReminderRef, error) {
	instances, err := s.storage.Instances().Find(ctx, ports.OpenInstances())
	if err != nil {
		return nil, fmt.Errorf("failed to load instances: %w", err)
	}

	var next *domain.ReminderRef
	for _, inst := range instances {
		a, ok := inst.NextReminder()
		if !ok {
			continue
		}
		if next == nil || a.FireTime().Before(next.Alert.FireTime()) {
			next = &domain.ReminderRef{InstanceID: inst.ID, Title: inst.Title, Alert: a}
		}
	}
	return next, nil
}

// OpenReminders lists every open alert of every open instance as a
// deliverable reminder, in no particular order.
func (s *InstanceService) OpenReminders(ctx context.Context) ([]ports.Reminder, error) {
	instances, err := s.storage.Instances().Find(ctx, ports.OpenInstances())
	if err != nil {
		return nil, fmt.Errorf("failed to load instances: %w", err)
	}

	reminders := []ports.Reminder{}
	for _, inst := range instances {
		for _, a := range inst.Reminders.Alerts {
			if a.IsOpen() {
				reminders = append(reminders, toReminder(inst, a))
			}
		}
	}
	return reminders, nil
}

// DueReminders lists the open alerts whose fire time has passed.
func (s *InstanceService) DueReminders(ctx context.Context) ([]ports.Reminder, error) {
	instances, err := s.storage.Instances().Find(ctx, ports.OpenInstances())
	if err != nil {
		return nil, fmt.Errorf("failed to load instances: %w", err)
	}

	now := s.clock.Now()
	reminders := []ports.Reminder{}
	for _, inst := range instances {
		for _, a := range inst.DueAlerts(now) {
			reminders = append(reminders, toReminder(inst, a))
		}
	}
	return reminders, nil
}

func toReminder(inst *domain.TaskInstance, a domain.AlertState) ports.Reminder {
	msg := a.Spec.Message
	if msg == "" {
		msg = "Scheduled at " + inst.Time.Scheduled.String()
	}
	return ports.Reminder{
		InstanceID: inst.ID,
		AlertID:    a.ID,
		Title:      inst.Title,
		Message:    msg,
		Channel:    a.Spec.Channel,
		Scheduled:  inst.Time.Scheduled,
		FireAt:     a.FireTime(),
	}
}

// DetectConflicts returns the open instances overlapping the given one.
func (s *InstanceService) DetectConflicts(ctx context.Context, id string) ([]*domain.TaskInstance, error) {
	inst, err := s.storage.Instances().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find instance: %w", err)
	}
	return s.conflictsFor(ctx, inst)
}

// AllConflicts returns every overlapping pair among open instances.
func (s *InstanceService) AllConflicts(ctx context.Context) ([]schedule.Conflict, error) {
	open, err := s.storage.Instances().Find(ctx, ports.OpenInstances())
	if err != nil {
		return nil, fmt.Errorf("failed to load instances: %w", err)
	}
	return schedule.FindAllConflicts(open), nil
}

func (s *InstanceService) conflictsFor(ctx context.Context, inst *domain.TaskInstance) ([]*domain.TaskInstance, error) {
	open, err := s.storage.Instances().Find(ctx, ports.OpenInstances())
	if err != nil {
		return nil, fmt.Errorf("failed to load instances: %w", err)
	}
	return schedule.FindConflicts(inst, open), nil
}

// mutate loads an instance, applies fn and stores the result.
func (s *InstanceService) mutate(ctx context.Context, id string, fn func(*domain.TaskInstance, domain.Moment) error) (*domain.TaskInstance, error) {
	inst, err := s.storage.Instances().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find instance: %w", err)
	}

	if err := fn(inst, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.storage.Instances().Update(ctx, inst); err != nil {
		return nil, fmt.Errorf("failed to update instance: %w", err)
	}

	return inst, nil
}

func (s *InstanceService) adjustTemplate(ctx context.Context, templateID string, fn func(*domain.TaskTemplate)) error {
	if templateID == "" {
		return nil
	}
	tmpl, err := s.storage.Templates().FindByID(ctx, templateID)
	if err != nil {
		return fmt.Errorf("failed to find template: %w", err)
	}
	fn(tmpl)
	if err := s.storage.Templates().Update(ctx, tmpl); err != nil {
		return fmt.Errorf("failed to update template stats: %w", err)
	}
	return nil
}
