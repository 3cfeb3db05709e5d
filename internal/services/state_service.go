package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/xvierd/cadence/internal/domain"
	"github.com/xvierd/cadence/internal/ports"
)

// errServiceUnavailable is returned when a write operation is requested
// before the matching service was attached.
var errServiceUnavailable = errors.New("service not configured")

// StateService implements the MCPStateProvider interface.
type StateService struct {
	storage     ports.Storage
	clock       domain.Clock
	templateSvc *TemplateService
	instanceSvc *InstanceService
}

// NewStateService creates a new state service.
func NewStateService(storage ports.Storage, clock domain.Clock) *StateService {
	return &StateService{storage: storage, clock: clock}
}

// SetTemplateService sets the template service for write operations.
func (s *StateService) SetTemplateService(templateSvc *TemplateService) {
	s.templateSvc = templateSvc
}

// SetInstanceService sets the instance service for write operations.
func (s *StateService) SetInstanceService(instanceSvc *InstanceService) {
	s.instanceSvc = instanceSvc
}

// GetSnapshot implements ports.MCPStateProvider.
func (s *StateService) GetSnapshot(ctx context.Context, upcoming int) (*domain.StateSnapshot, error) {
	now := s.clock.Now()

	open, err := s.storage.Instances().Find(ctx, ports.OpenInstances())
	if err != nil {
		return nil, fmt.Errorf("failed to load open instances: %w", err)
	}

	// Today's finished instances count towards the daily stats as well.
	from, to := now.StartOfDay(), now.EndOfDay()
	finished, err := s.storage.Instances().Find(ctx, ports.InstanceFilter{
		Statuses: []domain.InstanceStatus{domain.StatusCompleted, domain.StatusCancelled},
		From:     &from,
		To:       &to,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load today's instances: %w", err)
	}

	snap := domain.BuildSnapshot(open, now, upcoming)
	snap.CurrentState.TodayStats = domain.BuildDailyStats(now, append(open, finished...), now)
	return &snap, nil
}

// ListTemplates implements ports.MCPStateProvider.
func (s *StateService) ListTemplates(ctx context.Context, status *domain.TemplateStatus) ([]*domain.TaskTemplate, error) {
	return s.storage.Templates().FindAll(ctx, status)
}

// ListInstances implements ports.MCPStateProvider.
func (s *StateService) ListInstances(ctx context.Context, filter ports.InstanceFilter) ([]*domain.TaskInstance, error) {
	return s.storage.Instances().Find(ctx, filter)
}

// GenerateInstances implements ports.MCPStateProvider.
func (s *StateService) GenerateInstances(ctx context.Context, templateID string, count int) (*ports.GenerationReport, error) {
	if s.templateSvc == nil {
		return nil, errServiceUnavailable
	}
	return s.templateSvc.GenerateInstances(ctx, templateID, GenerateRequest{Count: count})
}

// CompleteInstance implements ports.MCPStateProvider.
func (s *StateService) CompleteInstance(ctx context.Context, instanceID string) (*domain.TaskInstance, error) {
	if s.instanceSvc == nil {
		return nil, errServiceUnavailable
	}
	return s.instanceSvc.CompleteInstance(ctx, instanceID)
}

// DetectConflicts implements ports.MCPStateProvider.
func (s *StateService) DetectConflicts(ctx context.Context, instanceID string) ([]*domain.TaskInstance, error) {
	if s.instanceSvc == nil {
		return nil, errServiceUnavailable
	}
	return s.instanceSvc.DetectConflicts(ctx, instanceID)
}

// NextReminder implements ports.MCPStateProvider.
func (s *StateService) NextReminder(ctx context.Context) (*domain.ReminderRef, error) {
	if s.instanceSvc == nil {
		return nil, errServiceUnavailable
	}
	return s.instanceSvc.NextReminder(ctx)
}

// Ensure StateService implements MCPStateProvider.
var _ ports.MCPStateProvider = (*StateService)(nil)
