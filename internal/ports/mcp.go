package ports

import (
	"context"

	"github.com/xvierd/cadence/internal/domain"
)

// MCPHandler defines the interface for MCP server operations.
// This is a driving port (called by the application layer).
type MCPHandler interface {
	// Start begins serving MCP requests.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the server.
	Stop() error

	// IsRunning returns true if the server is active.
	IsRunning() bool
}

// MCPStateProvider provides scheduling state and actions to the MCP server.
// This is a driven port (implemented by services layer).
type MCPStateProvider interface {
	// GetSnapshot returns the current agenda.
	GetSnapshot(ctx context.Context, upcoming int) (*domain.StateSnapshot, error)

	// ListTemplates returns templates, optionally filtered by status.
	ListTemplates(ctx context.Context, status *domain.TemplateStatus) ([]*domain.TaskTemplate, error)

	// ListInstances returns instances matching the filter.
	ListInstances(ctx context.Context, filter InstanceFilter) ([]*domain.TaskInstance, error)

	// GenerateInstances expands a template and persists the new instances.
	GenerateInstances(ctx context.Context, templateID string, count int) (*GenerationReport, error)

	// CompleteInstance marks an instance as completed.
	CompleteInstance(ctx context.Context, instanceID string) (*domain.TaskInstance, error)

	// DetectConflicts returns open instances overlapping the given one.
	DetectConflicts(ctx context.Context, instanceID string) ([]*domain.TaskInstance, error)

	// NextReminder returns the open alert that fires first, if any.
	NextReminder(ctx context.Context) (*domain.ReminderRef, error)
}

// GenerationReport summarizes one generation run.
type GenerationReport struct {
	Template  *domain.TaskTemplate
	Instances []*domain.TaskInstance
	Skipped   int
	// Existing counts occurrences that already had an instance.
	Existing  int
	Truncated bool
	// Conflicts maps a new instance ID to the instances it overlaps.
	Conflicts map[string][]*domain.TaskInstance
}
