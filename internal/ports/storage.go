// Package ports defines the interfaces (driven and driving ports)
// for the cadence application following hexagonal architecture principles.
// These interfaces define the contracts between the domain layer and
// external infrastructure.
package ports

import (
	"context"
	"slices"

	"github.com/xvierd/cadence/internal/domain"
)

// TemplateRepository defines the interface for template persistence.
// This is a driven port (implemented by adapters).
type TemplateRepository interface {
	// Save persists a new template.
	Save(ctx context.Context, tmpl *domain.TaskTemplate) error

	// FindByID retrieves a template by its unique identifier.
	FindByID(ctx context.Context, id string) (*domain.TaskTemplate, error)

	// FindAll retrieves all templates, optionally filtered by status.
	FindAll(ctx context.Context, status *domain.TemplateStatus) ([]*domain.TaskTemplate, error)

	// FindByTitle does a fuzzy search for templates by title.
	FindByTitle(ctx context.Context, query string) ([]*domain.TaskTemplate, error)

	// Update modifies an existing template.
	Update(ctx context.Context, tmpl *domain.TaskTemplate) error

	// Delete removes a template from storage.
	Delete(ctx context.Context, id string) error
}

// InstanceFilter narrows instance queries. Zero fields do not filter.
type InstanceFilter struct {
	TemplateID string
	Statuses   []domain.InstanceStatus
	// From and To bound the scheduled time, both inclusive.
	From  *domain.Moment
	To    *domain.Moment
	Limit int
}

// OpenInstances matches instances that are neither completed nor cancelled.
func OpenInstances() InstanceFilter {
	return InstanceFilter{Statuses: []domain.InstanceStatus{domain.StatusPending, domain.StatusInProgress}}
}

// Matches reports whether inst passes the filter, ignoring Limit.
func (f InstanceFilter) Matches(inst *domain.TaskInstance) bool {
	if f.TemplateID != "" && inst.TemplateID != f.TemplateID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, inst.Status) {
		return false
	}
	if f.From != nil && inst.Time.Scheduled.Before(*f.From) {
		return false
	}
	if f.To != nil && inst.Time.Scheduled.After(*f.To) {
		return false
	}
	return true
}

// InstanceRepository defines the interface for task instance persistence.
// This is a driven port (implemented by adapters).
type InstanceRepository interface {
	// Save persists a new instance.
	Save(ctx context.Context, inst *domain.TaskInstance) error

	// SaveAll persists a batch of new instances atomically.
	SaveAll(ctx context.Context, instances []*domain.TaskInstance) error

	// FindByID retrieves an instance by its unique identifier.
	FindByID(ctx context.Context, id string) (*domain.TaskInstance, error)

	// Find returns instances matching the filter ordered by scheduled time.
	Find(ctx context.Context, filter InstanceFilter) ([]*domain.TaskInstance, error)

	// Update modifies an existing instance.
	Update(ctx context.Context, inst *domain.TaskInstance) error

	// UpdateAll modifies a batch of instances atomically.
	UpdateAll(ctx context.Context, instances []*domain.TaskInstance) error

	// Delete removes an instance from storage.
	Delete(ctx context.Context, id string) error

	// DeleteByTemplate removes every instance of a template and returns how
	// many were removed.
	DeleteByTemplate(ctx context.Context, templateID string) (int, error)
}

// Storage is the combined repository interface.
// This is a driven port (implemented by adapters).
type Storage interface {
	// Templates provides access to template operations.
	Templates() TemplateRepository

	// Instances provides access to instance operations.
	Instances() InstanceRepository

	// Close closes the storage connection.
	Close() error

	// Migrate runs database migrations.
	Migrate() error
}
