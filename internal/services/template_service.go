package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/xvierd/cadence/internal/domain"
	"github.com/xvierd/cadence/internal/ports"
	"github.com/xvierd/cadence/internal/schedule"
)

// TemplateService handles template-related use cases.
type TemplateService struct {
	storage  ports.Storage
	clock    domain.Clock
	logger   zerolog.Logger
	settings Settings
}

// NewTemplateService creates a new template service.
func NewTemplateService(storage ports.Storage, clock domain.Clock, logger zerolog.Logger) *TemplateService {
	return &TemplateService{
		storage:  storage,
		clock:    clock,
		logger:   logger.With().Str("service", "template").Logger(),
		settings: DefaultSettings(),
	}
}

// SetSettings updates the service settings.
func (s *TemplateService) SetSettings(settings Settings) {
	s.settings = settings.withDefaults()
}

// CreateTemplateRequest contains the data needed to create a new template.
type CreateTemplateRequest struct {
	Title          string
	Description    string
	Time           domain.TimeConfig
	Reminders      domain.ReminderConfig
	Policy         *domain.SchedulingPolicy
	Metadata       *domain.Metadata
	KeyResultLinks []string
	// Activate moves the template straight out of draft.
	Activate bool
}

// CreateTemplate validates and stores a new template.
func (s *TemplateService) CreateTemplate(ctx context.Context, req CreateTemplateRequest) (*domain.TaskTemplate, error) {
	now := s.clock.Now()
	tmpl := domain.NewTemplate(req.Title, req.Time, now)
	tmpl.Description = req.Description
	tmpl.Reminders = req.Reminders
	if req.Policy != nil {
		tmpl.Policy = *req.Policy
	}
	if req.Metadata != nil {
		tmpl.Metadata = *req.Metadata
		if tmpl.Metadata.Tags == nil {
			tmpl.Metadata.Tags = []string{}
		}
	}
	if tmpl.Time.Kind == domain.TimeTimed && tmpl.Metadata.EstimatedDuration == nil {
		d := s.settings.DefaultDuration
		tmpl.Metadata.EstimatedDuration = &d
	}
	if req.KeyResultLinks != nil {
		tmpl.KeyResultLinks = req.KeyResultLinks
	}

	if err := tmpl.ValidateConfiguration().Err(); err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}
	if req.Activate {
		if err := tmpl.Activate(now); err != nil {
			return nil, err
		}
	}

	if err := s.storage.Templates().Save(ctx, tmpl); err != nil {
		return nil, fmt.Errorf("failed to save template: %w", err)
	}

	s.logger.Info().Str("template", tmpl.ID).Str("rule", domain.DescribeRule(tmpl.Time.Recurrence)).Msg("template created")
	return tmpl, nil
}

// GetTemplate retrieves a single template by ID.
func (s *TemplateService) GetTemplate(ctx context.Context, id string) (*domain.TaskTemplate, error) {
	return s.storage.Templates().FindByID(ctx, id)
}

// ListTemplates retrieves templates, optionally filtered by status.
func (s *TemplateService) ListTemplates(ctx context.Context, status *domain.TemplateStatus) ([]*domain.TaskTemplate, error) {
	return s.storage.Templates().FindAll(ctx, status)
}

// SearchTemplates fuzzy-matches templates by title.
func (s *TemplateService) SearchTemplates(ctx context.Context, query string) ([]*domain.TaskTemplate, error) {
	return s.storage.Templates().FindByTitle(ctx, query)
}

// UpdateResult reports an edit and its effect on existing instances.
type UpdateResult struct {
	Template *domain.TaskTemplate
	Changes  schedule.TemplateChanges
	Updated  []*domain.TaskInstance
}

// UpdateTemplate applies patch and pushes the changed facets onto the
// template's instances that are not completed.
func (s *TemplateService) UpdateTemplate(ctx context.Context, id string, patch domain.TemplatePatch) (*UpdateResult, error) {
	before, err := s.storage.Templates().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find template: %w", err)
	}

	now := s.clock.Now()
	after := before.Clone()
	if err := after.ApplyPatch(patch, now); err != nil {
		return nil, err
	}
	if err := s.storage.Templates().Update(ctx, after); err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}

	result := &UpdateResult{
		Template: after,
		Changes:  schedule.DiffTemplates(before, after),
		Updated:  []*domain.TaskInstance{},
	}
	if !result.Changes.Any() {
		return result, nil
	}

	instances, err := s.storage.Instances().Find(ctx, ports.InstanceFilter{
		TemplateID: id,
		Statuses:   []domain.InstanceStatus{domain.StatusPending, domain.StatusInProgress, domain.StatusCancelled},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load instances: %w", err)
	}

	result.Updated = schedule.Propagate(result.Changes, after, instances, now)
	if err := s.storage.Instances().UpdateAll(ctx, result.Updated); err != nil {
		return nil, fmt.Errorf("failed to update instances: %w", err)
	}

	s.logger.Info().
		Str("template", id).
		Str("changes", result.Changes.String()).
		Int("instances", len(result.Updated)).
		Msg("template changes propagated")
	return result, nil
}

// ActivateTemplate makes a template eligible for generation.
func (s *TemplateService) ActivateTemplate(ctx context.Context, id string) (*domain.TaskTemplate, error) {
	return s.transition(ctx, id, (*domain.TaskTemplate).Activate)
}

// PauseTemplate stops generation for an active template.
func (s *TemplateService) PauseTemplate(ctx context.Context, id string) (*domain.TaskTemplate, error) {
	return s.transition(ctx, id, (*domain.TaskTemplate).Pause)
}

// ArchiveTemplate retires a template.
func (s *TemplateService) ArchiveTemplate(ctx context.Context, id string) (*domain.TaskTemplate, error) {
	return s.transition(ctx, id, (*domain.TaskTemplate).Archive)
}

func (s *TemplateService) transition(ctx context.Context, id string, apply func(*domain.TaskTemplate, domain.Moment) error) (*domain.TaskTemplate, error) {
	tmpl, err := s.storage.Templates().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find template: %w", err)
	}

	if err := apply(tmpl, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.storage.Templates().Update(ctx, tmpl); err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}

	return tmpl, nil
}

// DeleteTemplate removes a template. A template that has produced instances
// can only be removed with force, which deletes its instances too. It
// returns the number of instances removed.
func (s *TemplateService) DeleteTemplate(ctx context.Context, id string, force bool) (int, error) {
	tmpl, err := s.storage.Templates().FindByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to find template: %w", err)
	}

	if ok, reason := tmpl.CanDelete(); !ok && !force {
		return 0, rejectTemplate(tmpl, "delete", reason)
	}

	removed := 0
	if force {
		removed, err = s.storage.Instances().DeleteByTemplate(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("failed to delete instances: %w", err)
		}
	}
	if err := s.storage.Templates().Delete(ctx, id); err != nil {
		return removed, fmt.Errorf("failed to delete template: %w", err)
	}

	if removed > 0 {
		s.logger.Warn().Str("template", id).Int("instances", removed).Msg("template deleted with its instances")
	}
	return removed, nil
}

// GenerateRequest selects the generation mode. With both From and To set
// every occurrence in the range is generated, otherwise up to Count
// upcoming occurrences.
type GenerateRequest struct {
	Count int
	From  *domain.Moment
	To    *domain.Moment
}

// GenerateInstances expands an active template into instances. Occurrences
// that already have an instance are left alone. Conflicts with other open
// instances are reported but do not block generation.
func (s *TemplateService) GenerateInstances(ctx context.Context, id string, req GenerateRequest) (*ports.GenerationReport, error) {
	tmpl, err := s.storage.Templates().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find template: %w", err)
	}
	if ok, reason := tmpl.CanGenerate(); !ok {
		return nil, rejectTemplate(tmpl, "generate", reason)
	}

	generator := schedule.NewGenerator(s.clock, s.settings.Schedule)
	var res schedule.Result
	if req.From != nil && req.To != nil {
		res = generator.GenerateInRange(tmpl, *req.From, *req.To)
	} else {
		count := req.Count
		if count <= 0 {
			count = s.settings.MaxInstances
		}
		res = generator.GenerateBoundedCount(tmpl, count)
	}

	existing, err := s.storage.Instances().Find(ctx, ports.InstanceFilter{TemplateID: id})
	if err != nil {
		return nil, fmt.Errorf("failed to load instances: %w", err)
	}
	seen := make(map[int64]bool, len(existing))
	for _, inst := range existing {
		seen[occurrenceOf(inst).Timestamp()] = true
	}

	report := &ports.GenerationReport{
		Template:  tmpl,
		Instances: []*domain.TaskInstance{},
		Skipped:   res.Skipped,
		Truncated: res.Truncated,
		Conflicts: map[string][]*domain.TaskInstance{},
	}
	for _, inst := range res.Instances {
		if seen[occurrenceOf(inst).Timestamp()] {
			report.Existing++
			continue
		}
		report.Instances = append(report.Instances, inst)
	}

	if res.Invalid != nil {
		s.logger.Warn().
			Err(res.Invalid).
			Str("template", id).
			Msg("recurrence rule is misconfigured; nothing generated")
	}
	if res.Truncated {
		s.logger.Warn().
			Str("template", id).
			Int("iterations", res.Iterations).
			Int("instances", len(report.Instances)).
			Msg("generation stopped at the iteration limit")
	}
	if len(report.Instances) == 0 {
		return report, nil
	}

	if err := s.storage.Instances().SaveAll(ctx, report.Instances); err != nil {
		return nil, fmt.Errorf("failed to save instances: %w", err)
	}
	tmpl.RecordGenerated(len(report.Instances), s.clock.Now())
	if err := s.storage.Templates().Update(ctx, tmpl); err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}

	open, err := s.storage.Instances().Find(ctx, ports.OpenInstances())
	if err != nil {
		return nil, fmt.Errorf("failed to load open instances: %w", err)
	}
	for _, inst := range report.Instances {
		if conflicts := schedule.FindConflicts(inst, open); len(conflicts) > 0 {
			report.Conflicts[inst.ID] = conflicts
		}
	}

	s.logger.Info().
		Str("template", id).
		Int("instances", len(report.Instances)).
		Int("skipped", report.Skipped).
		Int("existing", report.Existing).
		Int("conflicting", len(report.Conflicts)).
		Msg("instances generated")
	return report, nil
}

// occurrenceOf is the occurrence an instance was generated for, which
// survives rescheduling.
func occurrenceOf(inst *domain.TaskInstance) domain.Moment {
	if !inst.Time.BaseScheduled.IsZero() {
		return inst.Time.BaseScheduled
	}
	return inst.Time.Scheduled
}
