package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sahilm/fuzzy"
	"github.com/xvierd/cadence/internal/domain"
	"github.com/xvierd/cadence/internal/ports"
)

// templateRepository implements ports.TemplateRepository using SQLite.
type templateRepository struct {
	db *sql.DB
}

// newTemplateRepository creates a new template repository.
func newTemplateRepository(db *sql.DB) ports.TemplateRepository {
	return &templateRepository{db: db}
}

// Save persists a template to storage.
func (r *templateRepository) Save(ctx context.Context, tmpl *domain.TaskTemplate) error {
	query := `
		INSERT INTO templates (id, title, status, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	data, err := encodeTemplate(tmpl)
	if err != nil {
		return fmt.Errorf("failed to encode template: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		tmpl.ID,
		tmpl.Title,
		string(tmpl.Status),
		string(data),
		tmpl.CreatedAt.Timestamp(),
		tmpl.UpdatedAt.Timestamp(),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: template %s", domain.ErrDuplicateID, tmpl.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}

	return nil
}

// FindByID retrieves a template by its unique identifier.
func (r *templateRepository) FindByID(ctx context.Context, id string) (*domain.TaskTemplate, error) {
	query := `SELECT id, status, data FROM templates WHERE id = ?`

	tmpl, err := scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find template: %w", err)
	}

	return tmpl, nil
}

// FindAll retrieves all templates, optionally filtered by status.
func (r *templateRepository) FindAll(ctx context.Context, status *domain.TemplateStatus) ([]*domain.TaskTemplate, error) {
	var query string
	var args []interface{}

	if status != nil {
		query = `
			SELECT id, status, data
			FROM templates
			WHERE status = ?
			ORDER BY created_at DESC, title
		`
		args = append(args, string(*status))
	} else {
		query = `
			SELECT id, status, data
			FROM templates
			ORDER BY created_at DESC, title
		`
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	templates := []*domain.TaskTemplate{}
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, tmpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}

	return templates, nil
}

// FindByTitle does a fuzzy search for templates by title.
func (r *templateRepository) FindByTitle(ctx context.Context, query string) ([]*domain.TaskTemplate, error) {
	templates, err := r.FindAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get templates for fuzzy search: %w", err)
	}

	titles := make([]string, len(templates))
	for i, tmpl := range templates {
		titles[i] = tmpl.Title
	}

	// Matches come back best score first.
	matches := fuzzy.Find(query, titles)

	result := []*domain.TaskTemplate{}
	for _, match := range matches {
		if match.Score > 0 {
			result = append(result, templates[match.Index])
		}
	}

	return result, nil
}

// Update modifies an existing template.
func (r *templateRepository) Update(ctx context.Context, tmpl *domain.TaskTemplate) error {
	query := `
		UPDATE templates
		SET title = ?, status = ?, data = ?, updated_at = ?
		WHERE id = ?
	`

	data, err := encodeTemplate(tmpl)
	if err != nil {
		return fmt.Errorf("failed to encode template: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query,
		tmpl.Title,
		string(tmpl.Status),
		string(data),
		tmpl.UpdatedAt.Timestamp(),
		tmpl.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrTemplateNotFound
	}

	return nil
}

// Delete removes a template from storage. It fails while instances still
// reference the template.
func (r *templateRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM templates WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, id)
	if isForeignKeyError(err) {
		return fmt.Errorf("template %s still has instances: %w", id, err)
	}
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrTemplateNotFound
	}

	return nil
}

func scanTemplate(row rowScanner) (*domain.TaskTemplate, error) {
	var id, status, data string
	if err := row.Scan(&id, &status, &data); err != nil {
		return nil, err
	}
	return decodeTemplate(id, domain.TemplateStatus(status), []byte(data))
}
