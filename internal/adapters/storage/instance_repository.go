package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/xvierd/cadence/internal/domain"
	"github.com/xvierd/cadence/internal/ports"
)

// instanceRepository implements ports.InstanceRepository using SQLite.
type instanceRepository struct {
	db *sql.DB
}

// newInstanceRepository creates a new instance repository.
func newInstanceRepository(db *sql.DB) ports.InstanceRepository {
	return &instanceRepository{db: db}
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func nullableTemplateID(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}

func insertInstance(ctx context.Context, ex execer, inst *domain.TaskInstance) error {
	query := `
		INSERT INTO instances (id, template_id, status, scheduled_at, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	data, err := encodeInstance(inst)
	if err != nil {
		return fmt.Errorf("failed to encode instance: %w", err)
	}

	_, err = ex.ExecContext(ctx, query,
		inst.ID,
		nullableTemplateID(inst.TemplateID),
		string(inst.Status),
		inst.Time.Scheduled.Timestamp(),
		string(data),
		inst.UpdatedAt.Timestamp(),
	)
	switch {
	case isUniqueConstraintError(err):
		return fmt.Errorf("%w: instance %s", domain.ErrDuplicateID, inst.ID)
	case isForeignKeyError(err):
		return fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, inst.TemplateID)
	case err != nil:
		return fmt.Errorf("failed to save instance: %w", err)
	}
	return nil
}

func updateInstance(ctx context.Context, ex execer, inst *domain.TaskInstance) error {
	query := `
		UPDATE instances
		SET status = ?, scheduled_at = ?, data = ?, updated_at = ?
		WHERE id = ?
	`

	data, err := encodeInstance(inst)
	if err != nil {
		return fmt.Errorf("failed to encode instance: %w", err)
	}

	result, err := ex.ExecContext(ctx, query,
		string(inst.Status),
		inst.Time.Scheduled.Timestamp(),
		string(data),
		inst.UpdatedAt.Timestamp(),
		inst.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update instance: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, inst.ID)
	}
	return nil
}

// inTx runs fn inside a transaction, rolling back on error.
func (r *instanceRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Save persists an instance to storage.
func (r *instanceRepository) Save(ctx context.Context, inst *domain.TaskInstance) error {
	return insertInstance(ctx, r.db, inst)
}

// SaveAll persists a batch of instances in one transaction.
func (r *instanceRepository) SaveAll(ctx context.Context, instances []*domain.TaskInstance) error {
	if len(instances) == 0 {
		return nil
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		for _, inst := range instances {
			if err := insertInstance(ctx, tx, inst); err != nil {
				return err
			}
		}
		return nil
	})
}

// FindByID retrieves an instance by its unique identifier.
func (r *instanceRepository) FindByID(ctx context.Context, id string) (*domain.TaskInstance, error) {
	query := `SELECT id, template_id, status, data FROM instances WHERE id = ?`

	inst, err := scanInstance(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrInstanceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find instance: %w", err)
	}

	return inst, nil
}

// Find returns instances matching the filter ordered by scheduled time.
func (r *instanceRepository) Find(ctx context.Context, filter ports.InstanceFilter) ([]*domain.TaskInstance, error) {
	var where []string
	var args []interface{}

	if filter.TemplateID != "" {
		where = append(where, "template_id = ?")
		args = append(args, filter.TemplateID)
	}
	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			marks[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if filter.From != nil {
		where = append(where, "scheduled_at >= ?")
		args = append(args, filter.From.Timestamp())
	}
	if filter.To != nil {
		where = append(where, "scheduled_at <= ?")
		args = append(args, filter.To.Timestamp())
	}

	query := `SELECT id, template_id, status, data FROM instances`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY scheduled_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	defer func() { _ = rows.Close() }()

	instances := []*domain.TaskInstance{}
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instances: %w", err)
	}

	return instances, nil
}

// Update modifies an existing instance.
func (r *instanceRepository) Update(ctx context.Context, inst *domain.TaskInstance) error {
	return updateInstance(ctx, r.db, inst)
}

// UpdateAll modifies a batch of instances in one transaction.
func (r *instanceRepository) UpdateAll(ctx context.Context, instances []*domain.TaskInstance) error {
	if len(instances) == 0 {
		return nil
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		for _, inst := range instances {
			if err := updateInstance(ctx, tx, inst); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes an instance from storage.
func (r *instanceRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM instances WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete instance: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrInstanceNotFound
	}

	return nil
}

// DeleteByTemplate removes every instance of a template.
func (r *instanceRepository) DeleteByTemplate(ctx context.Context, templateID string) (int, error) {
	query := `DELETE FROM instances WHERE template_id = ?`

	result, err := r.db.ExecContext(ctx, query, templateID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete instances: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}

func scanInstance(row rowScanner) (*domain.TaskInstance, error) {
	var id, status, data string
	var templateID sql.NullString
	if err := row.Scan(&id, &templateID, &status, &data); err != nil {
		return nil, err
	}
	return decodeInstance(id, templateID.String, domain.InstanceStatus(status), []byte(data))
}
