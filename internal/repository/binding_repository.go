package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bienestar-dev/eventos-api/internal/models"
)

// BindingRepository handles persistence of level bindings.
type BindingRepository struct {
	db *sqlx.DB
}

// NewBindingRepository constructs the repository.
func NewBindingRepository(db *sqlx.DB) *BindingRepository {
	return &BindingRepository{db: db}
}

// Create persists a new level binding.
func (r *BindingRepository) Create(ctx context.Context, binding *models.LevelBinding) error {
	if binding.ID == "" {
		binding.ID = uuid.NewString()
	}
	if binding.CreatedAt.IsZero() {
		binding.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO level_bindings (id, offering_id, level_id, created_at)
        VALUES (:id, :offering_id, :level_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, binding); err != nil {
		return fmt.Errorf("create level binding: %w", err)
	}
	return nil
}

// FindByID returns a binding by its ID.
func (r *BindingRepository) FindByID(ctx context.Context, id string) (*models.LevelBinding, error) {
	const query = `SELECT id, offering_id, level_id, created_at FROM level_bindings WHERE id = $1`
	var binding models.LevelBinding
	if err := r.db.GetContext(ctx, &binding, query, id); err != nil {
		return nil, err
	}
	return &binding, nil
}

// ListByOffering returns the bindings of an offering enriched with level names.
func (r *BindingRepository) ListByOffering(ctx context.Context, offeringID string) ([]models.LevelBindingDetail, error) {
	const query = `SELECT b.id, b.offering_id, b.level_id, b.created_at,
        l.name AS level_name, o.name AS offering_name
        FROM level_bindings b
        JOIN academic_levels l ON l.id = b.level_id
        JOIN offerings o ON o.id = b.offering_id
        WHERE b.offering_id = $1 ORDER BY l.name`
	var bindings []models.LevelBindingDetail
	if err := r.db.SelectContext(ctx, &bindings, query, offeringID); err != nil {
		return nil, fmt.Errorf("list level bindings: %w", err)
	}
	return bindings, nil
}

// Delete removes a binding.
func (r *BindingRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM level_bindings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete level binding: %w", err)
	}
	return nil
}
