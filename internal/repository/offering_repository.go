package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bienestar-dev/eventos-api/internal/models"
)

// OfferingRepository handles persistence of offerings.
type OfferingRepository struct {
	db *sqlx.DB
}

// NewOfferingRepository constructs the repository.
func NewOfferingRepository(db *sqlx.DB) *OfferingRepository {
	return &OfferingRepository{db: db}
}

const offeringColumns = `id, event_id, name, capacity, duration_hours, area, category, offering_type, schedule,
        min_passing_grade, state, attendance_taken_at, certificate_eligible, approved, created_at, updated_at`

// Create persists a new offering. Offerings always start in INSCRIPCIONES.
func (r *OfferingRepository) Create(ctx context.Context, offering *models.Offering) error {
	if offering.ID == "" {
		offering.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if offering.CreatedAt.IsZero() {
		offering.CreatedAt = now
	}
	offering.UpdatedAt = now
	offering.State = models.StateInscripciones
	const query = `INSERT INTO offerings (id, event_id, name, capacity, duration_hours, area, category, offering_type, schedule,
        min_passing_grade, state, attendance_taken_at, certificate_eligible, approved, created_at, updated_at)
        VALUES (:id, :event_id, :name, :capacity, :duration_hours, :area, :category, :offering_type, :schedule,
        :min_passing_grade, :state, :attendance_taken_at, :certificate_eligible, :approved, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, offering); err != nil {
		return fmt.Errorf("create offering: %w", err)
	}
	return nil
}

// FindByID returns an offering by its ID.
func (r *OfferingRepository) FindByID(ctx context.Context, id string) (*models.Offering, error) {
	query := fmt.Sprintf(`SELECT %s FROM offerings WHERE id = $1`, offeringColumns)
	var offering models.Offering
	if err := r.db.GetContext(ctx, &offering, query, id); err != nil {
		return nil, err
	}
	return &offering, nil
}

// ListByEvent returns the offerings under an event.
func (r *OfferingRepository) ListByEvent(ctx context.Context, eventID string) ([]models.Offering, error) {
	query := fmt.Sprintf(`SELECT %s FROM offerings WHERE event_id = $1 ORDER BY created_at`, offeringColumns)
	var offerings []models.Offering
	if err := r.db.SelectContext(ctx, &offerings, query, eventID); err != nil {
		return nil, fmt.Errorf("list offerings: %w", err)
	}
	return offerings, nil
}

// UpdateState advances the lifecycle. The WHERE clause pins the expected
// current state so two racing transitions cannot both succeed.
func (r *OfferingRepository) UpdateState(ctx context.Context, id string, from, to models.OfferingState) error {
	const query = `UPDATE offerings SET state = $3, updated_at = $4 WHERE id = $1 AND state = $2`
	result, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update offering state: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RecordAttendance sets the offering-level attendance marker that gates
// finalization.
func (r *OfferingRepository) RecordAttendance(ctx context.Context, id string, takenAt time.Time) error {
	const query = `UPDATE offerings SET attendance_taken_at = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, takenAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record attendance: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an offering, permitted only while enrollments are open.
func (r *OfferingRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM offerings WHERE id = $1 AND state = $2`
	result, err := r.db.ExecContext(ctx, query, id, models.StateInscripciones)
	if err != nil {
		return fmt.Errorf("delete offering: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
