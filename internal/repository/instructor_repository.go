package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bienestar-dev/eventos-api/internal/dto"
	"github.com/bienestar-dev/eventos-api/internal/models"
)

// InstructorRepository handles persistence of instructor assignments.
type InstructorRepository struct {
	db *sqlx.DB
}

// NewInstructorRepository constructs the repository.
func NewInstructorRepository(db *sqlx.DB) *InstructorRepository {
	return &InstructorRepository{db: db}
}

// Create persists a new instructor assignment.
func (r *InstructorRepository) Create(ctx context.Context, assignment *models.InstructorAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO instructor_assignments (id, offering_id, participant_id, role, created_at)
        VALUES (:id, :offering_id, :participant_id, :role, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create instructor assignment: %w", err)
	}
	return nil
}

// Exists reports whether the participant holds an assignment on the offering.
func (r *InstructorRepository) Exists(ctx context.Context, offeringID, participantID string) (bool, error) {
	const query = `SELECT 1 FROM instructor_assignments WHERE offering_id = $1 AND participant_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, offeringID, participantID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check instructor assignment: %w", err)
	}
	return true, nil
}

// ListByOffering returns instructor info for projection views.
func (r *InstructorRepository) ListByOffering(ctx context.Context, offeringID string) ([]dto.InstructorInfo, error) {
	const query = `SELECT a.participant_id, p.full_name, a.role
        FROM instructor_assignments a
        JOIN participants p ON p.id = a.participant_id
        WHERE a.offering_id = $1 ORDER BY p.full_name`
	var instructors []dto.InstructorInfo
	if err := r.db.SelectContext(ctx, &instructors, query, offeringID); err != nil {
		return nil, fmt.Errorf("list offering instructors: %w", err)
	}
	return instructors, nil
}

// Delete removes an assignment.
func (r *InstructorRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM instructor_assignments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete instructor assignment: %w", err)
	}
	return nil
}
