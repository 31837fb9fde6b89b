package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/bienestar-dev/eventos-api/internal/models"
)

// Sentinel errors surfaced by the guarded enrollment insert. The service maps
// them onto eligibility reasons.
var (
	ErrCapacityReached     = errors.New("binding capacity reached")
	ErrDuplicateEnrollment = errors.New("enrollment already exists")
	ErrEnrollmentClosed    = errors.New("offering is not accepting enrollments")
)

const pgUniqueViolation = "23505"

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, participant_id, binding_id, student_record_id, final_grade, attendance_pct, created_at, updated_at`

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with contextual info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.participant_id, e.binding_id, e.student_record_id, e.final_grade, e.attendance_pct,
        e.created_at, e.updated_at,
        p.full_name AS participant_name, l.name AS level_name, o.id AS offering_id, o.name AS offering_name
        FROM enrollments e
        JOIN participants p ON p.id = e.participant_id
        JOIN level_bindings b ON b.id = e.binding_id
        JOIN academic_levels l ON l.id = b.level_id
        JOIN offerings o ON o.id = b.offering_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// CountByBinding returns the enrollment count for a binding.
func (r *EnrollmentRepository) CountByBinding(ctx context.Context, bindingID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM enrollments WHERE binding_id = $1`, bindingID); err != nil {
		return 0, fmt.Errorf("count binding enrollments: %w", err)
	}
	return count, nil
}

// CountByOffering returns the enrollment count across all bindings of an offering.
func (r *EnrollmentRepository) CountByOffering(ctx context.Context, offeringID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments e
        JOIN level_bindings b ON b.id = e.binding_id
        WHERE b.offering_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, offeringID); err != nil {
		return 0, fmt.Errorf("count offering enrollments: %w", err)
	}
	return count, nil
}

// Exists checks whether an enrollment exists for the participant and binding.
func (r *EnrollmentRepository) Exists(ctx context.Context, participantID, bindingID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE participant_id = $1 AND binding_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, participantID, bindingID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// CreateGuarded inserts an enrollment while holding a row lock on the binding,
// re-checking the offering state and the capacity count server-side. The
// pre-insert Evaluate call cannot be trusted alone: two concurrent commits
// would both pass its capacity read. A unique index on (participant_id,
// binding_id) backs the duplicate check; its violation maps to
// ErrDuplicateEnrollment.
func (r *EnrollmentRepository) CreateGuarded(ctx context.Context, enrollment *models.Enrollment) (err error) {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var guard struct {
		Capacity int                  `db:"capacity"`
		State    models.OfferingState `db:"state"`
	}
	const lockQuery = `SELECT o.capacity, o.state FROM level_bindings b
        JOIN offerings o ON o.id = b.offering_id
        WHERE b.id = $1 FOR UPDATE OF b`
	if err = tx.GetContext(ctx, &guard, lockQuery, enrollment.BindingID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock binding: %w", err)
	}
	if guard.State != models.StateInscripciones {
		err = ErrEnrollmentClosed
		return err
	}

	var count int
	if err = tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM enrollments WHERE binding_id = $1`, enrollment.BindingID); err != nil {
		return fmt.Errorf("recount binding enrollments: %w", err)
	}
	if count >= guard.Capacity {
		err = ErrCapacityReached
		return err
	}

	const insertQuery = `INSERT INTO enrollments (id, participant_id, binding_id, student_record_id, final_grade, attendance_pct, created_at)
        VALUES (:id, :participant_id, :binding_id, :student_record_id, :final_grade, :attendance_pct, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, enrollment); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			err = ErrDuplicateEnrollment
			return err
		}
		return fmt.Errorf("create enrollment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment: %w", err)
	}
	return nil
}

// Delete removes an enrollment. Hard delete; cancellation keeps no tombstone.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListDetailByOffering returns the roster across all bindings of an offering.
func (r *EnrollmentRepository) ListDetailByOffering(ctx context.Context, offeringID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.participant_id, e.binding_id, e.student_record_id, e.final_grade, e.attendance_pct,
        e.created_at, e.updated_at,
        p.full_name AS participant_name, l.name AS level_name, o.id AS offering_id, o.name AS offering_name
        FROM enrollments e
        JOIN participants p ON p.id = e.participant_id
        JOIN level_bindings b ON b.id = e.binding_id
        JOIN academic_levels l ON l.id = b.level_id
        JOIN offerings o ON o.id = b.offering_id
        WHERE b.offering_id = $1 ORDER BY e.created_at`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, offeringID); err != nil {
		return nil, fmt.Errorf("list offering enrollments: %w", err)
	}
	return enrollments, nil
}

// UpdateResults stores the final grade and attendance percentage captured
// while the offering is running.
func (r *EnrollmentRepository) UpdateResults(ctx context.Context, id string, grade, attendancePct *float64) error {
	const query = `UPDATE enrollments SET final_grade = $2, attendance_pct = $3, updated_at = $4 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, grade, attendancePct, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update enrollment results: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
