package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bienestar-dev/eventos-api/internal/dto"
	"github.com/bienestar-dev/eventos-api/internal/models"
)

// RequirementRepository handles persistence of requirements and their
// submissions.
type RequirementRepository struct {
	db *sqlx.DB
}

// NewRequirementRepository constructs the repository.
func NewRequirementRepository(db *sqlx.DB) *RequirementRepository {
	return &RequirementRepository{db: db}
}

// CreateRequirement persists a new requirement for an offering.
func (r *RequirementRepository) CreateRequirement(ctx context.Context, req *models.Requirement) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO requirements (id, offering_id, type, description, obligatory, created_at)
        VALUES (:id, :offering_id, :type, :description, :obligatory, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create requirement: %w", err)
	}
	return nil
}

// FindRequirement returns a requirement by its ID.
func (r *RequirementRepository) FindRequirement(ctx context.Context, id string) (*models.Requirement, error) {
	const query = `SELECT id, offering_id, type, description, obligatory, created_at FROM requirements WHERE id = $1`
	var req models.Requirement
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// ListByOffering returns all requirements of an offering.
func (r *RequirementRepository) ListByOffering(ctx context.Context, offeringID string) ([]models.Requirement, error) {
	const query = `SELECT id, offering_id, type, description, obligatory, created_at
        FROM requirements WHERE offering_id = $1 ORDER BY created_at`
	var reqs []models.Requirement
	if err := r.db.SelectContext(ctx, &reqs, query, offeringID); err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	return reqs, nil
}

// ListObligatoryByOffering returns only the requirements that gate completion.
func (r *RequirementRepository) ListObligatoryByOffering(ctx context.Context, offeringID string) ([]models.Requirement, error) {
	const query = `SELECT id, offering_id, type, description, obligatory, created_at
        FROM requirements WHERE offering_id = $1 AND obligatory = TRUE ORDER BY created_at`
	var reqs []models.Requirement
	if err := r.db.SelectContext(ctx, &reqs, query, offeringID); err != nil {
		return nil, fmt.Errorf("list obligatory requirements: %w", err)
	}
	return reqs, nil
}

// UpsertSubmission stores a participant's answer. Resubmission overwrites the
// value and reopens the review (state back to PENDING, reviewer cleared).
func (r *RequirementRepository) UpsertSubmission(ctx context.Context, sub *models.RequirementSubmission) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}
	if sub.State == "" {
		sub.State = models.ApprovalPending
	}
	const query = `INSERT INTO requirement_submissions (id, enrollment_id, requirement_id, value, state, reviewer_id, comment, submitted_at, reviewed_at)
        VALUES (:id, :enrollment_id, :requirement_id, :value, :state, :reviewer_id, :comment, :submitted_at, :reviewed_at)
        ON CONFLICT (enrollment_id, requirement_id) DO UPDATE
        SET value = EXCLUDED.value, state = 'PENDING', reviewer_id = NULL, comment = NULL,
            submitted_at = EXCLUDED.submitted_at, reviewed_at = NULL`
	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		return fmt.Errorf("upsert submission: %w", err)
	}
	return nil
}

// FindSubmission returns a submission by its ID.
func (r *RequirementRepository) FindSubmission(ctx context.Context, id string) (*models.RequirementSubmission, error) {
	const query = `SELECT id, enrollment_id, requirement_id, value, state, reviewer_id, comment, submitted_at, reviewed_at
        FROM requirement_submissions WHERE id = $1`
	var sub models.RequirementSubmission
	if err := r.db.GetContext(ctx, &sub, query, id); err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListSubmissionsByEnrollment returns all submissions of an enrollment.
func (r *RequirementRepository) ListSubmissionsByEnrollment(ctx context.Context, enrollmentID string) ([]models.RequirementSubmission, error) {
	const query = `SELECT id, enrollment_id, requirement_id, value, state, reviewer_id, comment, submitted_at, reviewed_at
        FROM requirement_submissions WHERE enrollment_id = $1 ORDER BY submitted_at`
	var subs []models.RequirementSubmission
	if err := r.db.SelectContext(ctx, &subs, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, nil
}

// ReviewSubmission records a reviewer decision. Rejection keeps the row; the
// participant reopens it by resubmitting.
func (r *RequirementRepository) ReviewSubmission(ctx context.Context, id string, state models.ApprovalState, reviewerID, comment string, reviewedAt time.Time) error {
	const query = `UPDATE requirement_submissions SET state = $2, reviewer_id = $3, comment = $4, reviewed_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, state, reviewerID, comment, reviewedAt); err != nil {
		return fmt.Errorf("review submission: %w", err)
	}
	return nil
}

// ListPending returns pending submissions as reviewer-queue entries.
func (r *RequirementRepository) ListPending(ctx context.Context) ([]dto.PendingDocument, error) {
	const query = `SELECT 'submission' AS kind, s.id, s.enrollment_id, b.offering_id,
        p.full_name AS participant_name, rq.description AS detail, s.submitted_at
        FROM requirement_submissions s
        JOIN requirements rq ON rq.id = s.requirement_id
        JOIN enrollments e ON e.id = s.enrollment_id
        JOIN participants p ON p.id = e.participant_id
        JOIN level_bindings b ON b.id = e.binding_id
        WHERE s.state = 'PENDING' AND s.value IS NOT NULL
        ORDER BY s.submitted_at DESC`
	var docs []dto.PendingDocument
	if err := r.db.SelectContext(ctx, &docs, query); err != nil {
		return nil, fmt.Errorf("list pending submissions: %w", err)
	}
	return docs, nil
}
