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

// PaymentRepository handles persistence of enrollment payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, enrollment_id, amount, method, state, evidence_path, reviewer_id, comment, created_at, reviewed_at`

// Create persists a new payment record in PENDING state.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	if payment.State == "" {
		payment.State = models.ApprovalPending
	}
	const query = `INSERT INTO payments (id, enrollment_id, amount, method, state, evidence_path, reviewer_id, comment, created_at, reviewed_at)
        VALUES (:id, :enrollment_id, :amount, :method, :state, :evidence_path, :reviewer_id, :comment, :created_at, :reviewed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// FindByID returns a payment by its ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByEnrollment returns the latest payment of an enrollment.
func (r *PaymentRepository) FindByEnrollment(ctx context.Context, enrollmentID string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE enrollment_id = $1 ORDER BY created_at DESC LIMIT 1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, enrollmentID); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Review records a reviewer decision on the payment.
func (r *PaymentRepository) Review(ctx context.Context, id string, state models.ApprovalState, reviewerID, comment string, reviewedAt time.Time) error {
	const query = `UPDATE payments SET state = $2, reviewer_id = $3, comment = $4, reviewed_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, state, reviewerID, comment, reviewedAt); err != nil {
		return fmt.Errorf("review payment: %w", err)
	}
	return nil
}

// ListPending returns pending payments as reviewer-queue entries.
func (r *PaymentRepository) ListPending(ctx context.Context) ([]dto.PendingDocument, error) {
	const query = `SELECT 'payment' AS kind, pay.id, pay.enrollment_id, b.offering_id,
        p.full_name AS participant_name, pay.method AS detail, pay.created_at AS submitted_at
        FROM payments pay
        JOIN enrollments e ON e.id = pay.enrollment_id
        JOIN participants p ON p.id = e.participant_id
        JOIN level_bindings b ON b.id = e.binding_id
        WHERE pay.state = 'PENDING'
        ORDER BY pay.created_at DESC`
	var docs []dto.PendingDocument
	if err := r.db.SelectContext(ctx, &docs, query); err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	return docs, nil
}
