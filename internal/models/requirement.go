package models

import "time"

// ApprovalState is shared by requirement submissions and payments.
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "PENDING"
	ApprovalApproved ApprovalState = "APPROVED"
	ApprovalRejected ApprovalState = "REJECTED"
)

// Requirement is a document or precondition an offering demands from its
// enrollees. Only obligatory requirements gate completion.
type Requirement struct {
	ID          string    `db:"id" json:"id"`
	OfferingID  string    `db:"offering_id" json:"offering_id"`
	Type        string    `db:"type" json:"type"`
	Description string    `db:"description" json:"description"`
	Obligatory  bool      `db:"obligatory" json:"obligatory"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// RequirementSubmission is a participant's answer to a requirement. At most
// one row exists per (enrollment, requirement); resubmission overwrites the
// value and resets the state to PENDING.
type RequirementSubmission struct {
	ID            string        `db:"id" json:"id"`
	EnrollmentID  string        `db:"enrollment_id" json:"enrollment_id"`
	RequirementID string        `db:"requirement_id" json:"requirement_id"`
	Value         *string       `db:"value" json:"value,omitempty"`
	State         ApprovalState `db:"state" json:"state"`
	ReviewerID    *string       `db:"reviewer_id" json:"reviewer_id,omitempty"`
	Comment       *string       `db:"comment" json:"comment,omitempty"`
	SubmittedAt   time.Time     `db:"submitted_at" json:"submitted_at"`
	ReviewedAt    *time.Time    `db:"reviewed_at" json:"reviewed_at,omitempty"`
}

// Submitted reports whether the submission carries a value. Presence of a
// value, not approval, is what completion checks look at.
func (s *RequirementSubmission) Submitted() bool {
	return s.Value != nil && *s.Value != ""
}

// Payment records an enrollment's payment evidence awaiting review.
type Payment struct {
	ID           string        `db:"id" json:"id"`
	EnrollmentID string        `db:"enrollment_id" json:"enrollment_id"`
	Amount       float64       `db:"amount" json:"amount"`
	Method       string        `db:"method" json:"method"`
	State        ApprovalState `db:"state" json:"state"`
	EvidencePath *string       `db:"evidence_path" json:"evidence_path,omitempty"`
	ReviewerID   *string       `db:"reviewer_id" json:"reviewer_id,omitempty"`
	Comment      *string       `db:"comment" json:"comment,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	ReviewedAt   *time.Time    `db:"reviewed_at" json:"reviewed_at,omitempty"`
}
