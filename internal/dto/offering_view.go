package dto

import (
	"time"

	"github.com/bienestar-dev/eventos-api/internal/models"
)

// Offering projections. Every external read of an offering goes through one
// of these views; which fields exist is fixed by the lifecycle state, so a
// missing-state bug fails to compile instead of leaking suppressed fields.

// InstructorInfo is the public slice of an instructor assignment.
type InstructorInfo struct {
	ParticipantID string `db:"participant_id" json:"participant_id"`
	FullName      string `db:"full_name" json:"full_name"`
	Role          string `db:"role" json:"role"`
}

// RosterEntry is an enrollment as exposed while the offering is EN_CURSO.
type RosterEntry struct {
	EnrollmentID    string    `json:"enrollment_id"`
	ParticipantID   string    `json:"participant_id"`
	ParticipantName string    `json:"participant_name"`
	LevelName       string    `json:"level_name"`
	EnrolledAt      time.Time `json:"enrolled_at"`
}

// FinalRosterEntry extends the roster with grade, attendance and the computed
// pass/fail outcome once the offering is FINALIZADO.
type FinalRosterEntry struct {
	RosterEntry
	FinalGrade    *float64          `json:"final_grade,omitempty"`
	AttendancePct *float64          `json:"attendance_pct,omitempty"`
	Result        models.PassResult `json:"result"`
}

// OfferingInscriptionView is the projection while enrollments are open.
// Grades, attendance and the approval flags stay suppressed.
type OfferingInscriptionView struct {
	ID            string               `json:"id"`
	EventID       string               `json:"event_id"`
	Name          string               `json:"name"`
	State         models.OfferingState `json:"state"`
	Capacity      int                  `json:"capacity"`
	DurationHours int                  `json:"duration_hours"`
	Area          string               `json:"area"`
	Category      string               `json:"category"`
	OfferingType  string               `json:"offering_type"`
	Schedule      string               `json:"schedule"`
	Instructors   []InstructorInfo     `json:"instructors"`
}

// OfferingInProgressView adds the attendance marker and the enrollment roster.
type OfferingInProgressView struct {
	OfferingInscriptionView
	AttendanceTakenAt *time.Time    `json:"attendance_taken_at,omitempty"`
	Roster            []RosterEntry `json:"roster"`
}

// OfferingFinalView exposes everything, including per-enrollment outcomes and
// the certificate/approval flags.
type OfferingFinalView struct {
	OfferingInscriptionView
	AttendanceTakenAt   *time.Time         `json:"attendance_taken_at,omitempty"`
	MinPassingGrade     *float64           `json:"min_passing_grade,omitempty"`
	CertificateEligible bool               `json:"certificate_eligible"`
	Approved            bool               `json:"approved"`
	Roster              []FinalRosterEntry `json:"roster"`
}

// PendingDocument is one entry in the merged reviewer queue: either a
// requirement submission or a payment awaiting review.
type PendingDocument struct {
	Kind         string    `db:"kind" json:"kind"` // "submission" or "payment"
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	OfferingID   string    `db:"offering_id" json:"offering_id"`
	Participant  string    `db:"participant_name" json:"participant_name"`
	Detail       string    `db:"detail" json:"detail"`
	SubmittedAt  time.Time `db:"submitted_at" json:"submitted_at"`
}
