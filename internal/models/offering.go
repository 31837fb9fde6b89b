package models

import "time"

// OfferingState is the lifecycle state of an offering. Transitions only move
// forward: INSCRIPCIONES -> EN_CURSO -> FINALIZADO.
type OfferingState string

const (
	StateInscripciones OfferingState = "INSCRIPCIONES"
	StateEnCurso       OfferingState = "EN_CURSO"
	StateFinalizado    OfferingState = "FINALIZADO"
)

// Next returns the only legal successor state, or empty when terminal.
func (s OfferingState) Next() OfferingState {
	switch s {
	case StateInscripciones:
		return StateEnCurso
	case StateEnCurso:
		return StateFinalizado
	default:
		return ""
	}
}

// Valid reports whether the state is one of the three known values.
func (s OfferingState) Valid() bool {
	switch s {
	case StateInscripciones, StateEnCurso, StateFinalizado:
		return true
	}
	return false
}

// Offering is a schedulable instance of an event with its own capacity and
// lifecycle. Participants enroll against its level bindings, not against the
// offering directly.
type Offering struct {
	ID                  string        `db:"id" json:"id"`
	EventID             string        `db:"event_id" json:"event_id"`
	Name                string        `db:"name" json:"name"`
	Capacity            int           `db:"capacity" json:"capacity"`
	DurationHours       int           `db:"duration_hours" json:"duration_hours"`
	Area                string        `db:"area" json:"area"`
	Category            string        `db:"category" json:"category"`
	OfferingType        string        `db:"offering_type" json:"offering_type"`
	Schedule            string        `db:"schedule" json:"schedule"`
	MinPassingGrade     *float64      `db:"min_passing_grade" json:"min_passing_grade,omitempty"`
	State               OfferingState `db:"state" json:"state"`
	AttendanceTakenAt   *time.Time    `db:"attendance_taken_at" json:"attendance_taken_at,omitempty"`
	CertificateEligible bool          `db:"certificate_eligible" json:"certificate_eligible"`
	Approved            bool          `db:"approved" json:"approved"`
	CreatedAt           time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time     `db:"updated_at" json:"updated_at"`
}

// AttendanceRecorded reports whether the offering-level attendance marker is
// set, which gates the EN_CURSO -> FINALIZADO transition.
func (o *Offering) AttendanceRecorded() bool {
	return o.AttendanceTakenAt != nil
}

// PassResult is the computed pass/fail outcome for a finalized enrollment.
type PassResult string

const (
	ResultPassed  PassResult = "PASSED"
	ResultFailed  PassResult = "FAILED"
	ResultPending PassResult = "PENDING"
)
