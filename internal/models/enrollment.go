package models

import "time"

// Enrollment is a participant's admission record against a level binding.
// Unique per (participant, binding); the row count per binding never exceeds
// the offering's capacity.
type Enrollment struct {
	ID              string     `db:"id" json:"id"`
	ParticipantID   string     `db:"participant_id" json:"participant_id"`
	BindingID       string     `db:"binding_id" json:"binding_id"`
	StudentRecordID *string    `db:"student_record_id" json:"student_record_id,omitempty"`
	FinalGrade      *float64   `db:"final_grade" json:"final_grade,omitempty"`
	AttendancePct   *float64   `db:"attendance_pct" json:"attendance_pct,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// EnrollmentDetail enriches an enrollment with participant and offering info.
type EnrollmentDetail struct {
	Enrollment
	ParticipantName string `db:"participant_name" json:"participant_name"`
	LevelName       string `db:"level_name" json:"level_name"`
	OfferingID      string `db:"offering_id" json:"offering_id"`
	OfferingName    string `db:"offering_name" json:"offering_name"`
}

// InstructorAssignment links a participant to an offering with a teaching
// role. Holding one excludes the participant from enrolling in that offering.
type InstructorAssignment struct {
	ID            string    `db:"id" json:"id"`
	OfferingID    string    `db:"offering_id" json:"offering_id"`
	ParticipantID string    `db:"participant_id" json:"participant_id"`
	Role          string    `db:"role" json:"role"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
