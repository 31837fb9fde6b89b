package models

// Reason is a machine-checkable cause for a rejected engine decision. Callers
// branch on reasons instead of matching error strings.
type Reason string

const (
	// Eligibility pipeline, in evaluation order.
	ReasonRoleConflict     Reason = "ROLE_CONFLICT"
	ReasonAudienceMismatch Reason = "AUDIENCE_MISMATCH"
	ReasonLevelMismatch    Reason = "LEVEL_MISMATCH"
	ReasonEnrollmentClosed Reason = "ENROLLMENT_CLOSED"
	ReasonCapacityExceeded Reason = "CAPACITY_EXCEEDED"
	ReasonAlreadyEnrolled  Reason = "ALREADY_ENROLLED"

	// Lifecycle transition guards.
	ReasonNoEnrollments     Reason = "NO_ENROLLMENTS"
	ReasonAttendanceMissing Reason = "ATTENDANCE_MISSING"
	ReasonInvalidTransition Reason = "INVALID_TRANSITION"

	// Favorites.
	ReasonNotPublished Reason = "NOT_PUBLISHED"
	ReasonAlreadyEnded Reason = "ALREADY_ENDED"
	ReasonLimitReached Reason = "LIMIT_REACHED"
)

var reasonMessages = map[Reason]string{
	ReasonRoleConflict:      "participant teaches or owns this offering",
	ReasonAudienceMismatch:  "participant role does not match the event audience",
	ReasonLevelMismatch:     "participant has no active record for the required academic level",
	ReasonEnrollmentClosed:  "offering is no longer accepting enrollments",
	ReasonCapacityExceeded:  "offering capacity has been reached",
	ReasonAlreadyEnrolled:   "participant is already enrolled",
	ReasonNoEnrollments:     "offering cannot start without enrollments",
	ReasonAttendanceMissing: "attendance has not been recorded for the offering",
	ReasonInvalidTransition: "requested state is not reachable from the current state",
	ReasonNotPublished:      "event is not published",
	ReasonAlreadyEnded:      "event has already ended",
	ReasonLimitReached:      "favorite limit has been reached",
}

// Message returns the human-readable description for the reason.
func (r Reason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return string(r)
}

// Decision is the outcome of an eligibility evaluation. Reason is empty when
// Eligible is true.
type Decision struct {
	Eligible bool   `json:"eligible"`
	Reason   Reason `json:"reason,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Allow returns a positive decision.
func Allow() Decision {
	return Decision{Eligible: true}
}

// Deny returns a negative decision carrying the reason and its message.
func Deny(reason Reason) Decision {
	return Decision{Eligible: false, Reason: reason, Message: reason.Message()}
}
