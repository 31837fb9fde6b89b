package models

import "time"

// EventAudience restricts who may enroll in the event's offerings.
type EventAudience string

const (
	AudienceGeneral        EventAudience = "GENERAL"
	AudienceStudents       EventAudience = "STUDENTS"
	AudienceAdministrative EventAudience = "ADMINISTRATIVE"
)

// EventCostType marks whether enrollments require a payment.
type EventCostType string

const (
	CostFree EventCostType = "FREE"
	CostPaid EventCostType = "PAID"
)

// EventState is the publication lifecycle of an event, independent of the
// lifecycle of its offerings.
type EventState string

const (
	EventStateDraft     EventState = "DRAFT"
	EventStatePublished EventState = "PUBLISHED"
	EventStateArchived  EventState = "ARCHIVED"
)

// Event groups one or more offerings under a common audience and cost policy.
type Event struct {
	ID            string        `db:"id" json:"id"`
	Title         string        `db:"title" json:"title"`
	Description   string        `db:"description" json:"description"`
	Audience      EventAudience `db:"audience" json:"audience"`
	CostType      EventCostType `db:"cost_type" json:"cost_type"`
	State         EventState    `db:"state" json:"state"`
	ResponsibleID *string       `db:"responsible_id" json:"responsible_id,omitempty"`
	StartDate     *time.Time    `db:"start_date" json:"start_date,omitempty"`
	EndDate       *time.Time    `db:"end_date" json:"end_date,omitempty"`
	Favorite      bool          `db:"favorite" json:"favorite"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// Ended reports whether the event's end date has passed.
func (e *Event) Ended(now time.Time) bool {
	return e.EndDate != nil && e.EndDate.Before(now)
}

// IsResponsible reports whether the participant owns the event.
func (e *Event) IsResponsible(participantID string) bool {
	return e.ResponsibleID != nil && *e.ResponsibleID == participantID
}

// EventFilter captures filtering criteria for listing events.
type EventFilter struct {
	Audience  EventAudience
	CostType  EventCostType
	State     EventState
	Favorite  *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
