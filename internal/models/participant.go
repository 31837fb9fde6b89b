package models

import "time"

// Role represents a capability held by a participant. A participant may hold
// several roles at once (a staff member who is also enrolled as a student).
type Role string

const (
	RoleStudent        Role = "STUDENT"
	RoleAdministrative Role = "ADMINISTRATIVE"
	RoleSuperAdmin     Role = "SUPERADMIN"
)

// RoleSet is the collection of roles attached to an authenticated participant.
type RoleSet []Role

// Has reports whether the set contains the given role.
func (s RoleSet) Has(role Role) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the set grants administrative privileges.
func (s RoleSet) IsAdmin() bool {
	return s.Has(RoleAdministrative) || s.Has(RoleSuperAdmin)
}

// Participant represents an application user stored in the participants table.
type Participant struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Document     string     `db:"document" json:"document"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// ParticipantRole is a single role grant row.
type ParticipantRole struct {
	ParticipantID string `db:"participant_id" json:"participant_id"`
	Role          Role   `db:"role" json:"role"`
}

// ParticipantLevel links a participant to an academic level. Only active
// records count for level-membership checks.
type ParticipantLevel struct {
	ID            string    `db:"id" json:"id"`
	ParticipantID string    `db:"participant_id" json:"participant_id"`
	LevelID       string    `db:"level_id" json:"level_id"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Actor is the caller-supplied identity the engine branches on. It carries no
// authentication state; the request layer resolves it from validated claims.
type Actor struct {
	ParticipantID string  `json:"participant_id"`
	Roles         RoleSet `json:"roles"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
