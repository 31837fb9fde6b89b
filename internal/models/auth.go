package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims carries the participant identity and role set inside access
// tokens. The engine never authenticates; it only branches on these roles.
type JWTClaims struct {
	ParticipantID string  `json:"participant_id"`
	Email         string  `json:"email"`
	FullName      string  `json:"full_name"`
	Roles         RoleSet `json:"roles"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the identity the services consume.
func (c *JWTClaims) Actor() Actor {
	return Actor{ParticipantID: c.ParticipantID, Roles: c.Roles}
}

// LoginRequest is the credential payload for token issuance.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued access token and participant info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
	Participant struct {
		ID       string  `json:"id"`
		Email    string  `json:"email"`
		FullName string  `json:"full_name"`
		Roles    RoleSet `json:"roles"`
	} `json:"participant"`
}
