package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/bienestar-dev/eventos-api/internal/models"
	appErrors "github.com/bienestar-dev/eventos-api/pkg/errors"
)

type fakeParticipants struct {
	participants map[string]*models.Participant
	roles        map[string]models.RoleSet
	lastLogin    map[string]time.Time
}

func (m *fakeParticipants) FindByEmail(ctx context.Context, email string) (*models.Participant, error) {
	for _, p := range m.participants {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *fakeParticipants) FindByID(ctx context.Context, id string) (*models.Participant, error) {
	if p, ok := m.participants[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *fakeParticipants) Roles(ctx context.Context, participantID string) (models.RoleSet, error) {
	return m.roles[participantID], nil
}

func (m *fakeParticipants) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if m.lastLogin == nil {
		m.lastLogin = make(map[string]time.Time)
	}
	m.lastLogin[id] = ts
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *fakeParticipants) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secreto123"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &fakeParticipants{
		participants: map[string]*models.Participant{
			"part-1": {ID: "part-1", Email: "ana@uni.edu", PasswordHash: string(hash), FullName: "Ana Torres", Active: true},
		},
		roles: map[string]models.RoleSet{
			"part-1": {models.RoleStudent},
		},
	}
	svc := NewAuthService(repo, nil, nil, AuthConfig{Secret: "test-secret", Expiration: time.Hour, Issuer: "eventos-api"})
	return svc, repo
}

func TestLoginIssuesToken(t *testing.T) {
	svc, repo := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@uni.edu", Password: "secreto123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, models.RoleSet{models.RoleStudent}, resp.Participant.Roles)
	assert.Contains(t, repo.lastLogin, "part-1")

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "part-1", claims.ParticipantID)
	assert.True(t, claims.Roles.Has(models.RoleStudent))
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@uni.edu", Password: "nope-nope"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nadie@uni.edu", Password: "secreto123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, repo := newAuthFixture(t)
	repo.participants["part-1"].Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@uni.edu", Password: "secreto123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	svc, _ := newAuthFixture(t)
	other := NewAuthService(&fakeParticipants{}, nil, nil, AuthConfig{Secret: "other-secret", Expiration: time.Hour})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@uni.edu", Password: "secreto123"})
	require.NoError(t, err)

	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
}
