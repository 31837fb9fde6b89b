package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bienestar-dev/eventos-api/internal/models"
)

// ParticipantRepository handles persistence of participants, their role
// grants and academic-level records.
type ParticipantRepository struct {
	db *sqlx.DB
}

// NewParticipantRepository constructs the repository.
func NewParticipantRepository(db *sqlx.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

const participantColumns = `id, email, password_hash, full_name, document, active, last_login, created_at, updated_at`

// FindByID returns a participant by its ID.
func (r *ParticipantRepository) FindByID(ctx context.Context, id string) (*models.Participant, error) {
	query := fmt.Sprintf(`SELECT %s FROM participants WHERE id = $1`, participantColumns)
	var participant models.Participant
	if err := r.db.GetContext(ctx, &participant, query, id); err != nil {
		return nil, err
	}
	return &participant, nil
}

// FindByEmail returns a participant by email.
func (r *ParticipantRepository) FindByEmail(ctx context.Context, email string) (*models.Participant, error) {
	query := fmt.Sprintf(`SELECT %s FROM participants WHERE email = $1`, participantColumns)
	var participant models.Participant
	if err := r.db.GetContext(ctx, &participant, query, email); err != nil {
		return nil, err
	}
	return &participant, nil
}

// Roles returns the role set granted to a participant.
func (r *ParticipantRepository) Roles(ctx context.Context, participantID string) (models.RoleSet, error) {
	var roles []models.Role
	const query = `SELECT role FROM participant_roles WHERE participant_id = $1`
	if err := r.db.SelectContext(ctx, &roles, query, participantID); err != nil {
		return nil, fmt.Errorf("load participant roles: %w", err)
	}
	return models.RoleSet(roles), nil
}

// HasActiveLevel reports whether the participant holds an active record for
// the given academic level.
func (r *ParticipantRepository) HasActiveLevel(ctx context.Context, participantID, levelID string) (bool, error) {
	const query = `SELECT 1 FROM participant_levels WHERE participant_id = $1 AND level_id = $2 AND active = TRUE LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, participantID, levelID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active level: %w", err)
	}
	return true, nil
}

// UpdateLastLogin stamps the last successful login.
func (r *ParticipantRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE participants SET last_login = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}
