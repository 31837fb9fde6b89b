package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bienestar-dev/eventos-api/internal/models"
)

// favoriteLockKey serializes favorite-count checks across transactions.
// pg_advisory_xact_lock releases automatically on commit/rollback.
const favoriteLockKey = 811433

// ErrFavoriteLimit is returned when marking would exceed the favorite cap.
var ErrFavoriteLimit = errors.New("favorite limit reached")

// EventRepository handles persistence of events and the promoted-event set.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, title, description, audience, cost_type, state, responsible_id, start_date, end_date, favorite, created_at, updated_at`

// Create persists a new event record.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	if event.State == "" {
		event.State = models.EventStateDraft
	}
	const query = `INSERT INTO events (id, title, description, audience, cost_type, state, responsible_id, start_date, end_date, favorite, created_at, updated_at)
        VALUES (:id, :title, :description, :audience, :cost_type, :state, :responsible_id, :start_date, :end_date, :favorite, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// FindByID returns an event by its ID.
func (r *EventRepository) FindByID(ctx context.Context, id string) (*models.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM events WHERE id = $1`, eventColumns)
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// List returns events filtered by the provided criteria.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Audience != "" {
		conditions = append(conditions, fmt.Sprintf("audience = $%d", len(args)+1))
		args = append(args, filter.Audience)
	}
	if filter.CostType != "" {
		conditions = append(conditions, fmt.Sprintf("cost_type = $%d", len(args)+1))
		args = append(args, filter.CostType)
	}
	if filter.State != "" {
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)+1))
		args = append(args, filter.State)
	}
	if filter.Favorite != nil {
		conditions = append(conditions, fmt.Sprintf("favorite = $%d", len(args)+1))
		args = append(args, *filter.Favorite)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("title ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM events%s ORDER BY created_at %s LIMIT %d OFFSET %d`,
		eventColumns, clause, order, size, offset)

	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM events" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}
	return events, total, nil
}

// Update persists mutable event fields.
func (r *EventRepository) Update(ctx context.Context, event *models.Event) error {
	event.UpdatedAt = time.Now().UTC()
	const query = `UPDATE events SET title = :title, description = :description, audience = :audience,
        cost_type = :cost_type, start_date = :start_date, end_date = :end_date, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

// SetState moves the event through its publication lifecycle.
func (r *EventRepository) SetState(ctx context.Context, id string, state models.EventState) error {
	const query = `UPDATE events SET state = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, state, time.Now().UTC()); err != nil {
		return fmt.Errorf("set event state: %w", err)
	}
	return nil
}

// SetResponsible assigns the owning responsible party.
func (r *EventRepository) SetResponsible(ctx context.Context, id, participantID string) error {
	const query = `UPDATE events SET responsible_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, participantID, time.Now().UTC()); err != nil {
		return fmt.Errorf("set event responsible: %w", err)
	}
	return nil
}

// UnmarkFavorite clears the promoted flag. Always allowed.
func (r *EventRepository) UnmarkFavorite(ctx context.Context, id string) error {
	const query = `UPDATE events SET favorite = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("unmark favorite: %w", err)
	}
	return nil
}

// MarkFavorite sets the promoted flag, enforcing the cap inside a transaction.
// The advisory lock serializes concurrent markings so the count-then-update
// sequence cannot overshoot the limit. The count excludes the event itself, so
// re-marking an already-favorite event never double-counts.
func (r *EventRepository) MarkFavorite(ctx context.Context, id string, limit int) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin favorite transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, favoriteLockKey); err != nil {
		return fmt.Errorf("acquire favorite lock: %w", err)
	}

	var count int
	if err = tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM events WHERE favorite = TRUE AND id <> $1`, id); err != nil {
		return fmt.Errorf("count favorites: %w", err)
	}
	if count >= limit {
		err = ErrFavoriteLimit
		return err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE events SET favorite = TRUE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark favorite: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit favorite: %w", err)
	}
	return nil
}

// Delete removes an event. Offerings cascade at the schema level.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
