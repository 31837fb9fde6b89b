package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/bienestar-dev/eventos-api/internal/models"
	"github.com/bienestar-dev/eventos-api/internal/repository"
	appErrors "github.com/bienestar-dev/eventos-api/pkg/errors"
)

type favoritesEventRepo interface {
	FindByID(ctx context.Context, id string) (*models.Event, error)
	MarkFavorite(ctx context.Context, id string, limit int) error
	UnmarkFavorite(ctx context.Context, id string) error
}

// FavoritesService curates the bounded set of promoted events. Unmarking is
// always allowed; marking is guarded by publication state, end date and the
// configured cap.
type FavoritesService struct {
	events favoritesEventRepo
	limit  int
	logger *zap.Logger
	now    func() time.Time
}

// NewFavoritesService constructs the service.
func NewFavoritesService(events favoritesEventRepo, limit int, logger *zap.Logger) *FavoritesService {
	if limit <= 0 {
		limit = 6
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FavoritesService{events: events, limit: limit, logger: logger, now: time.Now}
}

// Limit exposes the configured cap.
func (s *FavoritesService) Limit() int {
	return s.limit
}

// SetFavorite marks or unmarks an event as promoted. A denied decision names
// the failed guard; the repository enforces the cap under a lock so two
// concurrent marks cannot exceed it.
func (s *FavoritesService) SetFavorite(ctx context.Context, eventID string, want bool) (models.Decision, error) {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Decision{}, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return models.Decision{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}

	if !want {
		if err := s.events.UnmarkFavorite(ctx, eventID); err != nil {
			return models.Decision{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unmark favorite")
		}
		return models.Allow(), nil
	}

	if event.State != models.EventStatePublished {
		return models.Deny(models.ReasonNotPublished), nil
	}
	if event.Ended(s.now()) {
		return models.Deny(models.ReasonAlreadyEnded), nil
	}

	if err := s.events.MarkFavorite(ctx, eventID, s.limit); err != nil {
		if errors.Is(err, repository.ErrFavoriteLimit) {
			return models.Deny(models.ReasonLimitReached), nil
		}
		return models.Decision{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark favorite")
	}
	return models.Allow(), nil
}
