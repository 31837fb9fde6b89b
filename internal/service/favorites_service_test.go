package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bienestar-dev/eventos-api/internal/models"
	"github.com/bienestar-dev/eventos-api/internal/repository"
)

type fakeFavoritesEvents struct {
	events   map[string]*models.Event
	atLimit  bool
	marked   []string
	unmarked []string
}

func (m *fakeFavoritesEvents) FindByID(ctx context.Context, id string) (*models.Event, error) {
	if e, ok := m.events[id]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *fakeFavoritesEvents) MarkFavorite(ctx context.Context, id string, limit int) error {
	if m.atLimit {
		return repository.ErrFavoriteLimit
	}
	m.marked = append(m.marked, id)
	m.events[id].Favorite = true
	return nil
}

func (m *fakeFavoritesEvents) UnmarkFavorite(ctx context.Context, id string) error {
	m.unmarked = append(m.unmarked, id)
	m.events[id].Favorite = false
	return nil
}

func newFavoritesFixture() (*FavoritesService, *fakeFavoritesEvents) {
	future := time.Now().Add(48 * time.Hour)
	events := &fakeFavoritesEvents{events: map[string]*models.Event{
		"event-1": {ID: "event-1", Title: "Semana Cultural", State: models.EventStatePublished, EndDate: &future},
	}}
	return NewFavoritesService(events, 6, nil), events
}

func TestSetFavoriteMarks(t *testing.T) {
	svc, events := newFavoritesFixture()

	decision, err := svc.SetFavorite(context.Background(), "event-1", true)
	require.NoError(t, err)
	assert.True(t, decision.Eligible)
	assert.Equal(t, []string{"event-1"}, events.marked)
}

func TestSetFavoriteRequiresPublished(t *testing.T) {
	svc, events := newFavoritesFixture()
	events.events["event-1"].State = models.EventStateDraft

	decision, err := svc.SetFavorite(context.Background(), "event-1", true)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonNotPublished, decision.Reason)
	assert.Empty(t, events.marked)
}

func TestSetFavoriteRejectsEndedEvent(t *testing.T) {
	svc, events := newFavoritesFixture()
	svc.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	past := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	events.events["event-1"].EndDate = &past

	decision, err := svc.SetFavorite(context.Background(), "event-1", true)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonAlreadyEnded, decision.Reason)
}

func TestSetFavoriteLimitReached(t *testing.T) {
	svc, events := newFavoritesFixture()
	events.atLimit = true

	decision, err := svc.SetFavorite(context.Background(), "event-1", true)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonLimitReached, decision.Reason)
}

func TestUnmarkAlwaysAllowed(t *testing.T) {
	svc, events := newFavoritesFixture()
	// Guards do not apply on the way out, even for an archived ended event.
	events.events["event-1"].State = models.EventStateArchived
	past := time.Now().Add(-time.Hour)
	events.events["event-1"].EndDate = &past

	decision, err := svc.SetFavorite(context.Background(), "event-1", false)
	require.NoError(t, err)
	assert.True(t, decision.Eligible)
	assert.Equal(t, []string{"event-1"}, events.unmarked)
}

func TestFavoritesLimitDefaultsToSix(t *testing.T) {
	svc := NewFavoritesService(&fakeFavoritesEvents{events: map[string]*models.Event{}}, 0, nil)
	assert.Equal(t, 6, svc.Limit())
}
