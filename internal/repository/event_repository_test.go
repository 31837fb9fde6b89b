package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEventRepoMock(t *testing.T) (*EventRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewEventRepository(sqlxDB), mock, func() { sqlxDB.Close() }
}

func TestMarkFavoriteCommits(t *testing.T) {
	repo, mock, closeFn := newEventRepoMock(t)
	defer closeFn()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)).
		WithArgs(favoriteLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM events WHERE favorite = TRUE AND id <> $1`)).
		WithArgs("event-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE events SET favorite = TRUE, updated_at = $2 WHERE id = $1`)).
		WithArgs("event-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.MarkFavorite(context.Background(), "event-1", 6))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFavoriteLimitReached(t *testing.T) {
	repo, mock, closeFn := newEventRepoMock(t)
	defer closeFn()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)).
		WithArgs(favoriteLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM events WHERE favorite = TRUE AND id <> $1`)).
		WithArgs("event-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(6))
	mock.ExpectRollback()

	err := repo.MarkFavorite(context.Background(), "event-1", 6)
	assert.ErrorIs(t, err, ErrFavoriteLimit)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFavoriteCountExcludesSelf(t *testing.T) {
	repo, mock, closeFn := newEventRepoMock(t)
	defer closeFn()

	// Re-marking an already promoted event: the other five favorites keep the
	// count below the cap because the event itself is excluded.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)).
		WithArgs(favoriteLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM events WHERE favorite = TRUE AND id <> $1`)).
		WithArgs("event-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE events SET favorite = TRUE, updated_at = $2 WHERE id = $1`)).
		WithArgs("event-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.MarkFavorite(context.Background(), "event-1", 6))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnmarkFavorite(t *testing.T) {
	repo, mock, closeFn := newEventRepoMock(t)
	defer closeFn()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE events SET favorite = FALSE, updated_at = $2 WHERE id = $1`)).
		WithArgs("event-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UnmarkFavorite(context.Background(), "event-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
