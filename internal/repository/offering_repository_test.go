package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bienestar-dev/eventos-api/internal/models"
)

func newOfferingRepoMock(t *testing.T) (*OfferingRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewOfferingRepository(sqlxDB), mock, func() { sqlxDB.Close() }
}

func TestUpdateStatePinsCurrentState(t *testing.T) {
	repo, mock, closeFn := newOfferingRepoMock(t)
	defer closeFn()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE offerings SET state = $3, updated_at = $4 WHERE id = $1 AND state = $2`)).
		WithArgs("offering-1", models.StateInscripciones, models.StateEnCurso, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateState(context.Background(), "offering-1", models.StateInscripciones, models.StateEnCurso)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStateLostRace(t *testing.T) {
	repo, mock, closeFn := newOfferingRepoMock(t)
	defer closeFn()

	// Another caller already moved the offering; the pinned WHERE matches
	// nothing and the update reports a conflict.
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE offerings SET state = $3, updated_at = $4 WHERE id = $1 AND state = $2`)).
		WithArgs("offering-1", models.StateInscripciones, models.StateEnCurso, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateState(context.Background(), "offering-1", models.StateInscripciones, models.StateEnCurso)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordAttendanceSetsMarker(t *testing.T) {
	repo, mock, closeFn := newOfferingRepoMock(t)
	defer closeFn()

	takenAt := time.Date(2026, 4, 10, 15, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE offerings SET attendance_taken_at = $2, updated_at = $3 WHERE id = $1`)).
		WithArgs("offering-1", takenAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RecordAttendance(context.Background(), "offering-1", takenAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteOnlyMatchesOpenOffering(t *testing.T) {
	repo, mock, closeFn := newOfferingRepoMock(t)
	defer closeFn()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM offerings WHERE id = $1 AND state = $2`)).
		WithArgs("offering-1", models.StateInscripciones).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "offering-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID(t *testing.T) {
	repo, mock, closeFn := newOfferingRepoMock(t)
	defer closeFn()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "event_id", "name", "capacity", "duration_hours", "area", "category", "offering_type", "schedule",
		"min_passing_grade", "state", "attendance_taken_at", "certificate_eligible", "approved", "created_at", "updated_at",
	}).AddRow("offering-1", "event-1", "Taller de Danza", 20, 40, "Cultura", "Danza", "TALLER", "Lun 18:00",
		nil, "INSCRIPCIONES", nil, false, false, now, now)
	mock.ExpectQuery("SELECT id, event_id, name").
		WithArgs("offering-1").
		WillReturnRows(rows)

	offering, err := repo.FindByID(context.Background(), "offering-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateInscripciones, offering.State)
	assert.Equal(t, 20, offering.Capacity)
	require.NoError(t, mock.ExpectationsWereMet())
}
