package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bienestar-dev/eventos-api/internal/dto"
	"github.com/bienestar-dev/eventos-api/internal/models"
	appErrors "github.com/bienestar-dev/eventos-api/pkg/errors"
)

type fakeLifecycleOfferings struct {
	offerings map[string]*models.Offering
	conflict  bool
	deleted   []string
}

func (m *fakeLifecycleOfferings) FindByID(ctx context.Context, id string) (*models.Offering, error) {
	if o, ok := m.offerings[id]; ok {
		return o, nil
	}
	return nil, sql.ErrNoRows
}

func (m *fakeLifecycleOfferings) UpdateState(ctx context.Context, id string, from, to models.OfferingState) error {
	if m.conflict {
		return sql.ErrNoRows
	}
	o, ok := m.offerings[id]
	if !ok || o.State != from {
		return sql.ErrNoRows
	}
	o.State = to
	return nil
}

func (m *fakeLifecycleOfferings) Delete(ctx context.Context, id string) error {
	if _, ok := m.offerings[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.offerings, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type fakeLifecycleEnrollments struct {
	counts map[string]int
	roster map[string][]models.EnrollmentDetail
}

func (m *fakeLifecycleEnrollments) CountByOffering(ctx context.Context, offeringID string) (int, error) {
	return m.counts[offeringID], nil
}

func (m *fakeLifecycleEnrollments) ListDetailByOffering(ctx context.Context, offeringID string) ([]models.EnrollmentDetail, error) {
	return m.roster[offeringID], nil
}

type fakeInstructorLister struct {
	instructors map[string][]dto.InstructorInfo
}

func (m *fakeInstructorLister) ListByOffering(ctx context.Context, offeringID string) ([]dto.InstructorInfo, error) {
	return m.instructors[offeringID], nil
}

func newLifecycleFixture(state models.OfferingState) (*LifecycleService, *fakeLifecycleOfferings, *fakeLifecycleEnrollments) {
	offerings := &fakeLifecycleOfferings{offerings: map[string]*models.Offering{
		"offering-1": {ID: "offering-1", EventID: "event-1", Name: "Taller de Danza", Capacity: 10, State: state},
	}}
	enrollments := &fakeLifecycleEnrollments{counts: map[string]int{}, roster: map[string][]models.EnrollmentDetail{}}
	instructors := &fakeInstructorLister{instructors: map[string][]dto.InstructorInfo{}}
	svc := NewLifecycleService(offerings, enrollments, instructors, nil, nil, nil, nil)
	return svc, offerings, enrollments
}

func TestCanTransitionSkipRejected(t *testing.T) {
	svc, _, _ := newLifecycleFixture(models.StateInscripciones)

	decision, err := svc.CanTransition(context.Background(), "offering-1", models.StateFinalizado)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonInvalidTransition, decision.Reason)
}

func TestCanTransitionBackwardRejected(t *testing.T) {
	svc, _, _ := newLifecycleFixture(models.StateEnCurso)

	decision, err := svc.CanTransition(context.Background(), "offering-1", models.StateInscripciones)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonInvalidTransition, decision.Reason)
}

func TestCanTransitionStartNeedsEnrollments(t *testing.T) {
	svc, _, enrollments := newLifecycleFixture(models.StateInscripciones)

	decision, err := svc.CanTransition(context.Background(), "offering-1", models.StateEnCurso)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonNoEnrollments, decision.Reason)

	enrollments.counts["offering-1"] = 1
	decision, err = svc.CanTransition(context.Background(), "offering-1", models.StateEnCurso)
	require.NoError(t, err)
	assert.True(t, decision.Eligible)
}

func TestCanTransitionFinalizeNeedsAttendance(t *testing.T) {
	svc, offerings, _ := newLifecycleFixture(models.StateEnCurso)

	decision, err := svc.CanTransition(context.Background(), "offering-1", models.StateFinalizado)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonAttendanceMissing, decision.Reason)

	taken := time.Now()
	offerings.offerings["offering-1"].AttendanceTakenAt = &taken
	decision, err = svc.CanTransition(context.Background(), "offering-1", models.StateFinalizado)
	require.NoError(t, err)
	assert.True(t, decision.Eligible)
}

func TestTransitionAdvancesState(t *testing.T) {
	svc, offerings, enrollments := newLifecycleFixture(models.StateInscripciones)
	enrollments.counts["offering-1"] = 3

	offering, err := svc.Transition(context.Background(), "offering-1", models.StateEnCurso)
	require.NoError(t, err)
	assert.Equal(t, models.StateEnCurso, offering.State)
	assert.Equal(t, models.StateEnCurso, offerings.offerings["offering-1"].State)
}

func TestTransitionLostRaceConflicts(t *testing.T) {
	svc, offerings, enrollments := newLifecycleFixture(models.StateInscripciones)
	enrollments.counts["offering-1"] = 1
	offerings.conflict = true

	_, err := svc.Transition(context.Background(), "offering-1", models.StateEnCurso)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)
}

func TestTransitionGuardDenialConflicts(t *testing.T) {
	svc, _, _ := newLifecycleFixture(models.StateEnCurso)

	_, err := svc.Transition(context.Background(), "offering-1", models.StateFinalizado)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)
}

func TestProjectInscriptionSuppressesRoster(t *testing.T) {
	svc, _, _ := newLifecycleFixture(models.StateInscripciones)

	view, err := svc.Project(context.Background(), "offering-1")
	require.NoError(t, err)
	inscView, ok := view.(*dto.OfferingInscriptionView)
	require.True(t, ok)
	assert.Equal(t, "offering-1", inscView.ID)
	assert.NotNil(t, inscView.Instructors)
}

func TestProjectInProgressCarriesRoster(t *testing.T) {
	svc, _, enrollments := newLifecycleFixture(models.StateEnCurso)
	enrollments.roster["offering-1"] = []models.EnrollmentDetail{
		{
			Enrollment:      models.Enrollment{ID: "enroll-1", ParticipantID: "student-1"},
			ParticipantName: "Ana Torres",
			LevelName:       "Nivel 3",
		},
	}

	view, err := svc.Project(context.Background(), "offering-1")
	require.NoError(t, err)
	progressView, ok := view.(*dto.OfferingInProgressView)
	require.True(t, ok)
	require.Len(t, progressView.Roster, 1)
	assert.Equal(t, "Ana Torres", progressView.Roster[0].ParticipantName)
}

func TestProjectFinalComputesResults(t *testing.T) {
	svc, offerings, enrollments := newLifecycleFixture(models.StateFinalizado)
	minimum := 3.0
	offerings.offerings["offering-1"].MinPassingGrade = &minimum
	passing, failing := 4.5, 2.0
	enrollments.roster["offering-1"] = []models.EnrollmentDetail{
		{Enrollment: models.Enrollment{ID: "enroll-1", FinalGrade: &passing}},
		{Enrollment: models.Enrollment{ID: "enroll-2", FinalGrade: &failing}},
		{Enrollment: models.Enrollment{ID: "enroll-3"}},
	}

	view, err := svc.Project(context.Background(), "offering-1")
	require.NoError(t, err)
	finalView, ok := view.(*dto.OfferingFinalView)
	require.True(t, ok)
	require.Len(t, finalView.Roster, 3)
	assert.Equal(t, models.ResultPassed, finalView.Roster[0].Result)
	assert.Equal(t, models.ResultFailed, finalView.Roster[1].Result)
	assert.Equal(t, models.ResultPending, finalView.Roster[2].Result)
}

func TestPassResultPendingWithoutMinimum(t *testing.T) {
	grade := 4.0
	assert.Equal(t, models.ResultPending, passResult(&grade, nil))
	assert.Equal(t, models.ResultPending, passResult(nil, nil))
}

func TestDeleteOnlyDuringInscriptions(t *testing.T) {
	svc, offerings, _ := newLifecycleFixture(models.StateEnCurso)

	err := svc.Delete(context.Background(), "offering-1")
	require.Error(t, err)
	assert.Empty(t, offerings.deleted)

	offerings.offerings["offering-1"].State = models.StateInscripciones
	require.NoError(t, svc.Delete(context.Background(), "offering-1"))
	assert.Equal(t, []string{"offering-1"}, offerings.deleted)
}
