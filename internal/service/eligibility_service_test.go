package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bienestar-dev/eventos-api/internal/models"
	"github.com/bienestar-dev/eventos-api/internal/repository"
)

type stubEnrollments struct {
	counts    map[string]int
	exists    map[string]bool
	details   map[string]*models.EnrollmentDetail
	createErr error
	created   *models.Enrollment
	deleted   []string
}

func (m *stubEnrollments) CountByBinding(ctx context.Context, bindingID string) (int, error) {
	return m.counts[bindingID], nil
}

func (m *stubEnrollments) Exists(ctx context.Context, participantID, bindingID string) (bool, error) {
	return m.exists[participantID+"|"+bindingID], nil
}

func (m *stubEnrollments) CreateGuarded(ctx context.Context, enrollment *models.Enrollment) error {
	if m.createErr != nil {
		return m.createErr
	}
	if enrollment.ID == "" {
		enrollment.ID = "enroll-1"
	}
	m.created = enrollment
	if m.details == nil {
		m.details = make(map[string]*models.EnrollmentDetail)
	}
	m.details[enrollment.ID] = &models.EnrollmentDetail{Enrollment: *enrollment}
	return nil
}

func (m *stubEnrollments) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if d, ok := m.details[id]; ok {
		e := d.Enrollment
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubEnrollments) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if d, ok := m.details[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubEnrollments) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type stubBindings struct {
	bindings map[string]*models.LevelBinding
}

func (m *stubBindings) FindByID(ctx context.Context, id string) (*models.LevelBinding, error) {
	if b, ok := m.bindings[id]; ok {
		return b, nil
	}
	return nil, sql.ErrNoRows
}

type stubOfferings struct {
	offerings map[string]*models.Offering
}

func (m *stubOfferings) FindByID(ctx context.Context, id string) (*models.Offering, error) {
	if o, ok := m.offerings[id]; ok {
		return o, nil
	}
	return nil, sql.ErrNoRows
}

type stubEvents struct {
	events map[string]*models.Event
}

func (m *stubEvents) FindByID(ctx context.Context, id string) (*models.Event, error) {
	if e, ok := m.events[id]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

type stubInstructors struct {
	assigned map[string]bool
}

func (m *stubInstructors) Exists(ctx context.Context, offeringID, participantID string) (bool, error) {
	return m.assigned[offeringID+"|"+participantID], nil
}

type stubLevels struct {
	active map[string]bool
}

func (m *stubLevels) HasActiveLevel(ctx context.Context, participantID, levelID string) (bool, error) {
	return m.active[participantID+"|"+levelID], nil
}

type eligibilityFixture struct {
	enrollments *stubEnrollments
	bindings    *stubBindings
	offerings   *stubOfferings
	events      *stubEvents
	instructors *stubInstructors
	levels      *stubLevels
	svc         *EligibilityService
}

func newEligibilityFixture() *eligibilityFixture {
	responsible := "resp-1"
	f := &eligibilityFixture{
		enrollments: &stubEnrollments{counts: map[string]int{}, exists: map[string]bool{}, details: map[string]*models.EnrollmentDetail{}},
		bindings: &stubBindings{bindings: map[string]*models.LevelBinding{
			"binding-1": {ID: "binding-1", OfferingID: "offering-1", LevelID: "level-1"},
		}},
		offerings: &stubOfferings{offerings: map[string]*models.Offering{
			"offering-1": {ID: "offering-1", EventID: "event-1", Capacity: 2, State: models.StateInscripciones},
		}},
		events: &stubEvents{events: map[string]*models.Event{
			"event-1": {ID: "event-1", Audience: models.AudienceGeneral, CostType: models.CostFree, State: models.EventStatePublished, ResponsibleID: &responsible},
		}},
		instructors: &stubInstructors{assigned: map[string]bool{}},
		levels:      &stubLevels{active: map[string]bool{}},
	}
	f.svc = NewEligibilityService(f.enrollments, f.bindings, f.offerings, f.events, f.instructors, f.levels, nil, nil, nil)
	return f
}

func studentActor(id string) models.Actor {
	return models.Actor{ParticipantID: id, Roles: models.RoleSet{models.RoleStudent}}
}

func TestEvaluateRoleConflictWinsOverLaterRules(t *testing.T) {
	f := newEligibilityFixture()
	f.instructors.assigned["offering-1|instructor-1"] = true
	// Even with the offering closed and a duplicate on file, the role
	// conflict is reported because it is checked first.
	f.offerings.offerings["offering-1"].State = models.StateEnCurso
	f.enrollments.exists["instructor-1|binding-1"] = true

	actor := models.Actor{ParticipantID: "instructor-1", Roles: models.RoleSet{models.RoleStudent}}
	decision, err := f.svc.Evaluate(context.Background(), actor, "binding-1")
	require.NoError(t, err)
	assert.False(t, decision.Eligible)
	assert.Equal(t, models.ReasonRoleConflict, decision.Reason)
}

func TestEvaluateResponsibleDenied(t *testing.T) {
	f := newEligibilityFixture()
	actor := models.Actor{ParticipantID: "resp-1", Roles: models.RoleSet{models.RoleAdministrative}}
	decision, err := f.svc.Evaluate(context.Background(), actor, "binding-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReasonRoleConflict, decision.Reason)
}

func TestEvaluateAudienceShortCircuitsBeforeLevel(t *testing.T) {
	f := newEligibilityFixture()
	f.events.events["event-1"].Audience = models.AudienceStudents

	actor := models.Actor{ParticipantID: "staff-1", Roles: models.RoleSet{models.RoleAdministrative}}
	decision, err := f.svc.Evaluate(context.Background(), actor, "binding-1")
	require.NoError(t, err)
	// Non-students never reach the level rule on a STUDENTS event.
	assert.Equal(t, models.ReasonAudienceMismatch, decision.Reason)
}

func TestEvaluateStudentWithoutActiveLevel(t *testing.T) {
	f := newEligibilityFixture()
	f.events.events["event-1"].Audience = models.AudienceStudents

	decision, err := f.svc.Evaluate(context.Background(), studentActor("student-1"), "binding-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReasonLevelMismatch, decision.Reason)
}

func TestEvaluateClosedOffering(t *testing.T) {
	f := newEligibilityFixture()
	f.levels.active["student-1|level-1"] = true
	f.offerings.offerings["offering-1"].State = models.StateEnCurso

	decision, err := f.svc.Evaluate(context.Background(), studentActor("student-1"), "binding-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReasonEnrollmentClosed, decision.Reason)
}

func TestEvaluateCapacityExceeded(t *testing.T) {
	f := newEligibilityFixture()
	f.levels.active["student-1|level-1"] = true
	f.offerings.offerings["offering-1"].Capacity = 1
	f.enrollments.counts["binding-1"] = 1

	decision, err := f.svc.Evaluate(context.Background(), studentActor("student-1"), "binding-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReasonCapacityExceeded, decision.Reason)
}

func TestEvaluateDuplicate(t *testing.T) {
	f := newEligibilityFixture()
	f.levels.active["student-1|level-1"] = true
	f.enrollments.exists["student-1|binding-1"] = true

	decision, err := f.svc.Evaluate(context.Background(), studentActor("student-1"), "binding-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReasonAlreadyEnrolled, decision.Reason)
}

func TestEvaluateAllows(t *testing.T) {
	f := newEligibilityFixture()
	f.levels.active["student-1|level-1"] = true

	decision, err := f.svc.Evaluate(context.Background(), studentActor("student-1"), "binding-1")
	require.NoError(t, err)
	assert.True(t, decision.Eligible)
	assert.Empty(t, decision.Reason)
}

func TestEnrollCommits(t *testing.T) {
	f := newEligibilityFixture()
	f.levels.active["student-1|level-1"] = true

	decision, detail, err := f.svc.Enroll(context.Background(), studentActor("student-1"), "binding-1", nil)
	require.NoError(t, err)
	assert.True(t, decision.Eligible)
	require.NotNil(t, detail)
	assert.Equal(t, "student-1", detail.ParticipantID)
	require.NotNil(t, f.enrollments.created)
	assert.Equal(t, "binding-1", f.enrollments.created.BindingID)
}

func TestEnrollLostRaceSurfacesGuardDenial(t *testing.T) {
	f := newEligibilityFixture()
	f.levels.active["student-1|level-1"] = true
	// Evaluate passes but the guarded insert reports the binding filled up.
	f.enrollments.createErr = repository.ErrCapacityReached

	decision, detail, err := f.svc.Enroll(context.Background(), studentActor("student-1"), "binding-1", nil)
	require.NoError(t, err)
	assert.Nil(t, detail)
	assert.Equal(t, models.ReasonCapacityExceeded, decision.Reason)
}

func TestEnrollDuplicateFromGuard(t *testing.T) {
	f := newEligibilityFixture()
	f.levels.active["student-1|level-1"] = true
	f.enrollments.createErr = repository.ErrDuplicateEnrollment

	decision, _, err := f.svc.Enroll(context.Background(), studentActor("student-1"), "binding-1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonAlreadyEnrolled, decision.Reason)
}

func TestCancelByOtherParticipantForbidden(t *testing.T) {
	f := newEligibilityFixture()
	f.enrollments.details["enroll-1"] = &models.EnrollmentDetail{
		Enrollment: models.Enrollment{ID: "enroll-1", ParticipantID: "student-1", BindingID: "binding-1"},
		OfferingID: "offering-1",
	}

	err := f.svc.Cancel(context.Background(), studentActor("student-2"), "enroll-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "administrator")
	assert.Empty(t, f.enrollments.deleted)
}

func TestCancelBlockedOnceStarted(t *testing.T) {
	f := newEligibilityFixture()
	f.enrollments.details["enroll-1"] = &models.EnrollmentDetail{
		Enrollment: models.Enrollment{ID: "enroll-1", ParticipantID: "student-1", BindingID: "binding-1"},
		OfferingID: "offering-1",
	}
	f.offerings.offerings["offering-1"].State = models.StateEnCurso

	err := f.svc.Cancel(context.Background(), studentActor("student-1"), "enroll-1")
	require.Error(t, err)
	assert.Empty(t, f.enrollments.deleted)
}

func TestCancelByOwner(t *testing.T) {
	f := newEligibilityFixture()
	f.enrollments.details["enroll-1"] = &models.EnrollmentDetail{
		Enrollment: models.Enrollment{ID: "enroll-1", ParticipantID: "student-1", BindingID: "binding-1"},
		OfferingID: "offering-1",
	}

	err := f.svc.Cancel(context.Background(), studentActor("student-1"), "enroll-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"enroll-1"}, f.enrollments.deleted)
}
