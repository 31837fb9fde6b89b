package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bienestar-dev/eventos-api/internal/dto"
	"github.com/bienestar-dev/eventos-api/internal/models"
	appErrors "github.com/bienestar-dev/eventos-api/pkg/errors"
)

type fakeRequirements struct {
	requirements map[string]*models.Requirement
	submissions  map[string]*models.RequirementSubmission
	pending      []dto.PendingDocument
}

func (m *fakeRequirements) FindRequirement(ctx context.Context, id string) (*models.Requirement, error) {
	if r, ok := m.requirements[id]; ok {
		return r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *fakeRequirements) ListObligatoryByOffering(ctx context.Context, offeringID string) ([]models.Requirement, error) {
	var out []models.Requirement
	for _, r := range m.requirements {
		if r.OfferingID == offeringID && r.Obligatory {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *fakeRequirements) UpsertSubmission(ctx context.Context, sub *models.RequirementSubmission) error {
	if sub.ID == "" {
		sub.ID = "sub-" + sub.RequirementID
	}
	sub.State = models.ApprovalPending
	sub.SubmittedAt = time.Now()
	m.submissions[sub.ID] = sub
	return nil
}

func (m *fakeRequirements) FindSubmission(ctx context.Context, id string) (*models.RequirementSubmission, error) {
	if s, ok := m.submissions[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *fakeRequirements) ListSubmissionsByEnrollment(ctx context.Context, enrollmentID string) ([]models.RequirementSubmission, error) {
	var out []models.RequirementSubmission
	for _, s := range m.submissions {
		if s.EnrollmentID == enrollmentID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *fakeRequirements) ReviewSubmission(ctx context.Context, id string, state models.ApprovalState, reviewerID, comment string, reviewedAt time.Time) error {
	s, ok := m.submissions[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.State = state
	s.ReviewerID = &reviewerID
	s.Comment = &comment
	s.ReviewedAt = &reviewedAt
	return nil
}

func (m *fakeRequirements) ListPending(ctx context.Context) ([]dto.PendingDocument, error) {
	return m.pending, nil
}

type fakePayments struct {
	payments map[string]*models.Payment
	pending  []dto.PendingDocument
}

func (m *fakePayments) Create(ctx context.Context, payment *models.Payment) error {
	m.payments[payment.ID] = payment
	return nil
}

func (m *fakePayments) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if p, ok := m.payments[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *fakePayments) FindByEnrollment(ctx context.Context, enrollmentID string) (*models.Payment, error) {
	var latest *models.Payment
	for _, p := range m.payments {
		if p.EnrollmentID != enrollmentID {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	return latest, nil
}

func (m *fakePayments) Review(ctx context.Context, id string, state models.ApprovalState, reviewerID, comment string, reviewedAt time.Time) error {
	p, ok := m.payments[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.State = state
	p.ReviewerID = &reviewerID
	p.Comment = &comment
	p.ReviewedAt = &reviewedAt
	return nil
}

func (m *fakePayments) ListPending(ctx context.Context) ([]dto.PendingDocument, error) {
	return m.pending, nil
}

type fakeApprovalEnrollments struct {
	details map[string]*models.EnrollmentDetail
}

func (m *fakeApprovalEnrollments) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if d, ok := m.details[id]; ok {
		e := d.Enrollment
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *fakeApprovalEnrollments) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if d, ok := m.details[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

type fakeEvidenceStore struct {
	saved map[string][]byte
}

func (m *fakeEvidenceStore) SaveStream(filename string, r io.Reader, maxBytes int64) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[filename] = data
	return filename, nil
}

type approvalFixture struct {
	requirements *fakeRequirements
	payments     *fakePayments
	enrollments  *fakeApprovalEnrollments
	offerings    *stubOfferings
	events       *stubEvents
	evidence     *fakeEvidenceStore
	svc          *ApprovalService
}

func newApprovalFixture() *approvalFixture {
	responsible := "resp-1"
	f := &approvalFixture{
		requirements: &fakeRequirements{
			requirements: map[string]*models.Requirement{
				"req-1": {ID: "req-1", OfferingID: "offering-1", Type: "DOCUMENT", Description: "Consentimiento firmado", Obligatory: true},
			},
			submissions: map[string]*models.RequirementSubmission{},
		},
		payments: &fakePayments{payments: map[string]*models.Payment{}},
		enrollments: &fakeApprovalEnrollments{details: map[string]*models.EnrollmentDetail{
			"enroll-1": {
				Enrollment: models.Enrollment{ID: "enroll-1", ParticipantID: "student-1", BindingID: "binding-1"},
				OfferingID: "offering-1",
			},
		}},
		offerings: &stubOfferings{offerings: map[string]*models.Offering{
			"offering-1": {ID: "offering-1", EventID: "event-1", Capacity: 10, State: models.StateInscripciones},
		}},
		events: &stubEvents{events: map[string]*models.Event{
			"event-1": {ID: "event-1", Audience: models.AudienceGeneral, CostType: models.CostPaid, State: models.EventStatePublished, ResponsibleID: &responsible},
		}},
		evidence: &fakeEvidenceStore{},
	}
	f.svc = NewApprovalService(f.requirements, f.payments, f.enrollments, f.offerings, f.events, f.evidence, 1<<20, nil, nil, nil)
	return f
}

func adminActor(id string) models.Actor {
	return models.Actor{ParticipantID: id, Roles: models.RoleSet{models.RoleAdministrative}}
}

func TestSubmitRequirement(t *testing.T) {
	f := newApprovalFixture()

	sub, err := f.svc.SubmitRequirement(context.Background(), studentActor("student-1"), "enroll-1", "req-1", "archivo.pdf")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, sub.State)
	require.NotNil(t, sub.Value)
	assert.Equal(t, "archivo.pdf", *sub.Value)
}

func TestSubmitRequirementForeignOfferingRejected(t *testing.T) {
	f := newApprovalFixture()
	f.requirements.requirements["req-2"] = &models.Requirement{ID: "req-2", OfferingID: "offering-other", Obligatory: true}

	_, err := f.svc.SubmitRequirement(context.Background(), studentActor("student-1"), "enroll-1", "req-2", "x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubmitRequirementByStrangerForbidden(t *testing.T) {
	f := newApprovalFixture()

	_, err := f.svc.SubmitRequirement(context.Background(), studentActor("student-2"), "enroll-1", "req-1", "x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestIsCompleteCountsPresenceNotApproval(t *testing.T) {
	f := newApprovalFixture()

	complete, missing, err := f.svc.IsComplete(context.Background(), "enroll-1")
	require.NoError(t, err)
	assert.False(t, complete)
	require.Len(t, missing, 1)

	// A rejected submission still carries a value, so the requirement counts
	// as fulfilled for completion purposes.
	value := "archivo.pdf"
	f.requirements.submissions["sub-1"] = &models.RequirementSubmission{
		ID: "sub-1", EnrollmentID: "enroll-1", RequirementID: "req-1",
		Value: &value, State: models.ApprovalRejected,
	}
	complete, missing, err = f.svc.IsComplete(context.Background(), "enroll-1")
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Empty(t, missing)
}

func TestReviewSubmissionRequiresReviewer(t *testing.T) {
	f := newApprovalFixture()
	value := "archivo.pdf"
	f.requirements.submissions["sub-1"] = &models.RequirementSubmission{
		ID: "sub-1", EnrollmentID: "enroll-1", RequirementID: "req-1",
		Value: &value, State: models.ApprovalPending,
	}

	err := f.svc.ApproveSubmission(context.Background(), studentActor("student-2"), "sub-1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// The event responsible reviews without holding an admin role.
	responsible := models.Actor{ParticipantID: "resp-1", Roles: models.RoleSet{}}
	require.NoError(t, f.svc.ApproveSubmission(context.Background(), responsible, "sub-1", "ok"))
	assert.Equal(t, models.ApprovalApproved, f.requirements.submissions["sub-1"].State)
}

func TestReviewSubmissionWithoutValueConflicts(t *testing.T) {
	f := newApprovalFixture()
	f.requirements.submissions["sub-1"] = &models.RequirementSubmission{
		ID: "sub-1", EnrollmentID: "enroll-1", RequirementID: "req-1",
		State: models.ApprovalPending,
	}

	err := f.svc.ApproveSubmission(context.Background(), adminActor("admin-1"), "sub-1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)
}

func TestRegisterPaymentOnFreeEventRejected(t *testing.T) {
	f := newApprovalFixture()
	f.events.events["event-1"].CostType = models.CostFree

	_, err := f.svc.RegisterPayment(context.Background(), studentActor("student-1"), "enroll-1", RegisterPaymentRequest{Amount: 10, Method: "PSE"}, nil, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)
}

func TestRegisterPaymentStoresEvidence(t *testing.T) {
	f := newApprovalFixture()

	payment, err := f.svc.RegisterPayment(context.Background(), studentActor("student-1"), "enroll-1", RegisterPaymentRequest{Amount: 50000, Method: "PSE"}, bytes.NewReader([]byte("%PDF-1.4")), "recibo.pdf")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, payment.State)
	require.NotNil(t, payment.EvidencePath)
	assert.Contains(t, *payment.EvidencePath, "enroll-1")
	assert.Len(t, f.evidence.saved, 1)
}

func TestCanReceiveCertificateGates(t *testing.T) {
	f := newApprovalFixture()
	grade := 4.0
	minimum := 3.0
	f.enrollments.details["enroll-1"].FinalGrade = &grade
	f.offerings.offerings["offering-1"].MinPassingGrade = &minimum

	ok, reason, err := f.svc.CanReceiveCertificate(context.Background(), "enroll-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "not finalized")

	f.offerings.offerings["offering-1"].State = models.StateFinalizado

	ok, reason, err = f.svc.CanReceiveCertificate(context.Background(), "enroll-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "requirement not approved")

	value := "archivo.pdf"
	f.requirements.submissions["sub-1"] = &models.RequirementSubmission{
		ID: "sub-1", EnrollmentID: "enroll-1", RequirementID: "req-1",
		Value: &value, State: models.ApprovalApproved,
	}

	ok, reason, err = f.svc.CanReceiveCertificate(context.Background(), "enroll-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "payment missing", reason)

	f.payments.payments["pay-1"] = &models.Payment{ID: "pay-1", EnrollmentID: "enroll-1", State: models.ApprovalPending}

	ok, reason, err = f.svc.CanReceiveCertificate(context.Background(), "enroll-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "payment not approved", reason)

	f.payments.payments["pay-1"].State = models.ApprovalApproved

	ok, reason, err = f.svc.CanReceiveCertificate(context.Background(), "enroll-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestCanReceiveCertificateFreeEventSkipsPayment(t *testing.T) {
	f := newApprovalFixture()
	f.events.events["event-1"].CostType = models.CostFree
	f.offerings.offerings["offering-1"].State = models.StateFinalizado
	value := "archivo.pdf"
	f.requirements.submissions["sub-1"] = &models.RequirementSubmission{
		ID: "sub-1", EnrollmentID: "enroll-1", RequirementID: "req-1",
		Value: &value, State: models.ApprovalApproved,
	}

	ok, reason, err := f.svc.CanReceiveCertificate(context.Background(), "enroll-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestCanReceiveCertificateGradeBelowMinimum(t *testing.T) {
	f := newApprovalFixture()
	grade := 2.5
	minimum := 3.0
	f.enrollments.details["enroll-1"].FinalGrade = &grade
	f.offerings.offerings["offering-1"].MinPassingGrade = &minimum
	f.offerings.offerings["offering-1"].State = models.StateFinalizado

	ok, reason, err := f.svc.CanReceiveCertificate(context.Background(), "enroll-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "below the minimum")
}

func TestPendingDocumentsMergedNewestFirst(t *testing.T) {
	f := newApprovalFixture()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f.requirements.pending = []dto.PendingDocument{
		{Kind: "submission", ID: "sub-1", SubmittedAt: base},
		{Kind: "submission", ID: "sub-2", SubmittedAt: base.Add(2 * time.Hour)},
	}
	f.payments.pending = []dto.PendingDocument{
		{Kind: "payment", ID: "pay-1", SubmittedAt: base.Add(time.Hour)},
	}

	queue, err := f.svc.PendingDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, queue, 3)
	assert.Equal(t, "sub-2", queue[0].ID)
	assert.Equal(t, "pay-1", queue[1].ID)
	assert.Equal(t, "sub-1", queue[2].ID)
}
