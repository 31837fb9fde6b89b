package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bienestar-dev/eventos-api/internal/dto"
	"github.com/bienestar-dev/eventos-api/internal/models"
	appErrors "github.com/bienestar-dev/eventos-api/pkg/errors"
)

type requirementRepo interface {
	FindRequirement(ctx context.Context, id string) (*models.Requirement, error)
	ListObligatoryByOffering(ctx context.Context, offeringID string) ([]models.Requirement, error)
	UpsertSubmission(ctx context.Context, sub *models.RequirementSubmission) error
	FindSubmission(ctx context.Context, id string) (*models.RequirementSubmission, error)
	ListSubmissionsByEnrollment(ctx context.Context, enrollmentID string) ([]models.RequirementSubmission, error)
	ReviewSubmission(ctx context.Context, id string, state models.ApprovalState, reviewerID, comment string, reviewedAt time.Time) error
	ListPending(ctx context.Context) ([]dto.PendingDocument, error)
}

type paymentRepo interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	FindByEnrollment(ctx context.Context, enrollmentID string) (*models.Payment, error)
	Review(ctx context.Context, id string, state models.ApprovalState, reviewerID, comment string, reviewedAt time.Time) error
	ListPending(ctx context.Context) ([]dto.PendingDocument, error)
}

type approvalEnrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
}

type evidenceStore interface {
	SaveStream(filename string, r io.Reader, maxBytes int64) (string, error)
}

// RegisterPaymentRequest carries the payment declaration payload.
type RegisterPaymentRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Method string  `json:"method" validate:"required"`
}

// ApprovalService runs the two approval tracks attached to an enrollment:
// requirement submissions and payments. Completion and certificate gating
// read both.
type ApprovalService struct {
	requirements requirementRepo
	payments     paymentRepo
	enrollments  approvalEnrollmentReader
	offerings    offeringReader
	events       eventReader
	evidence     evidenceStore
	maxEvidence  int64
	validator    *validator.Validate
	notifier     Notifier
	logger       *zap.Logger
}

// NewApprovalService constructs the service.
func NewApprovalService(
	requirements requirementRepo,
	payments paymentRepo,
	enrollments approvalEnrollmentReader,
	offerings offeringReader,
	events eventReader,
	evidence evidenceStore,
	maxEvidenceBytes int64,
	validate *validator.Validate,
	notifier Notifier,
	logger *zap.Logger,
) *ApprovalService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{
		requirements: requirements,
		payments:     payments,
		enrollments:  enrollments,
		offerings:    offerings,
		events:       events,
		evidence:     evidence,
		maxEvidence:  maxEvidenceBytes,
		validator:    validate,
		notifier:     notifier,
		logger:       logger,
	}
}

// SubmitRequirement records the participant's answer to a requirement.
// Resubmitting overwrites the previous value and reopens the review.
func (s *ApprovalService) SubmitRequirement(ctx context.Context, actor models.Actor, enrollmentID, requirementID, value string) (*models.RequirementSubmission, error) {
	if value == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "submission value is required")
	}
	detail, err := s.loadEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if detail.ParticipantID != actor.ParticipantID && !actor.Roles.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the enrolled participant may submit")
	}
	requirement, err := s.requirements.FindRequirement(ctx, requirementID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "requirement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requirement")
	}
	if requirement.OfferingID != detail.OfferingID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "requirement does not belong to the enrollment's offering")
	}

	sub := &models.RequirementSubmission{
		EnrollmentID:  enrollmentID,
		RequirementID: requirementID,
		Value:         &value,
		State:         models.ApprovalPending,
	}
	if err := s.requirements.UpsertSubmission(ctx, sub); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store submission")
	}
	return sub, nil
}

// IsComplete reports whether every obligatory requirement of the enrollment's
// offering has a submission carrying a value. Presence counts, not approval.
func (s *ApprovalService) IsComplete(ctx context.Context, enrollmentID string) (bool, []models.Requirement, error) {
	detail, err := s.loadEnrollment(ctx, enrollmentID)
	if err != nil {
		return false, nil, err
	}
	obligatory, err := s.requirements.ListObligatoryByOffering(ctx, detail.OfferingID)
	if err != nil {
		return false, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requirements")
	}
	submissions, err := s.requirements.ListSubmissionsByEnrollment(ctx, enrollmentID)
	if err != nil {
		return false, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
	}

	submitted := make(map[string]bool, len(submissions))
	for i := range submissions {
		if submissions[i].Submitted() {
			submitted[submissions[i].RequirementID] = true
		}
	}
	var missing []models.Requirement
	for _, req := range obligatory {
		if !submitted[req.ID] {
			missing = append(missing, req)
		}
	}
	return len(missing) == 0, missing, nil
}

// ApproveSubmission marks a submission approved.
func (s *ApprovalService) ApproveSubmission(ctx context.Context, actor models.Actor, submissionID, comment string) error {
	return s.reviewSubmission(ctx, actor, submissionID, models.ApprovalApproved, comment)
}

// RejectSubmission marks a submission rejected. The row survives; the
// participant reopens it by resubmitting.
func (s *ApprovalService) RejectSubmission(ctx context.Context, actor models.Actor, submissionID, comment string) error {
	return s.reviewSubmission(ctx, actor, submissionID, models.ApprovalRejected, comment)
}

func (s *ApprovalService) reviewSubmission(ctx context.Context, actor models.Actor, submissionID string, state models.ApprovalState, comment string) error {
	sub, err := s.requirements.FindSubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	detail, err := s.loadEnrollment(ctx, sub.EnrollmentID)
	if err != nil {
		return err
	}
	if err := s.requireReviewer(ctx, actor, detail.OfferingID); err != nil {
		return err
	}
	if !sub.Submitted() {
		return appErrors.Clone(appErrors.ErrStateConflict, "submission carries no value to review")
	}
	if err := s.requirements.ReviewSubmission(ctx, submissionID, state, actor.ParticipantID, comment, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review submission")
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, Notification{
			Type:          NotifySubmissionReviewed,
			ParticipantID: detail.ParticipantID,
			OfferingID:    detail.OfferingID,
			EnrollmentID:  sub.EnrollmentID,
			Data:          map[string]interface{}{"state": state},
		})
	}
	return nil
}

// RegisterPayment declares a payment for an enrollment of a paid event and
// stores its evidence file when provided.
func (s *ApprovalService) RegisterPayment(ctx context.Context, actor models.Actor, enrollmentID string, req RegisterPaymentRequest, evidence io.Reader, filename string) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	detail, err := s.loadEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if detail.ParticipantID != actor.ParticipantID && !actor.Roles.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the enrolled participant may register a payment")
	}
	event, err := s.loadEventForOffering(ctx, detail.OfferingID)
	if err != nil {
		return nil, err
	}
	if event.CostType != models.CostPaid {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "event is free; no payment is expected")
	}

	payment := &models.Payment{
		ID:           uuid.NewString(),
		EnrollmentID: enrollmentID,
		Amount:       req.Amount,
		Method:       req.Method,
		State:        models.ApprovalPending,
	}
	if evidence != nil && s.evidence != nil {
		name := fmt.Sprintf("evidence/%s/%s%s", enrollmentID, payment.ID, filepath.Ext(filename))
		stored, err := s.evidence.SaveStream(name, evidence, s.maxEvidence)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store payment evidence")
		}
		payment.EvidencePath = &stored
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment")
	}
	return payment, nil
}

// ApprovePayment marks a payment approved.
func (s *ApprovalService) ApprovePayment(ctx context.Context, actor models.Actor, paymentID, comment string) error {
	return s.reviewPayment(ctx, actor, paymentID, models.ApprovalApproved, comment)
}

// RejectPayment marks a payment rejected.
func (s *ApprovalService) RejectPayment(ctx context.Context, actor models.Actor, paymentID, comment string) error {
	return s.reviewPayment(ctx, actor, paymentID, models.ApprovalRejected, comment)
}

func (s *ApprovalService) reviewPayment(ctx context.Context, actor models.Actor, paymentID string, state models.ApprovalState, comment string) error {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	detail, err := s.loadEnrollment(ctx, payment.EnrollmentID)
	if err != nil {
		return err
	}
	if err := s.requireReviewer(ctx, actor, detail.OfferingID); err != nil {
		return err
	}
	if err := s.payments.Review(ctx, paymentID, state, actor.ParticipantID, comment, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review payment")
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, Notification{
			Type:          NotifyPaymentReviewed,
			ParticipantID: detail.ParticipantID,
			OfferingID:    detail.OfferingID,
			EnrollmentID:  payment.EnrollmentID,
			Data:          map[string]interface{}{"state": state},
		})
	}
	return nil
}

// CanReceiveCertificate gates certificate issuance: the offering must be
// finalized, every obligatory submission approved, the payment approved (or
// the event free), and the grade at or above the configured minimum.
func (s *ApprovalService) CanReceiveCertificate(ctx context.Context, enrollmentID string) (bool, string, error) {
	detail, err := s.loadEnrollment(ctx, enrollmentID)
	if err != nil {
		return false, "", err
	}
	offering, err := s.offerings.FindByID(ctx, detail.OfferingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, "", appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return false, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	if offering.State != models.StateFinalizado {
		return false, "offering is not finalized", nil
	}
	if offering.MinPassingGrade != nil {
		if detail.FinalGrade == nil || *detail.FinalGrade < *offering.MinPassingGrade {
			return false, "final grade below the minimum passing grade", nil
		}
	}

	obligatory, err := s.requirements.ListObligatoryByOffering(ctx, detail.OfferingID)
	if err != nil {
		return false, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requirements")
	}
	submissions, err := s.requirements.ListSubmissionsByEnrollment(ctx, enrollmentID)
	if err != nil {
		return false, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
	}
	approved := make(map[string]bool, len(submissions))
	for i := range submissions {
		if submissions[i].State == models.ApprovalApproved {
			approved[submissions[i].RequirementID] = true
		}
	}
	for _, req := range obligatory {
		if !approved[req.ID] {
			return false, "obligatory requirement not approved: " + req.Description, nil
		}
	}

	event, err := s.loadEventForOffering(ctx, detail.OfferingID)
	if err != nil {
		return false, "", err
	}
	if event.CostType == models.CostPaid {
		payment, err := s.payments.FindByEnrollment(ctx, enrollmentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return false, "payment missing", nil
			}
			return false, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
		}
		if payment.State != models.ApprovalApproved {
			return false, "payment not approved", nil
		}
	}
	return true, "", nil
}

// PendingDocuments merges pending submissions and payments into a single
// reviewer queue, newest first.
func (s *ApprovalService) PendingDocuments(ctx context.Context) ([]dto.PendingDocument, error) {
	submissions, err := s.requirements.ListPending(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending submissions")
	}
	payments, err := s.payments.ListPending(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending payments")
	}
	queue := append(submissions, payments...)
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].SubmittedAt.After(queue[j].SubmittedAt)
	})
	return queue, nil
}

func (s *ApprovalService) loadEnrollment(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.enrollments.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

func (s *ApprovalService) loadEventForOffering(ctx context.Context, offeringID string) (*models.Event, error) {
	offering, err := s.offerings.FindByID(ctx, offeringID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	event, err := s.events.FindByID(ctx, offering.EventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return event, nil
}

// requireReviewer permits the event responsible party or an administrator.
func (s *ApprovalService) requireReviewer(ctx context.Context, actor models.Actor, offeringID string) error {
	if actor.Roles.IsAdmin() {
		return nil
	}
	event, err := s.loadEventForOffering(ctx, offeringID)
	if err != nil {
		return err
	}
	if !event.IsResponsible(actor.ParticipantID) {
		return appErrors.Clone(appErrors.ErrForbidden, "only the event responsible or an administrator may review")
	}
	return nil
}
