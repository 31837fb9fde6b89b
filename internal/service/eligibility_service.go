package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/bienestar-dev/eventos-api/internal/models"
	"github.com/bienestar-dev/eventos-api/internal/repository"
	appErrors "github.com/bienestar-dev/eventos-api/pkg/errors"
)

type eligibilityEnrollmentRepo interface {
	CountByBinding(ctx context.Context, bindingID string) (int, error)
	Exists(ctx context.Context, participantID, bindingID string) (bool, error)
	CreateGuarded(ctx context.Context, enrollment *models.Enrollment) error
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	Delete(ctx context.Context, id string) error
}

type bindingReader interface {
	FindByID(ctx context.Context, id string) (*models.LevelBinding, error)
}

type offeringReader interface {
	FindByID(ctx context.Context, id string) (*models.Offering, error)
}

type eventReader interface {
	FindByID(ctx context.Context, id string) (*models.Event, error)
}

type instructorChecker interface {
	Exists(ctx context.Context, offeringID, participantID string) (bool, error)
}

type levelChecker interface {
	HasActiveLevel(ctx context.Context, participantID, levelID string) (bool, error)
}

// EligibilityService runs the enrollment decision pipeline and commits
// admissions. Evaluate is read-only; Enroll re-checks everything inside the
// guarded insert so racing callers cannot oversubscribe a binding.
type EligibilityService struct {
	enrollments eligibilityEnrollmentRepo
	bindings    bindingReader
	offerings   offeringReader
	events      eventReader
	instructors instructorChecker
	levels      levelChecker
	metrics     *MetricsService
	notifier    Notifier
	logger      *zap.Logger
}

// NewEligibilityService constructs the service.
func NewEligibilityService(
	enrollments eligibilityEnrollmentRepo,
	bindings bindingReader,
	offerings offeringReader,
	events eventReader,
	instructors instructorChecker,
	levels levelChecker,
	metrics *MetricsService,
	notifier Notifier,
	logger *zap.Logger,
) *EligibilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityService{
		enrollments: enrollments,
		bindings:    bindings,
		offerings:   offerings,
		events:      events,
		instructors: instructors,
		levels:      levels,
		metrics:     metrics,
		notifier:    notifier,
		logger:      logger,
	}
}

// Evaluate runs the ordered eligibility pipeline for an actor against a level
// binding. The first failing rule wins; later rules are never consulted.
func (s *EligibilityService) Evaluate(ctx context.Context, actor models.Actor, bindingID string) (models.Decision, error) {
	binding, offering, event, err := s.loadContext(ctx, bindingID)
	if err != nil {
		return models.Decision{}, err
	}
	decision, err := s.evaluate(ctx, actor, binding, offering, event)
	if err != nil {
		return models.Decision{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordDecision(decision)
	}
	return decision, nil
}

func (s *EligibilityService) loadContext(ctx context.Context, bindingID string) (*models.LevelBinding, *models.Offering, *models.Event, error) {
	binding, err := s.bindings.FindByID(ctx, bindingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrNotFound, "level binding not found")
		}
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load level binding")
	}
	offering, err := s.offerings.FindByID(ctx, binding.OfferingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	event, err := s.events.FindByID(ctx, offering.EventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return binding, offering, event, nil
}

func (s *EligibilityService) evaluate(ctx context.Context, actor models.Actor, binding *models.LevelBinding, offering *models.Offering, event *models.Event) (models.Decision, error) {
	// 1. Role conflict: instructors and the event responsible never enroll
	// in their own offering.
	teaches, err := s.instructors.Exists(ctx, offering.ID, actor.ParticipantID)
	if err != nil {
		return models.Decision{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check instructor assignment")
	}
	if teaches || event.IsResponsible(actor.ParticipantID) {
		return models.Deny(models.ReasonRoleConflict), nil
	}

	// 2. Audience. A STUDENTS event denies non-students here, so the level
	// rule below only ever sees student actors it applies to.
	switch event.Audience {
	case models.AudienceStudents:
		if !actor.Roles.Has(models.RoleStudent) {
			return models.Deny(models.ReasonAudienceMismatch), nil
		}
	case models.AudienceAdministrative:
		if !actor.Roles.IsAdmin() {
			return models.Deny(models.ReasonAudienceMismatch), nil
		}
	}

	// 3. Level membership. Students enroll through the binding's level and
	// need an active record for it; non-student actors are exempt.
	if actor.Roles.Has(models.RoleStudent) {
		hasLevel, err := s.levels.HasActiveLevel(ctx, actor.ParticipantID, binding.LevelID)
		if err != nil {
			return models.Decision{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check level membership")
		}
		if !hasLevel {
			return models.Deny(models.ReasonLevelMismatch), nil
		}
	}

	// 4. Lifecycle gate.
	if offering.State != models.StateInscripciones {
		return models.Deny(models.ReasonEnrollmentClosed), nil
	}

	// 5. Capacity.
	count, err := s.enrollments.CountByBinding(ctx, binding.ID)
	if err != nil {
		return models.Decision{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	if count >= offering.Capacity {
		return models.Deny(models.ReasonCapacityExceeded), nil
	}

	// 6. Duplicate.
	exists, err := s.enrollments.Exists(ctx, actor.ParticipantID, binding.ID)
	if err != nil {
		return models.Decision{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollment")
	}
	if exists {
		return models.Deny(models.ReasonAlreadyEnrolled), nil
	}

	return models.Allow(), nil
}

// Enroll evaluates the actor and, when eligible, commits the enrollment. The
// guarded insert re-checks state, capacity and duplicates under a row lock, so
// a denial can still surface after a positive evaluation when another caller
// won the race. The returned decision is authoritative.
func (s *EligibilityService) Enroll(ctx context.Context, actor models.Actor, bindingID string, studentRecordID *string) (models.Decision, *models.EnrollmentDetail, error) {
	binding, offering, event, err := s.loadContext(ctx, bindingID)
	if err != nil {
		return models.Decision{}, nil, err
	}

	decision, err := s.evaluate(ctx, actor, binding, offering, event)
	if err != nil {
		return models.Decision{}, nil, err
	}
	if !decision.Eligible {
		if s.metrics != nil {
			s.metrics.RecordDecision(decision)
		}
		return decision, nil, nil
	}

	enrollment := &models.Enrollment{
		ParticipantID:   actor.ParticipantID,
		BindingID:       binding.ID,
		StudentRecordID: studentRecordID,
	}
	if err := s.enrollments.CreateGuarded(ctx, enrollment); err != nil {
		switch {
		case errors.Is(err, repository.ErrEnrollmentClosed):
			decision = models.Deny(models.ReasonEnrollmentClosed)
		case errors.Is(err, repository.ErrCapacityReached):
			decision = models.Deny(models.ReasonCapacityExceeded)
		case errors.Is(err, repository.ErrDuplicateEnrollment):
			decision = models.Deny(models.ReasonAlreadyEnrolled)
		case errors.Is(err, sql.ErrNoRows):
			return models.Decision{}, nil, appErrors.Clone(appErrors.ErrNotFound, "level binding not found")
		default:
			return models.Decision{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
		}
		if s.metrics != nil {
			s.metrics.RecordDecision(decision)
		}
		return decision, nil, nil
	}

	if s.metrics != nil {
		s.metrics.RecordDecision(decision)
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, Notification{
			Type:          NotifyEnrollmentCreated,
			ParticipantID: actor.ParticipantID,
			OfferingID:    offering.ID,
			EnrollmentID:  enrollment.ID,
		})
	}

	detail, err := s.enrollments.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return models.Decision{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return decision, detail, nil
}

// Cancel removes an enrollment while the offering still accepts changes. Only
// the enrolled participant or an administrator may cancel.
func (s *EligibilityService) Cancel(ctx context.Context, actor models.Actor, enrollmentID string) error {
	detail, err := s.enrollments.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if detail.ParticipantID != actor.ParticipantID && !actor.Roles.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only the enrolled participant or an administrator may cancel")
	}

	offering, err := s.offerings.FindByID(ctx, detail.OfferingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	if offering.State != models.StateInscripciones {
		return appErrors.Clone(appErrors.ErrStateConflict, "enrollment can only be cancelled while inscriptions are open")
	}

	if err := s.enrollments.Delete(ctx, enrollmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, Notification{
			Type:          NotifyEnrollmentCancelled,
			ParticipantID: detail.ParticipantID,
			OfferingID:    detail.OfferingID,
			EnrollmentID:  enrollmentID,
		})
	}
	return nil
}
