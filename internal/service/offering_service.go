package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/bienestar-dev/eventos-api/internal/models"
	appErrors "github.com/bienestar-dev/eventos-api/pkg/errors"
)

type offeringRepo interface {
	Create(ctx context.Context, offering *models.Offering) error
	FindByID(ctx context.Context, id string) (*models.Offering, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.Offering, error)
	RecordAttendance(ctx context.Context, id string, takenAt time.Time) error
}

type bindingRepo interface {
	Create(ctx context.Context, binding *models.LevelBinding) error
	FindByID(ctx context.Context, id string) (*models.LevelBinding, error)
	ListByOffering(ctx context.Context, offeringID string) ([]models.LevelBindingDetail, error)
	Delete(ctx context.Context, id string) error
}

type instructorWriter interface {
	Create(ctx context.Context, assignment *models.InstructorAssignment) error
	Exists(ctx context.Context, offeringID, participantID string) (bool, error)
	Delete(ctx context.Context, id string) error
}

type requirementWriter interface {
	CreateRequirement(ctx context.Context, req *models.Requirement) error
	ListByOffering(ctx context.Context, offeringID string) ([]models.Requirement, error)
}

type offeringEnrollmentRepo interface {
	CountByBinding(ctx context.Context, bindingID string) (int, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	UpdateResults(ctx context.Context, id string, grade, attendancePct *float64) error
}

// CreateOfferingRequest describes the offering creation payload.
type CreateOfferingRequest struct {
	EventID         string   `json:"event_id" validate:"required"`
	Name            string   `json:"name" validate:"required"`
	Capacity        int      `json:"capacity" validate:"required,gt=0"`
	DurationHours   int      `json:"duration_hours" validate:"gte=0"`
	Area            string   `json:"area"`
	Category        string   `json:"category"`
	OfferingType    string   `json:"offering_type"`
	Schedule        string   `json:"schedule"`
	MinPassingGrade *float64 `json:"min_passing_grade" validate:"omitempty,gte=0,lte=5"`
}

// RecordResultsRequest captures grade and attendance for one enrollment.
type RecordResultsRequest struct {
	FinalGrade    *float64 `json:"final_grade" validate:"omitempty,gte=0,lte=5"`
	AttendancePct *float64 `json:"attendance_pct" validate:"omitempty,gte=0,lte=100"`
}

// OfferingService manages offerings and the resources hanging off them:
// level bindings, instructor assignments, requirements and results capture.
// Lifecycle transitions live in LifecycleService.
type OfferingService struct {
	offerings    offeringRepo
	events       eventReader
	bindings     bindingRepo
	instructors  instructorWriter
	requirements requirementWriter
	enrollments  offeringEnrollmentRepo
	participants participantReader
	cache        *CacheService
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewOfferingService constructs the service.
func NewOfferingService(
	offerings offeringRepo,
	events eventReader,
	bindings bindingRepo,
	instructors instructorWriter,
	requirements requirementWriter,
	enrollments offeringEnrollmentRepo,
	participants participantReader,
	cache *CacheService,
	validate *validator.Validate,
	logger *zap.Logger,
) *OfferingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OfferingService{
		offerings:    offerings,
		events:       events,
		bindings:     bindings,
		instructors:  instructors,
		requirements: requirements,
		enrollments:  enrollments,
		participants: participants,
		cache:        cache,
		validator:    validate,
		logger:       logger,
	}
}

// Create registers a new offering under an event. New offerings always start
// in INSCRIPCIONES.
func (s *OfferingService) Create(ctx context.Context, req CreateOfferingRequest) (*models.Offering, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid offering payload")
	}
	event, err := s.events.FindByID(ctx, req.EventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if event.State == models.EventStateArchived {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "archived events cannot receive offerings")
	}

	offering := &models.Offering{
		EventID:         req.EventID,
		Name:            req.Name,
		Capacity:        req.Capacity,
		DurationHours:   req.DurationHours,
		Area:            req.Area,
		Category:        req.Category,
		OfferingType:    req.OfferingType,
		Schedule:        req.Schedule,
		MinPassingGrade: req.MinPassingGrade,
	}
	if err := s.offerings.Create(ctx, offering); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create offering")
	}
	return offering, nil
}

// Get returns the raw offering record.
func (s *OfferingService) Get(ctx context.Context, id string) (*models.Offering, error) {
	return s.loadOffering(ctx, id)
}

// ListByEvent returns all offerings of an event.
func (s *OfferingService) ListByEvent(ctx context.Context, eventID string) ([]models.Offering, error) {
	offerings, err := s.offerings.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list offerings")
	}
	return offerings, nil
}

// AddBinding admits an academic level into the offering. Only while
// inscriptions are open.
func (s *OfferingService) AddBinding(ctx context.Context, offeringID, levelID string) (*models.LevelBinding, error) {
	offering, err := s.loadOffering(ctx, offeringID)
	if err != nil {
		return nil, err
	}
	if offering.State != models.StateInscripciones {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "bindings can only change while inscriptions are open")
	}
	binding := &models.LevelBinding{OfferingID: offeringID, LevelID: levelID}
	if err := s.bindings.Create(ctx, binding); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create level binding")
	}
	return binding, nil
}

// ListBindings returns the offering's bindings with level names.
func (s *OfferingService) ListBindings(ctx context.Context, offeringID string) ([]models.LevelBindingDetail, error) {
	bindings, err := s.bindings.ListByOffering(ctx, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bindings")
	}
	return bindings, nil
}

// RemoveBinding deletes a binding, only while inscriptions are open and no
// enrollments hang off it.
func (s *OfferingService) RemoveBinding(ctx context.Context, bindingID string) error {
	binding, err := s.bindings.FindByID(ctx, bindingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "level binding not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load binding")
	}
	offering, err := s.loadOffering(ctx, binding.OfferingID)
	if err != nil {
		return err
	}
	if offering.State != models.StateInscripciones {
		return appErrors.Clone(appErrors.ErrStateConflict, "bindings can only change while inscriptions are open")
	}
	count, err := s.enrollments.CountByBinding(ctx, bindingID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrStateConflict, "binding has enrollments")
	}
	if err := s.bindings.Delete(ctx, bindingID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete binding")
	}
	return nil
}

// AssignInstructor attaches a teaching participant to the offering. Assigned
// instructors are excluded from enrolling by the eligibility pipeline.
func (s *OfferingService) AssignInstructor(ctx context.Context, offeringID, participantID, role string) (*models.InstructorAssignment, error) {
	if _, err := s.loadOffering(ctx, offeringID); err != nil {
		return nil, err
	}
	if _, err := s.participants.FindByID(ctx, participantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "participant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant")
	}
	exists, err := s.instructors.Exists(ctx, offeringID, participantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check instructor assignment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "participant is already assigned to this offering")
	}
	if role == "" {
		role = "INSTRUCTOR"
	}
	assignment := &models.InstructorAssignment{OfferingID: offeringID, ParticipantID: participantID, Role: role}
	if err := s.instructors.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign instructor")
	}
	s.invalidateProjection(ctx, offeringID)
	return assignment, nil
}

// AddRequirement attaches a requirement to the offering while inscriptions
// are open.
func (s *OfferingService) AddRequirement(ctx context.Context, offeringID, reqType, description string, obligatory bool) (*models.Requirement, error) {
	offering, err := s.loadOffering(ctx, offeringID)
	if err != nil {
		return nil, err
	}
	if offering.State != models.StateInscripciones {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "requirements can only change while inscriptions are open")
	}
	if description == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "requirement description is required")
	}
	requirement := &models.Requirement{
		OfferingID:  offeringID,
		Type:        reqType,
		Description: description,
		Obligatory:  obligatory,
	}
	if err := s.requirements.CreateRequirement(ctx, requirement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create requirement")
	}
	return requirement, nil
}

// ListRequirements returns the offering's requirements.
func (s *OfferingService) ListRequirements(ctx context.Context, offeringID string) ([]models.Requirement, error) {
	requirements, err := s.requirements.ListByOffering(ctx, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requirements")
	}
	return requirements, nil
}

// RecordAttendance sets the offering-level attendance marker. Only while the
// offering is running; the marker gates finalization.
func (s *OfferingService) RecordAttendance(ctx context.Context, offeringID string) (*models.Offering, error) {
	offering, err := s.loadOffering(ctx, offeringID)
	if err != nil {
		return nil, err
	}
	if offering.State != models.StateEnCurso {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "attendance can only be recorded while the offering is running")
	}
	takenAt := time.Now().UTC()
	if err := s.offerings.RecordAttendance(ctx, offeringID, takenAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	offering.AttendanceTakenAt = &takenAt
	s.invalidateProjection(ctx, offeringID)
	return offering, nil
}

// RecordResults stores the final grade and attendance percentage for one
// enrollment of a running offering.
func (s *OfferingService) RecordResults(ctx context.Context, offeringID, enrollmentID string, req RecordResultsRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid results payload")
	}
	offering, err := s.loadOffering(ctx, offeringID)
	if err != nil {
		return err
	}
	if offering.State != models.StateEnCurso {
		return appErrors.Clone(appErrors.ErrStateConflict, "results can only be recorded while the offering is running")
	}
	detail, err := s.enrollments.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if detail.OfferingID != offeringID {
		return appErrors.Clone(appErrors.ErrValidation, "enrollment does not belong to this offering")
	}
	if err := s.enrollments.UpdateResults(ctx, enrollmentID, req.FinalGrade, req.AttendancePct); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record results")
	}
	s.invalidateProjection(ctx, offeringID)
	return nil
}

func (s *OfferingService) loadOffering(ctx context.Context, id string) (*models.Offering, error) {
	offering, err := s.offerings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	return offering, nil
}

func (s *OfferingService) invalidateProjection(ctx context.Context, offeringID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, projectionCachePattern(offeringID)); err != nil {
		s.logger.Warn("failed to invalidate projection cache", zap.String("offering_id", offeringID), zap.Error(err))
	}
}
