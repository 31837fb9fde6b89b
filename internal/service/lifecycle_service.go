package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bienestar-dev/eventos-api/internal/dto"
	"github.com/bienestar-dev/eventos-api/internal/models"
	appErrors "github.com/bienestar-dev/eventos-api/pkg/errors"
)

type lifecycleOfferingRepo interface {
	FindByID(ctx context.Context, id string) (*models.Offering, error)
	UpdateState(ctx context.Context, id string, from, to models.OfferingState) error
	Delete(ctx context.Context, id string) error
}

type lifecycleEnrollmentRepo interface {
	CountByOffering(ctx context.Context, offeringID string) (int, error)
	ListDetailByOffering(ctx context.Context, offeringID string) ([]models.EnrollmentDetail, error)
}

type instructorLister interface {
	ListByOffering(ctx context.Context, offeringID string) ([]dto.InstructorInfo, error)
}

// LifecycleService owns the offering state machine and the per-state read
// projections. Transitions only move forward and each one is guarded.
type LifecycleService struct {
	offerings   lifecycleOfferingRepo
	enrollments lifecycleEnrollmentRepo
	instructors instructorLister
	cache       *CacheService
	metrics     *MetricsService
	notifier    Notifier
	logger      *zap.Logger
}

// NewLifecycleService constructs the service.
func NewLifecycleService(
	offerings lifecycleOfferingRepo,
	enrollments lifecycleEnrollmentRepo,
	instructors instructorLister,
	cache *CacheService,
	metrics *MetricsService,
	notifier Notifier,
	logger *zap.Logger,
) *LifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{
		offerings:   offerings,
		enrollments: enrollments,
		instructors: instructors,
		cache:       cache,
		metrics:     metrics,
		notifier:    notifier,
		logger:      logger,
	}
}

func projectionCacheKey(offeringID string, state models.OfferingState) string {
	return fmt.Sprintf("offering:projection:%s:%s", offeringID, state)
}

func projectionCachePattern(offeringID string) string {
	return fmt.Sprintf("offering:projection:%s:*", offeringID)
}

// CanTransition checks whether the offering may move to the target state.
func (s *LifecycleService) CanTransition(ctx context.Context, offeringID string, target models.OfferingState) (models.Decision, error) {
	offering, err := s.loadOffering(ctx, offeringID)
	if err != nil {
		return models.Decision{}, err
	}
	count, err := s.enrollments.CountByOffering(ctx, offeringID)
	if err != nil {
		return models.Decision{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	return canTransition(offering, target, count), nil
}

// canTransition is the pure transition guard. Forward only, no skips; starting
// needs at least one enrollment and finalizing needs the attendance marker.
func canTransition(offering *models.Offering, target models.OfferingState, enrollmentCount int) models.Decision {
	if !target.Valid() || offering.State.Next() != target {
		return models.Deny(models.ReasonInvalidTransition)
	}
	switch target {
	case models.StateEnCurso:
		if enrollmentCount == 0 {
			return models.Deny(models.ReasonNoEnrollments)
		}
	case models.StateFinalizado:
		if !offering.AttendanceRecorded() {
			return models.Deny(models.ReasonAttendanceMissing)
		}
	}
	return models.Allow()
}

// Transition advances the offering to the target state. The update pins the
// expected current state, so a caller that lost a race gets a conflict instead
// of silently re-applying the transition.
func (s *LifecycleService) Transition(ctx context.Context, offeringID string, target models.OfferingState) (*models.Offering, error) {
	offering, err := s.loadOffering(ctx, offeringID)
	if err != nil {
		return nil, err
	}
	count, err := s.enrollments.CountByOffering(ctx, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	if decision := canTransition(offering, target, count); !decision.Eligible {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, decision.Message)
	}

	if err := s.offerings.UpdateState(ctx, offeringID, offering.State, target); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrStateConflict, "offering state changed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update offering state")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, projectionCachePattern(offeringID)); err != nil {
			s.logger.Warn("failed to invalidate projection cache", zap.String("offering_id", offeringID), zap.Error(err))
		}
	}
	if s.metrics != nil {
		s.metrics.RecordTransition(target)
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, Notification{
			Type:       NotifyOfferingTransition,
			OfferingID: offeringID,
			Data:       map[string]interface{}{"from": offering.State, "to": target},
		})
	}

	offering.State = target
	return offering, nil
}

// Project returns the read view matching the offering's current state. The
// shape of the response is fixed per state; fields that do not exist yet in
// the lifecycle are absent from the type, not merely zeroed.
func (s *LifecycleService) Project(ctx context.Context, offeringID string) (interface{}, error) {
	offering, err := s.loadOffering(ctx, offeringID)
	if err != nil {
		return nil, err
	}
	key := projectionCacheKey(offeringID, offering.State)

	switch offering.State {
	case models.StateInscripciones:
		var cached dto.OfferingInscriptionView
		if hit, _ := s.cacheGet(ctx, key, &cached); hit {
			return &cached, nil
		}
		instructors, err := s.listInstructors(ctx, offeringID)
		if err != nil {
			return nil, err
		}
		view := projectInscription(offering, instructors)
		s.cacheSet(ctx, key, view)
		return view, nil

	case models.StateEnCurso:
		var cached dto.OfferingInProgressView
		if hit, _ := s.cacheGet(ctx, key, &cached); hit {
			return &cached, nil
		}
		instructors, roster, err := s.loadRoster(ctx, offeringID)
		if err != nil {
			return nil, err
		}
		view := projectInProgress(offering, instructors, roster)
		s.cacheSet(ctx, key, view)
		return view, nil

	case models.StateFinalizado:
		var cached dto.OfferingFinalView
		if hit, _ := s.cacheGet(ctx, key, &cached); hit {
			return &cached, nil
		}
		instructors, roster, err := s.loadRoster(ctx, offeringID)
		if err != nil {
			return nil, err
		}
		view := projectFinal(offering, instructors, roster)
		s.cacheSet(ctx, key, view)
		return view, nil
	}
	return nil, appErrors.Clone(appErrors.ErrInternal, "offering has unknown state")
}

// Delete removes an offering, allowed only while inscriptions are open.
func (s *LifecycleService) Delete(ctx context.Context, offeringID string) error {
	offering, err := s.loadOffering(ctx, offeringID)
	if err != nil {
		return err
	}
	if offering.State != models.StateInscripciones {
		return appErrors.Clone(appErrors.ErrStateConflict, "offering can only be deleted while inscriptions are open")
	}
	if err := s.offerings.Delete(ctx, offeringID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrStateConflict, "offering state changed concurrently")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete offering")
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, projectionCachePattern(offeringID)); err != nil {
			s.logger.Warn("failed to invalidate projection cache", zap.String("offering_id", offeringID), zap.Error(err))
		}
	}
	return nil
}

func (s *LifecycleService) loadOffering(ctx context.Context, id string) (*models.Offering, error) {
	offering, err := s.offerings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	return offering, nil
}

func (s *LifecycleService) listInstructors(ctx context.Context, offeringID string) ([]dto.InstructorInfo, error) {
	instructors, err := s.instructors.ListByOffering(ctx, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructors")
	}
	return instructors, nil
}

func (s *LifecycleService) loadRoster(ctx context.Context, offeringID string) ([]dto.InstructorInfo, []models.EnrollmentDetail, error) {
	instructors, err := s.listInstructors(ctx, offeringID)
	if err != nil {
		return nil, nil, err
	}
	roster, err := s.enrollments.ListDetailByOffering(ctx, offeringID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return instructors, roster, nil
}

func (s *LifecycleService) cacheGet(ctx context.Context, key string, dest interface{}) (bool, error) {
	if s.cache == nil {
		return false, nil
	}
	return s.cache.Get(ctx, key, dest)
}

func (s *LifecycleService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, 0); err != nil {
		s.logger.Warn("failed to cache projection", zap.String("key", key), zap.Error(err))
	}
}

func baseView(offering *models.Offering, instructors []dto.InstructorInfo) dto.OfferingInscriptionView {
	if instructors == nil {
		instructors = []dto.InstructorInfo{}
	}
	return dto.OfferingInscriptionView{
		ID:            offering.ID,
		EventID:       offering.EventID,
		Name:          offering.Name,
		State:         offering.State,
		Capacity:      offering.Capacity,
		DurationHours: offering.DurationHours,
		Area:          offering.Area,
		Category:      offering.Category,
		OfferingType:  offering.OfferingType,
		Schedule:      offering.Schedule,
		Instructors:   instructors,
	}
}

func projectInscription(offering *models.Offering, instructors []dto.InstructorInfo) *dto.OfferingInscriptionView {
	view := baseView(offering, instructors)
	return &view
}

func projectInProgress(offering *models.Offering, instructors []dto.InstructorInfo, roster []models.EnrollmentDetail) *dto.OfferingInProgressView {
	entries := make([]dto.RosterEntry, 0, len(roster))
	for _, e := range roster {
		entries = append(entries, rosterEntry(e))
	}
	return &dto.OfferingInProgressView{
		OfferingInscriptionView: baseView(offering, instructors),
		AttendanceTakenAt:       offering.AttendanceTakenAt,
		Roster:                  entries,
	}
}

func projectFinal(offering *models.Offering, instructors []dto.InstructorInfo, roster []models.EnrollmentDetail) *dto.OfferingFinalView {
	entries := make([]dto.FinalRosterEntry, 0, len(roster))
	for _, e := range roster {
		entries = append(entries, dto.FinalRosterEntry{
			RosterEntry:   rosterEntry(e),
			FinalGrade:    e.FinalGrade,
			AttendancePct: e.AttendancePct,
			Result:        passResult(e.FinalGrade, offering.MinPassingGrade),
		})
	}
	return &dto.OfferingFinalView{
		OfferingInscriptionView: baseView(offering, instructors),
		AttendanceTakenAt:       offering.AttendanceTakenAt,
		MinPassingGrade:         offering.MinPassingGrade,
		CertificateEligible:     offering.CertificateEligible,
		Approved:                offering.Approved,
		Roster:                  entries,
	}
}

func rosterEntry(e models.EnrollmentDetail) dto.RosterEntry {
	return dto.RosterEntry{
		EnrollmentID:    e.ID,
		ParticipantID:   e.ParticipantID,
		ParticipantName: e.ParticipantName,
		LevelName:       e.LevelName,
		EnrolledAt:      e.CreatedAt,
	}
}

// passResult computes the outcome once the offering is finalized. Without a
// grade or a configured minimum the result stays pending.
func passResult(grade, minimum *float64) models.PassResult {
	if grade == nil || minimum == nil {
		return models.ResultPending
	}
	if *grade >= *minimum {
		return models.ResultPassed
	}
	return models.ResultFailed
}
