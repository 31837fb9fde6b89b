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

type eventRepo interface {
	Create(ctx context.Context, event *models.Event) error
	FindByID(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error)
	Update(ctx context.Context, event *models.Event) error
	SetState(ctx context.Context, id string, state models.EventState) error
	SetResponsible(ctx context.Context, id, participantID string) error
	Delete(ctx context.Context, id string) error
}

type participantReader interface {
	FindByID(ctx context.Context, id string) (*models.Participant, error)
}

// CreateEventRequest describes the event creation payload.
type CreateEventRequest struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	Audience    string     `json:"audience" validate:"required,oneof=GENERAL STUDENTS ADMINISTRATIVE"`
	CostType    string     `json:"cost_type" validate:"required,oneof=FREE PAID"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

// UpdateEventRequest describes the mutable event fields.
type UpdateEventRequest struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	Audience    string     `json:"audience" validate:"required,oneof=GENERAL STUDENTS ADMINISTRATIVE"`
	CostType    string     `json:"cost_type" validate:"required,oneof=FREE PAID"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

// EventService manages events and their publication lifecycle.
type EventService struct {
	events       eventRepo
	participants participantReader
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewEventService constructs the service.
func NewEventService(events eventRepo, participants participantReader, validate *validator.Validate, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{events: events, participants: participants, validator: validate, logger: logger}
}

// Create registers a new event in DRAFT state.
func (s *EventService) Create(ctx context.Context, req CreateEventRequest) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
	}
	event := &models.Event{
		Title:       req.Title,
		Description: req.Description,
		Audience:    models.EventAudience(req.Audience),
		CostType:    models.EventCostType(req.CostType),
		State:       models.EventStateDraft,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	return event, nil
}

// Get returns an event by ID.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	return s.loadEvent(ctx, id)
}

// List returns events matching the filter with pagination metadata.
func (s *EventService) List(ctx context.Context, filter models.EventFilter) ([]models.Event, *models.Pagination, error) {
	events, total, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return events, pagination, nil
}

// Update persists the mutable fields of an event.
func (s *EventService) Update(ctx context.Context, id string, req UpdateEventRequest) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
	}
	event, err := s.loadEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	event.Title = req.Title
	event.Description = req.Description
	event.Audience = models.EventAudience(req.Audience)
	event.CostType = models.EventCostType(req.CostType)
	event.StartDate = req.StartDate
	event.EndDate = req.EndDate
	if err := s.events.Update(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}
	return event, nil
}

// Publish makes a draft event visible for enrollment.
func (s *EventService) Publish(ctx context.Context, id string) (*models.Event, error) {
	return s.setState(ctx, id, models.EventStateDraft, models.EventStatePublished)
}

// Archive retires a published event.
func (s *EventService) Archive(ctx context.Context, id string) (*models.Event, error) {
	return s.setState(ctx, id, models.EventStatePublished, models.EventStateArchived)
}

func (s *EventService) setState(ctx context.Context, id string, from, to models.EventState) (*models.Event, error) {
	event, err := s.loadEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.State != from {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "event is not in a state that allows this change")
	}
	if err := s.events.SetState(ctx, id, to); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change event state")
	}
	event.State = to
	return event, nil
}

// AssignResponsible sets the participant who owns the event.
func (s *EventService) AssignResponsible(ctx context.Context, id, participantID string) error {
	if _, err := s.loadEvent(ctx, id); err != nil {
		return err
	}
	if _, err := s.participants.FindByID(ctx, participantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "participant not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant")
	}
	if err := s.events.SetResponsible(ctx, id, participantID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign responsible")
	}
	return nil
}

// Delete removes a draft event. Published events must be archived instead.
func (s *EventService) Delete(ctx context.Context, id string) error {
	event, err := s.loadEvent(ctx, id)
	if err != nil {
		return err
	}
	if event.State != models.EventStateDraft {
		return appErrors.Clone(appErrors.ErrStateConflict, "only draft events can be deleted")
	}
	if err := s.events.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}
	return nil
}

func (s *EventService) loadEvent(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.events.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return event, nil
}
