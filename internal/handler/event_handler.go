package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bienestar-dev/eventos-api/internal/models"
	"github.com/bienestar-dev/eventos-api/internal/service"
	appErrors "github.com/bienestar-dev/eventos-api/pkg/errors"
	"github.com/bienestar-dev/eventos-api/pkg/response"
)

// EventHandler exposes event management and favorites endpoints.
type EventHandler struct {
	events    *service.EventService
	favorites *service.FavoritesService
}

// NewEventHandler constructs EventHandler.
func NewEventHandler(events *service.EventService, favorites *service.FavoritesService) *EventHandler {
	return &EventHandler{events: events, favorites: favorites}
}

// List godoc
// @Summary List events
// @Tags Events
// @Produce json
// @Param audience query string false "Filter by audience"
// @Param costType query string false "Filter by cost type"
// @Param state query string false "Filter by state"
// @Param favorite query bool false "Only favorites"
// @Param search query string false "Title search"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	var filter models.EventFilter
	filter.Audience = models.EventAudience(strings.ToUpper(c.Query("audience")))
	filter.CostType = models.EventCostType(strings.ToUpper(c.Query("costType")))
	filter.State = models.EventState(strings.ToUpper(c.Query("state")))
	if raw := c.Query("favorite"); raw != "" {
		if favorite, err := strconv.ParseBool(raw); err == nil {
			filter.Favorite = &favorite
		}
	}
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortOrder = c.Query("order")

	events, pagination, err := h.events.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, pagination)
}

// Get godoc
// @Summary Get an event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Create godoc
// @Summary Create an event
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body service.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	var req service.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	event, err := h.events.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Update godoc
// @Summary Update an event
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body service.UpdateEventRequest true "Event payload"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [put]
func (h *EventHandler) Update(c *gin.Context) {
	var req service.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	event, err := h.events.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Publish godoc
// @Summary Publish a draft event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/publish [post]
func (h *EventHandler) Publish(c *gin.Context) {
	event, err := h.events.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Archive godoc
// @Summary Archive a published event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/archive [post]
func (h *EventHandler) Archive(c *gin.Context) {
	event, err := h.events.Archive(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

type assignResponsibleRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
}

// AssignResponsible godoc
// @Summary Assign the responsible participant for an event
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body assignResponsibleRequest true "Responsible payload"
// @Success 204
// @Router /events/{id}/responsible [put]
func (h *EventHandler) AssignResponsible(c *gin.Context) {
	var req assignResponsibleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.events.AssignResponsible(c.Request.Context(), c.Param("id"), req.ParticipantID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete a draft event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 204
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	if err := h.events.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

type setFavoriteRequest struct {
	Favorite bool `json:"favorite"`
}

// SetFavorite godoc
// @Summary Mark or unmark an event as a favorite
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body setFavoriteRequest true "Favorite payload"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/favorite [put]
func (h *EventHandler) SetFavorite(c *gin.Context) {
	var req setFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	decision, err := h.favorites.SetFavorite(c.Request.Context(), c.Param("id"), req.Favorite)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if !decision.Eligible {
		status = http.StatusConflict
	}
	response.JSON(c, status, decision, nil)
}
