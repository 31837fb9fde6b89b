package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bienestar-dev/eventos-api/internal/models"
	"github.com/bienestar-dev/eventos-api/internal/service"
	appErrors "github.com/bienestar-dev/eventos-api/pkg/errors"
	"github.com/bienestar-dev/eventos-api/pkg/response"
)

// OfferingHandler exposes offering management, lifecycle and projection
// endpoints.
type OfferingHandler struct {
	offerings *service.OfferingService
	lifecycle *service.LifecycleService
}

// NewOfferingHandler constructs OfferingHandler.
func NewOfferingHandler(offerings *service.OfferingService, lifecycle *service.LifecycleService) *OfferingHandler {
	return &OfferingHandler{offerings: offerings, lifecycle: lifecycle}
}

// Create godoc
// @Summary Create an offering
// @Tags Offerings
// @Accept json
// @Produce json
// @Param payload body service.CreateOfferingRequest true "Offering payload"
// @Success 201 {object} response.Envelope
// @Router /offerings [post]
func (h *OfferingHandler) Create(c *gin.Context) {
	var req service.CreateOfferingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	offering, err := h.offerings.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, offering)
}

// Get godoc
// @Summary Get the offering projection for its current state
// @Tags Offerings
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id} [get]
func (h *OfferingHandler) Get(c *gin.Context) {
	view, err := h.lifecycle.Project(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// ListByEvent godoc
// @Summary List offerings of an event
// @Tags Offerings
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/offerings [get]
func (h *OfferingHandler) ListByEvent(c *gin.Context) {
	offerings, err := h.offerings.ListByEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offerings, nil)
}

type transitionRequest struct {
	Target string `json:"target" binding:"required"`
}

// Transition godoc
// @Summary Advance the offering lifecycle
// @Tags Offerings
// @Accept json
// @Produce json
// @Param id path string true "Offering ID"
// @Param payload body transitionRequest true "Target state"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/transition [post]
func (h *OfferingHandler) Transition(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	target := models.OfferingState(strings.ToUpper(req.Target))
	offering, err := h.lifecycle.Transition(c.Request.Context(), c.Param("id"), target)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offering, nil)
}

// Delete godoc
// @Summary Delete an offering while inscriptions are open
// @Tags Offerings
// @Produce json
// @Param id path string true "Offering ID"
// @Success 204
// @Router /offerings/{id} [delete]
func (h *OfferingHandler) Delete(c *gin.Context) {
	if err := h.lifecycle.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

type addBindingRequest struct {
	LevelID string `json:"level_id" binding:"required"`
}

// AddBinding godoc
// @Summary Admit an academic level into the offering
// @Tags Offerings
// @Accept json
// @Produce json
// @Param id path string true "Offering ID"
// @Param payload body addBindingRequest true "Binding payload"
// @Success 201 {object} response.Envelope
// @Router /offerings/{id}/bindings [post]
func (h *OfferingHandler) AddBinding(c *gin.Context) {
	var req addBindingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	binding, err := h.offerings.AddBinding(c.Request.Context(), c.Param("id"), req.LevelID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, binding)
}

// ListBindings godoc
// @Summary List the offering's level bindings
// @Tags Offerings
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/bindings [get]
func (h *OfferingHandler) ListBindings(c *gin.Context) {
	bindings, err := h.offerings.ListBindings(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bindings, nil)
}

// RemoveBinding godoc
// @Summary Remove a level binding
// @Tags Offerings
// @Produce json
// @Param id path string true "Offering ID"
// @Param bindingId path string true "Binding ID"
// @Success 204
// @Router /offerings/{id}/bindings/{bindingId} [delete]
func (h *OfferingHandler) RemoveBinding(c *gin.Context) {
	if err := h.offerings.RemoveBinding(c.Request.Context(), c.Param("bindingId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

type assignInstructorRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
	Role          string `json:"role"`
}

// AssignInstructor godoc
// @Summary Assign an instructor to the offering
// @Tags Offerings
// @Accept json
// @Produce json
// @Param id path string true "Offering ID"
// @Param payload body assignInstructorRequest true "Instructor payload"
// @Success 201 {object} response.Envelope
// @Router /offerings/{id}/instructors [post]
func (h *OfferingHandler) AssignInstructor(c *gin.Context) {
	var req assignInstructorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assignment, err := h.offerings.AssignInstructor(c.Request.Context(), c.Param("id"), req.ParticipantID, req.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

type addRequirementRequest struct {
	Type        string `json:"type"`
	Description string `json:"description" binding:"required"`
	Obligatory  bool   `json:"obligatory"`
}

// AddRequirement godoc
// @Summary Attach a requirement to the offering
// @Tags Offerings
// @Accept json
// @Produce json
// @Param id path string true "Offering ID"
// @Param payload body addRequirementRequest true "Requirement payload"
// @Success 201 {object} response.Envelope
// @Router /offerings/{id}/requirements [post]
func (h *OfferingHandler) AddRequirement(c *gin.Context) {
	var req addRequirementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	requirement, err := h.offerings.AddRequirement(c.Request.Context(), c.Param("id"), req.Type, req.Description, req.Obligatory)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, requirement)
}

// ListRequirements godoc
// @Summary List the offering's requirements
// @Tags Offerings
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/requirements [get]
func (h *OfferingHandler) ListRequirements(c *gin.Context) {
	requirements, err := h.offerings.ListRequirements(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requirements, nil)
}

// RecordAttendance godoc
// @Summary Record the offering-level attendance marker
// @Tags Offerings
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/attendance [post]
func (h *OfferingHandler) RecordAttendance(c *gin.Context) {
	offering, err := h.offerings.RecordAttendance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offering, nil)
}

// RecordResults godoc
// @Summary Record grade and attendance for one enrollment
// @Tags Offerings
// @Accept json
// @Produce json
// @Param id path string true "Offering ID"
// @Param enrollmentId path string true "Enrollment ID"
// @Param payload body service.RecordResultsRequest true "Results payload"
// @Success 204
// @Router /offerings/{id}/results/{enrollmentId} [put]
func (h *OfferingHandler) RecordResults(c *gin.Context) {
	var req service.RecordResultsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.offerings.RecordResults(c.Request.Context(), c.Param("id"), c.Param("enrollmentId"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
