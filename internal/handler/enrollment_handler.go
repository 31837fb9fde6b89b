package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bienestar-dev/eventos-api/internal/service"
	appErrors "github.com/bienestar-dev/eventos-api/pkg/errors"
	"github.com/bienestar-dev/eventos-api/pkg/response"
)

// EnrollmentHandler exposes eligibility and enrollment endpoints.
type EnrollmentHandler struct {
	eligibility *service.EligibilityService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(eligibility *service.EligibilityService) *EnrollmentHandler {
	return &EnrollmentHandler{eligibility: eligibility}
}

// Evaluate godoc
// @Summary Evaluate enrollment eligibility without enrolling
// @Tags Enrollments
// @Produce json
// @Param bindingId path string true "Level binding ID"
// @Success 200 {object} response.Envelope
// @Router /bindings/{bindingId}/eligibility [get]
func (h *EnrollmentHandler) Evaluate(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	decision, err := h.eligibility.Evaluate(c.Request.Context(), actor, c.Param("bindingId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decision, nil)
}

type enrollRequest struct {
	StudentRecordID *string `json:"student_record_id"`
}

// Enroll godoc
// @Summary Enroll the caller against a level binding
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param bindingId path string true "Level binding ID"
// @Param payload body enrollRequest false "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bindings/{bindingId}/enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req enrollRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	decision, detail, err := h.eligibility.Enroll(c.Request.Context(), actor, c.Param("bindingId"), req.StudentRecordID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !decision.Eligible {
		response.JSON(c, http.StatusConflict, decision, nil)
		return
	}
	response.JSON(c, http.StatusCreated, gin.H{"decision": decision, "enrollment": detail}, nil)
}

// Cancel godoc
// @Summary Cancel an enrollment while inscriptions are open
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 204
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Cancel(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.eligibility.Cancel(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
