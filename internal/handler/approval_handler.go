package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bienestar-dev/eventos-api/internal/service"
	appErrors "github.com/bienestar-dev/eventos-api/pkg/errors"
	"github.com/bienestar-dev/eventos-api/pkg/response"
)

// ApprovalHandler exposes the requirement and payment approval tracks plus
// certificate issuance.
type ApprovalHandler struct {
	approvals    *service.ApprovalService
	certificates *service.CertificateService
}

// NewApprovalHandler constructs ApprovalHandler.
func NewApprovalHandler(approvals *service.ApprovalService, certificates *service.CertificateService) *ApprovalHandler {
	return &ApprovalHandler{approvals: approvals, certificates: certificates}
}

type submitRequirementRequest struct {
	RequirementID string `json:"requirement_id" binding:"required"`
	Value         string `json:"value" binding:"required"`
}

// SubmitRequirement godoc
// @Summary Submit a requirement value for an enrollment
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body submitRequirementRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments/{id}/submissions [post]
func (h *ApprovalHandler) SubmitRequirement(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req submitRequirementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	sub, err := h.approvals.SubmitRequirement(c.Request.Context(), actor, c.Param("id"), req.RequirementID, req.Value)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sub)
}

// Completion godoc
// @Summary Check whether an enrollment satisfied all obligatory requirements
// @Tags Approvals
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/completion [get]
func (h *ApprovalHandler) Completion(c *gin.Context) {
	complete, missing, err := h.approvals.IsComplete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"complete": complete, "missing": missing}, nil)
}

type reviewRequest struct {
	Comment string `json:"comment"`
}

// ApproveSubmission godoc
// @Summary Approve a requirement submission
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body reviewRequest false "Review payload"
// @Success 204
// @Router /submissions/{id}/approve [post]
func (h *ApprovalHandler) ApproveSubmission(c *gin.Context) {
	h.reviewSubmission(c, true)
}

// RejectSubmission godoc
// @Summary Reject a requirement submission
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body reviewRequest false "Review payload"
// @Success 204
// @Router /submissions/{id}/reject [post]
func (h *ApprovalHandler) RejectSubmission(c *gin.Context) {
	h.reviewSubmission(c, false)
}

func (h *ApprovalHandler) reviewSubmission(c *gin.Context, approve bool) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req reviewRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	var err error
	if approve {
		err = h.approvals.ApproveSubmission(c.Request.Context(), actor, c.Param("id"), req.Comment)
	} else {
		err = h.approvals.RejectSubmission(c.Request.Context(), actor, c.Param("id"), req.Comment)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RegisterPayment godoc
// @Summary Register a payment with optional evidence file
// @Tags Approvals
// @Accept mpfd
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param amount formData number true "Amount"
// @Param method formData string true "Payment method"
// @Param evidence formData file false "Evidence file"
// @Success 201 {object} response.Envelope
// @Router /enrollments/{id}/payments [post]
func (h *ApprovalHandler) RegisterPayment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var form struct {
		Amount float64 `form:"amount" binding:"required"`
		Method string  `form:"method" binding:"required"`
	}
	if err := c.ShouldBind(&form); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req := service.RegisterPaymentRequest{Amount: form.Amount, Method: form.Method}

	var payment interface{}
	fileHeader, err := c.FormFile("evidence")
	if err == nil && fileHeader != nil {
		file, err := fileHeader.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read evidence file"))
			return
		}
		defer file.Close() //nolint:errcheck
		payment, err = h.approvals.RegisterPayment(c.Request.Context(), actor, c.Param("id"), req, file, fileHeader.Filename)
		if err != nil {
			response.Error(c, err)
			return
		}
	} else {
		payment, err = h.approvals.RegisterPayment(c.Request.Context(), actor, c.Param("id"), req, nil, "")
		if err != nil {
			response.Error(c, err)
			return
		}
	}
	response.Created(c, payment)
}

// ApprovePayment godoc
// @Summary Approve a payment
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body reviewRequest false "Review payload"
// @Success 204
// @Router /payments/{id}/approve [post]
func (h *ApprovalHandler) ApprovePayment(c *gin.Context) {
	h.reviewPayment(c, true)
}

// RejectPayment godoc
// @Summary Reject a payment
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body reviewRequest false "Review payload"
// @Success 204
// @Router /payments/{id}/reject [post]
func (h *ApprovalHandler) RejectPayment(c *gin.Context) {
	h.reviewPayment(c, false)
}

func (h *ApprovalHandler) reviewPayment(c *gin.Context, approve bool) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req reviewRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	var err error
	if approve {
		err = h.approvals.ApprovePayment(c.Request.Context(), actor, c.Param("id"), req.Comment)
	} else {
		err = h.approvals.RejectPayment(c.Request.Context(), actor, c.Param("id"), req.Comment)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// PendingDocuments godoc
// @Summary List the merged reviewer queue of pending submissions and payments
// @Tags Approvals
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /approvals/pending [get]
func (h *ApprovalHandler) PendingDocuments(c *gin.Context) {
	queue, err := h.approvals.PendingDocuments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, queue, nil)
}

// IssueCertificate godoc
// @Summary Issue a completion certificate for an enrollment
// @Tags Certificates
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 201 {object} response.Envelope
// @Router /enrollments/{id}/certificate [post]
func (h *ApprovalHandler) IssueCertificate(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	issued, err := h.certificates.Issue(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, issued)
}

// DownloadCertificate godoc
// @Summary Download a certificate via its signed token
// @Tags Certificates
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200
// @Router /certificates/download [get]
func (h *ApprovalHandler) DownloadCertificate(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	path, err := h.certificates.Resolve(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Type", "application/pdf")
	c.File(path)
}
