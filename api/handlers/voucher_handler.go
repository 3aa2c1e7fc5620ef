package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"voucher-node/internal/service"
	"voucher-node/internal/voucher"
)

// Handler exposes the service operations over HTTP.
type Handler struct {
	svc *service.Service
}

// New creates the handler set for a service instance.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// IssueRequest carries the issuer-supplied fields of a new voucher.
type IssueRequest struct {
	ID        string                  `json:"id"`
	Unit      string                  `json:"unit"`
	FaceValue uint64                  `json:"faceValue"`
	Expiry    int64                   `json:"expiry"`
	Memo      string                  `json:"memo"`
	Backing   string                  `json:"backing"`
	Ratio     float64                 `json:"ratio"`
	Decimals  uint32                  `json:"decimals"`
	Metadata  []voucher.MetadataEntry `json:"metadata"`
}

// Issue signs and publishes a new voucher.
func (h *Handler) Issue(c *gin.Context) {
	var req IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	env, err := h.svc.Issue(c.Request.Context(), service.IssueParams{
		ID:        req.ID,
		Unit:      req.Unit,
		FaceValue: req.FaceValue,
		Expiry:    req.Expiry,
		Memo:      req.Memo,
		Backing:   voucher.Strategy(req.Backing),
		Ratio:     req.Ratio,
		Decimals:  req.Decimals,
		Metadata:  normalizeMetadata(req.Metadata),
	})
	if err != nil {
		if env != nil {
			// Signed but not replicated; hand the envelope back anyway.
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   err.Error(),
				"voucher": toEnvelopeDTO(env),
			})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toEnvelopeDTO(env))
}

// QueryStatus resolves a voucher's current status.
func (h *Handler) QueryStatus(c *gin.Context) {
	rec, err := h.svc.QueryStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    rec.Status,
		"updatedAt": rec.UpdatedAt,
		"voucher":   toEnvelopeDTO(rec.Envelope),
	})
}

// UpdateStatusRequest names the requested target state.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus transitions a voucher through the state machine.
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), voucher.Status(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    rec.Status,
		"updatedAt": rec.UpdatedAt,
	})
}

// Validate runs the full rule set against a submitted envelope and returns
// every violation at once.
func (h *Handler) Validate(c *gin.Context) {
	var dto EnvelopeDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	env, err := fromEnvelopeDTO(dto)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "errors": []string{err.Error()}})
		return
	}
	res := h.svc.Validate(env)
	c.JSON(http.StatusOK, res)
}

// respondError maps the service error taxonomy onto HTTP statuses: structural
// rejections 422, unknown vouchers 404, forbidden transitions 409, transport
// trouble 502.
func respondError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "reasons": verr.Reasons})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
