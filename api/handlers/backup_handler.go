package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voucher-node/internal/voucher"
)

// BackupRequest carries the wallet set to snapshot.
type BackupRequest struct {
	Vouchers []EnvelopeDTO `json:"vouchers" binding:"required"`
}

// Backup encrypts the submitted wallet set under the node key and publishes
// it as one opaque record.
func (h *Handler) Backup(c *gin.Context) {
	var req BackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	envs := make([]*voucher.Envelope, 0, len(req.Vouchers))
	for i, dto := range req.Vouchers {
		env, err := fromEnvelopeDTO(dto)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "voucher": i})
			return
		}
		envs = append(envs, env)
	}
	if err := h.svc.Backup(c.Request.Context(), envs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"backed_up": len(envs)})
}

// Restore merges every recoverable backup into one wallet view.
func (h *Handler) Restore(c *gin.Context) {
	envs, err := h.svc.Restore(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]EnvelopeDTO, 0, len(envs))
	for _, env := range envs {
		out = append(out, toEnvelopeDTO(env))
	}
	c.JSON(http.StatusOK, gin.H{"vouchers": out})
}

// Exists reports whether any backups are addressed to the node key, without
// decrypting anything.
func (h *Handler) Exists(c *gin.Context) {
	exists, err := h.svc.Exists(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": exists})
}
