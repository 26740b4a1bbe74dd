package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/you/walletgate/domain"
)

// EventHandlers lets the upstream login service write to the audit log
type EventHandlers struct {
	audit domain.AuditLogger
}

// NewEventHandlers creates new event handlers
func NewEventHandlers(audit domain.AuditLogger) *EventHandlers {
	return &EventHandlers{audit: audit}
}

// LoginEventRequest describes one login attempt. Client details come from
// the request headers.
type LoginEventRequest struct {
	Identity string `json:"identity" binding:"required"`
	Success  bool   `json:"success"`
	Reason   string `json:"reason"`
}

// RecordLogin appends a login attempt to the audit log
func (h *EventHandlers) RecordLogin(c *gin.Context) {
	var req LoginEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var attemptErr error
	if !req.Success {
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			reason = "login_failed"
		}
		attemptErr = errors.New(reason)
	}
	if err := h.audit.LogLogin(c.Request.Context(), strings.TrimSpace(req.Identity), attemptErr); err != nil {
		respondError(c, domain.InternalError(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": gin.H{"recorded": true}})
}
