package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/you/walletgate/domain"
)

const (
	defaultSuspiciousHours = 24
	maxSuspiciousHours     = 24 * 30
)

// AdminHandlers backs the admin console routes
type AdminHandlers struct {
	admin domain.AdminService
	clock domain.Clock
}

// NewAdminHandlers creates new admin handlers
func NewAdminHandlers(admin domain.AdminService, clock domain.Clock) *AdminHandlers {
	return &AdminHandlers{admin: admin, clock: clock}
}

// UpdateOTPPolicyRequest replaces the policy of one type and channel
type UpdateOTPPolicyRequest struct {
	Enabled         bool `json:"enabled"`
	CodeLength      int  `json:"code_length" binding:"required"`
	ExpiryMinutes   int  `json:"expiry_minutes" binding:"required"`
	MaxAttempts     int  `json:"max_attempts" binding:"required"`
	CooldownMinutes int  `json:"cooldown_minutes"`
}

// UnblockUser clears a PIN lockout
func (h *AdminHandlers) UnblockUser(c *gin.Context) {
	userID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	if err := h.admin.UnblockUser(c.Request.Context(), actor(c), userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"message": "User unblocked", "user_id": userID}})
}

// ListOTPPolicies returns every configured policy
func (h *AdminHandlers) ListOTPPolicies(c *gin.Context) {
	policies, err := h.admin.ListOTPPolicies(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": policies})
}

// GetOTPPolicy returns the policy of one type and channel
func (h *AdminHandlers) GetOTPPolicy(c *gin.Context) {
	otpType, channel, ok := policyKey(c)
	if !ok {
		return
	}
	policy, err := h.admin.GetOTPPolicy(c.Request.Context(), otpType, channel)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": policy})
}

// UpdateOTPPolicy validates and stores a policy
func (h *AdminHandlers) UpdateOTPPolicy(c *gin.Context) {
	otpType, channel, ok := policyKey(c)
	if !ok {
		return
	}
	var req UpdateOTPPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	policy := &domain.OTPPolicy{
		Type:            otpType,
		Channel:         channel,
		Enabled:         req.Enabled,
		CodeLength:      req.CodeLength,
		ExpiryMinutes:   req.ExpiryMinutes,
		MaxAttempts:     req.MaxAttempts,
		CooldownMinutes: req.CooldownMinutes,
	}
	if err := h.admin.UpdateOTPPolicy(c.Request.Context(), actor(c), policy); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": policy})
}

// SuspiciousActivity lists identities the scorer flags over the last hours
func (h *AdminHandlers) SuspiciousActivity(c *gin.Context) {
	hours, ok := queryInt(c, "hours", defaultSuspiciousHours)
	if !ok {
		return
	}
	if hours == 0 || hours > maxSuspiciousHours {
		hours = defaultSuspiciousHours
	}
	since := h.clock.Now().Add(-time.Duration(hours) * time.Hour)

	activity, err := h.admin.ListSuspiciousActivity(c.Request.Context(), since)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": activity})
}

// LoginLogs pages through the audit log, newest first
func (h *AdminHandlers) LoginLogs(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}

	filter := domain.AuditFilter{
		Identity:  c.Query("identity"),
		EventType: domain.AuditEventType(c.Query("event_type")),
		Limit:     limit,
		Offset:    offset,
	}
	if raw := c.Query("success"); raw != "" {
		success, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid success"})
			return
		}
		filter.Success = &success
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since, expected RFC3339"})
			return
		}
		filter.Since = since
	}

	events, total, err := h.admin.ListLoginLogs(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events, "total": total, "limit": limit, "offset": offset})
}

// LoginStatistics summarizes activity of one identity, or all of them
func (h *AdminHandlers) LoginStatistics(c *gin.Context) {
	days, ok := queryInt(c, "days", 0)
	if !ok {
		return
	}
	stats, err := h.admin.LoginStatistics(c.Request.Context(), c.Query("identity"), days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func policyKey(c *gin.Context) (domain.OTPType, domain.OTPChannel, bool) {
	otpType, err := domain.ParseOTPType(c.Param("type"))
	if err != nil {
		respondError(c, err)
		return 0, 0, false
	}
	channel, err := domain.ParseOTPChannel(c.Param("channel"))
	if err != nil {
		respondError(c, err)
		return 0, 0, false
	}
	return otpType, channel, true
}
