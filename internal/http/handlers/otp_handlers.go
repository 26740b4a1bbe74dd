package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/you/walletgate/domain"
)

// OTPHandlers exposes the OTP engine to authenticated users
type OTPHandlers struct {
	otpSvc   domain.OTPService
	policies domain.OTPPolicyRepository
}

// NewOTPHandlers creates new OTP handlers
func NewOTPHandlers(otpSvc domain.OTPService, policies domain.OTPPolicyRepository) *OTPHandlers {
	return &OTPHandlers{otpSvc: otpSvc, policies: policies}
}

// OTPRequest asks for a new code
type OTPRequest struct {
	OTPType string `json:"otp_type" binding:"required"`
	Channel string `json:"channel" binding:"required"`
}

// OTPVerifyRequest submits a code
type OTPVerifyRequest struct {
	OTPType string `json:"otp_type" binding:"required"`
	Code    string `json:"code" binding:"required"`
}

// OTPView is the caller-facing view of an OTP record. It never carries the
// code digest.
type OTPView struct {
	ID          string            `json:"id"`
	OTPType     domain.OTPType    `json:"otp_type"`
	Channel     domain.OTPChannel `json:"channel"`
	Status      domain.OTPStatus  `json:"status"`
	MaxAttempts int               `json:"max_attempts"`
	CreatedAt   time.Time         `json:"created_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
	VerifiedAt  *time.Time        `json:"verified_at,omitempty"`
}

func newOTPView(r *domain.OTPRecord) OTPView {
	return OTPView{
		ID:          r.ID,
		OTPType:     r.Type,
		Channel:     r.Channel,
		Status:      r.Status,
		MaxAttempts: r.MaxAttempts,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
		VerifiedAt:  r.VerifiedAt,
	}
}

// Request issues a code when the policy for the type and channel is enabled
func (h *OTPHandlers) Request(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	otpType, err := domain.ParseOTPType(req.OTPType)
	if err != nil {
		respondError(c, err)
		return
	}
	channel, err := domain.ParseOTPChannel(req.Channel)
	if err != nil {
		respondError(c, err)
		return
	}

	policy, err := h.policies.Get(c.Request.Context(), otpType, channel)
	if errors.Is(err, domain.ErrPolicyNotFound) || (err == nil && !policy.Enabled) {
		respondError(c, domain.ErrPolicyDisabled)
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	record, err := h.otpSvc.Request(c.Request.Context(), domain.SubjectForUser(userID), otpType, channel, *policy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": newOTPView(record)})
}

// Verify checks a code and returns a single-use verification token
func (h *OTPHandlers) Verify(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req OTPVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	otpType, err := domain.ParseOTPType(req.OTPType)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.otpSvc.Verify(c.Request.Context(), domain.SubjectForUser(userID), otpType, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"verification_token": token.Token,
		"otp_type":           token.Type,
		"expires_at":         token.ExpiresAt,
	}})
}

// History lists the caller's recent codes
func (h *OTPHandlers) History(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	records, err := h.otpSvc.History(c.Request.Context(), domain.SubjectForUser(userID))
	if err != nil {
		respondError(c, err)
		return
	}
	views := make([]OTPView, 0, len(records))
	for _, r := range records {
		views = append(views, newOTPView(r))
	}
	c.JSON(http.StatusOK, gin.H{"data": views})
}
