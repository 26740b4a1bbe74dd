package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/you/walletgate/domain"
)

// PINHandlers exposes the PIN state machine and two-factor enrollment
type PINHandlers struct {
	pinSvc domain.PINService
}

// NewPINHandlers creates new PIN handlers
func NewPINHandlers(pinSvc domain.PINService) *PINHandlers {
	return &PINHandlers{pinSvc: pinSvc}
}

// SetPINRequest sets or changes the PIN. The token comes from a verified
// pin_setup OTP.
type SetPINRequest struct {
	PIN               string `json:"pin" binding:"required"`
	VerificationToken string `json:"verification_token" binding:"required"`
}

// TwoFactorVerifyRequest submits an authenticator code
type TwoFactorVerifyRequest struct {
	Code string `json:"code" binding:"required"`
}

// Set handles PIN setup
func (h *PINHandlers) Set(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req SetPINRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.pinSvc.Set(c.Request.Context(), userID, req.PIN, req.VerificationToken); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"message": "PIN set successfully"}})
}

// Status reports whether a PIN is set and whether it is blocked
func (h *PINHandlers) Status(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	status, err := h.pinSvc.Status(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": status})
}

// EnrollTwoFactor generates a TOTP secret for the caller
func (h *PINHandlers) EnrollTwoFactor(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	enrollment, err := h.pinSvc.EnrollTwoFactor(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": enrollment})
}

// VerifyTwoFactor checks an authenticator code
func (h *PINHandlers) VerifyTwoFactor(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req TwoFactorVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.pinSvc.VerifyTwoFactor(c.Request.Context(), userID, req.Code); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"message": "Two-factor code verified"}})
}
