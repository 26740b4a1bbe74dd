package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/you/walletgate/domain"
)

// TransferHandlers exposes the authorization orchestrator
type TransferHandlers struct {
	authz domain.AuthorizationService
}

// NewTransferHandlers creates new transfer handlers
func NewTransferHandlers(authz domain.AuthorizationService) *TransferHandlers {
	return &TransferHandlers{authz: authz}
}

// AuthorizeRequest is a transfer awaiting approval. Amount is in minor units.
type AuthorizeRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency" binding:"required"`
	Chain       string `json:"chain"`
	Destination string `json:"destination" binding:"required"`
	PIN         string `json:"pin" binding:"required"`
	OTPToken    string `json:"otp_token"`
}

// Authorize runs the gate for one transfer. Denials carry the decision so the
// client can show the risk annotation.
func (h *TransferHandlers) Authorize(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req AuthorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	intent := &domain.TransferIntent{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Chain:       req.Chain,
		Destination: req.Destination,
	}
	decision, err := h.authz.Authorize(c.Request.Context(), userID, intent, req.PIN, req.OTPToken)
	if err != nil {
		body := errorBody(c, err)
		if decision != nil {
			body["decision"] = decision
		}
		c.JSON(statusFor(err), body)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": decision})
}
