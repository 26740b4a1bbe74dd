package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/you/walletgate/domain"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"rate limited", domain.NewGateError(domain.ErrRateLimited, "otp_cooldown"), http.StatusTooManyRequests},
		{"expired", domain.NewGateError(domain.ErrOTPExpired, "otp_expired"), http.StatusGone},
		{"exhausted", domain.NewGateError(domain.ErrOTPExhausted, "otp_exhausted"), http.StatusGone},
		{"invalid code", domain.NewGateError(domain.ErrOTPInvalid, "invalid_code"), http.StatusUnauthorized},
		{"invalid pin", domain.NewGateError(domain.ErrInvalidPIN, "invalid_pin"), http.StatusUnauthorized},
		{"unauthorized", domain.NewGateError(domain.ErrUnauthorized, "otp_token_missing"), http.StatusUnauthorized},
		{"blocked", domain.BlockedError(time.Hour, false), http.StatusLocked},
		{"not found", domain.NewGateError(domain.ErrOTPNotFound, "otp_not_found"), http.StatusNotFound},
		{"already resolved", domain.NewGateError(domain.ErrOTPAlreadyResolved, "otp_resolved"), http.StatusConflict},
		{"pin not set", domain.NewGateError(domain.ErrPINNotSet, "pin_not_set"), http.StatusPreconditionFailed},
		{"risk blocked", domain.NewGateError(domain.ErrRiskBlocked, "risk_blocked"), http.StatusForbidden},
		{"delivery", &domain.GateError{Kind: domain.ErrDeliveryFailed, Cause: errors.New("smtp down")}, http.StatusBadGateway},
		{"no destination", &domain.GateError{Kind: domain.ErrDeliveryFailed, Cause: domain.ErrNoDestination}, http.StatusUnprocessableEntity},
		{"internal", domain.InternalError(errors.New("db")), http.StatusInternalServerError},
		{"unknown type", fmt.Errorf("%w: %q", domain.ErrUnknownOTPType, "fax"), http.StatusBadRequest},
		{"pin format", domain.ErrInvalidPINFormat, http.StatusBadRequest},
		{"user not found", domain.ErrUserNotFound, http.StatusNotFound},
		{"rule not found", domain.ErrRuleNotFound, http.StatusNotFound},
		{"totp not enrolled", domain.ErrTwoFactorNotEnrolled, http.StatusPreconditionFailed},
		{"bad totp", domain.ErrInvalidTwoFactorCode, http.StatusUnauthorized},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestRespondError_Blocked(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, domain.BlockedError(23*time.Hour+30*time.Minute, true))

	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Equal(t, "84600", w.Header().Get("Retry-After"))
	body := decode(t, w)
	assert.Equal(t, "pin_blocked", body["code"])
	assert.Equal(t, float64(84600), body["retry_after_seconds"])
	assert.Contains(t, body["error"], "23h 30m")
}

func TestRespondError_HidesInternals(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondError(c, errors.New("pq: relation users does not exist"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", decode(t, w)["error"])

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	respondError(c, domain.InternalError(errors.New("redis: connection refused")))
	assert.Equal(t, "Unable to process request", decode(t, w)["error"])
	assert.Equal(t, "internal_error", decode(t, w)["code"])
}

func TestRespondError_NeverLeaksAttempts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, domain.NewGateError(domain.ErrInvalidPIN, "invalid_pin"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Invalid PIN","code":"invalid_pin"}`, w.Body.String())
}
