package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/you/walletgate/domain"
)

var gateStatus = map[error]int{
	domain.ErrRateLimited:        http.StatusTooManyRequests,
	domain.ErrOTPExpired:         http.StatusGone,
	domain.ErrOTPExhausted:       http.StatusGone,
	domain.ErrOTPInvalid:         http.StatusUnauthorized,
	domain.ErrInvalidPIN:         http.StatusUnauthorized,
	domain.ErrUnauthorized:       http.StatusUnauthorized,
	domain.ErrPINBlocked:         http.StatusLocked,
	domain.ErrOTPNotFound:        http.StatusNotFound,
	domain.ErrOTPAlreadyResolved: http.StatusConflict,
	domain.ErrPINNotSet:          http.StatusPreconditionFailed,
	domain.ErrRiskBlocked:        http.StatusForbidden,
	domain.ErrDeliveryFailed:     http.StatusBadGateway,
	domain.ErrInvalidAmount:      http.StatusBadRequest,
	domain.ErrInternal:           http.StatusInternalServerError,
}

// input and lookup errors surface their own message
var inputStatus = []struct {
	err    error
	status int
}{
	{domain.ErrUnknownOTPType, http.StatusBadRequest},
	{domain.ErrUnknownOTPChannel, http.StatusBadRequest},
	{domain.ErrInvalidPolicy, http.StatusBadRequest},
	{domain.ErrPolicyDisabled, http.StatusBadRequest},
	{domain.ErrInvalidPINFormat, http.StatusBadRequest},
	{domain.ErrInvalidRule, http.StatusBadRequest},
	{domain.ErrUserNotFound, http.StatusNotFound},
	{domain.ErrPolicyNotFound, http.StatusNotFound},
	{domain.ErrRuleNotFound, http.StatusNotFound},
	{domain.ErrTwoFactorNotEnrolled, http.StatusPreconditionFailed},
	{domain.ErrInvalidTwoFactorCode, http.StatusUnauthorized},
}

// statusFor maps a service error to its HTTP status
func statusFor(err error) int {
	var ge *domain.GateError
	if errors.As(err, &ge) {
		if ge.Kind == domain.ErrDeliveryFailed && errors.Is(ge.Cause, domain.ErrNoDestination) {
			return http.StatusUnprocessableEntity
		}
		if status, ok := gateStatus[ge.Kind]; ok {
			return status
		}
		return http.StatusInternalServerError
	}
	for _, m := range inputStatus {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// errorBody builds the JSON error payload. Gate errors only ever expose their
// public message and reason code.
func errorBody(c *gin.Context, err error) gin.H {
	var ge *domain.GateError
	if errors.As(err, &ge) {
		body := gin.H{"error": ge.PublicMessage(), "code": ge.Reason}
		if ge.Kind == domain.ErrDeliveryFailed && errors.Is(ge.Cause, domain.ErrNoDestination) {
			body["error"] = "No destination on file for this channel"
		}
		if ge.Kind == domain.ErrPINBlocked {
			seconds := int(math.Ceil(ge.Remaining.Seconds()))
			body["retry_after_seconds"] = seconds
			c.Header("Retry-After", strconv.Itoa(seconds))
		}
		return body
	}
	if statusFor(err) == http.StatusInternalServerError {
		return gin.H{"error": "Internal server error"}
	}
	return gin.H{"error": err.Error()}
}

// respondError writes err with the status it maps to
func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), errorBody(c, err))
}
