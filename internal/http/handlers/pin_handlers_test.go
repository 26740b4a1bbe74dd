package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/walletgate/domain"
	"github.com/you/walletgate/internal/mocks"
)

func TestPINHandlers_Set(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		setErr         error
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "set",
			body:           SetPINRequest{PIN: "4821", VerificationToken: "tok"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing token",
			body:           `{"pin":"4821"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad format",
			body:           SetPINRequest{PIN: "12", VerificationToken: "tok"},
			setErr:         domain.ErrInvalidPINFormat,
			expectedStatus: http.StatusBadRequest,
			expectedError:  domain.ErrInvalidPINFormat.Error(),
		},
		{
			name:           "token rejected",
			body:           SetPINRequest{PIN: "4821", VerificationToken: "used"},
			setErr:         domain.NewGateError(domain.ErrUnauthorized, "otp_token_invalid"),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pinSvc := mocks.NewMockPINService()
			pinSvc.SetFunc = func(ctx context.Context, userID uint, pin, token string) error {
				assert.Equal(t, uint(7), userID)
				return tt.setErr
			}
			h := NewPINHandlers(pinSvc)
			r := newTestRouter("7", "user")
			r.POST("/pin/set", h.Set)

			w := perform(t, r, http.MethodPost, "/pin/set", tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, decode(t, w)["error"])
			}
		})
	}
}

func TestPINHandlers_Status(t *testing.T) {
	until := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)
	pinSvc := mocks.NewMockPINService()
	pinSvc.StatusFunc = func(ctx context.Context, userID uint) (*domain.PINStatus, error) {
		return &domain.PINStatus{PINSet: true, Blocked: true, BlockedUntil: &until}, nil
	}
	h := NewPINHandlers(pinSvc)
	r := newTestRouter("7", "user")
	r.GET("/pin/status", h.Status)

	w := perform(t, r, http.MethodGet, "/pin/status", nil)

	require.Equal(t, http.StatusOK, w.Code)
	data := dataOf(t, w)
	assert.Equal(t, true, data["pin_set"])
	assert.Equal(t, true, data["is_blocked"])
	assert.Equal(t, "2024-03-02T12:00:00Z", data["blocked_until"])
	assert.Equal(t, float64(0), data["remaining_attempts"])
}

func TestPINHandlers_TwoFactor(t *testing.T) {
	pinSvc := mocks.NewMockPINService()
	pinSvc.VerifyTwoFactorFunc = func(ctx context.Context, userID uint, code string) error {
		switch code {
		case "287082":
			return nil
		case "000000":
			return domain.ErrInvalidTwoFactorCode
		default:
			return domain.ErrTwoFactorNotEnrolled
		}
	}
	h := NewPINHandlers(pinSvc)
	r := newTestRouter("7", "user")
	r.POST("/2fa/enroll", h.EnrollTwoFactor)
	r.POST("/2fa/verify", h.VerifyTwoFactor)

	w := perform(t, r, http.MethodPost, "/2fa/enroll", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, dataOf(t, w)["secret"])
	assert.Contains(t, dataOf(t, w)["otpauth_url"], "otpauth://totp/")

	assert.Equal(t, http.StatusOK, perform(t, r, http.MethodPost, "/2fa/verify", TwoFactorVerifyRequest{Code: "287082"}).Code)
	assert.Equal(t, http.StatusUnauthorized, perform(t, r, http.MethodPost, "/2fa/verify", TwoFactorVerifyRequest{Code: "000000"}).Code)
	assert.Equal(t, http.StatusPreconditionFailed, perform(t, r, http.MethodPost, "/2fa/verify", TwoFactorVerifyRequest{Code: "111111"}).Code)
	assert.Equal(t, http.StatusBadRequest, perform(t, r, http.MethodPost, "/2fa/verify", `{}`).Code)
}
