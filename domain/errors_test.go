package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestGateError_Is(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"blocked", BlockedError(time.Hour, true), ErrPINBlocked},
		{"invalid pin", NewGateError(ErrInvalidPIN, "invalid_pin"), ErrInvalidPIN},
		{"wrapped", fmt.Errorf("authorize: %w", NewGateError(ErrUnauthorized, "otp_required")), ErrUnauthorized},
		{"internal keeps cause", InternalError(errors.New("db down")), ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.kind) {
				t.Errorf("expected %v to match %v", tt.err, tt.kind)
			}
		})
	}
}

func TestGateError_PublicMessage(t *testing.T) {
	blocked := BlockedError(23*time.Hour+59*time.Minute+30*time.Second, false)
	if got := blocked.PublicMessage(); !strings.HasSuffix(got, "Try again in 23h 59m") {
		t.Errorf("unexpected blocked message %q", got)
	}

	invalid := NewGateError(ErrInvalidPIN, "invalid_pin")
	if got := invalid.PublicMessage(); got != "Invalid PIN" {
		t.Errorf("unexpected invalid pin message %q", got)
	}

	for _, kind := range []error{ErrInvalidPIN, ErrOTPInvalid, ErrOTPExhausted} {
		msg := NewGateError(kind, "x").PublicMessage()
		if strings.ContainsAny(msg, "0123456789") {
			t.Errorf("message for %v must not contain counts: %q", kind, msg)
		}
	}

	if NewGateError(ErrOTPInvalid, "x").PublicMessage() == invalid.PublicMessage() {
		t.Error("invalid code and invalid pin must be distinguishable")
	}
}

func TestAsGateError(t *testing.T) {
	if AsGateError(nil) != nil {
		t.Error("nil must stay nil")
	}

	plain := errors.New("boom")
	ge := AsGateError(plain)
	if !errors.Is(ge, ErrInternal) || !errors.Is(ge, plain) {
		t.Errorf("plain error should become internal with cause, got %v", ge)
	}

	orig := NewGateError(ErrRateLimited, "cooldown")
	if AsGateError(fmt.Errorf("wrap: %w", orig)) != orig {
		t.Error("existing gate error should be returned as is")
	}
}
