package domain

import (
	"errors"
	"fmt"
	"time"
)

// User and token errors
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUserInactive   = errors.New("user account is inactive")
	ErrTokenInvalid   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenMalformed = errors.New("malformed token")
)

// Gate errors. Every failure of the security gate wraps exactly one of these.
var (
	ErrRateLimited        = errors.New("otp requested too recently")
	ErrOTPExpired         = errors.New("otp has expired")
	ErrOTPExhausted       = errors.New("maximum otp attempts exceeded")
	ErrOTPInvalid         = errors.New("invalid otp code")
	ErrOTPNotFound        = errors.New("otp not found")
	ErrOTPAlreadyResolved = errors.New("otp already resolved")
	ErrInvalidPIN         = errors.New("invalid pin")
	ErrPINBlocked         = errors.New("pin verification blocked")
	ErrPINNotSet          = errors.New("pin not set")
	ErrUnauthorized       = errors.New("unauthorized access")
	ErrRiskBlocked        = errors.New("transfer blocked by risk policy")
	ErrInternal           = errors.New("internal error")
)

// Input and configuration errors
var (
	ErrUnknownOTPType       = errors.New("unknown otp type")
	ErrUnknownOTPChannel    = errors.New("unknown otp channel")
	ErrInvalidPolicy        = errors.New("invalid otp policy")
	ErrPolicyNotFound       = errors.New("otp policy not found")
	ErrPolicyDisabled       = errors.New("otp is not enabled for this type and channel")
	ErrInvalidPINFormat     = errors.New("pin must be 4 to 6 digits")
	ErrInvalidAmount        = errors.New("transfer amount must be positive")
	ErrDeliveryFailed       = errors.New("otp delivery failed")
	ErrNoDestination        = errors.New("user has no destination for channel")
	ErrTwoFactorNotEnrolled = errors.New("two-factor authentication not enrolled")
	ErrInvalidTwoFactorCode = errors.New("invalid two-factor code")
	ErrLockNotAcquired      = errors.New("lock not acquired")
	ErrInvalidRule          = errors.New("invalid rbac rule")
	ErrRuleNotFound         = errors.New("rbac rule not found")
)

// GateError is the typed outcome of a failed gate check. Kind is one of the
// gate sentinels above so callers can use errors.Is.
type GateError struct {
	Kind   error
	Reason string
	// Remaining is how long a Blocked lockout still lasts
	Remaining time.Duration
	// Transition is set only on the attempt that moved the user into Blocked
	Transition bool
	Cause      error
}

// NewGateError builds a GateError for kind with a machine-readable reason
func NewGateError(kind error, reason string) *GateError {
	return &GateError{Kind: kind, Reason: reason}
}

// BlockedError builds the Blocked outcome for a PIN lockout
func BlockedError(remaining time.Duration, transition bool) *GateError {
	return &GateError{
		Kind:       ErrPINBlocked,
		Reason:     "pin_blocked",
		Remaining:  remaining,
		Transition: transition,
	}
}

// InternalError hides an infrastructure failure behind ErrInternal
func InternalError(cause error) *GateError {
	return &GateError{Kind: ErrInternal, Reason: "internal_error", Cause: cause}
}

func (e *GateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return e.Kind.Error()
}

func (e *GateError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// PublicMessage is the caller-visible text. It never contains attempt counts.
func (e *GateError) PublicMessage() string {
	switch e.Kind {
	case ErrPINBlocked:
		hours := int(e.Remaining.Hours())
		minutes := int(e.Remaining.Minutes()) % 60
		return fmt.Sprintf("PIN verification is blocked due to too many failed attempts. Try again in %dh %dm", hours, minutes)
	case ErrInvalidPIN:
		return "Invalid PIN"
	case ErrOTPInvalid:
		return "Invalid verification code"
	case ErrOTPExpired:
		return "Verification code has expired. Please request a new one"
	case ErrOTPExhausted:
		return "Too many attempts for this verification code. Please request a new one"
	case ErrRateLimited:
		return "Please wait before requesting another verification code"
	case ErrOTPNotFound:
		return "No pending verification code"
	case ErrOTPAlreadyResolved:
		return "Verification code has already been used"
	case ErrUnauthorized:
		return "A verified one-time code is required for this operation"
	case ErrPINNotSet:
		return "PIN not set. Please set a PIN first"
	case ErrRiskBlocked:
		return "Transfer held for review"
	case ErrDeliveryFailed:
		return "Unable to deliver verification code"
	case ErrInvalidAmount:
		return "Transfer amount must be positive"
	default:
		return "Unable to process request"
	}
}

// AsGateError returns err as a GateError, wrapping anything else as internal
func AsGateError(err error) *GateError {
	if err == nil {
		return nil
	}
	var ge *GateError
	if errors.As(err, &ge) {
		return ge
	}
	return InternalError(err)
}
