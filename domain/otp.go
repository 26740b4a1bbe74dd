package domain

import (
	"fmt"
	"strings"
	"time"
)

// OTPType identifies the operation an OTP code is issued for
type OTPType uint8

const (
	OTPTypeLogin OTPType = iota + 1
	OTPTypeEmailVerification
	OTPTypePasswordReset
	OTPTypeTwoFactor
	OTPTypePINSetup
	OTPTypeTransaction
)

// AllOTPTypes lists every known OTPType in declaration order
var AllOTPTypes = []OTPType{
	OTPTypeLogin,
	OTPTypeEmailVerification,
	OTPTypePasswordReset,
	OTPTypeTwoFactor,
	OTPTypePINSetup,
	OTPTypeTransaction,
}

func (t OTPType) String() string {
	switch t {
	case OTPTypeLogin:
		return "login"
	case OTPTypeEmailVerification:
		return "email_verification"
	case OTPTypePasswordReset:
		return "password_reset"
	case OTPTypeTwoFactor:
		return "two_factor"
	case OTPTypePINSetup:
		return "pin_setup"
	case OTPTypeTransaction:
		return "transaction"
	default:
		return fmt.Sprintf("OTPType(%d)", uint8(t))
	}
}

// Valid reports whether t is one of the declared OTP types
func (t OTPType) Valid() bool {
	return t >= OTPTypeLogin && t <= OTPTypeTransaction
}

// ParseOTPType converts the wire name of an OTP type into its value
func ParseOTPType(s string) (OTPType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, t := range AllOTPTypes {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOTPType, s)
}

func (t OTPType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOTPType, uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *OTPType) UnmarshalText(text []byte) error {
	parsed, err := ParseOTPType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// OTPChannel identifies the out-of-band transport a code is delivered through
type OTPChannel uint8

const (
	OTPChannelEmail OTPChannel = iota + 1
	OTPChannelSMS
)

// AllOTPChannels lists every known OTPChannel
var AllOTPChannels = []OTPChannel{OTPChannelEmail, OTPChannelSMS}

func (c OTPChannel) String() string {
	switch c {
	case OTPChannelEmail:
		return "email"
	case OTPChannelSMS:
		return "sms"
	default:
		return fmt.Sprintf("OTPChannel(%d)", uint8(c))
	}
}

// Valid reports whether c is one of the declared channels
func (c OTPChannel) Valid() bool {
	return c == OTPChannelEmail || c == OTPChannelSMS
}

// ParseOTPChannel converts the wire name of a channel into its value
func ParseOTPChannel(s string) (OTPChannel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "email":
		return OTPChannelEmail, nil
	case "sms":
		return OTPChannelSMS, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownOTPChannel, s)
	}
}

func (c OTPChannel) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOTPChannel, uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *OTPChannel) UnmarshalText(text []byte) error {
	parsed, err := ParseOTPChannel(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// OTPStatus is the lifecycle state of an OTPRecord
type OTPStatus string

const (
	OTPStatusPending   OTPStatus = "pending"
	OTPStatusVerified  OTPStatus = "verified"
	OTPStatusExpired   OTPStatus = "expired"
	OTPStatusExhausted OTPStatus = "exhausted"
)

// Terminal reports whether no further transition is possible from s
func (s OTPStatus) Terminal() bool {
	return s != OTPStatusPending
}

// OTPRecord is a single issued code. Only the digest of the code is kept.
type OTPRecord struct {
	ID          string     `json:"id"`
	Subject     string     `json:"subject"`
	CodeDigest  string     `json:"code_digest"`
	Type        OTPType    `json:"otp_type"`
	Channel     OTPChannel `json:"channel"`
	Status      OTPStatus  `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
}

// ExpiredAt reports whether the record is past its expiry at now
func (r *OTPRecord) ExpiredAt(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// InCooldown reports whether a new code for the same channel must be refused
func (r *OTPRecord) InCooldown(channel OTPChannel, cooldown time.Duration, now time.Time) bool {
	if r.Channel != channel || r.ExpiredAt(now) {
		return false
	}
	if r.Status == OTPStatusExpired || r.Status == OTPStatusExhausted {
		return false
	}
	return now.Sub(r.CreatedAt) < cooldown
}

// OTPPolicy configures issuance for one (type, channel) pair
type OTPPolicy struct {
	Type            OTPType    `json:"otp_type"`
	Channel         OTPChannel `json:"channel"`
	Enabled         bool       `json:"enabled"`
	CodeLength      int        `json:"code_length" validate:"min=4,max=10"`
	ExpiryMinutes   int        `json:"expiry_minutes" validate:"min=1,max=1440"`
	MaxAttempts     int        `json:"max_attempts" validate:"min=1,max=20"`
	CooldownMinutes int        `json:"cooldown_minutes" validate:"min=0,max=1440"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (p OTPPolicy) Expiry() time.Duration {
	return time.Duration(p.ExpiryMinutes) * time.Minute
}

func (p OTPPolicy) Cooldown() time.Duration {
	return time.Duration(p.CooldownMinutes) * time.Minute
}

// Validate checks the ranges the engine relies on
func (p OTPPolicy) Validate() error {
	if !p.Type.Valid() {
		return ErrUnknownOTPType
	}
	if !p.Channel.Valid() {
		return ErrUnknownOTPChannel
	}
	if p.CodeLength < 4 || p.CodeLength > 10 {
		return fmt.Errorf("%w: code length must be between 4 and 10", ErrInvalidPolicy)
	}
	if p.ExpiryMinutes < 1 {
		return fmt.Errorf("%w: expiry must be at least one minute", ErrInvalidPolicy)
	}
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be positive", ErrInvalidPolicy)
	}
	if p.CooldownMinutes < 0 {
		return fmt.Errorf("%w: cooldown cannot be negative", ErrInvalidPolicy)
	}
	return nil
}

// VerificationToken proves a successful OTP verification. It is consumed once.
type VerificationToken struct {
	Token     string    `json:"token"`
	Subject   string    `json:"subject"`
	Type      OTPType   `json:"otp_type"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
