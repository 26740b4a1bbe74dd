package domain

import (
	"context"
	"errors"
	"time"
)

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	// OTP events
	OTPRequestEvent AuditEventType = "OTP_REQUESTED"
	OTPVerifyEvent  AuditEventType = "OTP_VERIFICATION"

	// PIN events
	PINVerifyEvent  AuditEventType = "PIN_VERIFICATION"
	PINChangeEvent  AuditEventType = "PIN_CHANGED"
	PINUnblockEvent AuditEventType = "PIN_ADMIN_UNBLOCK"
	TwoFactorEvent  AuditEventType = "TWO_FACTOR"

	// Authorization events
	TransferAuthorizationEvent AuditEventType = "TRANSFER_AUTHORIZATION"

	// Admin events
	OTPPolicyUpdateEvent AuditEventType = "OTP_POLICY_UPDATED"
	RBACPolicyEvent      AuditEventType = "RBAC_POLICY_CHANGED"

	// Login events recorded on behalf of the upstream auth service
	UserLoginEvent AuditEventType = "USER_LOGIN"
)

// AuditEvent is one immutable entry of the security audit log
type AuditEvent struct {
	ID              string         `json:"id"`
	EventType       AuditEventType `json:"event_type"`
	Identity        string         `json:"identity"`
	UserID          uint           `json:"user_id,omitempty"`
	Actor           string         `json:"actor,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
	IPAddress       string         `json:"ip_address,omitempty"`
	DeviceSignature string         `json:"device_signature,omitempty"`
	Location        string         `json:"location,omitempty"`
	Success         bool           `json:"success"`
	Reason          string         `json:"reason,omitempty"`
	FraudFlags      []string       `json:"fraud_flags,omitempty"`
	RiskScore       int            `json:"risk_score"`
	Amount          int64          `json:"amount,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// AuditLogger records security events. Implementations never update or
// delete what they wrote.
type AuditLogger interface {
	// LogEvent logs a generic audit event
	LogEvent(ctx context.Context, event *AuditEvent) error

	LogOTPRequest(ctx context.Context, subject string, otpType OTPType, channel OTPChannel, err error) error
	LogOTPVerification(ctx context.Context, subject string, otpType OTPType, err error) error

	LogPINVerification(ctx context.Context, userID uint, err error) error
	LogPINChange(ctx context.Context, userID uint, err error) error
	LogAdminUnblock(ctx context.Context, actor string, userID uint) error

	LogAuthorization(ctx context.Context, userID uint, intent *TransferIntent, decision *AuthorizationDecision) error
	LogPolicyUpdate(ctx context.Context, actor string, policy *OTPPolicy) error
	LogLogin(ctx context.Context, identity string, err error) error
}

// ClientContext represents client information extracted from HTTP request
type ClientContext struct {
	IPAddress       string
	UserAgent       string
	DeviceSignature string
	Location        string
}

type clientContextKey struct{}

// WithClient attaches client information to ctx
func WithClient(ctx context.Context, cc *ClientContext) context.Context {
	return context.WithValue(ctx, clientContextKey{}, cc)
}

// ClientFromContext returns the client information attached to ctx, or nil
func ClientFromContext(ctx context.Context) *ClientContext {
	cc, _ := ctx.Value(clientContextKey{}).(*ClientContext)
	return cc
}

// NewAuditEvent creates a new audit event with common fields populated
func NewAuditEvent(eventType AuditEventType, identity string, at time.Time) *AuditEvent {
	return &AuditEvent{
		EventType: eventType,
		Identity:  identity,
		Timestamp: at.UTC(),
		Metadata:  make(map[string]any),
		Success:   true,
	}
}

// WithError marks the event failed. Gate errors contribute their reason.
func (e *AuditEvent) WithError(err error) *AuditEvent {
	if err == nil {
		return e
	}
	e.Success = false
	var ge *GateError
	if errors.As(err, &ge) {
		e.Reason = ge.Reason
		if ge.Transition {
			e.Metadata["transition"] = "blocked"
		}
	}
	return e
}

// WithReason sets the machine-readable reason
func (e *AuditEvent) WithReason(reason string) *AuditEvent {
	e.Reason = reason
	return e
}

// WithUser sets the numeric user ID
func (e *AuditEvent) WithUser(userID uint) *AuditEvent {
	e.UserID = userID
	return e
}

// WithActor records who performed a privileged action
func (e *AuditEvent) WithActor(actor string) *AuditEvent {
	e.Actor = actor
	return e
}

// WithClientContext sets client context information
func (e *AuditEvent) WithClientContext(cc *ClientContext) *AuditEvent {
	if cc != nil {
		e.IPAddress = cc.IPAddress
		e.DeviceSignature = cc.DeviceSignature
		e.Location = cc.Location
	}
	return e
}

// WithRisk attaches the scorer output
func (e *AuditEvent) WithRisk(score int, indicators []RiskIndicator) *AuditEvent {
	e.RiskScore = score
	e.FraudFlags = make([]string, len(indicators))
	for i, ind := range indicators {
		e.FraudFlags[i] = string(ind)
	}
	return e
}

// WithAmount sets the transfer amount
func (e *AuditEvent) WithAmount(amount int64) *AuditEvent {
	e.Amount = amount
	return e
}

// WithMetadata adds metadata to the event
func (e *AuditEvent) WithMetadata(key string, value any) *AuditEvent {
	e.Metadata[key] = value
	return e
}
