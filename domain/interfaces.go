package domain

import (
	"context"
	"time"
)

// UserRepository defines user data access operations
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByPhone(ctx context.Context, phone string) (*User, error)
	FindByID(ctx context.Context, id uint) (*User, error)
	Update(ctx context.Context, user *User) error
}

// SecurityRepository stores per-user security records. Mutate runs fn with
// the record locked for the duration of a transaction; a record that does
// not exist yet is created empty first. If fn returns an error nothing is
// written.
type SecurityRepository interface {
	Get(ctx context.Context, userID uint) (*UserSecurity, error)
	Mutate(ctx context.Context, userID uint, fn func(sec *UserSecurity) error) error
}

// OTPRepository stores the active OTP record per (subject, type), archived
// records and single-use verification tokens.
type OTPRepository interface {
	// Active returns ErrOTPNotFound when the slot is empty
	Active(ctx context.Context, subject string, otpType OTPType) (*OTPRecord, error)
	// Mutate applies fn atomically to the active slot. fn receives nil for an
	// empty slot and returns the record to store, or nil to write nothing.
	// When fn returns a different record the previous one is archived as fn
	// left it.
	Mutate(ctx context.Context, subject string, otpType OTPType, fn func(current *OTPRecord) (*OTPRecord, error)) error
	History(ctx context.Context, subject string, limit int) ([]*OTPRecord, error)
	SaveToken(ctx context.Context, token *VerificationToken) error
	// TakeToken returns and deletes a token in one step
	TakeToken(ctx context.Context, token string) (*VerificationToken, error)
}

// OTPPolicyRepository stores OTP issuance configuration
type OTPPolicyRepository interface {
	Get(ctx context.Context, otpType OTPType, channel OTPChannel) (*OTPPolicy, error)
	List(ctx context.Context) ([]OTPPolicy, error)
	Upsert(ctx context.Context, policy *OTPPolicy) error
	EnabledFor(ctx context.Context, otpType OTPType) ([]OTPPolicy, error)
	// Seed inserts missing policies without touching existing rows
	Seed(ctx context.Context, policies []OTPPolicy) error
}

// AuditRepository is the append-only event store. It has no update or
// delete operations.
type AuditRepository interface {
	Append(ctx context.Context, event *AuditEvent) error
	CountByOutcome(ctx context.Context, identity string, eventType AuditEventType, since, until time.Time) (OutcomeCounts, error)
	DistinctLocations(ctx context.Context, identity string, since time.Time) (int, error)
	DistinctIPs(ctx context.Context, identity string, since time.Time) (int, error)
	// Series returns events of identity at or after since, oldest first
	Series(ctx context.Context, identity string, since time.Time) ([]AuditEvent, error)
	List(ctx context.Context, filter AuditFilter) ([]AuditEvent, int64, error)
	Identities(ctx context.Context, since time.Time) ([]string, error)
	FailureReasons(ctx context.Context, identity string, since time.Time) (map[string]int64, error)
}

// Locker provides short-lived named mutual exclusion across instances
type Locker interface {
	// Acquire returns ErrLockNotAcquired if the lock is still held after waiting
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Release(ctx context.Context, key, token string) error
}

// SecretHasher digests PINs and OTP codes one-way
type SecretHasher interface {
	Hash(secret string) (string, error)
	Verify(digest, secret string) bool
}

// TokenService issues and validates API access tokens
type TokenService interface {
	GenerateAccessToken(userID uint, role string) (string, error)
	ValidateAccessToken(token string) (*TokenClaims, error)
}

// TokenClaims represents JWT token claims
type TokenClaims struct {
	UserID    uint   `json:"user_id"`
	Role      string `json:"role"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// OTPDeliverer sends a code out of band. A nil error means the transport
// acknowledged the dispatch.
type OTPDeliverer interface {
	Deliver(ctx context.Context, subject string, channel OTPChannel, code string, otpType OTPType) error
}

// SMSSender sends a text message to a phone number
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// EmailSender sends a plain-text email
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// PolicyRule is one RBAC rule guarding the HTTP API
type PolicyRule struct {
	Role     string `json:"role" binding:"required"`
	Resource string `json:"resource" binding:"required"`
	Action   string `json:"action" binding:"required"`
}

// PolicyService manages the RBAC rules. Changes are privileged and audited.
type PolicyService interface {
	AddPolicy(ctx context.Context, actor string, rule PolicyRule) error
	RemovePolicy(ctx context.Context, actor string, rule PolicyRule) error
	CheckPermission(role, resource, action string) (bool, error)
	GetPolicies() ([]PolicyRule, error)
}

// CasbinEnforcer interface defines the methods we need from Casbin enforcer
type CasbinEnforcer interface {
	AddPolicy(params ...interface{}) (bool, error)
	RemovePolicy(params ...interface{}) (bool, error)
	Enforce(rvals ...interface{}) (bool, error)
	GetPolicy() ([][]string, error)
	SavePolicy() error
}

// OTPService issues and verifies one-time codes. It does not consult
// OTPPolicy.Enabled; callers decide whether a code is required.
type OTPService interface {
	Request(ctx context.Context, subject string, otpType OTPType, channel OTPChannel, policy OTPPolicy) (*OTPRecord, error)
	Verify(ctx context.Context, subject string, otpType OTPType, code string) (*VerificationToken, error)
	ConsumeToken(ctx context.Context, token, subject string, otpType OTPType) error
	History(ctx context.Context, subject string) ([]*OTPRecord, error)
}

// PINService is the PIN state machine
type PINService interface {
	Set(ctx context.Context, userID uint, pin, verificationToken string) error
	Verify(ctx context.Context, userID uint, pin string) error
	AdminUnblock(ctx context.Context, actor string, userID uint) error
	Status(ctx context.Context, userID uint) (*PINStatus, error)
	EnrollTwoFactor(ctx context.Context, userID uint) (*TwoFactorEnrollment, error)
	VerifyTwoFactor(ctx context.Context, userID uint, code string) error
}

// RiskScorer annotates a transfer with a risk score. It never decides.
type RiskScorer interface {
	Score(intent *TransferIntent, history []AuditEvent) RiskAssessment
}

// AuthorizationService approves or denies a transfer. The decision is never
// nil; a non-nil error is always a *GateError.
type AuthorizationService interface {
	Authorize(ctx context.Context, userID uint, intent *TransferIntent, pin, otpToken string) (*AuthorizationDecision, error)
}

// AdminService backs the admin console
type AdminService interface {
	UnblockUser(ctx context.Context, actor string, userID uint) error
	GetOTPPolicy(ctx context.Context, otpType OTPType, channel OTPChannel) (*OTPPolicy, error)
	ListOTPPolicies(ctx context.Context) ([]OTPPolicy, error)
	UpdateOTPPolicy(ctx context.Context, actor string, policy *OTPPolicy) error
	ListSuspiciousActivity(ctx context.Context, since time.Time) ([]SuspiciousActivity, error)
	ListLoginLogs(ctx context.Context, filter AuditFilter) ([]AuditEvent, int64, error)
	LoginStatistics(ctx context.Context, identity string, days int) (*LoginStatistics, error)
}
