package domain

import (
	"strconv"
	"time"
)

// PIN lockout policy. These are fixed constants, not configuration.
const (
	PINMaxFailedAttempts = 10
	PINLockoutDuration   = 24 * time.Hour
)

// PINCounter is the attempt counter applied to every PIN verification
var PINCounter = AttemptCounter{Threshold: PINMaxFailedAttempts, Lockout: PINLockoutDuration}

// User represents a wallet user as seen by the gate
type User struct {
	ID        uint
	Email     string
	Phone     string
	Role      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subject is the identity string used by OTP records and the audit log
func (u *User) Subject() string {
	return SubjectForUser(u.ID)
}

// SubjectForUser formats a user ID as an audit/OTP subject
func SubjectForUser(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// UserIDFromSubject parses a subject produced by SubjectForUser
func UserIDFromSubject(subject string) (uint, error) {
	id, err := strconv.ParseUint(subject, 10, 64)
	if err != nil {
		return 0, ErrUserNotFound
	}
	return uint(id), nil
}

// UserSecurity is the per-user security record owned by the PIN state machine
type UserSecurity struct {
	UserID           uint
	PINHash          string
	FailedAttempts   int
	BlockedUntil     *time.Time
	TwoFactorSecret  string
	TwoFactorEnabled bool
	PINUpdatedAt     *time.Time
	UpdatedAt        time.Time
}

// PINSet reports whether a PIN digest has been stored
func (s *UserSecurity) PINSet() bool {
	return s.PINHash != ""
}

// Counter returns the attempt counter view of the record
func (s *UserSecurity) Counter() CounterState {
	return CounterState{Attempts: s.FailedAttempts, LockedUntil: s.BlockedUntil}
}

// ApplyCounter writes a counter state back onto the record
func (s *UserSecurity) ApplyCounter(c CounterState) {
	s.FailedAttempts = c.Attempts
	s.BlockedUntil = c.LockedUntil
}

// PINStatus is the caller-facing view of a user's PIN state
type PINStatus struct {
	PINSet            bool       `json:"pin_set"`
	Blocked           bool       `json:"is_blocked"`
	BlockedUntil      *time.Time `json:"blocked_until,omitempty"`
	RemainingAttempts int        `json:"remaining_attempts"`
	TwoFactorEnabled  bool       `json:"two_factor_enabled"`
}

// TwoFactorEnrollment is returned once when a TOTP secret is generated
type TwoFactorEnrollment struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauth_url"`
}

// TransferIntent is the money movement being authorized
type TransferIntent struct {
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Chain       string    `json:"chain,omitempty"`
	Destination string    `json:"destination"`
	SourceIP    string    `json:"-"`
	Device      string    `json:"-"`
	Location    string    `json:"-"`
	RequestedAt time.Time `json:"-"`
}

// RiskIndicator names a triggered fraud condition
type RiskIndicator string

const (
	IndicatorHighAmount   RiskIndicator = "high_amount"
	IndicatorVelocity     RiskIndicator = "velocity"
	IndicatorGeoDiversity RiskIndicator = "geo_diversity"
	IndicatorIPDiversity  RiskIndicator = "ip_diversity"
	IndicatorPINFailures  RiskIndicator = "pin_failures"
)

// RiskLevel is a coarse bucket of a risk score
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// LevelForScore buckets a 0-100 score
func LevelForScore(score int) RiskLevel {
	switch {
	case score < 30:
		return RiskLow
	case score < 60:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// RiskAssessment is the advisory output of the fraud scorer
type RiskAssessment struct {
	Score      int             `json:"risk_score"`
	Indicators []RiskIndicator `json:"indicators"`
	Level      RiskLevel       `json:"risk_level"`
}

// Has reports whether ind was triggered
func (a RiskAssessment) Has(ind RiskIndicator) bool {
	for _, i := range a.Indicators {
		if i == ind {
			return true
		}
	}
	return false
}

// IndicatorNames returns the indicators as plain strings
func (a RiskAssessment) IndicatorNames() []string {
	names := make([]string, len(a.Indicators))
	for i, ind := range a.Indicators {
		names[i] = string(ind)
	}
	return names
}

// AuthorizationDecision is the outcome of a transfer authorization
type AuthorizationDecision struct {
	Approved   bool            `json:"approved"`
	RiskScore  int             `json:"risk_score"`
	Indicators []RiskIndicator `json:"indicators"`
	RiskLevel  RiskLevel       `json:"risk_level"`
	Reason     string          `json:"reason,omitempty"`
	DecidedAt  time.Time       `json:"decided_at"`
	Err        *GateError      `json:"-"`
}

// IndicatorNames returns the indicators as plain strings
func (d *AuthorizationDecision) IndicatorNames() []string {
	return RiskAssessment{Indicators: d.Indicators}.IndicatorNames()
}

// AuditFilter selects audit events for admin listings
type AuditFilter struct {
	Identity  string
	EventType AuditEventType
	Success   *bool
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

// OutcomeCounts splits events by outcome
type OutcomeCounts struct {
	Success int64 `json:"success"`
	Failure int64 `json:"failure"`
}

// Total returns the number of counted events
func (c OutcomeCounts) Total() int64 {
	return c.Success + c.Failure
}

// LoginStatistics summarizes audit activity for fraud analysis
type LoginStatistics struct {
	Identity        string           `json:"identity,omitempty"`
	Days            int              `json:"days"`
	TotalAttempts   int64            `json:"total_attempts"`
	Successful      int64            `json:"successful"`
	Failed          int64            `json:"failed"`
	SuccessRate     float64          `json:"success_rate"`
	UniqueIPs       int              `json:"unique_ips"`
	UniqueLocations int              `json:"unique_locations"`
	FailureReasons  map[string]int64 `json:"failure_reasons"`
}

// SuspiciousActivity is one identity flagged by the scorer over its history
type SuspiciousActivity struct {
	Identity   string         `json:"identity"`
	Assessment RiskAssessment `json:"assessment"`
	EventCount int            `json:"event_count"`
	LastSeen   time.Time      `json:"last_seen"`
}
