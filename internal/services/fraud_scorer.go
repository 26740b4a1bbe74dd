package services

import (
	"time"

	"github.com/you/walletgate/domain"
)

// Indicator weights. The sum is clamped to 100.
const (
	weightHighAmount   = 25
	weightVelocity     = 30
	weightGeoDiversity = 20
	weightIPDiversity  = 25
	weightPINFailures  = 20
)

const (
	velocityWindow    = 5 * time.Minute
	velocityThreshold = 3
	diversityWindow   = 24 * time.Hour
	locationThreshold = 3
	ipThreshold       = 5
	pinFailureLimit   = 5
)

// ScorerConfig holds the tunable part of the fraud scorer
type ScorerConfig struct {
	HighValueThreshold int64
}

// FraudScorer implements domain.RiskScorer. It reads nothing but its
// arguments, so two calls over the same history always agree.
type FraudScorer struct {
	highValue int64
}

// NewRiskScorer creates a new fraud scorer
func NewRiskScorer(config ScorerConfig) domain.RiskScorer {
	highValue := config.HighValueThreshold
	if highValue <= 0 {
		highValue = 10000
	}
	return &FraudScorer{highValue: highValue}
}

// Score implements domain.RiskScorer. The intent counts as one transfer
// observed at RequestedAt when its amount is positive; a zero amount scores
// the history alone.
func (s *FraudScorer) Score(intent *domain.TransferIntent, history []domain.AuditEvent) domain.RiskAssessment {
	now := referenceTime(intent, history)
	current := intent != nil && intent.Amount > 0

	indicators := []domain.RiskIndicator{}
	score := 0
	flag := func(ind domain.RiskIndicator, weight int) {
		indicators = append(indicators, ind)
		score += weight
	}

	if current && intent.Amount >= s.highValue {
		flag(domain.IndicatorHighAmount, weightHighAmount)
	}

	transfers := 0
	if current {
		transfers++
	}
	locations := make(map[string]struct{})
	ips := make(map[string]struct{})
	if current {
		addNonEmpty(locations, intent.Location)
		addNonEmpty(ips, intent.SourceIP)
	}
	pinFailures := 0

	velocityStart := now.Add(-velocityWindow)
	diversityStart := now.Add(-diversityWindow)
	for _, e := range history {
		if e.Timestamp.After(now) || e.Timestamp.Before(diversityStart) {
			continue
		}
		addNonEmpty(locations, e.Location)
		addNonEmpty(ips, e.IPAddress)

		switch e.EventType {
		case domain.TransferAuthorizationEvent:
			if e.Success && !e.Timestamp.Before(velocityStart) {
				transfers++
			}
		case domain.PINVerifyEvent:
			if !e.Success {
				pinFailures++
			}
		}
	}

	if transfers >= velocityThreshold {
		flag(domain.IndicatorVelocity, weightVelocity)
	}
	if len(locations) >= locationThreshold {
		flag(domain.IndicatorGeoDiversity, weightGeoDiversity)
	}
	if len(ips) >= ipThreshold {
		flag(domain.IndicatorIPDiversity, weightIPDiversity)
	}
	if pinFailures >= pinFailureLimit {
		flag(domain.IndicatorPINFailures, weightPINFailures)
	}

	if score > 100 {
		score = 100
	}
	return domain.RiskAssessment{
		Score:      score,
		Indicators: indicators,
		Level:      domain.LevelForScore(score),
	}
}

// referenceTime is the intent's request time, or the newest event when the
// intent carries none
func referenceTime(intent *domain.TransferIntent, history []domain.AuditEvent) time.Time {
	if intent != nil && !intent.RequestedAt.IsZero() {
		return intent.RequestedAt
	}
	var latest time.Time
	for _, e := range history {
		if e.Timestamp.After(latest) {
			latest = e.Timestamp
		}
	}
	return latest
}

func addNonEmpty(set map[string]struct{}, v string) {
	if v != "" {
		set[v] = struct{}{}
	}
}
