package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseOTPType(t *testing.T) {
	for _, typ := range AllOTPTypes {
		parsed, err := ParseOTPType(typ.String())
		if err != nil {
			t.Fatalf("parse %s: %v", typ, err)
		}
		if parsed != typ {
			t.Errorf("expected %v, got %v", typ, parsed)
		}
	}

	if _, err := ParseOTPType("withdrawal"); !errors.Is(err, ErrUnknownOTPType) {
		t.Errorf("expected ErrUnknownOTPType, got %v", err)
	}
	if _, err := ParseOTPChannel("pigeon"); !errors.Is(err, ErrUnknownOTPChannel) {
		t.Errorf("expected ErrUnknownOTPChannel, got %v", err)
	}
}

func TestOTPType_JSONRejectsUnknown(t *testing.T) {
	var body struct {
		Type    OTPType    `json:"otp_type"`
		Channel OTPChannel `json:"channel"`
	}

	if err := json.Unmarshal([]byte(`{"otp_type":"pin_setup","channel":"SMS"}`), &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.Type != OTPTypePINSetup || body.Channel != OTPChannelSMS {
		t.Errorf("unexpected decode %+v", body)
	}

	if err := json.Unmarshal([]byte(`{"otp_type":"nope","channel":"sms"}`), &body); err == nil {
		t.Error("expected error for unknown type")
	}
	if _, err := json.Marshal(struct{ T OTPType }{T: OTPType(99)}); err == nil {
		t.Error("expected error marshaling unknown type")
	}
}

func TestOTPRecord_InCooldown(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &OTPRecord{
		Channel:   OTPChannelSMS,
		Status:    OTPStatusPending,
		CreatedAt: now.Add(-30 * time.Second),
		ExpiresAt: now.Add(10 * time.Minute),
	}

	tests := []struct {
		name    string
		mutate  func(r *OTPRecord)
		channel OTPChannel
		want    bool
	}{
		{"same channel within cooldown", func(r *OTPRecord) {}, OTPChannelSMS, true},
		{"other channel", func(r *OTPRecord) {}, OTPChannelEmail, false},
		{"verified record still cools down", func(r *OTPRecord) { r.Status = OTPStatusVerified }, OTPChannelSMS, true},
		{"exhausted record does not", func(r *OTPRecord) { r.Status = OTPStatusExhausted }, OTPChannelSMS, false},
		{"time expired record does not", func(r *OTPRecord) { r.ExpiresAt = now.Add(-time.Second) }, OTPChannelSMS, false},
		{"cooldown elapsed", func(r *OTPRecord) { r.CreatedAt = now.Add(-2 * time.Minute) }, OTPChannelSMS, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := *rec
			tt.mutate(&r)
			if got := r.InCooldown(tt.channel, time.Minute, now); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestOTPPolicy_Validate(t *testing.T) {
	valid := OTPPolicy{Type: OTPTypeLogin, Channel: OTPChannelEmail, Enabled: true, CodeLength: 6, ExpiryMinutes: 10, MaxAttempts: 3, CooldownMinutes: 1}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid policy, got %v", err)
	}
	if valid.Expiry() != 10*time.Minute || valid.Cooldown() != time.Minute {
		t.Errorf("unexpected durations %v %v", valid.Expiry(), valid.Cooldown())
	}

	bad := valid
	bad.CodeLength = 2
	if err := bad.Validate(); !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("expected ErrInvalidPolicy, got %v", err)
	}
	bad = valid
	bad.Type = 0
	if err := bad.Validate(); !errors.Is(err, ErrUnknownOTPType) {
		t.Errorf("expected ErrUnknownOTPType, got %v", err)
	}
}

func TestLevelForScore(t *testing.T) {
	cases := map[int]RiskLevel{0: RiskLow, 29: RiskLow, 30: RiskMedium, 59: RiskMedium, 60: RiskHigh, 100: RiskHigh}
	for score, want := range cases {
		if got := LevelForScore(score); got != want {
			t.Errorf("score %d: expected %s, got %s", score, want, got)
		}
	}
}
