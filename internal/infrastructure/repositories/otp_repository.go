package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/you/walletgate/domain"
)

const maxOTPTxRetries = 16

// OTPRepositoryImpl implements domain.OTPRepository using Redis. Each
// (subject, type) slot is one JSON value updated with WATCH/MULTI.
type OTPRepositoryImpl struct {
	client       *redis.Client
	clock        domain.Clock
	retention    time.Duration
	historyLimit int64
}

// NewOTPRepository creates a new OTP repository. Records stay readable for
// retention after they expire so late verifications see Expired rather than
// NotFound.
func NewOTPRepository(client *redis.Client, clock domain.Clock, retention time.Duration) domain.OTPRepository {
	return &OTPRepositoryImpl{
		client:       client,
		clock:        clock,
		retention:    retention,
		historyLimit: 50,
	}
}

func (r *OTPRepositoryImpl) activeKey(subject string, otpType domain.OTPType) string {
	return fmt.Sprintf("otp:active:%s:%s", subject, otpType)
}

func (r *OTPRepositoryImpl) historyKey(subject string) string {
	return "otp:history:" + subject
}

func (r *OTPRepositoryImpl) tokenKey(token string) string {
	return "otp:tok:" + token
}

// Active implements domain.OTPRepository
func (r *OTPRepositoryImpl) Active(ctx context.Context, subject string, otpType domain.OTPType) (*domain.OTPRecord, error) {
	rec, err := r.load(ctx, r.client, r.activeKey(subject, otpType))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrOTPNotFound
	}
	return rec, nil
}

// Mutate implements domain.OTPRepository. fn may run more than once when a
// concurrent writer touches the slot; it must not have side effects outside
// the returned record. Returning nil from fn leaves the slot unchanged.
func (r *OTPRepositoryImpl) Mutate(ctx context.Context, subject string, otpType domain.OTPType, fn func(current *domain.OTPRecord) (*domain.OTPRecord, error)) error {
	key := r.activeKey(subject, otpType)
	historyKey := r.historyKey(subject)

	txf := func(tx *redis.Tx) error {
		current, err := r.load(ctx, tx, key)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal otp record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttlFor(next))
			if current != nil && current.ID != next.ID {
				archived, err := json.Marshal(current)
				if err != nil {
					return fmt.Errorf("failed to marshal archived otp record: %w", err)
				}
				pipe.LPush(ctx, historyKey, archived)
				pipe.LTrim(ctx, historyKey, 0, r.historyLimit-1)
				pipe.Expire(ctx, historyKey, r.retention)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxOTPTxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("otp slot %s: too many concurrent updates", key)
}

// History implements domain.OTPRepository, newest first
func (r *OTPRepositoryImpl) History(ctx context.Context, subject string, limit int) ([]*domain.OTPRecord, error) {
	if limit <= 0 || int64(limit) > r.historyLimit {
		limit = int(r.historyLimit)
	}
	raw, err := r.client.LRange(ctx, r.historyKey(subject), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read otp history: %w", err)
	}

	records := make([]*domain.OTPRecord, 0, len(raw))
	for _, item := range raw {
		var rec domain.OTPRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal otp history: %w", err)
		}
		records = append(records, &rec)
	}
	return records, nil
}

// SaveToken implements domain.OTPRepository
func (r *OTPRepositoryImpl) SaveToken(ctx context.Context, token *domain.VerificationToken) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal verification token: %w", err)
	}
	ttl := token.ExpiresAt.Sub(token.IssuedAt)
	if err := r.client.Set(ctx, r.tokenKey(token.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}
	return nil
}

// TakeToken implements domain.OTPRepository
func (r *OTPRepositoryImpl) TakeToken(ctx context.Context, token string) (*domain.VerificationToken, error) {
	data, err := r.client.GetDel(ctx, r.tokenKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("failed to take verification token: %w", err)
	}

	var vt domain.VerificationToken
	if err := json.Unmarshal(data, &vt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal verification token: %w", err)
	}
	return &vt, nil
}

func (r *OTPRepositoryImpl) load(ctx context.Context, c redis.Cmdable, key string) (*domain.OTPRecord, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load otp record: %w", err)
	}

	var rec domain.OTPRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal otp record: %w", err)
	}
	return &rec, nil
}

// ttlFor keeps a record until retention after its expiry
func (r *OTPRepositoryImpl) ttlFor(rec *domain.OTPRecord) time.Duration {
	ttl := rec.ExpiresAt.Sub(r.clock.Now()) + r.retention
	if ttl < r.retention {
		ttl = r.retention
	}
	return ttl
}
