package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/you/walletgate/domain"
	"gorm.io/gorm"
)

// DBSecurityEvent is one row of the append-only audit log. Seq orders
// events written within the same timestamp.
type DBSecurityEvent struct {
	Seq             uint64    `gorm:"primaryKey"`
	EventID         string    `gorm:"uniqueIndex;size:36"`
	EventType       string    `gorm:"index;size:64"`
	Identity        string    `gorm:"index:idx_security_events_identity_time,priority:1;size:255"`
	UserID          *uint     `gorm:"index"`
	Actor           string    `gorm:"size:255"`
	OccurredAt      time.Time `gorm:"index:idx_security_events_identity_time,priority:2;index"`
	IPAddress       string    `gorm:"size:64"`
	DeviceSignature string    `gorm:"size:128"`
	Location        string    `gorm:"size:128"`
	Success         bool      `gorm:"index"`
	Reason          string    `gorm:"size:128"`
	FraudFlags      string    `gorm:"size:255"`
	RiskScore       int
	Amount          int64
	Metadata        string `gorm:"type:text"`
}

func (DBSecurityEvent) TableName() string {
	return "security_events"
}

// AuditRepositoryImpl implements domain.AuditRepository using GORM. It only
// ever inserts.
type AuditRepositoryImpl struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) domain.AuditRepository {
	return &AuditRepositoryImpl{db: db}
}

// Append implements domain.AuditRepository
func (r *AuditRepositoryImpl) Append(ctx context.Context, event *domain.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	row, err := eventToDB(event)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

// CountByOutcome implements domain.AuditRepository. An empty eventType
// counts every type; a zero until leaves the window open.
func (r *AuditRepositoryImpl) CountByOutcome(ctx context.Context, identity string, eventType domain.AuditEventType, since, until time.Time) (domain.OutcomeCounts, error) {
	var rows []struct {
		Success bool
		Total   int64
	}

	q := r.window(ctx, identity, since).Select("success, count(*) as total")
	if eventType != "" {
		q = q.Where("event_type = ?", string(eventType))
	}
	if !until.IsZero() {
		q = q.Where("occurred_at < ?", until.UTC())
	}
	if err := q.Group("success").Scan(&rows).Error; err != nil {
		return domain.OutcomeCounts{}, fmt.Errorf("failed to count audit events: %w", err)
	}

	var counts domain.OutcomeCounts
	for _, row := range rows {
		if row.Success {
			counts.Success += row.Total
		} else {
			counts.Failure += row.Total
		}
	}
	return counts, nil
}

// DistinctLocations implements domain.AuditRepository
func (r *AuditRepositoryImpl) DistinctLocations(ctx context.Context, identity string, since time.Time) (int, error) {
	return r.distinct(ctx, identity, since, "location")
}

// DistinctIPs implements domain.AuditRepository
func (r *AuditRepositoryImpl) DistinctIPs(ctx context.Context, identity string, since time.Time) (int, error) {
	return r.distinct(ctx, identity, since, "ip_address")
}

// Series implements domain.AuditRepository
func (r *AuditRepositoryImpl) Series(ctx context.Context, identity string, since time.Time) ([]domain.AuditEvent, error) {
	var rows []DBSecurityEvent
	err := r.window(ctx, identity, since).Order("occurred_at ASC, seq ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load audit series: %w", err)
	}
	return eventsToDomain(rows)
}

// List implements domain.AuditRepository, newest first
func (r *AuditRepositoryImpl) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, int64, error) {
	q := r.db.WithContext(ctx).Model(&DBSecurityEvent{})
	if filter.Identity != "" {
		q = q.Where("identity = ?", filter.Identity)
	}
	if filter.EventType != "" {
		q = q.Where("event_type = ?", string(filter.EventType))
	}
	if filter.Success != nil {
		q = q.Where("success = ?", *filter.Success)
	}
	if !filter.Since.IsZero() {
		q = q.Where("occurred_at >= ?", filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		q = q.Where("occurred_at < ?", filter.Until.UTC())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit events: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []DBSecurityEvent
	err := q.Order("occurred_at DESC, seq DESC").Limit(limit).Offset(filter.Offset).Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit events: %w", err)
	}

	events, err := eventsToDomain(rows)
	return events, total, err
}

// Identities implements domain.AuditRepository
func (r *AuditRepositoryImpl) Identities(ctx context.Context, since time.Time) ([]string, error) {
	var identities []string
	err := r.db.WithContext(ctx).Model(&DBSecurityEvent{}).
		Where("occurred_at >= ?", since.UTC()).
		Distinct().
		Order("identity").
		Pluck("identity", &identities).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audit identities: %w", err)
	}
	return identities, nil
}

// FailureReasons implements domain.AuditRepository. An empty identity
// aggregates every identity.
func (r *AuditRepositoryImpl) FailureReasons(ctx context.Context, identity string, since time.Time) (map[string]int64, error) {
	var rows []struct {
		Reason string
		Total  int64
	}

	q := r.db.WithContext(ctx).Model(&DBSecurityEvent{}).
		Select("reason, count(*) as total").
		Where("success = ? AND occurred_at >= ?", false, since.UTC())
	if identity != "" {
		q = q.Where("identity = ?", identity)
	}
	if err := q.Group("reason").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate failure reasons: %w", err)
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		reason := row.Reason
		if reason == "" {
			reason = "unspecified"
		}
		out[reason] += row.Total
	}
	return out, nil
}

func (r *AuditRepositoryImpl) window(ctx context.Context, identity string, since time.Time) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&DBSecurityEvent{}).Where("occurred_at >= ?", since.UTC())
	if identity != "" {
		q = q.Where("identity = ?", identity)
	}
	return q
}

func (r *AuditRepositoryImpl) distinct(ctx context.Context, identity string, since time.Time, column string) (int, error) {
	var n int64
	err := r.window(ctx, identity, since).
		Where(column+" <> ?", "").
		Distinct(column).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count distinct %s: %w", column, err)
	}
	return int(n), nil
}

func eventToDB(e *domain.AuditEvent) (*DBSecurityEvent, error) {
	var meta string
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode audit metadata: %w", err)
		}
		meta = string(raw)
	}

	row := &DBSecurityEvent{
		EventID:         e.ID,
		EventType:       string(e.EventType),
		Identity:        e.Identity,
		Actor:           e.Actor,
		OccurredAt:      e.Timestamp.UTC(),
		IPAddress:       e.IPAddress,
		DeviceSignature: e.DeviceSignature,
		Location:        e.Location,
		Success:         e.Success,
		Reason:          e.Reason,
		FraudFlags:      strings.Join(e.FraudFlags, ","),
		RiskScore:       e.RiskScore,
		Amount:          e.Amount,
		Metadata:        meta,
	}
	if e.UserID != 0 {
		id := e.UserID
		row.UserID = &id
	}
	return row, nil
}

func eventsToDomain(rows []DBSecurityEvent) ([]domain.AuditEvent, error) {
	events := make([]domain.AuditEvent, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		e := domain.AuditEvent{
			ID:              row.EventID,
			EventType:       domain.AuditEventType(row.EventType),
			Identity:        row.Identity,
			Actor:           row.Actor,
			Timestamp:       row.OccurredAt.UTC(),
			IPAddress:       row.IPAddress,
			DeviceSignature: row.DeviceSignature,
			Location:        row.Location,
			Success:         row.Success,
			Reason:          row.Reason,
			RiskScore:       row.RiskScore,
			Amount:          row.Amount,
		}
		if row.UserID != nil {
			e.UserID = *row.UserID
		}
		if row.FraudFlags != "" {
			e.FraudFlags = strings.Split(row.FraudFlags, ",")
		}
		if row.Metadata != "" {
			if err := json.Unmarshal([]byte(row.Metadata), &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode audit metadata: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, nil
}
