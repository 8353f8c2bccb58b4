package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"login-risk-engine/internal/domain/risk"
)

// ErrDuplicateAttempt is returned when an attempt ID already exists
var ErrDuplicateAttempt = errors.New("attempt already recorded")

// AttemptRecordModel is the database model for ledger entries.
// The composite score is stored as double precision and signals as jsonb so a
// stored record replays to exactly the same decision.
type AttemptRecordModel struct {
	AttemptID      string    `gorm:"type:varchar(64);primaryKey"`
	IdentityKey    string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_login_attempts_identity_seq,priority:1"`
	Sequence       int64     `gorm:"not null;uniqueIndex:idx_login_attempts_identity_seq,priority:2"`
	Decision       string    `gorm:"type:varchar(20);index;not null"`
	CompositeScore float64   `gorm:"type:double precision;not null"`
	OverrideReason string    `gorm:"type:varchar(100)"`
	Signals        string    `gorm:"type:jsonb;not null"`
	FinalOutcome   string    `gorm:"type:varchar(20);index;not null"`
	ComputedAt     time.Time `gorm:"not null"`
	RecordedAt     time.Time `gorm:"not null"`
	OutcomeAt      *time.Time
}

// TableName returns the table name for ledger entries
func (AttemptRecordModel) TableName() string {
	return "login_attempts"
}

// AttemptRepository implements risk.AttemptRepository
type AttemptRepository struct {
	db *gorm.DB
}

// NewAttemptRepository creates a new attempt repository
func NewAttemptRepository(client *Client) *AttemptRepository {
	return &AttemptRepository{db: client.DB()}
}

// Create inserts a ledger entry
func (r *AttemptRepository) Create(ctx context.Context, record *risk.AttemptRecord) error {
	model, err := recordToModel(record)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return r.duplicateError(ctx, record)
		}
		return err
	}
	return nil
}

// duplicateError tells a reused attempt ID apart from another instance having
// taken the same (identity, sequence) slot first
func (r *AttemptRepository) duplicateError(ctx context.Context, record *risk.AttemptRecord) error {
	var n int64
	err := r.db.WithContext(ctx).Model(&AttemptRecordModel{}).
		Where("attempt_id = ?", record.AttemptID).
		Count(&n).Error
	if err != nil {
		return fmt.Errorf("failed to classify duplicate attempt: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateAttempt, record.AttemptID)
	}
	return fmt.Errorf("%w: %s #%d", risk.ErrSequenceConflict, record.IdentityKey, record.Sequence)
}

// GetByID retrieves a ledger entry by attempt ID
func (r *AttemptRepository) GetByID(ctx context.Context, attemptID string) (*risk.AttemptRecord, error) {
	var model AttemptRecordModel
	if err := r.db.WithContext(ctx).First(&model, "attempt_id = ?", attemptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, risk.ErrAttemptNotFound
		}
		return nil, err
	}
	return modelToRecord(&model)
}

// ListByIdentity returns an identity's entries, newest first
func (r *AttemptRepository) ListByIdentity(ctx context.Context, identityKey string, limit int) ([]*risk.AttemptRecord, error) {
	var models []AttemptRecordModel
	if err := r.db.WithContext(ctx).
		Where("identity_key = ?", identityKey).
		Order("sequence DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	records := make([]*risk.AttemptRecord, 0, len(models))
	for i := range models {
		rec, err := modelToRecord(&models[i])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// LatestByIdentity returns the newest entry, or nil when the identity has none
func (r *AttemptRepository) LatestByIdentity(ctx context.Context, identityKey string) (*risk.AttemptRecord, error) {
	records, err := r.ListByIdentity(ctx, identityKey, 1)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

// SetOutcome updates the outcome only while it still equals from
func (r *AttemptRepository) SetOutcome(ctx context.Context, attemptID string, from, to risk.Outcome, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&AttemptRecordModel{}).
		Where("attempt_id = ? AND final_outcome = ?", attemptID, string(from)).
		Updates(map[string]any{"final_outcome": string(to), "outcome_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&AttemptRecordModel{}).Where("attempt_id = ?", attemptID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return risk.ErrAttemptNotFound
	}
	return risk.ErrOutcomeAlreadyRecorded
}

func recordToModel(rec *risk.AttemptRecord) (*AttemptRecordModel, error) {
	if rec.Assessment == nil {
		return nil, fmt.Errorf("attempt %s has no assessment", rec.AttemptID)
	}
	signals, err := json.Marshal(rec.Assessment.Signals)
	if err != nil {
		return nil, fmt.Errorf("failed to encode signals: %w", err)
	}
	return &AttemptRecordModel{
		AttemptID:      rec.AttemptID,
		IdentityKey:    rec.IdentityKey,
		Sequence:       rec.Sequence,
		Decision:       string(rec.Assessment.Decision),
		CompositeScore: rec.Assessment.CompositeScore,
		OverrideReason: rec.Assessment.OverrideReason,
		Signals:        string(signals),
		FinalOutcome:   string(rec.FinalOutcome),
		ComputedAt:     rec.Assessment.ComputedAt,
		RecordedAt:     rec.RecordedAt,
		OutcomeAt:      rec.OutcomeAt,
	}, nil
}

func modelToRecord(m *AttemptRecordModel) (*risk.AttemptRecord, error) {
	var signals map[string]risk.Signal
	if err := json.Unmarshal([]byte(m.Signals), &signals); err != nil {
		return nil, fmt.Errorf("failed to decode signals for %s: %w", m.AttemptID, err)
	}
	return &risk.AttemptRecord{
		AttemptID:   m.AttemptID,
		IdentityKey: m.IdentityKey,
		Sequence:    m.Sequence,
		Assessment: &risk.RiskAssessment{
			AttemptID:      m.AttemptID,
			Signals:        signals,
			CompositeScore: m.CompositeScore,
			Decision:       risk.Decision(m.Decision),
			OverrideReason: m.OverrideReason,
			ComputedAt:     m.ComputedAt,
		},
		FinalOutcome: risk.Outcome(m.FinalOutcome),
		RecordedAt:   m.RecordedAt,
		OutcomeAt:    m.OutcomeAt,
	}, nil
}
