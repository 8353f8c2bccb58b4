package risk

import (
	"context"
	"time"
)

// AttemptRepository stores append-only attempt records
type AttemptRepository interface {
	// Create appends a new record.
	// Returns ErrSequenceConflict when the identity already holds record.Sequence.
	Create(ctx context.Context, record *AttemptRecord) error

	// GetByID retrieves a record by attempt ID
	GetByID(ctx context.Context, attemptID string) (*AttemptRecord, error)

	// ListByIdentity returns an identity's records, newest first
	ListByIdentity(ctx context.Context, identityKey string, limit int) ([]*AttemptRecord, error)

	// LatestByIdentity returns the newest record for an identity, or nil when there is none
	LatestByIdentity(ctx context.Context, identityKey string) (*AttemptRecord, error)

	// SetOutcome moves FinalOutcome from `from` to `to`.
	// Returns ErrOutcomeAlreadyRecorded when the current outcome is not `from`.
	SetOutcome(ctx context.Context, attemptID string, from, to Outcome, at time.Time) error
}

// BaselineRepository stores identity baselines
type BaselineRepository interface {
	// Get returns a copy of the baseline or ErrBaselineNotFound
	Get(ctx context.Context, identityKey string) (*Baseline, error)

	// Update applies fn to the current baseline (a fresh one when absent) as a
	// single atomic read-modify-write and returns the stored result
	Update(ctx context.Context, identityKey string, fn func(*Baseline) error) (*Baseline, error)
}
