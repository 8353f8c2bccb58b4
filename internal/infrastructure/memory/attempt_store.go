// Package memory provides in-process stores used in standalone mode and tests.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"login-risk-engine/internal/domain/risk"
)

// ErrDuplicateAttempt is returned when an attempt ID is appended twice
var ErrDuplicateAttempt = errors.New("attempt already recorded")

// AttemptStore implements risk.AttemptRepository
type AttemptStore struct {
	mu sync.RWMutex

	records map[string]*risk.AttemptRecord
	// identity -> attempt IDs in append order
	byIdentity map[string][]string
	// identity -> sequences in use
	sequences map[string]map[int64]struct{}
}

// NewAttemptStore creates an empty store
func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		records:    make(map[string]*risk.AttemptRecord),
		byIdentity: make(map[string][]string),
		sequences:  make(map[string]map[int64]struct{}),
	}
}

// Create appends a record. (identity, sequence) is unique as in the Postgres schema.
func (s *AttemptStore) Create(ctx context.Context, record *risk.AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.AttemptID]; exists {
		return ErrDuplicateAttempt
	}
	seqs := s.sequences[record.IdentityKey]
	if seqs == nil {
		seqs = make(map[int64]struct{})
		s.sequences[record.IdentityKey] = seqs
	}
	if _, taken := seqs[record.Sequence]; taken {
		return risk.ErrSequenceConflict
	}
	seqs[record.Sequence] = struct{}{}
	s.records[record.AttemptID] = copyRecord(record)
	s.byIdentity[record.IdentityKey] = append(s.byIdentity[record.IdentityKey], record.AttemptID)
	return nil
}

// GetByID retrieves a record
func (s *AttemptStore) GetByID(ctx context.Context, attemptID string) (*risk.AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[attemptID]
	if !ok {
		return nil, risk.ErrAttemptNotFound
	}
	return copyRecord(r), nil
}

// ListByIdentity returns newest first
func (s *AttemptStore) ListByIdentity(ctx context.Context, identityKey string, limit int) ([]*risk.AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byIdentity[identityKey]
	out := make([]*risk.AttemptRecord, 0, min(len(ids), limit))
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, copyRecord(s.records[ids[i]]))
	}
	return out, nil
}

// LatestByIdentity returns the newest record or nil
func (s *AttemptStore) LatestByIdentity(ctx context.Context, identityKey string) (*risk.AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byIdentity[identityKey]
	if len(ids) == 0 {
		return nil, nil
	}
	return copyRecord(s.records[ids[len(ids)-1]]), nil
}

// SetOutcome is a compare-and-set on FinalOutcome
func (s *AttemptStore) SetOutcome(ctx context.Context, attemptID string, from, to risk.Outcome, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[attemptID]
	if !ok {
		return risk.ErrAttemptNotFound
	}
	if r.FinalOutcome != from {
		return risk.ErrOutcomeAlreadyRecorded
	}
	r.FinalOutcome = to
	r.OutcomeAt = &at
	return nil
}

func copyRecord(r *risk.AttemptRecord) *risk.AttemptRecord {
	c := *r
	if r.OutcomeAt != nil {
		at := *r.OutcomeAt
		c.OutcomeAt = &at
	}
	return &c
}
