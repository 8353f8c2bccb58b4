package memory

import (
	"context"
	"sync"

	"login-risk-engine/internal/domain/risk"
	"login-risk-engine/internal/pkg/syncutil"
)

// BaselineStore implements risk.BaselineRepository.
// Updates for one identity run under that identity's shard lock, so a
// read-modify-write never interleaves with another for the same key.
type BaselineStore struct {
	mu        sync.RWMutex
	baselines map[string]*risk.Baseline
	locks     syncutil.ShardedMutex
}

// NewBaselineStore creates an empty store
func NewBaselineStore() *BaselineStore {
	return &BaselineStore{baselines: make(map[string]*risk.Baseline)}
}

// Get returns a copy of the stored baseline
func (s *BaselineStore) Get(ctx context.Context, identityKey string) (*risk.Baseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.baselines[identityKey]
	if !ok {
		return nil, risk.ErrBaselineNotFound
	}
	return b.Clone(), nil
}

// Update applies fn atomically per identity
func (s *BaselineStore) Update(ctx context.Context, identityKey string, fn func(*risk.Baseline) error) (*risk.Baseline, error) {
	unlock := s.locks.Lock(identityKey)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	current, ok := s.baselines[identityKey]
	s.mu.RUnlock()

	next := &risk.Baseline{IdentityKey: identityKey}
	if ok {
		next = current.Clone()
	}
	if err := fn(next); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.baselines[identityKey] = next
	s.mu.Unlock()

	return next.Clone(), nil
}
