package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"login-risk-engine/internal/domain/risk"
)

const (
	baselineKeyPrefix = "risk:baseline:"
	maxUpdateRetries  = 50
)

var ErrUpdateContention = errors.New("baseline update retries exhausted")

// BaselineStore keeps one JSON document per identity and updates it with
// WATCH/MULTI so concurrent promotions never lose a trusted device.
type BaselineStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewBaselineStore creates a Redis-backed baseline store. A zero ttl keeps baselines forever.
func NewBaselineStore(client *Client, ttl time.Duration) *BaselineStore {
	return &BaselineStore{rdb: client.Redis(), ttl: ttl}
}

func baselineKey(identityKey string) string {
	return baselineKeyPrefix + identityKey
}

// Get returns the baseline or risk.ErrBaselineNotFound
func (s *BaselineStore) Get(ctx context.Context, identityKey string) (*risk.Baseline, error) {
	raw, err := s.rdb.Get(ctx, baselineKey(identityKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, risk.ErrBaselineNotFound
		}
		return nil, fmt.Errorf("failed to get baseline: %w", err)
	}
	return decodeBaseline(raw)
}

// Update applies fn to the current baseline (or an empty one) and writes the
// result only if the key did not change in between. Conflicts are retried.
func (s *BaselineStore) Update(ctx context.Context, identityKey string, fn func(*risk.Baseline) error) (*risk.Baseline, error) {
	key := baselineKey(identityKey)
	var updated *risk.Baseline

	txf := func(tx *redis.Tx) error {
		current := &risk.Baseline{IdentityKey: identityKey}
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if current, err = decodeBaseline(raw); err != nil {
				return err
			}
		}

		if err := fn(current); err != nil {
			return err
		}
		data, err := json.Marshal(current)
		if err != nil {
			return fmt.Errorf("failed to encode baseline: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err == nil {
			updated = current
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUpdateContention, identityKey)
}

func decodeBaseline(raw []byte) (*risk.Baseline, error) {
	var b risk.Baseline
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("failed to decode baseline: %w", err)
	}
	return &b, nil
}
