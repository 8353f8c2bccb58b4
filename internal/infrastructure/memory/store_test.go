package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"login-risk-engine/internal/domain/risk"
	"login-risk-engine/internal/infrastructure/memory"
)

func TestBaselineStore_GetMissing(t *testing.T) {
	s := memory.NewBaselineStore()
	_, err := s.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, risk.ErrBaselineNotFound)
}

func TestBaselineStore_ReturnsCopies(t *testing.T) {
	s := memory.NewBaselineStore()
	ctx := context.Background()

	_, err := s.Update(ctx, "alice", func(b *risk.Baseline) error {
		b.Apply(risk.Observation{DeviceFingerprint: "fp-1", SeenAt: time.Now()})
		return nil
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	got.TrustedDevices[0] = "tampered"

	again, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"fp-1"}, again.TrustedDevices)
}

func TestBaselineStore_FailedUpdateLeavesBaseline(t *testing.T) {
	s := memory.NewBaselineStore()
	ctx := context.Background()

	_, err := s.Update(ctx, "alice", func(b *risk.Baseline) error {
		b.Apply(risk.Observation{DeviceFingerprint: "fp-1", SeenAt: time.Now()})
		return nil
	})
	require.NoError(t, err)

	_, err = s.Update(ctx, "alice", func(b *risk.Baseline) error {
		b.TrustedDevices = nil
		return fmt.Errorf("boom")
	})
	require.Error(t, err)

	got, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"fp-1"}, got.TrustedDevices)
}

func TestBaselineStore_ConcurrentUpdatesKeepAllDevices(t *testing.T) {
	s := memory.NewBaselineStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Update(ctx, "shared", func(b *risk.Baseline) error {
				b.Apply(risk.Observation{DeviceFingerprint: fmt.Sprintf("fp-%03d", i), SeenAt: time.Now()})
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, got.TrustedDevices, 100)
	assert.EqualValues(t, 100, got.Version)
}

func TestAttemptStore_SetOutcomeIsCompareAndSet(t *testing.T) {
	s := memory.NewAttemptStore()
	ctx := context.Background()

	rec := &risk.AttemptRecord{AttemptID: "a1", IdentityKey: "alice", Sequence: 1, FinalOutcome: risk.OutcomeOTPPending}
	require.NoError(t, s.Create(ctx, rec))
	assert.ErrorIs(t, s.Create(ctx, rec), memory.ErrDuplicateAttempt)

	now := time.Now()
	require.NoError(t, s.SetOutcome(ctx, "a1", risk.OutcomeOTPPending, risk.OutcomeOTPFailed, now))
	assert.ErrorIs(t, s.SetOutcome(ctx, "a1", risk.OutcomeOTPPending, risk.OutcomeOTPPassed, now), risk.ErrOutcomeAlreadyRecorded)
	assert.ErrorIs(t, s.SetOutcome(ctx, "zz", risk.OutcomeOTPPending, risk.OutcomeOTPFailed, now), risk.ErrAttemptNotFound)

	got, err := s.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, risk.OutcomeOTPFailed, got.FinalOutcome)
}

func TestAttemptStore_SequenceIsUniquePerIdentity(t *testing.T) {
	s := memory.NewAttemptStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &risk.AttemptRecord{AttemptID: "a1", IdentityKey: "alice", Sequence: 1}))
	assert.ErrorIs(t, s.Create(ctx, &risk.AttemptRecord{AttemptID: "a2", IdentityKey: "alice", Sequence: 1}), risk.ErrSequenceConflict)
	assert.NoError(t, s.Create(ctx, &risk.AttemptRecord{AttemptID: "b1", IdentityKey: "bob", Sequence: 1}))

	_, err := s.GetByID(ctx, "a2")
	assert.ErrorIs(t, err, risk.ErrAttemptNotFound)
}

func TestAttemptStore_ListNewestFirst(t *testing.T) {
	s := memory.NewAttemptStore()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.Create(ctx, &risk.AttemptRecord{AttemptID: fmt.Sprintf("a%d", i), IdentityKey: "alice", Sequence: int64(i)}))
	}

	list, err := s.ListByIdentity(ctx, "alice", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a3", list[0].AttemptID)
	assert.Equal(t, "a2", list[1].AttemptID)

	latest, err := s.LatestByIdentity(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 3, latest.Sequence)

	none, err := s.LatestByIdentity(ctx, "bob")
	require.NoError(t, err)
	assert.Nil(t, none)
}
