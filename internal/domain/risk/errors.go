package risk

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid risk configuration")

	// Request errors
	ErrMalformedAttempt = errors.New("malformed attempt context")
	ErrInvalidOutcome   = errors.New("invalid final outcome")

	// Provider errors, recovered by the aggregator
	ErrProviderTimeout = errors.New("signal provider timed out")
	ErrProviderError   = errors.New("signal provider failed")

	// Ledger errors
	ErrAttemptNotFound        = errors.New("attempt record not found")
	ErrSequenceConflict       = errors.New("attempt sequence already taken")
	ErrOutcomeAlreadyRecorded = errors.New("final outcome already recorded")
	ErrOutcomeNotExpected     = errors.New("attempt does not accept an outcome")
	ErrBaselineNotFound       = errors.New("identity baseline not found")
)

func wrapMalformed(msg string) error {
	return fmt.Errorf("%w: %s", ErrMalformedAttempt, msg)
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
