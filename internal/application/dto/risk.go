package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"login-risk-engine/internal/domain/risk"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// KeystrokeSampleRequest is one timed key press from the login form
type KeystrokeSampleRequest struct {
	Key        string `json:"key" validate:"max=32"`
	PressedAt  int64  `json:"pressedAt" validate:"gte=0"`
	ReleasedAt int64  `json:"releasedAt" validate:"gtefield=PressedAt"`
}

// AssessAttemptRequest is the body of POST /risk/assess
type AssessAttemptRequest struct {
	IdentityKey       string                   `json:"identityKey" validate:"required,max=320"`
	PhoneNumber       string                   `json:"phoneNumber,omitempty"`
	DeviceFingerprint string                   `json:"deviceFingerprint,omitempty" validate:"max=256"`
	DeviceClass       string                   `json:"deviceClass,omitempty" validate:"omitempty,oneof=mobile desktop tablet"`
	ClientIP          string                   `json:"clientIp" validate:"required,ip"`
	TypingSamples     []KeystrokeSampleRequest `json:"typingSamples,omitempty" validate:"max=2000,dive"`
}

// Validate checks the request and wraps failures in risk.ErrMalformedAttempt
func (r *AssessAttemptRequest) Validate() error {
	r.IdentityKey = strings.TrimSpace(r.IdentityKey)
	r.ClientIP = strings.TrimSpace(r.ClientIP)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	return validationError(validate.Struct(r))
}

// ToAttempt converts the request to the domain attempt
func (r *AssessAttemptRequest) ToAttempt(receivedAt time.Time) *risk.Attempt {
	samples := make([]risk.KeystrokeSample, 0, len(r.TypingSamples))
	for _, s := range r.TypingSamples {
		samples = append(samples, risk.KeystrokeSample{Key: s.Key, PressedAt: s.PressedAt, ReleasedAt: s.ReleasedAt})
	}
	return &risk.Attempt{
		IdentityKey:       r.IdentityKey,
		PhoneNumber:       r.PhoneNumber,
		DeviceFingerprint: r.DeviceFingerprint,
		DeviceClass:       r.DeviceClass,
		ClientIP:          r.ClientIP,
		TypingSamples:     samples,
		ReceivedAt:        receivedAt,
	}
}

// RecordOutcomeRequest is the body of POST /risk/attempt-outcome
type RecordOutcomeRequest struct {
	AttemptID    string `json:"attemptId" validate:"required"`
	FinalOutcome string `json:"finalOutcome" validate:"required,oneof=otp_passed otp_failed otp_abandoned"`
}

// Validate checks the request and wraps failures in risk.ErrMalformedAttempt
func (r *RecordOutcomeRequest) Validate() error {
	return validationError(validate.Struct(r))
}

// ErrorResponse is the error envelope of every endpoint
type ErrorResponse struct {
	Error string `json:"error"`
}

// AttemptListResponse lists an identity's attempts
type AttemptListResponse struct {
	IdentityKey string                `json:"identityKey"`
	Attempts    []*risk.AttemptRecord `json:"attempts"`
	Count       int                   `json:"count"`
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", risk.ErrMalformedAttempt, err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", risk.ErrMalformedAttempt, strings.Join(parts, "; "))
}
