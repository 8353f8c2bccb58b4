package telecom

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
)

// Config holds the lookup API settings
type Config struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	Timeout    time.Duration
	RetryCount int

	// Breaker opens after FailureThreshold consecutive failures and stays open for OpenTimeout
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// Client calls the carrier lookup API through a circuit breaker
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
}

type carrierResponse struct {
	PhoneNumber string `json:"phone_number"`
	Valid       bool   `json:"valid"`
	Carrier     struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"carrier"`
	Porting struct {
		Ported   bool       `json:"ported"`
		PortDate *time.Time `json:"port_date"`
	} `json:"porting"`
}

type simSwapResponse struct {
	PhoneNumber string     `json:"phone_number"`
	Swapped     bool       `json:"swapped"`
	SwapDate    *time.Time `json:"swap_date"`
}

// NewClient creates a lookup client
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(50*time.Millisecond).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.AccountSID != "" {
		httpClient.SetBasicAuth(cfg.AccountSID, cfg.AuthToken)
	}

	threshold := cfg.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "telecom-lookup",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	})

	return &Client{http: httpClient, breaker: breaker}
}

// LookupCarrier returns carrier and porting data for an E.164 number
func (c *Client) LookupCarrier(ctx context.Context, e164 string) (*CarrierInfo, error) {
	var out carrierResponse
	if err := c.get(ctx, "/v1/lookup/{number}", e164, &out); err != nil {
		return nil, err
	}
	return &CarrierInfo{
		PhoneNumber: e164,
		Valid:       out.Valid,
		CarrierName: out.Carrier.Name,
		LineType:    out.Carrier.Type,
		Ported:      out.Porting.Ported,
		PortedAt:    out.Porting.PortDate,
	}, nil
}

// LookupSimSwap returns the latest SIM swap for an E.164 number
func (c *Client) LookupSimSwap(ctx context.Context, e164 string) (*SimSwapInfo, error) {
	var out simSwapResponse
	if err := c.get(ctx, "/v1/sim-swap/{number}", e164, &out); err != nil {
		return nil, err
	}
	return &SimSwapInfo{
		PhoneNumber: e164,
		Swapped:     out.Swapped,
		SwappedAt:   out.SwapDate,
	}, nil
}

// State reports the breaker state, e.g. for readiness output
func (c *Client) State() string {
	return c.breaker.State().String()
}

func (c *Client) get(ctx context.Context, path, number string, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetPathParam("number", number).
			SetResult(out).
			Get(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode())
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
