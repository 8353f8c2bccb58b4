package telecom

import (
	"context"
	"strings"
	"time"
)

// MockClient serves fixed demo scenarios keyed off the last digits of the number:
//
//	...999  unknown VoIP carrier, ported 3 days ago, SIM swapped 2 days ago
//	...888  VI, ported 20 days ago, SIM swapped 20 days ago
//	...666  Google Voice VoIP line, not ported
//	...777  Jio, not ported
//	other   Airtel, not ported
type MockClient struct {
	now func() time.Time
}

// NewMockClient creates the demo backend
func NewMockClient(now func() time.Time) *MockClient {
	if now == nil {
		now = time.Now
	}
	return &MockClient{now: now}
}

// LookupCarrier implements the carrier lookup
func (m *MockClient) LookupCarrier(ctx context.Context, e164 string) (*CarrierInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info := &CarrierInfo{PhoneNumber: e164, Valid: true, LineType: LineTypeMobile}
	switch {
	case strings.HasSuffix(e164, "999"):
		info.CarrierName = "Unknown VoIP"
		info.LineType = LineTypeVoIP
		info.Ported = true
		info.PortedAt = m.ago(3 * 24 * time.Hour)
	case strings.HasSuffix(e164, "888"):
		info.CarrierName = "VI"
		info.Ported = true
		info.PortedAt = m.ago(20 * 24 * time.Hour)
	case strings.HasSuffix(e164, "666"):
		info.CarrierName = "Google Voice"
		info.LineType = LineTypeVoIP
	case strings.HasSuffix(e164, "777"):
		info.CarrierName = "Jio"
	default:
		info.CarrierName = "Airtel"
	}
	return info, nil
}

// LookupSimSwap implements the SIM swap lookup
func (m *MockClient) LookupSimSwap(ctx context.Context, e164 string) (*SimSwapInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info := &SimSwapInfo{PhoneNumber: e164}
	switch {
	case strings.HasSuffix(e164, "999"):
		info.Swapped = true
		info.SwappedAt = m.ago(2 * 24 * time.Hour)
	case strings.HasSuffix(e164, "888"):
		info.Swapped = true
		info.SwappedAt = m.ago(20 * 24 * time.Hour)
	}
	return info, nil
}

func (m *MockClient) ago(d time.Duration) *time.Time {
	t := m.now().Add(-d).UTC()
	return &t
}
