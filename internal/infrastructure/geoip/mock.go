package geoip

import (
	"context"
	"fmt"
	"net/netip"
)

type mockRange struct {
	prefix netip.Prefix
	result Result
}

// MockResolver answers from a fixed table of demo ranges. Unlisted addresses
// resolve to Mumbai on a residential ISP.
type MockResolver struct {
	ranges   []mockRange
	fallback Result
}

// NewMockResolver creates the demo backend
func NewMockResolver() *MockResolver {
	return &MockResolver{
		ranges: []mockRange{
			{netip.MustParsePrefix("185.220.100.0/22"), Result{
				Latitude: 50.1109, Longitude: 8.6821, HasCoords: true,
				Country: "DE", City: "Frankfurt", ISP: "Tor Exit", IsTor: true, IsHosting: true,
			}},
			{netip.MustParsePrefix("198.51.100.0/24"), Result{
				Latitude: 37.7749, Longitude: -122.4194, HasCoords: true,
				Country: "US", City: "San Francisco", ISP: "NordVPN", IsVPN: true,
			}},
			{netip.MustParsePrefix("203.0.113.0/24"), Result{
				Latitude: 6.5244, Longitude: 3.3792, HasCoords: true,
				Country: "NG", City: "Lagos", ISP: "Hosting Ltd", IsHosting: true,
			}},
			{netip.MustParsePrefix("192.0.2.0/24"), Result{
				Latitude: 43.6532, Longitude: -79.3832, HasCoords: true,
				Country: "CA", City: "Toronto", ISP: "Rogers",
			}},
			{netip.MustParsePrefix("45.90.28.0/24"), Result{
				Latitude: 55.7558, Longitude: 37.6173, HasCoords: true,
				Country: "RU", City: "Moscow", ISP: "Proxy Networks", IsProxy: true,
			}},
		},
		fallback: Result{
			Latitude: 19.0760, Longitude: 72.8777, HasCoords: true,
			Country: "IN", City: "Mumbai", ISP: "Reliance Jio",
		},
	}
}

// Resolve implements the IP lookup
func (m *MockResolver) Resolve(ctx context.Context, ip string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}
	addr = addr.Unmap()

	res := m.fallback
	for _, r := range m.ranges {
		if r.prefix.Contains(addr) {
			res = r.result
			break
		}
	}
	res.IP = ip
	return &res, nil
}
