package geoip

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Reader resolves IPs from MaxMind GeoIP2 City and Anonymous-IP databases
type Reader struct {
	city *geoip2.Reader
	anon *geoip2.Reader
}

// Open loads the databases. anonymousPath may be empty, in which case
// anonymizer flags are never set.
func Open(cityPath, anonymousPath string) (*Reader, error) {
	city, err := geoip2.Open(cityPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open city database: %w", err)
	}
	r := &Reader{city: city}
	if anonymousPath != "" {
		anon, err := geoip2.Open(anonymousPath)
		if err != nil {
			city.Close()
			return nil, fmt.Errorf("failed to open anonymous-ip database: %w", err)
		}
		r.anon = anon
	}
	return r, nil
}

// Resolve implements the IP lookup. The databases are memory mapped so the
// call does not block on I/O; ctx is only checked up front.
func (r *Reader) Resolve(ctx context.Context, ip string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}

	rec, err := r.city.City(parsed)
	if err != nil {
		return nil, fmt.Errorf("city lookup: %w", err)
	}

	res := &Result{
		IP:      ip,
		Country: rec.Country.IsoCode,
		City:    rec.City.Names["en"],
	}
	if rec.Location.Latitude != 0 || rec.Location.Longitude != 0 {
		res.Latitude = rec.Location.Latitude
		res.Longitude = rec.Location.Longitude
		res.HasCoords = true
	}

	if r.anon != nil {
		anon, err := r.anon.AnonymousIP(parsed)
		if err != nil {
			return nil, fmt.Errorf("anonymous-ip lookup: %w", err)
		}
		res.IsVPN = anon.IsAnonymousVPN
		res.IsTor = anon.IsTorExitNode
		res.IsProxy = anon.IsPublicProxy || anon.IsResidentialProxy
		res.IsHosting = anon.IsHostingProvider
	}

	if res.Country == "" && !res.HasCoords {
		return nil, ErrNotFound
	}
	return res, nil
}

// Close releases both databases
func (r *Reader) Close() error {
	var errs []error
	if err := r.city.Close(); err != nil {
		errs = append(errs, err)
	}
	if r.anon != nil {
		if err := r.anon.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
