// Package geoip resolves client IPs to a location and anonymizer flags.
package geoip

import "errors"

var (
	ErrInvalidIP = errors.New("invalid ip address")
	ErrNotFound  = errors.New("ip address not found in database")
)

// Result is what is known about one IP address
type Result struct {
	IP        string
	Latitude  float64
	Longitude float64
	HasCoords bool
	Country   string
	City      string
	ISP       string

	IsVPN     bool
	IsTor     bool
	IsProxy   bool
	IsHosting bool
}
