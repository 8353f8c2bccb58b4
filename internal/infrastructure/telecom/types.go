// Package telecom looks up carrier, porting and SIM-swap data for phone numbers.
package telecom

import (
	"errors"
	"time"
)

// Line types reported by the lookup service
const (
	LineTypeMobile   = "mobile"
	LineTypeLandline = "landline"
	LineTypeVoIP     = "voip"
)

var (
	ErrLookupFailed = errors.New("telecom lookup failed")
	ErrUnavailable  = errors.New("telecom lookup unavailable")
)

// CarrierInfo describes the carrier currently serving a number
type CarrierInfo struct {
	PhoneNumber string
	Valid       bool
	CarrierName string
	LineType    string
	Ported      bool
	PortedAt    *time.Time
}

// SimSwapInfo describes the most recent SIM replacement for a number
type SimSwapInfo struct {
	PhoneNumber string
	Swapped     bool
	SwappedAt   *time.Time
}
