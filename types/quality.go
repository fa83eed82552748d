// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package types

import (
	"fmt"
	"net/netip"
)

// Quality indicates the reachability "quality" of a resolved address, such as
// unverified, verified, et cetera.
type Quality int

// The verification qualities of a network address.
const (
	Unverified Quality = iota // address neither in verification nor verified.
	Verifying                 // address in verification.
	Invalid                   // address could not be successfully verified.
	Verified                  // address successfully verified.
)

// String returns the clear-text representation of a Quality value.
func (q Quality) String() string {
	switch q {
	case Unverified:
		return "unverified"
	case Verifying:
		return "verifying"
	case Verified:
		return "verified"
	case Invalid:
		return "invalid"
	}
	return fmt.Sprintf("Quality(%d)", q)
}

// IsPending returns true as long as an address hasn't been either successfully
// or unsuccessfully verified.
func (q Quality) IsPending() bool {
	switch q {
	case Unverified, Verifying:
		return true
	default:
		return false
	}
}

// Verdict is the (intermediate or final) verification verdict about a single
// address.
type Verdict struct {
	Address netip.Addr `json:"address"`
	Quality Quality    `json:"quality"`
	err     error      // optional error details for invalid addresses
}

// NewVerdict returns a verdict with the specified quality and optional error
// reason.
func NewVerdict(addr netip.Addr, q Quality, err error) Verdict {
	return Verdict{Address: addr, Quality: q, err: err}
}

// Err returns an optional error that occurred while trying to verify an
// address.
func (v Verdict) Err() error { return v.err }

// WithQuality returns a new verdict for the same address.
func (v Verdict) WithQuality(q Quality, err error) Verdict {
	return Verdict{Address: v.Address, Quality: q, err: err}
}
