// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package types

import (
	"fmt"
	"strings"
)

// Status is the terminal classification of a single resolution attempt.
type Status int

// The terminal statuses of resolving a candidate name.
const (
	Resolved  Status = iota // resolved into at least one address.
	NXDomain                // authoritative “no such name” (or no data).
	Timeout                 // retries exhausted on timeouts.
	Error                   // retries exhausted on other errors, or permanent failure.
	CNAMELoop               // alias chain revisits a name.
	MaxDepth                // alias chain longer than allowed.
)

// Statuses lists all statuses in their natural order.
var Statuses = []Status{Resolved, NXDomain, Timeout, Error, CNAMELoop, MaxDepth}

var statusNames = map[Status]string{
	Resolved:  "resolved",
	NXDomain:  "nxdomain",
	Timeout:   "timeout",
	Error:     "error",
	CNAMELoop: "cname-loop",
	MaxDepth:  "max-depth",
}

// String returns the clear-text representation of a Status value.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", s)
}

// MarshalText renders a Status in its clear-text form, such as in JSON
// diagnostics.
func (s Status) MarshalText() ([]byte, error) {
	if _, ok := statusNames[s]; !ok {
		return nil, fmt.Errorf("invalid status %d", s)
	}
	return []byte(s.String()), nil
}

// UnmarshalText parses the clear-text form of a Status.
func (s *Status) UnmarshalText(text []byte) error {
	t := strings.ToLower(string(text))
	for status, name := range statusNames {
		if name == t {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", string(text))
}

// IsFound returns true only for outcomes that count as discovered names.
func (s Status) IsFound() bool {
	return s == Resolved
}

// IsTransient returns true for statuses that were reached only after
// exhausting retries, as opposed to authoritative or protocol verdicts.
func (s Status) IsTransient() bool {
	switch s {
	case Timeout, Error:
		return true
	default:
		return false
	}
}
