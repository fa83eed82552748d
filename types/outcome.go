// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package types

import (
	"net/netip"
	"sort"
)

// Outcome is the immutable result of resolving a single candidate name. It
// gets created by a resolution task on completion and is owned by the result
// aggregator after handoff.
type Outcome struct {
	Name      string       `json:"name"`            // the candidate name, lower-case, without trailing dot.
	Addresses []netip.Addr `json:"ips,omitempty"`   // sorted and deduplicated.
	Chain     []string     `json:"chain,omitempty"` // alias names traversed, in order.
	Status    Status       `json:"status"`
	err       error        // optional error details for non-resolved outcomes
}

// NewOutcome returns a new Outcome, with its addresses sorted (IPv4 before
// IPv6) and deduplicated. The passed slices are copied.
func NewOutcome(name string, status Status, addrs []netip.Addr, chain []string, err error) Outcome {
	o := Outcome{
		Name:   name,
		Status: status,
		err:    err,
	}
	if len(addrs) > 0 {
		o.Addresses = SortedAddrs(addrs)
	}
	if len(chain) > 0 {
		o.Chain = append([]string(nil), chain...)
	}
	return o
}

// Err returns the optional error reason for a non-resolved outcome.
func (o Outcome) Err() error { return o.err }

// IPs returns the addresses in their textual forms, keeping their sort order.
func (o Outcome) IPs() []string {
	ips := make([]string, 0, len(o.Addresses))
	for _, addr := range o.Addresses {
		ips = append(ips, addr.String())
	}
	return ips
}

// Subdomain returns the output record for this outcome.
func (o Outcome) Subdomain() Subdomain {
	return Subdomain{Name: o.Name, IPs: o.IPs()}
}

// Subdomain is a discovered name together with its resolved addresses, as
// consumed by the output boundary. The field names are part of the output
// format contract.
type Subdomain struct {
	Name string   `json:"name"`
	IPs  []string `json:"ips"`
}

// SortedAddrs returns a new slice with the specified addresses sorted and
// duplicates removed. IPv4 addresses sort before IPv6 addresses. IPv4-mapped
// IPv6 addresses are unmapped first.
func SortedAddrs(addrs []netip.Addr) []netip.Addr {
	sorted := make([]netip.Addr, 0, len(addrs))
	for _, addr := range addrs {
		if !addr.IsValid() {
			continue
		}
		sorted = append(sorted, addr.Unmap())
	}
	sort.Slice(sorted, func(a, b int) bool {
		return sorted[a].Less(sorted[b])
	})
	uniq := sorted[:0]
	for idx, addr := range sorted {
		if idx > 0 && addr == sorted[idx-1] {
			continue
		}
		uniq = append(uniq, addr)
	}
	return uniq
}
