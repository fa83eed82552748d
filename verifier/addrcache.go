// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package verifier

import (
	"net/netip"
	"sync"

	"github.com/siemens/subdig/types"
)

// AddressCache caches address verdicts so that unnecessary duplicate address
// validations can be avoided, yet validation results distributed at once to
// all names pending in verification.
type AddressCache struct {
	mu sync.Mutex
	m  map[netip.Addr]qualityUpdateConsumers // IP address -> list of pending name consumers
}

// NewAddressCache returns a new AddressCache object.
func NewAddressCache() *AddressCache {
	return &AddressCache{
		m: map[netip.Addr]qualityUpdateConsumers{},
	}
}

// qualityUpdateConsumers is a list of names that map to the same underlying
// IP address and thus want to learn about the final verdict for that IP
// address.
type qualityUpdateConsumers struct {
	verdict   types.Verdict
	consumers []string // waiting names that want to consume the final verdict.
}

// Add the specified name for the address. Add returns true if the address
// hasn't been seen before, so that the caller, for instance, can start
// validating the new address. Otherwise, if the address already has a final
// verdict, Add returns this verdict so that the caller can pass it on for the
// name. If the address is still pending in verification the name gets
// registered to receive the final verdict later from [AddressCache.Settle].
func (c *AddressCache) Add(name string, addr netip.Addr) (isnew bool, final *types.Verdict) {
	c.mu.Lock()
	defer c.mu.Unlock()
	qc, ok := c.m[addr]
	if !ok {
		// This is the first time we see this address, so we add it to our cache
		// without any further ado.
		c.m[addr] = qualityUpdateConsumers{
			verdict:   types.NewVerdict(addr, types.Unverified, nil),
			consumers: []string{name},
		}
		return true, nil
	}
	if !qc.verdict.Quality.IsPending() {
		verdict := qc.verdict
		return false, &verdict
	}
	for _, consumer := range qc.consumers {
		if consumer == name {
			return false, nil
		}
	}
	qc.consumers = append(qc.consumers, name)
	c.m[addr] = qc
	return false, nil
}

// Settle updates the cache with the specified verdict. When the verdict is a
// final one, Settle returns the names waiting for it and clears the list of
// waiting names: all further [AddressCache.Add] calls for the address will
// immediately return the final verdict.
func (c *AddressCache) Settle(verdict types.Verdict) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	qc, ok := c.m[verdict.Address]
	if !ok || !qc.verdict.Quality.IsPending() || verdict.Quality <= qc.verdict.Quality {
		return nil
	}
	qc.verdict = verdict
	var consumers []string
	if !verdict.Quality.IsPending() {
		consumers, qc.consumers = qc.consumers, nil
	}
	c.m[verdict.Address] = qc
	return consumers
}

// Verdict returns the current verdict for the specified address, and false if
// the address is unknown.
func (c *AddressCache) Verdict(addr netip.Addr) (types.Verdict, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	qc, ok := c.m[addr]
	return qc.verdict, ok
}
