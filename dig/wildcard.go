// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package dig

import (
	"context"
	"log/slog"
	"math/rand"
	"net/netip"

	"github.com/siemens/subdig/resolver"
	"github.com/siemens/subdig/types"
)

const (
	wildcardProbes     = 2
	wildcardLabelLen   = 14
	wildcardLabelChars = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// randomLabel returns a random DNS label that is highly unlikely to exist.
var randomLabel = func() string {
	label := make([]byte, wildcardLabelLen)
	for idx := range label {
		label[idx] = wildcardLabelChars[rand.Intn(len(wildcardLabelChars))]
	}
	return string(label)
}

// DetectWildcard probes the specified domain for wildcard records by resolving
// names with random labels below it. It returns the union of the addresses
// the probes resolved to, sorted; an empty result means that the domain has
// no wildcard records (or that the probes failed).
func DetectWildcard(ctx context.Context, res *resolver.Resolver, domain string, log *slog.Logger) []netip.Addr {
	if log == nil {
		log = slog.Default()
	}
	var addrs []netip.Addr
	for i := 0; i < wildcardProbes; i++ {
		outcome := res.Resolve(ctx, randomLabel()+"."+domain)
		if outcome.Status != types.Resolved {
			continue
		}
		log.Debug("wildcard probe resolved",
			slog.String("name", outcome.Name),
			slog.Any("ips", outcome.IPs()))
		addrs = append(addrs, outcome.Addresses...)
	}
	if len(addrs) == 0 {
		return nil
	}
	return types.SortedAddrs(addrs)
}
