// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package verifier

import (
	"context"
	"net/netip"

	"github.com/siemens/subdig/ping"
	"github.com/siemens/subdig/types"
)

// NamedVerdict is the final verdict about one of the addresses of a name.
type NamedVerdict struct {
	Name string
	types.Verdict
}

// Verifier verifies the addresses of resolved names, caching verification
// results as to avoiding unnecessary duplicate verification attempts of
// addresses shared by multiple names. It uses a Pinger for verifying the IP
// addresses.
type Verifier struct {
	news    chan NamedVerdict
	pinger  *ping.Pinger
	checked <-chan types.Verdict
}

// New returns a new Verifier with a maximum number of parallel verification
// workers, as well as its news channel. The options are passed on to the
// underlying [ping.Pinger].
func New(size int, options ...ping.PingerOption) (*Verifier, <-chan NamedVerdict) {
	news := make(chan NamedVerdict, size)
	pinger, checked := ping.New(size, options...)
	return &Verifier{
		news:    news,
		pinger:  pinger,
		checked: checked,
	}, news
}

// Verify verifies the addresses of the specified outcomes, sending the final
// verdicts for each name and address to the news channel. Verify waits for
// all enqueued verification tasks to complete and then closes the news
// channel, and finally returns.
//
// In case the specified context is cancelled, then Verify will stop pulling off
// new verification tasks and return as soon as possible, closing the news
// channel.
func (v *Verifier) Verify(ctx context.Context, outcomes []types.Outcome) {
	addrcache := NewAddressCache()
	// As soon as new validation results trickle in, update the cache so that
	// the cache can tell us the names waiting for the results.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for verdict := range v.checked {
			for _, name := range addrcache.Settle(verdict) {
				select {
				case v.news <- NamedVerdict{Name: name, Verdict: verdict}:
				case <-ctx.Done():
				}
			}
		}
	}()
	// Initiate validation tasks if an address is seen for the first time.
	// Addresses we've already seen, but for different names, will be directly
	// served if their quality has already been verified. Otherwise, these
	// names will be put on hold until the verification result becomes
	// available.
slurpAddresses:
	for _, outcome := range outcomes {
		for _, addr := range outcome.Addresses {
			if ctx.Err() != nil {
				break slurpAddresses
			}
			isnew, final := addrcache.Add(outcome.Name, addr)
			switch {
			case isnew:
				v.pinger.Validate(ctx, addr)
			case final != nil:
				select {
				case v.news <- NamedVerdict{Name: outcome.Name, Verdict: *final}:
				case <-ctx.Done():
					break slurpAddresses
				}
			}
		}
	}
	v.pinger.StopWait()
	// wait for all verification results to have come through and passed on
	// before calling it a day.
	<-done
	close(v.news)
}

// Verdicts are the final verdicts about addresses.
type Verdicts map[netip.Addr]types.Verdict

// Collect the verdicts from the specified news channel until it is closed.
func Collect(news <-chan NamedVerdict) Verdicts {
	verdicts := Verdicts{}
	for nv := range news {
		verdicts[nv.Address] = nv.Verdict
	}
	return verdicts
}

// Alive returns true if at least one address of the outcome has been
// verified.
func (v Verdicts) Alive(outcome types.Outcome) bool {
	for _, addr := range outcome.Addresses {
		if verdict, ok := v[addr]; ok && verdict.Quality == types.Verified {
			return true
		}
	}
	return false
}

// AliveOnly returns only the outcomes with at least one verified address,
// keeping their order.
func (v Verdicts) AliveOnly(outcomes []types.Outcome) []types.Outcome {
	alive := make([]types.Outcome, 0, len(outcomes))
	for _, outcome := range outcomes {
		if v.Alive(outcome) {
			alive = append(alive, outcome)
		}
	}
	return alive
}
