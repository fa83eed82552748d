// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package ping

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/siemens/subdig/types"

	"github.com/gammazero/workerpool"
	"github.com/go-ping/ping"
)

// Pinger validates IP addresses by pinging them and then streaming the final
// [types.Verdict] verdicts to a result/output channel (kind of “IT-court
// TV”). Pingers use a goroutine-limited worker pool.
type Pinger struct {
	count               int           // number of pings to send.
	interval            time.Duration // distance between pings.
	thresholdPercentage uint          // percentage of successful pings for valid IP address.
	unprivileged        bool          // if true, uses UDP-based pings instead of privileged ICMPs.

	probe    func(ctx context.Context, addr netip.Addr) error // carries out the actual ping.
	workers  *workerpool.WorkerPool                           // workers for running incoming validation jobs concurrently.
	courtTV  chan types.Verdict                               // results/status stream channel.
	stopOnce sync.Once
}

// PingerOption can be passed to New when creating new Pinger objects.
type PingerOption func(*Pinger)

// New returns a new [Pinger] with a maximum worker pool of the specified size
// as well as a “verdict stream”. The verdict channel will not only send the
// final IP address verdicts, but also the initial and yet unverified IP
// addresses as they get submitted for ping court verdicts.
//
// The new pinger defaults to pinging 3 times at intervals of 1s between each
// ping. The validity threshold defaults to 50(%).
//
// The pinger can be configured during creation using several option:
//   - [WithCount]
//   - [WithInterval]
//   - [WithThresholdPercentage]
//   - [AsUnprivileged]
func New(size int, options ...PingerOption) (*Pinger, <-chan types.Verdict) {
	return new(size, size, options...)
}

// new returns a new [Pinger] with a maximum worker pool of the specified size and
// a “verdict stream” with the specified buffer size.
func new(workersize int, chansize int, options ...PingerOption) (*Pinger, <-chan types.Verdict) {
	courtTV := make(chan types.Verdict, chansize)
	pinger := &Pinger{
		count:               3,
		interval:            time.Second,
		thresholdPercentage: 50,
		workers:             workerpool.New(workersize),
		courtTV:             courtTV,
	}
	pinger.probe = pinger.ping
	for _, opt := range options {
		opt(pinger)
	}
	return pinger, courtTV
}

// WithCount sets the number of pings for testing reachability of an IP address.
func WithCount(count uint) PingerOption {
	return func(p *Pinger) {
		p.count = int(count)
	}
}

// WithInterval sets the interval between consecutive pings.
func WithInterval(interval time.Duration) PingerOption {
	return func(p *Pinger) {
		p.interval = interval
	}
}

// AsUnprivileged tells the Pinger to carry out unprivileged pings using UDP
// instead of ICMP packet.
func AsUnprivileged() PingerOption {
	return func(p *Pinger) {
		p.unprivileged = true
	}
}

// WithProbe replaces pinging with the specified reachability probe, which
// must return nil for reachable addresses.
func WithProbe(probe func(ctx context.Context, addr netip.Addr) error) PingerOption {
	return func(p *Pinger) {
		p.probe = probe
	}
}

// WithThresholdPercentage takes a percentage between 0 and 100 that specifies
// the percentage of successful ping responses required in order to validate the
// pinged IP address.
func WithThresholdPercentage(threshold uint) PingerOption {
	if threshold > 100 {
		panic(fmt.Errorf("Pinger: threshold must be a percentage between 0 <= threshold <= 100, got: %d",
			threshold))
	}
	return func(p *Pinger) {
		p.thresholdPercentage = threshold
	}
}

// ValidateStream reads addresses to be validated from a channel until the
// channel is closed or the specified context gets cancelled. It does not
// return until the channel has been closed or the context cancelled, so
// callers typically might run ValidateStream in a separate goroutine.
//
// If the specified context gets cancelled the pending address verfications
// won't be echoed to the verdict stream at all, and in particular not even as
// invalid. However, spurious verfication verdicts might still appear on the
// verdict stream due to uncontrollable order of verdict sending and context
// cancellation detection.
func (p *Pinger) ValidateStream(ctx context.Context, ch <-chan netip.Addr) {
	for {
		select {
		case addr, ok := <-ch:
			if !ok {
				return
			}
			p.Validate(ctx, addr)
		case <-ctx.Done():
			return
		}
	}
}

// Validate the specified IP address by pinging it. The verdict is then sent to
// the channel returned together with the newly created [Pinger]. Additionally,
// an initial notice for the address to be validated is also sent beforehand.
//
// An IP address is considered to be invalid if the percentage of successfully
// received ping replies doesn't reach or cross the Pinger's threshold. This
// allows for some legroom.
//
// The validation process is automatically aborted when the specified context
// either meets its deadline or gets cancelled. The IP address is then
// considered to be Invalid.
func (p *Pinger) Validate(ctx context.Context, addr netip.Addr) {
	verdict := types.NewVerdict(addr, types.Verifying, nil)
	// Allow cancelling a blocked address verdict send to avoid leaking
	// goroutines. The downside is that since the order in which select checks
	// for ctx.Done() and a blocked verdict channel is random, so we cannot
	// guarantuee that either never a verdict is sent or the verdict gets always
	// sent.
	select {
	case p.courtTV <- verdict: // not yet the final one ;)
	case <-ctx.Done():
		return
	}
	p.workers.Submit(func() {
		verdict := verdict.WithQuality(types.Verified, nil)
		// A quick and non-blocking check to see if the context has been
		// cancelled before we start our work...
		err := ctx.Err()
		if err == nil {
			err = p.probe(ctx, addr)
		}
		if err != nil {
			verdict = verdict.WithQuality(types.Invalid, err)
		}
		// Again, allow cancelling a blocked address verdict send to avoid
		// leaking goroutines.
		select {
		case p.courtTV <- verdict: // final one this time.
		case <-ctx.Done():
		}
	})
}

// ping the specified address, returning nil only if enough ping replies were
// received.
func (p *Pinger) ping(ctx context.Context, addr netip.Addr) error {
	pinger, err := ping.NewPinger(addr.String())
	if err != nil {
		return err
	}
	pinger.SetPrivileged(!p.unprivileged)
	pinger.Count = p.count
	pinger.Interval = p.interval
	// Always limit waiting for the last ping to get reflected (or not)!
	pinger.Timeout = time.Duration(int64(p.interval) * int64(p.count+2))
	// While the ping will be running, we need to monitor the context in case
	// it becomes "done" by either getting cancelled or reaching its deadline.
	// The done channel here works "the other way round" in the sense that it
	// terminated the concurrent context monitoring.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			pinger.Stop()
		case <-done:
		}
	}()
	// Now start making some noise...
	if err = pinger.Run(); err != nil {
		return err
	}
	// Was the context done?
	if err := ctx.Err(); err != nil {
		return err
	}
	stats := pinger.Statistics()
	if stats.PacketsRecv < pinger.Count*int(p.thresholdPercentage)/100 {
		return errors.New("no replies or too many losses")
	}
	return nil
}

// StopWait waits for all queued tasks to get processed and then finally closes
// the court TV channel.
func (p *Pinger) StopWait() {
	p.stopOnce.Do(func() {
		p.workers.StopWait()
		close(p.courtTV)
	})
}
