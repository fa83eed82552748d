// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package dig

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/siemens/subdig/dnsworker"
	"github.com/siemens/subdig/resolver"
	"github.com/siemens/subdig/types"

	"golang.org/x/sync/semaphore"
)

// Candidates is a forward-only sequence of distinct candidate names, such as
// a [candidates.Stream].
type Candidates interface {
	Next() bool
	Candidate() string
	Err() error
}

// Digger digs the IPv4 and IPv6 addresses of candidate names and then streams
// the outcomes over its “news” channel.
//
// A Digger never has more than its maximum pending number of resolutions
// outstanding (queued for a worker or executing): it only pulls the next
// candidate after getting a permit, and a resolution task hands back its
// permit only after its outcome has been sent down the news channel.
type Digger struct {
	workers    *dnsworker.DnsPool
	news       chan types.Outcome
	permits    *semaphore.Weighted
	maxPending int
	log        *slog.Logger

	pending   atomic.Int64
	peak      atomic.Int64
	submitted atomic.Int64
	completed atomic.Int64
	dropped   atomic.Int64
}

// Stats is a snapshot of a Digger's bookkeeping.
type Stats struct {
	Submitted   int // resolutions handed to the worker pool
	Completed   int // outcomes sent down the news channel
	Dropped     int // queued resolutions dropped due to cancellation
	Pending     int // resolutions currently outstanding
	PeakPending int // maximum of outstanding resolutions so far
}

// Option can be passed to New when creating new [Digger] objects.
type Option func(*Digger)

// WithLogger sets the logger for debug information about the dig.
func WithLogger(log *slog.Logger) Option {
	return func(d *Digger) {
		d.log = log
	}
}

// New returns a new Digger with a worker pool of concurrency size, allowing
// at most maxPending resolutions to be outstanding. maxPending values less
// than concurrency are raised to concurrency, so the pool can stay saturated.
// New additionally returns the Digger's “news stream” sending the outcomes
// of completed resolutions in their completion order. The news channel gets
// closed by [Digger.StopWait].
//
// I dunno what Sir Tim, Mick, Phil, and all the others might think of our
// digging here...
func New(res *resolver.Resolver, concurrency, maxPending int, options ...Option) (*Digger, <-chan types.Outcome) {
	if concurrency < 1 {
		concurrency = 1
	}
	if maxPending < concurrency {
		maxPending = concurrency
	}
	news := make(chan types.Outcome, concurrency)
	d := &Digger{
		workers:    dnsworker.New(concurrency, res),
		news:       news,
		permits:    semaphore.NewWeighted(int64(maxPending)),
		maxPending: maxPending,
	}
	for _, opt := range options {
		opt(d)
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	return d, news
}

// MaxPending returns the maximum number of outstanding resolutions.
func (d *Digger) MaxPending() int { return d.maxPending }

// Pending returns the number of currently outstanding resolutions.
func (d *Digger) Pending() int { return int(d.pending.Load()) }

// Stats returns a snapshot of the Digger's bookkeeping.
func (d *Digger) Stats() Stats {
	return Stats{
		Submitted:   int(d.submitted.Load()),
		Completed:   int(d.completed.Load()),
		Dropped:     int(d.dropped.Load()),
		Pending:     int(d.pending.Load()),
		PeakPending: int(d.peak.Load()),
	}
}

// Dig pulls candidate names and submits them for resolution until the
// candidates are exhausted, the candidates fail, or the context is cancelled.
// Dig blocks whenever the maximum number of pending resolutions has been
// reached, until some outstanding resolution has completed. The outcomes are
// sent to the channel returned beforehand by New.
//
// Dig returns nil after all candidates have been submitted, the candidates'
// error if they failed, or the context's error when cancelled. Resolutions
// already submitted keep going in all cases; use [Digger.StopWait] to wait for
// them to finish.
//
// Resolutions that haven't started yet when the context gets cancelled are
// dropped without any outcome. Resolutions already started run to completion,
// bounded by their own query timeouts.
func (d *Digger) Dig(ctx context.Context, names Candidates) error {
	for {
		if err := d.permits.Acquire(ctx, 1); err != nil {
			return err
		}
		// Acquire might succeed even with a done context when permits are
		// available.
		if err := ctx.Err(); err != nil {
			d.permits.Release(1)
			return err
		}
		if !names.Next() {
			d.permits.Release(1)
			if err := names.Err(); err != nil {
				d.log.Error("candidate names failed", slog.String("error", err.Error()))
				return err
			}
			return nil
		}
		d.submit(ctx, names.Candidate())
	}
}

// submit a resolution task for the specified name, having acquired a permit
// already.
func (d *Digger) submit(ctx context.Context, name string) {
	n := d.pending.Add(1)
	for {
		peak := d.peak.Load()
		if n <= peak || d.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	d.submitted.Add(1)
	d.workers.ResolveName(ctx, name, func(outcome types.Outcome, err error) {
		if err != nil {
			d.dropped.Add(1)
			d.log.Debug("dropped queued resolution",
				slog.String("name", name), slog.String("error", err.Error()))
		} else {
			d.news <- outcome
			d.completed.Add(1)
		}
		d.pending.Add(-1)
		d.permits.Release(1)
	})
}

// StopWait waits for all queued resolutions to get processed and then finally
// closes the news channel. StopWait must be called only after Dig returned.
func (d *Digger) StopWait() {
	d.workers.StopWait()
	close(d.news)
}
