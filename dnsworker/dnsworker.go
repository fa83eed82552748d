// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package dnsworker

import (
	"context"
	"sync/atomic"

	"github.com/gammazero/workerpool"
	"github.com/siemens/subdig/resolver"
	"github.com/siemens/subdig/types"
)

// DnsPool is a (size-limited) pool of DNS workers, all sharing the same
// [resolver.Resolver].
type DnsPool struct {
	resolver *resolver.Resolver
	workers  *workerpool.WorkerPool
	busy     atomic.Int64 // number of tasks currently executing
}

// New returns a pool of the specified size of DNS workers, all resolving
// names using the specified resolver. Pool sizes less than one are treated as
// one.
//
// DNS tasks are submitted using [DnsPool.Submit] in form of task functions
// receiving the shared [resolver.Resolver]. Submitting never blocks; tasks
// beyond the pool size wait in an unbounded queue, so callers must limit the
// number of submitted but unfinished tasks themselves when necessary.
func New(size int, res *resolver.Resolver) *DnsPool {
	if size < 1 {
		size = 1
	}
	return &DnsPool{
		resolver: res,
		workers:  workerpool.New(size),
	}
}

// Submit a task to the DNS worker pool, where it gets enqueued to be executed
// as soon as a worker becomes available.
func (p *DnsPool) Submit(task func(res *resolver.Resolver)) {
	p.workers.Submit(func() {
		p.busy.Add(1)
		defer p.busy.Add(-1)
		task(p.resolver)
	})
}

// ResolveName is a convenience method for submitting a name resolution task
// and gathering its outcome. The outcome is passed to the specified callback
// function fn, which is called exactly once.
//
// If the passed context is already done when the task gets its turn, fn is
// called with the context's error instead of resolving the name. Once started,
// a resolution runs to completion even if the context gets cancelled in the
// meantime, so that already issued queries always deliver their outcome.
func (p *DnsPool) ResolveName(ctx context.Context, name string, fn func(types.Outcome, error)) {
	p.Submit(func(res *resolver.Resolver) {
		if err := ctx.Err(); err != nil {
			fn(types.Outcome{Name: name}, err)
			return
		}
		fn(res.Resolve(context.WithoutCancel(ctx), name), nil)
	})
}

// Size returns the maximum number of concurrently executing tasks.
func (p *DnsPool) Size() int { return p.workers.Size() }

// Busy returns the number of currently executing tasks.
func (p *DnsPool) Busy() int { return int(p.busy.Load()) }

// WaitingQueueSize returns the number of submitted tasks still waiting for a
// worker.
func (p *DnsPool) WaitingQueueSize() int { return p.workers.WaitingQueueSize() }

// StopWait waits for all enqueued tasks to finish, and then shuts down the
// pool.
func (p *DnsPool) StopWait() {
	p.workers.StopWait()
}
