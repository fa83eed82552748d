// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package dnsworker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/siemens/subdig/resolver"
	"github.com/siemens/subdig/test/fakedns"
	"github.com/siemens/subdig/types"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
	. "github.com/thediveo/success"
)

var _ = Describe("DNS worker pool", func() {

	BeforeEach(func() {
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).WithTimeout(3 * time.Second).WithPolling(250 * time.Millisecond).
				ShouldNot(HaveLeaked(goodgos))
		})
	})

	newResolver := func(zone *fakedns.Zone) *resolver.Resolver {
		return Successful(resolver.New(
			resolver.WithServers("192.0.2.53"),
			resolver.WithExchanger(zone)))
	}

	It("runs a goroutine-limited set of DNS tasks", NodeTimeout(30*time.Second), func(ctx context.Context) {
		const poolsize = 3

		pool := New(poolsize, newResolver(fakedns.New()))
		Expect(pool.Size()).To(Equal(poolsize))

		var running, peak, total atomic.Int64
		taskfn := func(res *resolver.Resolver) {
			defer GinkgoRecover()
			Expect(res).NotTo(BeNil())
			n := running.Add(1)
			defer running.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(100 * time.Millisecond)
			total.Add(1)
		}

		numtasks := poolsize * 4
		for i := 0; i < numtasks; i++ {
			pool.Submit(taskfn)
		}
		pool.StopWait()

		Expect(total.Load()).To(Equal(int64(numtasks)), "number of submitted and executed tasks mismatch")
		Expect(peak.Load()).To(BeNumerically("<=", poolsize))
		Expect(pool.Busy()).To(BeZero())
	})

	It("resolves a name", NodeTimeout(30*time.Second), func(ctx context.Context) {
		zone := fakedns.New().A("www.example.com", "192.0.2.1")
		pool := New(1, newResolver(zone))
		ch := make(chan types.Outcome, 1)

		pool.ResolveName(ctx,
			"www.example.com",
			func(outcome types.Outcome, err error) {
				defer GinkgoRecover()
				Expect(err).NotTo(HaveOccurred())
				ch <- outcome
				close(ch)
			})
		var outcome types.Outcome
		Eventually(ch).Should(Receive(&outcome))
		Expect(outcome.Status).To(Equal(types.Resolved))
		Expect(outcome.IPs()).To(ConsistOf("192.0.2.1"))
		pool.StopWait()
	})

	It("reports resolution failures as outcomes", NodeTimeout(30*time.Second), func(ctx context.Context) {
		pool := New(1, newResolver(fakedns.New()))
		ch := make(chan types.Outcome, 1)

		pool.ResolveName(ctx,
			"tld.rottennet",
			func(outcome types.Outcome, err error) {
				defer GinkgoRecover()
				Expect(err).NotTo(HaveOccurred())
				ch <- outcome
			})
		Eventually(ch).Should(Receive(HaveField("Status", types.NXDomain)))
		pool.StopWait()
	})

	It("drops queued resolutions after cancellation, but completes started ones", NodeTimeout(30*time.Second), func(specctx context.Context) {
		zone := fakedns.New().
			A("started.example.com", "192.0.2.1").
			A("queued.example.com", "192.0.2.2").
			WithLatency(func(string) time.Duration { return 200 * time.Millisecond })
		pool := New(1, newResolver(zone))
		ctx, cancel := context.WithCancel(specctx)
		defer cancel()

		var mu sync.Mutex
		results := map[string]error{}
		outcomes := map[string]types.Outcome{}
		record := func(outcome types.Outcome, err error) {
			mu.Lock()
			defer mu.Unlock()
			results[outcome.Name] = err
			outcomes[outcome.Name] = outcome
		}
		pool.ResolveName(ctx, "started.example.com", record)
		pool.ResolveName(ctx, "queued.example.com", record)
		Eventually(pool.Busy).Should(Equal(1))
		Eventually(pool.WaitingQueueSize).Should(Equal(1))
		cancel()
		pool.StopWait()

		Expect(results).To(HaveLen(2))
		Expect(results["started.example.com"]).NotTo(HaveOccurred())
		Expect(outcomes["started.example.com"].Status).To(Equal(types.Resolved))
		Expect(results["queued.example.com"]).To(MatchError(context.Canceled))
		Expect(zone.Calls("queued.example.com")).To(BeZero())
	})

})
