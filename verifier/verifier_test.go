// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package verifier

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"time"

	"github.com/siemens/subdig/ping"
	"github.com/siemens/subdig/types"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
)

func outcome(name string, ips ...string) types.Outcome {
	addrs := make([]netip.Addr, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, netip.MustParseAddr(ip))
	}
	return types.NewOutcome(name, types.Resolved, addrs, nil, nil)
}

var _ = Describe("verifier", func() {

	BeforeEach(func() {
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).WithTimeout(3 * time.Second).WithPolling(250 * time.Millisecond).
				ShouldNot(HaveLeaked(goodgos))
		})
	})

	It("pings each address only once and tells all names", NodeTimeout(30*time.Second), func(ctx context.Context) {
		var mu sync.Mutex
		pinged := map[netip.Addr]int{}
		probe := func(ctx context.Context, addr netip.Addr) error {
			mu.Lock()
			pinged[addr]++
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			if addr.Is6() {
				return errors.New("no replies or too many losses")
			}
			return nil
		}
		v, news := New(2, ping.WithProbe(probe))
		outcomes := []types.Outcome{
			outcome("www.example.com", "192.0.2.1", "2001:db8::1"),
			outcome("cdn.example.com", "192.0.2.1"),
			outcome("v6.example.com", "2001:db8::1"),
			outcome("other.example.com", "192.0.2.2"),
		}
		go v.Verify(ctx, outcomes)

		named := map[string][]types.Quality{}
		for nv := range news {
			named[nv.Name] = append(named[nv.Name], nv.Quality)
		}
		Expect(named).To(HaveLen(4))
		Expect(named["www.example.com"]).To(ConsistOf(types.Verified, types.Invalid))
		Expect(named["cdn.example.com"]).To(ConsistOf(types.Verified))
		Expect(named["v6.example.com"]).To(ConsistOf(types.Invalid))
		Expect(named["other.example.com"]).To(ConsistOf(types.Verified))
		Expect(pinged).To(HaveLen(3))
		for addr, count := range pinged {
			Expect(count).To(Equal(1), addr.String())
		}
	})

	It("collects verdicts and filters alive names", NodeTimeout(30*time.Second), func(ctx context.Context) {
		probe := func(ctx context.Context, addr netip.Addr) error {
			if addr == netip.MustParseAddr("192.0.2.66") {
				return errors.New("unreachable")
			}
			return nil
		}
		v, news := New(4, ping.WithProbe(probe))
		outcomes := []types.Outcome{
			outcome("alive.example.com", "192.0.2.1"),
			outcome("dead.example.com", "192.0.2.66"),
			outcome("partial.example.com", "192.0.2.66", "192.0.2.3"),
		}
		go v.Verify(ctx, outcomes)
		verdicts := Collect(news)
		Expect(verdicts).To(HaveLen(3))
		Expect(verdicts[netip.MustParseAddr("192.0.2.66")].Err()).To(MatchError("unreachable"))
		Expect(verdicts.AliveOnly(outcomes)).To(HaveExactElements(
			HaveField("Name", "alive.example.com"),
			HaveField("Name", "partial.example.com")))
	})

	It("stops verifying when cancelled", NodeTimeout(30*time.Second), func(specctx context.Context) {
		ctx, cancel := context.WithCancel(specctx)
		probe := func(ctx context.Context, addr netip.Addr) error {
			<-ctx.Done()
			return ctx.Err()
		}
		v, news := New(1, ping.WithProbe(probe))
		done := make(chan struct{})
		go func() {
			defer close(done)
			v.Verify(ctx, []types.Outcome{
				outcome("a.example.com", "192.0.2.1"),
				outcome("b.example.com", "192.0.2.2"),
				outcome("c.example.com", "192.0.2.3"),
			})
		}()
		cancel()
		verdicts := Collect(news)
		Eventually(done).Should(BeClosed())
		Expect(verdicts.AliveOnly(nil)).To(BeEmpty())
		for _, verdict := range verdicts {
			Expect(verdict.Quality).To(Equal(types.Invalid))
		}
	})

})
