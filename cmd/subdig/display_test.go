// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"net/netip"
	"time"

	"github.com/siemens/subdig/types"
	"github.com/siemens/subdig/verifier"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func resolvedOutcome(name string, ips ...string) types.Outcome {
	addrs := make([]netip.Addr, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, netip.MustParseAddr(ip))
	}
	return types.NewOutcome(name, types.Resolved, addrs, nil, nil)
}

var _ = Describe("rendering", func() {

	DescribeTable("splitting names into groups and labels",
		func(name, expectedGroup, expectedLabel string) {
			group, label := groupAndLabel(name, "example.com")
			Expect(group).To(Equal(expectedGroup))
			Expect(label).To(Equal(expectedLabel))
		},
		Entry("domain itself", "example.com", "", "@"),
		Entry("direct subdomain", "www.example.com", "", "www"),
		Entry("nested subdomain", "api.eu.example.com", "eu", "api"),
		Entry("deeply nested subdomain", "a.b.c.example.com", "b.c", "a"),
	)

	It("groups names", func() {
		groups := groupNames([]types.Outcome{
			resolvedOutcome("mail.example.com"),
			resolvedOutcome("api.eu.example.com"),
			resolvedOutcome("www.example.com"),
			resolvedOutcome("cdn.eu.example.com"),
		}, "example.com")
		Expect(groups).To(HaveLen(2))
		Expect(groups[0]).To(HaveEach(HaveField("Name", Not(ContainSubstring(".eu.")))))
		Expect(groups[0][0].Name).To(Equal("mail.example.com"))
		Expect(groups[1][0].Name).To(Equal("api.eu.example.com"))
		Expect(groups[1][1].Name).To(Equal("cdn.eu.example.com"))
	})

	It("renders a plain summary", func() {
		var buff bytes.Buffer
		r := newRenderer(&buff, "example.com", false)
		defer r.Stop()
		r.Indentation = 2
		r.RenderSummary([]types.Outcome{
			resolvedOutcome("www.example.com", "192.0.2.1", "2001:db8::1"),
			resolvedOutcome("api.eu.example.com", "192.0.2.2"),
		}, nil)
		Expect(buff.String()).To(Equal(
			"2 subdomains of example.com found\n" +
				"names under example.com\n" +
				"  www  192.0.2.1  2001:db8::1\n" +
				"names under eu.example.com\n" +
				"  api  192.0.2.2\n"))
	})

	It("marks verified and unreachable addresses", func() {
		alive := netip.MustParseAddr("192.0.2.1")
		dead := netip.MustParseAddr("192.0.2.66")
		var buff bytes.Buffer
		r := newRenderer(&buff, "example.com", false)
		defer r.Stop()
		r.RenderSummary([]types.Outcome{
			resolvedOutcome("www.example.com", "192.0.2.1", "192.0.2.66", "192.0.2.99"),
		}, verifier.Verdicts{
			alive: types.NewVerdict(alive, types.Verified, nil),
			dead:  types.NewVerdict(dead, types.Invalid, nil),
		})
		Expect(buff.String()).To(ContainSubstring(" ✔ 192.0.2.1 "))
		Expect(buff.String()).To(ContainSubstring(" × 192.0.2.66 "))
		Expect(buff.String()).To(ContainSubstring(" ? 192.0.2.99"))
	})

	It("renders an empty summary", func() {
		var buff bytes.Buffer
		r := newRenderer(&buff, "example.com", false)
		defer r.Stop()
		r.RenderSummary(nil, nil)
		Expect(buff.String()).To(Equal("no subdomains of example.com found\n"))
	})

	It("renders the live status", func() {
		var buff bytes.Buffer
		r := newRenderer(&buff, "example.com", false)
		defer r.Stop()
		r.RenderStatus(status{Processed: 42, Found: 3, Pending: 7, Wildcards: 1, Elapsed: 1234 * time.Millisecond})
		Expect(buff.String()).To(Equal(
			"⠉ digging example.com: 42 processed, 3 found, 7 pending, 1 wildcard (1.2s)\n"))
	})

	It("spins", func() {
		s := newSpinner("ab")
		Expect(s.Spinner()).To(Equal("a "))
		s.step()
		Expect(s.Spinner()).To(Equal("b "))
		s.step()
		Expect(s.Spinner()).To(Equal("a "))
		s.Start(10 * time.Millisecond)
		Eventually(s.Spinner).Should(Equal("b "))
		s.Stop()
		s.Stop()
	})

})
