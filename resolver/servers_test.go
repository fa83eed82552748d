// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package resolver

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

var _ = Describe("DNS servers", func() {

	DescribeTable("normalizes server addresses",
		func(server, expected string) {
			Expect(NormalizeServer(server)).To(Equal(expected))
		},
		Entry(nil, "8.8.8.8", "8.8.8.8:53"),
		Entry(nil, " 1.1.1.1 ", "1.1.1.1:53"),
		Entry(nil, "9.9.9.9:5353", "9.9.9.9:5353"),
		Entry(nil, "2001:4860:4860::8888", "[2001:4860:4860::8888]:53"),
		Entry(nil, "[::1]", "[::1]:53"),
		Entry(nil, "[::1]:5300", "[::1]:5300"),
		Entry(nil, "dns.example.net:53", "dns.example.net:53"),
	)

	DescribeTable("rejects malformed server addresses",
		func(server string) {
			Expect(NormalizeServer(server)).Error().To(HaveOccurred())
		},
		Entry(nil, ""),
		Entry(nil, "dns.example.net"),
		Entry(nil, ":53"),
		Entry(nil, "1.2.3.4:notaport"),
	)

	It("picks start servers deterministically", func() {
		Expect(startIndex("www.example.com", 1)).To(BeZero())
		Expect(startIndex("www.example.com", 0)).To(BeZero())
		idx := startIndex("www.example.com", 3)
		Expect(idx).To(BeNumerically(">=", 0))
		Expect(idx).To(BeNumerically("<", 3))
		for i := 0; i < 10; i++ {
			Expect(startIndex("www.example.com", 3)).To(Equal(idx))
		}
	})

	When("no servers are configured", func() {

		var oldResolvConf string

		BeforeEach(func() {
			oldResolvConf = resolvConf
			DeferCleanup(func() { resolvConf = oldResolvConf })
		})

		It("uses the system's resolver configuration", func() {
			resolvConf = filepath.Join(GinkgoT().TempDir(), "resolv.conf")
			Expect(os.WriteFile(resolvConf, []byte(
				"# test\nnameserver 192.0.2.53\nnameserver 2001:db8::53\nsearch example.com\n"), 0o644)).To(Succeed())
			r := Successful(New())
			Expect(r.Servers()).To(Equal([]string{"192.0.2.53:53", "[2001:db8::53]:53"}))
		})

		It("fails without usable system configuration", func() {
			resolvConf = filepath.Join(GinkgoT().TempDir(), "missing.conf")
			Expect(New()).Error().To(MatchError(ErrNoServers))
		})

		It("fails when the system configuration lists no servers", func() {
			resolvConf = filepath.Join(GinkgoT().TempDir(), "resolv.conf")
			Expect(os.WriteFile(resolvConf, []byte("search example.com\n"), 0o644)).To(Succeed())
			Expect(New()).Error().To(MatchError(ErrNoServers))
		})

	})

	It("rejects malformed configured servers and parameters", func() {
		Expect(New(WithServers("nope"))).Error().To(HaveOccurred())
		Expect(New(WithServers("1.1.1.1"), WithTimeout(0))).Error().To(HaveOccurred())
		Expect(New(WithServers("1.1.1.1"), WithRetries(-1))).Error().To(HaveOccurred())
		Expect(New(WithServers("1.1.1.1"), WithMaxDepth(-1))).Error().To(HaveOccurred())
	})

})
