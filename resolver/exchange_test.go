// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package resolver

import (
	"context"
	"net"
	"time"

	"github.com/siemens/subdig/types"

	"github.com/miekg/dns"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

// serve starts a miekg/dns server on the specified listener or packet
// connection, stopping it when the current test ends.
func serve(srv *dns.Server) {
	GinkgoHelper()
	started := make(chan struct{})
	srv.NotifyStartedFunc = func() { close(started) }
	go func() {
		defer GinkgoRecover()
		_ = srv.ActivateAndServe()
	}()
	Eventually(started).Should(BeClosed())
	DeferCleanup(func() { _ = srv.Shutdown() })
}

// handler answers A queries for www.example.com and big.example.com and
// reports all other names as non-existing. UDP answers for big.example.com
// get truncated.
func handler(network string) dns.HandlerFunc {
	return func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		q := req.Question[0]
		switch q.Name {
		case "www.example.com.", "big.example.com.":
			if q.Qtype == dns.TypeA {
				if q.Name == "big.example.com." && network == "udp" {
					m.Truncated = true
					break
				}
				m.Answer = append(m.Answer, &dns.A{
					Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
					A:   net.ParseIP("192.0.2.42").To4(),
				})
			}
		default:
			m.Rcode = dns.RcodeNameError
		}
		_ = w.WriteMsg(m)
	}
}

var _ = Describe("exchanging DNS messages", func() {

	var server string

	BeforeEach(func() {
		l := Successful(net.Listen("tcp", "127.0.0.1:0"))
		server = l.Addr().String()
		pc := Successful(net.ListenPacket("udp", server))
		serve(&dns.Server{Listener: l, Handler: handler("tcp")})
		serve(&dns.Server{PacketConn: pc, Handler: handler("udp")})
	})

	It("resolves names using a DNS server", func(ctx context.Context) {
		r := Successful(New(WithServers(server), WithTimeout(2*time.Second)))
		o := r.Resolve(ctx, "www.example.com")
		Expect(o.Status).To(Equal(types.Resolved))
		Expect(o.IPs()).To(ConsistOf("192.0.2.42"))

		o = r.Resolve(ctx, "nope.example.com")
		Expect(o.Status).To(Equal(types.NXDomain))
	})

	It("falls back to TCP for truncated answers", func(ctx context.Context) {
		x := newClientExchanger("udp", 2*time.Second)
		m := new(dns.Msg)
		m.SetQuestion("big.example.com.", dns.TypeA)
		resp := Successful(x.Exchange(ctx, m, server))
		Expect(resp.Truncated).To(BeFalse())
		Expect(resp.Answer).To(HaveLen(1))
	})

	It("queries via TCP only", func(ctx context.Context) {
		r := Successful(New(WithServers(server), WithNetwork("tcp"), WithTimeout(2*time.Second)))
		o := r.Resolve(ctx, "big.example.com")
		Expect(o.Status).To(Equal(types.Resolved))
		Expect(o.IPs()).To(ConsistOf("192.0.2.42"))
	})

})
