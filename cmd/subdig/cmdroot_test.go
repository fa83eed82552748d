// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/siemens/subdig/config"
	"github.com/siemens/subdig/resolver"
	"github.com/siemens/subdig/types"

	"github.com/miekg/dns"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
	. "github.com/thediveo/success"
)

// zone answers A queries for www and mail below example.com, and NXDOMAIN
// for everything else.
func zone(w dns.ResponseWriter, req *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(req)
	q := req.Question[0]
	ip, ok := map[string]string{
		"www.example.com.":  "192.0.2.1",
		"mail.example.com.": "192.0.2.2",
	}[q.Name]
	switch {
	case !ok:
		m.Rcode = dns.RcodeNameError
	case q.Qtype == dns.TypeA:
		m.Answer = append(m.Answer, &dns.A{
			Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
			A:   net.ParseIP(ip).To4(),
		})
	}
	_ = w.WriteMsg(m)
}

// serveZone starts a loopback UDP DNS server for the zone and returns its
// address.
func serveZone() string {
	GinkgoHelper()
	pc := Successful(net.ListenPacket("udp", "127.0.0.1:0"))
	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: dns.HandlerFunc(zone),
		NotifyStartedFunc: func() { close(started) }}
	go func() {
		defer GinkgoRecover()
		_ = srv.ActivateAndServe()
	}()
	Eventually(started).Should(BeClosed())
	DeferCleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

// inTempDir changes into a new temporary directory for the current test.
func inTempDir() string {
	GinkgoHelper()
	wd := Successful(os.Getwd())
	tmp := GinkgoT().TempDir()
	Expect(os.Chdir(tmp)).To(Succeed())
	DeferCleanup(func() { Expect(os.Chdir(wd)).To(Succeed()) })
	return tmp
}

// subdig runs the root command with the specified arguments and returns its
// standard output together with the command's error.
func subdig(ctx context.Context, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(GinkgoWriter)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

var _ = Describe("subdig command", func() {

	BeforeEach(func() {
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).WithTimeout(3 * time.Second).WithPolling(250 * time.Millisecond).
				ShouldNot(HaveLeaked(goodgos))
		})
		DeferCleanup(logOutput.Redirect(GinkgoWriter))
	})

	It("maps errors to exit codes", func() {
		Expect(exitCode(errInterrupted)).To(Equal(130))
		Expect(exitCode(errors.New("foobar"))).To(Equal(1))
		Expect(exitCode(config.ErrInvalidDomain)).To(Equal(1))
	})

	It("rejects invalid arguments", func(ctx context.Context) {
		inTempDir()
		_, err := subdig(ctx, "--no-passive", "--concurrency", "0", "example.com")
		Expect(err).To(MatchError(ContainSubstring("concurrency")))

		_, err = subdig(ctx, "--no-passive", "com")
		Expect(err).To(MatchError(config.ErrInvalidDomain))

		_, err = subdig(ctx, "--no-passive", "-d", "example.org", "example.com")
		Expect(err).To(MatchError(ContainSubstring("conflicting domains")))

		_, err = subdig(ctx, "--no-passive", "--indent", "81", "example.com")
		Expect(err).To(MatchError(ContainSubstring("--indent")))

		_, err = subdig(ctx, "--no-passive", "--out", "../results.json", "example.com")
		Expect(err).To(HaveOccurred())
	})

	It("enumerates subdomains using a wordlist", func(ctx context.Context) {
		server := serveZone()
		tmp := inTempDir()
		Expect(os.WriteFile("words.txt", []byte("# labels\nwww\n\nmail\nnope\nWWW\n"), 0644)).To(Succeed())
		out, err := subdig(ctx,
			"--no-passive",
			"--dns-servers", server,
			"--wordlist", "words.txt",
			"--retries", "0",
			"--timeout", "2s",
			"--out", "found.json",
			"example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("2 subdomains of example.com found"))
		Expect(out).To(MatchRegexp(`mail\s+192\.0\.2\.2`))

		var subdomains []types.Subdomain
		Expect(json.Unmarshal(
			Successful(os.ReadFile(filepath.Join(tmp, "found.json"))), &subdomains)).To(Succeed())
		Expect(subdomains).To(Equal([]types.Subdomain{
			{Name: "mail.example.com", IPs: []string{"192.0.2.2"}},
			{Name: "www.example.com", IPs: []string{"192.0.2.1"}},
		}))
	})

	It("takes settings from a configuration file, unless overridden by flags", func(ctx context.Context) {
		server := serveZone()
		inTempDir()
		Expect(os.WriteFile("words.txt", []byte("www\nmail\n"), 0644)).To(Succeed())
		Expect(os.WriteFile("subdig.yaml", []byte(
			"domain: example.com\n"+
				"no_passive: true\n"+
				"wordlist: words.txt\n"+
				"retries: 0\n"+
				"out: found.json\n"+
				"dns_servers: [\""+server+"\"]\n"), 0644)).To(Succeed())
		_, err := subdig(ctx, "--config", "subdig.yaml", "--out", "found.txt")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(Successful(os.ReadFile("found.txt")))).To(Equal(
			"mail.example.com\nwww.example.com\n"))
		Expect("found.json").NotTo(BeAnExistingFile())
	})

	It("continues without a wordlist", func(ctx context.Context) {
		server := serveZone()
		inTempDir()
		_, err := subdig(ctx,
			"--no-passive", "--dns-servers", server, "--wordlist", "missing.txt",
			"--out", "found.csv", "example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(Successful(os.ReadFile("found.csv")))).To(Equal("name,ips\n"))
	})

	It("skips overlong wordlist lines", func(ctx context.Context) {
		server := serveZone()
		inTempDir()
		Expect(os.WriteFile("words.txt",
			[]byte(strings.Repeat("garbage", 10000)+"\nwww\nmail\n"), 0644)).To(Succeed())
		_, err := subdig(ctx,
			"--no-passive", "--dns-servers", server, "--wordlist", "words.txt",
			"--out", "found.txt", "example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(Successful(os.ReadFile("found.txt")))).To(Equal(
			"mail.example.com\nwww.example.com\n"))
	})

	It("fails without any answering DNS server", func(ctx context.Context) {
		pc := Successful(net.ListenPacket("udp", "127.0.0.1:0"))
		closed := pc.LocalAddr().String()
		Expect(pc.Close()).To(Succeed())
		inTempDir()
		Expect(os.WriteFile("words.txt", []byte("www\nmail\n"), 0644)).To(Succeed())
		_, err := subdig(ctx,
			"--no-passive", "--wildcard-filter=false",
			"--dns-servers", closed, "--retries", "0", "--timeout", "500ms",
			"--wordlist", "words.txt", "--out", "found.json", "example.com")
		Expect(err).To(MatchError(resolver.ErrNoServers))
		Expect(exitCode(err)).To(Equal(1))
		Expect(string(Successful(os.ReadFile("found.json")))).To(Equal("[]\n"))
	})

	It("reports failed wordlist downloads", func(ctx context.Context) {
		srv := httptest.NewServer(http.NotFoundHandler())
		DeferCleanup(srv.Close)
		inTempDir()
		_, err := subdig(ctx,
			"--no-passive", "--download-wordlist", srv.URL+"/words.txt",
			"--wordlist", "words.txt", "example.com")
		Expect(err).To(HaveOccurred())
		Expect(strings.Count(err.Error(), "cannot download wordlist")).To(Equal(1))
		Expect("words.txt").NotTo(BeAnExistingFile())
	})

	It("writes partial results when interrupted", func(ctx context.Context) {
		server := serveZone()
		inTempDir()
		Expect(os.WriteFile("words.txt", []byte("www\nmail\n"), 0644)).To(Succeed())
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := subdig(ctx,
			"--no-passive", "--dns-servers", server, "--wordlist", "words.txt",
			"--out", "found.json", "example.com")
		Expect(err).To(MatchError(errInterrupted))
		Expect(string(Successful(os.ReadFile("found.json")))).To(Equal("[]\n"))
	})

})
