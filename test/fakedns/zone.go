// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package fakedns

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"
)

// Zone is an in-memory set of DNS records answering queries like a very
// simple-minded name server.
type Zone struct {
	mu        sync.Mutex
	records   map[string][]dns.RR // fqdn -> records owned by this name
	failures  map[string]*failure // fqdn -> programmed failure
	calls     map[string]int      // name -> number of queries
	servers   []string            // servers in the order queried
	latency   func(name string) time.Duration
	recursive bool

	inflight atomic.Int64
	peak     atomic.Int64
}

// failure describes a programmed query failure for a name: either an
// (transport) error or an rcode, for a certain number of times (negative:
// always).
type failure struct {
	err   error
	rcode int
	times int
}

// timeoutError is a net.Error reporting a timeout.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout (fake)" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

// ErrTimeout is returned by a Zone for queries programmed to time out.
var ErrTimeout error = timeoutError{}

// New returns a new and empty Zone.
func New() *Zone {
	return &Zone{
		records:  map[string][]dns.RR{},
		failures: map[string]*failure{},
		calls:    map[string]int{},
	}
}

// Recursive makes the zone answer like a recursive resolver, that is,
// including the records of alias targets in the answer.
func (z *Zone) Recursive() *Zone {
	z.recursive = true
	return z
}

// WithLatency delays answering queries by the duration returned by fn for the
// queried name.
func (z *Zone) WithLatency(fn func(name string) time.Duration) *Zone {
	z.latency = fn
	return z
}

// A adds IPv4 address records for the specified name.
func (z *Zone) A(name string, addrs ...string) *Zone {
	fqdn := key(name)
	for _, addr := range addrs {
		z.add(fqdn, &dns.A{
			Hdr: dns.RR_Header{Name: fqdn, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 300},
			A:   net.ParseIP(addr).To4(),
		})
	}
	return z
}

// AAAA adds IPv6 address records for the specified name.
func (z *Zone) AAAA(name string, addrs ...string) *Zone {
	fqdn := key(name)
	for _, addr := range addrs {
		z.add(fqdn, &dns.AAAA{
			Hdr:  dns.RR_Header{Name: fqdn, Rrtype: dns.TypeAAAA, Class: dns.ClassINET, Ttl: 300},
			AAAA: net.ParseIP(addr),
		})
	}
	return z
}

// CNAME adds an alias from name to target.
func (z *Zone) CNAME(name, target string) *Zone {
	fqdn := key(name)
	z.add(fqdn, &dns.CNAME{
		Hdr:    dns.RR_Header{Name: fqdn, Rrtype: dns.TypeCNAME, Class: dns.ClassINET, Ttl: 300},
		Target: key(target),
	})
	return z
}

// NoData makes the specified name exist, but without any records.
func (z *Zone) NoData(name string) *Zone {
	z.mu.Lock()
	defer z.mu.Unlock()
	fqdn := key(name)
	if _, ok := z.records[fqdn]; !ok {
		z.records[fqdn] = nil
	}
	return z
}

// Fail makes queries for the specified name fail with the given error for
// the specified number of times; use a negative number to always fail.
func (z *Zone) Fail(name string, times int, err error) *Zone {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.failures[key(name)] = &failure{err: err, times: times}
	return z
}

// Timeout makes queries for the specified name time out for the specified
// number of times; use a negative number to always time out.
func (z *Zone) Timeout(name string, times int) *Zone {
	return z.Fail(name, times, ErrTimeout)
}

// Rcode makes queries for the specified name answer with the specified rcode
// for the specified number of times; use a negative number to do so forever.
func (z *Zone) Rcode(name string, times int, rcode int) *Zone {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.failures[key(name)] = &failure{rcode: rcode, times: times}
	return z
}

// Calls returns the number of queries (of any type) received so far for the
// specified name.
func (z *Zone) Calls(name string) int {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.calls[strings.TrimSuffix(key(name), ".")]
}

// Queries returns the total number of queries received so far.
func (z *Zone) Queries() int {
	z.mu.Lock()
	defer z.mu.Unlock()
	total := 0
	for _, count := range z.calls {
		total += count
	}
	return total
}

// Servers returns the server addresses in the order they were queried.
func (z *Zone) Servers() []string {
	z.mu.Lock()
	defer z.mu.Unlock()
	return append([]string(nil), z.servers...)
}

// PeakInflight returns the maximum number of queries that were in flight at
// the same time.
func (z *Zone) PeakInflight() int64 {
	return z.peak.Load()
}

// Exchange answers the single question in the specified query message.
func (z *Zone) Exchange(ctx context.Context, m *dns.Msg, server string) (*dns.Msg, error) {
	if len(m.Question) != 1 {
		return nil, errors.New("fakedns: expecting exactly one question")
	}
	q := m.Question[0]
	fqdn := key(q.Name)

	n := z.inflight.Add(1)
	defer z.inflight.Add(-1)
	for {
		peak := z.peak.Load()
		if n <= peak || z.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	z.mu.Lock()
	z.calls[strings.TrimSuffix(fqdn, ".")]++
	z.servers = append(z.servers, server)
	fail := z.failures[fqdn]
	var programmed *failure
	if fail != nil && fail.times != 0 {
		if fail.times > 0 {
			fail.times--
		}
		f := *fail
		programmed = &f
	}
	latency := z.latency
	z.mu.Unlock()

	if latency != nil {
		if d := latency(strings.TrimSuffix(fqdn, ".")); d > 0 {
			wecker := time.NewTimer(d)
			select {
			case <-wecker.C:
			case <-ctx.Done():
				wecker.Stop()
				return nil, ctx.Err()
			}
		}
	}

	resp := new(dns.Msg)
	resp.SetReply(m)
	resp.RecursionAvailable = true
	if programmed != nil {
		if programmed.err != nil {
			return nil, programmed.err
		}
		resp.Rcode = programmed.rcode
		return resp, nil
	}

	z.mu.Lock()
	defer z.mu.Unlock()
	if _, ok := z.records[fqdn]; !ok {
		resp.Rcode = dns.RcodeNameError
		return resp, nil
	}
	visited := map[string]bool{}
	name := fqdn
	for !visited[name] {
		visited[name] = true
		var alias string
		for _, rr := range z.records[name] {
			switch rr := rr.(type) {
			case *dns.CNAME:
				resp.Answer = append(resp.Answer, dns.Copy(rr))
				alias = rr.Target
			default:
				if rr.Header().Rrtype == q.Qtype {
					resp.Answer = append(resp.Answer, dns.Copy(rr))
				}
			}
		}
		if alias == "" || !z.recursive || q.Qtype == dns.TypeCNAME {
			break
		}
		name = alias
	}
	return resp, nil
}

// add appends a record to the specified name.
func (z *Zone) add(fqdn string, rr dns.RR) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.records[fqdn] = append(z.records[fqdn], rr)
}

// key returns the canonical lower-case FQDN form of name.
func key(name string) string {
	return dns.Fqdn(strings.ToLower(name))
}
