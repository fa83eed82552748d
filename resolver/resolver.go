// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/siemens/subdig/types"

	"github.com/cenkalti/backoff/v4"
	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"
)

// Defaults for newly created Resolvers.
const (
	DefaultTimeout  = 5 * time.Second
	DefaultRetries  = 2
	DefaultBackoff  = 100 * time.Millisecond
	DefaultMaxDepth = 3
)

var (
	// ErrNXDomain is the error detail of outcomes for names that do not exist.
	ErrNXDomain = errors.New("no such name")
	// ErrNoData is the error detail of outcomes for names that exist, but
	// have neither address nor alias records.
	ErrNoData = errors.New("no address records")
)

// RcodeError reports a DNS response with an error rcode.
type RcodeError struct {
	Name   string // queried name
	Rcode  int    // response code
	Server string // server that answered
}

func (e *RcodeError) Error() string {
	rcode, ok := dns.RcodeToString[e.Rcode]
	if !ok {
		rcode = fmt.Sprintf("RCODE%d", e.Rcode)
	}
	return fmt.Sprintf("query for %q answered with %s by %s", e.Name, rcode, e.Server)
}

// Resolver resolves names into their IP addresses, following aliases. A
// Resolver is safe for concurrent use by multiple resolution tasks, as it
// doesn't carry any mutable state once created.
type Resolver struct {
	servers   []string
	exchanger Exchanger
	network   string
	timeout   time.Duration
	retries   int
	backoff   time.Duration
	maxDepth  int
	log       *slog.Logger
}

// Option can be passed to New when creating new [Resolver] objects.
type Option func(*Resolver)

// New returns a new Resolver. Unless configured otherwise using options, the
// Resolver uses the DNS servers from the system's resolv.conf, a per-query
// timeout of [DefaultTimeout], [DefaultRetries] retries separated by an
// exponential backoff starting at [DefaultBackoff], and follows alias chains
// up to a depth of [DefaultMaxDepth].
//
// New fails with an error wrapping [ErrNoServers] if no DNS servers have been
// configured and the system's resolver configuration lists none either. It
// also fails for malformed DNS server addresses.
func New(options ...Option) (*Resolver, error) {
	r := &Resolver{
		network:  "udp",
		timeout:  DefaultTimeout,
		retries:  DefaultRetries,
		backoff:  DefaultBackoff,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range options {
		opt(r)
	}
	switch {
	case r.timeout <= 0:
		return nil, errors.New("resolver: timeout must be positive")
	case r.retries < 0:
		return nil, errors.New("resolver: retries must not be negative")
	case r.maxDepth < 0:
		return nil, errors.New("resolver: maximum alias depth must not be negative")
	}
	if len(r.servers) == 0 {
		servers, err := systemServers()
		if err != nil {
			return nil, err
		}
		r.servers = servers
	} else {
		servers := make([]string, 0, len(r.servers))
		for _, server := range r.servers {
			normalized, err := NormalizeServer(server)
			if err != nil {
				return nil, err
			}
			servers = append(servers, normalized)
		}
		r.servers = servers
	}
	if r.exchanger == nil {
		r.exchanger = newClientExchanger(r.network, r.timeout)
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	return r, nil
}

// WithServers sets the DNS servers to query, in order of preference. An empty
// list means to use the servers from the system's resolver configuration.
func WithServers(servers ...string) Option {
	return func(r *Resolver) {
		r.servers = append([]string(nil), servers...)
	}
}

// WithExchanger sets the Exchanger carrying out the DNS message exchanges.
func WithExchanger(x Exchanger) Option {
	return func(r *Resolver) {
		r.exchanger = x
	}
}

// WithNetwork sets the transport to use for queries, either "udp" (with
// automatic TCP fallback for truncated answers) or "tcp".
func WithNetwork(network string) Option {
	return func(r *Resolver) {
		r.network = network
	}
}

// WithTimeout sets the timeout of individual queries.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = timeout
	}
}

// WithRetries sets the number of retries after transient query failures.
func WithRetries(retries int) Option {
	return func(r *Resolver) {
		r.retries = retries
	}
}

// WithBackoff sets the initial backoff between retries; the backoff then
// doubles with each further retry.
func WithBackoff(backoff time.Duration) Option {
	return func(r *Resolver) {
		r.backoff = backoff
	}
}

// WithMaxDepth sets the maximum number of aliases to follow.
func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		r.maxDepth = depth
	}
}

// WithLogger sets the logger for debug information about retries.
func WithLogger(log *slog.Logger) Option {
	return func(r *Resolver) {
		r.log = log
	}
}

// Servers returns the DNS servers (“host:port”) used by this Resolver.
func (r *Resolver) Servers() []string {
	return append([]string(nil), r.servers...)
}

// MaxDepth returns the maximum number of aliases followed.
func (r *Resolver) MaxDepth() int { return r.maxDepth }

// Resolve the specified name into its IP addresses, following aliases, and
// return the outcome. Resolve blocks only on the DNS queries themselves and
// on backoffs between retries.
//
// Each hop queries A and then AAAA records. The aliases in the answers are
// walked starting at the name of the hop, recording the alias names in the
// outcome's chain. If the answers contain any addresses the outcome is
// [types.Resolved]; otherwise, the last alias becomes the next hop.
//
// Revisiting a name ends with [types.CNAMELoop]; having to follow more than
// the maximum depth of aliases ends with [types.MaxDepth]. Loops take
// precedence over the depth limit.
func (r *Resolver) Resolve(ctx context.Context, name string) types.Outcome {
	name = canonical(name)
	start := startIndex(name, len(r.servers))
	visited := map[string]struct{}{name: {}}
	var chain []string
	current := name
	for {
		answer, rcode, err := r.lookup(ctx, current, start)
		if err != nil {
			return types.NewOutcome(name, classify(err), nil, chain, err)
		}
		aliases := map[string]string{}
		var addrs []netip.Addr
		for _, rr := range answer {
			switch rr := rr.(type) {
			case *dns.CNAME:
				aliases[canonical(rr.Hdr.Name)] = canonical(rr.Target)
			case *dns.A:
				if addr, ok := netip.AddrFromSlice(rr.A); ok {
					addrs = append(addrs, addr.Unmap())
				}
			case *dns.AAAA:
				if addr, ok := netip.AddrFromSlice(rr.AAAA); ok {
					addrs = append(addrs, addr)
				}
			}
		}
		next := current
		for {
			target, ok := aliases[next]
			if !ok {
				break
			}
			if _, ok := visited[target]; ok {
				return types.NewOutcome(name, types.CNAMELoop, nil, chain,
					fmt.Errorf("alias %q of %q loops back", target, next))
			}
			if len(chain) >= r.maxDepth {
				return types.NewOutcome(name, types.MaxDepth, nil, chain,
					fmt.Errorf("alias %q of %q exceeds maximum depth %d", target, next, r.maxDepth))
			}
			visited[target] = struct{}{}
			chain = append(chain, target)
			next = target
		}
		switch {
		case len(addrs) > 0:
			return types.NewOutcome(name, types.Resolved, addrs, chain, nil)
		case rcode == dns.RcodeNameError:
			return types.NewOutcome(name, types.NXDomain, nil, chain, ErrNXDomain)
		case next == current:
			return types.NewOutcome(name, types.NXDomain, nil, chain, ErrNoData)
		}
		current = next
	}
}

// lookup queries the A and then AAAA records of the specified name and
// returns the combined answers together with the rcode. An NXDOMAIN answer to
// the A query ends the lookup without querying AAAA records. If only the AAAA
// query fails but the A query returned records, the A records are returned.
func (r *Resolver) lookup(ctx context.Context, name string, start int) ([]dns.RR, int, error) {
	resp, err := r.query(ctx, name, dns.TypeA, start)
	if err != nil {
		return nil, 0, err
	}
	if resp.Rcode == dns.RcodeNameError {
		return resp.Answer, dns.RcodeNameError, nil
	}
	answer := resp.Answer
	resp, err = r.query(ctx, name, dns.TypeAAAA, start)
	if err != nil {
		if len(answer) == 0 {
			return nil, 0, err
		}
		r.log.Debug("AAAA query failed, using A answer only",
			slog.String("name", name), slog.String("error", err.Error()))
		return answer, dns.RcodeSuccess, nil
	}
	rcode := resp.Rcode
	if rcode == dns.RcodeNameError && len(answer) > 0 {
		rcode = dns.RcodeSuccess
	}
	return append(answer, resp.Answer...), rcode, nil
}

// query sends a single query, retrying transient failures with an
// exponential backoff and moving on to the next server on each retry.
// Answers with either NOERROR or NXDOMAIN rcodes are returned as successful
// responses.
func (r *Resolver) query(ctx context.Context, name string, qtype uint16, start int) (*dns.Msg, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	attempt := 0
	op := func() (*dns.Msg, error) {
		server := r.servers[(start+attempt)%len(r.servers)]
		attempt++
		qctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		resp, err := r.exchanger.Exchange(qctx, m.Copy(), server)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, fmt.Errorf("query for %q via %s: %w", name, server, err)
		}
		if resp == nil {
			return nil, fmt.Errorf("query for %q via %s: empty response", name, server)
		}
		switch resp.Rcode {
		case dns.RcodeSuccess, dns.RcodeNameError:
			return resp, nil
		case dns.RcodeServerFailure, dns.RcodeRefused:
			return nil, &RcodeError{Name: name, Rcode: resp.Rcode, Server: server}
		default:
			return nil, backoff.Permanent(&RcodeError{Name: name, Rcode: resp.Rcode, Server: server})
		}
	}
	return backoff.RetryNotifyWithData(op, r.newBackOff(ctx),
		func(err error, wait time.Duration) {
			r.log.Debug("retrying DNS query",
				slog.String("name", name),
				slog.String("type", dns.TypeToString[qtype]),
				slog.Duration("backoff", wait),
				slog.String("error", err.Error()))
		})
}

// newBackOff returns the retry policy for queries: at most r.retries retries,
// with an exponential backoff starting at r.backoff and doubling each time.
func (r *Resolver) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.backoff
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.retries)), ctx)
}

// Reachable checks which of the DNS servers answer an SOA query for the
// specified domain, with any rcode, retrying like normal queries. It returns a
// Resolver using only the answering servers, keeping their order. If no server
// answers, Reachable fails with an error wrapping [ErrNoServers].
func (r *Resolver) Reachable(ctx context.Context, domain string) (*Resolver, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(canonical(domain)), dns.TypeSOA)
	errs := make([]error, len(r.servers))
	var g errgroup.Group
	for idx, server := range r.servers {
		idx, server := idx, server
		g.Go(func() error {
			errs[idx] = r.probe(ctx, m, server)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	servers := make([]string, 0, len(r.servers))
	for idx, server := range r.servers {
		if errs[idx] != nil {
			r.log.Warn("DNS server does not answer",
				slog.String("server", server), slog.String("error", errs[idx].Error()))
			continue
		}
		servers = append(servers, server)
	}
	if len(servers) == 0 {
		return nil, fmt.Errorf("%w: none of %s answers: %s",
			ErrNoServers, strings.Join(r.servers, ", "), errs[0].Error())
	}
	reachable := *r
	reachable.servers = servers
	return &reachable, nil
}

// probe sends the query m to the specified server until it gets any answer
// or runs out of retries.
func (r *Resolver) probe(ctx context.Context, m *dns.Msg, server string) error {
	return backoff.Retry(func() error {
		qctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		resp, err := r.exchanger.Exchange(qctx, m.Copy(), server)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		case resp == nil:
			return errors.New("empty response")
		}
		return nil
	}, r.newBackOff(ctx))
}

// classify maps a final query error onto an outcome status.
func classify(err error) types.Status {
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return types.Timeout
	}
	return types.Error
}

// canonical returns the lower-case form of name without a trailing dot.
func canonical(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
}
