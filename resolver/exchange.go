// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package resolver

import (
	"context"
	"time"

	"github.com/miekg/dns"
)

// Exchanger sends a DNS query message to the specified server (“host:port”)
// and returns the response message.
type Exchanger interface {
	Exchange(ctx context.Context, m *dns.Msg, server string) (*dns.Msg, error)
}

// clientExchanger exchanges DNS messages using a miekg/dns client, falling
// back to TCP for truncated UDP answers.
type clientExchanger struct {
	udp *dns.Client
	tcp *dns.Client
}

var _ Exchanger = (*clientExchanger)(nil)

// newClientExchanger returns an Exchanger using the specified transport
// ("udp" or "tcp") and per-exchange timeout.
func newClientExchanger(network string, timeout time.Duration) *clientExchanger {
	x := &clientExchanger{
		tcp: &dns.Client{Net: "tcp", Timeout: timeout},
	}
	if network != "tcp" {
		x.udp = &dns.Client{Net: "udp", Timeout: timeout}
	}
	return x
}

// Exchange the query message m with the specified server.
func (x *clientExchanger) Exchange(ctx context.Context, m *dns.Msg, server string) (*dns.Msg, error) {
	if x.udp != nil {
		r, _, err := x.udp.ExchangeContext(ctx, m, server)
		if err != nil || !r.Truncated {
			return r, err
		}
	}
	r, _, err := x.tcp.ExchangeContext(ctx, m, server)
	return r, err
}
