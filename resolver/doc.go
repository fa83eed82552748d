/*
Package resolver resolves candidate names into their IPv4 and IPv6 addresses,
following CNAME aliases. The result of a resolution is always a
[types.Outcome]; per-name failures never surface as Go errors.

A [Resolver] queries A and AAAA records for a name and walks any aliases in
the answers, querying alias targets in turn. Alias chains are bounded by a
maximum depth and checked for loops using the set of names visited so far.
Timeouts and other transient failures (transport errors, SERVFAIL, REFUSED)
are retried a small number of times with an exponential backoff, moving on to
the next DNS server on every retry. Authoritative negative answers are never
retried.

The DNS servers are taken from the resolver configuration; if none are
configured, the system's resolv.conf is consulted instead.

The actual DNS message exchange is carried out by an [Exchanger], which by
default uses a [github.com/miekg/dns] client. Tests might substitute their
own Exchanger.

[github.com/miekg/dns]: https://github.com/miekg/dns
*/
package resolver
