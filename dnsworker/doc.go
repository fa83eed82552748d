/*
Package dnsworker implements a simple limiting DNS task execution pool.
Subdig uses [DnsPool] with a pool of “DNS workers” for resolving candidate
names, so that at most a fixed number of resolutions are in flight at any
time. Please note that the A/AAAA queries for a single name are not
concurrent.

Usage

	res, _ := resolver.New(resolver.WithServers("8.8.8.8", "1.1.1.1"))
	workers := dnsworker.New(
	    30,  // number of parallel DNS workers
	    res, // shared resolver
	)
	workers.ResolveName(ctx,
	    "www.example.org",
	    func(outcome types.Outcome, err error) {
	        // do something with the outcome, unless there's an error reported
	    })
	workers.Submit(func(res *resolver.Resolver) {
	    // do something with the resolver
	})
	workers.StopWait()

# Acknowledgements

Under its hood, [DnsPool] leverages [gammazero/workerpool] as
the limiting goroutine pool.

[github.com/gammazero/workerpool]: https://github.com/gammazero/workerpool
*/
package dnsworker
