/*
Package dig implements the bounded and streaming name-to-address digger at the
heart of subdig, together with the result table collecting the outcomes.

A [Digger] pulls candidate names from a forward-only sequence of candidates
and submits them to a limited pool of DNS workers, never allowing more than a
maximum number of resolutions to be outstanding at the same time. This keeps
memory bounded regardless of how many candidates there are. The outcomes of
the resolutions get streamed over the Digger's news channel in their order of
completion.

A [ResultTable] then consumes the news channel as its single writer, keeping
the outcomes of all candidates, counting them per status, and reporting
progress every so many processed candidates. Resolved names whose addresses
all belong to the wildcard addresses of the domain (see [DetectWildcard]) are
kept, but excluded from the found names.

Usage

	digger, news := dig.New(res, 30, 1000)
	table := dig.NewResultTable(dig.WithProgress(100, func(p dig.Progress) {
	    // ...
	}))
	go func() {
	    err = digger.Dig(ctx, stream)
	    digger.StopWait()
	}()
	table.Track(news)
	found := table.Found()

Digging is implemented in pure Go, leveraging the incredible Go modules
[miekg/dns] and [gammazero/workerpool].

[miekg/dns]: https://github.com/miekg/dns
[gammazero/workerpool]: https://github.com/gammazero/workerpool
*/
package dig
