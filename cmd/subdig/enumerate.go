// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/siemens/subdig/candidates"
	"github.com/siemens/subdig/config"
	"github.com/siemens/subdig/dig"
	"github.com/siemens/subdig/output"
	"github.com/siemens/subdig/passive"
	"github.com/siemens/subdig/ping"
	"github.com/siemens/subdig/resolver"
	"github.com/siemens/subdig/types"
	"github.com/siemens/subdig/verifier"

	"github.com/gosuri/uilive"
)

// liveStatusInterval is the refresh interval of the live status display.
const liveStatusInterval = 100 * time.Millisecond

// Enumerate the subdomains of the configured domain: first collect names from
// certificate transparency logs, then resolve these names together with the
// names derived from the wordlist, optionally verify the found addresses,
// and finally write the results file and render a summary to w.
//
// The results file is also written for interrupted runs and for runs ending
// on a failing wordlist, with whatever has been found so far; Enumerate then
// returns errInterrupted or the wordlist error.
func Enumerate(ctx context.Context, cfg config.Config, log *slog.Logger, w io.Writer) error {
	start := time.Now()
	outpath, err := output.SafePath(cfg.Out)
	if err != nil {
		return err
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	if cfg.DownloadWordlist != "" {
		log.Info("downloading wordlist",
			slog.String("url", cfg.DownloadWordlist), slog.String("path", cfg.Wordlist))
		if err := candidates.DownloadWordlist(ctx, httpClient, cfg.DownloadWordlist, cfg.Wordlist); err != nil {
			return err
		}
	}
	res, err := resolver.New(
		resolver.WithServers(cfg.DNSServers...),
		resolver.WithTimeout(cfg.Timeout),
		resolver.WithRetries(cfg.Retries),
		resolver.WithBackoff(cfg.RetryBackoff),
		resolver.WithMaxDepth(cfg.MaxDepth),
		resolver.WithLogger(log))
	if err == nil {
		res, err = res.Reachable(ctx, cfg.Domain)
	}
	if err != nil {
		// Even without any usable DNS server there is an (empty) result.
		if werr := writeResults(outpath, cfg, log, nil); werr != nil {
			return werr
		}
		if ctx.Err() != nil {
			return errInterrupted
		}
		return fmt.Errorf("cannot set up DNS resolution: %w", err)
	}
	log.Debug("resolving names", slog.Any("servers", res.Servers()))

	// Passive names go first, followed by the names derived from the wordlist;
	// the candidate stream takes care of duplicates.
	var sources []candidates.Source
	if !cfg.NoPassive {
		client := passive.New(
			passive.WithHTTPClient(httpClient),
			passive.WithCallsPerMinute(cfg.CallsPerMinute),
			passive.WithLogger(log))
		names, err := client.Collect(ctx, cfg.Domain)
		if err != nil {
			log.Warn("cannot collect names from certificate transparency logs",
				slog.String("error", err.Error()))
		} else {
			log.Info("collected names from certificate transparency logs",
				slog.Int("names", len(names)))
			sources = append(sources, candidates.Names(names))
		}
	}
	wordlist, err := os.Open(cfg.Wordlist)
	if err != nil {
		log.Warn("wordlist unavailable, continuing with passive names only",
			slog.String("error", err.Error()))
	} else {
		defer wordlist.Close()
		sources = append(sources, candidates.Labels(wordlist, cfg.Domain))
	}
	stream := candidates.NewStream(sources...)

	var tableopts []dig.ResultTableOption
	if cfg.WildcardFilter {
		if wildcards := dig.DetectWildcard(ctx, res, cfg.Domain, log); len(wildcards) > 0 {
			log.Warn("wildcard DNS records detected, ignoring names resolving only to wildcard addresses",
				slog.Any("addresses", wildcards))
			tableopts = append(tableopts, dig.WithWildcardAddresses(wildcards))
		}
	}
	digger, news := dig.New(res, cfg.Concurrency, cfg.MaxPending, dig.WithLogger(log))
	if cfg.ProgressEvery > 0 {
		tableopts = append(tableopts, dig.WithProgress(cfg.ProgressEvery, func(p dig.Progress) {
			log.Info("progress",
				slog.Int("processed", p.Processed),
				slog.Int("found", p.Found),
				slog.Int("pending", digger.Pending()),
				slog.Duration("elapsed", time.Since(start).Round(time.Millisecond)))
		}))
	}
	table := dig.NewResultTable(tableopts...)

	// Now lets put the required processing elements and their plumbing in
	// place: the Digger pulls names from the candidate stream and reports
	// outcomes on its news channel, which the result table tracks until the
	// Digger has been stopped.
	var digErr error
	go func() {
		digErr = digger.Dig(ctx, stream)
		digger.StopWait()
	}()
	trackingDone := make(chan struct{})
	liveDone := make(chan struct{})
	if isTerminal(os.Stderr) && !cfg.Verbose {
		go showLiveStatus(cfg.Domain, start, digger, table, trackingDone, liveDone)
	} else {
		close(liveDone)
	}
	table.Track(news)
	close(trackingDone)
	<-liveDone

	stats := digger.Stats()
	log.Info("resolution finished",
		slog.Int("candidates", stream.Seen()),
		slog.Int("duplicates", stream.Duplicates()),
		slog.Int("rejected", stream.Rejected()),
		slog.Int("completed", stats.Completed),
		slog.Int("dropped", stats.Dropped),
		slog.Int("peak_pending", stats.PeakPending),
		slog.Int("found", table.NumFound()),
		slog.Int("wildcards", table.Wildcards()),
		slog.Duration("elapsed", time.Since(start).Round(time.Millisecond)))
	counts := table.Counts()
	for _, st := range types.Statuses {
		log.Debug("outcomes", slog.String("status", st.String()), slog.Int("count", counts[st]))
	}

	found := table.FoundOutcomes()
	var verdicts verifier.Verdicts
	if cfg.Verify && ctx.Err() == nil {
		found, verdicts = verify(ctx, cfg, log, found)
	}

	if err := writeResults(outpath, cfg, log, found); err != nil {
		return err
	}

	r := newRenderer(w, cfg.Domain, isTerminal(w))
	r.Indentation = int(*indentation)
	r.RenderSummary(found, verdicts)
	r.Stop()

	switch {
	case ctx.Err() != nil:
		return errInterrupted
	case digErr != nil:
		return fmt.Errorf("enumeration aborted: %w", digErr)
	}
	return nil
}

// writeResults writes the found names into the results file at outpath, in
// the configured format.
func writeResults(outpath string, cfg config.Config, log *slog.Logger, found []types.Outcome) error {
	subdomains := make([]types.Subdomain, 0, len(found))
	for _, outcome := range found {
		subdomains = append(subdomains, outcome.Subdomain())
	}
	format := cfg.OutputFormat()
	if err := output.WriteFile(outpath, format, subdomains); err != nil {
		return fmt.Errorf("cannot write results: %w", err)
	}
	log.Info("results written",
		slog.String("path", cfg.Out),
		slog.String("format", string(format)),
		slog.Int("names", len(subdomains)))
	return nil
}

// verify pings the addresses of the found names, returning the (optionally
// only alive) found names together with the final verdicts.
func verify(ctx context.Context, cfg config.Config, log *slog.Logger, found []types.Outcome) ([]types.Outcome, verifier.Verdicts) {
	var options []ping.PingerOption
	if cfg.Unprivileged {
		options = append(options, ping.AsUnprivileged())
	}
	v, news := verifier.New(cfg.Concurrency, options...)
	go v.Verify(ctx, found)
	verdicts := verifier.Collect(news)
	alive := 0
	for _, verdict := range verdicts {
		if verdict.Quality == types.Verified {
			alive++
		}
	}
	log.Info("addresses verified",
		slog.Int("addresses", len(verdicts)), slog.Int("alive", alive))
	if cfg.AliveOnly {
		found = verdicts.AliveOnly(found)
	}
	return found, verdicts
}

// showLiveStatus renders the live status line to stderr until tracking is
// done, routing log output around the live status in the meantime. It closes
// liveDone after having rendered the final status.
func showLiveStatus(domain string, start time.Time, digger *dig.Digger, table *dig.ResultTable, trackingDone <-chan struct{}, liveDone chan<- struct{}) {
	// Dunno what uilive's background updating mode using Start() is good
	// for? It may trigger anytime with the rendering into the buffer not
	// yet complete, thus making the terminal output very flickery. So we
	// avoid Start() and instead trigger an explicit flush to the terminal
	// after having completed the rendering.
	term := uilive.New()
	term.Out = os.Stderr
	restore := logOutput.Redirect(term.Bypass())
	r := newRenderer(term, domain, true)
	r.spinner.Start(*spinnerInterval)
	render := func() {
		r.RenderStatus(status{
			Processed: table.Processed(),
			Found:     table.NumFound(),
			Pending:   digger.Pending(),
			Wildcards: table.Wildcards(),
			Elapsed:   time.Since(start),
		})
		_ = term.Flush()
	}
	defer func() {
		render()
		r.Stop()
		restore()
		close(liveDone)
	}()
	render()
	ticker := time.NewTicker(liveStatusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			render()
		case <-trackingDone:
			return
		}
	}
}
