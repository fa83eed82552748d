// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package dig

import (
	"net/netip"
	"sort"
	"sync/atomic"

	"github.com/siemens/subdig/types"
)

// Progress is a snapshot of the ResultTable counters, passed to progress
// callbacks.
type Progress struct {
	Processed int // number of outcomes received, regardless of status
	Found     int // number of resolved names, excluding wildcard matches
}

// ResultTable maps candidate names to their resolution outcomes. A typical use
// case for a ResultTable is to consume the outcomes from the news channel of a
// [Digger].
//
// A ResultTable has a single writer: only the goroutine calling
// [ResultTable.Track] (or [ResultTable.Add]) modifies the table, so the table
// itself isn't locked. The table contents must thus only be read using
// [ResultTable.Found] and [ResultTable.Outcomes] after tracking has finished.
// The counters, however, can be read at any time.
type ResultTable struct {
	outcomes map[string]types.Outcome
	wildcard map[netip.Addr]struct{}
	every    int
	progress func(Progress)

	processed atomic.Int64
	found     atomic.Int64
	wildcards atomic.Int64
	counts    [6]atomic.Int64 // indexed by types.Status
}

// ResultTableOption can be passed to NewResultTable when creating new
// [ResultTable] objects.
type ResultTableOption func(*ResultTable)

// WithProgress calls fn every time another every outcomes have been
// processed; fn is called from the tracking goroutine. An every of zero
// disables progress reporting.
func WithProgress(every int, fn func(Progress)) ResultTableOption {
	return func(t *ResultTable) {
		t.every = every
		t.progress = fn
	}
}

// WithWildcardAddresses excludes resolved names from the found names when all
// their addresses belong to the specified wildcard addresses.
func WithWildcardAddresses(addrs []netip.Addr) ResultTableOption {
	return func(t *ResultTable) {
		for _, addr := range addrs {
			t.wildcard[addr.Unmap()] = struct{}{}
		}
	}
}

// NewResultTable returns a new and properly initialized ResultTable.
func NewResultTable(options ...ResultTableOption) *ResultTable {
	t := &ResultTable{
		outcomes: map[string]types.Outcome{},
		wildcard: map[netip.Addr]struct{}{},
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Add an outcome to the table. Outcomes for names already in the table are
// ignored.
func (t *ResultTable) Add(outcome types.Outcome) {
	if _, ok := t.outcomes[outcome.Name]; ok {
		return
	}
	t.outcomes[outcome.Name] = outcome
	if int(outcome.Status) >= 0 && int(outcome.Status) < len(t.counts) {
		t.counts[outcome.Status].Add(1)
	}
	if outcome.Status == types.Resolved {
		if t.isWildcard(outcome) {
			t.wildcards.Add(1)
		} else {
			t.found.Add(1)
		}
	}
	processed := t.processed.Add(1)
	if t.every > 0 && t.progress != nil && processed%int64(t.every) == 0 {
		t.progress(Progress{
			Processed: int(processed),
			Found:     int(t.found.Load()),
		})
	}
}

// Track outcomes received from the specified news channel until the channel
// is closed. Track returns only after processing all outcomes, so that
// partial results are never lost.
func (t *ResultTable) Track(news <-chan types.Outcome) {
	for outcome := range news {
		t.Add(outcome)
	}
}

// Processed returns the number of outcomes processed so far.
func (t *ResultTable) Processed() int { return int(t.processed.Load()) }

// NumFound returns the number of found names so far.
func (t *ResultTable) NumFound() int { return int(t.found.Load()) }

// Wildcards returns the number of resolved names so far that were excluded as
// matching the wildcard addresses.
func (t *ResultTable) Wildcards() int { return int(t.wildcards.Load()) }

// Counts returns the number of outcomes per status so far.
func (t *ResultTable) Counts() map[types.Status]int {
	counts := make(map[types.Status]int, len(types.Statuses))
	for _, status := range types.Statuses {
		counts[status] = int(t.counts[status].Load())
	}
	return counts
}

// Found returns the found names, that is, resolved names not matching the
// wildcard addresses, sorted by name.
func (t *ResultTable) Found() []types.Subdomain {
	found := t.FoundOutcomes()
	subdomains := make([]types.Subdomain, 0, len(found))
	for _, outcome := range found {
		subdomains = append(subdomains, outcome.Subdomain())
	}
	return subdomains
}

// FoundOutcomes returns the outcomes of the found names, sorted by name.
func (t *ResultTable) FoundOutcomes() []types.Outcome {
	found := make([]types.Outcome, 0, len(t.outcomes))
	for _, outcome := range t.outcomes {
		if outcome.Status == types.Resolved && !t.isWildcard(outcome) {
			found = append(found, outcome)
		}
	}
	sortOutcomes(found)
	return found
}

// Outcomes returns all outcomes, regardless of their status, sorted by name.
func (t *ResultTable) Outcomes() []types.Outcome {
	outcomes := make([]types.Outcome, 0, len(t.outcomes))
	for _, outcome := range t.outcomes {
		outcomes = append(outcomes, outcome)
	}
	sortOutcomes(outcomes)
	return outcomes
}

// isWildcard returns true if all the addresses of the outcome are wildcard
// addresses.
func (t *ResultTable) isWildcard(outcome types.Outcome) bool {
	if len(t.wildcard) == 0 || len(outcome.Addresses) == 0 {
		return false
	}
	for _, addr := range outcome.Addresses {
		if _, ok := t.wildcard[addr]; !ok {
			return false
		}
	}
	return true
}

func sortOutcomes(outcomes []types.Outcome) {
	sort.Slice(outcomes, func(a, b int) bool {
		return outcomes[a].Name < outcomes[b].Name
	})
}
