// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/siemens/subdig/types"
	"github.com/siemens/subdig/verifier"

	"github.com/muesli/termenv"
)

// status is a snapshot of an ongoing enumeration, as shown by the live
// display.
type status struct {
	Processed int
	Found     int
	Pending   int
	Wildcards int
	Elapsed   time.Duration
}

// renderer renders the live status and the final summary of found names.
type renderer struct {
	Indentation int
	domain      string
	w           io.Writer
	color       bool
	spinner     *spinner
}

// newRenderer returns a renderer writing to the specified io.Writer, for
// names found under domain. Styles are only applied when color is true.
func newRenderer(w io.Writer, domain string, color bool) *renderer {
	return &renderer{
		domain:  domain,
		w:       w,
		color:   color,
		spinner: newSpinner(brailleSpinner),
	}
}

// Stop the renderer's background spinner.
func (r *renderer) Stop() {
	r.spinner.Stop()
}

func (r *renderer) styled(style termenv.Style, s string) string {
	if !r.color {
		return s
	}
	return style.Styled(s)
}

// RenderStatus renders a single status line.
func (r *renderer) RenderStatus(s status) {
	fmt.Fprintf(r.w, "%sdigging %s: %s processed, %s found, %d pending",
		r.spinner.Spinner(),
		r.styled(domainStyle, r.domain),
		r.styled(countStyle, fmt.Sprint(s.Processed)),
		r.styled(countStyle, fmt.Sprint(s.Found)),
		s.Pending)
	if s.Wildcards > 0 {
		fmt.Fprint(r.w, ", ", r.styled(wildcardStyle, fmt.Sprintf("%d wildcard", s.Wildcards)))
	}
	fmt.Fprintf(r.w, " (%s)\n", s.Elapsed.Round(100*time.Millisecond))
}

// RenderSummary renders the found names grouped by their parent domains,
// together with their addresses. If verdicts is non-nil, the addresses are
// marked as either reachable or unreachable.
func (r *renderer) RenderSummary(found []types.Outcome, verdicts verifier.Verdicts) {
	if len(found) == 0 {
		fmt.Fprintf(r.w, "no subdomains of %s found\n", r.styled(domainStyle, r.domain))
		return
	}
	groups := groupNames(found, r.domain)
	// For neat display, determine the length of the longest label, so that
	// the addresses column doesn't zig-zag around across different groups.
	maxlen := 0
	for _, group := range groups {
		for _, outcome := range group {
			if _, label := groupAndLabel(outcome.Name, r.domain); len(label) > maxlen {
				maxlen = len(label)
			}
		}
	}
	fmt.Fprintf(r.w, "%d subdomains of %s found\n", len(found), r.styled(domainStyle, r.domain))
	for _, group := range groups {
		parent := r.domain
		if g, _ := groupAndLabel(group[0].Name, r.domain); g != "" {
			parent = g + "." + r.domain
		}
		fmt.Fprintf(r.w, "names under %s\n", r.styled(domainStyle, parent))
		for _, outcome := range group {
			r.renderOutcome(maxlen, outcome, verdicts)
		}
	}
}

// renderOutcome renders a single name's label and its addresses.
func (r *renderer) renderOutcome(labelwidth int, outcome types.Outcome, verdicts verifier.Verdicts) {
	_, label := groupAndLabel(outcome.Name, r.domain)
	fmt.Fprintf(r.w, "%-*s%-*s", r.Indentation, "", labelwidth, label)
	for _, addr := range outcome.Addresses {
		fmt.Fprint(r.w, " ")
		if verdicts == nil {
			fmt.Fprintf(r.w, " %s", addr)
			continue
		}
		verdict, ok := verdicts[addr]
		switch {
		case !ok || verdict.Quality == types.Unverified:
			fmt.Fprintf(r.w, " ? %s", addr)
		case verdict.Quality == types.Verifying:
			fmt.Fprint(r.w, r.styled(verifyingAddressStyle, " "+r.spinner.Spinner()+addr.String()+" "))
		case verdict.Quality == types.Verified:
			fmt.Fprint(r.w, r.styled(validAddressStyle, " ✔ "+addr.String()+" "))
		default:
			fmt.Fprint(r.w, r.styled(invalidAddressStyle, " × "+addr.String()+" "))
		}
	}
	fmt.Fprintln(r.w)
}

// groupAndLabel returns the group and the leading label of a name relative to
// the domain; for instance, "api.eu.example.com" under "example.com" has the
// group "eu" and the label "api". Names directly below the domain belong to
// the group "", and the domain itself is labelled "@".
func groupAndLabel(name string, domain string) (group string, label string) {
	if name == domain {
		return "", "@"
	}
	rel := strings.TrimSuffix(name, "."+domain)
	label, group, _ = strings.Cut(rel, ".")
	return group, label
}

// groupNames returns the outcomes grouped by their groups, with the group ""
// first and the groups as well as the names inside each group sorted.
func groupNames(outcomes []types.Outcome, domain string) [][]types.Outcome {
	sorted := append([]types.Outcome(nil), outcomes...)
	sort.Slice(sorted, func(a, b int) bool {
		gA, lA := groupAndLabel(sorted[a].Name, domain)
		gB, lB := groupAndLabel(sorted[b].Name, domain)
		return (gA < gB) || ((gA == gB) && (lA < lB))
	})
	groups := [][]types.Outcome{}
	var recentGroup []types.Outcome
	recentName := ""
	for _, outcome := range sorted {
		gn, _ := groupAndLabel(outcome.Name, domain)
		// if this is the first group ever or we have wandered off into a new
		// group, then allocate a new group.
		if recentGroup == nil || gn != recentName {
			if recentGroup != nil {
				groups = append(groups, recentGroup)
			}
			recentGroup = []types.Outcome{}
			recentName = gn
		}
		recentGroup = append(recentGroup, outcome)
	}
	if recentGroup != nil {
		groups = append(groups, recentGroup)
	}
	return groups
}
