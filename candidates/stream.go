// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package candidates

import (
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// Stream is a lazy, finite, and non-restartable sequence of distinct and
// normalized candidate names drained from its sources in order. A Stream is
// not safe for concurrent use; it is meant to be advanced by a single
// goroutine only.
//
// Its usage mimics [bufio.Scanner]:
//
//	for stream.Next() {
//	    name := stream.Candidate()
//	}
//	if err := stream.Err(); err != nil {
//	    // fatal source error
//	}
type Stream struct {
	sources    []Source
	seen       map[string]struct{}
	candidate  string
	err        error
	duplicates int
	rejected   int
}

// NewStream returns a new Stream draining the specified sources one after
// another, in the order specified.
func NewStream(sources ...Source) *Stream {
	return &Stream{
		sources: sources,
		seen:    map[string]struct{}{},
	}
}

// Next advances the stream to the next distinct candidate name, which is then
// available through [Stream.Candidate]. It returns false when all sources are
// exhausted or a source failed; in the latter case [Stream.Err] returns the
// source error.
func (s *Stream) Next() bool {
	s.candidate = ""
	for s.err == nil && len(s.sources) > 0 {
		src := s.sources[0]
		if !src.Scan() {
			if err := src.Err(); err != nil {
				s.err = fmt.Errorf("reading candidate names: %w", err)
				return false
			}
			s.sources = s.sources[1:]
			continue
		}
		name := Normalize(src.Text())
		if !IsHostname(name) {
			s.rejected++
			continue
		}
		if _, ok := s.seen[name]; ok {
			s.duplicates++
			continue
		}
		s.seen[name] = struct{}{}
		s.candidate = name
		return true
	}
	return false
}

// Candidate returns the current candidate name.
func (s *Stream) Candidate() string { return s.candidate }

// Err returns the first source error encountered, if any.
func (s *Stream) Err() error { return s.err }

// Seen returns the number of distinct candidates produced so far.
func (s *Stream) Seen() int { return len(s.seen) }

// Duplicates returns the number of names dropped as duplicates so far.
func (s *Stream) Duplicates() int { return s.duplicates }

// Rejected returns the number of names dropped as syntactically invalid.
func (s *Stream) Rejected() int { return s.rejected }

// Normalize returns the canonical form of a host name: trimmed, lower-case,
// and without a trailing dot.
func Normalize(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
}

// IsHostname reports whether the (normalized) name is a syntactically
// acceptable host name consisting of at least two labels made of letters,
// digits, “-” and “_”.
func IsHostname(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	labels, ok := dns.IsDomainName(name)
	return ok && labels >= 2 && !strings.Contains(name, "..")
}
