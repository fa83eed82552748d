// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package candidates

import (
	"bufio"
	"io"
	"strings"
)

// maxLineLength is the longest wordlist line accepted; it is way beyond the
// longest possible DNS name. Longer lines are skipped.
const maxLineLength = 64 * 1024

// Source is a forward-only provider of raw names. Its method set is
// deliberately that of a [bufio.Scanner].
type Source interface {
	Scan() bool   // advances to the next name, returning false when done or failed.
	Text() string // returns the current name.
	Err() error   // returns the first non-EOF error encountered.
}

var _ Source = (*bufio.Scanner)(nil)

// Names returns a Source providing the specified already qualified names, such
// as names collected passively.
func Names(names []string) Source {
	return &nameList{names: names, idx: -1}
}

type nameList struct {
	names []string
	idx   int
}

func (n *nameList) Scan() bool {
	if n.idx+1 >= len(n.names) {
		n.idx = len(n.names)
		return false
	}
	n.idx++
	return true
}

func (n *nameList) Text() string {
	if n.idx < 0 || n.idx >= len(n.names) {
		return ""
	}
	return n.names[n.idx]
}

func (n *nameList) Err() error { return nil }

// Labels returns a Source reading wordlist lines from r, each non-empty line
// being a label that gets combined with domain into “label.domain”. Lines are
// trimmed; empty lines and lines starting with “#” are skipped. Lines longer
// than maxLineLength are skipped too, yet show up as empty names so that they
// get rejected as invalid names.
func Labels(r io.Reader, domain string) Source {
	return &labels{
		lines:  bufio.NewReaderSize(r, maxLineLength),
		suffix: "." + strings.TrimSuffix(domain, "."),
	}
}

type labels struct {
	lines  *bufio.Reader
	suffix string
	name   string
	err    error
}

func (l *labels) Scan() bool {
	l.name = ""
	for l.err == nil {
		line, overlong, err := l.lines.ReadLine()
		if err != nil {
			if err != io.EOF {
				l.err = err
			}
			return false
		}
		if overlong {
			l.discardRestOfLine()
			return true
		}
		label := strings.TrimSpace(string(line))
		if label == "" || strings.HasPrefix(label, "#") {
			continue
		}
		l.name = strings.TrimSuffix(label, ".") + l.suffix
		return true
	}
	return false
}

// discardRestOfLine skips the remainder of an overlong line.
func (l *labels) discardRestOfLine() {
	for {
		_, more, err := l.lines.ReadLine()
		if err != nil {
			if err != io.EOF {
				l.err = err
			}
			return
		}
		if !more {
			return
		}
	}
}

func (l *labels) Text() string { return l.name }

func (l *labels) Err() error { return l.err }
