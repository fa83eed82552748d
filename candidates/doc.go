/*
Package candidates produces the lazy, deduplicated stream of candidate host
names to be resolved.

Candidates originate from one or more [Source] objects, such as the names
collected passively (see [Names]) and the labels of a wordlist combined with
the target domain (see [Labels]). A [Stream] drains its sources one after
another, normalizes each name, and drops names it has already seen.

	          +--------+
	passive-->|        |
	          | Stream +-->Next()/Candidate()
	wordlist->|        |
	          +--------+

A Stream never buffers more than the current line of a source; the only data
structure growing with the run is the set of names seen so far. This set is
touched only by the goroutine advancing the stream, so it doesn't need any
locking.
*/
package candidates
