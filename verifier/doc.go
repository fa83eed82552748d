/*
Package verifier implements an IP address verifier with caching in order to
avoid expensive duplicate IP address verification: names often share the same
addresses, such as when they are aliases of the same CDN edge.

The concrete IP address verification is then carried out by a [ping.Pinger].
*/
package verifier
