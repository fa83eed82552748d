/*
Package fakedns provides an in-memory DNS zone for testing name resolution
without touching the network. A [Zone] answers A, AAAA, and CNAME queries from
its records and can be programmed to fail queries for specific names with
transport errors, timeouts, or error rcodes a given number of times.

	zone := fakedns.New().
	    A("www.example.com", "1.2.3.4").
	    CNAME("shop.example.com", "edge.example.net").
	    A("edge.example.net", "5.6.7.8").
	    Timeout("slow.example.com", 2)

A Zone satisfies the exchange boundary of the resolver package and
additionally counts queries per name, as well as the number of concurrently
in-flight queries.
*/
package fakedns
