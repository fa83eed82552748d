/*
Package types defines subdig's information model. It mainly revolves around
the [Outcome] of resolving a single candidate name into its IP addresses,
together with the terminal [Status] of that resolution, as well as the
[Subdomain] records that finally get written out.

Additionally, [Verdict] and [Quality] describe the optional reachability
verification of resolved addresses.

# Immutability

Subdig is inherently concurrent: many resolution tasks run in parallel and
hand their outcomes over to a single aggregator. [Outcome] values are passed
by value through channels and must be treated as immutable after creation,
which is why the error detail is only accessible through a getter and why
[NewOutcome] returns a value that already carries sorted and deduplicated
addresses. This avoids a locking mess in the aggregator as well as subtle
bugs when outcomes get shared.
*/
package types
