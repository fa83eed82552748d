/*
Package passive collects candidate names without ever talking to the target's
DNS servers, by searching the certificate transparency logs via the crt.sh
service.

Requests to crt.sh are rate limited (using [golang.org/x/time/rate]) and
retried with an exponential backoff (using [github.com/cenkalti/backoff/v4]).
Failing to collect passive names is never fatal to a run; callers log the
error and carry on with brute-forcing only.
*/
package passive
