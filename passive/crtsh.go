// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package passive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/siemens/subdig/candidates"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Defaults for newly created crt.sh Clients.
const (
	DefaultURL            = "https://crt.sh/"
	DefaultTimeout        = 15 * time.Second
	DefaultCallsPerMinute = 60
	DefaultAttempts       = 3
	DefaultBackoff        = time.Second
	DefaultBackoffFactor  = 1.5
)

// Record is a single certificate record as returned by crt.sh; only the
// certificate names are of interest.
type Record struct {
	NameValue string `json:"name_value"`
}

// StatusError reports an unsuccessful HTTP response from crt.sh.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("crt.sh answered with HTTP status %d %s",
		e.StatusCode, http.StatusText(e.StatusCode))
}

// Client collects names from the certificate transparency logs as searchable
// via crt.sh. A Client is safe for concurrent use; all its requests share the
// same rate limit.
type Client struct {
	http     *http.Client
	url      string
	limiter  *rate.Limiter
	attempts int
	backoff  time.Duration
	factor   float64
	log      *slog.Logger
}

// Option can be passed to New when creating new [Client] objects.
type Option func(*Client)

// New returns a new crt.sh Client. Unless configured otherwise using options,
// the Client uses an HTTP timeout of [DefaultTimeout], limits itself to
// [DefaultCallsPerMinute] requests per minute, and makes up to
// [DefaultAttempts] attempts separated by an exponential backoff starting at
// [DefaultBackoff].
func New(options ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: DefaultTimeout},
		url:      DefaultURL,
		limiter:  perMinute(DefaultCallsPerMinute),
		attempts: DefaultAttempts,
		backoff:  DefaultBackoff,
		factor:   DefaultBackoffFactor,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.attempts < 1 {
		c.attempts = 1
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// WithTimeout sets the timeout of individual HTTP requests.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.http = &http.Client{Timeout: timeout, Transport: c.http.Transport}
	}
}

// WithHTTPClient sets the HTTP client to use.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

// WithURL sets the crt.sh service URL.
func WithURL(url string) Option {
	return func(c *Client) {
		c.url = url
	}
}

// WithCallsPerMinute limits the number of requests per minute; zero or less
// removes the limit.
func WithCallsPerMinute(calls int) Option {
	return func(c *Client) {
		c.limiter = perMinute(calls)
	}
}

// WithAttempts sets the maximum number of attempts per collection.
func WithAttempts(attempts int) Option {
	return func(c *Client) {
		c.attempts = attempts
	}
}

// WithBackoff sets the initial backoff between attempts and the factor it
// grows by with each further attempt.
func WithBackoff(initial time.Duration, factor float64) Option {
	return func(c *Client) {
		c.backoff = initial
		c.factor = factor
	}
}

// WithLogger sets the logger for information about failed attempts.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// perMinute returns a limiter allowing the specified number of calls per
// minute, with bursts of up to the same number.
func perMinute(calls int) *rate.Limiter {
	if calls <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(calls)), calls)
}

// Collect returns the distinct names below the specified domain (including
// the domain itself) found in the certificate transparency logs, in order of
// their first appearance.
func (c *Client) Collect(ctx context.Context, domain string) ([]string, error) {
	domain = candidates.Normalize(domain)
	records, err := c.fetch(ctx, domain)
	if err != nil {
		return nil, err
	}
	names := Names(records, domain)
	c.log.Debug("collected names from crt.sh",
		slog.String("domain", domain),
		slog.Int("records", len(records)),
		slog.Int("names", len(names)))
	return names, nil
}

// fetch the certificate records for the domain and its subdomains, retrying
// failed attempts.
func (c *Client) fetch(ctx context.Context, domain string) ([]Record, error) {
	query, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("invalid crt.sh URL %q: %w", c.url, err)
	}
	query.RawQuery = "q=%25." + url.QueryEscape(domain) + "&output=json"
	endpoint := query.String()

	attempt := 0
	op := func() ([]Record, error) {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		records, err := c.get(ctx, endpoint)
		if err != nil && ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return records, err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.backoff
	b.Multiplier = c.factor
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	records, err := backoff.RetryNotifyWithData(op,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.attempts-1)), ctx),
		func(err error, wait time.Duration) {
			c.log.Info("retrying crt.sh",
				slog.Int("attempt", attempt+1),
				slog.Int("attempts", c.attempts),
				slog.Duration("backoff", wait),
				slog.String("error", err.Error()))
		})
	if err != nil {
		return nil, fmt.Errorf("collecting names from crt.sh after %d attempt(s): %w", attempt, err)
	}
	return records, nil
}

// get a single response and decode its certificate records. Client errors
// other than being rate limited are permanent.
func (c *Client) get(ctx context.Context, endpoint string) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		err := &StatusError{StatusCode: resp.StatusCode}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 &&
			resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	var records []Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("malformed crt.sh response: %w", err)
		}
		return nil, backoff.Permanent(fmt.Errorf("unexpected crt.sh response: %w", err))
	}
	return records, nil
}

// Names extracts the distinct names below the specified (normalized) domain
// from the certificate records, in order of their first appearance. Wildcard
// and leading dot prefixes are removed, e-mail addresses are skipped.
func Names(records []Record, domain string) []string {
	seen := map[string]struct{}{}
	var names []string
	for _, record := range records {
		for _, line := range strings.Split(record.NameValue, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.Contains(line, "@") {
				continue
			}
			name := candidates.Normalize(strings.TrimLeft(line, "*."))
			if name != domain && !strings.HasSuffix(name, "."+domain) {
				continue
			}
			if !candidates.IsHostname(name) {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}
