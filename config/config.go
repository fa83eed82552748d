// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/siemens/subdig/output"
	"github.com/siemens/subdig/resolver"

	"golang.org/x/net/publicsuffix"
	"gopkg.in/yaml.v3"
)

// Limits of the worker pool size.
const (
	MinConcurrency = 1
	MaxConcurrency = 100
)

// ErrInvalidDomain signals a malformed target domain, or a target domain that
// is a public suffix.
var ErrInvalidDomain = errors.New("invalid domain")

// domainRe matches domain names consisting of at least two labels.
var domainRe = regexp.MustCompile(
	`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)+$`)

// Config is the complete configuration of a subdomain enumeration run. The
// YAML keys double as the names of the corresponding command line flags, with
// underscores replaced by dashes.
type Config struct {
	Domain           string        `yaml:"domain"`
	Wordlist         string        `yaml:"wordlist"`
	DownloadWordlist string        `yaml:"download_wordlist"` // URL to download the wordlist from
	Out              string        `yaml:"out"`
	Format           string        `yaml:"format"` // empty: derive from the output file extension
	Concurrency      int           `yaml:"concurrency"`
	MaxPending       int           `yaml:"max_pending"`
	Timeout          time.Duration `yaml:"timeout"`
	HTTPTimeout      time.Duration `yaml:"http_timeout"`
	DNSServers       []string      `yaml:"dns_servers"` // empty: use the system's resolv.conf
	NoPassive        bool          `yaml:"no_passive"`
	CallsPerMinute   int           `yaml:"calls_per_minute"` // crt.sh rate limit
	ProgressEvery    int           `yaml:"progress_every"`
	MaxDepth         int           `yaml:"max_depth"`
	Retries          int           `yaml:"retries"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
	WildcardFilter   bool          `yaml:"wildcard_filter"`
	Verify           bool          `yaml:"verify"`
	Unprivileged     bool          `yaml:"unprivileged"`
	AliveOnly        bool          `yaml:"alive_only"`
	Verbose          bool          `yaml:"verbose"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Wordlist:       "wordlists/subdomains.txt",
		Out:            "results.json",
		Concurrency:    30,
		MaxPending:     1000,
		Timeout:        resolver.DefaultTimeout,
		HTTPTimeout:    15 * time.Second,
		DNSServers:     []string{"8.8.8.8", "1.1.1.1"},
		CallsPerMinute: 60,
		MaxDepth:       resolver.DefaultMaxDepth,
		Retries:        resolver.DefaultRetries,
		RetryBackoff:   resolver.DefaultBackoff,
		WildcardFilter: true,
	}
}

// Load the YAML configuration file at path on top of the base configuration.
// Unknown keys are rejected.
func Load(path string, base Config) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read configuration: %w", err)
	}
	defer f.Close()
	return Decode(f, base)
}

// Decode the YAML configuration from r on top of the base configuration.
func Decode(r io.Reader, base Config) (Config, error) {
	cfg := base
	cfg.DNSServers = append([]string(nil), base.DNSServers...)
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("malformed configuration: %w", err)
	}
	return cfg, nil
}

// String renders the configuration in YAML.
func (c Config) String() string {
	var buff bytes.Buffer
	enc := yaml.NewEncoder(&buff)
	enc.SetIndent(2)
	_ = enc.Encode(c)
	return buff.String()
}

// setters copy individual configuration items, keyed by their YAML keys.
var setters = map[string]func(dst *Config, src *Config){
	"domain":            func(d, s *Config) { d.Domain = s.Domain },
	"wordlist":          func(d, s *Config) { d.Wordlist = s.Wordlist },
	"download_wordlist": func(d, s *Config) { d.DownloadWordlist = s.DownloadWordlist },
	"out":               func(d, s *Config) { d.Out = s.Out },
	"format":            func(d, s *Config) { d.Format = s.Format },
	"concurrency":       func(d, s *Config) { d.Concurrency = s.Concurrency },
	"max_pending":       func(d, s *Config) { d.MaxPending = s.MaxPending },
	"timeout":           func(d, s *Config) { d.Timeout = s.Timeout },
	"http_timeout":      func(d, s *Config) { d.HTTPTimeout = s.HTTPTimeout },
	"dns_servers":       func(d, s *Config) { d.DNSServers = append([]string(nil), s.DNSServers...) },
	"no_passive":        func(d, s *Config) { d.NoPassive = s.NoPassive },
	"calls_per_minute":  func(d, s *Config) { d.CallsPerMinute = s.CallsPerMinute },
	"progress_every":    func(d, s *Config) { d.ProgressEvery = s.ProgressEvery },
	"max_depth":         func(d, s *Config) { d.MaxDepth = s.MaxDepth },
	"retries":           func(d, s *Config) { d.Retries = s.Retries },
	"retry_backoff":     func(d, s *Config) { d.RetryBackoff = s.RetryBackoff },
	"wildcard_filter":   func(d, s *Config) { d.WildcardFilter = s.WildcardFilter },
	"verify":            func(d, s *Config) { d.Verify = s.Verify },
	"unprivileged":      func(d, s *Config) { d.Unprivileged = s.Unprivileged },
	"alive_only":        func(d, s *Config) { d.AliveOnly = s.AliveOnly },
	"verbose":           func(d, s *Config) { d.Verbose = s.Verbose },
}

// Override the specified configuration items with the values from src. Keys
// are either YAML keys or flag names (with dashes instead of underscores).
func (c *Config) Override(src Config, keys ...string) error {
	for _, key := range keys {
		set, ok := setters[strings.ReplaceAll(key, "-", "_")]
		if !ok {
			return fmt.Errorf("unknown configuration item %q", key)
		}
		set(c, &src)
	}
	return nil
}

// IsKey returns true if key names a configuration item, either as a YAML key
// or as a flag name.
func IsKey(key string) bool {
	_, ok := setters[strings.ReplaceAll(key, "-", "_")]
	return ok
}

// Validate the configuration, normalizing the domain, the output format, and
// the maximum number of pending resolutions.
func (c *Config) Validate() error {
	if err := c.validateDomain(); err != nil {
		return err
	}
	switch {
	case c.Concurrency < MinConcurrency || c.Concurrency > MaxConcurrency:
		return fmt.Errorf("concurrency must be within %d..%d, got %d",
			MinConcurrency, MaxConcurrency, c.Concurrency)
	case c.MaxPending < 1:
		return fmt.Errorf("max pending must be positive, got %d", c.MaxPending)
	case c.Timeout <= 0:
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	case c.HTTPTimeout <= 0:
		return fmt.Errorf("HTTP timeout must be positive, got %s", c.HTTPTimeout)
	case c.ProgressEvery < 0:
		return fmt.Errorf("progress interval must not be negative, got %d", c.ProgressEvery)
	case c.MaxDepth < 0:
		return fmt.Errorf("max depth must not be negative, got %d", c.MaxDepth)
	case c.Retries < 0:
		return fmt.Errorf("retries must not be negative, got %d", c.Retries)
	case c.RetryBackoff < 0:
		return fmt.Errorf("retry backoff must not be negative, got %s", c.RetryBackoff)
	case c.CallsPerMinute < 0:
		return fmt.Errorf("calls per minute must not be negative, got %d", c.CallsPerMinute)
	case c.Out == "":
		return errors.New("output file must not be empty")
	}
	if c.MaxPending < c.Concurrency {
		c.MaxPending = c.Concurrency
	}
	if c.Format != "" {
		format, err := output.ParseFormat(c.Format)
		if err != nil {
			return err
		}
		c.Format = string(format)
	}
	for _, server := range c.DNSServers {
		if _, err := resolver.NormalizeServer(server); err != nil {
			return err
		}
	}
	return nil
}

// OutputFormat returns the configured output format, or the format implied by
// the output file extension if no format has been configured.
func (c *Config) OutputFormat() output.Format {
	if c.Format != "" {
		if format, err := output.ParseFormat(c.Format); err == nil {
			return format
		}
	}
	return output.FormatFromPath(c.Out)
}

// validateDomain normalizes the domain and checks that it is a syntactically
// valid domain name that is not a public suffix itself.
func (c *Config) validateDomain() error {
	domain := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(c.Domain)), ".")
	if domain == "" {
		return fmt.Errorf("%w: missing domain", ErrInvalidDomain)
	}
	if len(domain) > 253 || !domainRe.MatchString(domain) {
		return fmt.Errorf("%w: %q", ErrInvalidDomain, domain)
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(domain); err != nil {
		return fmt.Errorf("%w: %q is a public suffix", ErrInvalidDomain, domain)
	}
	c.Domain = domain
	return nil
}
