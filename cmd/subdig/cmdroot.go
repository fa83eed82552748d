// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/siemens/subdig/config"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	indentation     *uint
	spinnerInterval *time.Duration
)

func newRootCmd() (rootCmd *cobra.Command) {
	flagcfg := config.Default()
	var cfg config.Config
	var configPath string
	rootCmd = &cobra.Command{
		Use:          "subdig [flags] [domain]",
		Short:        "subdig discovers the subdomains of a domain from certificate transparency logs and by brute-forcing DNS names",
		Version:      "0.9",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if *indentation > 80 {
				return fmt.Errorf("--indent width out of range [0..80]")
			}
			if *spinnerInterval < 10*time.Millisecond {
				return fmt.Errorf("--spinner must be at least 10ms")
			}
			var err error
			cfg = config.Default()
			if configPath != "" {
				if cfg, err = config.Load(configPath, cfg); err != nil {
					return err
				}
			}
			// Flags explicitly set on the command line take precedence over
			// the configuration file.
			var keys []string
			cmd.Flags().Visit(func(f *pflag.Flag) {
				switch {
				case f.Name == "debug":
					keys = append(keys, "verbose")
				case config.IsKey(f.Name):
					keys = append(keys, f.Name)
				}
			})
			if err := cfg.Override(flagcfg, keys...); err != nil {
				return err
			}
			if len(args) == 1 {
				if cmd.Flags().Changed("domain") && args[0] != flagcfg.Domain {
					return fmt.Errorf("conflicting domains %q and %q", flagcfg.Domain, args[0])
				}
				cfg.Domain = args[0]
			}
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := newLogger(logOutput, cfg.Verbose)
			log.Debug("debug logging enabled")
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Enumerate(ctx, cfg, log, cmd.OutOrStdout())
		},
	}
	// Sets up the flags.
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "",
		"YAML configuration file; flags given explicitly take precedence")
	flags.StringVarP(&flagcfg.Domain, "domain", "d", "",
		"target domain, such as example.com")
	flags.StringVarP(&flagcfg.Wordlist, "wordlist", "w", flagcfg.Wordlist,
		"wordlist file with one label per line")
	flags.StringVarP(&flagcfg.DownloadWordlist, "download-wordlist", "D", "",
		"download the wordlist from this URL into the wordlist file first")
	flags.StringVarP(&flagcfg.Out, "out", "o", flagcfg.Out,
		"results file inside the working directory (.json, .csv, or text)")
	flags.StringVar(&flagcfg.Format, "format", "",
		"results file format json, txt, or csv (default: from the results file extension)")
	flags.IntVarP(&flagcfg.Concurrency, "concurrency", "c", flagcfg.Concurrency,
		fmt.Sprintf("number of DNS workers [%d..%d]", config.MinConcurrency, config.MaxConcurrency))
	flags.IntVar(&flagcfg.MaxPending, "max-pending", flagcfg.MaxPending,
		"maximum number of outstanding name resolutions")
	flags.DurationVar(&flagcfg.Timeout, "timeout", flagcfg.Timeout,
		"DNS query timeout")
	flags.DurationVar(&flagcfg.HTTPTimeout, "http-timeout", flagcfg.HTTPTimeout,
		"HTTP request timeout for downloads and crt.sh")
	flags.StringSliceVar(&flagcfg.DNSServers, "dns-servers", flagcfg.DNSServers,
		"DNS servers to query (empty: use the system's resolv.conf)")
	flags.BoolVar(&flagcfg.NoPassive, "no-passive", false,
		"disable collecting names from certificate transparency logs (crt.sh)")
	flags.IntVar(&flagcfg.CallsPerMinute, "calls-per-minute", flagcfg.CallsPerMinute,
		"maximum number of crt.sh requests per minute")
	flags.IntVar(&flagcfg.ProgressEvery, "progress-every", 0,
		"log progress every N processed names (0: off)")
	flags.IntVar(&flagcfg.MaxDepth, "max-depth", flagcfg.MaxDepth,
		"maximum number of CNAME aliases to follow")
	flags.IntVar(&flagcfg.Retries, "retries", flagcfg.Retries,
		"number of retries after DNS timeouts and server failures")
	flags.DurationVar(&flagcfg.RetryBackoff, "retry-backoff", flagcfg.RetryBackoff,
		"initial backoff between DNS query retries")
	flags.BoolVar(&flagcfg.WildcardFilter, "wildcard-filter", flagcfg.WildcardFilter,
		"detect wildcard DNS records and drop names resolving to wildcard addresses only")
	flags.BoolVar(&flagcfg.Verify, "verify", false,
		"verify the reachability of resolved addresses by pinging them")
	flags.BoolVar(&flagcfg.Unprivileged, "unprivileged", false,
		"use unprivileged UDP pings instead of ICMP")
	flags.BoolVar(&flagcfg.AliveOnly, "alive-only", false,
		"with --verify, only keep names with at least one reachable address")
	flags.BoolVarP(&flagcfg.Verbose, "verbose", "v", false,
		"enable debug logging")
	flags.BoolVar(&flagcfg.Verbose, "debug", false,
		"enable debug logging")
	indentation = flags.Uint(
		"indent", 3, "indentation width")
	spinnerInterval = flags.Duration(
		"spinner", 100*time.Millisecond, "spinner interval")
	return
}
