/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/quotebattle/games/trivia"
)

const (
	quoteSourceAPI   = "api"
	quoteSourceLocal = "local"
)

type Config struct {
	bind           string
	fetchAttempts  uint
	fetchTimeout   time.Duration
	metrics        bool
	port           int
	prefix         string
	profile        bool
	quoteSource    string
	quoteURL       string
	rounds         int
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.rounds < 1 {
		return fmt.Errorf("invalid round count (must be at least 1): %d", c.rounds)
	}
	if c.fetchTimeout <= 0 {
		return fmt.Errorf("invalid fetch timeout (must be positive): %s", c.fetchTimeout)
	}
	if c.fetchAttempts < 1 {
		return fmt.Errorf("invalid fetch attempts (must be at least 1): %d", c.fetchAttempts)
	}
	if c.sessionTimeout < 0 {
		return fmt.Errorf("invalid session timeout (must not be negative): %s", c.sessionTimeout)
	}

	switch c.quoteSource {
	case quoteSourceLocal:
	case quoteSourceAPI:
		u, err := url.Parse(c.quoteURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid quote url: %q", c.quoteURL)
		}
	default:
		return fmt.Errorf("invalid quote source (must be %q or %q): %q", quoteSourceAPI, quoteSourceLocal, c.quoteSource)
	}

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("QUOTEBATTLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "quotebattle",
		Short:         "A two-player quote guessing game, served over websockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: QUOTEBATTLE_BIND)")
	fs.UintVar(&cfg.fetchAttempts, "fetch-attempts", 2, "tries per question fetch, including the first (env: QUOTEBATTLE_FETCH_ATTEMPTS)")
	fs.DurationVar(&cfg.fetchTimeout, "fetch-timeout", 5*time.Second, "time allowed for each question fetch (env: QUOTEBATTLE_FETCH_TIMEOUT)")
	fs.BoolVar(&cfg.metrics, "metrics", false, "serve prometheus metrics at /metrics (env: QUOTEBATTLE_METRICS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: QUOTEBATTLE_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: QUOTEBATTLE_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: QUOTEBATTLE_PROFILE)")
	fs.StringVar(&cfg.quoteSource, "quote-source", quoteSourceAPI, "where questions come from, api or local (env: QUOTEBATTLE_QUOTE_SOURCE)")
	fs.StringVar(&cfg.quoteURL, "quote-url", trivia.DefaultQuoteURL, "quote api endpoint (env: QUOTEBATTLE_QUOTE_URL)")
	fs.IntVar(&cfg.rounds, "rounds", trivia.DefaultRoundQuota, "questions per game (env: QUOTEBATTLE_ROUNDS)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle game sessions are ended, 0 to disable (env: QUOTEBATTLE_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: QUOTEBATTLE_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: QUOTEBATTLE_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: QUOTEBATTLE_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: QUOTEBATTLE_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("quotebattle v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
