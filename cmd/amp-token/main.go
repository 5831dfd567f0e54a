// amp-token manages the AMP API session from the command line.
//
// Usage:
//
//	amp-token [flags] <command>
//
// Commands:
//
//	token    print a valid token, obtaining or refreshing it as needed
//	header   print the Authorization header value
//	info     describe the cached token without touching the network
//	refresh  force a refresh, falling back to a fresh obtain
//	obtain   discard the cached token and obtain a new one
//	clear    forget the cached token
//
// Settings come from the environment and an optional .env file. Without persistence
// (AMP_TOKEN_PERSISTENCE=none) every invocation starts with an empty cache.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"amp-session/internal/app"
	"amp-session/internal/circuitbreaker"
	"amp-session/internal/common/errors"
	"amp-session/internal/common/logging"
	"amp-session/internal/config"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if seconds, ok := errors.RetryAfter(err); ok {
			fmt.Fprintf(os.Stderr, "retry after %d seconds\n", seconds)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode separates caller mistakes from upstream trouble worth retrying later
func exitCode(err error) int {
	switch {
	case errors.IsType(err, errors.ErrTypeConfig), errors.IsType(err, errors.ErrTypeMissingCredential):
		return 2
	case errors.IsRetryable(err):
		return 3
	default:
		return 1
	}
}

func run(args []string, stdout io.Writer) error {
	var envFile string
	var logLevel string
	var timeout time.Duration

	flagSet := pflag.NewFlagSet("amp-token", pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "env-file", ".env", "dotenv file merged into the environment if present")
	flagSet.StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (DEBUG, INFO, WARN, ERROR)")
	flagSet.DurationVar(&timeout, "timeout", 2*time.Minute, "overall deadline for the command")
	flagSet.BoolP("help", "h", false, "show help")
	flagSet.SetOutput(io.Discard)

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(stdout, flagSet)
			return nil
		}
		return errors.ConfigError(err.Error())
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(stdout, flagSet)
		return nil
	}

	rest := flagSet.Args()
	if len(rest) != 1 {
		printHelp(stdout, flagSet)
		return errors.ConfigError("expected exactly one command")
	}
	command := rest[0]

	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := logging.InitGlobalLogger(cfg.LogLevel); err != nil {
		return err
	}
	defer logging.MustSync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Cleanup()

	return dispatch(ctx, application, command, stdout)
}

func dispatch(ctx context.Context, application *app.App, command string, stdout io.Writer) error {
	tokens := application.Tokens
	logging.Debug("Running command", logging.String("command", command))

	switch command {
	case "token":
		secret, err := tokens.GetToken(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, secret)

	case "header":
		header, err := tokens.AuthorizationHeader(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, header)

	case "refresh":
		secret, err := tokens.ForceRefresh(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, secret)

	case "obtain":
		secret, err := tokens.Obtain(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, secret)

	case "clear":
		tokens.ClearToken()
		fmt.Fprintln(stdout, "token cleared")

	case "info":
		return printInfo(application, stdout)

	default:
		return errors.ConfigError(fmt.Sprintf("unknown command %q", command))
	}
	return nil
}

type tokenInfo struct {
	Present       bool       `json:"present"`
	ObtainedAt    *time.Time `json:"obtained_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Age           string     `json:"age,omitempty"`
	TimeRemaining string     `json:"time_remaining,omitempty"`
	IsExpired     bool       `json:"is_expired"`
	ExpiresSoon   bool       `json:"expires_soon"`
	RefreshWindow string     `json:"refresh_window"`
	Persistence   string     `json:"persistence"`

	CircuitBreaker *circuitbreaker.Stats `json:"circuit_breaker,omitempty"`
}

func printInfo(application *app.App, stdout io.Writer) error {
	info := tokenInfo{
		RefreshWindow: application.Tokens.RefreshWindow().String(),
		Persistence:   application.Config.Persistence,
	}

	if snap, ok := application.Tokens.Snapshot(); ok {
		info.Present = true
		info.ObtainedAt = &snap.ObtainedAt
		info.ExpiresAt = &snap.ExpiresAt
		info.Age = snap.Age.Round(time.Second).String()
		info.TimeRemaining = snap.TimeRemaining.Round(time.Second).String()
		info.IsExpired = snap.IsExpired
		info.ExpiresSoon = snap.ExpiresSoon
	}

	if application.Breaker != nil {
		stats := application.Breaker.Stats()
		info.CircuitBreaker = &stats
	}

	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `amp-token manages the AMP API session token.

Usage: amp-token [flags] <token|header|info|refresh|obtain|clear>

Flags:
%s`, flagSet.FlagUsages())
}
