package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "redlite",
		Short:         "Embedded redis-server instance manager",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newRunCmd(), newStatusCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "redlite: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger writing to stderr so stdout stays
// machine-readable for the run command.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().Timestamp().Logger()
}

// envOr reads an environment default for a flag.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// splitKV parses one --set argument of the form "key=value".
func splitKV(s string) (string, string, error) {
	k, v, found := strings.Cut(s, "=")
	k = strings.TrimSpace(k)
	if !found || k == "" {
		return "", "", fmt.Errorf("invalid override %q, want key=value", s)
	}
	return k, v, nil
}
