package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"redlite/internal/manager"
)

func newRunCmd() *cobra.Command {
	var (
		dbPath   string
		binDir   string
		logLevel string
		sets     []string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start one server instance and hold it until interrupted",
		Long: `Start a server for the given data file, print its unix socket path
on stdout, and keep it alive until SIGINT or SIGTERM. With no --db an
ephemeral instance on a private temp directory is started.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := map[string]string{}
			for _, s := range sets {
				k, v, err := splitKV(s)
				if err != nil {
					return err
				}
				overrides[k] = v
			}

			log := newLogger(logLevel)
			mcfg := manager.Config{Logger: &log}
			if binDir != "" {
				mcfg.SearchDirs = []string{binDir}
			}
			mgr, err := manager.New(mcfg)
			if err != nil {
				return err
			}
			mgr.RegisterExitHook()

			h, err := mgr.GetOrCreate(cmd.Context(), dbPath, overrides)
			if err != nil {
				return err
			}
			// Socket path on stdout so scripts can capture it.
			fmt.Println(h.SocketPath())

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			sig := <-stop
			log.Info().Str("signal", sig.String()).Msg("stopping")
			return mgr.ShutdownAll()
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "Data file path; empty starts an ephemeral instance")
	cmd.Flags().StringVar(&binDir, "bin-dir", envOr("REDLITE_BIN_DIR", ""), "Directory holding redis-server and falkordb.so")
	cmd.Flags().StringVar(&logLevel, "log-level", envOr("REDLITE_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Extra server config directive, key=value (repeatable)")
	return cmd
}
