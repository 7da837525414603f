package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"redlite/internal/config"
	"redlite/internal/httpapi"
	"redlite/internal/manager"
)

func newServeCmd() *cobra.Command {
	var (
		addr       string
		configPath string
		binDir     string
		logLevel   string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP instance-management API",
		RunE: func(cmd *cobra.Command, args []string) error {
			var fileCfg config.Config
			if configPath != "" {
				c, err := config.Load(configPath)
				if err != nil {
					return err
				}
				fileCfg = c
			}
			// Flags win over the config file, the file over env defaults.
			if !cmd.Flags().Changed("addr") && fileCfg.Addr != "" {
				addr = fileCfg.Addr
			}
			if !cmd.Flags().Changed("bin-dir") && fileCfg.BinDir != "" {
				binDir = fileCfg.BinDir
			}
			if !cmd.Flags().Changed("log-level") && fileCfg.LogLevel != "" {
				logLevel = fileCfg.LogLevel
			}

			log := newLogger(logLevel)

			mcfg := manager.Config{Logger: &log}
			if binDir != "" {
				mcfg.SearchDirs = []string{binDir}
			}
			if fileCfg.StartDeadlineSec > 0 {
				mcfg.StartDeadline = time.Duration(fileCfg.StartDeadlineSec) * time.Second
			}
			if fileCfg.StopGraceSec > 0 {
				mcfg.StopGrace = time.Duration(fileCfg.StopGraceSec) * time.Second
			}
			mgr, err := manager.New(mcfg)
			if err != nil {
				return err
			}
			mgr.RegisterExitHook()

			httpapi.SetLogger(log)
			httpapi.SetMaxBodyBytes(fileCfg.MaxBodyBytes)
			httpapi.SetCORSOptions(fileCfg.CORSEnabled, fileCfg.CORSOrigins, fileCfg.CORSMethods, fileCfg.CORSHeaders)

			baseCtx, cancelBase := context.WithCancel(context.Background())
			defer cancelBase()
			httpapi.SetBaseContext(baseCtx)

			srv := &http.Server{Addr: addr, Handler: httpapi.NewMux(mgr)}
			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", addr).Msg("redlite listening")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				_ = mgr.ShutdownAll()
				return err
			case sig := <-stop:
				log.Info().Str("signal", sig.String()).Msg("shutting down")
			}

			cancelBase()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.Warn().Err(err).Msg("graceful http shutdown")
			}
			return mgr.ShutdownAll()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", envOr("REDLITE_ADDR", ":8080"), "HTTP listen address, e.g. :8080")
	cmd.Flags().StringVar(&configPath, "config", envOr("REDLITE_CONFIG", ""), "Path to a yaml/json/toml config file")
	cmd.Flags().StringVar(&binDir, "bin-dir", envOr("REDLITE_BIN_DIR", ""), "Directory holding redis-server and falkordb.so")
	cmd.Flags().StringVar(&logLevel, "log-level", envOr("REDLITE_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	return cmd
}
