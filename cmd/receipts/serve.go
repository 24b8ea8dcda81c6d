package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/receipt-flow/internal/metrics"
	"github.com/Veraticus/receipt-flow/internal/session"
)

func serveCmd() *cobra.Command {
	var (
		metricsAddr string
		userID      string
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the long-lived host with its session reaper and metrics endpoint",
		Long: `Keep sessions in memory across uploads. The reaper drops finished sessions
on its cron schedule and Prometheus metrics are served when an address is set.

With --interactive, commands are read from stdin:
  upload PATH [NOTE...]   recognize an image and open a session
  confirm SESSION         confirm a pending session
  cancel SESSION          void a pending session
  sessions                list this user's sessions
  stats                   show session counts`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Metrics.Addr = metricsAddr
			}

			sessions := newSessionManager(cfg)
			a, store, err := initAgent(ctx, cfg, sessions, true)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			reaper, err := session.NewReaper(sessions, cfg.Sessions.ReapSchedule, cfg.Sessions.MaxAge, slog.Default())
			if err != nil {
				return err
			}
			reaper.Start()
			defer func() { <-reaper.Stop().Done() }()

			var server *http.Server
			errCh := make(chan error, 1)
			if cfg.Metrics.Addr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				server = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
				go func() {
					slog.Info("Serving metrics", "addr", cfg.Metrics.Addr)
					if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						errCh <- err
					}
				}()
			}

			slog.Info("Receipts host running", "reap_schedule", cfg.Sessions.ReapSchedule, "max_age", cfg.Sessions.MaxAge)
			shellDone := make(chan struct{})
			if interactive {
				go func() {
					defer close(shellDone)
					runShell(ctx, &shell{agent: a, userID: userID, in: cmd.InOrStdin(), out: cmd.OutOrStdout()})
				}()
			}

			select {
			case <-ctx.Done():
			case <-shellDone:
			case err := <-errCh:
				return fmt.Errorf("metrics server failed: %w", err)
			}

			if server != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Warn("Failed to stop metrics server", "error", err)
				}
			}
			slog.Info("Receipts host stopped", "sessions", sessions.Stats().Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address for the Prometheus endpoint (overrides metrics.addr)")
	cmd.Flags().StringVar(&userID, "user", "default", "user id for interactive commands")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "read commands from stdin")
	return cmd
}
