package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mklimuk/vault-quest/pkg/api"
	"github.com/mklimuk/vault-quest/pkg/automation"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the snapshot over HTTP and run scheduled syncs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			return serve(cmd.Context(), a, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func serve(ctx context.Context, a *app, addr string) error {
	a.attachNotifiers(true)

	var schedule *automation.Schedule
	if a.cfg.Schedule.Enabled {
		s := a.cfg.Schedule.Schedule
		schedule = &s
		svc, err := automation.NewService(s, func(ctx context.Context) error {
			_, err := a.pipeline.Run(ctx)
			return err
		}, a.log.Named("schedule"))
		if err != nil {
			return fmt.Errorf("schedule: %w", err)
		}
		svc.Start(ctx)
		defer svc.Stop()
		a.log.Info("scheduled syncs enabled", zap.String("kind", s.Kind), zap.String("expr", s.Expr))
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(a.pipeline, schedule, a.log.Named("api")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
