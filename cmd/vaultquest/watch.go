package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mklimuk/vault-quest/pkg/vault"
	"github.com/mklimuk/vault-quest/pkg/watch"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Sync whenever the journal, to-do list or rule table changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			a.attachNotifiers(true)
			return watchVault(cmd.Context(), a)
		},
	}
}

func watchVault(ctx context.Context, a *app) error {
	run := func(ctx context.Context) error {
		out, err := a.pipeline.Run(ctx)
		if err != nil {
			return err
		}
		a.log.Info("sync complete",
			zap.String("watermark", out.Snapshot.LastProcessedDate),
			zap.Float64("total_xp", out.Snapshot.TotalXP),
			zap.Int("level", out.Snapshot.Level.Level))
		return nil
	}

	if err := run(ctx); err != nil {
		if errors.Is(err, vault.ErrVaultNotFound) {
			return err
		}
		a.log.Error("initial sync failed", zap.Error(err))
	}

	paths := a.cfg.Paths
	w, err := watch.New(watch.Options{
		Dirs:     []string{a.cfg.Resolve(paths.Journal)},
		Files:    []string{a.cfg.Resolve(paths.Todo), a.cfg.Resolve(paths.Rules)},
		Debounce: a.cfg.Watch.Debounce,
	}, run, a.log.Named("watch"))
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	a.log.Info("watching vault", zap.String("vault", a.cfg.Vault))
	<-ctx.Done()
	return nil
}
