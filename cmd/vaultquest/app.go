package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mklimuk/vault-quest/pkg/config"
	"github.com/mklimuk/vault-quest/pkg/db"
	"github.com/mklimuk/vault-quest/pkg/integration/discord"
	"github.com/mklimuk/vault-quest/pkg/integration/telegram"
	"github.com/mklimuk/vault-quest/pkg/logging"
	"github.com/mklimuk/vault-quest/pkg/pipeline"
	vsync "github.com/mklimuk/vault-quest/pkg/sync"
	"github.com/mklimuk/vault-quest/pkg/vault"
)

// app is the wired set of components one command works with.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	pipeline *pipeline.Pipeline
	ledger   *db.Repository

	closers []func()
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configFile != "" {
		cfg, err = config.LoadFromPath(opts.configFile)
		if err == nil && opts.vault != "" {
			cfg.Vault = opts.vault
		}
	} else {
		cfg, err = config.Load(opts.vault)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Vault == "" {
		return nil, fmt.Errorf("%w: no vault configured, pass --vault", vault.ErrVaultNotFound)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openApp loads the configuration, checks the vault and wires the pipeline
// with its ledger and git collaborators.
func openApp(opts *rootOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if _, err := vault.Open(cfg.Vault, cfg.Paths.Layout()); err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if opts.verbose {
		level = "debug"
	}
	log, err := logging.New(level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}
	a.closers = append(a.closers, func() { _ = log.Sync() })

	var deps pipeline.Deps
	if cfg.DB.Enabled {
		path := cfg.Resolve(cfg.DB.Path)
		database, err := db.NewDB(path)
		if err == nil {
			err = database.InitSchema()
			if err != nil {
				database.Close()
			}
		}
		if err != nil {
			log.Warn("run ledger unavailable", zap.String("path", path), zap.Error(err))
		} else {
			a.ledger = db.NewRepository(database)
			deps.Ledger = a.ledger
			a.closers = append(a.closers, func() { database.Close() })
		}
	}

	if cfg.Git.Commit {
		g := vsync.NewGitManager(cfg.Vault, log)
		if cfg.Git.AuthorName != "" {
			g.AuthorName = cfg.Git.AuthorName
		}
		if cfg.Git.AuthorEmail != "" {
			g.AuthorEmail = cfg.Git.AuthorEmail
		}
		if cfg.Git.SSHKey != "" {
			g.SSHKeyPath = cfg.Git.SSHKey
		}
		deps.Git = g
	}

	a.pipeline = pipeline.New(cfg, deps, log)
	return a, nil
}

// attachNotifiers connects the configured chat bots as run notifiers. With
// listen set, the bots also answer chat commands until Close.
func (a *app) attachNotifiers(listen bool) {
	tg := a.cfg.Notify.Telegram
	if tg.Token != "" && tg.ChatID != 0 {
		bot, err := telegram.NewBot(tg.Token, tg.ChatID, a.pipeline, a.log)
		if err != nil {
			a.log.Warn("telegram notifier disabled", zap.Error(err))
		} else {
			a.pipeline.AddNotifier(bot)
			if listen {
				if err := bot.Start(); err != nil {
					a.log.Warn("telegram commands unavailable", zap.Error(err))
				} else {
					a.log.Info("telegram bot started")
					a.closers = append(a.closers, bot.Stop)
				}
			}
		}
	}

	dc := a.cfg.Notify.Discord
	if dc.Token != "" && dc.ChannelID != "" {
		bot, err := discord.NewBot(dc.Token, dc.ChannelID, a.pipeline, a.log)
		if err != nil {
			a.log.Warn("discord notifier disabled", zap.Error(err))
			return
		}
		// the session must be open to send messages
		if err := bot.Start(); err != nil {
			a.log.Warn("discord notifier disabled", zap.Error(err))
			return
		}
		a.pipeline.AddNotifier(bot)
		a.closers = append(a.closers, func() { _ = bot.Stop() })
		if listen {
			a.log.Info("discord bot started")
		}
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
