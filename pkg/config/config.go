// Package config loads vault-quest settings from the user config directory,
// the vault itself and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mklimuk/vault-quest/pkg/automation"
	"github.com/mklimuk/vault-quest/pkg/engine"
	"github.com/mklimuk/vault-quest/pkg/progress"
	"github.com/mklimuk/vault-quest/pkg/vault"
)

const (
	// EnvPrefix prefixes every environment override, e.g. VAULTQUEST_SERVER_ADDR.
	EnvPrefix = "VAULTQUEST"
	// VaultConfigName is the vault-level override file.
	VaultConfigName = ".vaultquest.yaml"
)

// Config holds all configuration for vault-quest.
type Config struct {
	Vault    string         `mapstructure:"vault"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Engine   engine.Config  `mapstructure:"engine"`
	Passive  progress.Rates `mapstructure:"passive"`
	DB       DBConfig       `mapstructure:"db"`
	Server   ServerConfig   `mapstructure:"server"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Git      GitConfig      `mapstructure:"git"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Log      LogConfig      `mapstructure:"log"`
}

// PathsConfig holds vault-relative input and output locations.
type PathsConfig struct {
	Rules             string   `mapstructure:"rules"`
	Todo              string   `mapstructure:"todo"`
	Journal           string   `mapstructure:"journal"`
	People            string   `mapstructure:"people"`
	Moods             string   `mapstructure:"moods"`
	Thoughts          string   `mapstructure:"thoughts"`
	ThoughtCategories []string `mapstructure:"thought_categories"`
	Skills            string   `mapstructure:"skills"`
	Snapshot          string   `mapstructure:"snapshot"`
	Dashboard         string   `mapstructure:"dashboard"`
	Reports           string   `mapstructure:"reports"`
	// Templates overrides the built-in report templates. Empty disables overrides.
	Templates string `mapstructure:"templates"`
}

// Layout returns the input part of the paths as a vault layout.
func (p PathsConfig) Layout() vault.Layout {
	return vault.Layout{
		Rules:             p.Rules,
		Todo:              p.Todo,
		Journal:           p.Journal,
		People:            p.People,
		Moods:             p.Moods,
		Thoughts:          p.Thoughts,
		ThoughtCategories: append([]string(nil), p.ThoughtCategories...),
		Skills:            p.Skills,
	}
}

// DBConfig holds the run ledger settings.
type DBConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// ScheduleConfig enables scheduled runs in serve mode.
type ScheduleConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	automation.Schedule `mapstructure:",squash"`
}

// WatchConfig holds file watching settings.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// GitConfig controls committing the generated files.
type GitConfig struct {
	Commit      bool   `mapstructure:"commit"`
	Push        bool   `mapstructure:"push"`
	AuthorName  string `mapstructure:"author_name"`
	AuthorEmail string `mapstructure:"author_email"`
	SSHKey      string `mapstructure:"ssh_key"`
}

// NotifyConfig holds notifier credentials. A notifier without a token is disabled.
type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Discord  DiscordConfig  `mapstructure:"discord"`
}

type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

type DiscordConfig struct {
	Token     string `mapstructure:"token"`
	ChannelID string `mapstructure:"channel_id"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load loads configuration with the following precedence (highest first):
//  1. Environment variables (VAULTQUEST_*, TELEGRAM_TOKEN, DISCORD_TOKEN)
//  2. Vault config (.vaultquest.yaml in the vault root)
//  3. User config ($XDG_CONFIG_HOME/vaultquest/config.yaml)
//  4. Built-in defaults
//
// A non-empty vaultPath replaces the configured vault.
func Load(vaultPath string) (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(UserConfigDir())
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if vaultPath != "" {
		v.Set("vault", vaultPath)
	}
	if root := v.GetString("vault"); root != "" {
		vaultConfig := filepath.Join(root, VaultConfigName)
		if _, err := os.Stat(vaultConfig); err == nil {
			vaultViper := viper.New()
			vaultViper.SetConfigFile(vaultConfig)
			if err := vaultViper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading vault config %s: %w", vaultConfig, err)
			}
			// the vault config cannot move the vault
			settings := vaultViper.AllSettings()
			delete(settings, "vault")
			if err := v.MergeConfigMap(settings); err != nil {
				return nil, fmt.Errorf("merging vault config: %w", err)
			}
		}
	}

	return unmarshal(v)
}

// LoadFromPath loads configuration from a single file on top of the defaults.
// Environment overrides still apply.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return unmarshal(v)
}

// Default returns a Config with default values.
func Default() *Config {
	layout := vault.DefaultLayout()
	return &Config{
		Paths: PathsConfig{
			Rules:             layout.Rules,
			Todo:              layout.Todo,
			Journal:           layout.Journal,
			People:            layout.People,
			Moods:             layout.Moods,
			Thoughts:          layout.Thoughts,
			ThoughtCategories: layout.ThoughtCategories,
			Skills:            layout.Skills,
			Snapshot:          "08_System/life_rpg_data.json",
			Dashboard:         "rpg_dashboard.html",
			Reports:           "06_RPG",
		},
		Engine:  engine.DefaultConfig(),
		Passive: progress.DefaultRates(),
		DB: DBConfig{
			Enabled: true,
			Path:    "08_System/vault_quest.db",
		},
		Server: ServerConfig{Addr: ":8080"},
		Schedule: ScheduleConfig{
			Schedule: automation.Schedule{Kind: "daily", Expr: "23:30"},
		},
		Watch: WatchConfig{Debounce: 2 * time.Second},
		Git: GitConfig{
			AuthorName:  "vault-quest",
			AuthorEmail: "vault-quest@localhost",
		},
		Log: LogConfig{Level: "info"},
	}
}

// UserConfigDir returns the XDG config directory for vault-quest.
func UserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "vaultquest")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "vaultquest")
	}
	return filepath.Join(home, ".config", "vaultquest")
}

// Resolve joins a vault-relative path with the vault root. Absolute and empty
// paths are returned unchanged.
func (c *Config) Resolve(rel string) string {
	if rel == "" || filepath.IsAbs(rel) || rel == ":memory:" {
		return rel
	}
	return filepath.Join(c.Vault, filepath.FromSlash(rel))
}

// Validate reports settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Vault == "" {
		errs = append(errs, errors.New("no vault configured"))
	}
	if c.Engine.UnitMinutes <= 0 {
		errs = append(errs, fmt.Errorf("engine.unit_minutes must be > 0, got %v", c.Engine.UnitMinutes))
	}
	if c.Paths.Journal == "" || c.Paths.Snapshot == "" {
		errs = append(errs, errors.New("paths.journal and paths.snapshot are required"))
	}
	if c.Schedule.Enabled {
		if _, err := automation.NextRun(c.Schedule.Schedule, time.Now()); err != nil {
			errs = append(errs, fmt.Errorf("schedule: %w", err))
		}
	}
	return errors.Join(errs...)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("notify.telegram.token", EnvPrefix+"_NOTIFY_TELEGRAM_TOKEN", "TELEGRAM_TOKEN")
	_ = v.BindEnv("notify.discord.token", EnvPrefix+"_NOTIFY_DISCORD_TOKEN", "DISCORD_TOKEN")
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Vault = os.ExpandEnv(cfg.Vault)
	cfg.Notify.Telegram.Token = os.ExpandEnv(cfg.Notify.Telegram.Token)
	cfg.Notify.Discord.Token = os.ExpandEnv(cfg.Notify.Discord.Token)
	return cfg, nil
}

// setDefaults registers every key so that AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("vault", d.Vault)

	v.SetDefault("paths.rules", d.Paths.Rules)
	v.SetDefault("paths.todo", d.Paths.Todo)
	v.SetDefault("paths.journal", d.Paths.Journal)
	v.SetDefault("paths.people", d.Paths.People)
	v.SetDefault("paths.moods", d.Paths.Moods)
	v.SetDefault("paths.thoughts", d.Paths.Thoughts)
	v.SetDefault("paths.thought_categories", d.Paths.ThoughtCategories)
	v.SetDefault("paths.skills", d.Paths.Skills)
	v.SetDefault("paths.snapshot", d.Paths.Snapshot)
	v.SetDefault("paths.dashboard", d.Paths.Dashboard)
	v.SetDefault("paths.reports", d.Paths.Reports)
	v.SetDefault("paths.templates", d.Paths.Templates)

	v.SetDefault("engine.run_tag", d.Engine.RunTag)
	v.SetDefault("engine.timer_tag", d.Engine.TimerTag)
	v.SetDefault("engine.unit_minutes", d.Engine.UnitMinutes)

	v.SetDefault("passive.mood_tags", d.Passive.MoodTags)
	v.SetDefault("passive.thoughts", d.Passive.Thoughts)

	v.SetDefault("db.enabled", d.DB.Enabled)
	v.SetDefault("db.path", d.DB.Path)

	v.SetDefault("server.addr", d.Server.Addr)

	v.SetDefault("schedule.enabled", d.Schedule.Enabled)
	v.SetDefault("schedule.kind", d.Schedule.Kind)
	v.SetDefault("schedule.expr", d.Schedule.Expr)
	v.SetDefault("schedule.timezone", d.Schedule.Timezone)

	v.SetDefault("watch.debounce", d.Watch.Debounce.String())

	v.SetDefault("git.commit", d.Git.Commit)
	v.SetDefault("git.push", d.Git.Push)
	v.SetDefault("git.author_name", d.Git.AuthorName)
	v.SetDefault("git.author_email", d.Git.AuthorEmail)
	v.SetDefault("git.ssh_key", d.Git.SSHKey)

	v.SetDefault("notify.telegram.token", d.Notify.Telegram.Token)
	v.SetDefault("notify.telegram.chat_id", d.Notify.Telegram.ChatID)
	v.SetDefault("notify.discord.token", d.Notify.Discord.Token)
	v.SetDefault("notify.discord.channel_id", d.Notify.Discord.ChannelID)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
}
