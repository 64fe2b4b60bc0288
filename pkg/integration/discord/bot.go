package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/mklimuk/vault-quest/pkg/notify"
	"github.com/mklimuk/vault-quest/pkg/state"
)

// Service is what the bot commands act on.
type Service interface {
	Snapshot() (*state.Snapshot, error)
	Sync(ctx context.Context) (*state.Snapshot, error)
}

type channelSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Bot wraps the Discord session. It posts run summaries to ChannelID and
// answers !status and !sync.
type Bot struct {
	Session   *discordgo.Session
	ChannelID string
	Service   Service
	send      channelSender
	log       *zap.Logger
}

// NewBot creates a new Discord bot
func NewBot(token, channelID string, service Service, log *zap.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	bot := newBot(dg, channelID, service, log)
	bot.Session = dg
	dg.AddHandler(bot.messageCreate)

	return bot, nil
}

func newBot(s channelSender, channelID string, service Service, log *zap.Logger) *Bot {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{ChannelID: channelID, Service: service, send: s, log: log}
}

// Start opens the websocket connection
func (b *Bot) Start() error {
	return b.Session.Open()
}

// Stop closes the websocket connection
func (b *Bot) Stop() error {
	return b.Session.Close()
}

// Notify posts text to the configured channel.
func (b *Bot) Notify(_ context.Context, text string) error {
	if b.ChannelID == "" {
		return fmt.Errorf("discord channel not configured")
	}
	if _, err := b.send.ChannelMessageSend(b.ChannelID, text); err != nil {
		return fmt.Errorf("send discord message: %w", err)
	}
	return nil
}

func (b *Bot) messageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore messages from self
	if s.State != nil && s.State.User != nil && m.Author != nil && m.Author.ID == s.State.User.ID {
		return
	}
	b.handle(m.ChannelID, m.Content)
}

func (b *Bot) handle(channelID, content string) {
	var reply string
	switch strings.TrimSpace(content) {
	case "!status":
		reply = b.status()
	case "!sync":
		reply = b.sync()
	default:
		return
	}
	if _, err := b.send.ChannelMessageSend(channelID, reply); err != nil {
		b.log.Warn("failed to send Discord reply", zap.String("channel", channelID), zap.Error(err))
	}
}

func (b *Bot) status() string {
	snap, err := b.Service.Snapshot()
	if err != nil {
		return fmt.Sprintf("Error reading snapshot: %v", err)
	}
	return "🎮 " + notify.Status(snap)
}

func (b *Bot) sync() string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	prev, _ := b.Service.Snapshot()
	next, err := b.Service.Sync(ctx)
	if err != nil {
		return fmt.Sprintf("Sync failed: %v", err)
	}
	if s := notify.Summary(prev, next); s != "" {
		return "✅ " + s
	}
	return "✅ Synced. No new XP."
}
