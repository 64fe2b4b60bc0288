package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/mklimuk/vault-quest/pkg/notify"
	"github.com/mklimuk/vault-quest/pkg/state"
)

// Service is what the bot commands act on.
type Service interface {
	Snapshot() (*state.Snapshot, error)
	Sync(ctx context.Context) (*state.Snapshot, error)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot wraps the Telegram bot API. It notifies ChatID after runs and answers
// /status and /sync.
type Bot struct {
	API     *tgbotapi.BotAPI
	ChatID  int64
	Service Service
	send    sender
	log     *zap.Logger
	stopCh  chan struct{}
}

// NewBot creates a new Telegram bot
func NewBot(token string, chatID int64, service Service, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("error creating Telegram bot: %w", err)
	}
	b := newBot(api, chatID, service, log)
	b.API = api
	return b, nil
}

func newBot(s sender, chatID int64, service Service, log *zap.Logger) *Bot {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{
		ChatID:  chatID,
		Service: service,
		send:    s,
		log:     log,
		stopCh:  make(chan struct{}),
	}
}

// Notify sends text to the configured chat.
func (b *Bot) Notify(_ context.Context, text string) error {
	if b.ChatID == 0 {
		return fmt.Errorf("telegram chat id not configured")
	}
	if _, err := b.send.Send(tgbotapi.NewMessage(b.ChatID, text)); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// Start begins polling for updates in a goroutine
func (b *Bot) Start() error {
	if b.API == nil {
		return fmt.Errorf("telegram API not initialized")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.API.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-b.stopCh:
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil {
					b.handleMessage(update.Message)
				}
			}
		}
	}()

	return nil
}

// Stop stops polling for updates
func (b *Bot) Stop() {
	close(b.stopCh)
	if b.API != nil {
		b.API.StopReceivingUpdates()
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	// Commands are only accepted from the configured chat.
	if b.ChatID != 0 && msg.Chat != nil && msg.Chat.ID != b.ChatID {
		return
	}
	cmd, _ := ParseCommand(msg.Text)
	var text string
	switch cmd {
	case "/status":
		text = b.status()
	case "/sync":
		text = b.sync()
	default:
		return
	}
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	if _, err := b.send.Send(reply); err != nil {
		b.log.Warn("failed to send Telegram reply", zap.String("command", cmd), zap.Error(err))
	}
}

func (b *Bot) status() string {
	snap, err := b.Service.Snapshot()
	if err != nil {
		return fmt.Sprintf("Error reading snapshot: %v", err)
	}
	return notify.Status(snap)
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
		return s
	}
	return "Synced. No new XP."
}

// ParseCommand extracts the command and its argument from a message text.
// A "@botname" suffix on the command is ignored.
func ParseCommand(text string) (command, args string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	head, rest, _ := strings.Cut(text, " ")
	if i := strings.IndexByte(head, '@'); i >= 0 {
		head = head[:i]
	}
	switch head {
	case "/status", "/sync":
		return head, strings.TrimSpace(rest)
	}
	return "", text
}
