package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mklimuk/vault-quest/pkg/state"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

type fakeService struct {
	snap    *state.Snapshot
	next    *state.Snapshot
	syncErr error
}

func (f *fakeService) Snapshot() (*state.Snapshot, error) { return f.snap, nil }

func (f *fakeService) Sync(context.Context) (*state.Snapshot, error) {
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	f.snap = f.next
	return f.next, nil
}

func message(chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{Text: text, Chat: &tgbotapi.Chat{ID: chatID}}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCmd  string
		wantArgs string
	}{
		{
			name:    "status command",
			input:   "/status",
			wantCmd: "/status",
		},
		{
			name:    "sync command addressed to the bot",
			input:   "/sync@vault_quest_bot",
			wantCmd: "/sync",
		},
		{
			name:     "sync with args",
			input:    "/sync now ",
			wantCmd:  "/sync",
			wantArgs: "now",
		},
		{
			name:     "unknown command",
			input:    "/help",
			wantCmd:  "",
			wantArgs: "/help",
		},
		{
			name:     "plain text",
			input:    "hello world",
			wantCmd:  "",
			wantArgs: "hello world",
		},
		{
			name:     "prefix is not a command",
			input:    "/statusfoo",
			wantCmd:  "",
			wantArgs: "/statusfoo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args := ParseCommand(tt.input)
			if cmd != tt.wantCmd {
				t.Errorf("ParseCommand(%q) command = %q, want %q", tt.input, cmd, tt.wantCmd)
			}
			if args != tt.wantArgs {
				t.Errorf("ParseCommand(%q) args = %q, want %q", tt.input, args, tt.wantArgs)
			}
		})
	}
}

func TestNotify(t *testing.T) {
	s := &fakeSender{}
	b := newBot(s, 42, &fakeService{}, nil)
	if err := b.Notify(context.Background(), "Level 2 reached!"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(s.sent) != 1 || s.sent[0].ChatID != 42 || s.sent[0].Text != "Level 2 reached!" {
		t.Errorf("unexpected messages %+v", s.sent)
	}

	if err := newBot(s, 0, nil, nil).Notify(context.Background(), "x"); err == nil {
		t.Error("expected an error without chat id")
	}
}

func TestStatusCommand(t *testing.T) {
	s := &fakeSender{}
	b := newBot(s, 42, &fakeService{snap: &state.Snapshot{TotalXP: 120}}, nil)
	b.handleMessage(message(42, "/status"))

	if len(s.sent) != 1 {
		t.Fatalf("expected one reply, got %d", len(s.sent))
	}
	if !strings.Contains(s.sent[0].Text, "Level 2") {
		t.Errorf("unexpected reply %q", s.sent[0].Text)
	}
}

func TestSyncCommand(t *testing.T) {
	s := &fakeSender{}
	svc := &fakeService{snap: &state.Snapshot{TotalXP: 10}, next: &state.Snapshot{TotalXP: 13}}
	b := newBot(s, 42, svc, nil)
	b.handleMessage(message(42, "/sync"))

	if len(s.sent) != 1 || !strings.HasPrefix(s.sent[0].Text, "+3.00 XP") {
		t.Fatalf("unexpected replies %+v", s.sent)
	}

	svc.syncErr = errors.New("vault not found")
	b.handleMessage(message(42, "/sync"))
	if !strings.Contains(s.sent[1].Text, "Sync failed: vault not found") {
		t.Errorf("unexpected reply %q", s.sent[1].Text)
	}
}

func TestIgnoresOtherChats(t *testing.T) {
	s := &fakeSender{}
	b := newBot(s, 42, &fakeService{}, nil)
	b.handleMessage(message(7, "/status"))
	b.handleMessage(message(42, "hello"))
	if len(s.sent) != 0 {
		t.Errorf("expected no replies, got %+v", s.sent)
	}
}
