package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/linewatch/internal/storage"
)

type fakeBot struct {
	sent     []tgbotapi.MessageConfig
	failures int
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if b.failures > 0 {
		b.failures--
		return tgbotapi.Message{}, errors.New("telegram unavailable")
	}
	b.sent = append(b.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (b *fakeBot) StopReceivingUpdates() {}

const adminID = 7

func newTestClient(t *testing.T) (*Client, *fakeBot, *storage.Storage) {
	t.Helper()
	s, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	bot := &fakeBot{}
	return newClient(bot, "-1001", []int64{adminID}, s, 3, time.Millisecond), bot, s
}

func command(from int64, text string) *tgbotapi.Message {
	name := strings.SplitN(text, " ", 2)[0]
	return &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: from},
		Chat:      &tgbotapi.Chat{ID: 500},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}
}

func TestParseChatID(t *testing.T) {
	tests := []struct {
		input   string
		want    chatTarget
		wantErr bool
	}{
		{"-1001234567890", chatTarget{id: -1001234567890}, false},
		{"42", chatTarget{id: 42}, false},
		{"@linewatch_alerts", chatTarget{username: "@linewatch_alerts"}, false},
		{"@", chatTarget{}, true},
		{"not-a-number", chatTarget{}, true},
		{"", chatTarget{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseChatID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseChatID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseChatID(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewClient_InvalidChatID(t *testing.T) {
	// chat id validation happens before any network call
	_, err := NewClient("", "not-a-number", nil, nil, 3, time.Second)
	if err == nil {
		t.Error("Expected error for invalid chat ID, got nil")
	}
}

func TestDeliver(t *testing.T) {
	c, bot, _ := newTestClient(t)

	if err := c.Deliver(context.Background(), "-200", "<b>HARD</b>", true); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(bot.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(bot.sent))
	}
	m := bot.sent[0]
	if m.ChatID != -200 || m.ParseMode != tgbotapi.ModeHTML || !m.DisableWebPagePreview {
		t.Errorf("unexpected message config: %+v", m)
	}

	if err := c.Deliver(context.Background(), "@alerts", "plain", false); err != nil {
		t.Fatalf("Deliver to channel: %v", err)
	}
	if m := bot.sent[1]; m.ChannelUsername != "@alerts" || m.ParseMode != "" {
		t.Errorf("unexpected channel message: %+v", m)
	}
}

func TestDeliver_Retries(t *testing.T) {
	c, bot, _ := newTestClient(t)
	bot.failures = 2

	if err := c.Deliver(context.Background(), "-200", "x", false); err != nil {
		t.Fatalf("Deliver should succeed on third attempt: %v", err)
	}
	if len(bot.sent) != 1 {
		t.Errorf("sent = %d, want 1", len(bot.sent))
	}
}

func TestDeliver_GivesUp(t *testing.T) {
	c, bot, _ := newTestClient(t)
	bot.failures = 10

	if err := c.Deliver(context.Background(), "-200", "x", false); err == nil {
		t.Fatal("expected error after retries")
	}
	if bot.failures != 7 {
		t.Errorf("attempts = %d, want 3", 10-bot.failures)
	}
}

func TestDeliver_InvalidChannel(t *testing.T) {
	c, bot, _ := newTestClient(t)
	if err := c.Deliver(context.Background(), "alerts", "x", false); err == nil {
		t.Error("expected error for malformed channel id")
	}
	if len(bot.sent) != 0 {
		t.Error("nothing should be sent to a malformed channel")
	}
}

func TestSendErrorAndRecovery(t *testing.T) {
	c, bot, _ := newTestClient(t)

	if err := c.SendError(context.Background(), errors.New("status <502>")); err != nil {
		t.Fatal(err)
	}
	if err := c.SendRecovery(context.Background(), 4); err != nil {
		t.Fatal(err)
	}
	if len(bot.sent) != 2 {
		t.Fatalf("sent = %d, want 2", len(bot.sent))
	}
	if !strings.Contains(bot.sent[0].Text, "status &lt;502&gt;") || bot.sent[0].ChatID != -1001 {
		t.Errorf("error notice = %+v", bot.sent[0])
	}
	if !strings.Contains(bot.sent[1].Text, "after 4 consecutive") {
		t.Errorf("recovery notice = %q", bot.sent[1].Text)
	}

	silent := newClient(bot, "", nil, nil, 1, time.Millisecond)
	if err := silent.SendError(context.Background(), errors.New("x")); err != nil {
		t.Error(err)
	}
	if len(bot.sent) != 2 {
		t.Error("no notice channel should mean no message")
	}
}

func TestHandleCommand_Blacklist(t *testing.T) {
	c, bot, s := newTestClient(t)
	ctx := context.Background()

	c.handleCommand(ctx, command(adminID, "/ban  Czech Republic 3. Ligy"))
	c.handleCommand(ctx, command(adminID, "/blacklist Friendlies"))

	for _, league := range []string{"czech republic 3. ligy", "friendlies"} {
		if banned, _ := s.IsBlacklisted(league); !banned {
			t.Errorf("%q not banned", league)
		}
	}

	c.handleCommand(ctx, command(adminID, "/view_blacklist"))
	last := bot.sent[len(bot.sent)-1]
	if last.ChatID != 500 || !strings.Contains(last.Text, "1. czech republic 3. ligy\n2. friendlies") {
		t.Errorf("view reply = %q", last.Text)
	}

	c.handleCommand(ctx, command(adminID, "/unban friendlies"))
	if banned, _ := s.IsBlacklisted("friendlies"); banned {
		t.Error("friendlies still banned")
	}
	c.handleCommand(ctx, command(adminID, "/unban friendlies"))
	if got := bot.sent[len(bot.sent)-1].Text; !strings.HasPrefix(got, "Not on the blacklist") {
		t.Errorf("second unban reply = %q", got)
	}

	c.handleCommand(ctx, command(adminID, "/clear_blacklist"))
	if got := bot.sent[len(bot.sent)-1].Text; got != "Blacklist cleared (1 removed)." {
		t.Errorf("clear reply = %q", got)
	}
}

func TestHandleCommand_Usage(t *testing.T) {
	c, bot, _ := newTestClient(t)
	c.handleCommand(context.Background(), command(adminID, "/ban"))
	if len(bot.sent) != 1 || !strings.HasPrefix(bot.sent[0].Text, "Usage") {
		t.Errorf("replies = %+v", bot.sent)
	}
}

func TestHandleCommand_NonAdmin(t *testing.T) {
	c, bot, s := newTestClient(t)

	c.handleCommand(context.Background(), command(99, "/ban friendlies"))
	if banned, _ := s.IsBlacklisted("friendlies"); banned {
		t.Error("non-admin was able to ban")
	}
	if len(bot.sent) != 1 || !strings.Contains(bot.sent[0].Text, "not allowed") {
		t.Errorf("replies = %+v", bot.sent)
	}

	// /start is open to everyone
	c.handleCommand(context.Background(), command(99, "/start"))
	if len(bot.sent) != 2 || !strings.Contains(bot.sent[1].Text, "/view_blacklist") {
		t.Errorf("start reply missing")
	}

	// unknown commands are ignored
	c.handleCommand(context.Background(), command(99, "/ping"))
	if len(bot.sent) != 2 {
		t.Error("unknown command should not reply")
	}
}

func TestFormatBlacklist(t *testing.T) {
	if got := formatBlacklist(nil); len(got) != 1 || got[0] != "The blacklist is empty." {
		t.Errorf("empty = %q", got)
	}

	var entries []storage.BlacklistEntry
	for i := 0; i < 300; i++ {
		entries = append(entries, storage.BlacklistEntry{League: fmt.Sprintf("league number %03d of the test set", i)})
	}
	chunks := formatBlacklist(entries)
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want the list split", len(chunks))
	}
	total := 0
	for _, ch := range chunks {
		if len(ch) > maxMessageLen {
			t.Errorf("chunk exceeds limit: %d", len(ch))
		}
		total += strings.Count(ch, "league number")
	}
	if total != 300 {
		t.Errorf("listed %d leagues, want 300", total)
	}
}
