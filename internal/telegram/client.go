// Package telegram delivers alerts through the Telegram Bot API and serves
// the blacklist admin commands.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/linewatch/internal/logger"
	"github.com/rewired-gh/linewatch/internal/storage"
)

// maxMessageLen is Telegram's limit on a single message body.
const maxMessageLen = 4096

// botAPI is the subset of *tgbotapi.BotAPI the client uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// BlacklistStore is the persistence behind the admin commands.
type BlacklistStore interface {
	Ban(league string, addedBy int64) error
	Unban(league string) error
	ListBlacklist() ([]storage.BlacklistEntry, error)
	ClearBlacklist() (int, error)
}

// Client handles Telegram delivery and commands.
type Client struct {
	bot            botAPI
	noticeChatID   string
	admins         map[int64]struct{}
	store          BlacklistStore
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client. noticeChatID receives error and
// recovery notices; adminIDs may run blacklist commands.
func NewClient(botToken, noticeChatID string, adminIDs []int64, store BlacklistStore, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	if noticeChatID != "" {
		if _, err := parseChatID(noticeChatID); err != nil {
			return nil, err
		}
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, noticeChatID, adminIDs, store, maxRetries, retryDelayBase), nil
}

func newClient(bot botAPI, noticeChatID string, adminIDs []int64, store BlacklistStore, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Client{
		bot:            bot,
		noticeChatID:   noticeChatID,
		admins:         admins,
		store:          store,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

// chatTarget is either a numeric chat id or a public @channel username.
type chatTarget struct {
	id       int64
	username string
}

func parseChatID(s string) (chatTarget, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "@") && len(s) > 1 {
		return chatTarget{username: s}, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return chatTarget{}, fmt.Errorf("invalid chat ID %q: %w", s, err)
	}
	return chatTarget{id: id}, nil
}

func (t chatTarget) message(text string) tgbotapi.MessageConfig {
	if t.username != "" {
		return tgbotapi.NewMessageToChannel(t.username, text)
	}
	return tgbotapi.NewMessage(t.id, text)
}

// Deliver sends text to channelID with linear-backoff retry. richText
// selects HTML parse mode.
func (c *Client) Deliver(ctx context.Context, channelID, text string, richText bool) error {
	target, err := parseChatID(channelID)
	if err != nil {
		return err
	}
	msg := target.message(text)
	msg.DisableWebPagePreview = true
	if richText {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	return c.send(ctx, msg)
}

func (c *Client) send(ctx context.Context, msg tgbotapi.Chattable) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if i == c.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("send cancelled: %w", errors.Join(ctx.Err(), lastErr))
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a monitoring error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(ctx context.Context, cycleErr error) error {
	if c.noticeChatID == "" {
		return nil
	}
	text := fmt.Sprintf("⚠️ <b>Monitoring error</b>\n<code>%s</code>", html.EscapeString(cycleErr.Error()))
	return c.Deliver(ctx, c.noticeChatID, text, true)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(ctx context.Context, failureCount int) error {
	if c.noticeChatID == "" {
		return nil
	}
	text := fmt.Sprintf("✅ <b>Monitoring recovered</b> after %d consecutive failure(s)", failureCount)
	return c.Deliver(ctx, c.noticeChatID, text, true)
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(ctx, update.Message)
				}
			}
		}
	}()
}

const helpText = `Line movement monitor.

/ban <league> - stop alerts for a league
/unban <league> - resume alerts for a league
/view_blacklist - list banned leagues
/clear_blacklist - remove every ban`

func (c *Client) isAdmin(msg *tgbotapi.Message) bool {
	if msg.From == nil {
		return false
	}
	_, ok := c.admins[msg.From.ID]
	return ok
}

func (c *Client) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	if cmd == "start" {
		c.reply(ctx, msg, helpText)
		return
	}

	switch cmd {
	case "ban", "blacklist", "unban", "view_blacklist", "clear_blacklist":
	default:
		return
	}
	if !c.isAdmin(msg) {
		logger.Warn("Rejected /%s from non-admin user", cmd)
		c.reply(ctx, msg, "You are not allowed to manage the blacklist.")
		return
	}
	if c.store == nil {
		c.reply(ctx, msg, "Blacklist storage is not configured.")
		return
	}

	for _, text := range c.runAdminCommand(cmd, msg) {
		c.reply(ctx, msg, text)
	}
}

func (c *Client) runAdminCommand(cmd string, msg *tgbotapi.Message) []string {
	league := storage.NormalizeLeague(msg.CommandArguments())

	switch cmd {
	case "ban", "blacklist":
		if league == "" {
			return []string{"Usage: /ban <league name>"}
		}
		if err := c.store.Ban(league, msg.From.ID); err != nil {
			logger.Error("Failed to ban %q: %v", league, err)
			return []string{"Failed to ban league."}
		}
		logger.Info("League %q banned by %d", league, msg.From.ID)
		return []string{fmt.Sprintf("Banned: %s", league)}

	case "unban":
		if league == "" {
			return []string{"Usage: /unban <league name>"}
		}
		err := c.store.Unban(league)
		if errors.Is(err, storage.ErrNotFound) {
			return []string{fmt.Sprintf("Not on the blacklist: %s", league)}
		}
		if err != nil {
			logger.Error("Failed to unban %q: %v", league, err)
			return []string{"Failed to unban league."}
		}
		logger.Info("League %q unbanned by %d", league, msg.From.ID)
		return []string{fmt.Sprintf("Unbanned: %s", league)}

	case "view_blacklist":
		entries, err := c.store.ListBlacklist()
		if err != nil {
			logger.Error("Failed to list blacklist: %v", err)
			return []string{"Failed to read the blacklist."}
		}
		return formatBlacklist(entries)

	case "clear_blacklist":
		n, err := c.store.ClearBlacklist()
		if err != nil {
			logger.Error("Failed to clear blacklist: %v", err)
			return []string{"Failed to clear the blacklist."}
		}
		logger.Info("Blacklist cleared by %d (%d leagues)", msg.From.ID, n)
		return []string{fmt.Sprintf("Blacklist cleared (%d removed).", n)}
	}
	return nil
}

// formatBlacklist renders the list as plain text split into messages
// that fit Telegram's size limit.
func formatBlacklist(entries []storage.BlacklistEntry) []string {
	if len(entries) == 0 {
		return []string{"The blacklist is empty."}
	}

	var chunks []string
	var b strings.Builder
	fmt.Fprintf(&b, "Blacklisted leagues (%d):\n", len(entries))
	for i, e := range entries {
		line := fmt.Sprintf("%d. %s\n", i+1, e.League)
		if b.Len()+len(line) > maxMessageLen {
			chunks = append(chunks, strings.TrimRight(b.String(), "\n"))
			b.Reset()
		}
		b.WriteString(line)
	}
	return append(chunks, strings.TrimRight(b.String(), "\n"))
}

func (c *Client) reply(ctx context.Context, msg *tgbotapi.Message, text string) {
	r := tgbotapi.NewMessage(msg.Chat.ID, text)
	r.ReplyToMessageID = msg.MessageID
	if err := c.send(ctx, r); err != nil {
		logger.Warn("Failed to reply to /%s: %v", msg.Command(), err)
	}
}
