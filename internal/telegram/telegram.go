// Package telegram wraps the Telegram Bot API for notifications in baraholka-watch.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// DefaultRequestTimeout bounds each Bot API request.
const DefaultRequestTimeout = 30 * time.Second

// Parse modes accepted by SendMessage.
const (
	// ParseModeMarkdownV2 requests Telegram MarkdownV2 rendering.
	ParseModeMarkdownV2 = tgbotapi.ModeMarkdownV2
	// ParseModePlain sends the text without any formatting.
	ParseModePlain = ""
)

// Sender defines the interface for delivering messages to a Telegram chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, parseMode string) error
	GetMe(ctx context.Context) (string, error)
}

// Opts holds configuration options for the Telegram client.
type Opts struct {
	Token    string
	Endpoint string
	Client   *http.Client
}

// Option defines a configuration option for the Telegram client.
type Option func(*Opts)

// WithToken sets the bot token.
func WithToken(token string) Option {
	return func(o *Opts) { o.Token = token }
}

// WithEndpoint overrides the Bot API endpoint (used in tests).
func WithEndpoint(endpoint string) Option {
	return func(o *Opts) { o.Endpoint = endpoint }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Opts) { o.Client = client }
}

// Client wraps the Telegram Bot API.
type Client struct {
	bot *tgbotapi.BotAPI
}

// Compile-time check that Client implements Sender.
var _ Sender = (*Client)(nil)

// NewClient creates a Telegram client. Construction performs a getMe call,
// so an invalid token fails fast.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	// Fallback to environment variables if not provided via options
	if cfg.Token == "" {
		cfg.Token = os.Getenv("BOT_TOKEN")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = tgbotapi.APIEndpoint
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: DefaultRequestTimeout}
	}
	slog.Debug("Telegram client config loaded", "token_set", cfg.Token != "")

	if cfg.Token == "" {
		return nil, fmt.Errorf("bot token must be provided")
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.Endpoint, cfg.Client)
	if err != nil {
		slog.Error("Telegram authentication failed", "error", err)
		return nil, fmt.Errorf("failed to authenticate with Telegram: %w", err)
	}
	slog.Debug("Telegram client authenticated", "username", bot.Self.UserName)

	return &Client{bot: bot}, nil
}

// SendMessage sends a message to the chat. The request is bounded by the
// HTTP client timeout.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, parseMode string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode

	if _, err := c.bot.Send(msg); err != nil {
		slog.Error("Telegram SendMessage failed", "chat_id", chatID, "parse_mode", parseMode, "error", err)
		return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}
	slog.Debug("Telegram message sent", "chat_id", chatID, "parse_mode", parseMode)
	return nil
}

// GetMe asks the Bot API who the token belongs to.
func (c *Client) GetMe(ctx context.Context) (string, error) {
	me, err := c.bot.GetMe()
	if err != nil {
		slog.Error("Telegram GetMe failed", "error", err)
		return "", fmt.Errorf("failed to query bot identity: %w", err)
	}
	if me.UserName != "" {
		return "@" + me.UserName, nil
	}
	return me.FirstName, nil
}

// EscapeMarkdownV2 escapes the characters Telegram treats as MarkdownV2 markup.
func EscapeMarkdownV2(text string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, text)
}

// MockClient records sent messages for tests.
type MockClient struct {
	SentMessages []SentMessage
	GetMeName    string
	GetMeErr     error
	SendErr      error
	// SendErrFor fails sends keyed by parse mode.
	SendErrFor map[string]error
}

type SentMessage struct {
	ChatID    int64
	Text      string
	ParseMode string
}

func NewMockClient() *MockClient {
	return &MockClient{GetMeName: "@baraholka_watch_bot"}
}

func (m *MockClient) SendMessage(ctx context.Context, chatID int64, text string, parseMode string) error {
	if err, ok := m.SendErrFor[parseMode]; ok && err != nil {
		return err
	}
	if m.SendErr != nil {
		return m.SendErr
	}
	m.SentMessages = append(m.SentMessages, SentMessage{ChatID: chatID, Text: text, ParseMode: parseMode})
	return nil
}

func (m *MockClient) GetMe(ctx context.Context) (string, error) {
	if m.GetMeErr != nil {
		return "", m.GetMeErr
	}
	return m.GetMeName, nil
}
