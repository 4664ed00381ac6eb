package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/baraholka-watch/baraholka-watch/internal/models"
	"github.com/baraholka-watch/baraholka-watch/internal/telegram"
)

// DefaultSendGap is the minimum spacing between consecutive sends, which
// keeps the bot under Telegram's per-chat rate limits.
const DefaultSendGap = time.Second

// TelegramService implements the Service interface using the Telegram Bot API.
type TelegramService struct {
	client  telegram.Sender
	chatID  int64
	sendGap time.Duration

	mu       sync.Mutex
	lastSend time.Time
}

// Compile-time check that TelegramService implements Service.
var _ Service = (*TelegramService)(nil)

// NewTelegramService creates a TelegramService targeting a single chat.
func NewTelegramService(client telegram.Sender, chatID int64) (*TelegramService, error) {
	if chatID == 0 {
		return nil, models.ErrInvalidChatID
	}
	return &TelegramService{client: client, chatID: chatID, sendGap: DefaultSendGap}, nil
}

// waitSendGap blocks until at least sendGap has passed since the previous send.
func (s *TelegramService) waitSendGap() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if wait := s.sendGap - time.Since(s.lastSend); wait > 0 {
		time.Sleep(wait)
	}
	s.lastSend = time.Now()
}

// SendListing delivers the notification. It tries MarkdownV2 first and
// falls back to plain text when Telegram rejects the markup.
func (s *TelegramService) SendListing(ctx context.Context, item models.ListingItem) error {
	s.waitSendGap()

	err := s.client.SendMessage(ctx, s.chatID, FormatListingMarkdownV2(item), telegram.ParseModeMarkdownV2)
	if err == nil {
		slog.Debug("TelegramService notification sent", "id", item.ID)
		return nil
	}
	slog.Warn("TelegramService MarkdownV2 send failed, retrying as plain text", "id", item.ID, "error", err)

	if err := s.client.SendMessage(ctx, s.chatID, FormatListingPlain(item), telegram.ParseModePlain); err != nil {
		slog.Error("TelegramService plain text send failed", "id", item.ID, "error", err)
		return fmt.Errorf("failed to send listing %s: %w", item.ID, err)
	}
	slog.Debug("TelegramService notification sent as plain text", "id", item.ID)
	return nil
}

// TestConnection verifies the bot token by asking Telegram for the bot identity.
func (s *TelegramService) TestConnection(ctx context.Context) (string, error) {
	return s.client.GetMe(ctx)
}
