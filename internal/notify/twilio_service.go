package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/baraholka-watch/baraholka-watch/internal/models"
	"github.com/baraholka-watch/baraholka-watch/internal/twiliosms"
)

// TwilioSMSService implements the Service interface using Twilio SMS.
type TwilioSMSService struct {
	client twiliosms.SMSSender
	to     string
}

// Compile-time check that TwilioSMSService implements Service.
var _ Service = (*TwilioSMSService)(nil)

// NewTwilioSMSService creates a TwilioSMSService targeting one phone number.
func NewTwilioSMSService(client twiliosms.SMSSender, to string) (*TwilioSMSService, error) {
	if to == "" {
		return nil, models.ErrEmptyRecipient
	}
	return &TwilioSMSService{client: client, to: to}, nil
}

// SendListing delivers the notification as a single SMS.
func (s *TwilioSMSService) SendListing(ctx context.Context, item models.ListingItem) error {
	if err := s.client.SendSMS(ctx, s.to, FormatListingSMS(item)); err != nil {
		slog.Error("TwilioSMSService send failed", "id", item.ID, "error", err)
		return fmt.Errorf("failed to send listing %s: %w", item.ID, err)
	}
	slog.Debug("TwilioSMSService notification sent", "id", item.ID)
	return nil
}

// TestConnection reports the configured destination. Twilio exposes no
// cheap identity call, so this only confirms the client is constructed.
func (s *TwilioSMSService) TestConnection(ctx context.Context) (string, error) {
	return fmt.Sprintf("twilio-sms:%s", s.to), nil
}
