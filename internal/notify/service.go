// Package notify delivers listing notifications for baraholka-watch.
//
// It defines a pluggable delivery abstraction over the Telegram and
// Twilio SMS transports and owns the notification message formats.
package notify

import (
	"context"

	"github.com/baraholka-watch/baraholka-watch/internal/models"
)

// Service defines a pluggable notification delivery abstraction.
type Service interface {
	// SendListing delivers a notification for one listing.
	SendListing(ctx context.Context, item models.ListingItem) error

	// TestConnection verifies the transport is usable and returns a short
	// identity string for logging (e.g. the bot username).
	TestConnection(ctx context.Context) (string, error)
}
