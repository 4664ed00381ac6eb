package notify

import (
	"fmt"
	"strings"

	"github.com/baraholka-watch/baraholka-watch/internal/models"
	"github.com/baraholka-watch/baraholka-watch/internal/telegram"
)

// escapeLinkURL escapes the two characters MarkdownV2 reserves inside
// inline link targets.
func escapeLinkURL(u string) string {
	u = strings.ReplaceAll(u, `\`, `\\`)
	return strings.ReplaceAll(u, `)`, `\)`)
}

// FormatListingMarkdownV2 renders the notification with MarkdownV2 markup.
// Dynamic fields are escaped; the links stay clickable as inline links.
func FormatListingMarkdownV2(item models.ListingItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🛋️ *%s*\n\n", telegram.EscapeMarkdownV2(item.Title))
	fmt.Fprintf(&b, "💰 Цена: %s\n", telegram.EscapeMarkdownV2(item.Price))
	fmt.Fprintf(&b, "🔗 [Посмотреть объявление](%s)\n", escapeLinkURL(item.DetailURL))
	if item.ChatLink != "" {
		fmt.Fprintf(&b, "📱 [Посмотреть в Telegram](%s)\n", escapeLinkURL(item.ChatLink))
	}
	fmt.Fprintf(&b, "\n🆔 ID: %s", telegram.EscapeMarkdownV2(item.ID))
	return b.String()
}

// FormatListingPlain renders the notification without markup, used when
// Telegram rejects the MarkdownV2 variant.
func FormatListingPlain(item models.ListingItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🛋️ %s\n\n", item.Title)
	fmt.Fprintf(&b, "💰 Цена: %s\n", item.Price)
	fmt.Fprintf(&b, "🔗 %s\n", item.DetailURL)
	if item.ChatLink != "" {
		fmt.Fprintf(&b, "📱 %s\n", item.ChatLink)
	}
	fmt.Fprintf(&b, "\n🆔 ID: %s", item.ID)
	return b.String()
}

// FormatListingSMS renders a single-line notification for SMS delivery.
func FormatListingSMS(item models.ListingItem) string {
	link := item.ChatLink
	if link == "" {
		link = item.DetailURL
	}
	return fmt.Sprintf("New listing %s: %s (%s) %s", item.ID, item.Title, item.Price, link)
}
