package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/baraholka-watch/baraholka-watch/internal/models"
)

// Telegram link markers on detail pages.
const (
	chatLinkText    = "Посмотреть в чате"
	telegramPrefix  = "https://t.me/"
	baraholkaMarker = "/baraholka_"
	channelLink     = "https://t.me/baraholka_ge"
)

// ErrChatLinkNotFound is returned when a detail page carries no usable
// Telegram chat link.
var ErrChatLinkNotFound = errors.New("telegram chat link not found on detail page")

// LinkResolver resolves the Telegram chat deep link for a listing.
type LinkResolver interface {
	ResolveChatLink(ctx context.Context, item models.ListingItem) (string, error)
}

// ChatLinkResolver fetches an item's detail page and extracts its chat link.
type ChatLinkResolver struct {
	fetcher PageFetcher
}

// Compile-time check that ChatLinkResolver implements LinkResolver.
var _ LinkResolver = (*ChatLinkResolver)(nil)

// NewChatLinkResolver creates a resolver backed by the given fetcher.
func NewChatLinkResolver(fetcher PageFetcher) *ChatLinkResolver {
	return &ChatLinkResolver{fetcher: fetcher}
}

// ResolveChatLink downloads the item's detail page and returns its Telegram
// chat link. An anchor labeled "Посмотреть в чате" wins; otherwise the first
// baraholka deep link other than the bare channel link is accepted.
func (r *ChatLinkResolver) ResolveChatLink(ctx context.Context, item models.ListingItem) (string, error) {
	doc, err := r.fetcher.Fetch(ctx, item.DetailURL)
	if err != nil {
		return "", fmt.Errorf("detail page for listing %s: %w", item.ID, err)
	}

	var fallback string
	for _, a := range anchors(doc) {
		href := attrVal(a, "href")
		if !strings.HasPrefix(href, telegramPrefix) {
			continue
		}
		if strings.Contains(nodeText(a), chatLinkText) {
			return href, nil
		}
		if fallback == "" && strings.Contains(href, baraholkaMarker) && href != channelLink {
			fallback = href
		}
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", ErrChatLinkNotFound
}
