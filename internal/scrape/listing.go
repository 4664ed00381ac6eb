package scrape

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/baraholka-watch/baraholka-watch/internal/models"
	"golang.org/x/net/html"
)

// Markup anchors of the yarmarka.ge listing page.
const (
	listingItemClass  = "product-list__item"
	listingNameClass  = "product-list__name"
	listingPriceClass = "product-list__price"
)

// detailPathRe matches detail page hrefs of the form /g_<slug>_<digits>.
// The trailing digits are the stable listing identifier.
var detailPathRe = regexp.MustCompile(`/g_(.+)_(\d+)`)

// priceRe extracts the amount from price blocks like "Цена: 40 GEL".
var priceRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*GEL`)

// ListingSource produces candidate items from a marketplace listing page.
type ListingSource interface {
	FetchListings(ctx context.Context, url string) ([]models.ListingItem, error)
}

// YarmarkaSource parses yarmarka.ge listing pages into listing items.
type YarmarkaSource struct {
	fetcher PageFetcher
}

// Compile-time check that YarmarkaSource implements ListingSource.
var _ ListingSource = (*YarmarkaSource)(nil)

// NewYarmarkaSource creates a listing source backed by the given fetcher.
func NewYarmarkaSource(fetcher PageFetcher) *YarmarkaSource {
	return &YarmarkaSource{fetcher: fetcher}
}

// FetchListings downloads one listing page and extracts its items. A page
// that downloads but yields zero items returns an empty slice and a logged
// warning about the markup mismatch; it is not a run failure.
func (s *YarmarkaSource) FetchListings(ctx context.Context, pageURL string) ([]models.ListingItem, error) {
	doc, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Cause: err}
	}

	var items []models.ListingItem
	for _, block := range elementsByClass(doc, "div", listingNameClass) {
		item, ok := parseListingBlock(block, base)
		if !ok {
			continue
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		slog.Warn("no listing items parsed, page structure may have changed", "url", pageURL)
		return nil, nil
	}

	slog.Debug("listing page parsed", "url", pageURL, "items", len(items))
	return items, nil
}

// parseListingBlock extracts one item from a product-list__name block.
// Malformed blocks are skipped without failing the page.
func parseListingBlock(block *html.Node, base *url.URL) (models.ListingItem, bool) {
	link := firstAnchor(block)
	if link == nil {
		return models.ListingItem{}, false
	}
	href := attrVal(link, "href")
	m := detailPathRe.FindStringSubmatch(href)
	if m == nil {
		return models.ListingItem{}, false
	}
	title := strings.TrimSpace(nodeText(link))
	if title == "" {
		return models.ListingItem{}, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return models.ListingItem{}, false
	}

	return models.ListingItem{
		ID:        m[2],
		Title:     title,
		Price:     findPrice(block),
		DetailURL: base.ResolveReference(ref).String(),
	}, true
}

// findPrice looks for the price block inside the item card that contains the
// name block, matching the page layout where name and price are siblings.
func findPrice(block *html.Node) string {
	card := block.Parent
	for card != nil && !(card.Type == html.ElementNode && card.Data == "div" && hasClass(card, listingItemClass)) {
		card = card.Parent
	}
	if card == nil {
		card = block.Parent
	}
	if card == nil {
		return models.PriceUnknown
	}
	for _, priceNode := range elementsByClass(card, "div", listingPriceClass) {
		if m := priceRe.FindStringSubmatch(nodeText(priceNode)); m != nil {
			return m[1] + " GEL"
		}
	}
	return models.PriceUnknown
}
