package scrape

import (
	"errors"
	"testing"

	"github.com/baraholka-watch/baraholka-watch/internal/models"
)

func TestNewKeywordFilterRejectsEmptyList(t *testing.T) {
	cases := [][]string{
		nil,
		{},
		{""},
		{"  ", "\t"},
	}
	for _, keywords := range cases {
		if _, err := NewKeywordFilter(keywords); !errors.Is(err, models.ErrNoKeywords) {
			t.Errorf("NewKeywordFilter(%q) error = %v, want ErrNoKeywords", keywords, err)
		}
	}
}

func TestKeywordFilterMatch(t *testing.T) {
	filter, err := NewKeywordFilter([]string{"журнальный", "столик"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		title string
		want  bool
	}{
		{"Продам журнальный столик", true},
		{"Продам диван", false},
		{"СТОЛИК складной", true},
		{"Журнальный стол", true},
		{"", false},
	}
	for _, tt := range tests {
		if got := filter.Match(tt.title); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.title, got, tt.want)
		}
	}
}

func TestKeywordFilterMatchCaseInsensitiveCyrillic(t *testing.T) {
	filter, err := NewKeywordFilter([]string{"ЗЕРКАЛО"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filter.Match("Продам зеркало в раме") {
		t.Error("uppercase keyword should match lowercase title")
	}
	if !filter.Match("ЗЕРКАЛО новое") {
		t.Error("uppercase title should match")
	}
}

func TestKeywordFilterPreservesOrderAndDropsBatchDuplicates(t *testing.T) {
	filter, err := NewKeywordFilter([]string{"стол", "зеркало"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	items := []models.ListingItem{
		{ID: "1", Title: "Стол обеденный"},
		{ID: "2", Title: "Продам диван"},
		{ID: "3", Title: "Зеркало настенное"},
		{ID: "1", Title: "Стол обеденный"}, // same ad repeated on the page
		{ID: "4", Title: "Журнальный столик"},
	}

	got := filter.Filter(items)
	wantIDs := []string{"1", "3", "4"}
	if len(got) != len(wantIDs) {
		t.Fatalf("expected %d items, got %d: %+v", len(wantIDs), len(got), got)
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("position %d: expected id %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestKeywordFilterCleansKeywords(t *testing.T) {
	filter, err := NewKeywordFilter([]string{" Стеллаж ", "", "зеркало"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	keywords := filter.Keywords()
	if len(keywords) != 2 {
		t.Fatalf("expected 2 cleaned keywords, got %v", keywords)
	}
	if keywords[0] != "стеллаж" || keywords[1] != "зеркало" {
		t.Errorf("keywords not lowercased/trimmed: %v", keywords)
	}
}
