package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const listingPageFixture = `<!DOCTYPE html>
<html><head><title>Мебель</title></head><body>
<div class="product-list">
  <div class="product-list__item">
    <div class="product-list__image"><img src="/img/1.jpg"></div>
    <div class="product-list__name"><a href="/g_zhurnalnyj_stolik_445772">Продам журнальный столик</a></div>
    <div class="product-list__price">Цена: 40 GEL</div>
  </div>
  <div class="product-list__item">
    <div class="product-list__name"><a href="/g_zerkalo_nastennoe_445773"> Зеркало настенное </a></div>
    <div class="product-list__price">Цена: 25.5 GEL</div>
  </div>
  <div class="product-list__item">
    <div class="product-list__name"><a href="/g_divan_uglovoj_445774">Продам диван</a></div>
    <div class="product-list__price">Договорная</div>
  </div>
  <div class="product-list__item">
    <div class="product-list__name"><a href="/user/987">Профиль продавца</a></div>
  </div>
</div>
</body></html>`

func newListingServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchListingsParsesItems(t *testing.T) {
	srv := newListingServer(t, listingPageFixture, http.StatusOK)
	source := NewYarmarkaSource(NewHTTPPageFetcher())

	items, err := source.FetchListings(context.Background(), srv.URL+"/goods/c_2438/0/0?sort=new")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d: %+v", len(items), items)
	}

	first := items[0]
	if first.ID != "445772" {
		t.Errorf("expected id 445772, got %s", first.ID)
	}
	if first.Title != "Продам журнальный столик" {
		t.Errorf("unexpected title: %q", first.Title)
	}
	if first.Price != "40 GEL" {
		t.Errorf("expected price '40 GEL', got %q", first.Price)
	}
	if want := srv.URL + "/g_zhurnalnyj_stolik_445772"; first.DetailURL != want {
		t.Errorf("expected detail URL %s, got %s", want, first.DetailURL)
	}

	if items[1].Title != "Зеркало настенное" {
		t.Errorf("title should be whitespace-trimmed, got %q", items[1].Title)
	}
	if items[1].Price != "25.5 GEL" {
		t.Errorf("expected fractional price '25.5 GEL', got %q", items[1].Price)
	}

	if items[2].Price != "N/A" {
		t.Errorf("unparseable price should become N/A, got %q", items[2].Price)
	}
}

func TestFetchListingsEmptyPageIsNotAnError(t *testing.T) {
	srv := newListingServer(t, `<html><body><p>Ничего не найдено</p></body></html>`, http.StatusOK)
	source := NewYarmarkaSource(NewHTTPPageFetcher())

	items, err := source.FetchListings(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("structural mismatch should not be an error, got %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
}

func TestFetchListingsServerErrorIsFetchError(t *testing.T) {
	srv := newListingServer(t, "boom", http.StatusInternalServerError)
	source := NewYarmarkaSource(NewHTTPPageFetcher())

	_, err := source.FetchListings(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected an error for a 500 response")
	}
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T: %v", err, err)
	}
	if fetchErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500 in FetchError, got %d", fetchErr.StatusCode)
	}
}

func TestFetchListingsSkipsMalformedBlocks(t *testing.T) {
	page := `<html><body>
<div class="product-list__item">
  <div class="product-list__name"><a href="/g_shkaf_100">Шкаф</a></div>
</div>
<div class="product-list__item">
  <div class="product-list__name"><span>без ссылки</span></div>
</div>
<div class="product-list__item">
  <div class="product-list__name"><a href="/g_polka_200">   </a></div>
</div>
</body></html>`
	srv := newListingServer(t, page, http.StatusOK)
	source := NewYarmarkaSource(NewHTTPPageFetcher())

	items, err := source.FetchListings(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].ID != "100" {
		t.Errorf("expected only the well-formed item, got %+v", items)
	}
	if items[0].Price != "N/A" {
		t.Errorf("item without a price block should get N/A, got %q", items[0].Price)
	}
}
