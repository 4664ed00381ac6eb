package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetchSendsBrowserUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	fetcher := NewHTTPPageFetcher()
	if _, err := fetcher.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("expected User-Agent %q, got %q", DefaultUserAgent, gotUA)
	}
}

func TestFetchNon2xxStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	fetcher := NewHTTPPageFetcher()
	_, err := fetcher.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected an error for a 503 response")
	}

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T: %v", err, err)
	}
	if fetchErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status code 503, got %d", fetchErr.StatusCode)
	}
	if !strings.Contains(fetchErr.Error(), "503") {
		t.Errorf("expected error message to mention the status code, got %q", fetchErr.Error())
	}
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	fetcher := NewHTTPPageFetcher(WithTimeout(20 * time.Millisecond))
	_, err := fetcher.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected a timeout error")
	}

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T: %v", err, err)
	}
	if fetchErr.Cause == nil {
		t.Error("expected timeout FetchError to carry the underlying cause")
	}
}

func TestFetchInvalidURL(t *testing.T) {
	fetcher := NewHTTPPageFetcher()
	if _, err := fetcher.Fetch(context.Background(), "http://127.0.0.1:0/nowhere"); err == nil {
		t.Fatal("expected an error for an unreachable host")
	}
}
