package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// newBotAPIServer fakes the two Bot API methods the client uses. It records
// the form values of the last sendMessage call.
func newBotAPIServer(t *testing.T, lastSend *url.Values) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			json.NewEncoder(w).Encode(map[string]interface{}{
				"ok": true,
				"result": map[string]interface{}{
					"id":         123456789,
					"is_bot":     true,
					"first_name": "Baraholka Watch",
					"username":   "baraholka_watch_bot",
				},
			})
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if lastSend != nil {
				*lastSend = r.Form
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"ok":     true,
				"result": map[string]interface{}{"message_id": 1},
			})
		default:
			t.Errorf("unexpected Bot API call: %s", r.URL.Path)
			json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "description": "unknown method"})
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, lastSend *url.Values) *Client {
	t.Helper()
	srv := newBotAPIServer(t, lastSend)
	c, err := NewClient(
		WithToken("123456:TEST"),
		WithEndpoint(srv.URL+"/bot%s/%s"),
	)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestNewClientRequiresToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected an error when no token is configured")
	}
}

func TestClientSendMessage(t *testing.T) {
	var lastSend url.Values
	c := newTestClient(t, &lastSend)

	err := c.SendMessage(context.Background(), -1001234, "привет", ParseModeMarkdownV2)
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if got := lastSend.Get("chat_id"); got != "-1001234" {
		t.Errorf("expected chat_id -1001234, got %q", got)
	}
	if got := lastSend.Get("text"); got != "привет" {
		t.Errorf("expected text to pass through unchanged, got %q", got)
	}
	if got := lastSend.Get("parse_mode"); got != "MarkdownV2" {
		t.Errorf("expected parse_mode MarkdownV2, got %q", got)
	}
}

func TestClientGetMe(t *testing.T) {
	c := newTestClient(t, nil)

	name, err := c.GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe failed: %v", err)
	}
	if name != "@baraholka_watch_bot" {
		t.Errorf("expected @baraholka_watch_bot, got %q", name)
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Продам столик", "Продам столик"},
		{"Стол (новый) - дешево!", "Стол \\(новый\\) \\- дешево\\!"},
		{"Цена 25.5 GEL", "Цена 25\\.5 GEL"},
	}
	for _, tt := range tests {
		if got := EscapeMarkdownV2(tt.in); got != tt.want {
			t.Errorf("EscapeMarkdownV2(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
