package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateHTTPRequest(t *testing.T) {
	tests := []struct {
		name   string
		method string
		url    string
		body   interface{}
	}{
		{"GET request with no body", http.MethodGet, "/test", nil},
		{"POST request with JSON body", http.MethodPost, "/test", map[string]string{"key": "value"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := CreateHTTPRequest(t, tt.method, tt.url, tt.body)

			if req.Method != tt.method {
				t.Errorf("Expected method %s, got %s", tt.method, req.Method)
			}
			if req.URL.Path != tt.url {
				t.Errorf("Expected URL %s, got %s", tt.url, req.URL.Path)
			}
		})
	}
}

func TestCreateHTTPRequestEncodesBody(t *testing.T) {
	req := CreateHTTPRequest(t, http.MethodPost, "/test", map[string]string{"id": "445772"})

	var decoded map[string]string
	if err := json.NewDecoder(req.Body).Decode(&decoded); err != nil {
		t.Fatalf("failed to decode request body: %v", err)
	}
	if decoded["id"] != "445772" {
		t.Errorf("expected body id 445772, got %q", decoded["id"])
	}
}

func TestAssertJSONResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.Body.WriteString(`{"status":"ok","result":{"total_records":3}}`)

	response := AssertJSONResponse(t, rr, "ok")

	result, ok := response["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected result object, got %v", response)
	}
	if result["total_records"].(float64) != 3 {
		t.Errorf("expected total_records 3, got %v", result["total_records"])
	}
}

func TestAssertHTTPStatus(t *testing.T) {
	// Matching codes must not fail the test
	AssertHTTPStatus(t, http.StatusOK, http.StatusOK, "matching status")
}
