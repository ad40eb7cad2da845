package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientExchangeForwardsSessionHeader(t *testing.T) {
	var receivedHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeader = r.Header.Get(SessionIDHeader)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "user-123",
			"email":         "rider@example.com",
			"name":          "Rider",
			"picture":       "https://example.com/p.png",
			"session_token": "tok-abc",
		})
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{SessionDataURL: server.URL, HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	identity, err := client.Exchange(context.Background(), "external-1")
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}
	if receivedHeader != "external-1" {
		t.Fatalf("expected session header to be forwarded, got %q", receivedHeader)
	}
	if identity.ID != "user-123" || identity.SessionToken != "tok-abc" || identity.Picture == "" {
		t.Fatalf("unexpected identity %#v", identity)
	}
}

func TestClientExchangeRejections(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		body   string
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"detail":"bad"}`},
		{name: "server-error", status: http.StatusBadGateway, body: ``},
		{name: "missing-id", status: http.StatusOK, body: `{"email":"a@example.com"}`},
		{name: "malformed", status: http.StatusOK, body: `{`},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(testCase.status)
				_, _ = w.Write([]byte(testCase.body))
			}))
			defer server.Close()

			client, err := NewClient(ClientConfig{SessionDataURL: server.URL, HTTPClient: server.Client()})
			if err != nil {
				t.Fatalf("unexpected constructor error: %v", err)
			}
			if _, err := client.Exchange(context.Background(), "external-1"); !errors.Is(err, ErrExchangeRejected) {
				t.Fatalf("expected rejection, got %v", err)
			}
		})
	}
}

func TestClientExchangeRequiresSessionID(t *testing.T) {
	client, err := NewClient(ClientConfig{SessionDataURL: "http://127.0.0.1:1/unused"})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	if _, err := client.Exchange(context.Background(), " "); !errors.Is(err, ErrExchangeRejected) {
		t.Fatalf("expected rejection for empty id, got %v", err)
	}
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); !errors.Is(err, ErrInvalidClientConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}
