package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"TaikoMCP-Chain/internal/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL + "/", Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	client.httpClient = srv.Client()
	return client
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Config{APIKey: "  "}); err == nil {
		t.Fatalf("expected error when api key is missing")
	}
}

func TestExtractBalanceParams(t *testing.T) {
	var (
		auth string
		body chatRequest
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"finish_reason":"stop","message":{"role":"assistant","content":"` +
			"```json\\n{\\\"chain\\\":\\\"taiko\\\",\\\"address\\\":\\\"siddesh.eth\\\",\\\"token\\\":null}\\n```" + `"}}]}`))
	})

	params, err := client.Extract(context.Background(), llm.ExtractRequest{
		Action:     llm.ActionBalance,
		Messages:   []string{"how much ETH does siddesh.eth hold?"},
		WalletInfo: "Taiko chain Wallet Address: 0x1111111111111111111111111111111111111111",
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if params.Get("address") != "siddesh.eth" || params.Get("chain") != "taiko" || params.Get("token") != "" {
		t.Fatalf("unexpected params: %+v", params)
	}

	if auth != "Bearer test" {
		t.Fatalf("unexpected authorization header %q", auth)
	}
	if body.Model != defaultModelName || body.Temperature != 0 || body.ResponseFormat["type"] != "json_object" {
		t.Fatalf("unexpected request: %+v", body)
	}
	if len(body.Messages) != 2 || body.Messages[0].Role != "system" {
		t.Fatalf("expected system and user messages, got %+v", body.Messages)
	}
	if !strings.Contains(body.Messages[1].Content, "- how much ETH does siddesh.eth hold?") {
		t.Fatalf("user prompt missing recent message: %q", body.Messages[1].Content)
	}
}

func TestExtractSurfacesAPIErrorMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
	})

	_, err := client.Extract(context.Background(), llm.ExtractRequest{Action: llm.ActionAnalytics})
	if err == nil || !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "Rate limit reached") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExtractEmptyChoice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"finish_reason":"length","message":{"content":"  "}}]}`))
	})

	_, err := client.Extract(context.Background(), llm.ExtractRequest{Action: llm.ActionTransfer})
	if err == nil || !strings.Contains(err.Error(), "finish_reason=length") {
		t.Fatalf("unexpected error: %v", err)
	}
}
