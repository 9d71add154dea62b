package goldrush

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"TaikoMCP-Chain/internal/web3"
)

const contract = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error when api key is missing")
	}
}

func TestFetchHistoryFollowsPagination(t *testing.T) {
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected authorization %q", got)
		}
		if r.URL.Path != "/v1/taiko-hekla-testnet/address/"+contract+"/transactions_v2/" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("page-size") != "2" {
			t.Errorf("unexpected page size %q", r.URL.Query().Get("page-size"))
		}
		page := r.URL.Query().Get("page-number")
		pages = append(pages, page)
		w.Header().Set("Content-Type", "application/json")
		switch page {
		case "0":
			_, _ = w.Write([]byte(`{"data":{"items":[
				{"block_signed_at":"2025-01-15T10:00:00Z","tx_hash":"0x1","gas_spent":1000,"from_address":"0xaaa","to_address":"0xbbb"},
				{"block_signed_at":"2025-01-10T10:00:00Z","tx_hash":"0x2","gas_spent":2000,"from_address":"0xccc","to_address":null}
			],"pagination":{"has_more":true,"page_number":0,"page_size":2}},"error":false,"error_message":null,"error_code":null}`))
		default:
			_, _ = w.Write([]byte(`{"data":{"items":[
				{"block_signed_at":"2025-01-01T10:00:00Z","tx_hash":"0x3","gas_spent":3000,"from_address":"0xddd","to_address":"0xeee"}
			],"pagination":{"has_more":false,"page_number":1,"page_size":2}},"error":false}`))
		}
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "secret", BaseURL: srv.URL, PageSize: 2})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.httpClient = srv.Client()

	records, err := client.FetchHistory(context.Background(), web3.BuiltinChains()[web3.ChainTaikoHekla], contract)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if strings.Join(pages, ",") != "0,1" {
		t.Fatalf("unexpected pages requested %v", pages)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].GasSpent != 1000 || records[0].From != "0xaaa" || records[0].To != "0xbbb" {
		t.Fatalf("unexpected first record %+v", records[0])
	}
	if records[1].To != "" {
		t.Fatalf("null to_address should map to empty, got %q", records[1].To)
	}
}

func TestFetchHistoryStopsAtMaxPages(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"data":{"items":[],"pagination":{"has_more":true}},"error":false}`))
	}))
	defer srv.Close()

	var logs bytes.Buffer
	client, _ := NewClient(Config{APIKey: "k", BaseURL: srv.URL, MaxPages: 3})
	client.httpClient = srv.Client()
	client.logger = slog.New(slog.NewJSONHandler(&logs, nil))
	records, err := client.FetchHistory(context.Background(), web3.BuiltinChains()[web3.ChainTaiko], contract)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if calls != 3 || len(records) != 0 {
		t.Fatalf("expected 3 calls and no records, got %d calls %d records", calls, len(records))
	}
	if !strings.Contains(logs.String(), "history truncated at page limit") || !strings.Contains(logs.String(), `"max_pages":3`) {
		t.Fatalf("expected truncation warning, got %q", logs.String())
	}
}

func TestFetchHistoryErrors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":true}`, http.StatusUnauthorized)
		},
		"envelope": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":null,"error":true,"error_message":"Invalid chain","error_code":400}`))
		},
		"timestamp": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"items":[{"block_signed_at":"yesterday","gas_spent":1,"from_address":"0xa","to_address":"0xb"}]},"error":false}`))
		},
		"sender": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"items":[{"block_signed_at":"2025-01-01T00:00:00Z","gas_spent":1,"from_address":"","to_address":"0xb"}]},"error":false}`))
		},
		"body": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		},
	}
	for name, handler := range cases {
		srv := httptest.NewServer(handler)
		client, _ := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
		client.httpClient = srv.Client()
		records, err := client.FetchHistory(context.Background(), web3.BuiltinChains()[web3.ChainTaiko], contract)
		srv.Close()
		if err == nil {
			t.Fatalf("%s: expected error, got %d records", name, len(records))
		}
	}

	client, _ := NewClient(Config{APIKey: "k"})
	if _, err := client.FetchHistory(context.Background(), web3.ChainConfig{Name: "custom"}, contract); err == nil {
		t.Fatal("expected error for chain without indexer slug")
	}
}
