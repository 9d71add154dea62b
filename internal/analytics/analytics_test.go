package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	xerrors "TaikoMCP-Chain/internal/errors"
	"TaikoMCP-Chain/internal/web3"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return ts
}

func TestAggregateWindowInclusion(t *testing.T) {
	ref := mustTime(t, "2025-01-15T12:00:00Z")
	records := []TransactionRecord{
		{Timestamp: mustTime(t, "2025-01-15T10:00:00Z"), GasSpent: 1000, From: "0xa1", To: "0xb1"},
		{Timestamp: mustTime(t, "2025-01-10T10:00:00Z"), GasSpent: 2000, From: "0xa2", To: "0xb2"},
		{Timestamp: mustTime(t, "2025-01-01T10:00:00Z"), GasSpent: 3000, From: "0xa3", To: "0xb3"},
	}

	s := Aggregate(records, ref)
	if s.GasSpent != (PerWindow[string]{OneDay: "1000 gwei", SevenDays: "3000 gwei", ThirtyDays: "6000 gwei"}) {
		t.Fatalf("unexpected gas %+v", s.GasSpent)
	}
	if s.TxCount != (PerWindow[int]{OneDay: 1, SevenDays: 2, ThirtyDays: 3}) {
		t.Fatalf("unexpected counts %+v", s.TxCount)
	}
	if s.UniqueAddresses != (PerWindow[int]{OneDay: 2, SevenDays: 4, ThirtyDays: 6}) {
		t.Fatalf("unexpected unique addresses %+v", s.UniqueAddresses)
	}
}

func TestAggregateBoundsAreInclusive(t *testing.T) {
	ref := mustTime(t, "2025-01-15T12:00:00Z")
	records := []TransactionRecord{
		{Timestamp: ref, GasSpent: 1, From: "0xa", To: "0xb"},
		{Timestamp: ref.AddDate(0, 0, -1), GasSpent: 10, From: "0xa", To: "0xb"},
		{Timestamp: ref.AddDate(0, 0, -30), GasSpent: 100, From: "0xa", To: "0xb"},
		{Timestamp: ref.AddDate(0, 0, -30).Add(-time.Second), GasSpent: 1000, From: "0xa", To: "0xb"},
		{Timestamp: ref.Add(time.Second), GasSpent: 10000, From: "0xa", To: "0xb"},
	}
	s := Aggregate(records, ref)
	if s.GasSpent.OneDay != "11 gwei" || s.GasSpent.ThirtyDays != "111 gwei" {
		t.Fatalf("unexpected gas %+v", s.GasSpent)
	}
	if s.TxCount.ThirtyDays != 3 {
		t.Fatalf("expected 3 records in 30d, got %d", s.TxCount.ThirtyDays)
	}
}

func TestAggregateTopAddressesStableTies(t *testing.T) {
	ref := mustTime(t, "2025-01-15T12:00:00Z")
	at := ref.Add(-time.Hour)
	records := []TransactionRecord{
		{Timestamp: at, From: "0xc", To: "0xd"},
		{Timestamp: at, From: "0xe", To: "0xd"},
		{Timestamp: at, From: "0xf", To: "0xc"},
		{Timestamp: at, From: "0xe", To: "0xg"},
	}
	// counts: c=2 d=2 e=2 f=1 g=1; first seen c, d, e.
	s := Aggregate(records, ref)
	want := []string{"0xc", "0xd", "0xe"}
	if !reflect.DeepEqual(s.TopAddresses.OneDay, want) {
		t.Fatalf("expected %v, got %v", want, s.TopAddresses.OneDay)
	}

	fewer := Aggregate([]TransactionRecord{{Timestamp: at, From: "0x1", To: "0x2"}, {Timestamp: at, From: "0x2", To: "0x3"}}, ref)
	if !reflect.DeepEqual(fewer.TopAddresses.OneDay, []string{"0x2", "0x1", "0x3"}) {
		t.Fatalf("unexpected ranking %v", fewer.TopAddresses.OneDay)
	}
}

func TestAggregateSkipsEmptyReceiver(t *testing.T) {
	ref := mustTime(t, "2025-01-15T12:00:00Z")
	s := Aggregate([]TransactionRecord{{Timestamp: ref, GasSpent: 5, From: "0xdeployer"}}, ref)
	if s.UniqueAddresses.OneDay != 1 || s.TxCount.OneDay != 1 {
		t.Fatalf("contract creation must count once with one address, got %+v", s)
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	ref := mustTime(t, "2025-01-15T12:00:00Z")
	for _, input := range [][]TransactionRecord{nil, {}} {
		s := Aggregate(input, ref)
		if !reflect.DeepEqual(s, EmptySummary()) {
			t.Fatalf("expected zero summary, got %+v", s)
		}
	}

	encoded, err := json.Marshal(EmptySummary())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"gasSpent":{"1d":"0 gwei","7d":"0 gwei","30d":"0 gwei"},"txCount":{"1d":0,"7d":0,"30d":0},"uniqueAddresses":{"1d":0,"7d":0,"30d":0},"topAddresses":{"1d":[],"7d":[],"30d":[]}}`
	if string(encoded) != want {
		t.Fatalf("unexpected json %s", encoded)
	}
}

func TestAggregateDoesNotMutateInput(t *testing.T) {
	ref := mustTime(t, "2025-01-15T12:00:00Z")
	records := []TransactionRecord{
		{Timestamp: ref.Add(-time.Hour), GasSpent: 7, From: "0xb", To: "0xa"},
		{Timestamp: ref.Add(-2 * time.Hour), GasSpent: 9, From: "0xa", To: "0xc"},
	}
	snapshot := append([]TransactionRecord(nil), records...)
	Aggregate(records, ref)
	if !reflect.DeepEqual(records, snapshot) {
		t.Fatalf("input mutated: %+v", records)
	}
}

func TestRenderReport(t *testing.T) {
	ref := mustTime(t, "2025-01-15T12:00:00Z")
	s := Aggregate([]TransactionRecord{
		{Timestamp: ref.AddDate(0, 0, -3), GasSpent: 21000, From: "0xaaa", To: "0xbbb"},
	}, ref)
	report := RenderReport(s)

	for _, fragment := range []string{
		"**Contract Analytics:**",
		"  - Last 1 Day: 0 gwei",
		"  - Last 7 Days: 21000 gwei",
		"  - Last 30 Days: 1",
		"- 1 Day:\nNone\n",
		"- 7 Days:\n1. 0xaaa\n2. 0xbbb\n",
	} {
		if !strings.Contains(report, fragment) {
			t.Fatalf("report missing %q:\n%s", fragment, report)
		}
	}
}

type fetcherFunc func(ctx context.Context, chain web3.ChainConfig, contract string) ([]TransactionRecord, error)

func (f fetcherFunc) FetchHistory(ctx context.Context, chain web3.ChainConfig, contract string) ([]TransactionRecord, error) {
	return f(ctx, chain, contract)
}

func TestServiceAnalyze(t *testing.T) {
	ref := mustTime(t, "2025-01-15T12:00:00Z")
	chain := web3.BuiltinChains()[web3.ChainTaikoHekla]
	contract := "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"

	var gotChain web3.ChainConfig
	svc := NewService(fetcherFunc(func(_ context.Context, c web3.ChainConfig, addr string) ([]TransactionRecord, error) {
		gotChain = c
		if addr != contract {
			t.Fatalf("unexpected contract %s", addr)
		}
		return []TransactionRecord{{Timestamp: ref.Add(-time.Minute), GasSpent: 42, From: "0x1", To: contract}}, nil
	}), WithClock(func() time.Time { return ref }))

	s, err := svc.Analyze(context.Background(), chain, contract)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if gotChain.IndexerSlug != "taiko-hekla-testnet" {
		t.Fatalf("unexpected chain passed to fetcher: %+v", gotChain)
	}
	if s.GasSpent.OneDay != "42 gwei" || s.TxCount.ThirtyDays != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestServiceAnalyzeFailures(t *testing.T) {
	chain := web3.BuiltinChains()[web3.ChainTaiko]
	boom := errors.New("API request failed: 401 Unauthorized")
	svc := NewService(fetcherFunc(func(context.Context, web3.ChainConfig, string) ([]TransactionRecord, error) {
		return nil, boom
	}))

	_, err := svc.Analyze(context.Background(), chain, "0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
	if xerrors.CodeOf(err) != xerrors.CodeHistoryFetchFailed || !errors.Is(err, boom) {
		t.Fatalf("expected HISTORY_FETCH_FAILED, got %v", err)
	}

	if _, err := svc.Analyze(context.Background(), chain, "742d35Cc6634C0532925a3b844Bc454e4438f44e"); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
}
