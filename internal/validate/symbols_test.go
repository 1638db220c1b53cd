package validate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appconfig "bookflow/config"
)

func testServers(t *testing.T) (hl, pdx *httptest.Server) {
	t.Helper()
	hl = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"universe":[{"name":"BTC"},{"name":"ETH"},{"name":"SOL"}]}`))
	}))
	t.Cleanup(hl.Close)

	pdx = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"symbol":"BTC-USD-PERP"},{"symbol":"ETH-USD-PERP"}]}`))
	}))
	t.Cleanup(pdx.Close)
	return hl, pdx
}

func validationConfig(hlURL, pdxURL, hlSymbol, pdxSymbol string) *appconfig.Config {
	return &appconfig.Config{
		Pair: appconfig.PairConfig{HLSymbol: hlSymbol, PDXSymbol: pdxSymbol},
		Feeds: appconfig.FeedsConfig{
			Hyperliquid: appconfig.VenueFeedConfig{RestURL: hlURL},
			Paradex:     appconfig.VenueFeedConfig{RestURL: pdxURL},
		},
		Validation: appconfig.ValidationConfig{
			RequestsPerSecond: 100,
			Burst:             2,
			Timeout:           appconfig.Duration(2 * time.Second),
			Sample:            2,
		},
	}
}

func TestSymbolsValid(t *testing.T) {
	hl, pdx := testServers(t)
	cfg := validationConfig(hl.URL, pdx.URL, "BTC", "BTC-USD-PERP")

	if err := New(cfg).Symbols(context.Background()); err != nil {
		t.Fatalf("validation failed: %v", err)
	}
}

func TestSymbolsCaseInsensitive(t *testing.T) {
	hl, pdx := testServers(t)
	cfg := validationConfig(hl.URL, pdx.URL, "btc", "btc-usd-perp")

	if err := New(cfg).Symbols(context.Background()); err != nil {
		t.Fatalf("validation must be case-insensitive: %v", err)
	}
}

func TestUnknownHLSymbol(t *testing.T) {
	hl, pdx := testServers(t)
	cfg := validationConfig(hl.URL, pdx.URL, "DOGE", "BTC-USD-PERP")

	err := New(cfg).Symbols(context.Background())
	if err == nil {
		t.Fatalf("expected error for unknown symbol")
	}
	if !strings.Contains(err.Error(), "hyperliquid") {
		t.Errorf("error does not name the venue: %v", err)
	}
	// sample of valid symbols, capped at validation.sample
	if !strings.Contains(err.Error(), "BTC") || !strings.Contains(err.Error(), "ETH") {
		t.Errorf("error does not list sample symbols: %v", err)
	}
	if strings.Contains(err.Error(), "SOL") {
		t.Errorf("sample must be capped at %d entries: %v", cfg.Validation.Sample, err)
	}
}

func TestUnknownPDXMarket(t *testing.T) {
	hl, pdx := testServers(t)
	cfg := validationConfig(hl.URL, pdx.URL, "BTC", "DOGE-USD-PERP")

	err := New(cfg).Symbols(context.Background())
	if err == nil {
		t.Fatalf("expected error for unknown market")
	}
	if !strings.Contains(err.Error(), "paradex") {
		t.Errorf("error does not name the venue: %v", err)
	}
}

func TestUnreachableEndpoint(t *testing.T) {
	_, pdx := testServers(t)
	cfg := validationConfig("http://127.0.0.1:1", pdx.URL, "BTC", "BTC-USD-PERP")

	if err := New(cfg).Symbols(context.Background()); err == nil {
		t.Fatalf("expected error for unreachable endpoint")
	}
}
