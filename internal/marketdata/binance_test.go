package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okamel/market-seasonality/internal/config"
	"github.com/okamel/market-seasonality/internal/models"
)

func testSource(t *testing.T, handler http.HandlerFunc) *BinanceSource {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewBinanceSource(config.BinanceConfig{
		BaseURL:        server.URL,
		RequestTimeout: 2 * time.Second,
	})
}

func TestGetDailyBarsParsesKlines(t *testing.T) {
	// 2024-04-01 and 2024-04-02 UTC midnight in epoch ms
	body := `[
		[1711929600000, "69000.5", "70100.0", "68500.25", "69800.75", "1234.5", 0, "0", 0, "0", "0", "0"],
		[1712016000000, "69800.75", "71000.0", "69500.0", "70500.0", "2345.6", 0, "0", 0, "0", "0", "0"]
	]`
	source := testSource(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol = %q, want BTCUSDT", got)
		}
		if got := r.URL.Query().Get("interval"); got != "1d" {
			t.Errorf("interval = %q, want 1d", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})

	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	bars, err := source.GetDailyBars(context.Background(), "btcusdt", start, end)
	if err != nil {
		t.Fatalf("GetDailyBars failed: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}

	first := bars[0]
	if first.Symbol != "BTCUSDT" {
		t.Errorf("Symbol = %q, want upper-cased BTCUSDT", first.Symbol)
	}
	if !first.Date.Equal(start) {
		t.Errorf("Date = %v, want %v", first.Date, start)
	}
	if first.Open != 69000.5 || first.Close != 69800.75 {
		t.Errorf("prices = %v/%v, want 69000.5/69800.75", first.Open, first.Close)
	}
	if first.Volume != 1234.5 {
		t.Errorf("Volume = %v, want 1234.5", first.Volume)
	}
}

func TestGetDailyBarsDropsMalformedRecords(t *testing.T) {
	// Second record has a negative price, third is truncated; both
	// must be dropped without failing the load.
	body := `[
		[1711929600000, "100", "110", "90", "105", "10", 0],
		[1712016000000, "-5", "110", "90", "105", "10", 0],
		[1712102400000, "100"],
		[1712188800000, "100", "110", "90", "95", "20", 0]
	]`
	source := testSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	})

	bars, err := source.GetDailyBars(context.Background(), "BTCUSDT",
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 4, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetDailyBars failed: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2 after dropping malformed records", len(bars))
	}
	if bars[0].Close != 105 || bars[1].Close != 95 {
		t.Errorf("surviving closes = %v/%v, want 105/95", bars[0].Close, bars[1].Close)
	}
}

func TestGetDailyBarsUpstreamError(t *testing.T) {
	source := testSource(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1003,"msg":"Too many requests"}`, http.StatusTooManyRequests)
	})

	_, err := source.GetDailyBars(context.Background(), "BTCUSDT",
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, models.ErrFetchFailure) {
		t.Fatalf("expected ErrFetchFailure, got %v", err)
	}
}

func TestGetOrderBookSnapshot(t *testing.T) {
	body := `{
		"lastUpdateId": 1,
		"bids": [["69000.5", "1.2"], ["68999.0", "0.5"], ["bad", "x"]],
		"asks": [["69001.0", "2.0"]]
	}`
	source := testSource(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/depth" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("limit = %q, want 50", got)
		}
		_, _ = w.Write([]byte(body))
	})

	book, err := source.GetOrderBookSnapshot(context.Background(), "btcusdt", 50)
	if err != nil {
		t.Fatalf("GetOrderBookSnapshot failed: %v", err)
	}
	if book.Symbol != "BTCUSDT" {
		t.Errorf("Symbol = %q, want BTCUSDT", book.Symbol)
	}
	if len(book.Bids) != 2 {
		t.Fatalf("got %d bids, want 2 (unparseable level dropped)", len(book.Bids))
	}
	if book.Bids[0].Price != 69000.5 || book.Bids[0].Quantity != 1.2 {
		t.Errorf("top bid = %+v", book.Bids[0])
	}
	if len(book.Asks) != 1 {
		t.Fatalf("got %d asks, want 1", len(book.Asks))
	}
}

func TestGetIntraday(t *testing.T) {
	body := `[
		[1711929600000, "100", "101", "99", "100.5", "5.5", 0],
		[1711930500000, "100.5", "102", "100", "101.5", "6.5", 0]
	]`
	var gotInterval string
	source := testSource(t, func(w http.ResponseWriter, r *http.Request) {
		gotInterval = r.URL.Query().Get("interval")
		_, _ = w.Write([]byte(body))
	})

	day := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	ticks, err := source.GetIntraday(context.Background(), "BTCUSDT", day)
	if err != nil {
		t.Fatalf("GetIntraday failed: %v", err)
	}
	if gotInterval != "15m" {
		t.Errorf("interval = %q, want 15m", gotInterval)
	}
	if len(ticks) != 2 {
		t.Fatalf("got %d ticks, want 2", len(ticks))
	}
	if ticks[0].High != 101 || ticks[0].Low != 99 || ticks[0].Volume != 5.5 {
		t.Errorf("tick = %+v", ticks[0])
	}
}

func TestMockSourceFiltersRange(t *testing.T) {
	source := NewMockSource()
	mk := func(n int) models.Bar {
		return models.Bar{
			Symbol: "BTCUSDT",
			Date:   time.Date(2024, 4, 1+n, 0, 0, 0, 0, time.UTC),
			Open:   100, High: 101, Low: 99, Close: 100, Volume: 1,
		}
	}
	source.SetBars("BTCUSDT", []models.Bar{mk(0), mk(1), mk(2), mk(3)})

	bars, err := source.GetDailyBars(context.Background(), "BTCUSDT",
		time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetDailyBars failed: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2 inside the range", len(bars))
	}
}
