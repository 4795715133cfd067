package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okamel/market-seasonality/internal/calendar"
	"github.com/okamel/market-seasonality/internal/marketdata"
	"github.com/okamel/market-seasonality/internal/metrics"
	"github.com/okamel/market-seasonality/internal/models"
)

func sessionDay(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func seedBars(symbol string, n int) []models.Bar {
	bars := make([]models.Bar, n)
	for i := 0; i < n; i++ {
		open := 100 + float64(i)
		bars[i] = models.Bar{
			Symbol: symbol,
			Date:   sessionDay(i),
			Open:   open,
			High:   open + 3,
			Low:    open - 2,
			Close:  open + 1,
			Volume: float64(100 * (i + 1)),
		}
	}
	return bars
}

func newTestSession(source marketdata.Source) *Session {
	return New(source, metrics.NewDefaultCalculator(), nil)
}

func TestRefreshComputesDerivedState(t *testing.T) {
	source := marketdata.NewMockSource()
	source.SetBars("BTCUSDT", seedBars("BTCUSDT", 10))
	s := newTestSession(source)

	err := s.Refresh(context.Background(), "BTCUSDT", sessionDay(0), sessionDay(9), calendar.Monthly)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	state := s.State()
	if !state.Loaded || state.Symbol != "BTCUSDT" || state.Bars != 10 {
		t.Fatalf("state = %+v", state)
	}
	if state.MaxVolume != 1000 {
		t.Errorf("MaxVolume = %v, want 1000", state.MaxVolume)
	}
	if state.Granularity != calendar.Monthly {
		t.Errorf("Granularity = %v, want monthly", state.Granularity)
	}

	rows := s.Rows()
	if len(rows) != 10 {
		t.Fatalf("got %d rows, want 10", len(rows))
	}
	if rows[4].Volatility == nil || rows[4].MA5 == nil {
		t.Error("day 4 should carry the first full-window metrics")
	}

	if months := s.Months(); len(months) != 1 {
		t.Errorf("got %d month rollups, want 1", len(months))
	}
	if weeks := s.Weeks(); len(weeks) == 0 {
		t.Error("expected week rollups for the loaded range")
	}

	snapshot := s.Snapshot(sessionDay(4))
	if snapshot.Bar == nil || snapshot.Metric == nil {
		t.Fatal("snapshot of a loaded day should carry bar and metric")
	}
	if snapshot.Metric.Volatility == nil {
		t.Error("snapshot metric should match the computed series")
	}
}

func TestRefreshFetchFailurePresentsEmpty(t *testing.T) {
	source := marketdata.NewMockSource()
	source.Err = errors.New("upstream down")
	s := newTestSession(source)

	err := s.Refresh(context.Background(), "BTCUSDT", sessionDay(0), sessionDay(9), calendar.Daily)
	if !errors.Is(err, models.ErrFetchFailure) {
		t.Fatalf("expected ErrFetchFailure, got %v", err)
	}

	state := s.State()
	if !state.Loaded || state.Bars != 0 {
		t.Errorf("state after failed refresh = %+v, want empty loaded range", state)
	}
	if rows := s.Rows(); len(rows) != 0 {
		t.Errorf("got %d rows after failed refresh, want 0", len(rows))
	}
}

func TestReevaluateAlertsCoversLoadedHistory(t *testing.T) {
	source := marketdata.NewMockSource()
	bars := seedBars("BTCUSDT", 5)
	bars[2].Open = 100
	bars[2].Close = 112 // +12% day
	source.SetBars("BTCUSDT", bars)
	s := newTestSession(source)

	if err := s.Refresh(context.Background(), "BTCUSDT", sessionDay(0), sessionDay(4), calendar.Daily); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if events := s.Events(); len(events) != 0 {
		t.Fatalf("no rules yet, got %d events", len(events))
	}

	if _, err := s.Rules().Add(models.AlertRule{PerformanceThreshold: models.Float(10)}); err != nil {
		t.Fatalf("Add rule failed: %v", err)
	}

	events := s.ReevaluateAlerts()
	if len(events) != 1 {
		t.Fatalf("expected 1 event over already-loaded history, got %d", len(events))
	}
	if !events[0].Date.Equal(sessionDay(2)) {
		t.Errorf("event date = %v, want %v", events[0].Date, sessionDay(2))
	}
}

func TestCompareBenchmarkJoinsByIndex(t *testing.T) {
	source := marketdata.NewMockSource()
	source.SetBars("ETHUSDT", seedBars("ETHUSDT", 5))
	source.SetBars("BTCUSDT", seedBars("BTCUSDT", 5))
	s := newTestSession(source)

	if err := s.Refresh(context.Background(), "ETHUSDT", sessionDay(0), sessionDay(4), calendar.Daily); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	rows, err := s.CompareBenchmark(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("CompareBenchmark failed: %v", err)
	}
	for i, row := range rows {
		if row.BenchmarkClose == nil {
			t.Fatalf("row %d: benchmark close missing", i)
		}
	}
}

func TestCompareBenchmarkLengthMismatch(t *testing.T) {
	source := marketdata.NewMockSource()
	source.SetBars("ETHUSDT", seedBars("ETHUSDT", 5))
	source.SetBars("BTCUSDT", seedBars("BTCUSDT", 3))
	s := newTestSession(source)

	if err := s.Refresh(context.Background(), "ETHUSDT", sessionDay(0), sessionDay(4), calendar.Daily); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if _, err := s.CompareBenchmark(context.Background(), "BTCUSDT"); !errors.Is(err, models.ErrAlignmentMismatch) {
		t.Fatalf("expected ErrAlignmentMismatch, got %v", err)
	}
	// The primary series is unaffected by the failed comparison
	if len(s.Rows()) != 5 {
		t.Error("primary rows must survive a failed benchmark comparison")
	}
}

func TestComparePeriodRequiresLoadedSession(t *testing.T) {
	s := newTestSession(marketdata.NewMockSource())

	if _, err := s.ComparePeriod(context.Background(), sessionDay(0), sessionDay(4)); !errors.Is(err, models.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if _, err := s.CompareBenchmark(context.Background(), "BTCUSDT"); !errors.Is(err, models.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestComparePeriod(t *testing.T) {
	source := marketdata.NewMockSource()
	source.SetBars("BTCUSDT", seedBars("BTCUSDT", 40))
	s := newTestSession(source)

	if err := s.Refresh(context.Background(), "BTCUSDT", sessionDay(0), sessionDay(9), calendar.Daily); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	result, err := s.ComparePeriod(context.Background(), sessionDay(20), sessionDay(29))
	if err != nil {
		t.Fatalf("ComparePeriod failed: %v", err)
	}
	if len(result.Primary) != 10 || len(result.Secondary) != 10 {
		t.Fatalf("row counts = %d/%d, want 10/10", len(result.Primary), len(result.Secondary))
	}
	if result.PrimaryStats.Days != 10 || result.SecondaryStats.Days != 10 {
		t.Errorf("stat days = %d/%d", result.PrimaryStats.Days, result.SecondaryStats.Days)
	}
}

// countingCache records Get/Set traffic around an in-memory cache
type countingCache struct {
	inner *metrics.MemoryRowCache
	hits  int
	sets  int
}

func (c *countingCache) Get(ctx context.Context, key string) ([]models.SeriesRow, bool) {
	rows, ok := c.inner.Get(ctx, key)
	if ok {
		c.hits++
	}
	return rows, ok
}

func (c *countingCache) Set(ctx context.Context, key string, rows []models.SeriesRow) {
	c.sets++
	c.inner.Set(ctx, key, rows)
}

func TestRefreshReusesCachedRows(t *testing.T) {
	source := marketdata.NewMockSource()
	source.SetBars("BTCUSDT", seedBars("BTCUSDT", 10))
	cache := &countingCache{inner: metrics.NewMemoryRowCache(time.Minute)}
	s := New(source, metrics.NewDefaultCalculator(), cache)

	for i := 0; i < 2; i++ {
		if err := s.Refresh(context.Background(), "BTCUSDT", sessionDay(0), sessionDay(9), calendar.Daily); err != nil {
			t.Fatalf("Refresh %d failed: %v", i, err)
		}
	}

	if cache.sets != 1 {
		t.Errorf("sets = %d, want 1 (second refresh should hit)", cache.sets)
	}
	if cache.hits != 1 {
		t.Errorf("hits = %d, want 1", cache.hits)
	}
	if rows := s.Rows(); len(rows) != 10 || rows[4].Volatility == nil {
		t.Error("cached refresh must present the same computed rows")
	}
}
