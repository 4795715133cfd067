package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okamel/market-seasonality/internal/alert"
	"github.com/okamel/market-seasonality/internal/calendar"
	"github.com/okamel/market-seasonality/internal/compare"
	"github.com/okamel/market-seasonality/internal/marketdata"
	"github.com/okamel/market-seasonality/internal/metrics"
	"github.com/okamel/market-seasonality/internal/models"
	"github.com/okamel/market-seasonality/internal/store"
	"github.com/okamel/market-seasonality/pkg/logger"
)

// Session is the explicit context object shared across views: the
// active symbol, range and granularity, the bar store, the computed
// metrics and rollups, and the alert rule list. Every derived structure
// is a pure function of the current bar store and is recomputed
// synchronously after each rebuild.
type Session struct {
	source    marketdata.Source
	store     *store.BarStore
	calc      *metrics.Calculator
	evaluator *alert.Evaluator
	rules     *alert.RuleList
	cache     metrics.RowCache

	mu sync.RWMutex
	// guarded derived state, replaced wholesale by Refresh
	state sessionState
}

type sessionState struct {
	granularity calendar.Granularity
	bars        []models.Bar
	metrics     []models.RollingMetric
	rows        []models.SeriesRow
	weeks       []models.WeekSummary
	months      []models.MonthSummary
	events      []models.AlertEvent
	maxVolume   float64
	refreshedAt time.Time
}

// State describes the session for the view layer
type State struct {
	Symbol      string               `json:"symbol"`
	RangeStart  time.Time            `json:"range_start"`
	RangeEnd    time.Time            `json:"range_end"`
	Granularity calendar.Granularity `json:"granularity"`
	Bars        int                  `json:"bars"`
	MaxVolume   float64              `json:"max_volume"`
	RefreshedAt time.Time            `json:"refreshed_at"`
	Loaded      bool                 `json:"loaded"`
}

// New creates a session over the given source. cache may be nil to
// disable row caching.
func New(source marketdata.Source, calc *metrics.Calculator, cache metrics.RowCache) *Session {
	return &Session{
		source:    source,
		store:     store.NewBarStore(source),
		calc:      calc,
		evaluator: alert.NewEvaluator(),
		rules:     alert.NewRuleList(),
		cache:     cache,
	}
}

// Rules exposes the session's alert rule list
func (s *Session) Rules() *alert.RuleList {
	return s.rules
}

// Source exposes the underlying market data source for sibling
// displays (order book, intraday) driven by the same symbol selection.
func (s *Session) Source() marketdata.Source {
	return s.source
}

// Refresh rebuilds the bar store for the requested view and recomputes
// every derived structure. A refresh superseded by a newer one returns
// ErrStaleLoad and leaves the session on the newer result. On fetch
// failure the session presents an empty data set for the range and the
// error is surfaced; re-triggering the same refresh retries.
func (s *Session) Refresh(ctx context.Context, symbol string, start, end time.Time, granularity calendar.Granularity) error {
	_, loadErr := s.store.Load(ctx, symbol, start, end)
	if errors.Is(loadErr, models.ErrStaleLoad) {
		return loadErr
	}
	if loadErr != nil && !errors.Is(loadErr, models.ErrFetchFailure) &&
		!errors.Is(loadErr, models.ErrDuplicateDate) {
		return loadErr
	}

	s.recompute(ctx, granularity)

	if loadErr != nil {
		logger.Warn("Refresh loaded empty data set",
			logger.String("symbol", symbol),
			logger.ErrorField(loadErr),
		)
	}
	return loadErr
}

// ReevaluateAlerts re-runs the alert evaluator over the loaded range,
// used after the rule list changes so new thresholds apply to history
// already loaded.
func (s *Session) ReevaluateAlerts() []models.AlertEvent {
	s.mu.Lock()
	s.state.events = s.evaluator.Evaluate(s.state.bars, s.state.metrics, s.rules.All())
	s.mu.Unlock()
	return s.Events()
}

// recompute derives metrics, rollups and alert events from the current
// bar store. It is synchronous and deterministic given the loaded bars.
func (s *Session) recompute(ctx context.Context, granularity calendar.Granularity) {
	started := time.Now()

	bars := s.store.Bars()
	rangeStart, rangeEnd := s.store.Range()

	var seriesMetrics []models.RollingMetric
	var rows []models.SeriesRow

	cacheKey := ""
	if s.cache != nil {
		cacheKey = metrics.CacheKey(s.store.Symbol(), rangeStart, rangeEnd, s.calc)
		if cached, ok := s.cache.Get(ctx, cacheKey); ok && len(cached) == len(bars) {
			rows = cached
			seriesMetrics = metricsFromRows(cached)
		}
	}
	if seriesMetrics == nil {
		seriesMetrics = s.calc.Compute(bars)
		rows = metrics.Rows(bars, seriesMetrics)
		if s.cache != nil {
			s.cache.Set(ctx, cacheKey, rows)
		}
	}

	maxVolume := 0.0
	for _, bar := range bars {
		if bar.Volume > maxVolume {
			maxVolume = bar.Volume
		}
	}

	s.mu.Lock()
	s.state = sessionState{
		granularity: granularity,
		bars:        bars,
		metrics:     seriesMetrics,
		rows:        rows,
		weeks:       calendar.WeekSummaries(bars, seriesMetrics, rangeStart, rangeEnd),
		months:      calendar.MonthSummaries(bars, seriesMetrics, rangeStart, rangeEnd),
		events:      s.evaluator.Evaluate(bars, seriesMetrics, s.rules.All()),
		maxVolume:   maxVolume,
		refreshedAt: time.Now().UTC(),
	}
	s.mu.Unlock()

	logger.RecomputeDuration.Observe(time.Since(started).Seconds())
}

// metricsFromRows rebuilds the metric series from cached rows
func metricsFromRows(rows []models.SeriesRow) []models.RollingMetric {
	out := make([]models.RollingMetric, len(rows))
	for i, row := range rows {
		out[i] = models.RollingMetric{
			Date:       row.Date,
			Volatility: row.Volatility,
			MA5:        row.MA5,
			MA10:       row.MA10,
			RSI14:      row.RSI14,
		}
	}
	return out
}

// State reports the current view state
func (s *Session) State() State {
	start, end := s.store.Range()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Symbol:      s.store.Symbol(),
		RangeStart:  start,
		RangeEnd:    end,
		Granularity: s.state.granularity,
		Bars:        s.store.Len(),
		MaxVolume:   s.state.maxVolume,
		RefreshedAt: s.state.refreshedAt,
		Loaded:      s.store.Loaded(),
	}
}

// Rows returns the tabular series rows of the loaded range
func (s *Session) Rows() []models.SeriesRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]models.SeriesRow, len(s.state.rows))
	copy(rows, s.state.rows)
	return rows
}

// Snapshot returns the per-date lookup for one calendar day
func (s *Session) Snapshot(day time.Time) models.DaySnapshot {
	var snapshot models.DaySnapshot
	if bar, ok := s.store.Bar(day); ok {
		snapshot.Bar = &bar
	}
	target := models.Day(day)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.state.metrics {
		if s.state.metrics[i].Date.Equal(target) {
			m := s.state.metrics[i]
			snapshot.Metric = &m
			break
		}
	}
	return snapshot
}

// Weeks returns the week rollups of the loaded range
func (s *Session) Weeks() []models.WeekSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	weeks := make([]models.WeekSummary, len(s.state.weeks))
	copy(weeks, s.state.weeks)
	return weeks
}

// Months returns the month rollups of the loaded range
func (s *Session) Months() []models.MonthSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	months := make([]models.MonthSummary, len(s.state.months))
	copy(months, s.state.months)
	return months
}

// Events returns the alert events of the latest evaluation
func (s *Session) Events() []models.AlertEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]models.AlertEvent, len(s.state.events))
	copy(events, s.state.events)
	return events
}

// CompareBenchmark loads the benchmark symbol over the session's range
// and joins it onto the primary rows strictly by index. A length
// mismatch fails only the comparison, never the primary series.
func (s *Session) CompareBenchmark(ctx context.Context, benchmarkSymbol string) ([]models.SeriesRow, error) {
	if !s.store.Loaded() {
		return nil, models.ErrNoSession
	}
	start, end := s.store.Range()

	benchmark, err := s.source.GetDailyBars(ctx, benchmarkSymbol, start, end)
	if err != nil {
		return nil, err
	}
	return compare.AttachBenchmark(s.Rows(), benchmark)
}

// ComparePeriod loads a secondary period of the session's symbol and
// returns the independent-axis comparison.
func (s *Session) ComparePeriod(ctx context.Context, start, end time.Time) (*compare.PeriodComparison, error) {
	if !s.store.Loaded() {
		return nil, models.ErrNoSession
	}

	secondary, err := s.source.GetDailyBars(ctx, s.store.Symbol(), start, end)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	primary := make([]models.Bar, len(s.state.bars))
	copy(primary, s.state.bars)
	s.mu.RUnlock()

	result := compare.ComparePeriods(s.calc, primary, secondary)
	return &result, nil
}
