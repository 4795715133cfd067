package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okamel/market-seasonality/internal/marketdata"
	"github.com/okamel/market-seasonality/internal/models"
	"github.com/okamel/market-seasonality/pkg/logger"
)

// BarStore holds the ordered daily bars for one symbol over one date
// span. It is rebuilt wholesale on every Load; derived structures are
// recomputed from it by the session after each rebuild.
//
// Loads carry a monotonically increasing request token. When a newer
// load starts before an older one resolves, the older result is
// discarded on arrival (last writer wins) so at most one in-flight
// fetch is authoritative.
type BarStore struct {
	source marketdata.Source

	token atomic.Uint64

	mu         sync.RWMutex
	symbol     string
	rangeStart time.Time
	rangeEnd   time.Time
	bars       []models.Bar
	byDate     map[string]int
	loaded     bool
}

// NewBarStore creates a bar store backed by the given source
func NewBarStore(source marketdata.Source) *BarStore {
	return &BarStore{
		source: source,
		byDate: make(map[string]int),
	}
}

// Load rebuilds the store for symbol over [start, end]. On upstream
// failure the store holds an empty sequence for the requested range and
// the error is returned; the caller may retry by re-triggering the same
// load. A load superseded by a newer one returns ErrStaleLoad and
// leaves the store untouched.
func (s *BarStore) Load(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	if symbol == "" {
		return nil, models.ErrInvalidSymbol
	}
	start = models.Day(start)
	end = models.Day(end)
	if end.Before(start) {
		return nil, models.ErrInvalidRange
	}

	token := s.token.Add(1)

	bars, fetchErr := s.source.GetDailyBars(ctx, symbol, start, end)
	if fetchErr != nil {
		// Surface the failure but still commit the empty range so the
		// view reflects "no data" rather than the previous symbol.
		if s.commit(token, symbol, start, end, nil) {
			return nil, fmt.Errorf("%w: %v", models.ErrFetchFailure, fetchErr)
		}
		return nil, models.ErrStaleLoad
	}

	ordered, err := orderBars(bars)
	if err != nil {
		if s.commit(token, symbol, start, end, nil) {
			return nil, err
		}
		return nil, models.ErrStaleLoad
	}

	if !s.commit(token, symbol, start, end, ordered) {
		return nil, models.ErrStaleLoad
	}

	logger.Debug("Bar store rebuilt",
		logger.String("symbol", symbol),
		logger.Time("range_start", start),
		logger.Time("range_end", end),
		logger.Int("bars", len(ordered)),
	)

	return s.Bars(), nil
}

// commit installs the result if token is still the latest request.
// Returns false when the load is stale.
func (s *BarStore) commit(token uint64, symbol string, start, end time.Time, bars []models.Bar) bool {
	if token != s.token.Load() {
		logger.StaleLoadsTotal.Inc()
		logger.Debug("Discarding stale load",
			logger.String("symbol", symbol),
			logger.Uint64("token", token),
		)
		return false
	}

	byDate := make(map[string]int, len(bars))
	for i, bar := range bars {
		byDate[bar.Date.Format(models.ISODate)] = i
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-check under the lock so two resolving loads cannot both commit
	if token != s.token.Load() {
		return false
	}
	s.symbol = symbol
	s.rangeStart = start
	s.rangeEnd = end
	s.bars = bars
	s.byDate = byDate
	s.loaded = true
	return true
}

// orderBars sorts bars ascending by date and rejects duplicate dates
func orderBars(bars []models.Bar) ([]models.Bar, error) {
	out := make([]models.Bar, len(bars))
	copy(out, bars)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	for i := 1; i < len(out); i++ {
		if out[i].Date.Equal(out[i-1].Date) {
			return nil, fmt.Errorf("%w: %s", models.ErrDuplicateDate, out[i].Date.Format(models.ISODate))
		}
	}
	return out, nil
}

// Bars returns a copy of the held bars in ascending date order
func (s *BarStore) Bars() []models.Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bars := make([]models.Bar, len(s.bars))
	copy(bars, s.bars)
	return bars
}

// Bar returns the bar for the given calendar day, if present
func (s *BarStore) Bar(day time.Time) (models.Bar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byDate[models.Day(day).Format(models.ISODate)]
	if !ok {
		return models.Bar{}, false
	}
	return s.bars[idx], true
}

// Symbol returns the symbol of the current load
func (s *BarStore) Symbol() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.symbol
}

// Range returns the requested date span of the current load
func (s *BarStore) Range() (time.Time, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rangeStart, s.rangeEnd
}

// Len returns the number of held bars
func (s *BarStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bars)
}

// Loaded reports whether any load has completed
func (s *BarStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}
