package marketdata

import (
	"context"
	"time"

	"github.com/okamel/market-seasonality/internal/models"
)

// MockSource is a deterministic in-memory source used in tests and when
// running without network access. Bars are served from a preloaded set;
// an optional Err makes every call fail and an optional Delay simulates
// a slow upstream.
type MockSource struct {
	Bars  map[string][]models.Bar
	Books map[string]*models.OrderBook
	Err   error
	Delay time.Duration
}

// NewMockSource creates an empty mock source
func NewMockSource() *MockSource {
	return &MockSource{
		Bars:  make(map[string][]models.Bar),
		Books: make(map[string]*models.OrderBook),
	}
}

// Name returns the source name
func (s *MockSource) Name() string {
	return "mock"
}

// SetBars replaces the bars served for a symbol
func (s *MockSource) SetBars(symbol string, bars []models.Bar) {
	s.Bars[symbol] = bars
}

// GetDailyBars returns the preloaded bars that fall within [start, end]
func (s *MockSource) GetDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}

	dayStart := models.Day(start)
	dayEnd := models.Day(end)

	var out []models.Bar
	for _, bar := range s.Bars[symbol] {
		if bar.Date.Before(dayStart) || bar.Date.After(dayEnd) {
			continue
		}
		out = append(out, bar)
	}
	return out, nil
}

// GetOrderBookSnapshot returns the preloaded book for the symbol
func (s *MockSource) GetOrderBookSnapshot(ctx context.Context, symbol string, depth int) (*models.OrderBook, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if book, ok := s.Books[symbol]; ok {
		return book, nil
	}
	return &models.OrderBook{Symbol: symbol}, nil
}

// GetIntraday returns synthetic intraday ticks derived from the day's bar
func (s *MockSource) GetIntraday(ctx context.Context, symbol string, day time.Time) ([]models.IntradayTick, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}

	target := models.Day(day)
	for _, bar := range s.Bars[symbol] {
		if bar.Date.Equal(target) {
			// 96 15-minute slots, volume spread evenly
			ticks := make([]models.IntradayTick, 0, 96)
			for i := 0; i < 96; i++ {
				ticks = append(ticks, models.IntradayTick{
					Time:   target.Add(time.Duration(i) * 15 * time.Minute),
					High:   bar.High,
					Low:    bar.Low,
					Volume: bar.Volume / 96,
				})
			}
			return ticks, nil
		}
	}
	return nil, nil
}

func (s *MockSource) wait(ctx context.Context) error {
	if s.Delay <= 0 {
		return nil
	}
	select {
	case <-time.After(s.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
