package models

import (
	"time"
)

// ISODate is the wire format for calendar days.
const ISODate = "2006-01-02"

// Day truncates t to its UTC calendar day (midnight UTC).
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Bar represents one day's OHLCV for a symbol
type Bar struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Validate validates a Bar
func (b *Bar) Validate() error {
	if b.Symbol == "" {
		return ErrInvalidSymbol
	}
	if b.Date.IsZero() {
		return ErrInvalidDate
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return ErrInvalidPrice
	}
	if b.High < b.Low {
		return ErrInvalidBar
	}
	if b.Volume < 0 {
		return ErrInvalidVolume
	}
	return nil
}

// PerformancePct returns the single-day performance of the bar in percent
func (b *Bar) PerformancePct() float64 {
	return (b.Close - b.Open) / b.Open * 100
}

// RollingMetric holds the window-derived metrics attached to a bar's date.
// A nil field means the lookback window was not fully satisfied at that
// date. Absence is never encoded as zero.
type RollingMetric struct {
	Date       time.Time `json:"date"`
	Volatility *float64  `json:"volatility"`
	MA5        *float64  `json:"ma5"`
	MA10       *float64  `json:"ma10"`
	RSI14      *float64  `json:"rsi14"`
}

// WeekSummary is the rollup over one Sunday-start calendar week.
// A week with zero eligible days carries NaN in every numeric field so
// consumers can tell "no data" from "zero".
type WeekSummary struct {
	WeekStart     time.Time `json:"week_start"`
	AvgVolatility float64   `json:"avg_volatility"`
	TotalVolume   float64   `json:"total_volume"`
	AvgClose      float64   `json:"avg_close"`
	EligibleDays  int       `json:"eligible_days"`
}

// MonthSummary is the rollup over one calendar month within the loaded
// range. PerformancePct spans the first eligible day's open to the last
// eligible day's close, regardless of gaps between them.
type MonthSummary struct {
	Year           int        `json:"year"`
	Month          time.Month `json:"month"`
	AvgVolatility  float64    `json:"avg_volatility"`
	TotalVolume    float64    `json:"total_volume"`
	AvgClose       float64    `json:"avg_close"`
	PerformancePct float64    `json:"performance_pct"`
	EligibleDays   int        `json:"eligible_days"`
}

// AlertRule is a user-defined threshold rule. Rules are immutable once
// created and live only for the active session.
type AlertRule struct {
	ID                   string    `json:"id"`
	VolatilityThreshold  *float64  `json:"volatility_threshold,omitempty"`
	PerformanceThreshold *float64  `json:"performance_threshold,omitempty"`
	AnchorDate           time.Time `json:"anchor_date"`
	CreatedAt            time.Time `json:"created_at"`
}

// Validate validates an AlertRule
func (r *AlertRule) Validate() error {
	if r.ID == "" {
		return ErrInvalidRuleID
	}
	if r.VolatilityThreshold == nil && r.PerformanceThreshold == nil {
		return ErrNoThresholds
	}
	if r.VolatilityThreshold != nil && *r.VolatilityThreshold < 0 {
		return ErrInvalidThreshold
	}
	if r.PerformanceThreshold != nil && *r.PerformanceThreshold < 0 {
		return ErrInvalidThreshold
	}
	return nil
}

// AlertEvent records one rule firing on one date. Events are produced
// transiently by the evaluator and are not persisted.
type AlertEvent struct {
	ID                     string    `json:"id"`
	Date                   time.Time `json:"date"`
	Rule                   AlertRule `json:"rule"`
	ObservedVolatility     *float64  `json:"observed_volatility,omitempty"`
	ObservedPerformancePct *float64  `json:"observed_performance_pct,omitempty"`
}

// SeriesRow is one row of the tabular output consumed by the rendering
// and export collaborators. Absent metrics stay nil (JSON null), never 0.
type SeriesRow struct {
	Date           time.Time `json:"date"`
	Open           float64   `json:"open"`
	High           float64   `json:"high"`
	Low            float64   `json:"low"`
	Close          float64   `json:"close"`
	Volume         float64   `json:"volume"`
	Volatility     *float64  `json:"volatility"`
	MA5            *float64  `json:"ma5"`
	MA10           *float64  `json:"ma10"`
	RSI14          *float64  `json:"rsi14"`
	BenchmarkClose *float64  `json:"benchmark_close,omitempty"`
}

// DaySnapshot is the per-date lookup used for rendering a single cell
type DaySnapshot struct {
	Bar    *Bar           `json:"bar"`
	Metric *RollingMetric `json:"metric"`
}

// PriceLevel is one price/quantity pair of an order book side
type PriceLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// OrderBook is a depth snapshot for the sibling order-book display
type OrderBook struct {
	Symbol string       `json:"symbol"`
	Bids   []PriceLevel `json:"bids"`
	Asks   []PriceLevel `json:"asks"`
}

// IntradayTick is one 15-minute intraday k-line for the zoomed day view
type IntradayTick struct {
	Time   time.Time `json:"time"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Volume float64   `json:"volume"`
}

// Float is a convenience constructor for optional float fields
func Float(v float64) *float64 {
	return &v
}
