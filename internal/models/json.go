package models

import (
	"encoding/json"
	"math"
	"time"
)

// Summaries keep NaN internally for "no data" buckets; on the wire NaN
// becomes null so consumers still see the distinction (null, not 0) and
// encoding/json does not reject the value.

func nanToNil(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// MarshalJSON renders NaN summary fields as null
func (w WeekSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		WeekStart     time.Time `json:"week_start"`
		AvgVolatility *float64  `json:"avg_volatility"`
		TotalVolume   *float64  `json:"total_volume"`
		AvgClose      *float64  `json:"avg_close"`
		EligibleDays  int       `json:"eligible_days"`
	}{
		WeekStart:     w.WeekStart,
		AvgVolatility: nanToNil(w.AvgVolatility),
		TotalVolume:   nanToNil(w.TotalVolume),
		AvgClose:      nanToNil(w.AvgClose),
		EligibleDays:  w.EligibleDays,
	})
}

// MarshalJSON renders NaN summary fields as null
func (m MonthSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Year           int        `json:"year"`
		Month          time.Month `json:"month"`
		AvgVolatility  *float64   `json:"avg_volatility"`
		TotalVolume    *float64   `json:"total_volume"`
		AvgClose       *float64   `json:"avg_close"`
		PerformancePct *float64   `json:"performance_pct"`
		EligibleDays   int        `json:"eligible_days"`
	}{
		Year:           m.Year,
		Month:          m.Month,
		AvgVolatility:  nanToNil(m.AvgVolatility),
		TotalVolume:    nanToNil(m.TotalVolume),
		AvgClose:       nanToNil(m.AvgClose),
		PerformancePct: nanToNil(m.PerformancePct),
		EligibleDays:   m.EligibleDays,
	})
}
