package compare

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/okamel/market-seasonality/internal/metrics"
	"github.com/okamel/market-seasonality/internal/models"
)

// SeriesStats are the derived statistics of one bar series. They are
// the only values meaningfully comparable across two different date
// ranges. Fields are NaN for an empty series.
type SeriesStats struct {
	Days           int     `json:"days"`
	AvgClose       float64 `json:"avg_close"`
	TotalVolume    float64 `json:"total_volume"`
	AvgVolatility  float64 `json:"avg_volatility"`
	PerformancePct float64 `json:"performance_pct"`
}

// MarshalJSON renders NaN statistics (empty series) as null
func (s SeriesStats) MarshalJSON() ([]byte, error) {
	nanToNil := func(v float64) *float64 {
		if math.IsNaN(v) {
			return nil
		}
		return &v
	}
	return json.Marshal(struct {
		Days           int      `json:"days"`
		AvgClose       *float64 `json:"avg_close"`
		TotalVolume    *float64 `json:"total_volume"`
		AvgVolatility  *float64 `json:"avg_volatility"`
		PerformancePct *float64 `json:"performance_pct"`
	}{
		Days:           s.Days,
		AvgClose:       nanToNil(s.AvgClose),
		TotalVolume:    nanToNil(s.TotalVolume),
		AvgVolatility:  nanToNil(s.AvgVolatility),
		PerformancePct: nanToNil(s.PerformancePct),
	})
}

// PeriodComparison pairs a primary series with a user-selected
// secondary period of the same symbol. The two series keep their own
// date axes; no alignment between them is attempted.
type PeriodComparison struct {
	Primary        []models.SeriesRow `json:"primary"`
	Secondary      []models.SeriesRow `json:"secondary"`
	PrimaryStats   SeriesStats        `json:"primary_stats"`
	SecondaryStats SeriesStats        `json:"secondary_stats"`
}

// AttachBenchmark joins a benchmark series onto the primary rows
// strictly by index position. The caller must supply equal-length,
// same-date responses; a length mismatch is a data error for the
// comparison (the primary rows themselves stay valid).
func AttachBenchmark(rows []models.SeriesRow, benchmark []models.Bar) ([]models.SeriesRow, error) {
	if len(rows) != len(benchmark) {
		return nil, fmt.Errorf("%w: primary has %d bars, benchmark has %d",
			models.ErrAlignmentMismatch, len(rows), len(benchmark))
	}

	out := make([]models.SeriesRow, len(rows))
	copy(out, rows)
	for i := range out {
		out[i].BenchmarkClose = models.Float(benchmark[i].Close)
	}
	return out, nil
}

// ComparePeriods builds the independent-axis comparison of a primary
// series against a secondary period, computing each side's rows and
// derived statistics with the given calculator.
func ComparePeriods(calc *metrics.Calculator, primary, secondary []models.Bar) PeriodComparison {
	primaryMetrics := calc.Compute(primary)
	secondaryMetrics := calc.Compute(secondary)

	return PeriodComparison{
		Primary:        metrics.Rows(primary, primaryMetrics),
		Secondary:      metrics.Rows(secondary, secondaryMetrics),
		PrimaryStats:   Stats(primary, primaryMetrics),
		SecondaryStats: Stats(secondary, secondaryMetrics),
	}
}

// Stats derives the summary statistics of one series. Absent
// volatility counts as 0 when averaging, the same unweighted policy
// the calendar rollups use.
func Stats(bars []models.Bar, seriesMetrics []models.RollingMetric) SeriesStats {
	stats := SeriesStats{Days: len(bars)}
	if len(bars) == 0 {
		stats.AvgClose = math.NaN()
		stats.TotalVolume = math.NaN()
		stats.AvgVolatility = math.NaN()
		stats.PerformancePct = math.NaN()
		return stats
	}

	var sumClose, sumVolume, sumVol float64
	for i, bar := range bars {
		sumClose += bar.Close
		sumVolume += bar.Volume
		if i < len(seriesMetrics) && seriesMetrics[i].Volatility != nil {
			sumVol += *seriesMetrics[i].Volatility
		}
	}

	n := float64(len(bars))
	stats.AvgClose = sumClose / n
	stats.TotalVolume = sumVolume
	stats.AvgVolatility = sumVol / n
	stats.PerformancePct = (bars[len(bars)-1].Close - bars[0].Open) / bars[0].Open * 100
	return stats
}
