package metrics

import (
	"math"
	"time"

	"github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"

	"github.com/okamel/market-seasonality/internal/models"
)

// Calculator computes the per-day rolling metrics of a bar series.
// All computation is pure: the same bars always produce bit-identical
// metrics, and every metric recomputes fully on each call.
type Calculator struct {
	volWindow int
	maShort   int
	maLong    int
	rsiPeriod int
}

// NewCalculator creates a calculator with the given windows
// (volatility window, short/long moving averages, RSI period).
func NewCalculator(volWindow, maShort, maLong, rsiPeriod int) *Calculator {
	return &Calculator{
		volWindow: volWindow,
		maShort:   maShort,
		maLong:    maLong,
		rsiPeriod: rsiPeriod,
	}
}

// NewDefaultCalculator creates a calculator with the dashboard's
// standard windows: volatility(5), MA5/MA10, RSI(14).
func NewDefaultCalculator() *Calculator {
	return NewCalculator(5, 5, 10, 14)
}

// Compute derives one RollingMetric per bar. A metric field is nil
// whenever its lookback window is not fully covered by contiguous bars
// ending at that date; insufficient history is a defined absent state,
// never an error and never zero.
func (c *Calculator) Compute(bars []models.Bar) []models.RollingMetric {
	out := make([]models.RollingMetric, len(bars))
	for i := range bars {
		out[i].Date = bars[i].Date
	}
	if len(bars) == 0 {
		return out
	}

	c.computeVolatility(bars, out)
	c.computeMovingAverages(bars, out)
	c.computeRSI(bars, out)
	return out
}

// computeVolatility fills the trailing-window population standard
// deviation of simple daily returns (close-open)/open.
func (c *Calculator) computeVolatility(bars []models.Bar, out []models.RollingMetric) {
	returns := make([]float64, len(bars))
	for i, bar := range bars {
		returns[i] = (bar.Close - bar.Open) / bar.Open
	}

	for i := c.volWindow - 1; i < len(bars); i++ {
		window := returns[i-c.volWindow+1 : i+1]

		var sum float64
		for _, r := range window {
			sum += r
		}
		mean := sum / float64(len(window))

		var sq float64
		for _, r := range window {
			d := r - mean
			sq += d * d
		}
		out[i].Volatility = models.Float(math.Sqrt(sq / float64(len(window))))
	}
}

// computeMovingAverages fills MA5/MA10 through techan SMA indicators
// over the close-price series, gated by the full-window rule.
func (c *Calculator) computeMovingAverages(bars []models.Bar, out []models.RollingMetric) {
	series := techan.NewTimeSeries()
	for _, bar := range bars {
		candle := techan.NewCandle(techan.NewTimePeriod(bar.Date, 24*time.Hour))
		candle.OpenPrice = big.NewDecimal(bar.Open)
		candle.MaxPrice = big.NewDecimal(bar.High)
		candle.MinPrice = big.NewDecimal(bar.Low)
		candle.ClosePrice = big.NewDecimal(bar.Close)
		candle.Volume = big.NewDecimal(bar.Volume)
		series.AddCandle(candle)
	}

	closePrices := techan.NewClosePriceIndicator(series)
	smaShort := techan.NewSimpleMovingAverage(closePrices, c.maShort)
	smaLong := techan.NewSimpleMovingAverage(closePrices, c.maLong)

	for i := range bars {
		if i >= c.maShort-1 {
			out[i].MA5 = models.Float(smaShort.Calculate(i).Float())
		}
		if i >= c.maLong-1 {
			out[i].MA10 = models.Float(smaLong.Calculate(i).Float())
		}
	}
}

// computeRSI fills the RSI over day-over-day close differences using a
// simple (non-Wilder) average of the trailing gains and losses. When
// the average loss is zero, RS is taken as 100 rather than infinite.
func (c *Calculator) computeRSI(bars []models.Bar, out []models.RollingMetric) {
	if len(bars) < 2 {
		return
	}

	gains := make([]float64, len(bars)-1)
	losses := make([]float64, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		diff := bars[i].Close - bars[i-1].Close
		if diff > 0 {
			gains[i-1] = diff
		} else {
			losses[i-1] = -diff
		}
	}

	period := float64(c.rsiPeriod)
	for i := c.rsiPeriod; i < len(bars); i++ {
		var sumGain, sumLoss float64
		for k := i - c.rsiPeriod; k < i; k++ {
			sumGain += gains[k]
			sumLoss += losses[k]
		}
		avgGain := sumGain / period
		avgLoss := sumLoss / period

		rs := 100.0
		if avgLoss != 0 {
			rs = avgGain / avgLoss
		}
		out[i].RSI14 = models.Float(100 - 100/(1+rs))
	}
}

// Rows joins bars and their metrics into the tabular rows consumed by
// rendering and export collaborators. Bars and metrics must come from
// the same computation (equal length, same dates).
func Rows(bars []models.Bar, metrics []models.RollingMetric) []models.SeriesRow {
	rows := make([]models.SeriesRow, 0, len(bars))
	for i, bar := range bars {
		row := models.SeriesRow{
			Date:   bar.Date,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		}
		if i < len(metrics) {
			row.Volatility = metrics[i].Volatility
			row.MA5 = metrics[i].MA5
			row.MA10 = metrics[i].MA10
			row.RSI14 = metrics[i].RSI14
		}
		rows = append(rows, row)
	}
	return rows
}
