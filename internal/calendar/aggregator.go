package calendar

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/okamel/market-seasonality/internal/models"
)

// Granularity selects the calendar view the aggregator rolls up to
type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// ParseGranularity parses a view granularity from its string form
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(strings.ToLower(s)) {
	case Daily:
		return Daily, nil
	case Weekly:
		return Weekly, nil
	case Monthly:
		return Monthly, nil
	default:
		return "", fmt.Errorf("unknown granularity %q", s)
	}
}

// WeekStart returns the Sunday starting the calendar week containing t
func WeekStart(t time.Time) time.Time {
	day := models.Day(t)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// WeekSummaries rolls the bars up into Sunday-start calendar weeks
// covering [rangeStart, rangeEnd]. Eligible days are days inside both
// the week and the range that have a bar present. A missing volatility
// counts as 0 when averaging, matching the unweighted policy used by
// every summary. A week with zero eligible days gets NaN numeric fields
// so "no data" stays distinguishable from zero.
func WeekSummaries(bars []models.Bar, metrics []models.RollingMetric, rangeStart, rangeEnd time.Time) []models.WeekSummary {
	rangeStart = models.Day(rangeStart)
	rangeEnd = models.Day(rangeEnd)
	if rangeEnd.Before(rangeStart) {
		return nil
	}

	barsByDate, volByDate := index(bars, metrics)

	var summaries []models.WeekSummary
	for ws := WeekStart(rangeStart); !ws.After(rangeEnd); ws = ws.AddDate(0, 0, 7) {
		summary := models.WeekSummary{WeekStart: ws}

		var sumVol, sumVolume, sumClose float64
		for i := 0; i < 7; i++ {
			day := ws.AddDate(0, 0, i)
			if day.Before(rangeStart) || day.After(rangeEnd) {
				continue
			}
			key := day.Format(models.ISODate)
			bar, ok := barsByDate[key]
			if !ok {
				continue
			}
			summary.EligibleDays++
			sumVol += volByDate[key]
			sumVolume += bar.Volume
			sumClose += bar.Close
		}

		if summary.EligibleDays == 0 {
			summary.AvgVolatility = math.NaN()
			summary.TotalVolume = math.NaN()
			summary.AvgClose = math.NaN()
		} else {
			n := float64(summary.EligibleDays)
			summary.AvgVolatility = sumVol / n
			summary.TotalVolume = sumVolume
			summary.AvgClose = sumClose / n
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// MonthSummaries rolls the bars up into calendar months covering
// [rangeStart, rangeEnd]. PerformancePct spans the first eligible day's
// open to the last eligible day's close within the month, regardless of
// how many missing-data days sit between them.
func MonthSummaries(bars []models.Bar, metrics []models.RollingMetric, rangeStart, rangeEnd time.Time) []models.MonthSummary {
	rangeStart = models.Day(rangeStart)
	rangeEnd = models.Day(rangeEnd)
	if rangeEnd.Before(rangeStart) {
		return nil
	}

	barsByDate, volByDate := index(bars, metrics)

	var summaries []models.MonthSummary
	monthStart := time.Date(rangeStart.Year(), rangeStart.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !monthStart.After(rangeEnd) {
		summary := models.MonthSummary{
			Year:  monthStart.Year(),
			Month: monthStart.Month(),
		}

		var sumVol, sumVolume, sumClose float64
		var first, last *models.Bar
		nextMonth := monthStart.AddDate(0, 1, 0)
		for day := monthStart; day.Before(nextMonth); day = day.AddDate(0, 0, 1) {
			if day.Before(rangeStart) || day.After(rangeEnd) {
				continue
			}
			key := day.Format(models.ISODate)
			bar, ok := barsByDate[key]
			if !ok {
				continue
			}
			summary.EligibleDays++
			sumVol += volByDate[key]
			sumVolume += bar.Volume
			sumClose += bar.Close
			if first == nil {
				b := bar
				first = &b
			}
			b := bar
			last = &b
		}

		if summary.EligibleDays == 0 {
			summary.AvgVolatility = math.NaN()
			summary.TotalVolume = math.NaN()
			summary.AvgClose = math.NaN()
			summary.PerformancePct = math.NaN()
		} else {
			n := float64(summary.EligibleDays)
			summary.AvgVolatility = sumVol / n
			summary.TotalVolume = sumVolume
			summary.AvgClose = sumClose / n
			summary.PerformancePct = (last.Close - first.Open) / first.Open * 100
		}
		summaries = append(summaries, summary)
		monthStart = nextMonth
	}
	return summaries
}

// index builds the per-date bar and volatility lookups shared by both
// rollups. Absent volatility maps to 0 for averaging purposes only.
func index(bars []models.Bar, metrics []models.RollingMetric) (map[string]models.Bar, map[string]float64) {
	barsByDate := make(map[string]models.Bar, len(bars))
	for _, bar := range bars {
		barsByDate[bar.Date.Format(models.ISODate)] = bar
	}
	volByDate := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		if m.Volatility != nil {
			volByDate[m.Date.Format(models.ISODate)] = *m.Volatility
		}
	}
	return barsByDate, volByDate
}
