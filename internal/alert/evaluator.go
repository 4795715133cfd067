package alert

import (
	"math"

	"github.com/google/uuid"

	"github.com/okamel/market-seasonality/internal/models"
	"github.com/okamel/market-seasonality/pkg/logger"
)

// Evaluator scans computed metrics against the session's alert rules.
// Evaluation is pure and reentrant: it runs over the full loaded range
// on every refresh, so changing thresholds re-evaluates history that is
// already loaded. Events are emitted for the caller to present, not
// stored.
type Evaluator struct{}

// NewEvaluator creates an evaluator
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate walks every bar date against every rule. A rule fires when
// its volatility threshold is set and the date's volatility exceeds it,
// or when its performance threshold is set and the absolute single-day
// performance exceeds it. Each rule firing on a date is a distinct
// event; a date with absent volatility cannot fire a volatility rule.
func (e *Evaluator) Evaluate(bars []models.Bar, seriesMetrics []models.RollingMetric, rules []models.AlertRule) []models.AlertEvent {
	var events []models.AlertEvent
	for i, bar := range bars {
		var volatility *float64
		if i < len(seriesMetrics) {
			volatility = seriesMetrics[i].Volatility
		}
		perf := bar.PerformancePct()

		for _, rule := range rules {
			fired := false
			event := models.AlertEvent{
				Date: bar.Date,
				Rule: rule,
			}

			if rule.VolatilityThreshold != nil && volatility != nil && *volatility > *rule.VolatilityThreshold {
				fired = true
				event.ObservedVolatility = volatility
			}
			if rule.PerformanceThreshold != nil && math.Abs(perf) > *rule.PerformanceThreshold {
				fired = true
				event.ObservedPerformancePct = models.Float(perf)
			}

			if fired {
				event.ID = uuid.New().String()
				events = append(events, event)
			}
		}
	}

	if len(events) > 0 {
		logger.AlertEventsTotal.Add(float64(len(events)))
	}
	return events
}
