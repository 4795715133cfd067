package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/okamel/market-seasonality/internal/calendar"
	"github.com/okamel/market-seasonality/internal/config"
	"github.com/okamel/market-seasonality/internal/models"
	"github.com/okamel/market-seasonality/internal/session"
	"github.com/okamel/market-seasonality/pkg/logger"
)

// Handler serves the engine's output to the dashboard
type Handler struct {
	session *session.Session
	cfg     *config.Config
}

// NewHandler creates a handler over the session
func NewHandler(sess *session.Session, cfg *config.Config) *Handler {
	return &Handler{session: sess, cfg: cfg}
}

// refreshRequest is the body of POST /api/v1/session
type refreshRequest struct {
	Symbol      string `json:"symbol"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Granularity string `json:"granularity"`
}

// GetSession handles GET /api/v1/session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.session.State())
}

// RefreshSession handles POST /api/v1/session. It rebuilds the bar
// store for the requested symbol/range/granularity and recomputes all
// derived data.
func (h *Handler) RefreshSession(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	start, err := parseDay(req.Start)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid start date, want YYYY-MM-DD")
		return
	}
	end, err := parseDay(req.End)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid end date, want YYYY-MM-DD")
		return
	}

	granularity := calendar.Monthly
	if req.Granularity != "" {
		granularity, err = calendar.ParseGranularity(req.Granularity)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	refreshErr := h.session.Refresh(r.Context(), req.Symbol, start, end, granularity)
	switch {
	case refreshErr == nil:
		respondWithJSON(w, http.StatusOK, h.session.State())
	case errors.Is(refreshErr, models.ErrStaleLoad):
		respondWithError(w, http.StatusConflict, "Superseded by a newer refresh")
	case errors.Is(refreshErr, models.ErrInvalidSymbol), errors.Is(refreshErr, models.ErrInvalidRange):
		respondWithError(w, http.StatusBadRequest, refreshErr.Error())
	case errors.Is(refreshErr, models.ErrDuplicateDate):
		respondWithError(w, http.StatusUnprocessableEntity, refreshErr.Error())
	default:
		// Fetch failure: the session now presents an empty range and the
		// client may retry by re-posting the same refresh.
		respondWithError(w, http.StatusBadGateway, refreshErr.Error())
	}
}

// GetSeries handles GET /api/v1/series. With ?benchmark=SYMBOL the rows
// carry the index-aligned benchmark close.
func (h *Handler) GetSeries(w http.ResponseWriter, r *http.Request) {
	benchmark := r.URL.Query().Get("benchmark")
	if benchmark == "" {
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"rows": h.session.Rows(),
		})
		return
	}

	rows, err := h.session.CompareBenchmark(r.Context(), benchmark)
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"rows":      rows,
			"benchmark": benchmark,
		})
	case errors.Is(err, models.ErrNoSession):
		respondWithError(w, http.StatusConflict, "No data loaded")
	case errors.Is(err, models.ErrAlignmentMismatch):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		respondWithError(w, http.StatusBadGateway, err.Error())
	}
}

// GetDay handles GET /api/v1/day/{date}
func (h *Handler) GetDay(w http.ResponseWriter, r *http.Request) {
	day, err := parseDay(mux.Vars(r)["date"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid date, want YYYY-MM-DD")
		return
	}
	respondWithJSON(w, http.StatusOK, h.session.Snapshot(day))
}

// GetIntraday handles GET /api/v1/day/{date}/intraday
func (h *Handler) GetIntraday(w http.ResponseWriter, r *http.Request) {
	day, err := parseDay(mux.Vars(r)["date"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid date, want YYYY-MM-DD")
		return
	}

	symbol := h.session.State().Symbol
	if symbol == "" {
		respondWithError(w, http.StatusConflict, "No data loaded")
		return
	}

	ticks, err := h.session.Source().GetIntraday(r.Context(), symbol, day)
	if err != nil {
		respondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"date":   day.Format(models.ISODate),
		"ticks":  ticks,
	})
}

// GetWeeks handles GET /api/v1/calendar/weeks
func (h *Handler) GetWeeks(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"weeks": h.session.Weeks(),
	})
}

// GetMonths handles GET /api/v1/calendar/months
func (h *Handler) GetMonths(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"months": h.session.Months(),
	})
}

// comparePeriodRequest is the body of POST /api/v1/compare/period
type comparePeriodRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ComparePeriod handles POST /api/v1/compare/period
func (h *Handler) ComparePeriod(w http.ResponseWriter, r *http.Request) {
	var req comparePeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	start, err := parseDay(req.Start)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid start date, want YYYY-MM-DD")
		return
	}
	end, err := parseDay(req.End)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid end date, want YYYY-MM-DD")
		return
	}

	result, err := h.session.ComparePeriod(r.Context(), start, end)
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusOK, result)
	case errors.Is(err, models.ErrNoSession):
		respondWithError(w, http.StatusConflict, "No data loaded")
	default:
		respondWithError(w, http.StatusBadGateway, err.Error())
	}
}

// ListRules handles GET /api/v1/alerts/rules
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules := h.session.Rules().All()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	})
}

// CreateRule handles POST /api/v1/alerts/rules. Adding a rule
// re-evaluates the history already loaded.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var rule models.AlertRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.session.Rules().Add(rule)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.session.ReevaluateAlerts()

	logger.Info("Alert rule created",
		logger.String("rule_id", created.ID),
	)
	respondWithJSON(w, http.StatusCreated, created)
}

// DeleteRule handles DELETE /api/v1/alerts/rules/{id}
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.session.Rules().Delete(id); err != nil {
		respondWithError(w, http.StatusNotFound, "Rule not found")
		return
	}
	h.session.ReevaluateAlerts()

	logger.Info("Alert rule deleted",
		logger.String("rule_id", id),
	)
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"deleted": id})
}

// ListEvents handles GET /api/v1/alerts/events
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events := h.session.Events()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// GetOrderBook handles GET /api/v1/orderbook
func (h *Handler) GetOrderBook(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		symbol = h.session.State().Symbol
	}
	if symbol == "" {
		respondWithError(w, http.StatusBadRequest, "Symbol required")
		return
	}

	depth := h.cfg.Engine.OrderBookDepth
	if raw := r.URL.Query().Get("depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid depth")
			return
		}
		depth = parsed
	}

	book, err := h.session.Source().GetOrderBookSnapshot(r.Context(), symbol, depth)
	if err != nil {
		respondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, book)
}

// ListSymbols handles GET /api/v1/symbols
func (h *Handler) ListSymbols(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"symbols":   h.cfg.Binance.Symbols,
		"benchmark": h.cfg.Engine.BenchmarkSymbol,
	})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"loaded": h.session.State().Loaded,
	})
}

// parseDay parses an ISO calendar date into UTC midnight
func parseDay(s string) (time.Time, error) {
	t, err := time.Parse(models.ISODate, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return models.Day(t), nil
}

// respondWithJSON writes a JSON response
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal response", logger.ErrorField(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

// respondWithError writes a JSON error response
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
