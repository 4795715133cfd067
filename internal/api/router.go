package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the API router with the standard middleware chain.
// JWT auth, when enabled, guards only the mutating endpoints.
func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()

	chain := ChainMiddleware(
		RecoveryMiddleware(),
		CORSMiddleware(),
		LoggingMiddleware(),
		RateLimitMiddleware(h.cfg.Server.RateLimitRPS),
	)
	router.Use(mux.MiddlewareFunc(chain))

	// Preflight requests must match a route for the middleware chain
	// (and its CORS handling) to run
	router.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	protect := func(handler http.HandlerFunc) http.Handler {
		if h.cfg.Server.AuthEnabled {
			return AuthMiddleware(h.cfg.Server.JWTSecret)(handler)
		}
		return handler
	}

	v1 := router.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/session", h.GetSession).Methods(http.MethodGet)
	v1.Handle("/session", protect(h.RefreshSession)).Methods(http.MethodPost)

	v1.HandleFunc("/series", h.GetSeries).Methods(http.MethodGet)
	v1.HandleFunc("/day/{date}", h.GetDay).Methods(http.MethodGet)
	v1.HandleFunc("/day/{date}/intraday", h.GetIntraday).Methods(http.MethodGet)

	v1.HandleFunc("/calendar/weeks", h.GetWeeks).Methods(http.MethodGet)
	v1.HandleFunc("/calendar/months", h.GetMonths).Methods(http.MethodGet)

	v1.HandleFunc("/compare/period", h.ComparePeriod).Methods(http.MethodPost)

	v1.HandleFunc("/alerts/rules", h.ListRules).Methods(http.MethodGet)
	v1.Handle("/alerts/rules", protect(h.CreateRule)).Methods(http.MethodPost)
	v1.Handle("/alerts/rules/{id}", protect(h.DeleteRule)).Methods(http.MethodDelete)
	v1.HandleFunc("/alerts/events", h.ListEvents).Methods(http.MethodGet)

	v1.HandleFunc("/orderbook", h.GetOrderBook).Methods(http.MethodGet)
	v1.HandleFunc("/symbols", h.ListSymbols).Methods(http.MethodGet)

	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return router
}
