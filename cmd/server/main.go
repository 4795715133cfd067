package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okamel/market-seasonality/internal/api"
	"github.com/okamel/market-seasonality/internal/config"
	"github.com/okamel/market-seasonality/internal/marketdata"
	"github.com/okamel/market-seasonality/internal/metrics"
	"github.com/okamel/market-seasonality/internal/session"
	"github.com/okamel/market-seasonality/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.Environment); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting market seasonality API",
		logger.Int("port", cfg.Server.Port),
		logger.Int("health_port", cfg.Server.HealthCheckPort),
		logger.String("benchmark", cfg.Engine.BenchmarkSymbol),
	)

	// Market data source
	source := marketdata.NewBinanceSource(cfg.Binance)

	// Optional Redis row cache; in-memory fallback keeps the same
	// behavior without the external dependency
	var cache metrics.RowCache
	if cfg.Cache.Enabled {
		redisCache, err := metrics.NewRedisRowCache(cfg.Cache)
		if err != nil {
			logger.Warn("Redis row cache unavailable, using in-memory cache",
				logger.ErrorField(err),
			)
			cache = metrics.NewMemoryRowCache(cfg.Cache.TTL)
		} else {
			defer redisCache.Close()
			cache = redisCache
		}
	} else {
		cache = metrics.NewMemoryRowCache(cfg.Cache.TTL)
	}

	// Engine session
	calc := metrics.NewCalculator(
		cfg.Engine.VolatilityWindow,
		cfg.Engine.MAShortWindow,
		cfg.Engine.MALongWindow,
		cfg.Engine.RSIPeriod,
	)
	sess := session.New(source, calc, cache)

	// HTTP API
	handler := api.NewHandler(sess, cfg)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Health check endpoint on its own port
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HealthCheckPort),
		Handler: healthMux,
	}

	go func() {
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Health server failed", logger.ErrorField(err))
		}
	}()

	go func() {
		logger.Info("API listening", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("API server failed", logger.ErrorField(err))
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("API shutdown failed", logger.ErrorField(err))
	}
	if err := healthServer.Shutdown(ctx); err != nil {
		logger.Error("Health shutdown failed", logger.ErrorField(err))
	}
}
