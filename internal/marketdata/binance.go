package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/okamel/market-seasonality/internal/config"
	"github.com/okamel/market-seasonality/internal/models"
	"github.com/okamel/market-seasonality/pkg/logger"
)

const (
	klinesPath = "/api/v3/klines"
	depthPath  = "/api/v3/depth"
)

// BinanceSource fetches market data from the Binance REST API
type BinanceSource struct {
	client *resty.Client
}

// NewBinanceSource creates a new Binance source from configuration
func NewBinanceSource(cfg config.BinanceConfig) *BinanceSource {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.RequestTimeout).
		SetRetryCount(cfg.RetryCount).
		SetHeader("Accept", "application/json")

	return &BinanceSource{client: client}
}

// Name returns the source name
func (s *BinanceSource) Name() string {
	return "binance"
}

// GetDailyBars fetches 1d k-lines for the symbol between start and end.
// Binance returns positional arrays: [0] open time ms, [1] open, [2] high,
// [3] low, [4] close, [5] volume. A record failing required-field
// validation is dropped for that date only and the load continues.
func (s *BinanceSource) GetDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	symbol = strings.ToUpper(symbol)
	dayStart := models.Day(start)
	dayEnd := models.Day(end).Add(24*time.Hour - time.Millisecond)

	raw, err := s.fetchKlines(ctx, symbol, "1d", dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	bars := make([]models.Bar, 0, len(raw))
	dropped := 0
	for _, record := range raw {
		bar, err := parseKline(symbol, record)
		if err != nil {
			dropped++
			logger.Warn("Dropping malformed k-line record",
				logger.String("symbol", symbol),
				logger.ErrorField(err),
			)
			continue
		}
		bars = append(bars, *bar)
	}

	if dropped > 0 {
		logger.DroppedRecordsTotal.WithLabelValues(symbol).Add(float64(dropped))
	}

	return bars, nil
}

// GetIntraday fetches the 15m k-lines for a single UTC day
func (s *BinanceSource) GetIntraday(ctx context.Context, symbol string, day time.Time) ([]models.IntradayTick, error) {
	symbol = strings.ToUpper(symbol)
	dayStart := models.Day(day)
	dayEnd := dayStart.Add(24*time.Hour - time.Millisecond)

	raw, err := s.fetchKlines(ctx, symbol, "15m", dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	ticks := make([]models.IntradayTick, 0, len(raw))
	for _, record := range raw {
		if len(record) < 6 {
			continue
		}
		openTime, err := klineTime(record[0])
		if err != nil {
			continue
		}
		high, errH := klineFloat(record[2])
		low, errL := klineFloat(record[3])
		volume, errV := klineFloat(record[5])
		if errH != nil || errL != nil || errV != nil {
			continue
		}
		ticks = append(ticks, models.IntradayTick{
			Time:   openTime,
			High:   high,
			Low:    low,
			Volume: volume,
		})
	}

	return ticks, nil
}

// GetOrderBookSnapshot fetches a depth snapshot for the symbol
func (s *BinanceSource) GetOrderBookSnapshot(ctx context.Context, symbol string, depth int) (*models.OrderBook, error) {
	symbol = strings.ToUpper(symbol)

	start := time.Now()
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": symbol,
			"limit":  strconv.Itoa(depth),
		}).
		Get(depthPath)
	s.observeFetch(depthPath, start, err, resp)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrFetchFailure, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: depth returned status %d", models.ErrFetchFailure, resp.StatusCode())
	}

	var payload struct {
		Bids [][2]string `json:"bids"`
		Asks [][2]string `json:"asks"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrFetchFailure, err)
	}

	book := &models.OrderBook{
		Symbol: symbol,
		Bids:   parseLevels(payload.Bids),
		Asks:   parseLevels(payload.Asks),
	}
	return book, nil
}

// fetchKlines performs the raw k-line request and decodes the positional arrays
func (s *BinanceSource) fetchKlines(ctx context.Context, symbol, interval string, start, end time.Time) ([][]interface{}, error) {
	reqStart := time.Now()
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":    symbol,
			"interval":  interval,
			"startTime": strconv.FormatInt(start.UnixMilli(), 10),
			"endTime":   strconv.FormatInt(end.UnixMilli(), 10),
		}).
		Get(klinesPath)
	s.observeFetch(klinesPath, reqStart, err, resp)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrFetchFailure, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: klines returned status %d", models.ErrFetchFailure, resp.StatusCode())
	}

	var raw [][]interface{}
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrFetchFailure, err)
	}
	return raw, nil
}

func (s *BinanceSource) observeFetch(endpoint string, start time.Time, err error, resp *resty.Response) {
	outcome := "ok"
	if err != nil || (resp != nil && resp.IsError()) {
		outcome = "error"
	}
	logger.FetchDuration.WithLabelValues(endpoint, outcome).Observe(time.Since(start).Seconds())
}

// parseKline maps one positional k-line record into a Bar
func parseKline(symbol string, record []interface{}) (*models.Bar, error) {
	if len(record) < 6 {
		return nil, fmt.Errorf("%w: got %d fields, want at least 6", models.ErrMalformedRecord, len(record))
	}

	openTime, err := klineTime(record[0])
	if err != nil {
		return nil, fmt.Errorf("%w: open time: %v", models.ErrMalformedRecord, err)
	}

	open, err := klineFloat(record[1])
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", models.ErrMalformedRecord, err)
	}
	high, err := klineFloat(record[2])
	if err != nil {
		return nil, fmt.Errorf("%w: high: %v", models.ErrMalformedRecord, err)
	}
	low, err := klineFloat(record[3])
	if err != nil {
		return nil, fmt.Errorf("%w: low: %v", models.ErrMalformedRecord, err)
	}
	closePrice, err := klineFloat(record[4])
	if err != nil {
		return nil, fmt.Errorf("%w: close: %v", models.ErrMalformedRecord, err)
	}
	volume, err := klineFloat(record[5])
	if err != nil {
		return nil, fmt.Errorf("%w: volume: %v", models.ErrMalformedRecord, err)
	}

	bar := &models.Bar{
		Symbol: symbol,
		Date:   models.Day(openTime),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}
	if err := bar.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedRecord, err)
	}
	return bar, nil
}

// klineTime decodes a millisecond epoch field (JSON number)
func klineTime(v interface{}) (time.Time, error) {
	ms, ok := v.(float64)
	if !ok {
		return time.Time{}, fmt.Errorf("unexpected time type %T", v)
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}

// klineFloat decodes a price/volume field; Binance sends them as strings
func klineFloat(v interface{}) (float64, error) {
	switch val := v.(type) {
	case string:
		return strconv.ParseFloat(val, 64)
	case float64:
		return val, nil
	default:
		return 0, fmt.Errorf("unexpected numeric type %T", v)
	}
}

func parseLevels(raw [][2]string) []models.PriceLevel {
	levels := make([]models.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		price, errP := strconv.ParseFloat(pair[0], 64)
		qty, errQ := strconv.ParseFloat(pair[1], 64)
		if errP != nil || errQ != nil {
			continue
		}
		levels = append(levels, models.PriceLevel{Price: price, Quantity: qty})
	}
	return levels
}
