package marketdata

import (
	"context"
	"time"

	"github.com/okamel/market-seasonality/internal/models"
)

// Source defines the interface for daily market data providers.
// The Bar Store loads through it; the order book and intraday calls
// serve the sibling displays driven by the same symbol selection.
type Source interface {
	// GetDailyBars fetches daily bars for the symbol between start and end
	// (inclusive calendar days, UTC). Malformed upstream records are
	// dropped per-record; a transport or non-2xx failure returns an error
	// and no bars.
	GetDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error)

	// GetOrderBookSnapshot fetches a depth snapshot for the symbol
	GetOrderBookSnapshot(ctx context.Context, symbol string, depth int) (*models.OrderBook, error)

	// GetIntraday fetches the 15-minute k-lines for a single UTC day
	GetIntraday(ctx context.Context, symbol string, day time.Time) ([]models.IntradayTick, error)

	// Name returns the name of the source (e.g. "binance", "mock")
	Name() string
}
