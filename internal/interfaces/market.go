// Package interfaces provides service interfaces for dependency injection.
package interfaces

import (
	"context"

	"github.com/ternarybob/aestimo/internal/models"
)

// MarketDataService fetches market data for analysis. Implementations
// consult the snapshot cache before hitting the vendor API.
type MarketDataService interface {
	// GetStockName returns the display name for a stock, falling back to
	// the code when the lookup fails.
	GetStockName(ctx context.Context, code string) string

	// GetRealTimeQuote returns the latest delayed quote for the stock.
	GetRealTimeQuote(ctx context.Context, code string) (*models.Quote, error)

	// GetPriceSeries returns daily price history covering periodDays.
	GetPriceSeries(ctx context.Context, code string, periodDays int) (models.PriceSeries, error)

	// GetFundamentals returns fundamental data for the stock.
	GetFundamentals(ctx context.Context, code string) (*models.Fundamentals, error)

	// GetNews returns recent news articles for the stock.
	GetNews(ctx context.Context, code string, limit int) ([]models.NewsItem, error)
}

// SnapshotStore caches fetched market data with per-kind TTLs.
type SnapshotStore interface {
	// Get loads a cached value into dest. Returns false when the entry is
	// missing or older than the TTL for its kind.
	Get(kind, key string, dest any) bool

	// Put stores a value under kind and key.
	Put(kind, key string, value any) error

	// PurgeStale removes entries older than their kind's TTL. Returns the
	// number of entries removed.
	PurgeStale() (int, error)

	// Close releases the underlying store.
	Close() error
}
