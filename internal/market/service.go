package market

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/models"
)

// Snapshot kinds used as cache namespaces.
const (
	KindPrices       = "prices"
	KindFundamentals = "fundamentals"
	KindNews         = "news"
)

// Service fetches market data via the EODHD client, consulting the snapshot
// cache first. Implements interfaces.MarketDataService.
type Service struct {
	client *Client
	cache  interfaces.SnapshotStore
	logger arbor.ILogger
}

// NewService creates the market data service. cache may be nil, in which
// case every call hits the vendor API.
func NewService(client *Client, cache interfaces.SnapshotStore, logger arbor.ILogger) *Service {
	return &Service{
		client: client,
		cache:  cache,
		logger: logger,
	}
}

// GetStockName returns the company name from fundamentals, falling back to
// the code when the lookup fails or returns no name.
func (s *Service) GetStockName(ctx context.Context, code string) string {
	fundamentals, err := s.GetFundamentals(ctx, code)
	if err != nil || fundamentals == nil || fundamentals.Name == "" {
		return code
	}
	return fundamentals.Name
}

// GetRealTimeQuote returns the latest delayed quote for the stock. Quotes
// are never cached.
func (s *Service) GetRealTimeQuote(ctx context.Context, code string) (*models.Quote, error) {
	ticker := common.ParseTicker(code)
	if ticker.Code == "" {
		return nil, fmt.Errorf("invalid stock code %q", code)
	}

	resp, err := s.client.GetRealTimeQuote(ctx, ticker.EODHDSymbol())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote for %s: %w", ticker.EODHDSymbol(), err)
	}

	return &models.Quote{
		Price:         resp.Close,
		Change:        resp.Change,
		ChangePercent: resp.ChangePercent,
		Timestamp:     time.Unix(resp.Timestamp, 0).UTC(),
	}, nil
}

// GetPriceSeries returns daily price history covering periodDays, ascending
// by date.
func (s *Service) GetPriceSeries(ctx context.Context, code string, periodDays int) (models.PriceSeries, error) {
	ticker := common.ParseTicker(code)
	if ticker.Code == "" {
		return nil, fmt.Errorf("invalid stock code %q", code)
	}

	cacheKey := fmt.Sprintf("%s:%d", ticker.TaskKey(), periodDays)
	var cached models.PriceSeries
	if s.cache != nil && s.cache.Get(KindPrices, cacheKey, &cached) {
		s.logger.Debug().Str("code", ticker.String()).Msg("Price series served from cache")
		return cached, nil
	}

	to := time.Now()
	from := to.AddDate(0, 0, -periodDays)

	symbol := ticker.EODHDSymbol()
	eodData, err := s.client.GetEOD(ctx, symbol, WithDateRange(from, to), WithOrder("a"))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price series for %s: %w", symbol, err)
	}
	if len(eodData) == 0 {
		return nil, fmt.Errorf("no price data returned for %s", symbol)
	}

	series := make(models.PriceSeries, 0, len(eodData))
	for _, bar := range eodData {
		series = append(series, models.PricePoint{
			Date:     bar.Date,
			Open:     bar.Open,
			High:     bar.High,
			Low:      bar.Low,
			Close:    bar.Close,
			AdjClose: bar.AdjustedClose,
			Volume:   bar.Volume,
		})
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date)
	})

	if s.cache != nil {
		if err := s.cache.Put(KindPrices, cacheKey, series); err != nil {
			s.logger.Warn().Err(err).Str("code", ticker.String()).Msg("Failed to cache price series")
		}
	}

	return series, nil
}

// GetFundamentals returns fundamental data for the stock.
func (s *Service) GetFundamentals(ctx context.Context, code string) (*models.Fundamentals, error) {
	ticker := common.ParseTicker(code)
	if ticker.Code == "" {
		return nil, fmt.Errorf("invalid stock code %q", code)
	}

	cacheKey := ticker.TaskKey()
	var cached models.Fundamentals
	if s.cache != nil && s.cache.Get(KindFundamentals, cacheKey, &cached) {
		s.logger.Debug().Str("code", ticker.String()).Msg("Fundamentals served from cache")
		return &cached, nil
	}

	symbol := ticker.EODHDSymbol()
	resp, err := s.client.GetFundamentals(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fundamentals for %s: %w", symbol, err)
	}

	fundamentals := &models.Fundamentals{Code: ticker.Code, Name: ticker.Code}
	if resp.General != nil {
		if resp.General.Name != "" {
			fundamentals.Name = resp.General.Name
		}
		fundamentals.Sector = resp.General.Sector
		fundamentals.Industry = resp.General.Industry
	}
	if resp.Highlights != nil {
		fundamentals.MarketCap = resp.Highlights.MarketCapitalization
		fundamentals.PERatio = resp.Highlights.PERatio
		fundamentals.DividendYield = resp.Highlights.DividendYield
		fundamentals.EarningsPerShare = resp.Highlights.EarningsShare
		fundamentals.ReturnOnEquity = resp.Highlights.ReturnOnEquityTTM
		fundamentals.ProfitMargin = resp.Highlights.ProfitMargin
	}
	if resp.Valuation != nil {
		fundamentals.PBRatio = resp.Valuation.PriceBookMRQ
	}

	if s.cache != nil {
		if err := s.cache.Put(KindFundamentals, cacheKey, fundamentals); err != nil {
			s.logger.Warn().Err(err).Str("code", ticker.String()).Msg("Failed to cache fundamentals")
		}
	}

	return fundamentals, nil
}

// GetNews returns up to limit recent news articles for the stock.
func (s *Service) GetNews(ctx context.Context, code string, limit int) ([]models.NewsItem, error) {
	ticker := common.ParseTicker(code)
	if ticker.Code == "" {
		return nil, fmt.Errorf("invalid stock code %q", code)
	}

	cacheKey := fmt.Sprintf("%s:%d", ticker.TaskKey(), limit)
	var cached []models.NewsItem
	if s.cache != nil && s.cache.Get(KindNews, cacheKey, &cached) {
		s.logger.Debug().Str("code", ticker.String()).Msg("News served from cache")
		return cached, nil
	}

	symbol := ticker.EODHDSymbol()
	articles, err := s.client.GetNews(ctx, symbol, WithLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news for %s: %w", symbol, err)
	}

	news := make([]models.NewsItem, 0, len(articles))
	for _, a := range articles {
		item := models.NewsItem{
			Date:    a.Date,
			Title:   a.Title,
			Content: a.Content,
			Link:    a.Link,
		}
		if a.Sentiment != nil {
			item.Sentiment = a.Sentiment.Polarity
		}
		news = append(news, item)
	}

	if s.cache != nil {
		if err := s.cache.Put(KindNews, cacheKey, news); err != nil {
			s.logger.Warn().Err(err).Str("code", ticker.String()).Msg("Failed to cache news")
		}
	}

	return news, nil
}
