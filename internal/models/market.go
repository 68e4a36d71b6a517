package models

import "time"

// PricePoint is one daily bar of price history.
type PricePoint struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close"`
	Volume   int64     `json:"volume"`
}

// PriceSeries is daily price history in ascending date order.
type PriceSeries []PricePoint

// Latest returns the most recent bar, or a zero value when empty.
func (s PriceSeries) Latest() PricePoint {
	if len(s) == 0 {
		return PricePoint{}
	}
	return s[len(s)-1]
}

// Closes returns the close prices in series order.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, p := range s {
		closes[i] = p.Close
	}
	return closes
}

// Fundamentals holds the subset of fundamental data used for scoring.
type Fundamentals struct {
	Code             string  `json:"code"`
	Name             string  `json:"name"`
	Sector           string  `json:"sector,omitempty"`
	Industry         string  `json:"industry,omitempty"`
	MarketCap        float64 `json:"market_cap,omitempty"`
	PERatio          float64 `json:"pe_ratio,omitempty"`
	PBRatio          float64 `json:"pb_ratio,omitempty"`
	DividendYield    float64 `json:"dividend_yield,omitempty"`
	EarningsPerShare float64 `json:"eps,omitempty"`
	ReturnOnEquity   float64 `json:"roe,omitempty"`
	ProfitMargin     float64 `json:"profit_margin,omitempty"`
}

// Quote is a delayed real-time price snapshot.
type Quote struct {
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewsItem is one news article returned by the market data vendor.
type NewsItem struct {
	Date      time.Time `json:"date"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	Link      string    `json:"link,omitempty"`
	Sentiment float64   `json:"sentiment,omitempty"`
}

// MarketSnapshot bundles everything the analysis pipeline fetches for a
// stock. Nil sections indicate the fetch degraded.
type MarketSnapshot struct {
	Code         string        `json:"code"`
	Prices       PriceSeries   `json:"prices,omitempty"`
	Fundamentals *Fundamentals `json:"fundamentals,omitempty"`
	News         []NewsItem    `json:"news,omitempty"`
	FetchedAt    time.Time     `json:"fetched_at"`
}
