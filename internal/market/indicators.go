package market

import (
	"math"

	"github.com/ternarybob/aestimo/internal/models"
)

// Trend signal values.
const (
	TrendBullish = "BULLISH"
	TrendBearish = "BEARISH"
	TrendNeutral = "NEUTRAL"
)

// Indicators holds the technical indicators calculated from price history.
type Indicators struct {
	LastPrice     float64 `json:"last_price"`
	PriceChange   float64 `json:"price_change"`
	ChangePercent float64 `json:"change_percent"`
	SMA20         float64 `json:"sma20"`
	SMA50         float64 `json:"sma50"`
	SMA200        float64 `json:"sma200"`
	RSI14         float64 `json:"rsi14"`
	Support       float64 `json:"support"`
	Resistance    float64 `json:"resistance"`
	Week52High    float64 `json:"week52_high"`
	Week52Low     float64 `json:"week52_low"`
	AvgVolume     int64   `json:"avg_volume"`
	TrendSignal   string  `json:"trend_signal"`
}

// ComputeIndicators calculates technical indicators from a price series.
// The series must be in ascending date order.
func ComputeIndicators(prices models.PriceSeries) Indicators {
	var ind Indicators
	if len(prices) == 0 {
		ind.TrendSignal = TrendNeutral
		return ind
	}

	closes := prices.Closes()
	last := prices.Latest()

	ind.LastPrice = last.Close
	if len(prices) > 1 {
		prev := prices[len(prices)-2]
		ind.PriceChange = last.Close - prev.Close
		if prev.Close > 0 {
			ind.ChangePercent = (ind.PriceChange / prev.Close) * 100
		}
	}

	ind.SMA20 = calculateSMA(closes, 20)
	ind.SMA50 = calculateSMA(closes, 50)
	ind.SMA200 = calculateSMA(closes, 200)
	ind.RSI14 = calculateRSI(closes, 14)

	// Support and resistance from the last 20 bars.
	recent := prices
	if len(prices) > 20 {
		recent = prices[len(prices)-20:]
	}
	var highs, lows []float64
	for _, p := range recent {
		highs = append(highs, p.High)
		lows = append(lows, p.Low)
	}
	ind.Support = findMin(lows)
	ind.Resistance = findMax(highs)

	// 52-week range over the available history.
	oneYearAgo := last.Date.AddDate(-1, 0, 0)
	for _, p := range prices {
		if p.Date.Before(oneYearAgo) {
			continue
		}
		if p.High > ind.Week52High {
			ind.Week52High = p.High
		}
		if p.Low > 0 && (ind.Week52Low == 0 || p.Low < ind.Week52Low) {
			ind.Week52Low = p.Low
		}
	}

	// Average volume over the last 20 bars.
	volumeCount := 20
	if len(prices) < volumeCount {
		volumeCount = len(prices)
	}
	var totalVolume int64
	for i := len(prices) - volumeCount; i < len(prices); i++ {
		totalVolume += prices[i].Volume
	}
	if volumeCount > 0 {
		ind.AvgVolume = totalVolume / int64(volumeCount)
	}

	ind.TrendSignal = determineTrend(ind.LastPrice, ind.SMA20, ind.SMA50, ind.SMA200, ind.RSI14)
	return ind
}

// calculateSMA calculates Simple Moving Average
func calculateSMA(prices []float64, period int) float64 {
	if len(prices) < period {
		if len(prices) == 0 {
			return 0
		}
		period = len(prices)
	}

	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period)
}

// calculateRSI calculates Relative Strength Index
func calculateRSI(prices []float64, period int) float64 {
	if len(prices) < period+1 {
		return 50 // Neutral if not enough data
	}

	gains := 0.0
	losses := 0.0

	for i := len(prices) - period; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	if losses == 0 {
		return 100
	}

	rs := gains / losses
	return 100 - (100 / (1 + rs))
}

// findMin finds the minimum positive value
func findMin(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	min := math.MaxFloat64
	for _, v := range values {
		if v < min && v > 0 {
			min = v
		}
	}
	if min == math.MaxFloat64 {
		return 0
	}
	return min
}

// findMax finds the maximum value
func findMax(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	max := values[0]
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	return max
}

// determineTrend determines the overall trend signal
func determineTrend(price, sma20, sma50, sma200, rsi float64) string {
	bullishSignals := 0
	bearishSignals := 0

	if price > sma20 && sma20 > 0 {
		bullishSignals++
	} else if sma20 > 0 {
		bearishSignals++
	}

	if price > sma50 && sma50 > 0 {
		bullishSignals++
	} else if sma50 > 0 {
		bearishSignals++
	}

	if price > sma200 && sma200 > 0 {
		bullishSignals++
	} else if sma200 > 0 {
		bearishSignals++
	}

	// SMA alignment (golden/death cross)
	if sma20 > sma50 && sma50 > 0 {
		bullishSignals++
	} else if sma50 > 0 {
		bearishSignals++
	}

	if rsi > 50 && rsi < 70 {
		bullishSignals++
	} else if rsi < 50 && rsi > 30 {
		bearishSignals++
	} else if rsi >= 70 {
		bearishSignals++ // Overbought
	} else if rsi <= 30 {
		bullishSignals++ // Oversold - potential reversal
	}

	if bullishSignals > bearishSignals+1 {
		return TrendBullish
	} else if bearishSignals > bullishSignals+1 {
		return TrendBearish
	}
	return TrendNeutral
}
