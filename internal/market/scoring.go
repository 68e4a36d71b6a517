package market

import (
	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/models"
)

// Recommendation labels, ordered strongest buy to strongest sell.
const (
	RecommendStrongBuy   = "STRONG BUY"
	RecommendBuy         = "BUY"
	RecommendCautiousBuy = "CAUTIOUS BUY"
	RecommendHold        = "HOLD"
	RecommendReduce      = "REDUCE"
	RecommendSell        = "SELL"
)

// TechnicalScore maps technical indicators to a 0-100 score. Starts neutral
// at 50 and adjusts for trend, RSI, moving-average position, placement in
// the support/resistance band, and volume.
func TechnicalScore(ind Indicators, prices models.PriceSeries) float64 {
	score := 50.0

	switch ind.TrendSignal {
	case TrendBullish:
		score += 20
	case TrendBearish:
		score -= 20
	}

	switch {
	case ind.RSI14 >= 30 && ind.RSI14 <= 70:
		score += 10
	case ind.RSI14 < 30:
		score += 5
	case ind.RSI14 > 70:
		score -= 5
	}

	if ind.SMA50 > 0 {
		if ind.LastPrice > ind.SMA50 {
			score += 10
		} else {
			score -= 10
		}
	}

	// Placement in the support/resistance band. Near support reads as a
	// buying opportunity, near resistance as stretched.
	if band := ind.Resistance - ind.Support; band > 0 {
		pos := (ind.LastPrice - ind.Support) / band
		switch {
		case pos >= 0.2 && pos <= 0.8:
			score += 5
		case pos < 0.2:
			score += 10
		default:
			score -= 5
		}
	}

	if len(prices) > 0 && ind.AvgVolume > 0 {
		lastVolume := prices.Latest().Volume
		if float64(lastVolume) > float64(ind.AvgVolume)*1.5 {
			if ind.PriceChange > 0 {
				score += 10
			} else {
				score -= 10
			}
		}
	}

	return clampScore(score)
}

// FundamentalScore maps fundamental data to a 0-100 score. A nil or empty
// Fundamentals scores a neutral 50.
func FundamentalScore(f *models.Fundamentals) float64 {
	if f == nil {
		return 50
	}

	score := 50.0

	hasData := f.MarketCap > 0 || f.PERatio != 0 || f.EarningsPerShare != 0 || f.ReturnOnEquity != 0
	if hasData {
		score += 10
	}

	// ROE is reported as a fraction (0.15 = 15%).
	roe := f.ReturnOnEquity * 100
	switch {
	case roe > 15:
		score += 10
	case roe > 10:
		score += 5
	case hasData && roe < 5:
		score -= 5
	}

	switch {
	case f.ProfitMargin > 0.15:
		score += 5
	case hasData && f.ProfitMargin < 0:
		score -= 10
	}

	switch {
	case f.PERatio > 0 && f.PERatio <= 15:
		score += 10
	case f.PERatio > 15 && f.PERatio <= 30:
		score += 5
	case f.PERatio > 60:
		score -= 5
	}

	if f.DividendYield > 0.03 {
		score += 5
	}

	if f.PBRatio > 0 && f.PBRatio < 1 {
		score += 5
	}

	return clampScore(score)
}

// SentimentScore maps news sentiment to a 0-100 score. The average polarity
// in [-1, 1] maps to [0, 100], nudged up by article count. No news scores a
// neutral 50.
func SentimentScore(news []models.NewsItem) float64 {
	if len(news) == 0 {
		return 50
	}

	var total float64
	for _, item := range news {
		total += item.Sentiment
	}
	avg := total / float64(len(news))

	base := (avg + 1) * 50
	countAdjustment := float64(len(news)) / 20
	if countAdjustment > 1 {
		countAdjustment = 1
	}

	return clampScore(base + countAdjustment*10)
}

// CompositeScore builds the weighted composite from the three scores.
// Weights that do not sum to 1 are normalized; zero weights fall back to
// the configured defaults of 0.4/0.4/0.2.
func CompositeScore(technical, fundamental, sentiment float64, cfg common.AnalysisConfig) float64 {
	wt, wf, ws := cfg.WeightTechnical, cfg.WeightFundamental, cfg.WeightSentiment
	sum := wt + wf + ws
	if sum <= 0 {
		wt, wf, ws = 0.4, 0.4, 0.2
		sum = 1
	}

	composite := (technical*wt + fundamental*wf + sentiment*ws) / sum
	return clampScore(composite)
}

// Recommend converts a score set into a recommendation label.
func Recommend(scores models.ScoreSet) string {
	switch {
	case scores.Composite >= 80:
		if scores.Technical >= 75 && scores.Fundamental >= 75 {
			return RecommendStrongBuy
		}
		return RecommendBuy
	case scores.Composite >= 65:
		if scores.Sentiment >= 60 {
			return RecommendBuy
		}
		return RecommendCautiousBuy
	case scores.Composite >= 45:
		return RecommendHold
	case scores.Composite >= 30:
		return RecommendReduce
	default:
		return RecommendSell
	}
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
