package analysis

import (
	"fmt"
	"strings"

	"github.com/ternarybob/aestimo/internal/market"
	"github.com/ternarybob/aestimo/internal/models"
)

const analystSystemPrompt = "You are a senior equity analyst. Base every conclusion on the data provided, state the reasoning plainly, and flag uncertainty where the data is thin."

// maxKlineBars bounds the price table handed to the model.
const maxKlineBars = 30

// buildKlinePrompt asks for a short description of recent price action from
// a plain-text OHLCV table.
func buildKlinePrompt(code, name string, prices models.PriceSeries) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Describe the recent price action of %s (%s) from this daily OHLCV table. ", name, code)
	b.WriteString("Cover the direction, momentum, and any notable volume behavior in at most three sentences.\n\n")
	b.WriteString("date | open | high | low | close | volume\n")

	bars := prices
	if len(bars) > maxKlineBars {
		bars = bars[len(bars)-maxKlineBars:]
	}
	for _, p := range bars {
		fmt.Fprintf(&b, "%s | %.2f | %.2f | %.2f | %.2f | %d\n",
			p.Date.Format("2006-01-02"), p.Open, p.High, p.Low, p.Close, p.Volume)
	}

	return b.String()
}

// buildNewsSummaryPrompt asks for a summary of recent headlines.
func buildNewsSummaryPrompt(code, name string, news []models.NewsItem) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Summarize the market-moving themes in these recent headlines about %s (%s) in at most four sentences.\n\n", name, code)
	for i, item := range news {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, item.Date.Format("2006-01-02"), item.Title)
	}

	return b.String()
}

// buildValueJudgementPrompt asks for a valuation view from the fundamentals.
func buildValueJudgementPrompt(code, name string, f *models.Fundamentals) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Give a concise valuation judgement for %s (%s) based on these fundamentals. ", name, code)
	b.WriteString("Address whether the current valuation looks cheap, fair, or stretched, and why.\n\n")

	if f != nil {
		if f.Sector != "" {
			fmt.Fprintf(&b, "Sector: %s (%s)\n", f.Sector, f.Industry)
		}
		fmt.Fprintf(&b, "Market cap: %.0f\n", f.MarketCap)
		fmt.Fprintf(&b, "P/E: %.2f\n", f.PERatio)
		fmt.Fprintf(&b, "P/B: %.2f\n", f.PBRatio)
		fmt.Fprintf(&b, "EPS: %.2f\n", f.EarningsPerShare)
		fmt.Fprintf(&b, "ROE: %.2f%%\n", f.ReturnOnEquity*100)
		fmt.Fprintf(&b, "Profit margin: %.2f%%\n", f.ProfitMargin*100)
		fmt.Fprintf(&b, "Dividend yield: %.2f%%\n", f.DividendYield*100)
	}

	return b.String()
}

// buildFinalNarrativePrompt assembles the full-report prompt from the
// computed scores, indicators, and the earlier AI sub-analyses.
func buildFinalNarrativePrompt(result *models.AnalysisResult, ind market.Indicators, f *models.Fundamentals, newsCount int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write a full investment analysis of %s (%s) based on the data below. ", result.Name, result.Code)
	b.WriteString("Cover technical position, fundamental health, market sentiment, a clear recommendation with reasoning, and the main risks. Be specific and cite the numbers.\n\n")

	b.WriteString("Basic data:\n")
	fmt.Fprintf(&b, "- Last price: %.2f (%.2f%% on the day)\n", ind.LastPrice, ind.ChangePercent)
	fmt.Fprintf(&b, "- Trend signal: %s\n", ind.TrendSignal)
	fmt.Fprintf(&b, "- SMA20/50/200: %.2f / %.2f / %.2f\n", ind.SMA20, ind.SMA50, ind.SMA200)
	fmt.Fprintf(&b, "- RSI(14): %.1f\n", ind.RSI14)
	fmt.Fprintf(&b, "- Support / resistance: %.2f / %.2f\n", ind.Support, ind.Resistance)
	fmt.Fprintf(&b, "- 52-week range: %.2f - %.2f\n", ind.Week52Low, ind.Week52High)

	b.WriteString("\nScores (0-100):\n")
	fmt.Fprintf(&b, "- Technical: %.1f\n", result.Scores.Technical)
	fmt.Fprintf(&b, "- Fundamental: %.1f\n", result.Scores.Fundamental)
	fmt.Fprintf(&b, "- Sentiment: %.1f (from %d articles)\n", result.Scores.Sentiment, newsCount)
	fmt.Fprintf(&b, "- Composite: %.1f\n", result.Scores.Composite)
	fmt.Fprintf(&b, "- Recommendation: %s\n", result.Recommendation)

	if f != nil {
		b.WriteString("\nFundamentals:\n")
		fmt.Fprintf(&b, "- P/E %.2f, P/B %.2f, EPS %.2f, ROE %.2f%%, margin %.2f%%, yield %.2f%%\n",
			f.PERatio, f.PBRatio, f.EarningsPerShare, f.ReturnOnEquity*100, f.ProfitMargin*100, f.DividendYield*100)
	}

	if result.KlineDescription != "" {
		b.WriteString("\nPrice action read:\n")
		b.WriteString(result.KlineDescription)
		b.WriteString("\n")
	}
	if result.NewsSummary != "" {
		b.WriteString("\nNews summary:\n")
		b.WriteString(result.NewsSummary)
		b.WriteString("\n")
	}
	if result.ValueJudgement != "" {
		b.WriteString("\nValuation view:\n")
		b.WriteString(result.ValueJudgement)
		b.WriteString("\n")
	}

	return b.String()
}

// fallbackNarrative builds a rule-based report for runs where every AI
// attempt was exhausted. Keeps the pipeline terminal instead of failing it.
func fallbackNarrative(result *models.AnalysisResult, ind market.Indicators) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s (%s) last traded at %.2f (%.2f%%). ", result.Name, result.Code, ind.LastPrice, ind.ChangePercent)
	fmt.Fprintf(&b, "The technical trend reads %s with RSI(14) at %.1f. ", strings.ToLower(ind.TrendSignal), ind.RSI14)

	if ind.SMA50 > 0 {
		if ind.LastPrice > ind.SMA50 {
			b.WriteString("Price is trading above its 50-day average. ")
		} else {
			b.WriteString("Price is trading below its 50-day average. ")
		}
	}

	fmt.Fprintf(&b, "Scores: technical %.1f, fundamental %.1f, sentiment %.1f, composite %.1f. ",
		result.Scores.Technical, result.Scores.Fundamental, result.Scores.Sentiment, result.Scores.Composite)
	fmt.Fprintf(&b, "Rule-based recommendation: %s.", result.Recommendation)

	return b.String()
}
