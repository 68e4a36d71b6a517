package market

import (
	"testing"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/models"
)

func TestRecommend(t *testing.T) {
	tests := []struct {
		name   string
		scores models.ScoreSet
		want   string
	}{
		{"strong buy needs strong legs", models.ScoreSet{Composite: 85, Technical: 80, Fundamental: 80, Sentiment: 70}, RecommendStrongBuy},
		{"high composite weak legs", models.ScoreSet{Composite: 82, Technical: 70, Fundamental: 90, Sentiment: 70}, RecommendBuy},
		{"mid composite good sentiment", models.ScoreSet{Composite: 70, Technical: 70, Fundamental: 70, Sentiment: 65}, RecommendBuy},
		{"mid composite weak sentiment", models.ScoreSet{Composite: 70, Technical: 70, Fundamental: 70, Sentiment: 40}, RecommendCautiousBuy},
		{"hold band", models.ScoreSet{Composite: 50}, RecommendHold},
		{"reduce band", models.ScoreSet{Composite: 35}, RecommendReduce},
		{"sell band", models.ScoreSet{Composite: 20}, RecommendSell},
		{"boundary 80", models.ScoreSet{Composite: 80, Technical: 75, Fundamental: 75}, RecommendStrongBuy},
		{"boundary 45", models.ScoreSet{Composite: 45}, RecommendHold},
		{"boundary 30", models.ScoreSet{Composite: 30}, RecommendReduce},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Recommend(tt.scores); got != tt.want {
				t.Errorf("Recommend(%+v) = %q, want %q", tt.scores, got, tt.want)
			}
		})
	}
}

func TestFundamentalScore(t *testing.T) {
	if got := FundamentalScore(nil); got != 50 {
		t.Errorf("nil fundamentals score = %v, want 50", got)
	}

	strong := &models.Fundamentals{
		Code:             "BHP",
		MarketCap:        1e11,
		PERatio:          12,
		ReturnOnEquity:   0.20,
		ProfitMargin:     0.25,
		DividendYield:    0.05,
		EarningsPerShare: 4.2,
	}
	weak := &models.Fundamentals{
		Code:           "XYZ",
		MarketCap:      1e7,
		PERatio:        90,
		ReturnOnEquity: 0.01,
		ProfitMargin:   -0.10,
	}

	strongScore := FundamentalScore(strong)
	weakScore := FundamentalScore(weak)
	if strongScore <= weakScore {
		t.Errorf("strong fundamentals (%v) should outscore weak (%v)", strongScore, weakScore)
	}
	if strongScore < 0 || strongScore > 100 || weakScore < 0 || weakScore > 100 {
		t.Errorf("scores out of range: strong=%v weak=%v", strongScore, weakScore)
	}
}

func TestSentimentScore(t *testing.T) {
	if got := SentimentScore(nil); got != 50 {
		t.Errorf("no news score = %v, want 50", got)
	}

	positive := []models.NewsItem{
		{Title: "a", Sentiment: 0.8},
		{Title: "b", Sentiment: 0.6},
	}
	negative := []models.NewsItem{
		{Title: "c", Sentiment: -0.7},
		{Title: "d", Sentiment: -0.5},
	}

	posScore := SentimentScore(positive)
	negScore := SentimentScore(negative)
	if posScore <= 50 {
		t.Errorf("positive news score = %v, want > 50", posScore)
	}
	if negScore >= 50 {
		t.Errorf("negative news score = %v, want < 50", negScore)
	}
}

func TestCompositeScore(t *testing.T) {
	cfg := common.AnalysisConfig{
		WeightTechnical:   0.4,
		WeightFundamental: 0.4,
		WeightSentiment:   0.2,
	}

	got := CompositeScore(80, 60, 50, cfg)
	want := 80*0.4 + 60*0.4 + 50*0.2
	if got != want {
		t.Errorf("CompositeScore = %v, want %v", got, want)
	}

	// Zero weights fall back to defaults instead of dividing by zero.
	fallback := CompositeScore(80, 60, 50, common.AnalysisConfig{})
	if fallback != want {
		t.Errorf("fallback CompositeScore = %v, want %v", fallback, want)
	}
}

func TestTechnicalScore_Clamped(t *testing.T) {
	series := seriesFromCloses([]float64{100, 101, 102, 103, 104})
	ind := ComputeIndicators(series)

	score := TechnicalScore(ind, series)
	if score < 0 || score > 100 {
		t.Errorf("TechnicalScore = %v, want within [0, 100]", score)
	}
}
