package models

import "time"

// AnalysisRequest describes a single-stock analysis submission.
type AnalysisRequest struct {
	// Code is the stock code, optionally exchange-qualified (e.g. "ASX:BHP").
	Code string `json:"code" validate:"required,min=1,max=32"`
	// ClientID routes progress events to a streaming client. Defaults to Code.
	ClientID string `json:"client_id,omitempty" validate:"omitempty,max=128"`
	// PeriodDays bounds the price history window. Zero selects the default.
	PeriodDays int `json:"period_days,omitempty" validate:"omitempty,min=30,max=3650"`
	// Provider selects the AI provider. Empty selects the configured default.
	Provider string `json:"provider,omitempty" validate:"omitempty,oneof=openai anthropic zhipu gemini"`
	// StreamAI enables token-level ai_stream events for the final narrative.
	StreamAI bool `json:"stream_ai,omitempty"`
}

// BatchRequest describes a sequential multi-stock analysis submission.
type BatchRequest struct {
	Codes      []string `json:"codes" validate:"required,min=1,max=10,dive,required,max=32"`
	ClientID   string   `json:"client_id,omitempty" validate:"omitempty,max=128"`
	PeriodDays int      `json:"period_days,omitempty" validate:"omitempty,min=30,max=3650"`
	Provider   string   `json:"provider,omitempty" validate:"omitempty,oneof=openai anthropic zhipu gemini"`
}

// ScoreSet holds the dimension scores on a 0-100 scale.
type ScoreSet struct {
	Technical   float64 `json:"technical"`
	Fundamental float64 `json:"fundamental"`
	Sentiment   float64 `json:"sentiment"`
	Composite   float64 `json:"composite"`
}

// DataQuality reports which data sources were actually available for an
// analysis. Degraded sources lower confidence but do not abort the run.
type DataQuality struct {
	PriceSeries  bool     `json:"price_series"`
	Fundamentals bool     `json:"fundamentals"`
	News         bool     `json:"news"`
	Warnings     []string `json:"warnings,omitempty"`
}

// Complete reports whether every data source was available.
func (q DataQuality) Complete() bool {
	return q.PriceSeries && q.Fundamentals && q.News
}

// AnalysisResult is the final product of a pipeline run.
type AnalysisResult struct {
	Code           string      `json:"code"`
	Name           string      `json:"name,omitempty"`
	LastPrice      float64     `json:"last_price,omitempty"`
	ChangePercent  float64     `json:"change_percent,omitempty"`
	TrendSignal    string      `json:"trend_signal,omitempty"`
	Scores         ScoreSet    `json:"scores"`
	Recommendation string      `json:"recommendation"`
	DataQuality    DataQuality `json:"data_quality"`

	// AI sub-analysis narratives. Empty when the provider degraded.
	KlineDescription string `json:"kline_description,omitempty"`
	NewsSummary      string `json:"news_summary,omitempty"`
	ValueJudgement   string `json:"value_judgement,omitempty"`
	FinalNarrative   string `json:"final_narrative,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// BatchItemError records a single failed item in a batch run.
type BatchItemError struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// BatchResult aggregates a sequential batch run.
type BatchResult struct {
	Total       int              `json:"total"`
	Succeeded   int              `json:"succeeded"`
	Failed      int              `json:"failed"`
	Results     []AnalysisResult `json:"results"`
	Errors      []BatchItemError `json:"errors,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
}
