// Package analysis orchestrates the staged stock-analysis pipeline,
// streaming progress and results to the requesting client.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/market"
	"github.com/ternarybob/aestimo/internal/models"
	"github.com/ternarybob/aestimo/internal/services/events"
	"github.com/ternarybob/aestimo/internal/services/tasks"
)

// Runner implements interfaces.AnalysisService. A run walks the ordered
// stages, emits best-effort events through the broker, and always releases
// its task key.
type Runner struct {
	marketData interfaces.MarketDataService
	caller     interfaces.GenerationService
	broker     interfaces.EventBroker
	registry   interfaces.TaskRegistry
	cfg        common.AnalysisConfig
	logger     arbor.ILogger
}

var _ interfaces.AnalysisService = (*Runner)(nil)

// NewRunner creates the pipeline runner.
func NewRunner(
	marketData interfaces.MarketDataService,
	caller interfaces.GenerationService,
	broker interfaces.EventBroker,
	registry interfaces.TaskRegistry,
	cfg common.AnalysisConfig,
	logger arbor.ILogger,
) *Runner {
	return &Runner{
		marketData: marketData,
		caller:     caller,
		broker:     broker,
		registry:   registry,
		cfg:        cfg,
		logger:     logger,
	}
}

// TaskKey returns the registry key for a stock code.
func TaskKey(code string) string {
	return common.ParseTicker(code).TaskKey()
}

// RunSingle executes the full pipeline for one stock. Duplicate submissions
// fail fast with tasks.ErrDuplicateTask before any events are emitted.
func (r *Runner) RunSingle(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
	key := TaskKey(req.Code)
	if !r.registry.TryAcquire(key, req.ClientID) {
		return nil, fmt.Errorf("%w: %s", tasks.ErrDuplicateTask, req.Code)
	}
	return r.RunSingleHeld(ctx, req)
}

// RunSingleHeld executes the pipeline for a task key the caller has already
// acquired. The key is released on every exit path, including panics.
func (r *Runner) RunSingleHeld(ctx context.Context, req models.AnalysisRequest) (result *models.AnalysisResult, err error) {
	key := TaskKey(req.Code)
	clientID := req.ClientID
	if clientID == "" {
		clientID = req.Code
	}

	defer func() {
		r.registry.Release(key)
		if rec := recover(); rec != nil {
			err = fmt.Errorf("analysis panicked: %v", rec)
			r.logger.Error().Str("code", req.Code).Msgf("Analysis panic: %v", rec)
			r.send(clientID, interfaces.EventAnalysisError, map[string]any{"error": err.Error()})
			r.send(clientID, interfaces.EventAnalysisComplete, map[string]any{"message": fmt.Sprintf("Analysis of %s failed", req.Code)})
			result = nil
		}
	}()

	result, err = r.runPipeline(ctx, req, clientID, true)
	return result, err
}

// runPipeline walks the ordered stages. When emitProgress is false (batch
// items) only log events are emitted; progress, score, and result events
// belong to the enclosing batch.
func (r *Runner) runPipeline(ctx context.Context, req models.AnalysisRequest, clientID string, emitProgress bool) (*models.AnalysisResult, error) {
	periodDays := req.PeriodDays
	if periodDays <= 0 {
		periodDays = r.cfg.DefaultPeriodDays
	}

	result := &models.AnalysisResult{
		Code:      req.Code,
		StartedAt: time.Now().UTC(),
	}

	fail := func(stage string, cause error) (*models.AnalysisResult, error) {
		err := fmt.Errorf("%s failed for %s: %w", stage, req.Code, cause)
		r.logger.Error().Err(cause).Str("code", req.Code).Str("stage", stage).Msg("Analysis aborted")
		r.sendLog(clientID, fmt.Sprintf("%s analysis failed: %v", req.Code, cause), "error")
		if emitProgress {
			r.send(clientID, interfaces.EventAnalysisError, map[string]any{"error": err.Error()})
			r.send(clientID, interfaces.EventAnalysisComplete, map[string]any{"message": fmt.Sprintf("Analysis of %s failed", req.Code)})
		}
		return nil, err
	}

	// Stage: identity.
	r.sendLog(clientID, fmt.Sprintf("Starting analysis of %s", req.Code), "header")
	if emitProgress {
		r.sendProgress(clientID, 5, "Fetching stock information", req.Code)
	}
	result.Name = r.marketData.GetStockName(ctx, req.Code)
	r.sendLog(clientID, fmt.Sprintf("Stock name: %s", result.Name), "success")

	if emitProgress {
		basicInfo := map[string]any{
			"type":       "basic_info",
			"stock_code": req.Code,
			"stock_name": result.Name,
		}
		// A live quote enriches the first partial before the full price
		// history arrives. Quote failures degrade silently.
		if quote, qerr := r.marketData.GetRealTimeQuote(ctx, req.Code); qerr == nil && quote != nil {
			basicInfo["current_price"] = quote.Price
			basicInfo["price_change"] = quote.ChangePercent
			result.LastPrice = quote.Price
			result.ChangePercent = quote.ChangePercent
		}
		r.send(clientID, interfaces.EventPartialResult, basicInfo)
	}

	// Stage: price series. Failure here is fatal.
	if emitProgress {
		r.sendProgress(clientID, 15, "Fetching price history", req.Code)
	}
	prices, err := r.marketData.GetPriceSeries(ctx, req.Code, periodDays)
	if err != nil {
		return fail("price series fetch", err)
	}
	result.DataQuality.PriceSeries = true

	ind := market.ComputeIndicators(prices)
	result.LastPrice = ind.LastPrice
	result.ChangePercent = ind.ChangePercent
	result.TrendSignal = ind.TrendSignal
	r.sendLog(clientID, fmt.Sprintf("Last price: %.2f (%.2f%%)", ind.LastPrice, ind.ChangePercent), "success")

	if emitProgress {
		r.send(clientID, interfaces.EventPartialResult, map[string]any{
			"type":          "basic_info",
			"stock_code":    req.Code,
			"stock_name":    result.Name,
			"current_price": ind.LastPrice,
			"price_change":  ind.ChangePercent,
			"trend_signal":  ind.TrendSignal,
		})
	}

	// Stage: technicals.
	if emitProgress {
		r.sendProgress(clientID, 25, "Computing technical indicators", req.Code)
	}
	result.Scores.Technical = market.TechnicalScore(ind, prices)
	r.sendLog(clientID, fmt.Sprintf("Technical analysis complete, score %.1f", result.Scores.Technical), "success")
	if emitProgress {
		r.sendScores(clientID, models.ScoreSet{
			Technical:   result.Scores.Technical,
			Fundamental: 50,
			Sentiment:   50,
			Composite:   50,
		}, false)
	}

	// Stage: fundamentals. Degrades on failure.
	if emitProgress {
		r.sendProgress(clientID, 45, "Analyzing fundamentals", req.Code)
	}
	fundamentals, err := r.marketData.GetFundamentals(ctx, req.Code)
	if err == nil && fundamentals == nil {
		err = fmt.Errorf("no fundamental data for %s", req.Code)
	}
	if err != nil {
		r.logger.Warn().Err(err).Str("code", req.Code).Msg("Fundamentals fetch degraded")
		r.sendLog(clientID, "Fundamentals unavailable, continuing with defaults", "warning")
		result.DataQuality.Warnings = append(result.DataQuality.Warnings, "fundamentals unavailable")
		fundamentals = nil
	} else {
		result.DataQuality.Fundamentals = true
		if fundamentals.Name != "" && fundamentals.Name != req.Code {
			result.Name = fundamentals.Name
		}
	}
	result.Scores.Fundamental = market.FundamentalScore(fundamentals)
	r.sendLog(clientID, fmt.Sprintf("Fundamental analysis complete, score %.1f", result.Scores.Fundamental), "success")
	if emitProgress {
		r.sendScores(clientID, models.ScoreSet{
			Technical:   result.Scores.Technical,
			Fundamental: result.Scores.Fundamental,
			Sentiment:   50,
			Composite:   (result.Scores.Technical + result.Scores.Fundamental) / 2,
		}, false)
	}

	// Stage: news and sentiment. Degrades on failure.
	if emitProgress {
		r.sendProgress(clientID, 65, "Analyzing market sentiment", req.Code)
	}
	news, err := r.marketData.GetNews(ctx, req.Code, r.cfg.NewsLimit)
	if err != nil {
		r.logger.Warn().Err(err).Str("code", req.Code).Msg("News fetch degraded")
		r.sendLog(clientID, "News unavailable, sentiment defaults to neutral", "warning")
		result.DataQuality.Warnings = append(result.DataQuality.Warnings, "news unavailable")
		news = nil
	} else {
		result.DataQuality.News = true
	}
	result.Scores.Sentiment = market.SentimentScore(news)
	r.sendLog(clientID, fmt.Sprintf("Sentiment analysis complete, score %.1f", result.Scores.Sentiment), "success")

	// Stage: composite score and recommendation.
	result.Scores.Composite = market.CompositeScore(
		result.Scores.Technical, result.Scores.Fundamental, result.Scores.Sentiment, r.cfg)
	if emitProgress {
		r.sendScores(clientID, result.Scores, true)
		r.send(clientID, interfaces.EventDataQualityUpdate, dataQualityPayload(result.DataQuality, len(news)))
		r.sendProgress(clientID, 80, "Generating recommendation", req.Code)
	}
	result.Recommendation = market.Recommend(result.Scores)
	r.sendLog(clientID, fmt.Sprintf("Recommendation: %s", result.Recommendation), "success")

	// Stage: AI sub-analyses. Exhaustion degrades, never aborts.
	if emitProgress {
		r.sendProgress(clientID, 90, "Running AI analysis", req.Code)
	}
	r.runAIStages(ctx, req, clientID, result, ind, prices, fundamentals, news, emitProgress)

	// Stage: final report.
	result.CompletedAt = time.Now().UTC()
	if emitProgress {
		r.sendProgress(clientID, 100, "Analysis complete", req.Code)
		r.send(clientID, interfaces.EventFinalResult, toPayload(result))
		r.send(clientID, interfaces.EventAnalysisComplete, map[string]any{
			"message": fmt.Sprintf("Analysis of %s complete, composite score %.1f", req.Code, result.Scores.Composite),
		})
	}

	return result, nil
}

// runAIStages runs the four AI sub-analyses. Only the final narrative
// streams chunk events, and only when requested on a single-stock run.
func (r *Runner) runAIStages(ctx context.Context, req models.AnalysisRequest, clientID string, result *models.AnalysisResult, ind market.Indicators, prices models.PriceSeries, fundamentals *models.Fundamentals, news []models.NewsItem, emitProgress bool) {
	degraded := false

	result.KlineDescription = r.generate(ctx, req.Provider,
		buildKlinePrompt(req.Code, result.Name, prices), &degraded)
	if len(news) > 0 {
		result.NewsSummary = r.generate(ctx, req.Provider,
			buildNewsSummaryPrompt(req.Code, result.Name, news), &degraded)
	}
	if fundamentals != nil {
		result.ValueJudgement = r.generate(ctx, req.Provider,
			buildValueJudgementPrompt(req.Code, result.Name, fundamentals), &degraded)
	}

	prompt := buildFinalNarrativePrompt(result, ind, fundamentals, len(news))
	if emitProgress {
		r.send(clientID, interfaces.EventAIPrompt, map[string]any{"prompt": prompt})
	}

	messages := []interfaces.Message{
		{Role: interfaces.RoleSystem, Content: analystSystemPrompt},
		{Role: interfaces.RoleUser, Content: prompt},
	}

	var narrative string
	var err error
	if req.StreamAI && emitProgress {
		narrative, err = r.caller.GenerateStream(ctx, req.Provider, messages, func(chunk string) {
			r.send(clientID, interfaces.EventAIStream, map[string]any{"content": chunk})
		})
	} else {
		narrative, err = r.caller.Generate(ctx, req.Provider, messages)
	}
	if err != nil {
		r.logger.Warn().Err(err).Str("code", req.Code).Msg("AI narrative degraded to rule-based report")
		r.sendLog(clientID, "AI analysis unavailable, using rule-based report", "warning")
		narrative = fallbackNarrative(result, ind)
		degraded = true
	}
	result.FinalNarrative = narrative

	if degraded {
		result.DataQuality.Warnings = append(result.DataQuality.Warnings, "ai analysis degraded")
	} else {
		r.sendLog(clientID, "AI analysis complete", "success")
	}
}

// generate runs one non-streaming sub-analysis, degrading to empty text.
func (r *Runner) generate(ctx context.Context, provider, prompt string, degraded *bool) string {
	messages := []interfaces.Message{
		{Role: interfaces.RoleSystem, Content: analystSystemPrompt},
		{Role: interfaces.RoleUser, Content: prompt},
	}
	text, err := r.caller.Generate(ctx, provider, messages)
	if err != nil {
		r.logger.Warn().Err(err).Msg("AI sub-analysis degraded")
		*degraded = true
		return ""
	}
	return text
}

// send pushes a best-effort event through the broker.
func (r *Runner) send(clientID string, kind interfaces.EventKind, data map[string]any) {
	r.broker.Send(clientID, events.New(kind, data))
}

func (r *Runner) sendLog(clientID, message, logType string) {
	r.send(clientID, interfaces.EventLog, map[string]any{
		"message": message,
		"type":    logType,
	})
}

func (r *Runner) sendProgress(clientID string, percent int, message, currentStock string) {
	r.send(clientID, interfaces.EventProgress, map[string]any{
		"element_id":    "singleProgress",
		"percent":       percent,
		"message":       message,
		"current_stock": currentStock,
	})
}

func (r *Runner) sendScores(clientID string, scores models.ScoreSet, animate bool) {
	r.send(clientID, interfaces.EventScoresUpdate, map[string]any{
		"scores":  scores,
		"animate": animate,
	})
}

func dataQualityPayload(q models.DataQuality, newsCount int) map[string]any {
	return map[string]any{
		"price_series": q.PriceSeries,
		"fundamentals": q.Fundamentals,
		"news":         q.News,
		"news_count":   newsCount,
		"complete":     q.Complete(),
		"warnings":     q.Warnings,
	}
}

// toPayload flattens a result into the event data map.
func toPayload(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{"value": fmt.Sprintf("%v", v)}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"value": string(raw)}
	}
	return out
}
