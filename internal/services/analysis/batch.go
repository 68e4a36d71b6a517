package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
	"github.com/ternarybob/aestimo/internal/models"
)

// RunBatch analyzes each code sequentially. Per-item failures are
// collected into the result rather than aborting the batch, and items
// never stream AI tokens regardless of provider support.
func (r *Runner) RunBatch(ctx context.Context, req models.BatchRequest) (*models.BatchResult, error) {
	codes := dedupeCodes(req.Codes)
	if len(codes) == 0 {
		return nil, fmt.Errorf("batch contains no stock codes")
	}
	limit := r.cfg.BatchLimit
	if limit <= 0 {
		limit = 10
	}
	if len(codes) > limit {
		return nil, fmt.Errorf("batch of %d codes exceeds limit of %d", len(codes), limit)
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = "batch"
	}

	batch := &models.BatchResult{
		Total:     len(codes),
		StartedAt: time.Now().UTC(),
	}

	r.sendLog(clientID, fmt.Sprintf("Starting batch analysis of %d stocks", len(codes)), "header")

	for i, code := range codes {
		r.sendBatchProgress(clientID, i, len(codes), code)

		result, err := r.runBatchItem(ctx, models.AnalysisRequest{
			Code:       code,
			ClientID:   clientID,
			PeriodDays: req.PeriodDays,
			Provider:   req.Provider,
		})
		if err != nil {
			batch.Failed++
			batch.Errors = append(batch.Errors, models.BatchItemError{Code: code, Error: err.Error()})
			r.sendLog(clientID, fmt.Sprintf("%s failed: %v", code, err), "error")
			continue
		}
		batch.Succeeded++
		batch.Results = append(batch.Results, *result)
		r.sendLog(clientID, fmt.Sprintf("%s: %s (composite %.1f)", code, result.Recommendation, result.Scores.Composite), "success")
	}

	batch.CompletedAt = time.Now().UTC()

	if batch.Succeeded > 0 {
		r.send(clientID, interfaces.EventScoresUpdate, map[string]any{
			"scores":  averageScores(batch.Results),
			"animate": true,
		})
		r.send(clientID, interfaces.EventDataQualityUpdate, batchQualityPayload(batch.Results))
	}
	r.sendBatchProgress(clientID, len(codes), len(codes), "")
	r.send(clientID, interfaces.EventBatchResult, toPayload(batch))
	r.send(clientID, interfaces.EventAnalysisComplete, map[string]any{
		"message": fmt.Sprintf("Batch complete: %d succeeded, %d failed", batch.Succeeded, batch.Failed),
	})

	return batch, nil
}

// runBatchItem acquires the item's task key and runs the quiet pipeline.
// A code already being analyzed elsewhere counts as an item failure.
func (r *Runner) runBatchItem(ctx context.Context, req models.AnalysisRequest) (result *models.AnalysisResult, err error) {
	key := TaskKey(req.Code)
	if !r.registry.TryAcquire(key, req.ClientID) {
		return nil, fmt.Errorf("analysis already in progress for %s", req.Code)
	}
	defer func() {
		r.registry.Release(key)
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("analysis panicked: %v", rec)
			r.logger.Error().Str("code", req.Code).Msgf("Batch item panic: %v", rec)
		}
	}()

	return r.runPipeline(ctx, req, req.ClientID, false)
}

func (r *Runner) sendBatchProgress(clientID string, done, total int, currentStock string) {
	percent := 0
	if total > 0 {
		percent = done * 100 / total
	}
	message := fmt.Sprintf("Analyzing %d of %d", done+1, total)
	if currentStock == "" {
		message = "Batch analysis complete"
	}
	r.send(clientID, interfaces.EventProgress, map[string]any{
		"element_id":    "batchProgress",
		"percent":       percent,
		"message":       message,
		"current_stock": currentStock,
	})
}

// dedupeCodes drops blank and repeated codes, keyed on the exchange-qualified
// task key so "BHP" and "asx:bhp" collapse to one item. Order is preserved.
func dedupeCodes(codes []string) []string {
	tickers := common.ParseTickers(codes)
	seen := make(map[string]struct{}, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		key := t.TaskKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t.Raw)
	}
	return out
}

func averageScores(results []models.AnalysisResult) models.ScoreSet {
	if len(results) == 0 {
		return models.ScoreSet{}
	}
	var sum models.ScoreSet
	for _, res := range results {
		sum.Technical += res.Scores.Technical
		sum.Fundamental += res.Scores.Fundamental
		sum.Sentiment += res.Scores.Sentiment
		sum.Composite += res.Scores.Composite
	}
	n := float64(len(results))
	return models.ScoreSet{
		Technical:   sum.Technical / n,
		Fundamental: sum.Fundamental / n,
		Sentiment:   sum.Sentiment / n,
		Composite:   sum.Composite / n,
	}
}

func batchQualityPayload(results []models.AnalysisResult) map[string]any {
	complete := 0
	for _, res := range results {
		if res.DataQuality.Complete() {
			complete++
		}
	}
	return map[string]any{
		"analyzed": len(results),
		"complete": complete,
		"partial":  len(results) - complete,
	}
}
