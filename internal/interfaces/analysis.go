package interfaces

import (
	"context"

	"github.com/ternarybob/aestimo/internal/models"
)

// AnalysisService runs the staged analysis pipeline, emitting progress
// events to the requesting client as it goes.
type AnalysisService interface {
	// RunSingle executes the full pipeline for one stock. The task key is
	// held for the duration of the run; a duplicate submission fails fast.
	RunSingle(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error)

	// RunBatch executes the pipeline sequentially for each code. Per-item
	// failures are collected rather than aborting the batch.
	RunBatch(ctx context.Context, req models.BatchRequest) (*models.BatchResult, error)
}
