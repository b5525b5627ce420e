package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/linkcheck/internal/model"
)

// PipelineFactory builds a fresh pipeline for one document tree root.
type PipelineFactory func(root string) *Pipeline

// BatchProcessor checks several document trees concurrently.
// Each tree gets its own pipeline and link graph; nothing is shared.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each root.
	pipelineFactory PipelineFactory

	// concurrency is the maximum number of concurrent runs.
	concurrency int

	// runOptions is copied into every run.
	runOptions model.RunOptions

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent runs.
// Default is 4 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithRunOptions sets the options snapshot recorded in every run.
func WithRunOptions(opts model.RunOptions) BatchOption {
	return func(b *BatchProcessor) {
		b.runOptions = opts
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory PipelineFactory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     4,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// newRun creates the run for root with a fresh identifier.
func (bp *BatchProcessor) newRun(root string) *model.Run {
	return model.NewRun(uuid.NewString(), root, bp.runOptions)
}

// ProcessBatchWithCallback checks every root and calls callback as each
// run completes, so reports can be written while other trees are still
// being checked. callback is called from worker goroutines and must
// synchronize itself.
//
// A failed run carries its error and does not stop the others. The
// returned error is only set when the batch itself was cancelled; roots
// that never started get no callback then.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	roots []string,
	callback func(run *model.Run, index int),
) error {
	bp.logger.Debug("starting batch processing",
		"total_roots", len(roots),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, root := range roots {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("checking document tree",
				"root", root,
				"index", i+1,
				"total", len(roots),
			)

			run := bp.newRun(root)
			if err := bp.pipelineFactory(root).Execute(ctx, run); err != nil {
				// Recorded in the run; the other roots keep going.
				bp.logger.Warn("check failed",
					"root", root,
					"error", err,
				)
			}
			callback(run, i)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Debug("batch processing complete",
		"total_roots", len(roots),
		"elapsed", time.Since(startTime),
	)
	return err
}
