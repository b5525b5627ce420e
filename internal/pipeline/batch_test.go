package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/linkcheck/internal/model"
)

// TestNewBatchProcessor tests the BatchProcessor constructor.
func TestNewBatchProcessor(t *testing.T) {
	t.Parallel()

	t.Run("applies defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func(string) *Pipeline { return New() })
		if bp.concurrency != 4 {
			t.Errorf("expected default concurrency 4, got %d", bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func(string) *Pipeline { return New() }, WithConcurrency(0))
		if bp.concurrency != 4 {
			t.Errorf("expected default concurrency 4, got %d", bp.concurrency)
		}
	})
}

// collect runs the batch and returns the runs in input order.
func collect(ctx context.Context, bp *BatchProcessor, roots []string) ([]*model.Run, error) {
	var mu sync.Mutex
	runs := make([]*model.Run, len(roots))
	err := bp.ProcessBatchWithCallback(ctx, roots, func(run *model.Run, index int) {
		mu.Lock()
		defer mu.Unlock()
		runs[index] = run
	})
	return runs, err
}

// TestBatchProcessorProcessBatch tests batch processing.
func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("processes all roots in order", func(t *testing.T) {
		t.Parallel()

		opts := model.RunOptions{OnsiteOnly: true}
		bp := NewBatchProcessor(func(root string) *Pipeline {
			p := New(WithLogger(quietLogger()))
			p.AddStep(&mockStep{
				name: "record",
				doFunc: func(_ context.Context, run *model.Run) error {
					if run.Root != root {
						return errors.New("root mismatch")
					}
					return nil
				},
			})
			return p
		}, WithBatchLogger(quietLogger()), WithRunOptions(opts))

		roots := []string{"first", "second", "third"}
		runs, err := collect(context.Background(), bp, roots)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(runs) != 3 {
			t.Fatalf("expected 3 runs, got %d", len(runs))
		}

		ids := make(map[string]bool)
		for i, run := range runs {
			if run.Root != roots[i] {
				t.Errorf("run[%d]: got %q, expected %q", i, run.Root, roots[i])
			}
			if run.Failed() {
				t.Errorf("run[%d] failed: %s", i, run.ErrorMessage)
			}
			if !run.Options.OnsiteOnly {
				t.Errorf("run[%d]: options not copied", i)
			}
			if run.ID == "" || ids[run.ID] {
				t.Errorf("run[%d]: missing or duplicate id %q", i, run.ID)
			}
			ids[run.ID] = true
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var maxConcurrent atomic.Int32
		var currentConcurrent atomic.Int32
		var mu sync.Mutex

		bp := NewBatchProcessor(
			func(string) *Pipeline {
				p := New(WithLogger(quietLogger()))
				p.AddStep(&mockStep{
					name: "concurrent-counter",
					doFunc: func(context.Context, *model.Run) error {
						current := currentConcurrent.Add(1)

						mu.Lock()
						if current > maxConcurrent.Load() {
							maxConcurrent.Store(current)
						}
						mu.Unlock()

						time.Sleep(20 * time.Millisecond)

						currentConcurrent.Add(-1)
						return nil
					},
				})
				return p
			},
			WithConcurrency(2),
			WithBatchLogger(quietLogger()),
		)

		roots := make([]string, 8)
		for i := range roots {
			roots[i] = "doc"
		}

		if _, err := collect(context.Background(), bp, roots); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if maxConcurrent.Load() > 2 {
			t.Errorf("max concurrent was %d, expected <= 2", maxConcurrent.Load())
		}
	})

	t.Run("continues after individual failure", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func(root string) *Pipeline {
			p := New(WithLogger(quietLogger()))
			p.AddStep(&mockStep{
				name: "maybe-fail",
				doFunc: func(context.Context, *model.Run) error {
					if root == "bad" {
						return errors.New("broken tree")
					}
					return nil
				},
			})
			return p
		}, WithBatchLogger(quietLogger()))

		runs, err := collect(context.Background(), bp, []string{"good", "bad", "also-good"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if runs[0].Failed() || !runs[1].Failed() || runs[2].Failed() {
			t.Errorf("unexpected failure states: %v %v %v", runs[0].Failed(), runs[1].Failed(), runs[2].Failed())
		}
	})
}

// TestBatchProcessorCancelled tests that roots are skipped once the batch
// is cancelled.
func TestBatchProcessorCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bp := NewBatchProcessor(func(string) *Pipeline {
		p := New(WithLogger(quietLogger()))
		p.AddStep(&mockStep{name: "noop"})
		return p
	}, WithBatchLogger(quietLogger()), WithConcurrency(1))

	var calls atomic.Int32
	err := bp.ProcessBatchWithCallback(ctx, []string{"a", "b"}, func(*model.Run, int) {
		calls.Add(1)
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no callbacks, got %d", calls.Load())
	}
}
