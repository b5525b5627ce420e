package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/linkcheck/internal/model"
)

// Step is one stage of a checking run.
type Step interface {
	// Do executes the step against run. A returned error aborts the run
	// unless the pipeline continues on error. Per-link problems are data
	// and are never returned.
	Do(ctx context.Context, run *model.Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// now returns the current time; replaced in tests.
	now func() time.Time
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence and stamps the run start and end
// times. Cancellation is checked between steps; steps handle it within
// themselves.
//
// The first failing step aborts the run; its error is recorded in the run
// and returned.
func (p *Pipeline) Execute(ctx context.Context, run *model.Run) error {
	if run.Counters.StartTime.IsZero() {
		run.Counters.StartTime = p.now()
	}
	defer func() {
		run.Counters.EndTime = p.now()
	}()

	p.logger.Debug("executing pipeline",
		"root", run.Root,
		"steps", p.StepNames(),
	)

	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			run.SetError(ctx.Err())
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"root", run.Root,
		)

		if err := step.Do(ctx, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"root", run.Root,
				"error", err,
			)
			run.SetError(err)
			return err
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"root", run.Root,
		)
	}

	return nil
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
