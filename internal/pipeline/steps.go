package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/linkcheck/internal/linkgraph"
	"github.com/nao1215/linkcheck/internal/model"
	"github.com/nao1215/linkcheck/internal/validate"
)

// Step names, in execution order.
const (
	StepDiscover    = "discover"
	StepScan        = "scan_sources"
	StepMaterialize = "materialize_targets"
	StepBackfill    = "backfill_fragments"
	StepValidate    = "validate"
)

// DiscoverStep enumerates the source pages of the tree.
type DiscoverStep struct {
	graph *linkgraph.Graph
}

// NewDiscoverStep creates a discovery step over graph.
func NewDiscoverStep(graph *linkgraph.Graph) *DiscoverStep {
	return &DiscoverStep{graph: graph}
}

// Name returns the step name.
func (s *DiscoverStep) Name() string {
	return StepDiscover
}

// Do executes the discovery phase and records the source page count.
func (s *DiscoverStep) Do(ctx context.Context, run *model.Run) error {
	if err := s.graph.Discover(ctx); err != nil {
		return err
	}
	run.Counters.SourcePages = len(s.graph.Sources())
	return nil
}

// ScanStep collects the links and anchors of every source page.
type ScanStep struct {
	graph *linkgraph.Graph
}

// NewScanStep creates a source scan step over graph.
func NewScanStep(graph *linkgraph.Graph) *ScanStep {
	return &ScanStep{graph: graph}
}

// Name returns the step name.
func (s *ScanStep) Name() string {
	return StepScan
}

// Do executes the source scan phase.
func (s *ScanStep) Do(ctx context.Context, _ *model.Run) error {
	return s.graph.ScanSources(ctx)
}

// MaterializeStep loads every link destination once.
type MaterializeStep struct {
	graph *linkgraph.Graph
}

// NewMaterializeStep creates a target materialization step over graph.
func NewMaterializeStep(graph *linkgraph.Graph) *MaterializeStep {
	return &MaterializeStep{graph: graph}
}

// Name returns the step name.
func (s *MaterializeStep) Name() string {
	return StepMaterialize
}

// Do executes the materialization phase and records the target page count.
func (s *MaterializeStep) Do(ctx context.Context, run *model.Run) error {
	if err := s.graph.MaterializeTargets(ctx); err != nil {
		return err
	}
	run.Counters.TargetPages = s.graph.Registry().TargetCount()
	return nil
}

// BackfillStep extracts missing anchors of fragment targets.
type BackfillStep struct {
	graph *linkgraph.Graph
}

// NewBackfillStep creates a fragment backfill step over graph.
func NewBackfillStep(graph *linkgraph.Graph) *BackfillStep {
	return &BackfillStep{graph: graph}
}

// Name returns the step name.
func (s *BackfillStep) Name() string {
	return StepBackfill
}

// Do executes the backfill phase.
func (s *BackfillStep) Do(ctx context.Context, _ *model.Run) error {
	return s.graph.BackfillFragments(ctx)
}

// ValidateStep judges every link and copies the final registry into the run.
type ValidateStep struct {
	graph  *linkgraph.Graph
	logger *slog.Logger
}

// NewValidateStep creates a validation step over graph.
func NewValidateStep(graph *linkgraph.Graph, logger *slog.Logger) *ValidateStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ValidateStep{graph: graph, logger: logger}
}

// Name returns the step name.
func (s *ValidateStep) Name() string {
	return StepValidate
}

// Do validates the links and fills the link counters.
func (s *ValidateStep) Do(_ context.Context, run *model.Run) error {
	pages := s.graph.Registry().Pages()
	res := validate.Validate(pages, s.graph.Registry())

	run.Pages = pages
	run.Counters.LinksChecked = res.LinksChecked
	run.Counters.LinksBroken = res.LinksBroken

	s.logger.Info("links validated",
		"root", run.Root,
		"checked", res.LinksChecked,
		"broken", res.LinksBroken,
	)
	return nil
}

// DefaultPipeline creates the standard checking pipeline over graph:
// discovery, source scan, target materialization, fragment backfill and
// validation.
func DefaultPipeline(graph *linkgraph.Graph, opts ...Option) *Pipeline {
	p := New(opts...)
	p.AddSteps(
		NewDiscoverStep(graph),
		NewScanStep(graph),
		NewMaterializeStep(graph),
		NewBackfillStep(graph),
		NewValidateStep(graph, p.logger),
	)
	return p
}
