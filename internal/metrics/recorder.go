package metrics

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/nao1215/linkcheck/internal/model"
)

const namespace = "linkcheck"

// Run outcome labels.
const (
	OutcomeClean  = "clean"
	OutcomeBroken = "broken"
	OutcomeFailed = "failed"
)

// Recorder collects metrics into its own registry. A nil *Recorder
// records nothing.
type Recorder struct {
	once          sync.Once
	registry      *prom.Registry
	runs          *prom.CounterVec
	runDuration   prom.Histogram
	pages         *prom.GaugeVec
	links         *prom.CounterVec
	fetches       *prom.CounterVec
	fetchDuration prom.Histogram
}

// NewRecorder constructs the metrics and registers them in reg.
// A nil reg is replaced by a fresh registry.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{registry: reg}
	r.once.Do(func() {
		r.runs = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Checking runs by outcome",
		}, []string{"outcome"})
		r.runDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of checking runs",
			Buckets:   prom.DefBuckets,
		})
		r.pages = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "pages",
			Help:      "Pages in the registry of the last run by origin",
		}, []string{"origin"})
		r.links = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "links_total",
			Help:      "Checked links by validity",
		}, []string{"validity"})
		r.fetches = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Remote fetches by result",
		}, []string{"result"})
		r.fetchDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of remote fetches",
			Buckets:   prom.DefBuckets,
		})
		reg.MustRegister(r.runs, r.runDuration, r.pages, r.links, r.fetches, r.fetchDuration)
	})
	return r
}

// Registry returns the registry the metrics are registered in.
func (r *Recorder) Registry() *prom.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveFetch records one remote fetch. The result label is the status
// class ("2xx", "4xx", ...) or the transport failure kind.
func (r *Recorder) ObserveFetch(_ string, status int, fetchErr *model.FetchError, elapsed time.Duration) {
	if r == nil || r.fetches == nil {
		return
	}
	r.fetches.WithLabelValues(fetchResult(status, fetchErr)).Inc()
	r.fetchDuration.Observe(elapsed.Seconds())
}

func fetchResult(status int, fetchErr *model.FetchError) string {
	if fetchErr != nil {
		return string(fetchErr.Kind)
	}
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// ObserveRun records a finished run.
func (r *Recorder) ObserveRun(run *model.Run) {
	if r == nil || r.runs == nil || run == nil {
		return
	}

	outcome := OutcomeClean
	switch {
	case run.Failed():
		outcome = OutcomeFailed
	case run.Counters.LinksBroken > 0:
		outcome = OutcomeBroken
	}
	r.runs.WithLabelValues(outcome).Inc()
	r.runDuration.Observe(run.Counters.Elapsed().Seconds())

	r.pages.WithLabelValues(model.OriginSource.String()).Set(float64(run.Counters.SourcePages))
	r.pages.WithLabelValues(model.OriginTarget.String()).Set(float64(run.Counters.TargetPages))

	valid := run.Counters.LinksChecked - run.Counters.LinksBroken
	r.links.WithLabelValues(model.ValidityValid.String()).Add(float64(valid))
	r.links.WithLabelValues(model.ValidityInvalid.String()).Add(float64(run.Counters.LinksBroken))
}

// WriteTextfile writes the current metric values to path in the
// Prometheus text format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prom.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
