package linkgraph

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/linkcheck/internal/anchor"
	"github.com/nao1215/linkcheck/internal/fetcher"
	"github.com/nao1215/linkcheck/internal/linkpath"
	"github.com/nao1215/linkcheck/internal/model"
)

const (
	// TableOfContentsPage is the aggregation page whose outbound links are
	// skipped when the run is configured with NoTOC.
	TableOfContentsPage = "table_of_contents.html"

	// sourceSuffix selects the documents enumerated as sources.
	sourceSuffix = ".html"

	// htmlContentType is recorded for local source pages.
	htmlContentType = "text/html"
)

// Fetcher retrieves remote documents.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Response, error)
}

// Observer is notified of every remote fetch. Implementations must be safe
// for concurrent use.
type Observer interface {
	ObserveFetch(url string, status int, fetchErr *model.FetchError, elapsed time.Duration)
}

// Graph builds the link graph of one document tree.
type Graph struct {
	fsys     fs.FS
	registry *Registry
	fetcher  Fetcher
	observer Observer
	logger   *slog.Logger

	onsiteOnly  bool
	noTOC       bool
	includes    []*regexp.Regexp
	excludes    []*regexp.Regexp
	concurrency int

	// sources holds the source page paths in sorted order.
	sources []string

	// bodies retains usable remote documents until BackfillFragments.
	bodiesMu sync.Mutex
	bodies   map[string][]byte
}

// Option configures a Graph.
type Option func(*Graph)

// WithFetcher sets the fetcher used for off-site targets.
func WithFetcher(f Fetcher) Option {
	return func(g *Graph) {
		if f != nil {
			g.fetcher = f
		}
	}
}

// WithObserver sets the fetch observer.
func WithObserver(o Observer) Option {
	return func(g *Graph) {
		g.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithOnsiteOnly skips off-site links entirely.
func WithOnsiteOnly(onsiteOnly bool) Option {
	return func(g *Graph) {
		g.onsiteOnly = onsiteOnly
	}
}

// WithNoTOC skips the outbound links of the table of contents page.
func WithNoTOC(noTOC bool) Option {
	return func(g *Graph) {
		g.noTOC = noTOC
	}
}

// WithIncludes restricts discovery to paths matching at least one pattern.
func WithIncludes(patterns []*regexp.Regexp) Option {
	return func(g *Graph) {
		g.includes = patterns
	}
}

// WithExcludes drops discovered paths matching any pattern.
func WithExcludes(patterns []*regexp.Regexp) Option {
	return func(g *Graph) {
		g.excludes = patterns
	}
}

// WithConcurrency sets how many targets are materialized in parallel.
// Values below 1 mean sequential.
func WithConcurrency(n int) Option {
	return func(g *Graph) {
		g.concurrency = max(n, 1)
	}
}

// New creates a Graph over the document tree fsys.
func New(fsys fs.FS, opts ...Option) *Graph {
	g := &Graph{
		fsys:        fsys,
		registry:    NewRegistry(),
		logger:      slog.New(slog.DiscardHandler),
		concurrency: 1,
		bodies:      make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.fetcher == nil {
		g.fetcher = fetcher.New(nil, fetcher.WithLogger(g.logger))
	}
	return g
}

// Registry returns the page registry.
func (g *Graph) Registry() *Registry {
	return g.registry
}

// Sources returns the source page paths in sorted order.
func (g *Graph) Sources() []string {
	return g.sources
}

// Build runs all four phases in order.
func (g *Graph) Build(ctx context.Context) error {
	phases := []func(context.Context) error{
		g.Discover,
		g.ScanSources,
		g.MaterializeTargets,
		g.BackfillFragments,
	}
	for _, phase := range phases {
		if err := phase(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Discover enumerates the *.html documents of the tree and registers them
// as source pages.
func (g *Graph) Discover(ctx context.Context) error {
	var paths []string
	err := fs.WalkDir(g.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !strings.HasSuffix(p, sourceSuffix) {
			return nil
		}
		if !g.selected(p) {
			g.logger.Debug("source omitted", slog.String("path", p))
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to enumerate documents: %w", err)
	}

	sort.Strings(paths)
	for _, p := range paths {
		page, _ := g.registry.Claim(p, model.OriginSource)
		page.ContentType = htmlContentType
		page.Found = true
	}
	g.sources = paths

	g.logger.Debug("discovery complete", slog.Int("sources", len(paths)))
	return nil
}

// selected applies the include and exclude patterns.
func (g *Graph) selected(p string) bool {
	if len(g.includes) > 0 && !matchAny(g.includes, p) {
		return false
	}
	return !matchAny(g.excludes, p)
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// ScanSources parses every source page once, collecting its outbound links
// and its anchors. A link whose relative path climbs above the root aborts
// the scan with a *linkpath.ResolutionError.
func (g *Graph) ScanSources(ctx context.Context) error {
	for _, p := range g.sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, ok := g.registry.Get(p)
		if !ok {
			continue
		}
		if err := g.scanSource(page); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) scanSource(page *model.Page) error {
	data, err := fs.ReadFile(g.fsys, page.Path)
	if err != nil {
		return fmt.Errorf("failed to read source %s: %w", page.Path, err)
	}
	doc, err := parseBytes(data)
	if err != nil {
		return fmt.Errorf("%s: %w", page.Path, err)
	}

	if g.noTOC && page.Path == TableOfContentsPage {
		g.logger.Debug("table of contents links skipped", slog.String("path", page.Path))
	} else if err := g.gatherLinks(page, ExtractLinks(doc)); err != nil {
		return err
	}
	anchor.Gather(page, doc)

	g.logger.Debug("source scanned",
		slog.String("path", page.Path),
		slog.Int("links", len(page.Links)),
		slog.Int("anchors", page.AnchorCount()),
	)
	return nil
}

func (g *Graph) gatherLinks(page *model.Page, raw []RawLink) error {
	originDir := linkpath.Dir(page.Path)
	for _, r := range raw {
		if g.onsiteOnly && linkpath.Offsite(r.Href) {
			continue
		}
		if !linkpath.Checkable(r.Href) {
			continue
		}
		target, fragment, hasFragment := linkpath.SplitFragment(r.Href)
		if target == "" {
			// Same-page "#fragment" references are not links.
			continue
		}
		resolved, err := linkpath.Resolve(originDir, target)
		if err != nil {
			return fmt.Errorf("%s: %w", page.Path, err)
		}
		page.Links = append(page.Links, model.NewLink(r.Href, r.Text, resolved, fragment, hasFragment))
	}
	return nil
}

// MaterializeTargets registers a page for every link destination not yet
// in the registry and loads it. Every distinct destination is loaded once,
// even with several workers.
func (g *Graph) MaterializeTargets(ctx context.Context) error {
	var links []*model.Link
	for _, p := range g.sources {
		page, ok := g.registry.Get(p)
		if !ok {
			continue
		}
		links = append(links, page.Links...)
	}

	if g.concurrency <= 1 {
		for _, link := range links {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := g.materialize(ctx, link); err != nil {
				return err
			}
		}
		return nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for _, link := range links {
		eg.Go(func() error {
			return g.materialize(egCtx, link)
		})
	}
	return eg.Wait()
}

// materialize claims the link destination and loads it when this call
// created the page.
func (g *Graph) materialize(ctx context.Context, link *model.Link) error {
	page, created := g.registry.Claim(link.TargetPath, model.OriginTarget)
	if !created {
		return nil
	}

	if linkpath.Offsite(page.Path) {
		return g.fetchTarget(ctx, page, link)
	}

	data, err := g.readLocal(page.Path)
	if err != nil {
		g.logger.Debug("target not readable",
			slog.String("path", page.Path),
			slog.String("error", err.Error()),
		)
		return nil
	}
	g.loadLocal(page, data)
	return nil
}

// readLocal reads a document of the tree. Paths fs.FS cannot address,
// such as those containing ".." elements, are unreadable.
func (g *Graph) readLocal(p string) ([]byte, error) {
	if !fs.ValidPath(p) {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrInvalid}
	}
	return fs.ReadFile(g.fsys, p)
}

// loadLocal records a readable local target and extracts its anchors when
// it is HTML.
func (g *Graph) loadLocal(page *model.Page, data []byte) {
	page.Found = true
	page.ContentType = localContentType(page.Path, data)
	if !page.IsHTML() {
		return
	}
	doc, err := parseBytes(data)
	if err != nil {
		g.logger.Warn("failed to parse target", slog.String("path", page.Path), slog.String("error", err.Error()))
		return
	}
	anchor.Gather(page, doc)
}

// localContentType guesses the content type of a local file from its
// extension, then from its bytes.
func localContentType(p string, data []byte) string {
	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

// fetchTarget fetches an off-site target. A transport failure is recorded
// on the page and on the link that triggered the fetch.
func (g *Graph) fetchTarget(ctx context.Context, page *model.Page, link *model.Link) error {
	start := time.Now()
	resp, err := g.fetcher.Fetch(ctx, page.Path)
	elapsed := time.Since(start)

	if err != nil {
		var fetchErr *model.FetchError
		if !errors.As(err, &fetchErr) {
			return fmt.Errorf("failed to fetch %s: %w", page.Path, err)
		}
		page.FetchError = fetchErr
		link.MarkFetchFailed(fetchErr)
		g.observe(page.Path, 0, fetchErr, elapsed)
		g.logger.Info("fetch failed",
			slog.String("url", page.Path),
			slog.String("kind", string(fetchErr.Kind)),
		)
		return nil
	}

	page.HTTPStatus = resp.StatusCode
	page.ContentType = resp.ContentType
	page.Found = true
	g.observe(page.Path, resp.StatusCode, nil, elapsed)

	if !resp.Usable() {
		return nil
	}

	g.bodiesMu.Lock()
	g.bodies[page.Path] = resp.Body
	g.bodiesMu.Unlock()

	doc, err := parseBytes(resp.Body)
	if err != nil {
		g.logger.Warn("failed to parse target", slog.String("url", page.Path), slog.String("error", err.Error()))
		return nil
	}
	anchor.Gather(page, doc)
	return nil
}

func (g *Graph) observe(url string, status int, fetchErr *model.FetchError, elapsed time.Duration) {
	if g.observer != nil {
		g.observer.ObserveFetch(url, status, fetchErr, elapsed)
	}
}

// BackfillFragments extracts anchors for HTML targets that are referenced
// with a fragment but were registered without their anchors. Retained
// remote documents are released afterwards.
func (g *Graph) BackfillFragments(ctx context.Context) error {
	defer func() {
		g.bodiesMu.Lock()
		clear(g.bodies)
		g.bodiesMu.Unlock()
	}()

	for _, p := range g.sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		source, ok := g.registry.Get(p)
		if !ok {
			continue
		}
		for _, link := range source.Links {
			if !link.HasFragment {
				continue
			}
			target, ok := g.registry.Get(link.TargetPath)
			if !ok || target.AnchorsGathered() || !target.Found || !target.IsHTML() {
				continue
			}
			g.backfill(target)
		}
	}
	return nil
}

func (g *Graph) backfill(page *model.Page) {
	var data []byte
	if linkpath.Offsite(page.Path) {
		g.bodiesMu.Lock()
		body, ok := g.bodies[page.Path]
		g.bodiesMu.Unlock()
		if !ok {
			return
		}
		data = body
	} else {
		local, err := g.readLocal(page.Path)
		if err != nil {
			return
		}
		data = local
	}

	doc, err := parseBytes(data)
	if err != nil {
		return
	}
	if anchor.Gather(page, doc) {
		g.logger.Debug("anchors backfilled",
			slog.String("path", page.Path),
			slog.Int("anchors", page.AnchorCount()),
		)
	}
}
