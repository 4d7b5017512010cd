package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/repository"
	"github.com/user/linkchecker-service/pkg/config"
	"github.com/user/linkchecker-service/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LinkValidator resolves a link to its terminal status.
type LinkValidator interface {
	Validate(ctx context.Context, link entity.Link) entity.ResolvedLink
}

// GenerationResult is the outcome of one generation run.
type GenerationResult struct {
	Rows  []entity.GridResource
	Stats entity.GenerationStats
}

// Generator runs the tree walk and validates every distinct link it found.
type Generator struct {
	repo        repository.ContentRepository
	scanner     *Scanner
	validator   LinkValidator
	cfg         config.GeneratorConfig
	opts        ScanOptions
	concurrency int
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewGenerator compiles the generator settings. The worker pool size is the
// number of CPUs times cfg.ThreadsPerCore.
func NewGenerator(
	repo repository.ContentRepository,
	scanner *Scanner,
	validator LinkValidator,
	cfg config.GeneratorConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) (*Generator, error) {
	opts, err := NewScanOptions(cfg)
	if err != nil {
		return nil, err
	}
	threads := cfg.ThreadsPerCore
	if threads <= 0 {
		threads = 1
	}
	return &Generator{
		repo:        repo,
		scanner:     scanner,
		validator:   validator,
		cfg:         cfg,
		opts:        opts,
		concurrency: runtime.NumCPU() * threads,
		metrics:     m,
		logger:      logger,
	}, nil
}

// Generate collects the broken links below the search path, sorted by href.
// An unreachable repository aborts the run with ErrRepositoryUnavailable; a
// missing search path yields an empty result.
func (g *Generator) Generate(ctx context.Context) (*GenerationResult, error) {
	start := time.Now()
	res := &GenerationResult{Stats: g.newStats(start)}

	if err := g.repo.Ping(ctx); err != nil {
		g.logger.Warn("content repository is unavailable, generation is stopped", zap.Error(err))
		if errors.Is(err, repository.ErrRepositoryUnavailable) {
			return res, err
		}
		return res, fmt.Errorf("%w: %v", repository.ErrRepositoryUnavailable, err)
	}

	g.logger.Debug("start broken links collecting", zap.String("path", g.cfg.SearchPath))
	scan, err := g.scanner.Scan(ctx, g.cfg.SearchPath, g.opts)
	if errors.Is(err, repository.ErrNodeNotFound) {
		g.logger.Warn("search path does not exist, generation is stopped", zap.String("path", g.cfg.SearchPath))
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("scan %s: %w", g.cfg.SearchPath, err)
	}
	res.Stats.TraversedNodes = scan.TraversedNodes
	g.logger.Debug("traversal is completed",
		zap.String("path", g.cfg.SearchPath),
		zap.Int("traversed_nodes", scan.TraversedNodes),
		zap.Int("distinct_links", len(scan.Links)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if len(scan.Links) == 0 {
		g.logger.Warn("no links were found after traversing", zap.String("path", g.cfg.SearchPath))
	} else {
		rows, checked, broken := g.ValidateAll(ctx, scan.Links, scan.ResourceTypes)
		res.Rows = rows
		res.Stats.CheckedLinks = checked
		res.Stats.BrokenLinks = broken
	}

	res.Stats.ReportedRows = len(res.Rows)
	res.Stats.DurationMS = time.Since(start).Milliseconds()
	g.logger.Info("collecting broken links is completed",
		zap.String("path", g.cfg.SearchPath),
		zap.Int("rows", len(res.Rows)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// ValidateAll validates each distinct link exactly once on a bounded pool and
// returns a row for every location of every broken link whose code is allowed.
// It returns after all validations have finished.
func (g *Generator) ValidateAll(
	ctx context.Context,
	links map[entity.Link][]entity.Location,
	resourceTypes map[string]string,
) ([]entity.GridResource, entity.LinksCount, entity.LinksCount) {
	var (
		checked linksCounter
		broken  linksCounter
		mu      sync.Mutex
		rows    []entity.GridResource
		eg      errgroup.Group
	)
	eg.SetLimit(g.concurrency)

	for link, locations := range links {
		checked.count(link)
		eg.Go(func() error {
			resolved := g.validate(ctx, link)
			if resolved.Status.IsValid() {
				return nil
			}
			broken.count(link)
			if !isAllowedErrorCode(g.cfg.AllowedStatusCodes, resolved.Status.Code) {
				return nil
			}
			batch := make([]entity.GridResource, 0, len(locations))
			for _, loc := range locations {
				batch = append(batch, entity.GridResource{
					Link:         resolved,
					ResourcePath: loc.ResourcePath,
					PropertyName: loc.PropertyName,
					ResourceType: resourceTypes[loc.ResourcePath],
				})
			}
			mu.Lock()
			rows = append(rows, batch...)
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	sortRows(rows)
	c, b := checked.snapshot(), broken.snapshot()
	g.observe(c, b)
	g.logger.Debug("links validation is completed",
		zap.Int64("checked_internal", c.Internal),
		zap.Int64("checked_external", c.External),
		zap.Int64("checked_custom", c.Custom),
		zap.Int64("broken_internal", b.Internal),
		zap.Int64("broken_external", b.External),
		zap.Int64("broken_custom", b.Custom),
	)
	return rows, c, b
}

// validate turns a panic inside one validation into a 500 for that link only.
func (g *Generator) validate(ctx context.Context, link entity.Link) (resolved entity.ResolvedLink) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("link validation panicked", zap.String("href", link.Href), zap.Any("panic", r))
			resolved = link.Resolve(entity.Status{
				Code:    http.StatusInternalServerError,
				Message: fmt.Sprint(r),
			})
		}
	}()
	return g.validator.Validate(ctx, link)
}

func (g *Generator) observe(checked, broken entity.LinksCount) {
	if g.metrics == nil {
		return
	}
	for kind, n := range map[string]int64{"internal": checked.Internal, "external": checked.External, "custom": checked.Custom} {
		g.metrics.LinksCheckedTotal.WithLabelValues(kind).Add(float64(n))
	}
	for kind, n := range map[string]int64{"internal": broken.Internal, "external": broken.External, "custom": broken.Custom} {
		g.metrics.LinksBrokenTotal.WithLabelValues(kind).Add(float64(n))
	}
}

func (g *Generator) newStats(start time.Time) entity.GenerationStats {
	return entity.GenerationStats{
		LastGenerated:        start.UTC(),
		SearchPath:           g.cfg.SearchPath,
		ExcludedPaths:        g.cfg.ExcludedPaths,
		ExcludedProperties:   g.cfg.ExcludedProperties,
		ExcludedLinkPatterns: g.cfg.ExcludedLinkPatterns,
		ExcludedSites:        g.cfg.ExcludedSites,
		ExcludeTags:          g.cfg.ExcludeTags,
		LastModifiedBoundary: g.cfg.LastModifiedBoundary,
		AllowedStatusCodes:   g.cfg.AllowedStatusCodes,
	}
}

// isAllowedErrorCode reports whether a broken link with code goes to the
// report. An empty list or a single negative value allows every code.
func isAllowedErrorCode(allowed []int, code int) bool {
	if len(allowed) == 0 || (len(allowed) == 1 && allowed[0] < 0) {
		return true
	}
	for _, c := range allowed {
		if c == code {
			return true
		}
	}
	return false
}

func sortRows(rows []entity.GridResource) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Link.Href != b.Link.Href {
			return a.Link.Href < b.Link.Href
		}
		if a.ResourcePath != b.ResourcePath {
			return a.ResourcePath < b.ResourcePath
		}
		return a.PropertyName < b.PropertyName
	})
}

// linksCounter counts distinct links per kind from many goroutines.
type linksCounter struct {
	internal atomic.Int64
	external atomic.Int64
	custom   atomic.Int64
}

func (c *linksCounter) count(link entity.Link) {
	switch link.Kind {
	case entity.LinkInternal:
		c.internal.Add(1)
	case entity.LinkExternal:
		c.external.Add(1)
	default:
		c.custom.Add(1)
	}
}

func (c *linksCounter) snapshot() entity.LinksCount {
	return entity.LinksCount{
		Internal: c.internal.Load(),
		External: c.external.Load(),
		Custom:   c.custom.Load(),
	}
}
