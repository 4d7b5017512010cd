package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/repository"
	"github.com/user/linkchecker-service/pkg/config"
	"github.com/user/linkchecker-service/pkg/metrics"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	propData     = "data"
	propMimeType = "jcr:mimeType"
)

// ErrNoReport is returned when no report has been generated yet.
var ErrNoReport = errors.New("report has not been generated")

// FeedGenerator produces the rows of a new data feed.
type FeedGenerator interface {
	Generate(ctx context.Context) (*GenerationResult, error)
}

// feedPaths are the repository nodes holding the report. They live under the
// data root, outside the scanned content.
type feedPaths struct {
	feed    string
	csv     string
	stats   string
	pending string
}

func newFeedPaths(root string) feedPaths {
	return feedPaths{
		feed:    root + "/data/datafeed.json",
		csv:     root + "/download/report.csv",
		stats:   root + "/data/stats",
		pending: root + "/data/pending",
	}
}

// GridPage is one page of report rows.
type GridPage struct {
	Rows  []entity.GridResource
	Total int
	Page  int
	Size  int
}

// DataFeedService persists the broken links report and serves it back.
type DataFeedService struct {
	repo      repository.ContentRepository
	generator FeedGenerator
	cache     *GridResourcesCache
	paths     feedPaths
	uiLimit   int
	metrics   *metrics.Metrics
	logger    *zap.Logger

	// mu serializes feed rewrites.
	mu sync.Mutex
}

func NewDataFeedService(
	repo repository.ContentRepository,
	generator FeedGenerator,
	cache *GridResourcesCache,
	cfg config.FeedConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *DataFeedService {
	return &DataFeedService{
		repo:      repo,
		generator: generator,
		cache:     cache,
		paths:     newFeedPaths(cfg.DataRoot),
		uiLimit:   cfg.UIItemsLimit,
		metrics:   m,
		logger:    logger,
	}
}

// GenerateDataFeed runs a generation and replaces the stored report with its
// result. On failure the previous report is left as it was, unless the write
// itself failed after the old feed was deleted.
func (s *DataFeedService) GenerateDataFeed(ctx context.Context) (*entity.GenerationStats, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.GenerationDuration.Observe(time.Since(start).Seconds())
		}
	}()

	res, err := s.generator.Generate(ctx)
	if err != nil {
		s.countGeneration("aborted")
		return nil, fmt.Errorf("generate data feed: %w", err)
	}
	if err := s.write(ctx, res.Rows, res.Stats); err != nil {
		s.logger.Error("failed to persist data feed", zap.Error(err))
		s.countGeneration("persist_failed")
		return nil, fmt.Errorf("persist data feed: %w", err)
	}
	s.countGeneration("completed")
	s.logger.Info("data feed is generated",
		zap.Int("rows", len(res.Rows)),
		zap.Int64("broken_links", res.Stats.BrokenLinks.Total()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &res.Stats, nil
}

func (s *DataFeedService) countGeneration(outcome string) {
	if s.metrics != nil {
		s.metrics.GenerationsTotal.WithLabelValues(outcome).Inc()
	}
}

// write replaces the feed, the CSV report and the stats, then clears the
// pending marker and refreshes the UI cache.
func (s *DataFeedService) write(ctx context.Context, rows []entity.GridResource, stats entity.GenerationStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.DeleteNode(ctx, s.paths.feed); err != nil {
		return fmt.Errorf("delete previous feed: %w", err)
	}
	if err := s.writeRows(ctx, rows); err != nil {
		return err
	}
	rawStats, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	if err := s.repo.PutNode(ctx, &entity.Node{
		Path:       s.paths.stats,
		Properties: map[string]any{propData: string(rawStats), propMimeType: "application/json"},
	}); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}
	if err := s.repo.DeleteNode(ctx, s.paths.pending); err != nil {
		return fmt.Errorf("clear pending marker: %w", err)
	}
	return nil
}

// writeRows stores the feed and the CSV built from rows. Callers hold s.mu.
func (s *DataFeedService) writeRows(ctx context.Context, rows []entity.GridResource) error {
	raw, err := encodeFeed(rows)
	if err != nil {
		return fmt.Errorf("encode feed: %w", err)
	}
	if err := s.repo.PutNode(ctx, &entity.Node{
		Path:       s.paths.feed,
		Properties: map[string]any{propData: string(raw), propMimeType: "application/json"},
	}); err != nil {
		return fmt.Errorf("write feed: %w", err)
	}
	if err := s.repo.PutNode(ctx, &entity.Node{
		Path:       s.paths.csv,
		Properties: map[string]any{propData: string(BuildCSVReport(rows)), propMimeType: "text/csv"},
	}); err != nil {
		return fmt.Errorf("write csv report: %w", err)
	}
	s.cache.Set(rows)
	if s.metrics != nil {
		s.metrics.BrokenRows.Set(float64(len(rows)))
	}
	return nil
}

// ReadAll returns every row of the stored feed. A missing feed is an empty report.
func (s *DataFeedService) ReadAll(ctx context.Context) ([]entity.GridResource, error) {
	raw, err := s.readData(ctx, s.paths.feed)
	if errors.Is(err, ErrNoReport) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeFeed([]byte(raw), s.logger)
}

// ReadLimited returns at most the UI limit of rows, served from the cache.
func (s *DataFeedService) ReadLimited(ctx context.Context) ([]entity.GridResource, error) {
	rows, err := s.cached(ctx)
	if err != nil {
		return nil, err
	}
	return s.bound(rows), nil
}

// Search filters the UI rows and returns the requested 1-based page. A
// non-positive size means the whole UI limit.
func (s *DataFeedService) Search(ctx context.Context, filter entity.DataFilter, page, size int) (*GridPage, error) {
	rows, err := s.cached(ctx)
	if err != nil {
		return nil, err
	}
	if !filter.IsEmpty() {
		matched := make([]entity.GridResource, 0, len(rows))
		for _, r := range rows {
			if filter.Matches(r) {
				matched = append(matched, r)
			}
		}
		rows = matched
	}
	rows = s.bound(rows)

	if page < 1 {
		page = 1
	}
	if size <= 0 || size > s.uiLimit {
		size = s.uiLimit
	}
	from := len(rows)
	if page-1 <= len(rows)/size {
		from = min((page-1)*size, len(rows))
	}
	to := from + size
	if to > len(rows) {
		to = len(rows)
	}
	return &GridPage{Rows: rows[from:to], Total: len(rows), Page: page, Size: size}, nil
}

func (s *DataFeedService) cached(ctx context.Context) ([]entity.GridResource, error) {
	if rows, ok := s.cache.Get(); ok {
		return rows, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// A rewrite may have filled the cache while we waited for the lock.
	if rows, ok := s.cache.Get(); ok {
		return rows, nil
	}
	rows, err := s.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(rows)
	return rows, nil
}

func (s *DataFeedService) bound(rows []entity.GridResource) []entity.GridResource {
	if len(rows) > s.uiLimit {
		return rows[:s.uiLimit]
	}
	return rows
}

// CSV returns the stored CSV report.
func (s *DataFeedService) CSV(ctx context.Context) ([]byte, error) {
	raw, err := s.readData(ctx, s.paths.csv)
	if err != nil {
		return nil, err
	}
	return []byte(raw), nil
}

// Stats returns the stats of the last generation.
func (s *DataFeedService) Stats(ctx context.Context) (*entity.GenerationStats, error) {
	raw, err := s.readData(ctx, s.paths.stats)
	if err != nil {
		return nil, err
	}
	var stats entity.GenerationStats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return &stats, nil
}

func (s *DataFeedService) readData(ctx context.Context, p string) (string, error) {
	node, err := s.repo.GetNode(ctx, p)
	if errors.Is(err, repository.ErrNodeNotFound) {
		return "", ErrNoReport
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", p, err)
	}
	raw, ok := node.StringProperty(propData)
	if !ok {
		return "", ErrNoReport
	}
	return raw, nil
}

// Delete removes the report and empties the UI cache.
func (s *DataFeedService) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for _, p := range []string{s.paths.feed, s.paths.csv, s.paths.stats} {
		err = multierr.Append(err, s.repo.DeleteNode(ctx, p))
	}
	s.cache.Clear()
	if s.metrics != nil {
		s.metrics.BrokenRows.Set(0)
	}
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	s.logger.Info("report is deleted")
	return nil
}

// IsPending reports whether the content changed since the last generation.
func (s *DataFeedService) IsPending(ctx context.Context) (bool, error) {
	return s.repo.Exists(ctx, s.paths.pending)
}

// MarkPending flags the report as stale.
func (s *DataFeedService) MarkPending(ctx context.Context) error {
	return s.repo.PutNode(ctx, &entity.Node{Path: s.paths.pending})
}

// DropRows removes the rows matched by drop from the stored feed, the CSV
// report and the UI cache. It returns the number of removed rows.
func (s *DataFeedService) DropRows(ctx context.Context, drop func(entity.GridResource) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.ReadAll(ctx)
	if err != nil {
		return 0, err
	}
	kept := make([]entity.GridResource, 0, len(rows))
	for _, r := range rows {
		if !drop(r) {
			kept = append(kept, r)
		}
	}
	dropped := len(rows) - len(kept)
	if dropped == 0 {
		return 0, nil
	}
	if err := s.writeRows(ctx, kept); err != nil {
		return 0, err
	}
	return dropped, nil
}
