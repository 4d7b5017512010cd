package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/linkchecker-service/internal/adapter/memory"
	"github.com/user/linkchecker-service/internal/entity"
	"go.uber.org/zap"
)

func newTestFeed(t *testing.T, repo *memory.ContentRepo, gen FeedGenerator) *DataFeedService {
	t.Helper()
	return NewDataFeedService(repo, gen, NewGridResourcesCache(), testFeedConfig(), newTestMetrics(), zap.NewNop())
}

func sampleRows() []entity.GridResource {
	return []entity.GridResource{
		brokenRow("/content/site/missing", entity.LinkInternal, 404, "/content/site/page/jcr:content/text", "text"),
		brokenRow("http://broken.example", entity.LinkExternal, 500, "/content/site/page/jcr:content/text", "text"),
	}
}

func TestGenerateDataFeed_WritesReport(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	feed := newTestFeed(t, repo, staticGenerator{res: &GenerationResult{
		Rows:  sampleRows(),
		Stats: entity.GenerationStats{SearchPath: "/content", ReportedRows: 2},
	}})
	require.NoError(t, feed.MarkPending(ctx))

	stats, err := feed.GenerateDataFeed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ReportedRows)

	pending, err := feed.IsPending(ctx)
	require.NoError(t, err)
	assert.False(t, pending)

	rows, err := feed.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleRows(), rows)

	stored, err := feed.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/content", stored.SearchPath)

	csv, err := feed.CSV(ctx)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csv)), "\r\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Link,Type,Code,Status Message,Page,Page Path,Component Name,Component Type,Property Location", lines[0])
	assert.Equal(t, "/content/site/missing,Internal,404,Not Found,page,/content/site/page,text,site/components/text,/content/site/page/jcr:content/text@text", lines[1])
}

func TestGenerateDataFeed_GeneratorFailureKeepsReport(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	ok := newTestFeed(t, repo, staticGenerator{res: &GenerationResult{Rows: sampleRows()}})
	_, err := ok.GenerateDataFeed(ctx)
	require.NoError(t, err)

	failing := newTestFeed(t, repo, staticGenerator{res: &GenerationResult{}, err: errors.New("unavailable")})
	_, err = failing.GenerateDataFeed(ctx)
	require.Error(t, err)

	rows, err := failing.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestReadAll_NoFeed(t *testing.T) {
	feed := newTestFeed(t, newTestRepo(t), staticGenerator{})

	rows, err := feed.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = feed.CSV(context.Background())
	assert.ErrorIs(t, err, ErrNoReport)
}

func TestReadAll_LegacyAndMalformedRecords(t *testing.T) {
	repo := newTestRepo(t, node(testDataRoot+"/data/datafeed.json", map[string]any{
		"data": `[
			{"resourcePath":"/content/a","propertyName":"text","href":"/content/b","type":"INTERNAL","statusMessage":"Not Found","resourceType":"","statusCode":"404"},
			{"resourcePath":"/content/a","propertyName":"text","href":"mailto:x","type":"Mailto","statusMessage":"Bad Request","statusCode":400},
			{"resourcePath":"/content/a","propertyName":"text","href":"http://x.example.com","type":"EXTERNAL","statusCode":"abc"},
			{"resourcePath":"/content/a","propertyName":"text","type":"EXTERNAL","statusCode":500}
		]`,
	}))
	feed := newTestFeed(t, repo, staticGenerator{})

	rows, err := feed.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, entity.NewInternalLink("/content/b"), rows[0].Link.Link)
	assert.Equal(t, 404, rows[0].Link.Status.Code)
	assert.Equal(t, entity.NewCustomLink("mailto:x", "Mailto"), rows[1].Link.Link)
	assert.Equal(t, 400, rows[1].Link.Status.Code)
}

func TestSearch_FilterAndPaging(t *testing.T) {
	ctx := context.Background()
	var rows []entity.GridResource
	for i := 0; i < 10; i++ {
		rows = append(rows, brokenRow(fmt.Sprintf("http://ext%d.example.com", i), entity.LinkExternal, 404, "/content/ext", "text"))
		rows = append(rows, brokenRow(fmt.Sprintf("/content/int%d", i), entity.LinkInternal, 404, "/content/int", "text"))
	}
	repo := newTestRepo(t)
	feed := newTestFeed(t, repo, staticGenerator{res: &GenerationResult{Rows: rows}})
	_, err := feed.GenerateDataFeed(ctx)
	require.NoError(t, err)

	page, err := feed.Search(ctx, entity.DataFilter{Type: "external"}, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, 10, page.Total)
	require.Len(t, page.Rows, 4)
	assert.Equal(t, "http://ext4.example.com", page.Rows[0].Link.Href)

	page, err = feed.Search(ctx, entity.DataFilter{Substring: "INT3"}, 1, 0)
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "/content/int3", page.Rows[0].Link.Href)
	assert.Equal(t, 500, page.Size)

	page, err = feed.Search(ctx, entity.DataFilter{}, 9, 4)
	require.NoError(t, err)
	assert.Empty(t, page.Rows)
	assert.Equal(t, 20, page.Total)
}

func TestSearch_HugePageIsEmpty(t *testing.T) {
	ctx := context.Background()
	feed := newTestFeed(t, newTestRepo(t), staticGenerator{res: &GenerationResult{Rows: sampleRows()}})
	_, err := feed.GenerateDataFeed(ctx)
	require.NoError(t, err)

	for _, pageNo := range []int{math.MaxInt / 2, math.MaxInt, 18446744073709553} {
		page, err := feed.Search(ctx, entity.DataFilter{}, pageNo, 0)
		require.NoError(t, err)
		assert.Empty(t, page.Rows)
		assert.Equal(t, 2, page.Total)
	}

	page, err := feed.Search(ctx, entity.DataFilter{}, 2, 1)
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "http://broken.example", page.Rows[0].Link.Href)
}

// gatedRepo holds the first read of one path until release is closed.
type gatedRepo struct {
	*memory.ContentRepo
	path    string
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (r *gatedRepo) GetNode(ctx context.Context, p string) (*entity.Node, error) {
	if p == r.path && r.armed.CompareAndSwap(true, false) {
		close(r.entered)
		<-r.release
	}
	return r.ContentRepo.GetNode(ctx, p)
}

func TestSearch_CacheFillDoesNotOverwriteDroppedRows(t *testing.T) {
	ctx := context.Background()
	repo := &gatedRepo{
		ContentRepo: newTestRepo(t),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	writer := newTestFeed(t, repo.ContentRepo, staticGenerator{res: &GenerationResult{Rows: sampleRows()}})
	_, err := writer.GenerateDataFeed(ctx)
	require.NoError(t, err)

	feed := NewDataFeedService(repo, staticGenerator{}, NewGridResourcesCache(), testFeedConfig(), nil, zap.NewNop())
	repo.path = feed.paths.feed
	repo.armed.Store(true)

	searched := make(chan error, 1)
	go func() {
		_, err := feed.Search(ctx, entity.DataFilter{}, 1, 0)
		searched <- err
	}()
	<-repo.entered

	dropped := make(chan error, 1)
	go func() {
		_, err := feed.DropRows(ctx, func(r entity.GridResource) bool { return r.Link.Kind == entity.LinkInternal })
		dropped <- err
	}()

	select {
	case <-dropped:
		t.Fatal("rows were dropped while the cache was being filled")
	case <-time.After(50 * time.Millisecond):
	}
	close(repo.release)
	require.NoError(t, <-searched)
	require.NoError(t, <-dropped)

	rows, err := feed.ReadLimited(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, entity.LinkExternal, rows[0].Link.Kind)
}

func TestReadLimited_UILimit(t *testing.T) {
	ctx := context.Background()
	var rows []entity.GridResource
	for i := 0; i < 7; i++ {
		rows = append(rows, brokenRow(fmt.Sprintf("/content/r%d", i), entity.LinkInternal, 404, "/content/a", "p"))
	}
	feed := NewDataFeedService(newTestRepo(t), staticGenerator{res: &GenerationResult{Rows: rows}}, NewGridResourcesCache(),
		testFeedConfigWithLimit(5), nil, zap.NewNop())
	_, err := feed.GenerateDataFeed(ctx)
	require.NoError(t, err)

	limited, err := feed.ReadLimited(ctx)
	require.NoError(t, err)
	assert.Len(t, limited, 5)

	all, err := feed.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 7)
}

func TestReadLimited_FillsCacheFromFeed(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	writer := newTestFeed(t, repo, staticGenerator{res: &GenerationResult{Rows: sampleRows()}})
	_, err := writer.GenerateDataFeed(ctx)
	require.NoError(t, err)

	// A fresh service starts with an empty cache.
	reader := newTestFeed(t, repo, staticGenerator{})
	_, ok := reader.cache.Get()
	require.False(t, ok)

	rows, err := reader.ReadLimited(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	_, ok = reader.cache.Get()
	assert.True(t, ok)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	feed := newTestFeed(t, repo, staticGenerator{res: &GenerationResult{Rows: sampleRows()}})
	_, err := feed.GenerateDataFeed(ctx)
	require.NoError(t, err)

	require.NoError(t, feed.Delete(ctx))

	rows, err := feed.ReadLimited(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
	_, err = feed.Stats(ctx)
	assert.ErrorIs(t, err, ErrNoReport)
}

func TestDropRows(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	feed := newTestFeed(t, repo, staticGenerator{res: &GenerationResult{Rows: sampleRows()}})
	_, err := feed.GenerateDataFeed(ctx)
	require.NoError(t, err)

	n, err := feed.DropRows(ctx, func(r entity.GridResource) bool { return r.Link.Kind == entity.LinkExternal })
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err := feed.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "/content/site/missing", rows[0].Link.Href)

	cached, ok := feed.cache.Get()
	require.True(t, ok)
	assert.Len(t, cached, 1)

	csv, err := feed.CSV(ctx)
	require.NoError(t, err)
	assert.NotContains(t, string(csv), "broken.example")
}

func TestCSVField(t *testing.T) {
	assert.Equal(t, "plain", csvField("plain"))
	assert.Equal(t, `"a;b"`, csvField("a;b"))
	assert.Equal(t, `"a,b"`, csvField("a,b"))
	assert.Equal(t, `"say ""hi"""`, csvField(`say "hi"`))
}

func TestGridResourcesCache_CopyOnSet(t *testing.T) {
	c := NewGridResourcesCache()
	rows := sampleRows()
	c.Set(rows)
	rows[0].ResourcePath = "/mutated"

	got, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, "/content/site/page/jcr:content/text", got[0].ResourcePath)

	c.Clear()
	_, ok = c.Get()
	assert.False(t, ok)
}
