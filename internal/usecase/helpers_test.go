package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/user/linkchecker-service/internal/adapter/memory"
	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/pkg/config"
	"github.com/user/linkchecker-service/pkg/metrics"
)

const testDataRoot = "/var/linkchecker"

func newTestRepo(t *testing.T, nodes ...*entity.Node) *memory.ContentRepo {
	t.Helper()
	repo := memory.NewContentRepo()
	for _, n := range nodes {
		require.NoError(t, repo.PutNode(context.Background(), n))
	}
	return repo
}

func node(path string, props map[string]any) *entity.Node {
	return &entity.Node{Path: path, Properties: props}
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func testGeneratorConfig() config.GeneratorConfig {
	return config.GeneratorConfig{
		SearchPath:         "/content",
		ExcludedProperties: config.DefaultExcludedProperties,
		ExcludeTags:        true,
		ThreadsPerCore:     4,
	}
}

func testFeedConfig() config.FeedConfig {
	return config.FeedConfig{DataRoot: testDataRoot, UIItemsLimit: 500}
}

// fakeValidator resolves links from a fixed table and counts calls per link.
type fakeValidator struct {
	mu     sync.Mutex
	codes  map[string]int
	calls  map[entity.Link]int
	panics map[string]bool
}

func newFakeValidator(codes map[string]int) *fakeValidator {
	return &fakeValidator{codes: codes, calls: make(map[entity.Link]int), panics: make(map[string]bool)}
}

func (f *fakeValidator) Validate(_ context.Context, link entity.Link) entity.ResolvedLink {
	f.mu.Lock()
	f.calls[link]++
	shouldPanic := f.panics[link.Href]
	f.mu.Unlock()
	if shouldPanic {
		panic("validator exploded")
	}
	code, ok := f.codes[link.Href]
	if !ok {
		code = 200
	}
	return link.Resolve(entity.NewStatus(code))
}

func (f *fakeValidator) ValidateString(ctx context.Context, raw string) entity.ResolvedLink {
	return f.Validate(ctx, entity.NewExternalLink(raw))
}

func (f *fakeValidator) callsFor(link entity.Link) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[link]
}

// staticGenerator returns a fixed result.
type staticGenerator struct {
	res *GenerationResult
	err error
}

func (g staticGenerator) Generate(context.Context) (*GenerationResult, error) {
	return g.res, g.err
}

func brokenRow(href string, kind entity.LinkKind, code int, path, prop string) entity.GridResource {
	return entity.GridResource{
		Link:         entity.Link{Href: href, Kind: kind}.Resolve(entity.NewStatus(code)),
		ResourcePath: path,
		PropertyName: prop,
		ResourceType: "site/components/text",
	}
}

func testFeedConfigWithLimit(limit int) config.FeedConfig {
	cfg := testFeedConfig()
	cfg.UIItemsLimit = limit
	return cfg
}
