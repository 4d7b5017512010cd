package usecase

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/linkchecker-service/internal/adapter/memory"
	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/linkcheck"
	"go.uber.org/zap"
)

type fixerFixture struct {
	repo  *memory.ContentRepo
	feed  *DataFeedService
	fixer *LinkFixer
	v     *fakeValidator
}

func newFixerFixture(t *testing.T, rows []entity.GridResource, nodes ...*entity.Node) fixerFixture {
	t.Helper()
	repo := newTestRepo(t, nodes...)
	feed := newTestFeed(t, repo, staticGenerator{res: &GenerationResult{Rows: rows}})
	if rows != nil {
		_, err := feed.GenerateDataFeed(context.Background())
		require.NoError(t, err)
	}
	v := newFakeValidator(map[string]int{"http://bad.example.com": http.StatusNotFound})
	return fixerFixture{
		repo:  repo,
		feed:  feed,
		fixer: NewLinkFixer(repo, linkcheck.NewExtractor(), v, feed, zap.NewNop()),
		v:     v,
	}
}

func TestReplace_ArrayKeepsOtherElements(t *testing.T) {
	ctx := context.Background()
	f := newFixerFixture(t, nil, node("/content/a", map[string]any{
		"links": []string{"http://old.example.com/x", "http://other.example.com", "see http://old.example.com/x"},
	}))

	ok, err := f.fixer.Replace(ctx, "/content/a", "links", "http://old.example.com/x", "http://new.example.com/x")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := f.repo.GetNode(ctx, "/content/a")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://new.example.com/x", "http://other.example.com", "see http://new.example.com/x"},
		n.Properties["links"])
}

func TestReplace_MissingLinkLeavesProperty(t *testing.T) {
	ctx := context.Background()
	f := newFixerFixture(t, nil, node("/content/a", map[string]any{"text": "see http://kept.example.com"}))

	for _, tc := range []struct{ path, prop, current string }{
		{"/content/a", "text", "http://absent.example.com"},
		{"/content/a", "missing", "http://kept.example.com"},
		{"/content/none", "text", "http://kept.example.com"},
	} {
		ok, err := f.fixer.Replace(ctx, tc.path, tc.prop, tc.current, "http://new.example.com")
		require.NoError(t, err)
		assert.False(t, ok)
	}

	n, err := f.repo.GetNode(ctx, "/content/a")
	require.NoError(t, err)
	assert.Equal(t, "see http://kept.example.com", n.Properties["text"])
}

func TestReplace_IsLiteral(t *testing.T) {
	ctx := context.Background()
	f := newFixerFixture(t, nil, node("/content/a", map[string]any{
		"text": "/content/a.b+c and /content/aXb+c",
	}))

	ok, err := f.fixer.Replace(ctx, "/content/a", "text", "/content/a.b+c", "/content/fixed")
	require.NoError(t, err)
	assert.True(t, ok)

	n, _ := f.repo.GetNode(ctx, "/content/a")
	assert.Equal(t, "/content/fixed and /content/aXb+c", n.Properties["text"])
}

func TestReplace_KeepsLongerLinksWithSamePrefix(t *testing.T) {
	ctx := context.Background()
	f := newFixerFixture(t, nil, node("/content/a", map[string]any{
		"text":  "see /content/site/a and /content/site/ab",
		"links": []string{"/content/site/ab", "/content/site/a"},
	}))

	ok, err := f.fixer.Replace(ctx, "/content/a", "text", "/content/site/a", "/content/new")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.fixer.Replace(ctx, "/content/a", "links", "/content/site/a", "/content/new")
	require.NoError(t, err)
	assert.True(t, ok)

	n, _ := f.repo.GetNode(ctx, "/content/a")
	assert.Equal(t, "see /content/new and /content/site/ab", n.Properties["text"])
	assert.Equal(t, []string{"/content/site/ab", "/content/new"}, n.Properties["links"])
}

func TestReplace_SecondTimeIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixerFixture(t, nil, node("/content/a", map[string]any{"text": "http://old.example.com"}))

	ok, err := f.fixer.Replace(ctx, "/content/a", "text", "http://old.example.com", "http://new.example.com")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.fixer.Replace(ctx, "/content/a", "text", "http://old.example.com", "http://new.example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFix_Outcomes(t *testing.T) {
	ctx := context.Background()
	f := newFixerFixture(t, nil, node("/content/a", map[string]any{"text": "http://old.example.com"}))

	res, err := f.fixer.Fix(ctx, FixRequest{Path: "/content/a", PropertyName: "text", CurrentLink: " ", NewLink: "x"})
	require.NoError(t, err)
	assert.Equal(t, FixInvalidRequest, res.Outcome)

	res, err = f.fixer.Fix(ctx, FixRequest{Path: "/content/a", PropertyName: "text", CurrentLink: "a", NewLink: "a"})
	require.NoError(t, err)
	assert.Equal(t, FixUnchanged, res.Outcome)

	res, err = f.fixer.Fix(ctx, FixRequest{Path: "/content/a", PropertyName: "text",
		CurrentLink: "http://old.example.com", NewLink: "http://bad.example.com"})
	require.NoError(t, err)
	assert.Equal(t, FixInvalidLink, res.Outcome)
	assert.Equal(t, http.StatusNotFound, res.Status.Code)

	res, err = f.fixer.Fix(ctx, FixRequest{Path: "/content/a", PropertyName: "text",
		CurrentLink: "http://absent.example.com", NewLink: "http://new.example.com"})
	require.NoError(t, err)
	assert.Equal(t, FixNotReplaced, res.Outcome)

	res, err = f.fixer.Fix(ctx, FixRequest{Path: "/content/a", PropertyName: "text",
		CurrentLink: "http://old.example.com", NewLink: "http://bad.example.com", SkipValidation: true})
	require.NoError(t, err)
	assert.Equal(t, FixApplied, res.Outcome)
	assert.Equal(t, http.StatusOK, res.Status.Code)
}

func TestFix_MarksPendingAndDropsRows(t *testing.T) {
	ctx := context.Background()
	rows := []entity.GridResource{
		brokenRow("http://old.example.com", entity.LinkExternal, 404, "/content/a", "text"),
		brokenRow("http://old.example.com", entity.LinkExternal, 404, "/content/b", "text"),
	}
	f := newFixerFixture(t, rows,
		node("/content/a", map[string]any{"text": "http://old.example.com"}),
		node("/content/b", map[string]any{"text": "http://old.example.com"}),
	)

	res, err := f.fixer.Fix(ctx, FixRequest{Path: "/content/a", PropertyName: "text",
		CurrentLink: "http://old.example.com", NewLink: "http://new.example.com"})
	require.NoError(t, err)
	require.Equal(t, FixApplied, res.Outcome)

	pending, err := f.feed.IsPending(ctx)
	require.NoError(t, err)
	assert.True(t, pending)

	left, err := f.feed.ReadLimited(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "/content/b", left[0].ResourcePath)
}

func TestReplaceByPattern(t *testing.T) {
	ctx := context.Background()
	rows := []entity.GridResource{
		brokenRow("http://old.example.com/a", entity.LinkExternal, 404, "/content/a", "text"),
		brokenRow("http://old.example.com/b", entity.LinkExternal, 404, "/content/b", "text"),
		brokenRow("http://other.example.com", entity.LinkExternal, 404, "/content/c", "text"),
	}
	f := newFixerFixture(t, rows,
		node("/content/a", map[string]any{"text": "http://old.example.com/a"}),
		node("/content/b", map[string]any{"text": "http://old.example.com/b"}),
		node("/content/c", map[string]any{"text": "http://other.example.com"}),
	)

	items, err := f.fixer.ReplaceByPattern(ctx, `^http://old\.example\.com/(\w+)$`, "https://new.example.com/${1}", true)
	require.NoError(t, err)
	require.Len(t, items, 2)
	n, _ := f.repo.GetNode(ctx, "/content/a")
	assert.Equal(t, "http://old.example.com/a", n.Properties["text"], "dry run must not write")

	items, err = f.fixer.ReplaceByPattern(ctx, `^http://old\.example\.com/(\w+)$`, "https://new.example.com/${1}", false)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, UpdatedItem{
		CurrentLink:  "http://old.example.com/a",
		UpdatedLink:  "https://new.example.com/a",
		ResourcePath: "/content/a",
		PropertyName: "text",
	}, items[0])

	n, _ = f.repo.GetNode(ctx, "/content/b")
	assert.Equal(t, "https://new.example.com/b", n.Properties["text"])

	left, err := f.feed.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "http://other.example.com", left[0].Link.Href)

	_, err = f.fixer.ReplaceByPattern(ctx, "(", "x", false)
	assert.ErrorIs(t, err, ErrInvalidPattern)
}
