package linkcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/linkchecker-service/internal/entity"
)

func TestExtractLinks_InternalAndExternal(t *testing.T) {
	e := NewExtractor()

	links := e.ExtractLinks("see /content/site/missing and http://broken.example")

	assert.Equal(t, []entity.Link{
		entity.NewInternalLink("/content/site/missing"),
		entity.NewExternalLink("http://broken.example"),
	}, links)
}

func TestExtractLinks_Distinct(t *testing.T) {
	e := NewExtractor()
	text := `<p><a href="/content/site/en.html">en</a> <a href="/content/site/en.html">again</a>
		<a href="https://www.example.com/page">ext</a> www.example.org/docs
		<a href="https://www.example.com/page">dup</a></p>`

	links := e.ExtractLinks(text)

	require.Len(t, links, 3)
	assert.Equal(t, entity.NewInternalLink("/content/site/en.html"), links[0])
	assert.Equal(t, entity.NewExternalLink("https://www.example.com/page"), links[1])
	assert.Equal(t, entity.NewExternalLink("www.example.org/docs"), links[2])
}

func TestExtractLinks_Idempotent(t *testing.T) {
	e := NewExtractor(MailtoProvider{})
	text := `/content/a <a href="mailto:info@example.com">x</a> http://example.com/x`

	first := e.ExtractLinks(text)
	second := e.ExtractLinks(text)

	assert.Equal(t, first, second)
	assert.Len(t, first, 3)
}

func TestExtractLinks_StringSlice(t *testing.T) {
	e := NewExtractor()

	links := e.ExtractLinks([]string{"/content/a", "http://example.com/a", "/content/a"})

	assert.Equal(t, []entity.Link{
		entity.NewInternalLink("/content/a"),
		entity.NewExternalLink("http://example.com/a"),
	}, links)
}

func TestExtractLinks_NoLinks(t *testing.T) {
	e := NewExtractor(MailtoProvider{})

	assert.Empty(t, e.ExtractLinks("plain text without anything"))
	assert.Empty(t, e.ExtractLinks(""))
	assert.Empty(t, e.ExtractLinks(42))
	assert.Empty(t, e.ExtractLinks(true))
}

func TestInternalLinks_Boundaries(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"start of value", "/content/site/page", []string{"/content/site/page"}},
		{"after quote", `href='/content/site/page.html?x=1#top'`, []string{"/content/site/page.html?x=1#top"}},
		{"after whitespace", "go to /content/site/a now", []string{"/content/site/a"}},
		{"inside word", "foo/content/site/a", nil},
		{"unicode path", "/content/site/über", []string{"/content/site/über"}},
		{"not content", "/etc/designs/site", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InternalLinks(tt.text))
		})
	}
}

func TestExternalLinks(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"https", "visit https://example.com/path?q=1 today", []string{"https://example.com/path?q=1"}},
		{"bare www", "www.example.com", []string{"www.example.com"}},
		{"quoted", `<a href="http://a.example.com">`, []string{"http://a.example.com"}},
		{"none", "example dot com", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExternalLinks(tt.text))
		})
	}
}

func TestReplaceLink(t *testing.T) {
	for _, tc := range []struct {
		name, text, link, want string
	}{
		{"internal prefix kept", "see /content/site/a and /content/site/ab", "/content/site/a", "see /new and /content/site/ab"},
		{"external prefix kept", "http://old.example.com and http://old.example.com/page", "http://old.example.com", "/new and http://old.example.com/page"},
		{"every whole occurrence", `"/content/site/a" '/content/site/a'`, "/content/site/a", `"/new" '/new'`},
		{"unmatched link bounded", `<a href="mailto:a@b.c">mailto:a@b.cd</a>`, "mailto:a@b.c", `<a href="/new">mailto:a@b.cd</a>`},
		{"absent", "nothing here", "/content/site/a", "nothing here"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ReplaceLink(tc.text, tc.link, "/new"))
		})
	}
}
