// Package linkcheck finds links in content property values and validates them.
package linkcheck

import (
	"regexp"
	"sort"
	"strings"

	"github.com/user/linkchecker-service/internal/entity"
)

var (
	// externalLinkPattern matches http(s) URLs and bare www. hosts followed by
	// at least two characters that are not whitespace, quotes or '<'.
	externalLinkPattern = regexp.MustCompile(
		`https?://(?:www\.)?[a-zA-Z0-9][a-zA-Z0-9-]+[a-zA-Z0-9]\.[^\s"'<]{2,}` +
			`|www\.[a-zA-Z0-9][a-zA-Z0-9-]+[a-zA-Z0-9]\.[^\s"'<]{2,}` +
			`|https?://(?:www\.)?[a-zA-Z0-9]+\.[^\s"'<]{2,}` +
			`|www\.[a-zA-Z0-9]+\.[^\s"'<]{2,}`)

	// internalLinkPattern matches /content/ paths at the start of the value or
	// right after a quote or whitespace. Group 1 is the link. Path characters
	// are Unicode letters and digits plus URL punctuation; whitespace ends a link.
	internalLinkPattern = regexp.MustCompile(
		`(?:^|["'\s])(/content/[-\p{L}\p{N}():%_+.~#?&/=]*)`)
)

// Extractor finds links in property values. Custom providers are consulted in
// the order they were given.
type Extractor struct {
	providers []Provider
}

// NewExtractor returns an extractor that also runs the given custom providers.
func NewExtractor(providers ...Provider) *Extractor {
	return &Extractor{providers: providers}
}

// Providers returns the custom providers in their configured order.
func (e *Extractor) Providers() []Provider {
	return e.providers
}

// ExtractLinks returns the distinct links found in a string or string slice
// value. Other value types yield no links.
func (e *Extractor) ExtractLinks(value any) []entity.Link {
	switch v := value.(type) {
	case string:
		return e.extract([]string{v})
	case []string:
		return e.extract(v)
	default:
		return nil
	}
}

func (e *Extractor) extract(texts []string) []entity.Link {
	seen := make(map[entity.Link]struct{})
	var links []entity.Link
	add := func(l entity.Link) {
		if _, ok := seen[l]; ok {
			return
		}
		seen[l] = struct{}{}
		links = append(links, l)
	}

	for _, text := range texts {
		for _, href := range InternalLinks(text) {
			add(entity.NewInternalLink(href))
		}
		for _, href := range ExternalLinks(text) {
			add(entity.NewExternalLink(href))
		}
		for _, p := range e.providers {
			for _, href := range p.Links(text) {
				add(entity.NewCustomLink(href, p.ID()))
			}
		}
	}
	return links
}

// ExternalLinks returns the distinct external link strings of text in order of appearance.
func ExternalLinks(text string) []string {
	return dedup(externalLinkPattern.FindAllString(text, -1))
}

// InternalLinks returns the distinct internal link strings of text in order of appearance.
func InternalLinks(text string) []string {
	matches := internalLinkPattern.FindAllStringSubmatch(text, -1)
	hrefs := make([]string, 0, len(matches))
	for _, m := range matches {
		hrefs = append(hrefs, m[1])
	}
	return dedup(hrefs)
}

// ReplaceLink substitutes replacement for every whole occurrence of link in
// text. An occurrence is whole when the extracted link at that position is
// exactly link, so longer links sharing its prefix are left alone. Links no
// pattern recognizes, such as provider links, are whole when followed by the
// end of text, whitespace, a quote or an angle bracket.
func ReplaceLink(text, link, replacement string) string {
	if link == "" {
		return text
	}
	spans := patternSpans(text, link)
	if len(spans) == 0 {
		spans = boundedSpans(text, link)
	}
	if len(spans) == 0 {
		return text
	}
	var b strings.Builder
	last := 0
	for _, sp := range spans {
		b.WriteString(text[last:sp[0]])
		b.WriteString(replacement)
		last = sp[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

// patternSpans returns the non-overlapping byte ranges where the internal or
// external pattern extracts exactly link, in order.
func patternSpans(text, link string) [][2]int {
	var spans [][2]int
	for _, m := range internalLinkPattern.FindAllStringSubmatchIndex(text, -1) {
		if text[m[2]:m[3]] == link {
			spans = append(spans, [2]int{m[2], m[3]})
		}
	}
	for _, m := range externalLinkPattern.FindAllStringIndex(text, -1) {
		if text[m[0]:m[1]] == link {
			spans = append(spans, [2]int{m[0], m[1]})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i][0] < spans[j][0] })
	out := spans[:0]
	end := 0
	for _, sp := range spans {
		if sp[0] < end {
			continue
		}
		out = append(out, sp)
		end = sp[1]
	}
	return out
}

func boundedSpans(text, link string) [][2]int {
	var spans [][2]int
	for from := 0; ; {
		i := strings.Index(text[from:], link)
		if i < 0 {
			return spans
		}
		start, end := from+i, from+i+len(link)
		if end == len(text) || strings.IndexByte(" \t\r\n\"'<>", text[end]) >= 0 {
			spans = append(spans, [2]int{start, end})
		}
		from = end
	}
}

func dedup(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
