package linkcheck

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/pkg/config"
)

// Provider adds a custom link type: it decides which parts of a value are its
// links and how such links are validated.
type Provider interface {
	// ID names the link type. It is stored in the feed as the link type.
	ID() string
	// Links returns the provider's links found in text. Nil when there are none.
	Links(text string) []string
	// Validate returns the terminal status of href.
	Validate(ctx context.Context, href string) entity.Status
}

const mailtoScheme = "mailto:"

// MailtoProvider reports mailto: anchors of rich-text values and validates the
// address syntax.
type MailtoProvider struct{}

func (MailtoProvider) ID() string { return "Mailto" }

// Links parses text as an HTML fragment and collects the href of every
// a[href^=mailto:] element.
func (MailtoProvider) Links(text string) []string {
	if !strings.Contains(strings.ToLower(text), mailtoScheme) {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil
	}
	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if strings.HasPrefix(strings.ToLower(href), mailtoScheme) {
			hrefs = append(hrefs, href)
		}
	})
	return dedup(hrefs)
}

// Validate checks that every recipient of the mailto link is a valid address.
func (MailtoProvider) Validate(_ context.Context, href string) entity.Status {
	if len(href) < len(mailtoScheme) || !strings.EqualFold(href[:len(mailtoScheme)], mailtoScheme) {
		return entity.Status{Code: http.StatusBadRequest, Message: "not a mailto link"}
	}
	recipients := href[len(mailtoScheme):]
	if i := strings.Index(recipients, "?"); i >= 0 {
		recipients = recipients[:i]
	}
	if decoded, err := url.PathUnescape(recipients); err == nil {
		recipients = decoded
	}
	if strings.TrimSpace(recipients) == "" {
		return entity.Status{Code: http.StatusBadRequest, Message: "mailto link has no recipient"}
	}
	if _, err := mail.ParseAddressList(recipients); err != nil {
		return entity.Status{Code: http.StatusBadRequest, Message: err.Error()}
	}
	return entity.NewStatus(http.StatusOK)
}

// TextProvider reports every match of a configured pattern as a link of type
// "Text". Matches are not validated; they are always reported as found.
type TextProvider struct {
	search *regexp.Regexp
}

// NewTextProvider compiles search. Matching ignores case unless caseSensitive.
func NewTextProvider(search string, caseSensitive bool) (*TextProvider, error) {
	if strings.TrimSpace(search) == "" {
		return nil, fmt.Errorf("text search pattern is empty")
	}
	if !caseSensitive {
		search = "(?i)" + search
	}
	re, err := regexp.Compile(search)
	if err != nil {
		return nil, fmt.Errorf("text search pattern: %w", err)
	}
	return &TextProvider{search: re}, nil
}

func (*TextProvider) ID() string { return "Text" }

func (p *TextProvider) Links(text string) []string {
	var found []string
	for _, m := range p.search.FindAllString(text, -1) {
		if m != "" {
			found = append(found, m)
		}
	}
	if len(found) == 0 {
		return nil
	}
	return dedup(found)
}

func (*TextProvider) Validate(context.Context, string) entity.Status {
	return entity.Status{Code: http.StatusOK, Message: "Found"}
}

// ProvidersByID returns the providers with the given ids, matched case
// insensitively. "text" is built from search. Unknown ids are reported as an
// error.
func ProvidersByID(ids []string, search config.TextSearchConfig) ([]Provider, error) {
	providers := make([]Provider, 0, len(ids))
	for _, id := range ids {
		switch strings.ToLower(id) {
		case "mailto":
			providers = append(providers, MailtoProvider{})
		case "text":
			p, err := NewTextProvider(search.Pattern, search.CaseSensitive)
			if err != nil {
				return nil, err
			}
			providers = append(providers, p)
		default:
			return nil, fmt.Errorf("unknown link type provider %q", id)
		}
	}
	return providers, nil
}
