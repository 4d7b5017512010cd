package utils

import (
	"net/url"
	"strings"
)

// DecodePath percent-decodes a link the way form values are decoded ('+' turns
// into a space). The input is returned unchanged when it is not valid encoding.
func DecodePath(raw string) string {
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// StripQueryAndFragment cuts everything from the first '?' or '#'.
func StripQueryAndFragment(link string) string {
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		return link[:i]
	}
	return link
}

// StripExtension removes selectors and extension from the last path segment:
// /content/site/page.print.html becomes /content/site/page.
func StripExtension(p string) string {
	slash := strings.LastIndex(p, "/")
	if dot := strings.Index(p[slash+1:], "."); dot > 0 {
		return p[:slash+1+dot]
	}
	return p
}

// AbsoluteHTTPURL prepends http:// to bare www. hosts so they can be requested.
func AbsoluteHTTPURL(link string) string {
	lower := strings.ToLower(link)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return link
	}
	return "http://" + link
}
