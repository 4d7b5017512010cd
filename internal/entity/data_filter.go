package entity

import "strings"

// DataFilter narrows report rows at read time. Empty fields match everything.
type DataFilter struct {
	Type      string
	Substring string
}

// IsEmpty reports whether the filter lets every row through.
func (f DataFilter) IsEmpty() bool {
	return f.Type == "" && f.Substring == ""
}

// Matches reports whether the row passes the filter. Type is compared case
// insensitively with the link type name; Substring is searched in the href and
// the resource path.
func (f DataFilter) Matches(row GridResource) bool {
	if f.Type != "" && !strings.EqualFold(f.Type, row.Link.TypeName()) {
		return false
	}
	if f.Substring == "" {
		return true
	}
	needle := strings.ToLower(f.Substring)
	return strings.Contains(strings.ToLower(row.Link.Href), needle) ||
		strings.Contains(strings.ToLower(row.ResourcePath), needle)
}
