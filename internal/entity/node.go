package entity

import (
	"path"
	"time"
)

// Well-known property names of content nodes.
const (
	PropResourceType     = "sling:resourceType"
	PropPageLastModified = "cq:lastModified"
	PropLastModified     = "jcr:lastModified"
)

// Node is a content tree node. Property values are string, []string or any
// other scalar the store keeps; only strings and string slices carry links.
type Node struct {
	Path       string
	Properties map[string]any
}

// Name is the last path segment.
func (n *Node) Name() string {
	return path.Base(n.Path)
}

// StringProperty returns the property when it is a single string.
func (n *Node) StringProperty(name string) (string, bool) {
	v, ok := n.Properties[name].(string)
	return v, ok
}

// ResourceType returns sling:resourceType or an empty string.
func (n *Node) ResourceType() string {
	v, _ := n.StringProperty(PropResourceType)
	return v
}

// LastModified returns the newest of cq:lastModified and jcr:lastModified.
// The zero time means neither is set or parseable.
func (n *Node) LastModified() time.Time {
	var newest time.Time
	for _, name := range []string{PropPageLastModified, PropLastModified} {
		raw, ok := n.Properties[name]
		if !ok {
			continue
		}
		var t time.Time
		switch v := raw.(type) {
		case time.Time:
			t = v
		case string:
			parsed, err := time.Parse(time.RFC3339, v)
			if err != nil {
				continue
			}
			t = parsed
		default:
			continue
		}
		if t.After(newest) {
			newest = t
		}
	}
	return newest
}

// NormalizeValue converts decoded property values into the shapes the link
// scanner understands: []any holding only strings becomes []string.
func NormalizeValue(v any) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return v
		}
		out = append(out, s)
	}
	return out
}
