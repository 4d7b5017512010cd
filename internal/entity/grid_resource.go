package entity

import (
	"path"
	"strings"
)

// Location is a place in the content tree where a link was found.
type Location struct {
	ResourcePath string
	PropertyName string
}

// String renders the location as path@property, the form used in the CSV report.
func (l Location) String() string {
	return l.ResourcePath + "@" + l.PropertyName
}

// GridResource is one row of the broken links report: a resolved link at one location.
type GridResource struct {
	Link         ResolvedLink
	ResourcePath string
	PropertyName string
	ResourceType string
}

// GridResourceKey identifies a row. Rows with equal keys are the same row.
type GridResourceKey struct {
	Link         Link
	ResourcePath string
	PropertyName string
}

// Key returns the row identity.
func (g GridResource) Key() GridResourceKey {
	return GridResourceKey{Link: g.Link.Link, ResourcePath: g.ResourcePath, PropertyName: g.PropertyName}
}

// Location returns where the row's link lives.
func (g GridResource) Location() Location {
	return Location{ResourcePath: g.ResourcePath, PropertyName: g.PropertyName}
}

// PagePath is the path of the page holding the resource: the parent of the
// closest jcr:content segment, or the resource path itself.
func (g GridResource) PagePath() string {
	if i := strings.Index(g.ResourcePath, "/jcr:content"); i > 0 {
		return g.ResourcePath[:i]
	}
	return g.ResourcePath
}

// PageName is the last segment of PagePath.
func (g GridResource) PageName() string {
	return path.Base(g.PagePath())
}

// ComponentName is the last segment of the resource path.
func (g GridResource) ComponentName() string {
	return path.Base(g.ResourcePath)
}
