package entity

import "strings"

// LinkKind tells how a link is validated.
type LinkKind int

const (
	LinkInternal LinkKind = iota
	LinkExternal
	LinkCustom
)

// Link is an unresolved reference found in a property value. Two links are the
// same link when Href, Kind and Provider match, so Link is usable as a map key.
type Link struct {
	Href     string
	Kind     LinkKind
	Provider string // set for LinkCustom only
}

// NewInternalLink returns an internal link for href.
func NewInternalLink(href string) Link {
	return Link{Href: href, Kind: LinkInternal}
}

// NewExternalLink returns an external link for href.
func NewExternalLink(href string) Link {
	return Link{Href: href, Kind: LinkExternal}
}

// NewCustomLink returns a link validated by the provider with the given id.
func NewCustomLink(href, provider string) Link {
	return Link{Href: href, Kind: LinkCustom, Provider: provider}
}

// TypeName is the display name used in the feed, the CSV report and the UI.
func (l Link) TypeName() string {
	switch l.Kind {
	case LinkInternal:
		return "Internal"
	case LinkExternal:
		return "External"
	default:
		return l.Provider
	}
}

// ParseLinkType maps a stored type name back to a kind. Unknown names are
// treated as custom provider ids.
func ParseLinkType(name string) (LinkKind, string) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "INTERNAL", "":
		return LinkInternal, ""
	case "EXTERNAL":
		return LinkExternal, ""
	default:
		return LinkCustom, name
	}
}

// Resolve pairs the link with its validation outcome.
func (l Link) Resolve(status Status) ResolvedLink {
	return ResolvedLink{Link: l, Status: status}
}

// ResolvedLink is a link together with the terminal status it was validated to.
type ResolvedLink struct {
	Link
	Status Status
}
