package usecase

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/linkcheck"
	"github.com/user/linkchecker-service/internal/repository"
	"github.com/user/linkchecker-service/pkg/config"
)

const (
	tagsLocation = "/content/cq:tags"

	propPrimaryType       = "jcr:primaryType"
	propReplicationAction = "cq:lastReplicationAction"
	replicationActivate   = "Activate"
)

// ScanOptions are the traversal and link filters of a scan.
type ScanOptions struct {
	ExcludedPaths        []*regexp.Regexp
	ExcludedProperties   map[string]struct{}
	ExcludedSites        []string
	ExcludedLinkPatterns []*regexp.Regexp
	ExcludeTags          bool
	// OnlyKind restricts the scan to one link kind when FilterKind is set.
	OnlyKind             entity.LinkKind
	FilterKind           bool
	LastModifiedBoundary time.Time
	CheckActivation      bool
}

// NewScanOptions compiles the generator settings. Path and link patterns must
// match the whole value.
func NewScanOptions(cfg config.GeneratorConfig) (ScanOptions, error) {
	opts := ScanOptions{
		ExcludedProperties: make(map[string]struct{}, len(cfg.ExcludedProperties)),
		ExcludeTags:        cfg.ExcludeTags,
		CheckActivation:    cfg.CheckActivation,
	}
	var err error
	if opts.ExcludedPaths, err = compileFullMatch(cfg.ExcludedPaths); err != nil {
		return opts, fmt.Errorf("excluded paths: %w", err)
	}
	if opts.ExcludedLinkPatterns, err = compileFullMatch(cfg.ExcludedLinkPatterns); err != nil {
		return opts, fmt.Errorf("excluded link patterns: %w", err)
	}
	for _, p := range cfg.ExcludedProperties {
		opts.ExcludedProperties[p] = struct{}{}
	}
	for _, s := range cfg.ExcludedSites {
		if s = strings.TrimSpace(s); s != "" {
			opts.ExcludedSites = append(opts.ExcludedSites, s)
		}
	}
	if cfg.LinksType != "" {
		opts.OnlyKind, _ = entity.ParseLinkType(cfg.LinksType)
		opts.FilterKind = true
	}
	if cfg.LastModifiedBoundary != "" {
		if opts.LastModifiedBoundary, err = time.Parse(time.RFC3339, cfg.LastModifiedBoundary); err != nil {
			return opts, fmt.Errorf("last modified boundary: %w", err)
		}
	}
	return opts, nil
}

func compileFullMatch(patterns []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		re, err := regexp.Compile("^(?:" + p + ")$")
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

func matchesAny(value string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

// ScanResult is what a tree walk found.
type ScanResult struct {
	// Links maps every distinct link to each place it was found.
	Links map[entity.Link][]entity.Location
	// ResourceTypes holds sling:resourceType of the nodes that produced links.
	ResourceTypes  map[string]string
	TraversedNodes int
}

// Scanner walks the content tree and collects links. It never writes to the tree.
type Scanner struct {
	repo      repository.ContentRepository
	extractor *linkcheck.Extractor
}

func NewScanner(repo repository.ContentRepository, extractor *linkcheck.Extractor) *Scanner {
	return &Scanner{repo: repo, extractor: extractor}
}

// Scan visits root and its descendants depth first. A node that is not
// allowed is skipped together with its subtree. ErrNodeNotFound is returned
// when root does not exist.
func (s *Scanner) Scan(ctx context.Context, root string, opts ScanOptions) (*ScanResult, error) {
	node, err := s.repo.GetNode(ctx, root)
	if err != nil {
		return nil, err
	}
	res := &ScanResult{
		Links:         make(map[entity.Link][]entity.Location),
		ResourceTypes: make(map[string]string),
	}
	if err := s.walk(ctx, node, opts, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Scanner) walk(ctx context.Context, node *entity.Node, opts ScanOptions, res *ScanResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !isAllowedNode(node, opts) {
		return nil
	}
	res.TraversedNodes++
	s.collect(node, opts, res)

	children, err := s.repo.ListChildren(ctx, node.Path)
	if err != nil {
		return fmt.Errorf("list children of %s: %w", node.Path, err)
	}
	for _, child := range children {
		if err := s.walk(ctx, child, opts, res); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) collect(node *entity.Node, opts ScanOptions, res *ScanResult) {
	names := make([]string, 0, len(node.Properties))
	for name := range node.Properties {
		if _, excluded := opts.ExcludedProperties[name]; !excluded {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		for _, link := range s.extractor.ExtractLinks(node.Properties[name]) {
			if !isAllowedLink(link, opts) {
				continue
			}
			res.Links[link] = append(res.Links[link], entity.Location{ResourcePath: node.Path, PropertyName: name})
			res.ResourceTypes[node.Path] = node.ResourceType()
		}
	}
}

func isAllowedNode(node *entity.Node, opts ScanOptions) bool {
	if matchesAny(node.Path, opts.ExcludedPaths) {
		return false
	}
	if !opts.LastModifiedBoundary.IsZero() {
		if modified := node.LastModified(); !modified.IsZero() && !modified.After(opts.LastModifiedBoundary) {
			return false
		}
	}
	if opts.CheckActivation && !isActivated(node) {
		return false
	}
	return true
}

// isActivated requires pages and assets to be activated. Other nodes are
// rejected only when they carry a replication action other than Activate.
func isActivated(node *entity.Node) bool {
	action, hasAction := node.StringProperty(propReplicationAction)
	switch t, _ := node.StringProperty(propPrimaryType); t {
	case "cq:Page", "dam:Asset":
		return action == replicationActivate
	default:
		return !hasAction || action == replicationActivate
	}
}

func isAllowedLink(link entity.Link, opts ScanOptions) bool {
	if opts.FilterKind && link.Kind != opts.OnlyKind {
		return false
	}
	if opts.ExcludeTags && link.Kind == entity.LinkInternal && strings.HasPrefix(link.Href, tagsLocation) {
		return false
	}
	if matchesAny(link.Href, opts.ExcludedLinkPatterns) {
		return false
	}
	for _, site := range opts.ExcludedSites {
		if strings.Contains(link.Href, site) {
			return false
		}
	}
	return true
}
