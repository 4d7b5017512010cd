package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/linkcheck"
	"github.com/user/linkchecker-service/internal/repository"
	"go.uber.org/zap"
)

// FixOutcome tells what a fix request ended with.
type FixOutcome int

const (
	// FixApplied means the property was rewritten.
	FixApplied FixOutcome = iota
	// FixInvalidRequest means a required parameter was blank.
	FixInvalidRequest
	// FixUnchanged means the current and new link are equal.
	FixUnchanged
	// FixInvalidLink means the new link failed validation.
	FixInvalidLink
	// FixNotReplaced means the current link was not found at the location.
	FixNotReplaced
)

// FixRequest asks to replace CurrentLink with NewLink at one location.
type FixRequest struct {
	Path           string
	PropertyName   string
	CurrentLink    string
	NewLink        string
	SkipValidation bool
}

// FixResult carries the outcome and, for FixApplied and FixInvalidLink, the
// status of the new link.
type FixResult struct {
	Outcome FixOutcome
	Status  entity.Status
}

// StringValidator validates a raw, not yet classified link.
type StringValidator interface {
	ValidateString(ctx context.Context, raw string) entity.ResolvedLink
}

// LinkFixer rewrites links stored in content properties.
type LinkFixer struct {
	repo      repository.ContentRepository
	extractor *linkcheck.Extractor
	validator StringValidator
	feed      *DataFeedService
	logger    *zap.Logger
}

func NewLinkFixer(
	repo repository.ContentRepository,
	extractor *linkcheck.Extractor,
	validator StringValidator,
	feed *DataFeedService,
	logger *zap.Logger,
) *LinkFixer {
	return &LinkFixer{repo: repo, extractor: extractor, validator: validator, feed: feed, logger: logger}
}

// Fix validates the new link unless told not to, replaces it at the location
// and marks the report pending. The rows of the replaced link at that
// location are removed from the report. A returned error means the property
// could not be persisted.
func (f *LinkFixer) Fix(ctx context.Context, req FixRequest) (FixResult, error) {
	if isBlank(req.Path, req.PropertyName, req.CurrentLink, req.NewLink) {
		f.logger.Warn("fix request has blank parameters",
			zap.String("path", req.Path), zap.String("property", req.PropertyName),
			zap.String("current_link", req.CurrentLink), zap.String("new_link", req.NewLink))
		return FixResult{Outcome: FixInvalidRequest}, nil
	}
	if req.CurrentLink == req.NewLink {
		f.logger.Debug("current and new link are equal, nothing to do")
		return FixResult{Outcome: FixUnchanged}, nil
	}

	status := entity.NewStatus(http.StatusOK)
	if !req.SkipValidation {
		resolved := f.validator.ValidateString(ctx, req.NewLink)
		if !resolved.Status.IsValid() {
			f.logger.Debug("new link is not valid",
				zap.String("new_link", req.NewLink), zap.Int("code", resolved.Status.Code))
			return FixResult{Outcome: FixInvalidLink, Status: resolved.Status}, nil
		}
		status = resolved.Status
	}

	replaced, err := f.Replace(ctx, req.Path, req.PropertyName, req.CurrentLink, req.NewLink)
	if err != nil {
		return FixResult{}, err
	}
	if !replaced {
		f.logger.Debug("current link was not updated", zap.String("current_link", req.CurrentLink))
		return FixResult{Outcome: FixNotReplaced}, nil
	}
	f.afterReplace(ctx, func(r entity.GridResource) bool {
		return r.ResourcePath == req.Path && r.PropertyName == req.PropertyName && r.Link.Href == req.CurrentLink
	})
	f.logger.Info("link is updated",
		zap.String("path", req.Path), zap.String("property", req.PropertyName),
		zap.String("current_link", req.CurrentLink), zap.String("new_link", req.NewLink))
	return FixResult{Outcome: FixApplied, Status: status}, nil
}

// afterReplace marks the report pending and drops rows that no longer apply.
// Failures are logged: the content change itself is already persisted.
func (f *LinkFixer) afterReplace(ctx context.Context, drop func(entity.GridResource) bool) {
	if err := f.feed.MarkPending(ctx); err != nil {
		f.logger.Error("failed to mark report pending", zap.Error(err))
	}
	if _, err := f.feed.DropRows(ctx, drop); err != nil {
		f.logger.Error("failed to drop fixed rows from report", zap.Error(err))
	}
}

// Replace substitutes newLink for every whole literal occurrence of
// currentLink in the property at (path, propertyName); longer links sharing
// its prefix are kept. Nothing is written and false is
// returned when the node or property is missing, when currentLink is not one
// of the property's links, or when the value would not change. String slices
// keep their shape; only elements containing the link change.
func (f *LinkFixer) Replace(ctx context.Context, path, propertyName, currentLink, newLink string) (bool, error) {
	node, err := f.repo.GetNode(ctx, path)
	if errors.Is(err, repository.ErrNodeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	value, ok := node.Properties[propertyName]
	if !ok || !f.hasLink(value, currentLink) {
		return false, nil
	}

	var updated any
	switch v := value.(type) {
	case string:
		nv := linkcheck.ReplaceLink(v, currentLink, newLink)
		if nv == v {
			return false, nil
		}
		updated = nv
	case []string:
		changed := false
		nv := make([]string, len(v))
		for i, s := range v {
			nv[i] = linkcheck.ReplaceLink(s, currentLink, newLink)
			changed = changed || nv[i] != s
		}
		if !changed {
			return false, nil
		}
		updated = nv
	default:
		return false, nil
	}

	if err := f.repo.SetProperty(ctx, path, propertyName, updated); err != nil {
		return false, fmt.Errorf("write %s@%s: %w", path, propertyName, err)
	}
	return true, nil
}

func (f *LinkFixer) hasLink(value any, href string) bool {
	for _, l := range f.extractor.ExtractLinks(value) {
		if l.Href == href {
			return true
		}
	}
	return false
}

// UpdatedItem is one link rewritten by ReplaceByPattern.
type UpdatedItem struct {
	CurrentLink  string `json:"currentLink"`
	UpdatedLink  string `json:"updatedLink"`
	ResourcePath string `json:"resourcePath"`
	PropertyName string `json:"propertyName"`
}

// ErrInvalidPattern is returned for link patterns that do not compile.
var ErrInvalidPattern = errors.New("invalid link pattern")

// ReplaceByPattern rewrites every reported broken link whose href matches
// pattern, using regexp replacement syntax. In dry-run mode nothing is
// written and the items that would change are returned.
func (f *LinkFixer) ReplaceByPattern(ctx context.Context, pattern, replacement string, dryRun bool) ([]UpdatedItem, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	rows, err := f.feed.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	var items []UpdatedItem
	done := make(map[entity.GridResourceKey]struct{})
	fixed := make(map[entity.GridResourceKey]struct{})
	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return items, err
		}
		if _, seen := done[r.Key()]; seen || !re.MatchString(r.Link.Href) {
			continue
		}
		done[r.Key()] = struct{}{}
		updatedLink := re.ReplaceAllString(r.Link.Href, replacement)
		if updatedLink == r.Link.Href {
			continue
		}
		if !dryRun {
			replaced, err := f.Replace(ctx, r.ResourcePath, r.PropertyName, r.Link.Href, updatedLink)
			if err != nil {
				return items, err
			}
			if !replaced {
				continue
			}
			fixed[r.Key()] = struct{}{}
		}
		items = append(items, UpdatedItem{
			CurrentLink:  r.Link.Href,
			UpdatedLink:  updatedLink,
			ResourcePath: r.ResourcePath,
			PropertyName: r.PropertyName,
		})
	}

	if len(fixed) > 0 {
		f.afterReplace(ctx, func(r entity.GridResource) bool {
			_, ok := fixed[r.Key()]
			return ok
		})
	}
	f.logger.Info("replacement by pattern is finished",
		zap.String("pattern", pattern), zap.Int("updated", len(items)), zap.Bool("dry_run", dryRun))
	return items, nil
}

func isBlank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
