package linkcheck

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/repository"
	"github.com/user/linkchecker-service/pkg/utils"
	"go.uber.org/zap"
)

// MessageUnknownPattern is returned for raw strings that are not a single known link.
const MessageUnknownPattern = "The provided link doesn't match any known link pattern"

// ExternalLinkChecker fetches the HTTP status code of an external link.
type ExternalLinkChecker interface {
	CheckLink(ctx context.Context, link string) (int, error)
}

// Validator resolves links to a terminal status.
type Validator struct {
	repo      repository.ContentRepository
	external  ExternalLinkChecker
	extractor *Extractor
	providers map[string]Provider
	logger    *zap.Logger
}

// NewValidator wires a validator. Custom links are validated by the extractor's providers.
func NewValidator(repo repository.ContentRepository, external ExternalLinkChecker, extractor *Extractor, logger *zap.Logger) *Validator {
	providers := make(map[string]Provider, len(extractor.Providers()))
	for _, p := range extractor.Providers() {
		providers[p.ID()] = p
	}
	return &Validator{
		repo:      repo,
		external:  external,
		extractor: extractor,
		providers: providers,
		logger:    logger,
	}
}

// Validate returns the link together with its status.
func (v *Validator) Validate(ctx context.Context, link entity.Link) entity.ResolvedLink {
	switch link.Kind {
	case entity.LinkInternal:
		return link.Resolve(v.ValidateInternal(ctx, link.Href))
	case entity.LinkExternal:
		v.logger.Debug("validating external link", zap.String("href", link.Href))
		return link.Resolve(v.ValidateExternal(ctx, link.Href))
	default:
		p, ok := v.providers[link.Provider]
		if !ok {
			return link.Resolve(entity.Status{Code: http.StatusBadRequest, Message: "unknown link type " + link.Provider})
		}
		return link.Resolve(p.Validate(ctx, link.Href))
	}
}

// ValidateString classifies a raw string and validates it. The string must
// come back from extraction as exactly one link with the identical href.
func (v *Validator) ValidateString(ctx context.Context, raw string) entity.ResolvedLink {
	var match []entity.Link
	for _, l := range v.extractor.ExtractLinks(raw) {
		if l.Href == raw {
			match = append(match, l)
		}
	}
	if len(match) != 1 {
		return entity.ResolvedLink{
			Link:   entity.Link{Href: raw},
			Status: entity.Status{Code: http.StatusBadRequest, Message: MessageUnknownPattern},
		}
	}
	return v.Validate(ctx, match[0])
}

// ValidateInternal resolves href against the content tree. When the href does
// not resolve, its percent-decoded form is tried once if decoding changed it.
func (v *Validator) ValidateInternal(ctx context.Context, href string) entity.Status {
	status := v.resolveInternal(ctx, href)
	if !status.IsValid() {
		if decoded := utils.DecodePath(href); decoded != href {
			status = v.resolveInternal(ctx, decoded)
		}
	}
	return status
}

func (v *Validator) resolveInternal(ctx context.Context, href string) entity.Status {
	p := utils.StripQueryAndFragment(href)
	candidates := []string{p}
	if stripped := utils.StripExtension(p); stripped != p {
		candidates = append(candidates, stripped)
	}
	for _, c := range candidates {
		exists, err := v.repo.Exists(ctx, c)
		if err != nil {
			v.logger.Debug("internal link resolution failed", zap.String("href", href), zap.Error(err))
			return entity.Status{Code: http.StatusInternalServerError, Message: err.Error()}
		}
		if exists {
			return entity.NewStatus(http.StatusOK)
		}
	}
	return entity.NewStatus(http.StatusNotFound)
}

// ValidateExternal requests href and maps transport failures to statuses.
func (v *Validator) ValidateExternal(ctx context.Context, href string) entity.Status {
	code, err := v.external.CheckLink(ctx, href)
	if err != nil {
		status := StatusFromError(err)
		v.logger.Debug("external link validation failed",
			zap.String("href", href), zap.Int("code", status.Code), zap.Error(err))
		return status
	}
	return entity.NewStatus(code)
}

// StatusFromError maps a request failure to a status: timeouts to 408,
// malformed links to 400, unknown hosts to 404 and anything else to 500.
func StatusFromError(err error) entity.Status {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, errMalformedURL):
		return entity.NewStatus(http.StatusBadRequest)
	case errors.As(err, &dnsErr) && dnsErr.IsNotFound:
		return entity.NewStatus(http.StatusNotFound)
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return entity.NewStatus(http.StatusRequestTimeout)
	default:
		return entity.Status{Code: http.StatusInternalServerError, Message: err.Error()}
	}
}
