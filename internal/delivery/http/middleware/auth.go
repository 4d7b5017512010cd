package middleware

import (
	"net/http"
	"strings"

	"github.com/user/linkchecker-service/pkg/config"
	"go.uber.org/zap"
)

// Identity headers set by the authenticating proxy in front of the service.
const (
	HeaderRemoteUser   = "X-Remote-User"
	HeaderRemoteGroups = "X-Remote-Groups"
)

// GroupAuthorizer decides whether a caller may run administrative operations.
type GroupAuthorizer struct {
	adminUser  string
	adminGroup string
}

func NewGroupAuthorizer(cfg config.AuthConfig) *GroupAuthorizer {
	return &GroupAuthorizer{adminUser: cfg.AdminUser, adminGroup: cfg.AdminGroup}
}

// IsAdmin reports whether the user is the admin or a member of the admin group.
// groups is a comma separated list.
func (a *GroupAuthorizer) IsAdmin(user, groups string) bool {
	if user == "" {
		return false
	}
	if a.adminUser != "" && user == a.adminUser {
		return true
	}
	if a.adminGroup == "" {
		return false
	}
	for _, g := range strings.Split(groups, ",") {
		if strings.TrimSpace(g) == a.adminGroup {
			return true
		}
	}
	return false
}

// RequireAdmin rejects callers that are not admins with 403.
func RequireAdmin(a *GroupAuthorizer, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := r.Header.Get(HeaderRemoteUser)
			if !a.IsAdmin(user, r.Header.Get(HeaderRemoteGroups)) {
				logger.Warn("administrative request rejected",
					zap.String("user", user), zap.String("path", r.URL.Path))
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
