package middleware

import (
	"context"
	"net/http"

	"github.com/reposync/admin-backend/internal/http/response"
	"github.com/reposync/admin-backend/internal/service"
)

const PrincipalContextKey contextKey = "principal"

// PrincipalMiddleware derives the caller's permission scope from the group
// memberships asserted in the verified token. It requires AuthMiddleware to
// have run first.
func PrincipalMiddleware(resolver *service.PrincipalResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
				return
			}
			p := resolver.Resolve(r.Context(), claims.Subject, claims.MemberOf)
			ctx := context.WithValue(r.Context(), PrincipalContextKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func PrincipalFromContext(ctx context.Context) (*service.Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(*service.Principal)
	return p, ok
}

// RequireAdminScope rejects callers with no administrative reach at all.
// Scoped administrators pass; per-resource checks happen in the services.
func RequireAdminScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
			return
		}
		if !p.Scope.IsSystemAdmin && len(p.Scope.PermittedRepositoryIDs) == 0 {
			response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "no administrative scope", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSystemAdmin guards endpoints reserved for system-wide
// administrators.
func RequireSystemAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
			return
		}
		if !p.Scope.IsSystemAdmin {
			response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "system administrator role required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
