package service

import (
	"context"

	"github.com/reposync/admin-backend/internal/directory"
	"github.com/reposync/admin-backend/internal/observability"
)

// Principal is the per-request view of the caller: the roles and group
// memberships decoded from the raw directory group names asserted by the
// identity provider, plus the permission scope derived from them.
type Principal struct {
	UserID       string
	MemberOf     []string
	Affiliations directory.Affiliations
	Scope        directory.PermissionScope
}

type PrincipalResolver struct {
	resolver *directory.Resolver
	scopes   *directory.ScopeProvider
}

func NewPrincipalResolver(cfg *directory.Config, codec *directory.Codec) *PrincipalResolver {
	resolver := directory.NewResolver(cfg, codec)
	return &PrincipalResolver{
		resolver: resolver,
		scopes:   directory.NewScopeProvider(cfg, codec, resolver),
	}
}

func (r *PrincipalResolver) Resolve(ctx context.Context, userID string, memberOf []string) *Principal {
	p := &Principal{
		UserID:       userID,
		MemberOf:     memberOf,
		Affiliations: r.resolver.Resolve(memberOf),
		Scope:        r.scopes.ScopeFor(memberOf),
	}
	switch {
	case p.Scope.IsSystemAdmin:
		observability.RecordScopeResolution(ctx, "system_admin")
	case len(p.Scope.PermittedRepositoryIDs) > 0:
		observability.RecordScopeResolution(ctx, "scoped")
	default:
		observability.RecordScopeResolution(ctx, "unscoped")
	}
	return p
}

func (r *PrincipalResolver) Scopes() *directory.ScopeProvider {
	return r.scopes
}
