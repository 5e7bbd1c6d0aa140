package directory

import "sort"

// PermissionScope is what a principal may administer: everything when
// IsSystemAdmin, otherwise exactly the repositories in
// PermittedRepositoryIDs. The two are never folded together; the query
// compiler treats the admin flag as "no restriction".
type PermissionScope struct {
	IsSystemAdmin          bool
	PermittedRepositoryIDs map[string]struct{}
}

func (s PermissionScope) SortedRepositoryIDs() []string {
	ids := make([]string, 0, len(s.PermittedRepositoryIDs))
	for id := range s.PermittedRepositoryIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type ScopeProvider struct {
	cfg      *Config
	codec    *Codec
	resolver *Resolver
}

func NewScopeProvider(cfg *Config, codec *Codec, resolver *Resolver) *ScopeProvider {
	return &ScopeProvider{cfg: cfg, codec: codec, resolver: resolver}
}

// IsSystemAdmin reports whether the raw ids carry the system-wide
// SystemAdmin role. A SystemAdmin grant tied to a repository does not count.
func (p *ScopeProvider) IsSystemAdmin(rawIDs []string) bool {
	for _, aff := range p.resolver.Resolve(rawIDs).Roles {
		if aff.Role == RoleSystemAdmin && aff.RepositoryID == nil {
			return true
		}
	}
	return false
}

// PermittedRepositoryIDs returns the repositories where the resolved role is
// exactly RepositoryAdmin.
func (p *ScopeProvider) PermittedRepositoryIDs(rawIDs []string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, aff := range p.resolver.Resolve(rawIDs).Roles {
		if aff.Role == RoleRepositoryAdmin && aff.RepositoryID != nil {
			out[*aff.RepositoryID] = struct{}{}
		}
	}
	return out
}

// FilterPermittedGroupIDs keeps the candidate ids that decode to
// user-defined groups in repositories the principal administers.
func (p *ScopeProvider) FilterPermittedGroupIDs(rawIDs []string, candidateGroupIDs []string) map[string]struct{} {
	permitted := p.PermittedRepositoryIDs(rawIDs)
	out := make(map[string]struct{})
	for _, candidate := range candidateGroupIDs {
		aff, ok := p.codec.Decode(candidate)
		if !ok {
			continue
		}
		group, ok := aff.(GroupAffiliation)
		if !ok {
			continue
		}
		if _, ok := permitted[group.RepositoryID]; ok {
			out[candidate] = struct{}{}
		}
	}
	return out
}

func (p *ScopeProvider) ScopeFor(rawIDs []string) PermissionScope {
	return PermissionScope{
		IsSystemAdmin:          p.IsSystemAdmin(rawIDs),
		PermittedRepositoryIDs: p.PermittedRepositoryIDs(rawIDs),
	}
}
