package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/singleflight"

	"github.com/reposync/admin-backend/internal/directory"
	"github.com/reposync/admin-backend/internal/directory/patch"
	"github.com/reposync/admin-backend/internal/directory/query"
	"github.com/reposync/admin-backend/internal/domain"
	"github.com/reposync/admin-backend/internal/observability"
	"github.com/reposync/admin-backend/internal/repository"
	"github.com/reposync/admin-backend/internal/scim"
)

var (
	ErrForbidden        = errors.New("caller is not permitted to act on this resource")
	ErrNotFound         = errors.New("resource not found in the directory")
	ErrGroupNotManaged  = errors.New("group is not managed by this service")
	ErrInvalidGroupName = errors.New("invalid user-defined group name")
)

const (
	cacheNamespaceUsers        = "search.users"
	cacheNamespaceGroups       = "search.groups"
	cacheNamespaceRepositories = "search.repositories"
)

// Update diffs never touch server-assigned identity and metadata, and
// memberships have their own operations.
var (
	userUpdateOpts  = patch.Options{Exclude: []string{"id", "externalId", "schemas", "meta", "groups"}}
	groupUpdateOpts = patch.Options{Exclude: []string{"id", "schemas", "meta", "members"}}
)

// DirectoryAdminServiceImpl fronts the remote directory for every admin
// operation. Searches are compiled against the caller's permission scope,
// cached briefly, and deduplicated in flight; mutations are expressed as
// minimal patch documents and invalidate the affected cache namespace.
type DirectoryAdminServiceImpl struct {
	client   scim.Client
	cfg      *directory.Config
	codec    *directory.Codec
	resolver *directory.Resolver
	compiler *query.Compiler
	cache    SearchCacheStore
	cacheTTL time.Duration
	audits   repository.SyncAuditRepository
	flight   singleflight.Group
}

func NewDirectoryAdminService(
	client scim.Client,
	cfg *directory.Config,
	codec *directory.Codec,
	cache SearchCacheStore,
	cacheTTL time.Duration,
	audits repository.SyncAuditRepository,
) *DirectoryAdminServiceImpl {
	if cache == nil {
		cache = NewNoopSearchCacheStore()
	}
	return &DirectoryAdminServiceImpl{
		client:   client,
		cfg:      cfg,
		codec:    codec,
		resolver: directory.NewResolver(cfg, codec),
		compiler: query.NewCompiler(cfg, codec),
		cache:    cache,
		cacheTTL: cacheTTL,
		audits:   audits,
	}
}

func (s *DirectoryAdminServiceImpl) SearchUsers(ctx context.Context, p *Principal, crit query.Criteria) (*scim.ListResponse[scim.User], error) {
	return searchCached(ctx, s, query.Users, cacheNamespaceUsers, p, crit, s.client.SearchUsers)
}

func (s *DirectoryAdminServiceImpl) SearchGroups(ctx context.Context, p *Principal, crit query.Criteria) (*scim.ListResponse[scim.Group], error) {
	return searchCached(ctx, s, query.Groups, cacheNamespaceGroups, p, crit, s.client.SearchGroups)
}

func (s *DirectoryAdminServiceImpl) SearchRepositories(ctx context.Context, p *Principal, crit query.Criteria) (*scim.ListResponse[scim.Repository], error) {
	return searchCached(ctx, s, query.Repositories, cacheNamespaceRepositories, p, crit, s.client.SearchRepositories)
}

// searchCached is the shared search path: compile, consult the cache, then
// collapse identical concurrent fetches before going upstream. The compiled
// filter already embeds the caller's scope, so the cache key does too.
func searchCached[T any](
	ctx context.Context,
	s *DirectoryAdminServiceImpl,
	kind query.Kind,
	namespace string,
	p *Principal,
	crit query.Criteria,
	fetch func(context.Context, query.Compiled) (*scim.ListResponse[T], error),
) (*scim.ListResponse[T], error) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordSearchRequestDuration(ctx, string(kind), status, time.Since(start))
	}()

	compiled, err := s.compiler.Compile(kind, crit, p.Scope)
	if err != nil {
		status = "invalid"
		return nil, err
	}
	key := searchCacheKey(kind, compiled)

	if payload, ok, err := s.cache.Get(ctx, namespace, key); err == nil && ok {
		var out scim.ListResponse[T]
		if err := json.Unmarshal(payload, &out); err == nil {
			observability.RecordSearchCacheEvent(ctx, string(kind), "hit")
			observability.RecordSearchPageSize(ctx, string(kind), len(out.Resources))
			return &out, nil
		}
	}
	observability.RecordSearchCacheEvent(ctx, string(kind), "miss")

	v, err, _ := s.flight.Do(namespace+"|"+key, func() (any, error) {
		callStart := time.Now()
		out, err := fetch(ctx, compiled)
		recordCall(ctx, "search_"+string(kind), callStart, err)
		if err != nil {
			return nil, err
		}
		if payload, merr := json.Marshal(out); merr == nil {
			_ = s.cache.Set(ctx, namespace, key, payload, s.cacheTTL)
		}
		return out, nil
	})
	if err != nil {
		status = "error"
		return nil, mapStatusError(err)
	}
	out := v.(*scim.ListResponse[T])
	observability.RecordSearchPageSize(ctx, string(kind), len(out.Resources))
	return out, nil
}

func (s *DirectoryAdminServiceImpl) GetUser(ctx context.Context, p *Principal, id string) (*scim.User, error) {
	start := time.Now()
	user, err := s.client.GetUser(ctx, id)
	recordCall(ctx, "get_user", start, err)
	if err != nil {
		return nil, mapStatusError(err)
	}
	if !s.userVisible(p, user) {
		return nil, ErrForbidden
	}
	return user, nil
}

func (s *DirectoryAdminServiceImpl) GetGroup(ctx context.Context, p *Principal, id string) (*scim.Group, error) {
	start := time.Now()
	group, err := s.client.GetGroup(ctx, id)
	recordCall(ctx, "get_group", start, err)
	if err != nil {
		return nil, mapStatusError(err)
	}
	if !s.groupVisible(p, group) {
		return nil, ErrForbidden
	}
	return group, nil
}

// UpdateUser applies the difference between the stored user and the caller's
// desired state as a single patch document. An empty diff is not an error;
// the stored state is returned untouched.
func (s *DirectoryAdminServiceImpl) UpdateUser(ctx context.Context, p *Principal, id string, updated scim.User) (*scim.User, error) {
	current, err := s.GetUser(ctx, p, id)
	if err != nil {
		return nil, err
	}
	ops, err := patch.Diff(*current, updated, userUpdateOpts)
	if err != nil {
		return nil, err
	}
	observability.RecordPatchOpsCount(ctx, "users", len(ops))
	if len(ops) == 0 {
		return current, nil
	}
	start := time.Now()
	out, err := s.client.PatchUser(ctx, id, ops)
	recordCall(ctx, "patch_user", start, err)
	s.recordAudit(ctx, p, "user", id, "update", err, fmt.Sprintf("%d ops", len(ops)))
	if err != nil {
		return nil, mapStatusError(err)
	}
	_ = s.cache.InvalidateNamespace(ctx, cacheNamespaceUsers)
	return out, nil
}

func (s *DirectoryAdminServiceImpl) UpdateGroup(ctx context.Context, p *Principal, id string, updated scim.Group) (*scim.Group, error) {
	current, err := s.GetGroup(ctx, p, id)
	if err != nil {
		return nil, err
	}
	ops, err := patch.Diff(*current, updated, groupUpdateOpts)
	if err != nil {
		return nil, err
	}
	observability.RecordPatchOpsCount(ctx, "groups", len(ops))
	if len(ops) == 0 {
		return current, nil
	}
	start := time.Now()
	out, err := s.client.PatchGroup(ctx, id, ops)
	recordCall(ctx, "patch_group", start, err)
	s.recordAudit(ctx, p, "group", id, "update", err, fmt.Sprintf("%d ops", len(ops)))
	if err != nil {
		return nil, mapStatusError(err)
	}
	_ = s.cache.InvalidateNamespace(ctx, cacheNamespaceGroups)
	return out, nil
}

// CreateGroup provisions a user-defined group for one repository. The group
// name is derived from the configured template; callers never supply raw
// directory names.
func (s *DirectoryAdminServiceImpl) CreateGroup(ctx context.Context, p *Principal, repositoryID, userDefinedID string) (*scim.Group, error) {
	if !s.repoPermitted(p, repositoryID) {
		return nil, ErrForbidden
	}
	userDefinedID = strings.TrimSpace(userDefinedID)
	if userDefinedID == "" {
		return nil, ErrInvalidGroupName
	}
	name, err := s.codec.Encode(directory.KindUserDefined, repositoryID, userDefinedID)
	if err != nil {
		return nil, err
	}
	if len(name) > s.cfg.MaxIdentifierLength {
		return nil, fmt.Errorf("%w: %q exceeds %d characters", ErrInvalidGroupName, name, s.cfg.MaxIdentifierLength)
	}
	if _, ok := s.codec.Decode(name); !ok {
		return nil, fmt.Errorf("%w: %q does not round-trip", ErrInvalidGroupName, name)
	}
	start := time.Now()
	out, err := s.client.CreateGroup(ctx, &scim.Group{
		Schemas:     []string{scim.GroupSchema},
		DisplayName: name,
	})
	recordCall(ctx, "create_group", start, err)
	s.recordAudit(ctx, p, "group", name, "create", err, "")
	if err != nil {
		return nil, mapStatusError(err)
	}
	_ = s.cache.InvalidateNamespace(ctx, cacheNamespaceGroups)
	return out, nil
}

// DeleteGroup removes a user-defined group. Role groups and externally
// managed groups are never deleted through this service.
func (s *DirectoryAdminServiceImpl) DeleteGroup(ctx context.Context, p *Principal, id string) error {
	group, err := s.GetGroup(ctx, p, id)
	if err != nil {
		return err
	}
	aff, ok := s.codec.Decode(group.DisplayName)
	if !ok {
		return ErrGroupNotManaged
	}
	ga, ok := aff.(directory.GroupAffiliation)
	if !ok {
		return ErrGroupNotManaged
	}
	if !s.repoPermitted(p, ga.RepositoryID) {
		return ErrForbidden
	}
	start := time.Now()
	err = s.client.DeleteGroup(ctx, id)
	recordCall(ctx, "delete_group", start, err)
	s.recordAudit(ctx, p, "group", group.DisplayName, "delete", err, "")
	if err != nil {
		return mapStatusError(err)
	}
	_ = s.cache.InvalidateNamespace(ctx, cacheNamespaceGroups)
	return nil
}

func (s *DirectoryAdminServiceImpl) AddGroupMember(ctx context.Context, p *Principal, groupID, userID string) error {
	return s.patchMembership(ctx, p, groupID, userID, patch.Op{
		Op:    patch.OpAdd,
		Path:  "members",
		Value: []map[string]any{{"value": userID}},
	}, "member_add")
}

func (s *DirectoryAdminServiceImpl) RemoveGroupMember(ctx context.Context, p *Principal, groupID, userID string) error {
	return s.patchMembership(ctx, p, groupID, userID, patch.Op{
		Op:   patch.OpRemove,
		Path: fmt.Sprintf("members[value eq %q]", userID),
	}, "member_remove")
}

func (s *DirectoryAdminServiceImpl) patchMembership(ctx context.Context, p *Principal, groupID, userID string, op patch.Op, action string) error {
	if _, err := s.GetGroup(ctx, p, groupID); err != nil {
		return err
	}
	start := time.Now()
	_, err := s.client.PatchGroup(ctx, groupID, []patch.Op{op})
	recordCall(ctx, "patch_group", start, err)
	observability.RecordPatchOpsCount(ctx, "groups", 1)
	s.recordAudit(ctx, p, "group", groupID, action, err, "user "+userID)
	if err != nil {
		return mapStatusError(err)
	}
	_ = s.cache.InvalidateNamespace(ctx, cacheNamespaceGroups)
	_ = s.cache.InvalidateNamespace(ctx, cacheNamespaceUsers)
	return nil
}

// userVisible reports whether the caller's scope covers the user. A scoped
// administrator sees a user only when the user is affiliated, by role or by
// group, with at least one permitted repository.
func (s *DirectoryAdminServiceImpl) userVisible(p *Principal, user *scim.User) bool {
	if p.Scope.IsSystemAdmin {
		return true
	}
	affs := s.resolver.Resolve(user.MembershipIDs())
	for _, ra := range affs.Roles {
		if ra.RepositoryID != nil && s.repoPermitted(p, *ra.RepositoryID) {
			return true
		}
	}
	for _, ga := range affs.Groups {
		if s.repoPermitted(p, ga.RepositoryID) {
			return true
		}
	}
	return false
}

func (s *DirectoryAdminServiceImpl) groupVisible(p *Principal, group *scim.Group) bool {
	if p.Scope.IsSystemAdmin {
		return true
	}
	aff, ok := s.codec.Decode(group.DisplayName)
	if !ok {
		return false
	}
	switch a := aff.(type) {
	case directory.RoleAffiliation:
		return a.RepositoryID != nil && s.repoPermitted(p, *a.RepositoryID)
	case directory.GroupAffiliation:
		return s.repoPermitted(p, a.RepositoryID)
	}
	return false
}

func (s *DirectoryAdminServiceImpl) repoPermitted(p *Principal, repositoryID string) bool {
	if p.Scope.IsSystemAdmin {
		return true
	}
	_, ok := p.Scope.PermittedRepositoryIDs[repositoryID]
	return ok
}

func (s *DirectoryAdminServiceImpl) recordAudit(ctx context.Context, p *Principal, targetType, targetID, action string, opErr error, detail string) {
	if s.audits == nil {
		return
	}
	outcome := "success"
	if opErr != nil {
		outcome = "failure"
		if detail == "" {
			detail = opErr.Error()
		}
	}
	_ = s.audits.Record(&domain.SyncAudit{
		ActorID:    p.UserID,
		TargetType: targetType,
		TargetID:   targetID,
		Action:     action,
		Outcome:    outcome,
		Detail:     detail,
		RequestID:  chimw.GetReqID(ctx),
	})
}

func searchCacheKey(kind query.Kind, q query.Compiled) string {
	var b strings.Builder
	b.WriteString(string(kind))
	b.WriteByte('|')
	b.WriteString(q.Filter)
	b.WriteByte('|')
	if q.StartIndex != nil {
		fmt.Fprintf(&b, "%d", *q.StartIndex)
	}
	b.WriteByte('|')
	if q.Count != nil {
		fmt.Fprintf(&b, "%d", *q.Count)
	}
	b.WriteByte('|')
	b.WriteString(q.SortBy)
	b.WriteByte('|')
	b.WriteString(string(q.SortOrder))
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func recordCall(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		var se *scim.StatusError
		if errors.As(err, &se) {
			status = fmt.Sprintf("http_%d", se.Status)
		}
	}
	observability.RecordDirectoryCall(ctx, operation, status, time.Since(start))
}

func mapStatusError(err error) error {
	var se *scim.StatusError
	if errors.As(err, &se) && se.Status == 404 {
		return fmt.Errorf("%w: %s", ErrNotFound, se.Body)
	}
	return err
}
