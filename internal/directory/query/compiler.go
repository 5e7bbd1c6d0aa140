package query

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/reposync/admin-backend/internal/directory"
)

// impossibleClause matches nothing: resource ids are never empty. Emitted
// whenever scope computation comes up empty, because omitting the scope
// clause would mean "no restriction".
const impossibleClause = `id eq ""`

var textAttrs = map[Kind][]string{
	Users:        {"user_name", "display_name", "emails.value"},
	Groups:       {"display_name"},
	Repositories: {"display_name"},
}

var sortAttrs = map[Kind]map[string]string{
	Users: {
		"name":      "display_name",
		"user_name": "user_name",
		"email":     "emails[0].value",
		"created":   "meta.created",
	},
	Groups: {
		"name":    "display_name",
		"created": "meta.created",
	},
	Repositories: {
		"name":    "display_name",
		"created": "meta.created",
	},
}

// membershipAttr is the attribute the group naming convention shows up in,
// per resource kind: a user's group memberships, or a group's own name.
var membershipAttr = map[Kind]string{
	Users:  "groups.display",
	Groups: "display_name",
}

// Compiler turns abstract criteria plus a permission scope into a remote
// search request. Identical (kind, criteria, scope) inputs produce
// byte-identical filters; callers rely on that for cache keys.
type Compiler struct {
	cfg   *directory.Config
	codec *directory.Codec
}

func NewCompiler(cfg *directory.Config, codec *directory.Codec) *Compiler {
	return &Compiler{cfg: cfg, codec: codec}
}

func (c *Compiler) Compile(kind Kind, crit Criteria, scope directory.PermissionScope) (Compiled, error) {
	if _, ok := textAttrs[kind]; !ok {
		return Compiled{}, fmt.Errorf("%w: unknown resource kind %q", ErrInvalidQuery, kind)
	}
	if err := validateCriteria(kind, crit); err != nil {
		return Compiled{}, err
	}

	var preds []string
	if q := strings.TrimSpace(crit.Query); q != "" {
		clauses := make([]string, 0, len(textAttrs[kind]))
		for _, attr := range textAttrs[kind] {
			clauses = append(clauses, compare(attr, opContains, q))
		}
		preds = append(preds, anyOf(clauses))
	}
	if clause, ok := equalityClause("id", crit.IDs); ok {
		preds = append(preds, clause)
	}
	if kind == Users {
		if clause, ok := equalityClause("id", crit.UserIDs); ok {
			preds = append(preds, clause)
		}
	}
	if kind == Groups {
		if clause, ok := equalityClause("members.value", crit.UserIDs); ok {
			preds = append(preds, clause)
		}
	}

	if clause, ok := c.scopePredicate(kind, crit, scope); ok {
		preds = append(preds, clause)
	}

	if !crit.CreatedFrom.IsZero() {
		preds = append(preds, compare("meta.created", opGreaterOrEqual, c.dayStart(crit.CreatedFrom, 0)))
	}
	if !crit.CreatedTo.IsZero() {
		preds = append(preds, compare("meta.created", opLessThan, c.dayStart(crit.CreatedTo, 1)))
	}

	out := Compiled{Filter: strings.Join(preds, " and ")}
	out.StartIndex, out.Count = paging(crit.Page, crit.PageSize)
	if attr, ok := sortAttrs[kind][crit.SortBy]; ok {
		out.SortBy = directory.AttributePath(attr)
		out.SortOrder = crit.SortOrder
	}
	return out, nil
}

func validateCriteria(kind Kind, crit Criteria) error {
	if kind != Repositories {
		return nil
	}
	if len(crit.Roles) > 0 || len(crit.GroupIDs) > 0 || len(crit.UserIDs) > 0 {
		return fmt.Errorf("%w: role, group and user filters do not apply to repositories", ErrInvalidQuery)
	}
	return nil
}

// scopePredicate compiles the security clause. For system admins only the
// caller's explicit repository/role/group filters apply; everyone else is
// boxed into their permitted repositories, and any empty or unresolvable
// restriction collapses to the impossible clause rather than to no clause.
func (c *Compiler) scopePredicate(kind Kind, crit Criteria, scope directory.PermissionScope) (string, bool) {
	explicit := dedupSorted(crit.RepositoryIDs)

	if kind == Repositories {
		if scope.IsSystemAdmin {
			return equalityClause("id", explicit)
		}
		eff := effectiveRepos(explicit, scope)
		if len(eff) == 0 {
			return impossibleClause, true
		}
		clause, _ := equalityClause("id", eff)
		return clause, true
	}

	attr := membershipAttr[kind]
	roles := dedupRoles(crit.Roles)
	if scope.IsSystemAdmin {
		return c.adminScope(attr, explicit, roles, crit.GroupIDs)
	}

	eff := effectiveRepos(explicit, scope)
	if len(eff) == 0 {
		return impossibleClause, true
	}

	var parts []string
	if len(crit.GroupIDs) > 0 {
		kept := c.permittedGroupNames(crit.GroupIDs, eff)
		if len(kept) == 0 {
			return impossibleClause, true
		}
		clause, _ := equalityClause(attr, kept)
		parts = append(parts, clause)
	}
	if len(roles) > 0 {
		clauses := c.roleEqualityClauses(attr, roles, eff)
		if len(clauses) == 0 {
			return impossibleClause, true
		}
		parts = append(parts, anyOf(clauses))
	}
	if len(parts) == 0 {
		clauses := make([]string, 0, len(eff))
		for _, repo := range eff {
			clauses = append(clauses, compare(attr, opStartsWith, c.cfg.RepositoryGroupPrefix(repo)))
		}
		return anyOf(clauses), true
	}
	return allOf(parts), true
}

// adminScope injects no implicit restriction; it only translates the
// explicit filters the caller named.
func (c *Compiler) adminScope(attr string, explicit []string, roles []directory.Role, groupIDs []string) (string, bool) {
	var parts []string
	if len(groupIDs) > 0 {
		clause, _ := equalityClause(attr, dedupSorted(groupIDs))
		parts = append(parts, clause)
	}
	switch {
	case len(roles) > 0 && len(explicit) > 0:
		clauses := c.roleEqualityClauses(attr, roles, explicit)
		if len(clauses) == 0 {
			return impossibleClause, true
		}
		parts = append(parts, anyOf(clauses))
	case len(roles) > 0:
		clauses := make([]string, 0, len(roles))
		for _, role := range roles {
			kt, ok := c.cfg.KindForRole(role)
			if !ok {
				continue
			}
			prefix, suffix := splitTemplate(kt.Template)
			clauses = append(clauses, allOf([]string{
				compare(attr, opStartsWith, prefix),
				compare(attr, opEndsWith, suffix),
			}))
		}
		if len(clauses) == 0 {
			return impossibleClause, true
		}
		parts = append(parts, anyOf(clauses))
	case len(explicit) > 0:
		clauses := make([]string, 0, len(explicit))
		for _, repo := range explicit {
			clauses = append(clauses, compare(attr, opStartsWith, c.cfg.RepositoryGroupPrefix(repo)))
		}
		parts = append(parts, anyOf(clauses))
	}
	if len(parts) == 0 {
		return "", false
	}
	return allOf(parts), true
}

func (c *Compiler) roleEqualityClauses(attr string, roles []directory.Role, repos []string) []string {
	var clauses []string
	for _, repo := range repos {
		for _, role := range roles {
			kt, ok := c.cfg.KindForRole(role)
			if !ok {
				continue
			}
			name, err := c.codec.Encode(kt.Kind, repo, "")
			if err != nil {
				continue
			}
			clauses = append(clauses, compare(attr, opEqual, name))
		}
	}
	return clauses
}

// permittedGroupNames keeps candidates that decode as user-defined groups in
// one of the effective repositories, sorted for stable output.
func (c *Compiler) permittedGroupNames(candidates, eff []string) []string {
	permitted := make(map[string]struct{}, len(eff))
	for _, repo := range eff {
		permitted[repo] = struct{}{}
	}
	var kept []string
	seen := make(map[string]struct{})
	for _, candidate := range candidates {
		aff, ok := c.codec.Decode(candidate)
		if !ok {
			continue
		}
		group, ok := aff.(directory.GroupAffiliation)
		if !ok {
			continue
		}
		if _, ok := permitted[group.RepositoryID]; !ok {
			continue
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		kept = append(kept, candidate)
	}
	sort.Strings(kept)
	return kept
}

func (c *Compiler) dayStart(d Date, addDays int) string {
	t := time.Date(d.Year, d.Month, d.Day+addDays, 0, 0, 0, 0, c.cfg.Location())
	return t.UTC().Format(time.RFC3339)
}

func effectiveRepos(explicit []string, scope directory.PermissionScope) []string {
	if len(explicit) == 0 {
		return scope.SortedRepositoryIDs()
	}
	var out []string
	for _, repo := range explicit {
		if _, ok := scope.PermittedRepositoryIDs[repo]; ok {
			out = append(out, repo)
		}
	}
	return out
}

func equalityClause(attr string, values []string) (string, bool) {
	values = dedupSorted(values)
	if len(values) == 0 {
		return "", false
	}
	clauses := make([]string, 0, len(values))
	for _, v := range values {
		clauses = append(clauses, compare(attr, opEqual, v))
	}
	return anyOf(clauses), true
}

func dedupSorted(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func dedupRoles(roles []directory.Role) []directory.Role {
	if len(roles) == 0 {
		return nil
	}
	seen := make(map[directory.Role]struct{}, len(roles))
	out := make([]directory.Role, 0, len(roles))
	for _, r := range roles {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

func splitTemplate(template string) (prefix, suffix string) {
	idx := strings.Index(template, directory.RepositoryIDPlaceholder)
	if idx < 0 {
		return template, ""
	}
	return template[:idx], template[idx+len(directory.RepositoryIDPlaceholder):]
}

func paging(page, pageSize int) (startIndex, count *int) {
	if page > 0 {
		if pageSize <= 0 {
			pageSize = DefaultPageSize
		}
		start := (page-1)*pageSize + 1
		return &start, &pageSize
	}
	if pageSize > 0 {
		start := 1
		return &start, &pageSize
	}
	return nil, nil
}
