package query

import (
	"errors"
	"strings"
	"testing"

	"github.com/reposync/admin-backend/internal/directory"
)

func newCompiler(t *testing.T) *Compiler {
	t.Helper()
	cfg, err := directory.NewConfig([]directory.KindTemplate{
		{Kind: "system_admin", Template: "jc_roles_sysadm", Role: directory.RoleSystemAdmin, HasRole: true},
		{Kind: "repository_admin", Template: "jc_{repository_id}_roles_repoadm", Role: directory.RoleRepositoryAdmin, HasRole: true},
		{Kind: "community_admin", Template: "jc_{repository_id}_roles_comadm", Role: directory.RoleCommunityAdmin, HasRole: true},
		{Kind: "contributor", Template: "jc_{repository_id}_roles_contrib", Role: directory.RoleContributor, HasRole: true},
		{Kind: directory.KindUserDefined, Template: "jc_{repository_id}_groups_{user_defined_id}"},
	})
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	return NewCompiler(cfg, directory.NewCodec(cfg))
}

func adminScope() directory.PermissionScope {
	return directory.PermissionScope{IsSystemAdmin: true, PermittedRepositoryIDs: map[string]struct{}{}}
}

func repoAdminScope(repos ...string) directory.PermissionScope {
	permitted := make(map[string]struct{}, len(repos))
	for _, r := range repos {
		permitted[r] = struct{}{}
	}
	return directory.PermissionScope{PermittedRepositoryIDs: permitted}
}

func compileFilter(t *testing.T, c *Compiler, kind Kind, crit Criteria, scope directory.PermissionScope) string {
	t.Helper()
	out, err := c.Compile(kind, crit, scope)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return out.Filter
}

func TestCompileScopeRestrictsExplicitRepositoryFilter(t *testing.T) {
	c := newCompiler(t)
	filter := compileFilter(t, c, Users, Criteria{RepositoryIDs: []string{"repo1", "repo2"}}, repoAdminScope("repo1"))
	want := `groups.display sw "jc_repo1_"`
	if filter != want {
		t.Fatalf("filter = %q, want %q", filter, want)
	}
	if strings.Contains(filter, "repo2") {
		t.Fatalf("out-of-scope repository leaked into filter: %q", filter)
	}
}

func TestCompileEmptyScopeMatchesNothing(t *testing.T) {
	c := newCompiler(t)
	cases := []Criteria{
		{},
		{Query: "alice"},
		{RepositoryIDs: []string{"repo1"}},
		{Roles: []directory.Role{directory.RoleRepositoryAdmin}},
		{GroupIDs: []string{"jc_repo1_groups_g1"}},
	}
	for _, crit := range cases {
		filter := compileFilter(t, c, Users, crit, repoAdminScope())
		if !strings.Contains(filter, impossibleClause) {
			t.Fatalf("criteria %+v: filter %q lacks impossible clause", crit, filter)
		}
	}
}

func TestCompileScopeIntersectionEmptyMatchesNothing(t *testing.T) {
	c := newCompiler(t)
	filter := compileFilter(t, c, Users, Criteria{RepositoryIDs: []string{"repo9"}}, repoAdminScope("repo1"))
	if filter != impossibleClause {
		t.Fatalf("filter = %q, want impossible clause", filter)
	}
}

func TestCompileFreeTextFansOutOverTextAttributes(t *testing.T) {
	c := newCompiler(t)
	filter := compileFilter(t, c, Users, Criteria{Query: "alice"}, repoAdminScope("repo1"))
	want := `(userName co "alice" or displayName co "alice" or emails.value co "alice") and groups.display sw "jc_repo1_"`
	if filter != want {
		t.Fatalf("filter = %q, want %q", filter, want)
	}
}

func TestCompileRoleFilterScopedToPermittedRepos(t *testing.T) {
	c := newCompiler(t)
	filter := compileFilter(t, c, Users, Criteria{Roles: []directory.Role{directory.RoleRepositoryAdmin}}, repoAdminScope("repo2", "repo1"))
	want := `(groups.display eq "jc_repo1_roles_repoadm" or groups.display eq "jc_repo2_roles_repoadm")`
	if filter != want {
		t.Fatalf("filter = %q, want %q", filter, want)
	}
}

func TestCompileRoleFilterWithNoRepositoryScopedKindMatchesNothing(t *testing.T) {
	c := newCompiler(t)
	filter := compileFilter(t, c, Users, Criteria{Roles: []directory.Role{directory.RoleSystemAdmin}}, repoAdminScope("repo1"))
	if filter != impossibleClause {
		t.Fatalf("filter = %q, want impossible clause", filter)
	}
}

func TestCompileGroupFilterKeepsOnlyPermittedGroups(t *testing.T) {
	c := newCompiler(t)
	crit := Criteria{GroupIDs: []string{"jc_repo2_groups_g2", "jc_repo1_groups_g1", "free-form-group"}}
	filter := compileFilter(t, c, Users, crit, repoAdminScope("repo1"))
	want := `groups.display eq "jc_repo1_groups_g1"`
	if filter != want {
		t.Fatalf("filter = %q, want %q", filter, want)
	}
}

func TestCompileRoleAndGroupFiltersCombine(t *testing.T) {
	c := newCompiler(t)
	crit := Criteria{
		GroupIDs: []string{"jc_repo1_groups_g1"},
		Roles:    []directory.Role{directory.RoleContributor},
	}
	filter := compileFilter(t, c, Users, crit, repoAdminScope("repo1"))
	want := `(groups.display eq "jc_repo1_groups_g1" and groups.display eq "jc_repo1_roles_contrib")`
	if filter != want {
		t.Fatalf("filter = %q, want %q", filter, want)
	}
}

func TestCompileSystemAdminWithoutCriteriaHasNoFilter(t *testing.T) {
	c := newCompiler(t)
	out, err := c.Compile(Users, Criteria{}, adminScope())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if out.Filter != "" {
		t.Fatalf("expected empty filter, got %q", out.Filter)
	}
}

func TestCompileSystemAdminExplicitFiltersApplyAsIs(t *testing.T) {
	c := newCompiler(t)

	t.Run("repository filter", func(t *testing.T) {
		filter := compileFilter(t, c, Users, Criteria{RepositoryIDs: []string{"repo9"}}, adminScope())
		want := `groups.display sw "jc_repo9_"`
		if filter != want {
			t.Fatalf("filter = %q, want %q", filter, want)
		}
	})

	t.Run("role filter uses template prefix and suffix", func(t *testing.T) {
		filter := compileFilter(t, c, Users, Criteria{Roles: []directory.Role{directory.RoleRepositoryAdmin}}, adminScope())
		want := `(groups.display sw "jc_" and groups.display ew "_roles_repoadm")`
		if filter != want {
			t.Fatalf("filter = %q, want %q", filter, want)
		}
	})

	t.Run("role and repository filters combine to exact names", func(t *testing.T) {
		crit := Criteria{
			RepositoryIDs: []string{"repo1"},
			Roles:         []directory.Role{directory.RoleRepositoryAdmin, directory.RoleContributor},
		}
		filter := compileFilter(t, c, Users, crit, adminScope())
		want := `(groups.display eq "jc_repo1_roles_repoadm" or groups.display eq "jc_repo1_roles_contrib")`
		if filter != want {
			t.Fatalf("filter = %q, want %q", filter, want)
		}
	})

	t.Run("group filter passes through", func(t *testing.T) {
		filter := compileFilter(t, c, Users, Criteria{GroupIDs: []string{"jc_repo2_groups_g2"}}, adminScope())
		want := `groups.display eq "jc_repo2_groups_g2"`
		if filter != want {
			t.Fatalf("filter = %q, want %q", filter, want)
		}
	})
}

func TestCompileRepositoriesKind(t *testing.T) {
	c := newCompiler(t)

	filter := compileFilter(t, c, Repositories, Criteria{}, repoAdminScope("repo2", "repo1"))
	want := `(id eq "repo1" or id eq "repo2")`
	if filter != want {
		t.Fatalf("filter = %q, want %q", filter, want)
	}

	filter = compileFilter(t, c, Repositories, Criteria{RepositoryIDs: []string{"repo2", "repo9"}}, repoAdminScope("repo1", "repo2"))
	want = `id eq "repo2"`
	if filter != want {
		t.Fatalf("filter = %q, want %q", filter, want)
	}
}

func TestCompileGroupsKindScopesByNamePrefix(t *testing.T) {
	c := newCompiler(t)
	filter := compileFilter(t, c, Groups, Criteria{Query: "reading"}, repoAdminScope("repo1"))
	want := `displayName co "reading" and displayName sw "jc_repo1_"`
	if filter != want {
		t.Fatalf("filter = %q, want %q", filter, want)
	}
}

func TestCompileGroupsKindMemberFilter(t *testing.T) {
	c := newCompiler(t)
	filter := compileFilter(t, c, Groups, Criteria{UserIDs: []string{"u42"}}, repoAdminScope("repo1"))
	want := `members.value eq "u42" and displayName sw "jc_repo1_"`
	if filter != want {
		t.Fatalf("filter = %q, want %q", filter, want)
	}
}

func TestCompileDateRangeUsesCivilTimezone(t *testing.T) {
	c := newCompiler(t)
	crit := Criteria{
		CreatedFrom: Date{Year: 2024, Month: 1, Day: 1},
		CreatedTo:   Date{Year: 2024, Month: 1, Day: 31},
	}
	filter := compileFilter(t, c, Users, crit, adminScope())
	want := `meta.created ge "2023-12-31T15:00:00Z" and meta.created lt "2024-01-31T15:00:00Z"`
	if filter != want {
		t.Fatalf("filter = %q, want %q", filter, want)
	}
}

func TestCompilePaging(t *testing.T) {
	c := newCompiler(t)
	cases := []struct {
		page, size int
		wantStart  *int
		wantCount  *int
	}{
		{page: 2, size: 25, wantStart: intp(26), wantCount: intp(25)},
		{page: 3, size: 0, wantStart: intp(41), wantCount: intp(DefaultPageSize)},
		{page: 1, size: -5, wantStart: intp(1), wantCount: intp(DefaultPageSize)},
		{page: 0, size: 10, wantStart: intp(1), wantCount: intp(10)},
		{page: 0, size: 0, wantStart: nil, wantCount: nil},
		{page: -1, size: -1, wantStart: nil, wantCount: nil},
	}
	for _, tc := range cases {
		out, err := c.Compile(Users, Criteria{Page: tc.page, PageSize: tc.size}, adminScope())
		if err != nil {
			t.Fatalf("compile page=%d size=%d: %v", tc.page, tc.size, err)
		}
		if !intpEqual(out.StartIndex, tc.wantStart) || !intpEqual(out.Count, tc.wantCount) {
			t.Fatalf("page=%d size=%d: got (%d, %d), want (%d, %d)",
				tc.page, tc.size, deref(out.StartIndex), deref(out.Count), deref(tc.wantStart), deref(tc.wantCount))
		}
	}
}

func TestCompileSortMapping(t *testing.T) {
	c := newCompiler(t)

	out, err := c.Compile(Users, Criteria{SortBy: "email", SortOrder: OrderDescending}, adminScope())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if out.SortBy != "emails[0].value" || out.SortOrder != OrderDescending {
		t.Fatalf("unexpected sort: %q %q", out.SortBy, out.SortOrder)
	}

	out, err = c.Compile(Users, Criteria{SortBy: "shoe_size", SortOrder: OrderAscending}, adminScope())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if out.SortBy != "" || out.SortOrder != OrderNone {
		t.Fatalf("unrecognized sort token must yield no sort, got %q %q", out.SortBy, out.SortOrder)
	}
}

func TestCompileEscapesFilterValues(t *testing.T) {
	c := newCompiler(t)
	filter := compileFilter(t, c, Groups, Criteria{Query: `he said "hi"`}, adminScope())
	want := `displayName co "he said \"hi\""`
	if filter != want {
		t.Fatalf("filter = %q, want %q", filter, want)
	}
}

func TestCompileUnknownKind(t *testing.T) {
	c := newCompiler(t)
	if _, err := c.Compile(Kind("projects"), Criteria{}, adminScope()); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestCompileRejectsMembershipFiltersOnRepositories(t *testing.T) {
	c := newCompiler(t)
	if _, err := c.Compile(Repositories, Criteria{Roles: []directory.Role{directory.RoleContributor}}, adminScope()); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	c := newCompiler(t)
	crit := Criteria{
		Query:         "ann",
		RepositoryIDs: []string{"repo2", "repo1", "repo2"},
		Roles:         []directory.Role{directory.RoleContributor, directory.RoleRepositoryAdmin},
		GroupIDs:      []string{"jc_repo1_groups_g1", "jc_repo2_groups_g2"},
		Page:          2,
		PageSize:      10,
	}
	scope := repoAdminScope("repo1", "repo2", "repo3")
	first := compileFilter(t, c, Users, crit, scope)
	for i := 0; i < 20; i++ {
		if got := compileFilter(t, c, Users, crit, scope); got != first {
			t.Fatalf("non-deterministic filter: %q vs %q", got, first)
		}
	}
}

func TestCompileScopeContainment(t *testing.T) {
	c := newCompiler(t)
	scope := repoAdminScope("repo1")
	criteria := []Criteria{
		{},
		{Query: "x"},
		{RepositoryIDs: []string{"repo2", "repo3"}},
		{RepositoryIDs: []string{"repo1", "repo2"}},
		{Roles: []directory.Role{directory.RoleContributor}},
		{Roles: []directory.Role{directory.RoleContributor}, RepositoryIDs: []string{"repo2"}},
		{GroupIDs: []string{"jc_repo2_groups_g2"}},
		{GroupIDs: []string{"jc_repo2_groups_g2"}, Roles: []directory.Role{directory.RoleSystemAdmin}},
		{IDs: []string{"u1"}, RepositoryIDs: []string{"repo2"}},
	}
	for _, crit := range criteria {
		for _, kind := range []Kind{Users, Groups} {
			if kind == Groups {
				crit.Roles = nil
			}
			filter := compileFilter(t, c, kind, crit, scope)
			if strings.Contains(filter, "repo2") || strings.Contains(filter, "repo3") {
				t.Fatalf("kind %s criteria %+v: out-of-scope repository in filter %q", kind, crit, filter)
			}
			if filter == "" {
				t.Fatalf("kind %s criteria %+v: scope clause omitted entirely", kind, crit)
			}
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	if d.Year != 2024 || d.Month != 2 || d.Day != 29 {
		t.Fatalf("unexpected date: %+v", d)
	}
	if _, err := ParseDate("2024-13-01"); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func intp(v int) *int { return &v }

func intpEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func deref(v *int) int {
	if v == nil {
		return -1
	}
	return *v
}
