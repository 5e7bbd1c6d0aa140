package directory

import "testing"

func newScopeProvider(t *testing.T) (*Config, *ScopeProvider) {
	t.Helper()
	cfg := testConfig(t)
	codec := NewCodec(cfg)
	return cfg, NewScopeProvider(cfg, codec, NewResolver(cfg, codec))
}

func TestResolveSystemAdmin(t *testing.T) {
	cfg := testConfig(t)
	codec := NewCodec(cfg)
	resolver := NewResolver(cfg, codec)

	affs := resolver.Resolve([]string{"jc_roles_sysadm"})
	if len(affs.Roles) != 1 || len(affs.Groups) != 0 {
		t.Fatalf("unexpected affiliations: %+v", affs)
	}
	if affs.Roles[0].Role != RoleSystemAdmin || affs.Roles[0].RepositoryID != nil {
		t.Fatalf("unexpected role affiliation: %+v", affs.Roles[0])
	}

	_, provider := newScopeProvider(t)
	if !provider.IsSystemAdmin([]string{"jc_roles_sysadm"}) {
		t.Fatal("expected system admin")
	}
}

func TestResolveRepositoryAdminWithGroup(t *testing.T) {
	cfg := testConfig(t)
	codec := NewCodec(cfg)
	resolver := NewResolver(cfg, codec)

	affs := resolver.Resolve([]string{"jc_repo1_roles_repoadm", "jc_repo1_groups_g1"})
	if len(affs.Roles) != 1 {
		t.Fatalf("expected one role affiliation, got %+v", affs.Roles)
	}
	role := affs.Roles[0]
	if role.Role != RoleRepositoryAdmin || role.RepositoryID == nil || *role.RepositoryID != "repo1" {
		t.Fatalf("unexpected role affiliation: %+v", role)
	}
	if len(affs.Groups) != 1 {
		t.Fatalf("expected one group affiliation, got %+v", affs.Groups)
	}
	group := affs.Groups[0]
	if group.RepositoryID != "repo1" || group.GroupID != "jc_repo1_groups_g1" || group.UserDefinedID != "g1" {
		t.Fatalf("unexpected group affiliation: %+v", group)
	}

	_, provider := newScopeProvider(t)
	permitted := provider.PermittedRepositoryIDs([]string{"jc_repo1_roles_repoadm", "jc_repo1_groups_g1"})
	if len(permitted) != 1 {
		t.Fatalf("unexpected permitted set: %v", permitted)
	}
	if _, ok := permitted["repo1"]; !ok {
		t.Fatalf("expected repo1 in permitted set: %v", permitted)
	}
}

func TestResolveKeepsHighestRolePerRepository(t *testing.T) {
	cfg := testConfig(t)
	codec := NewCodec(cfg)
	resolver := NewResolver(cfg, codec)

	affs := resolver.Resolve([]string{
		"jc_repo1_roles_contrib",
		"jc_repo1_roles_repoadm",
		"jc_repo1_roles_comadm",
		"jc_repo2_roles_contrib",
	})
	if len(affs.Roles) != 2 {
		t.Fatalf("expected one role per repository, got %+v", affs.Roles)
	}
	byRepo := make(map[string]Role, len(affs.Roles))
	for _, aff := range affs.Roles {
		byRepo[*aff.RepositoryID] = aff.Role
	}
	if byRepo["repo1"] != RoleRepositoryAdmin {
		t.Fatalf("expected repository admin for repo1, got %v", byRepo["repo1"])
	}
	if byRepo["repo2"] != RoleContributor {
		t.Fatalf("expected contributor for repo2, got %v", byRepo["repo2"])
	}
}

func TestResolveSkipsUnrecognizedIDs(t *testing.T) {
	cfg := testConfig(t)
	codec := NewCodec(cfg)
	resolver := NewResolver(cfg, codec)

	affs := resolver.Resolve([]string{"ldap-imported-group", "", "jc_repo1_roles_contrib"})
	if len(affs.Roles) != 1 || len(affs.Groups) != 0 {
		t.Fatalf("unexpected affiliations: %+v", affs)
	}
}

func TestIsSystemAdminIgnoresRepositoryScopedGrant(t *testing.T) {
	_, provider := newScopeProvider(t)
	if provider.IsSystemAdmin([]string{"jc_repo1_roles_repoadm"}) {
		t.Fatal("repository admin must not count as system admin")
	}
}

func TestPermittedRepositoryIDsExcludesLowerRoles(t *testing.T) {
	_, provider := newScopeProvider(t)
	permitted := provider.PermittedRepositoryIDs([]string{
		"jc_repo1_roles_repoadm",
		"jc_repo2_roles_comadm",
		"jc_repo3_roles_contrib",
		"jc_roles_sysadm",
	})
	if len(permitted) != 1 {
		t.Fatalf("expected only repository-admin repos, got %v", permitted)
	}
	if _, ok := permitted["repo1"]; !ok {
		t.Fatalf("expected repo1, got %v", permitted)
	}
}

func TestFilterPermittedGroupIDs(t *testing.T) {
	_, provider := newScopeProvider(t)
	rawIDs := []string{"jc_repo1_roles_repoadm"}
	kept := provider.FilterPermittedGroupIDs(rawIDs, []string{
		"jc_repo1_groups_g1",
		"jc_repo2_groups_g2",
		"jc_repo1_roles_contrib",
		"not-a-convention-group",
	})
	if len(kept) != 1 {
		t.Fatalf("unexpected kept set: %v", kept)
	}
	if _, ok := kept["jc_repo1_groups_g1"]; !ok {
		t.Fatalf("expected jc_repo1_groups_g1, got %v", kept)
	}
}

func TestScopeFor(t *testing.T) {
	_, provider := newScopeProvider(t)
	scope := provider.ScopeFor([]string{"jc_roles_sysadm", "jc_repo1_roles_repoadm"})
	if !scope.IsSystemAdmin {
		t.Fatal("expected system admin scope")
	}
	if _, ok := scope.PermittedRepositoryIDs["repo1"]; !ok {
		t.Fatalf("expected repo1 in permitted set: %v", scope.PermittedRepositoryIDs)
	}
}
