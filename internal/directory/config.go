package directory

import (
	"fmt"
	"strings"
	"time"
)

const (
	RepositoryIDPlaceholder  = "{repository_id}"
	UserDefinedIDPlaceholder = "{user_defined_id}"

	DefaultMaxIdentifierLength = 128
	DefaultTimezone            = "Asia/Tokyo"
)

// Role is ordered most-privileged first; a smaller value outranks a larger one.
type Role int

const (
	RoleSystemAdmin Role = iota
	RoleRepositoryAdmin
	RoleCommunityAdmin
	RoleContributor
	RoleGeneralUser
)

var roleNames = map[Role]string{
	RoleSystemAdmin:     "system_admin",
	RoleRepositoryAdmin: "repository_admin",
	RoleCommunityAdmin:  "community_admin",
	RoleContributor:     "contributor",
	RoleGeneralUser:     "general_user",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

func ParseRole(v string) (Role, bool) {
	for role, name := range roleNames {
		if name == strings.ToLower(strings.TrimSpace(v)) {
			return role, true
		}
	}
	return 0, false
}

type GroupKind string

const (
	KindUserDefined GroupKind = "user_defined"
)

// KindTemplate binds one group kind to the identifier template the remote
// directory uses for groups of that kind. Role kinds carry the role granted
// by membership; the user-defined kind carries none.
type KindTemplate struct {
	Kind     GroupKind
	Template string
	Role     Role
	HasRole  bool
}

type Config struct {
	// Kinds is ordered; on ambiguous identifiers the first-declared kind wins.
	Kinds []KindTemplate

	// RoleOrder defines the total rank order, most-privileged first.
	RoleOrder []Role

	MaxIdentifierLength int

	// Timezone is the civil timezone used to anchor calendar-date criteria.
	Timezone string

	location   *time.Location
	roleRank   map[Role]int
	kindsByKey map[GroupKind]KindTemplate
	repoPrefix string
	repoSep    string
}

func DefaultRoleOrder() []Role {
	return []Role{RoleSystemAdmin, RoleRepositoryAdmin, RoleCommunityAdmin, RoleContributor, RoleGeneralUser}
}

// NewConfig validates the snapshot once at process start. Any error here is a
// configuration error and must prevent the process from serving requests.
func NewConfig(kinds []KindTemplate, opts ...ConfigOption) (*Config, error) {
	if len(kinds) == 0 {
		return nil, fmt.Errorf("directory: no group kind templates configured")
	}
	cfg := &Config{
		Kinds:               kinds,
		RoleOrder:           DefaultRoleOrder(),
		MaxIdentifierLength: DefaultMaxIdentifierLength,
		Timezone:            DefaultTimezone,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	cfg.kindsByKey = make(map[GroupKind]KindTemplate, len(kinds))
	for _, kt := range kinds {
		if kt.Kind == "" {
			return nil, fmt.Errorf("directory: kind template with empty kind name")
		}
		if _, dup := cfg.kindsByKey[kt.Kind]; dup {
			return nil, fmt.Errorf("directory: duplicate kind %q", kt.Kind)
		}
		if strings.Count(kt.Template, RepositoryIDPlaceholder) > 1 {
			return nil, fmt.Errorf("directory: kind %q repeats %s", kt.Kind, RepositoryIDPlaceholder)
		}
		if kt.Kind == KindUserDefined {
			if !strings.Contains(kt.Template, RepositoryIDPlaceholder) {
				return nil, fmt.Errorf("directory: kind %q template missing %s", kt.Kind, RepositoryIDPlaceholder)
			}
			if strings.Count(kt.Template, UserDefinedIDPlaceholder) != 1 {
				return nil, fmt.Errorf("directory: kind %q template needs exactly one %s", kt.Kind, UserDefinedIDPlaceholder)
			}
			if strings.Index(kt.Template, RepositoryIDPlaceholder) > strings.Index(kt.Template, UserDefinedIDPlaceholder) {
				return nil, fmt.Errorf("directory: kind %q must place %s before %s", kt.Kind, RepositoryIDPlaceholder, UserDefinedIDPlaceholder)
			}
		} else if strings.Contains(kt.Template, UserDefinedIDPlaceholder) {
			return nil, fmt.Errorf("directory: kind %q may not use %s", kt.Kind, UserDefinedIDPlaceholder)
		}
		cfg.kindsByKey[kt.Kind] = kt
	}

	if len(cfg.RoleOrder) == 0 {
		return nil, fmt.Errorf("directory: empty role order")
	}
	cfg.roleRank = make(map[Role]int, len(cfg.RoleOrder))
	for i, role := range cfg.RoleOrder {
		if _, dup := cfg.roleRank[role]; dup {
			return nil, fmt.Errorf("directory: role %s listed twice in rank order", role)
		}
		cfg.roleRank[role] = i
	}

	if cfg.MaxIdentifierLength <= 0 {
		return nil, fmt.Errorf("directory: max identifier length must be positive")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("directory: load timezone %q: %w", cfg.Timezone, err)
	}
	cfg.location = loc

	if err := cfg.deriveRepoPrefix(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type ConfigOption func(*Config)

func WithRoleOrder(order []Role) ConfigOption {
	return func(c *Config) { c.RoleOrder = order }
}

func WithMaxIdentifierLength(n int) ConfigOption {
	return func(c *Config) { c.MaxIdentifierLength = n }
}

func WithTimezone(tz string) ConfigOption {
	return func(c *Config) { c.Timezone = tz }
}

// deriveRepoPrefix requires every repository-scoped template to share one
// literal prefix up to the repository id and one separator right after it.
// The query compiler leans on that when it emits "any group of repository X"
// clauses; templates that diverge earlier cannot bound matches to a single
// repository and are rejected outright.
func (c *Config) deriveRepoPrefix() error {
	prefix := ""
	sep := ""
	found := false
	for _, kt := range c.Kinds {
		idx := strings.Index(kt.Template, RepositoryIDPlaceholder)
		if idx < 0 {
			continue
		}
		rest := kt.Template[idx+len(RepositoryIDPlaceholder):]
		if rest == "" {
			return fmt.Errorf("directory: kind %q template ends at %s, cannot delimit repository id", kt.Kind, RepositoryIDPlaceholder)
		}
		head := kt.Template[:idx]
		tail := rest[:1]
		if !found {
			prefix, sep, found = head, tail, true
			continue
		}
		if head != prefix || tail != sep {
			return fmt.Errorf("directory: kind %q template diverges from shared repository prefix %q", kt.Kind, prefix+RepositoryIDPlaceholder+sep)
		}
	}
	if !found {
		return fmt.Errorf("directory: no repository-scoped kind template configured")
	}
	c.repoPrefix = prefix
	c.repoSep = sep
	return nil
}

// RepositoryGroupPrefix returns the literal prefix shared by every group
// identifier belonging to the given repository.
func (c *Config) RepositoryGroupPrefix(repositoryID string) string {
	return c.repoPrefix + repositoryID + c.repoSep
}

// KindForRole returns the first-declared repository-scoped kind granting the
// given role.
func (c *Config) KindForRole(role Role) (KindTemplate, bool) {
	for _, kt := range c.Kinds {
		if kt.HasRole && kt.Role == role && strings.Contains(kt.Template, RepositoryIDPlaceholder) {
			return kt, true
		}
	}
	return KindTemplate{}, false
}

func (c *Config) Kind(kind GroupKind) (KindTemplate, bool) {
	kt, ok := c.kindsByKey[kind]
	return kt, ok
}

// roleOutranks reports whether a outranks b in the configured total order.
// Roles absent from the order rank below every configured role.
func (c *Config) roleOutranks(a, b Role) bool {
	ra, aok := c.roleRank[a]
	rb, bok := c.roleRank[b]
	if !aok {
		return false
	}
	if !bok {
		return true
	}
	return ra < rb
}

func (c *Config) Location() *time.Location {
	return c.location
}
