package directory

// Affiliation is a decoded relationship between a principal or resource and
// a repository: either a role grant or membership in a user-defined group.
type Affiliation interface {
	affiliation()
}

// RoleAffiliation is membership in a built-in role group. RepositoryID is
// nil for system-wide roles.
type RoleAffiliation struct {
	RepositoryID *string
	Role         Role
}

// GroupAffiliation is membership in a user-defined group scoped to exactly
// one repository. GroupID is the canonical identifier as seen on the wire.
type GroupAffiliation struct {
	RepositoryID  string
	GroupID       string
	UserDefinedID string
}

func (RoleAffiliation) affiliation()  {}
func (GroupAffiliation) affiliation() {}

type Affiliations struct {
	Roles  []RoleAffiliation
	Groups []GroupAffiliation
}

// Resolver classifies a raw identifier list into role and group
// affiliations. Pure function of the configuration snapshot and its input.
type Resolver struct {
	cfg   *Config
	codec *Codec
}

func NewResolver(cfg *Config, codec *Codec) *Resolver {
	return &Resolver{cfg: cfg, codec: codec}
}

// Resolve decodes every raw id, drops unrecognized ones silently, and keeps
// a single highest-ranked role per repository key. Group affiliations pass
// through unaggregated in input order; duplicate raw ids yield duplicates,
// which are harmless downstream.
func (r *Resolver) Resolve(rawIDs []string) Affiliations {
	var out Affiliations
	bestByRepo := make(map[string]int)
	for _, raw := range rawIDs {
		aff, ok := r.codec.Decode(raw)
		if !ok {
			continue
		}
		switch a := aff.(type) {
		case RoleAffiliation:
			key := ""
			if a.RepositoryID != nil {
				key = *a.RepositoryID
			}
			if i, seen := bestByRepo[key]; seen {
				if r.cfg.roleOutranks(a.Role, out.Roles[i].Role) {
					out.Roles[i] = a
				}
				continue
			}
			bestByRepo[key] = len(out.Roles)
			out.Roles = append(out.Roles, a)
		case GroupAffiliation:
			out.Groups = append(out.Groups, a)
		}
	}
	return out
}
