package handler

import (
	"net/http"

	"github.com/reposync/admin-backend/internal/http/response"
)

type PrincipalHandler struct{}

func NewPrincipalHandler() *PrincipalHandler {
	return &PrincipalHandler{}
}

type roleView struct {
	RepositoryID *string `json:"repository_id"`
	Role         string  `json:"role"`
}

type groupView struct {
	RepositoryID string `json:"repository_id"`
	GroupID      string `json:"group_id"`
	Name         string `json:"name"`
}

// Me reports the caller's decoded affiliations and effective scope, as the
// backend sees them. Useful for UIs and for debugging group naming issues.
func (h *PrincipalHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrError(w, r)
	if !ok {
		return
	}

	roles := make([]roleView, 0, len(p.Affiliations.Roles))
	for _, ra := range p.Affiliations.Roles {
		roles = append(roles, roleView{RepositoryID: ra.RepositoryID, Role: ra.Role.String()})
	}
	groups := make([]groupView, 0, len(p.Affiliations.Groups))
	for _, ga := range p.Affiliations.Groups {
		groups = append(groups, groupView{
			RepositoryID: ga.RepositoryID,
			GroupID:      ga.GroupID,
			Name:         ga.UserDefinedID,
		})
	}

	response.JSON(w, r, http.StatusOK, map[string]any{
		"user_id": p.UserID,
		"roles":   roles,
		"groups":  groups,
		"scope": map[string]any{
			"system_admin":             p.Scope.IsSystemAdmin,
			"permitted_repository_ids": p.Scope.SortedRepositoryIDs(),
		},
	})
}
