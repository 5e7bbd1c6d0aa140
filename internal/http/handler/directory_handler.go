package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reposync/admin-backend/internal/http/response"
	"github.com/reposync/admin-backend/internal/observability"
	"github.com/reposync/admin-backend/internal/scim"
	"github.com/reposync/admin-backend/internal/service"
)

// DirectoryHandler exposes the mirrored directory resources: users, groups
// and repositories. Every operation runs under the caller's permission
// scope; the handler never widens what the service allows.
type DirectoryHandler struct {
	admin service.DirectoryAdminService
}

func NewDirectoryHandler(admin service.DirectoryAdminService) *DirectoryHandler {
	return &DirectoryHandler{admin: admin}
}

func (h *DirectoryHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrError(w, r)
	if !ok {
		return
	}
	crit, err := parseCriteria(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	list, err := h.admin.SearchUsers(r.Context(), p, crit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, list)
}

func (h *DirectoryHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrError(w, r)
	if !ok {
		return
	}
	user, err := h.admin.GetUser(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, user)
}

func (h *DirectoryHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrError(w, r)
	if !ok {
		return
	}
	var body scim.User
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	id := chi.URLParam(r, "id")
	updated, err := h.admin.UpdateUser(r.Context(), p, id, body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "directory.user.update",
		ActorUserID: actorID(r),
		TargetType:  "user",
		TargetID:    id,
		Action:      "update",
		Outcome:     "success",
		Reason:      "user_updated",
	})
	response.JSON(w, r, http.StatusOK, updated)
}

func (h *DirectoryHandler) SearchGroups(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrError(w, r)
	if !ok {
		return
	}
	crit, err := parseCriteria(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	list, err := h.admin.SearchGroups(r.Context(), p, crit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, list)
}

func (h *DirectoryHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrError(w, r)
	if !ok {
		return
	}
	group, err := h.admin.GetGroup(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, group)
}

func (h *DirectoryHandler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrError(w, r)
	if !ok {
		return
	}
	var body scim.Group
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	id := chi.URLParam(r, "id")
	updated, err := h.admin.UpdateGroup(r.Context(), p, id, body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "directory.group.update",
		ActorUserID: actorID(r),
		TargetType:  "group",
		TargetID:    id,
		Action:      "update",
		Outcome:     "success",
		Reason:      "group_updated",
	})
	response.JSON(w, r, http.StatusOK, updated)
}

func (h *DirectoryHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrError(w, r)
	if !ok {
		return
	}
	var body struct {
		RepositoryID string `json:"repository_id"`
		Name         string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	created, err := h.admin.CreateGroup(r.Context(), p, body.RepositoryID, body.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "directory.group.create",
		ActorUserID: actorID(r),
		TargetType:  "group",
		TargetID:    created.ID,
		Action:      "create",
		Outcome:     "success",
		Reason:      "group_created",
	}, "display_name", created.DisplayName)
	response.JSON(w, r, http.StatusCreated, created)
}

func (h *DirectoryHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrError(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.admin.DeleteGroup(r.Context(), p, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "directory.group.delete",
		ActorUserID: actorID(r),
		TargetType:  "group",
		TargetID:    id,
		Action:      "delete",
		Outcome:     "success",
		Reason:      "group_deleted",
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *DirectoryHandler) AddGroupMember(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrError(w, r)
	if !ok {
		return
	}
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	groupID := chi.URLParam(r, "id")
	if err := h.admin.AddGroupMember(r.Context(), p, groupID, body.UserID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "directory.group.member_add",
		ActorUserID: actorID(r),
		TargetType:  "group",
		TargetID:    groupID,
		Action:      "member_add",
		Outcome:     "success",
		Reason:      "member_added",
	}, "user_id", body.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *DirectoryHandler) RemoveGroupMember(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrError(w, r)
	if !ok {
		return
	}
	groupID := chi.URLParam(r, "id")
	userID := chi.URLParam(r, "userID")
	if err := h.admin.RemoveGroupMember(r.Context(), p, groupID, userID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "directory.group.member_remove",
		ActorUserID: actorID(r),
		TargetType:  "group",
		TargetID:    groupID,
		Action:      "member_remove",
		Outcome:     "success",
		Reason:      "member_removed",
	}, "user_id", userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *DirectoryHandler) SearchRepositories(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrError(w, r)
	if !ok {
		return
	}
	crit, err := parseCriteria(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	list, err := h.admin.SearchRepositories(r.Context(), p, crit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, list)
}
