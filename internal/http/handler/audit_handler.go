package handler

import (
	"net/http"

	"github.com/reposync/admin-backend/internal/http/response"
	"github.com/reposync/admin-backend/internal/repository"
)

type AuditHandler struct {
	audits repository.SyncAuditRepository
}

func NewAuditHandler(audits repository.SyncAuditRepository) *AuditHandler {
	return &AuditHandler{audits: audits}
}

// List returns recorded mutation and reconciliation audit entries, newest first.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := principalOrError(w, r); !ok {
		return
	}

	req, err := parsePageRequest(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	page, err := h.audits.ListPaged(req)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to list audit entries", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, paginatedData(page.Items, page.Page, page.PageSize, page.Total, page.TotalPages))
}
