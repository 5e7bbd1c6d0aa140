package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/reposync/admin-backend/internal/directory"
	"github.com/reposync/admin-backend/internal/directory/query"
	"github.com/reposync/admin-backend/internal/http/middleware"
	"github.com/reposync/admin-backend/internal/http/response"
	"github.com/reposync/admin-backend/internal/repository"
	"github.com/reposync/admin-backend/internal/service"
)

func principalOrError(w http.ResponseWriter, r *http.Request) (*service.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return nil, false
	}
	return p, true
}

// writeServiceError maps service errors onto the API error contract.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "not permitted for this resource", nil)
	case errors.Is(err, service.ErrNotFound):
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
	case errors.Is(err, query.ErrInvalidQuery),
		errors.Is(err, service.ErrInvalidGroupName),
		errors.Is(err, service.ErrGroupNotManaged),
		errors.Is(err, service.ErrImportBadRow),
		errors.Is(err, service.ErrImportEmpty),
		errors.Is(err, service.ErrImportTooLarge),
		errors.Is(err, service.ErrImportFileTooBig):
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		response.Error(w, r, http.StatusBadGateway, "UPSTREAM", "directory request failed", nil)
	}
}

// parseCriteria reads the shared search parameters. Unknown roles and
// malformed dates are client errors, not silently dropped criteria.
func parseCriteria(r *http.Request) (query.Criteria, error) {
	q := r.URL.Query()
	crit := query.Criteria{
		Query:         strings.TrimSpace(q.Get("q")),
		IDs:           q["id"],
		RepositoryIDs: q["repository_id"],
		GroupIDs:      q["group_id"],
		UserIDs:       q["user_id"],
		SortBy:        q.Get("sort_by"),
	}

	for _, raw := range q["role"] {
		role, ok := directory.ParseRole(raw)
		if !ok {
			return query.Criteria{}, fmt.Errorf("unknown role %q", raw)
		}
		crit.Roles = append(crit.Roles, role)
	}

	if v := q.Get("created_from"); v != "" {
		d, err := query.ParseDate(v)
		if err != nil {
			return query.Criteria{}, err
		}
		crit.CreatedFrom = d
	}
	if v := q.Get("created_to"); v != "" {
		d, err := query.ParseDate(v)
		if err != nil {
			return query.Criteria{}, err
		}
		crit.CreatedTo = d
	}

	switch order := q.Get("sort_order"); order {
	case "", "asc", "ascending":
		if order != "" {
			crit.SortOrder = query.OrderAscending
		}
	case "desc", "descending":
		crit.SortOrder = query.OrderDescending
	default:
		return query.Criteria{}, fmt.Errorf("invalid sort_order %q", order)
	}

	var err error
	if crit.Page, err = parseOptionalInt(q.Get("page")); err != nil {
		return query.Criteria{}, fmt.Errorf("invalid page: %w", err)
	}
	if crit.PageSize, err = parseOptionalInt(q.Get("page_size")); err != nil {
		return query.Criteria{}, fmt.Errorf("invalid page_size: %w", err)
	}
	return crit, nil
}

func parseOptionalInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return n, nil
}

func parsePageRequest(r *http.Request) (repository.PageRequest, error) {
	q := r.URL.Query()
	page, err := parseOptionalInt(q.Get("page"))
	if err != nil {
		return repository.PageRequest{}, fmt.Errorf("invalid page: %w", err)
	}
	pageSize, err := parseOptionalInt(q.Get("page_size"))
	if err != nil {
		return repository.PageRequest{}, fmt.Errorf("invalid page_size: %w", err)
	}
	return repository.PageRequest{Page: page, PageSize: pageSize}, nil
}

func paginatedData[T any](items []T, page, pageSize int, total int64, totalPages int) map[string]any {
	if items == nil {
		items = []T{}
	}
	return map[string]any{
		"items": items,
		"pagination": map[string]any{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": totalPages,
		},
	}
}

func actorID(r *http.Request) string {
	if p, ok := middleware.PrincipalFromContext(r.Context()); ok {
		return p.UserID
	}
	return "anonymous"
}
