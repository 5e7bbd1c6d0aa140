package handler

import (
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reposync/admin-backend/internal/http/response"
	"github.com/reposync/admin-backend/internal/observability"
	"github.com/reposync/admin-backend/internal/service"
)

type ImportHandler struct {
	imports service.ImportService
}

func NewImportHandler(imports service.ImportService) *ImportHandler {
	return &ImportHandler{imports: imports}
}

// Submit accepts either a multipart upload under the "file" field or a raw
// CSV request body.
func (h *ImportHandler) Submit(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrError(w, r)
	if !ok {
		return
	}

	var (
		reader   io.Reader = r.Body
		fileName           = "upload.csv"
	)
	if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "missing file field", nil)
			return
		}
		defer file.Close()
		reader = file
		if header.Filename != "" {
			fileName = header.Filename
		}
	}

	job, err := h.imports.Submit(r.Context(), p, fileName, reader)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "directory.import.submit",
		ActorUserID: actorID(r),
		TargetType:  "import_job",
		TargetID:    job.ID,
		Action:      "create",
		Outcome:     "success",
		Reason:      "import_submitted",
	}, "file_name", job.FileName, "total_rows", job.TotalRows)
	response.JSON(w, r, http.StatusAccepted, job)
}

func (h *ImportHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrError(w, r)
	if !ok {
		return
	}
	job, rows, err := h.imports.Job(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"job":  job,
		"rows": rows,
	})
}

func (h *ImportHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrError(w, r)
	if !ok {
		return
	}
	pageReq, err := parsePageRequest(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	res, err := h.imports.ListJobs(r.Context(), p, pageReq)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, paginatedData(res.Items, res.Page, res.PageSize, res.Total, res.TotalPages))
}
