package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reposync/admin-backend/internal/directory/query"
	"github.com/reposync/admin-backend/internal/domain"
	"github.com/reposync/admin-backend/internal/observability"
	"github.com/reposync/admin-backend/internal/repository"
)

var (
	ErrImportEmpty    = errors.New("import file contains no rows")
	ErrImportTooLarge = errors.New("import file exceeds the row limit")
	ErrImportBadRow   = errors.New("malformed import row")
)

const (
	importActionAdd    = "add"
	importActionRemove = "remove"
)

// ImportServiceImpl applies bulk membership changes from a CSV upload. Each
// row is one add or remove of a user in a managed group, addressed by the
// group's canonical name; rows are applied through the admin service so the
// caller's permission scope holds for every row.
type ImportServiceImpl struct {
	jobs    repository.ImportJobRepository
	admin   DirectoryAdminService
	archive ImportArchive
	maxRows int
}

func NewImportService(jobs repository.ImportJobRepository, admin DirectoryAdminService, archive ImportArchive, maxRows int) *ImportServiceImpl {
	if archive == nil {
		archive = NoopImportArchive{}
	}
	return &ImportServiceImpl{jobs: jobs, admin: admin, archive: archive, maxRows: maxRows}
}

type importLine struct {
	lineNo    int
	action    string
	groupName string
	userID    string
}

// Submit parses the upload, persists the job, and applies every row before
// returning. Row failures do not abort the job; they are recorded per row
// and counted on the job.
func (s *ImportServiceImpl) Submit(ctx context.Context, p *Principal, fileName string, csvData io.Reader) (*domain.ImportJob, error) {
	data, err := io.ReadAll(io.LimitReader(csvData, maxImportFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}
	if int64(len(data)) > maxImportFileSize {
		observability.RecordImportJobEvent(ctx, "rejected")
		return nil, ErrImportFileTooBig
	}
	lines, err := s.parse(bytes.NewReader(data))
	if err != nil {
		observability.RecordImportJobEvent(ctx, "rejected")
		return nil, err
	}

	job := &domain.ImportJob{
		ID:          uuid.NewString(),
		FileName:    fileName,
		Status:      domain.ImportJobStatusPending,
		RequestedBy: p.UserID,
		TotalRows:   len(lines),
	}
	if err := s.jobs.Create(job); err != nil {
		return nil, fmt.Errorf("create import job: %w", err)
	}
	observability.RecordImportJobEvent(ctx, "submitted")

	// Archive failures do not fail the job.
	_, _ = s.archive.ArchiveImportFile(ctx, job.ID, bytes.NewReader(data), int64(len(data)))

	startedAt := time.Now().UTC()
	if err := s.jobs.MarkRunning(job.ID, startedAt); err != nil {
		return nil, fmt.Errorf("start import job: %w", err)
	}
	job.Status = domain.ImportJobStatusRunning
	job.StartedAt = &startedAt

	rows := make([]domain.ImportRow, 0, len(lines))
	applied, failed := 0, 0
	for _, line := range lines {
		row := domain.ImportRow{
			JobID:     job.ID,
			LineNo:    line.lineNo,
			GroupName: line.groupName,
			UserID:    line.userID,
			Action:    line.action,
		}
		status, rowErr := s.applyLine(ctx, p, line)
		row.Status = status
		switch status {
		case domain.ImportRowStatusApplied:
			applied++
		case domain.ImportRowStatusFailed:
			failed++
			row.Error = rowErr.Error()
		}
		rows = append(rows, row)
	}
	if err := s.jobs.AppendRows(rows); err != nil {
		return nil, fmt.Errorf("record import rows: %w", err)
	}

	status := domain.ImportJobStatusCompleted
	if failed > 0 && applied == 0 {
		status = domain.ImportJobStatusFailed
	}
	finishedAt := time.Now().UTC()
	if err := s.jobs.MarkFinished(job.ID, status, applied, failed, "", finishedAt); err != nil {
		return nil, fmt.Errorf("finish import job: %w", err)
	}
	job.Status = status
	job.AppliedRows = applied
	job.FailedRows = failed
	job.FinishedAt = &finishedAt

	observability.RecordImportJobEvent(ctx, status)
	observability.RecordImportRowsProcessed(ctx, domain.ImportRowStatusApplied, applied)
	observability.RecordImportRowsProcessed(ctx, domain.ImportRowStatusFailed, failed)
	return job, nil
}

// applyLine resolves the group by its canonical name through a scoped search,
// so out-of-scope groups are indistinguishable from missing ones.
func (s *ImportServiceImpl) applyLine(ctx context.Context, p *Principal, line importLine) (string, error) {
	list, err := s.admin.SearchGroups(ctx, p, query.Criteria{GroupIDs: []string{line.groupName}})
	if err != nil {
		return domain.ImportRowStatusFailed, err
	}
	if list.TotalResults == 0 || len(list.Resources) == 0 {
		return domain.ImportRowStatusFailed, fmt.Errorf("group %q not found", line.groupName)
	}
	group := list.Resources[0]

	member := false
	for _, m := range group.Members {
		if m.Value == line.userID {
			member = true
			break
		}
	}

	switch line.action {
	case importActionAdd:
		if member {
			return domain.ImportRowStatusSkipped, nil
		}
		if err := s.admin.AddGroupMember(ctx, p, group.ID, line.userID); err != nil {
			return domain.ImportRowStatusFailed, err
		}
	case importActionRemove:
		if !member {
			return domain.ImportRowStatusSkipped, nil
		}
		if err := s.admin.RemoveGroupMember(ctx, p, group.ID, line.userID); err != nil {
			return domain.ImportRowStatusFailed, err
		}
	}
	return domain.ImportRowStatusApplied, nil
}

// parse reads the CSV. Columns are action,group_name,user_id; a leading
// header row with those names is tolerated and skipped.
func (s *ImportServiceImpl) parse(r io.Reader) ([]importLine, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true

	var lines []importLine
	lineNo := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		lineNo++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrImportBadRow, lineNo, err)
		}
		action := strings.ToLower(strings.TrimSpace(record[0]))
		if lineNo == 1 && action == "action" {
			continue
		}
		groupName := strings.TrimSpace(record[1])
		userID := strings.TrimSpace(record[2])
		if action != importActionAdd && action != importActionRemove {
			return nil, fmt.Errorf("%w: line %d: unknown action %q", ErrImportBadRow, lineNo, record[0])
		}
		if groupName == "" || userID == "" {
			return nil, fmt.Errorf("%w: line %d: empty group name or user id", ErrImportBadRow, lineNo)
		}
		lines = append(lines, importLine{lineNo: lineNo, action: action, groupName: groupName, userID: userID})
	}
	if len(lines) == 0 {
		return nil, ErrImportEmpty
	}
	if s.maxRows > 0 && len(lines) > s.maxRows {
		return nil, fmt.Errorf("%w: %d rows, limit %d", ErrImportTooLarge, len(lines), s.maxRows)
	}
	return lines, nil
}

func (s *ImportServiceImpl) Job(ctx context.Context, p *Principal, id string) (*domain.ImportJob, []domain.ImportRow, error) {
	job, err := s.jobs.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrImportJobNotFound) {
			return nil, nil, fmt.Errorf("%w: import job %s", ErrNotFound, id)
		}
		return nil, nil, err
	}
	if !p.Scope.IsSystemAdmin && job.RequestedBy != p.UserID {
		return nil, nil, ErrForbidden
	}
	rows, err := s.jobs.RowsForJob(id)
	if err != nil {
		return nil, nil, err
	}
	return job, rows, nil
}

func (s *ImportServiceImpl) ListJobs(ctx context.Context, p *Principal, req repository.PageRequest) (repository.PageResult[domain.ImportJob], error) {
	if !p.Scope.IsSystemAdmin {
		return repository.PageResult[domain.ImportJob]{}, ErrForbidden
	}
	return s.jobs.ListPaged(req)
}
