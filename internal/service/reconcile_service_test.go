package service

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/reposync/admin-backend/internal/directory/query"
	"github.com/reposync/admin-backend/internal/domain"
	"github.com/reposync/admin-backend/internal/repository"
	"github.com/reposync/admin-backend/internal/scim"
	"github.com/reposync/admin-backend/internal/scim/scimmock"
)

type capturingAuditRepo struct {
	entries []domain.SyncAudit
}

func (r *capturingAuditRepo) Record(entry *domain.SyncAudit) error {
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *capturingAuditRepo) ListPaged(req repository.PageRequest) (repository.PageResult[domain.SyncAudit], error) {
	return repository.PageResult[domain.SyncAudit]{}, nil
}

func (r *capturingAuditRepo) DeleteOlderThan(cutoff time.Time) (int64, error) { return 0, nil }

func TestReconcileReportsMissingRoleGroups(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := scimmock.NewMockClient(ctrl)
	cfg, codec := newDirectoryConfig(t)
	audits := &capturingAuditRepo{}
	svc := NewReconcileService(client, cfg, codec, audits, slog.Default())

	client.EXPECT().SearchRepositories(gomock.Any(), gomock.Any()).Return(
		&scim.ListResponse[scim.Repository]{
			TotalResults: 2,
			Resources: []scim.Repository{
				{ID: "repo1", DisplayName: "Repository One"},
				{ID: "repo2", DisplayName: "Repository Two"},
			},
		}, nil)

	// repo1 has all role groups, repo2 is missing the community admin group.
	client.EXPECT().SearchGroups(gomock.Any(), gomock.Any()).Return(
		&scim.ListResponse[scim.Group]{
			TotalResults: 3,
			Resources: []scim.Group{
				{ID: "g1", DisplayName: "jc_repo1_roles_repoadm"},
				{ID: "g2", DisplayName: "jc_repo1_roles_comadm"},
				{ID: "g3", DisplayName: "jc_repo1_roles_contrib"},
			},
		}, nil)
	client.EXPECT().SearchGroups(gomock.Any(), gomock.Any()).Return(
		&scim.ListResponse[scim.Group]{
			TotalResults: 2,
			Resources: []scim.Group{
				{ID: "g4", DisplayName: "jc_repo2_roles_repoadm"},
				{ID: "g5", DisplayName: "jc_repo2_roles_contrib"},
			},
		}, nil)

	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("reconcile run: %v", err)
	}

	if len(audits.entries) != 1 {
		t.Fatalf("expected one drift entry, got %d", len(audits.entries))
	}
	entry := audits.entries[0]
	if entry.TargetID != "repo2" || entry.Outcome != "drift" {
		t.Fatalf("unexpected drift entry: %+v", entry)
	}
	if !strings.Contains(entry.Detail, "jc_repo2_roles_comadm") {
		t.Fatalf("drift detail should name the missing group: %q", entry.Detail)
	}
}

func TestReconcileIgnoresGlobalRoleGroups(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := scimmock.NewMockClient(ctrl)
	cfg, codec := newDirectoryConfig(t)
	svc := NewReconcileService(client, cfg, codec, nil, slog.Default())

	client.EXPECT().SearchRepositories(gomock.Any(), gomock.Any()).Return(
		&scim.ListResponse[scim.Repository]{
			TotalResults: 1,
			Resources:    []scim.Repository{{ID: "repo1"}},
		}, nil)

	var got query.Compiled
	client.EXPECT().SearchGroups(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, q query.Compiled) (*scim.ListResponse[scim.Group], error) {
			got = q
			return &scim.ListResponse[scim.Group]{
				TotalResults: 3,
				Resources: []scim.Group{
					{ID: "g1", DisplayName: "jc_repo1_roles_repoadm"},
					{ID: "g2", DisplayName: "jc_repo1_roles_comadm"},
					{ID: "g3", DisplayName: "jc_repo1_roles_contrib"},
				},
			}, nil
		})

	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("reconcile run: %v", err)
	}
	if strings.Contains(got.Filter, "jc_roles_sysadm") {
		t.Fatalf("global role group must not be expected per repository: %q", got.Filter)
	}
}

func TestNewReconcileSchedulerRejectsBadSpec(t *testing.T) {
	cfg, codec := newDirectoryConfig(t)
	svc := NewReconcileService(nil, cfg, codec, nil, slog.Default())

	if _, err := NewReconcileScheduler("not a cron spec", svc, slog.Default()); err == nil {
		t.Fatal("expected an error for a malformed schedule")
	}
	sched, err := NewReconcileScheduler("@hourly", svc, slog.Default())
	if err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}
	sched.Start()
	sched.Stop()
}
