package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/reposync/admin-backend/internal/directory"
	"github.com/reposync/admin-backend/internal/directory/query"
	"github.com/reposync/admin-backend/internal/domain"
	"github.com/reposync/admin-backend/internal/observability"
	"github.com/reposync/admin-backend/internal/repository"
	"github.com/reposync/admin-backend/internal/scim"
)

const reconcilePageSize = 100

// ReconcileServiceImpl walks every mirrored repository and verifies that the
// role groups the naming convention calls for actually exist in the
// directory. Missing groups are drift: they are reported, never created,
// because group provisioning belongs to the upstream mirror.
type ReconcileServiceImpl struct {
	client   scim.Client
	cfg      *directory.Config
	codec    *directory.Codec
	compiler *query.Compiler
	audits   repository.SyncAuditRepository
	logger   *slog.Logger
}

func NewReconcileService(
	client scim.Client,
	cfg *directory.Config,
	codec *directory.Codec,
	audits repository.SyncAuditRepository,
	logger *slog.Logger,
) *ReconcileServiceImpl {
	return &ReconcileServiceImpl{
		client:   client,
		cfg:      cfg,
		codec:    codec,
		compiler: query.NewCompiler(cfg, codec),
		audits:   audits,
		logger:   logger,
	}
}

// Run performs one full reconcile pass with a system-wide view.
func (s *ReconcileServiceImpl) Run(ctx context.Context) error {
	adminScope := directory.PermissionScope{IsSystemAdmin: true}
	drifted := 0
	page := 1
	for {
		compiled, err := s.compiler.Compile(query.Repositories, query.Criteria{
			Page:     page,
			PageSize: reconcilePageSize,
		}, adminScope)
		if err != nil {
			observability.RecordReconcileRun(ctx, "error")
			return err
		}
		start := time.Now()
		list, err := s.client.SearchRepositories(ctx, compiled)
		recordCall(ctx, "search_repositories", start, err)
		if err != nil {
			observability.RecordReconcileRun(ctx, "error")
			return fmt.Errorf("list repositories: %w", err)
		}
		for _, repo := range list.Resources {
			missing, err := s.missingRoleGroups(ctx, adminScope, repo.ID)
			if err != nil {
				observability.RecordReconcileRun(ctx, "error")
				return err
			}
			for _, name := range missing {
				drifted++
				s.logger.WarnContext(ctx, "role group missing for repository",
					slog.String("repository_id", repo.ID),
					slog.String("group_name", name))
				s.recordDrift(repo.ID, name)
			}
		}
		if len(list.Resources) < reconcilePageSize {
			break
		}
		page++
	}
	observability.RecordReconcileDrift(ctx, drifted)
	observability.RecordReconcileRun(ctx, "success")
	return nil
}

func (s *ReconcileServiceImpl) missingRoleGroups(ctx context.Context, scope directory.PermissionScope, repositoryID string) ([]string, error) {
	var expected []string
	for _, kt := range s.cfg.Kinds {
		if kt.Kind == directory.KindUserDefined {
			continue
		}
		// Global role groups are not owned by any one repository.
		if !strings.Contains(kt.Template, directory.RepositoryIDPlaceholder) {
			continue
		}
		name, err := s.codec.Encode(kt.Kind, repositoryID, "")
		if err != nil {
			return nil, err
		}
		expected = append(expected, name)
	}

	compiled, err := s.compiler.Compile(query.Groups, query.Criteria{GroupIDs: expected}, scope)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	list, err := s.client.SearchGroups(ctx, compiled)
	recordCall(ctx, "search_groups", start, err)
	if err != nil {
		return nil, fmt.Errorf("list role groups for %s: %w", repositoryID, err)
	}

	found := make(map[string]struct{}, len(list.Resources))
	for _, g := range list.Resources {
		found[g.DisplayName] = struct{}{}
	}
	var missing []string
	for _, name := range expected {
		if _, ok := found[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

func (s *ReconcileServiceImpl) recordDrift(repositoryID, groupName string) {
	if s.audits == nil {
		return
	}
	_ = s.audits.Record(&domain.SyncAudit{
		ActorID:    "reconciler",
		TargetType: "repository",
		TargetID:   repositoryID,
		Action:     "reconcile",
		Outcome:    "drift",
		Detail:     "missing role group " + groupName,
	})
}

// ReconcileScheduler runs the reconcile pass on a cron schedule.
type ReconcileScheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

func NewReconcileScheduler(spec string, svc *ReconcileServiceImpl, logger *slog.Logger) (*ReconcileScheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := svc.Run(ctx); err != nil {
			logger.ErrorContext(ctx, "reconcile pass failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("bad reconcile schedule %q: %w", spec, err)
	}
	return &ReconcileScheduler{cron: c, logger: logger}, nil
}

func (s *ReconcileScheduler) Start() { s.cron.Start() }

func (s *ReconcileScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
