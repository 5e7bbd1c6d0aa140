package service

import (
	"context"
	"io"

	"github.com/reposync/admin-backend/internal/directory/query"
	"github.com/reposync/admin-backend/internal/domain"
	"github.com/reposync/admin-backend/internal/repository"
	"github.com/reposync/admin-backend/internal/scim"
)

type DirectoryAdminService interface {
	SearchUsers(ctx context.Context, p *Principal, crit query.Criteria) (*scim.ListResponse[scim.User], error)
	SearchGroups(ctx context.Context, p *Principal, crit query.Criteria) (*scim.ListResponse[scim.Group], error)
	SearchRepositories(ctx context.Context, p *Principal, crit query.Criteria) (*scim.ListResponse[scim.Repository], error)
	GetUser(ctx context.Context, p *Principal, id string) (*scim.User, error)
	GetGroup(ctx context.Context, p *Principal, id string) (*scim.Group, error)
	UpdateUser(ctx context.Context, p *Principal, id string, updated scim.User) (*scim.User, error)
	UpdateGroup(ctx context.Context, p *Principal, id string, updated scim.Group) (*scim.Group, error)
	CreateGroup(ctx context.Context, p *Principal, repositoryID, userDefinedID string) (*scim.Group, error)
	DeleteGroup(ctx context.Context, p *Principal, id string) error
	AddGroupMember(ctx context.Context, p *Principal, groupID, userID string) error
	RemoveGroupMember(ctx context.Context, p *Principal, groupID, userID string) error
}

type ImportService interface {
	Submit(ctx context.Context, p *Principal, fileName string, csv io.Reader) (*domain.ImportJob, error)
	Job(ctx context.Context, p *Principal, id string) (*domain.ImportJob, []domain.ImportRow, error)
	ListJobs(ctx context.Context, p *Principal, req repository.PageRequest) (repository.PageResult[domain.ImportJob], error)
}
