package handler

import (
	"context"

	"github.com/iliyamo/ctei-manager/internal/auth"
	"github.com/iliyamo/ctei-manager/internal/model"
)

// UserStore is implemented by repository.UserRepo.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	List(ctx context.Context, limit, offset int) ([]*model.User, error)
	UpdateRole(ctx context.Context, id int64, role auth.Role) error
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

// ProjectStore is implemented by repository.ProjectRepo.
type ProjectStore interface {
	List(ctx context.Context, f model.ProjectFilter) ([]*model.Project, error)
	GetByID(ctx context.Context, id int64, publicOnly bool) (*model.Project, error)
	Create(ctx context.Context, p *model.Project) error
	Update(ctx context.Context, p *model.Project, actorID int64, admin bool) error
	Delete(ctx context.Context, id, actorID int64, admin bool) error
}

// ProductStore is implemented by repository.ProductRepo.
type ProductStore interface {
	ListByProject(ctx context.Context, projectID int64, publicOnly bool) ([]*model.Product, error)
	ListPublic(ctx context.Context, productType string, limit, offset int) ([]*model.Product, error)
	Create(ctx context.Context, p *model.Product, admin bool) error
}

// StatsStore is implemented by repository.StatsRepo.
type StatsStore interface {
	Summary(ctx context.Context) (*model.Stats, error)
}

// Invalidator is implemented by middleware.ResponseCache.
type Invalidator interface {
	InvalidateCache(ctx context.Context, pattern string) []string
	InvalidateKeys(ctx context.Context, keys ...string)
}
