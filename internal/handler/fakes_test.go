package handler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/ctei-manager/internal/auth"
	"github.com/iliyamo/ctei-manager/internal/model"
	"github.com/iliyamo/ctei-manager/internal/pool"
	"github.com/iliyamo/ctei-manager/internal/repository"
)

type fakeUsers struct {
	mu     sync.Mutex
	byID   map[int64]*model.User
	nextID int64
	rehash map[int64]string
}

func newFakeUsers(users ...*model.User) *fakeUsers {
	f := &fakeUsers{byID: map[int64]*model.User{}, rehash: map[int64]string{}}
	for _, u := range users {
		f.nextID++
		u.ID = f.nextID
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.Email = repository.NormalizeEmail(u.Email)
	for _, x := range f.byID {
		if x.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	f.nextID++
	u.ID = f.nextID
	u.IsActive = true
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = repository.NormalizeEmail(email)
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) List(_ context.Context, _, _ int) ([]*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.User, 0, len(f.byID))
	for _, u := range f.byID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUsers) UpdateRole(_ context.Context, id int64, role auth.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Role = role
	return nil
}

func (f *fakeUsers) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	f.rehash[id] = hash
	return nil
}

type fakeProjects struct {
	mu       sync.Mutex
	items    map[int64]*model.Project
	nextID   int64
	lastList model.ProjectFilter
}

func newFakeProjects(ps ...*model.Project) *fakeProjects {
	f := &fakeProjects{items: map[int64]*model.Project{}}
	for _, p := range ps {
		f.nextID++
		p.ID = f.nextID
		f.items[p.ID] = p
	}
	return f
}

func (f *fakeProjects) List(_ context.Context, flt model.ProjectFilter) ([]*model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = flt
	out := []*model.Project{}
	for _, p := range f.items {
		if flt.PublicOnly && !p.IsPublic {
			continue
		}
		if flt.OwnerID > 0 && p.OwnerID != flt.OwnerID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeProjects) GetByID(_ context.Context, id int64, publicOnly bool) (*model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok || (publicOnly && !p.IsPublic) {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakeProjects) Create(_ context.Context, p *model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p.ID = f.nextID
	p.CreatedAt = time.Now()
	f.items[p.ID] = p
	return nil
}

func (f *fakeProjects) owned(id, actor int64, admin bool) error {
	p, ok := f.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	if !admin && p.OwnerID != actor {
		return repository.ErrForbidden
	}
	return nil
}

func (f *fakeProjects) Update(_ context.Context, p *model.Project, actor int64, admin bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.owned(p.ID, actor, admin); err != nil {
		return err
	}
	p.OwnerID = f.items[p.ID].OwnerID
	f.items[p.ID] = p
	return nil
}

func (f *fakeProjects) Delete(_ context.Context, id, actor int64, admin bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.owned(id, actor, admin); err != nil {
		return err
	}
	delete(f.items, id)
	return nil
}

type fakeProducts struct {
	projects *fakeProjects
	items    []*model.Product
}

func (f *fakeProducts) ListByProject(_ context.Context, projectID int64, publicOnly bool) ([]*model.Product, error) {
	out := []*model.Product{}
	for _, p := range f.items {
		if p.ProjectID == projectID && (!publicOnly || p.IsPublic) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProducts) ListPublic(_ context.Context, typ string, _, _ int) ([]*model.Product, error) {
	out := []*model.Product{}
	for _, p := range f.items {
		if p.IsPublic && (typ == "" || p.Type == typ) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProducts) Create(_ context.Context, p *model.Product, admin bool) error {
	f.projects.mu.Lock()
	err := f.projects.owned(p.ProjectID, p.CreatedBy, admin)
	f.projects.mu.Unlock()
	if err != nil {
		return err
	}
	p.ID = int64(len(f.items) + 1)
	f.items = append(f.items, p)
	return nil
}

type fakeStats struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeStats) Summary(context.Context) (*model.Stats, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return &model.Stats{Projects: 2, Products: 5, ProductsByType: map[string]int64{"ARTICLE": 5}}, nil
}

type recordingInvalidator struct {
	patterns []string
	keys     []string
}

func (r *recordingInvalidator) InvalidateCache(_ context.Context, pattern string) []string {
	r.patterns = append(r.patterns, pattern)
	return nil
}

func (r *recordingInvalidator) InvalidateKeys(_ context.Context, keys ...string) {
	r.keys = append(r.keys, keys...)
}

type fixedPool struct{ s pool.Stats }

func (f fixedPool) Stats() pool.Stats { return f.s }
