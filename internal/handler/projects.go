package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/ctei-manager/internal/auth"
	"github.com/iliyamo/ctei-manager/internal/logging"
	"github.com/iliyamo/ctei-manager/internal/model"
)

// ProjectHandler serves the public project portal and the project writes of
// the dashboard.  Every write invalidates the cached listings it affects.
type ProjectHandler struct {
	Projects ProjectStore
	Products ProductStore
	Cache    Invalidator
	Log      *zap.Logger
}

func NewProjectHandler(projects ProjectStore, products ProductStore, inv Invalidator, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{Projects: projects, Products: products, Cache: inv, Log: logging.OrNop(logger).Named("projects")}
}

type projectReq struct {
	Title     string     `json:"title" validate:"required,max=200"`
	Summary   string     `json:"summary" validate:"max=4000"`
	Status    string     `json:"status" validate:"omitempty,oneof=PLANNED ACTIVE COMPLETED SUSPENDED"`
	IsPublic  bool       `json:"isPublic"`
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}

func (r projectReq) toModel() (*model.Project, string) {
	if r.StartDate != nil && r.EndDate != nil && r.EndDate.Before(*r.StartDate) {
		return nil, "endDate must not precede startDate"
	}
	status := r.Status
	if status == "" {
		status = model.StatusPlanned
	}
	return &model.Project{
		Title: r.Title, Summary: r.Summary, Status: status, IsPublic: r.IsPublic,
		StartDate: r.StartDate, EndDate: r.EndDate,
	}, ""
}

type productReq struct {
	Title       string `json:"title" validate:"required,max=250"`
	Type        string `json:"type" validate:"required,oneof=ARTICLE BOOK CHAPTER DATASET SOFTWARE PATENT THESIS OTHER"`
	Description string `json:"description" validate:"max=4000"`
	DOI         string `json:"doi" validate:"max=120"`
	URL         string `json:"url" validate:"omitempty,url,max=500"`
	IsPublic    bool   `json:"isPublic"`
}

// projectKeys lists the exact cache keys for one project.
func projectKeys(id int64) []string {
	return []string{
		fmt.Sprintf("GET:/v1/projects/%d", id),
		fmt.Sprintf("GET:/v1/projects/%d/products", id),
	}
}

func dashboardKey(userID int64) string {
	return fmt.Sprintf("GET:/v1/dashboard/projects:user:%d", userID)
}

// List returns public projects filtered by status and a free text query.
func (h *ProjectHandler) List(c echo.Context) error {
	limit, offset := page(c)
	f := model.ProjectFilter{
		PublicOnly: true,
		Status:     c.QueryParam("status"),
		Query:      c.QueryParam("q"),
		Limit:      limit,
		Offset:     offset,
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	items, err := h.Projects.List(ctx, f)
	if err != nil {
		h.Log.Error("list projects", zap.Error(err))
		return storeError(c, err, "project")
	}
	return ok(c, http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// Get returns one public project.  Private projects are reported missing.
func (h *ProjectHandler) Get(c echo.Context) error {
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "invalid project id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	p, err := h.Projects.GetByID(ctx, id, true)
	if err != nil {
		return storeError(c, err, "project")
	}
	return ok(c, http.StatusOK, echo.Map{"project": p})
}

// ListProducts returns the public products of a public project.
func (h *ProjectHandler) ListProducts(c echo.Context) error {
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "invalid project id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if _, err := h.Projects.GetByID(ctx, id, true); err != nil {
		return storeError(c, err, "project")
	}
	items, err := h.Products.ListByProject(ctx, id, true)
	if err != nil {
		return storeError(c, err, "product")
	}
	return ok(c, http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// Dashboard lists the caller's projects, or every project for admins,
// including private ones.
func (h *ProjectHandler) Dashboard(c echo.Context) error {
	p, found := principal(c)
	if !found {
		return fail(c, http.StatusUnauthorized, "authorization required")
	}
	limit, offset := page(c)
	f := model.ProjectFilter{Status: c.QueryParam("status"), Query: c.QueryParam("q"), Limit: limit, Offset: offset}
	if p.Role != auth.RoleAdmin {
		f.OwnerID = p.UserID
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	items, err := h.Projects.List(ctx, f)
	if err != nil {
		return storeError(c, err, "project")
	}
	return ok(c, http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// Create adds a project owned by the caller.
func (h *ProjectHandler) Create(c echo.Context) error {
	p, found := principal(c)
	if !found {
		return fail(c, http.StatusUnauthorized, "authorization required")
	}
	var req projectReq
	if msg, valid := bindValid(c, &req); !valid {
		return fail(c, http.StatusBadRequest, msg)
	}
	proj, msg := req.toModel()
	if proj == nil {
		return fail(c, http.StatusBadRequest, msg)
	}
	proj.OwnerID = p.UserID

	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Projects.Create(ctx, proj); err != nil {
		h.Log.Error("create project", zap.Error(err))
		return storeError(c, err, "project")
	}
	h.invalidate(c, proj.ID)
	return ok(c, http.StatusCreated, echo.Map{"project": proj})
}

// Update replaces the editable fields of a project the caller owns.
func (h *ProjectHandler) Update(c echo.Context) error {
	p, found := principal(c)
	if !found {
		return fail(c, http.StatusUnauthorized, "authorization required")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "invalid project id")
	}
	var req projectReq
	if msg, valid := bindValid(c, &req); !valid {
		return fail(c, http.StatusBadRequest, msg)
	}
	proj, msg := req.toModel()
	if proj == nil {
		return fail(c, http.StatusBadRequest, msg)
	}
	proj.ID = id

	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Projects.Update(ctx, proj, p.UserID, p.Role == auth.RoleAdmin); err != nil {
		return storeError(c, err, "project")
	}
	updated, err := h.Projects.GetByID(ctx, id, false)
	if err != nil {
		h.invalidate(c, id)
		return storeError(c, err, "project")
	}
	h.invalidate(c, id, updated.OwnerID)
	return ok(c, http.StatusOK, echo.Map{"project": updated})
}

// Delete removes a project the caller owns.
func (h *ProjectHandler) Delete(c echo.Context) error {
	p, found := principal(c)
	if !found {
		return fail(c, http.StatusUnauthorized, "authorization required")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "invalid project id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	owner := h.ownerOf(ctx, id)
	if err := h.Projects.Delete(ctx, id, p.UserID, p.Role == auth.RoleAdmin); err != nil {
		return storeError(c, err, "project")
	}
	h.invalidate(c, id, owner)
	return c.NoContent(http.StatusNoContent)
}

// CreateProduct attaches a product to a project the caller owns.
func (h *ProjectHandler) CreateProduct(c echo.Context) error {
	p, found := principal(c)
	if !found {
		return fail(c, http.StatusUnauthorized, "authorization required")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "invalid project id")
	}
	var req productReq
	if msg, valid := bindValid(c, &req); !valid {
		return fail(c, http.StatusBadRequest, msg)
	}
	prod := &model.Product{
		ProjectID: id, Title: req.Title, Type: req.Type, Description: req.Description,
		DOI: req.DOI, URL: req.URL, IsPublic: req.IsPublic, CreatedBy: p.UserID,
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Products.Create(ctx, prod, p.Role == auth.RoleAdmin); err != nil {
		return storeError(c, err, "project")
	}
	h.invalidate(c, id, h.ownerOf(ctx, id))
	return ok(c, http.StatusCreated, echo.Map{"product": prod})
}

// ownerOf returns the owner of project id, or 0 when it cannot be loaded.
func (h *ProjectHandler) ownerOf(ctx context.Context, id int64) int64 {
	proj, err := h.Projects.GetByID(ctx, id, false)
	if err != nil {
		return 0
	}
	return proj.OwnerID
}

// invalidate drops the listings and the per-project entries touched by a
// write on project id, plus the unfiltered dashboards of the writer and of
// the given owners.
func (h *ProjectHandler) invalidate(c echo.Context, id int64, owners ...int64) {
	if h.Cache == nil {
		return
	}
	ctx := c.Request().Context()
	h.Cache.InvalidateCache(ctx, "/v1/projects")
	h.Cache.InvalidateCache(ctx, "/v1/products")
	h.Cache.InvalidateCache(ctx, "/v1/stats")
	keys := projectKeys(id)
	users := owners
	if p, found := principal(c); found {
		users = append([]int64{p.UserID}, owners...)
	}
	seen := make(map[int64]bool, len(users))
	for _, u := range users {
		if u == 0 || seen[u] {
			continue
		}
		seen[u] = true
		keys = append(keys, dashboardKey(u))
	}
	h.Cache.InvalidateKeys(ctx, keys...)
}
