package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ctei-manager/internal/auth"
	"github.com/iliyamo/ctei-manager/internal/model"
	"github.com/iliyamo/ctei-manager/internal/pool"
)

func newMock(t *testing.T) (*pool.ConnPool, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	p := pool.NewConnPool(db, pool.Config{MaxConnections: 2}, nil)
	t.Cleanup(func() {
		_ = p.Close()
		_ = db.Close()
	})
	return p, mock
}

var userCols = []string{"id", "email", "full_name", "password_hash", "role", "is_active", "created_at", "updated_at"}

func TestUserRepo_Create(t *testing.T) {
	p, mock := newMock(t)
	repo := NewUserRepo(p)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("a@b.com", "Ada", "hash", "INVESTIGATOR").
		WillReturnResult(sqlmock.NewResult(7, 1))

	u := &model.User{Email: "  A@B.com ", FullName: "Ada", PasswordHash: "hash", Role: auth.RoleInvestigator}
	require.NoError(t, repo.Create(context.Background(), u))
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, "a@b.com", u.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_CreateDuplicate(t *testing.T) {
	p, mock := newMock(t)
	repo := NewUserRepo(p)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := repo.Create(context.Background(), &model.User{Email: "a@b.com", Role: auth.RoleCommunity})
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.Equal(t, 0, p.Stats().Active, "connection released after error")
}

func TestUserRepo_GetByEmail(t *testing.T) {
	p, mock := newMock(t)
	repo := NewUserRepo(p)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = ?")).
		WithArgs("a@b.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "a@b.com", "Ada", "h", "ADMIN", true, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = ?")).
		WithArgs("nobody@b.com").
		WillReturnRows(sqlmock.NewRows(userCols))

	u, err := repo.GetByEmail(context.Background(), "A@B.COM")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, u.Role)
	assert.Equal(t, int64(1), u.ID)

	_, err = repo.GetByEmail(context.Background(), "nobody@b.com")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_UpdateRoleMissing(t *testing.T) {
	p, mock := newMock(t)
	repo := NewUserRepo(p)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET role = ? WHERE id = ?")).
		WithArgs("ADMIN", 42).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.UpdateRole(context.Background(), 42, auth.RoleAdmin), ErrNotFound)
}

func TestProjectRepo_ListFilters(t *testing.T) {
	p, mock := newMock(t)
	repo := NewProjectRepo(p)
	now := time.Now()
	cols := []string{"id", "title", "summary", "status", "owner_id", "owner", "is_public", "start_date", "end_date", "created_at", "updated_at"}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE p.is_public = 1 AND p.status = ? AND (p.title LIKE ? OR p.summary LIKE ?)")).
		WithArgs("ACTIVE", "%soil%", "%soil%", 20, 0).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(3, "Soil carbon", "s", "ACTIVE", 9, "Ada", true, now, nil, now, now))

	out, err := repo.List(context.Background(), model.ProjectFilter{PublicOnly: true, Status: "active", Query: "soil"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Ada", out[0].OwnerName)
	assert.NotNil(t, out[0].StartDate)
	assert.Nil(t, out[0].EndDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepo_UpdateOwnership(t *testing.T) {
	p, mock := newMock(t)
	repo := NewProjectRepo(p)
	ownerQ := regexp.QuoteMeta("SELECT owner_id FROM projects WHERE id = ?")

	mock.ExpectQuery(ownerQ).WithArgs(5).WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow(9))
	err := repo.Update(context.Background(), &model.Project{ID: 5, Title: "x"}, 10, false)
	assert.ErrorIs(t, err, ErrForbidden)

	mock.ExpectQuery(ownerQ).WithArgs(5).WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow(9))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE projects SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	err = repo.Update(context.Background(), &model.Project{ID: 5, Title: "x", Status: model.StatusActive}, 10, true)
	assert.NoError(t, err, "admins may edit any project")

	mock.ExpectQuery(ownerQ).WithArgs(6).WillReturnRows(sqlmock.NewRows([]string{"owner_id"}))
	err = repo.Update(context.Background(), &model.Project{ID: 6}, 10, true)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepo_DeleteConflict(t *testing.T) {
	p, mock := newMock(t)
	repo := NewProjectRepo(p)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT owner_id FROM projects")).WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow(9))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM projects WHERE id = ?")).WithArgs(5).
		WillReturnError(&mysql.MySQLError{Number: 1451, Message: "foreign key"})

	assert.ErrorIs(t, repo.Delete(context.Background(), 5, 9, false), ErrConflict)
}

func TestProductRepo_ListPublic(t *testing.T) {
	p, mock := newMock(t)
	repo := NewProductRepo(p)
	now := time.Now()
	cols := []string{"id", "project_id", "title", "product_type", "description", "doi", "url", "is_public", "created_by", "created_at"}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE is_public = 1 AND product_type = ?")).
		WithArgs("ARTICLE", 5, 10).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(1, 3, "Paper", "ARTICLE", "", "10.1/x", "", true, 9, now))

	out, err := repo.ListPublic(context.Background(), "article", 5, 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "10.1/x", out[0].DOI)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_CreateRequiresOwner(t *testing.T) {
	p, mock := newMock(t)
	repo := NewProductRepo(p)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT owner_id FROM projects")).WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow(9))
	err := repo.Create(context.Background(), &model.Product{ProjectID: 3, CreatedBy: 4, Title: "t", Type: "ARTICLE"}, false)
	assert.ErrorIs(t, err, ErrForbidden)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT owner_id FROM projects")).WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow(9))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products")).
		WillReturnResult(sqlmock.NewResult(11, 1))
	prod := &model.Product{ProjectID: 3, CreatedBy: 9, Title: "t", Type: "ARTICLE"}
	require.NoError(t, repo.Create(context.Background(), prod, false))
	assert.Equal(t, int64(11), prod.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsRepo_Summary(t *testing.T) {
	p, mock := newMock(t)
	repo := NewStatsRepo(p)

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d"}).AddRow(4, 2, 10, 3))
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY product_type")).
		WillReturnRows(sqlmock.NewRows([]string{"t", "n"}).AddRow("ARTICLE", 7).AddRow("DATASET", 3))

	s, err := repo.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), s.Projects)
	assert.Equal(t, int64(3), s.Investigators)
	assert.Equal(t, map[string]int64{"ARTICLE": 7, "DATASET": 3}, s.ProductsByType)
	assert.NoError(t, mock.ExpectationsWereMet())
}
