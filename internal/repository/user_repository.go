package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/ctei-manager/internal/auth"
	"github.com/iliyamo/ctei-manager/internal/model"
	"github.com/iliyamo/ctei-manager/internal/pool"
)

const userColumns = "id, email, full_name, password_hash, role, is_active, created_at, updated_at"

// UserRepo reads and writes the users table.
type UserRepo struct{ conns }

func NewUserRepo(p *pool.ConnPool) *UserRepo { return &UserRepo{conns{pool: p}} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (*model.User, error) {
	var u model.User
	var role string
	if err := s.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = auth.Role(role)
	return &u, nil
}

// NormalizeEmail lower-cases and trims an address before it is stored or
// looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts u and sets its ID.  A duplicate email yields ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = NormalizeEmail(u.Email)
	return r.with(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			"INSERT INTO users (email, full_name, password_hash, role, is_active) VALUES (?, ?, ?, ?, 1)",
			u.Email, u.FullName, u.PasswordHash, string(u.Role))
		if err != nil {
			if isDuplicate(err) {
				return ErrEmailExists
			}
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		u.ID = id
		u.IsActive = true
		return nil
	})
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email = ? LIMIT 1", NormalizeEmail(email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1", id)
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg any) (*model.User, error) {
	var u *model.User
	err := r.with(ctx, func(conn *sql.Conn) error {
		var err error
		u, err = scanUser(conn.QueryRowContext(ctx, q, arg))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
	return u, err
}

// List returns users ordered by id.
func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]*model.User, error) {
	limit, offset = limitOffset(limit, offset)
	var out []*model.User
	err := r.with(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx,
			"SELECT "+userColumns+" FROM users ORDER BY id LIMIT ? OFFSET ?", limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			out = append(out, u)
		}
		return rows.Err()
	})
	return out, err
}

// UpdateRole changes a user's role.
func (r *UserRepo) UpdateRole(ctx context.Context, id int64, role auth.Role) error {
	return r.exec1(ctx, "UPDATE users SET role = ? WHERE id = ?", string(role), id)
}

// UpdatePasswordHash stores a new hash, used when migrating legacy digests.
func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return r.exec1(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", hash, id)
}

// exec1 runs a single-row update and maps zero affected rows to ErrNotFound.
func (r *UserRepo) exec1(ctx context.Context, q string, args ...any) error {
	return r.with(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, q, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}
