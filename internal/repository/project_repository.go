package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/ctei-manager/internal/model"
	"github.com/iliyamo/ctei-manager/internal/pool"
)

const projectSelect = `SELECT p.id, p.title, p.summary, p.status, p.owner_id, COALESCE(u.full_name, ''),
	p.is_public, p.start_date, p.end_date, p.created_at, p.updated_at
	FROM projects p LEFT JOIN users u ON u.id = p.owner_id`

// ProjectRepo reads and writes the projects table.
type ProjectRepo struct{ conns }

func NewProjectRepo(p *pool.ConnPool) *ProjectRepo { return &ProjectRepo{conns{pool: p}} }

func scanProject(s rowScanner) (*model.Project, error) {
	var p model.Project
	var start, end sql.NullTime
	if err := s.Scan(&p.ID, &p.Title, &p.Summary, &p.Status, &p.OwnerID, &p.OwnerName,
		&p.IsPublic, &start, &end, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if start.Valid {
		p.StartDate = &start.Time
	}
	if end.Valid {
		p.EndDate = &end.Time
	}
	return &p, nil
}

// List returns projects matching f, newest first.
func (r *ProjectRepo) List(ctx context.Context, f model.ProjectFilter) ([]*model.Project, error) {
	var (
		where []string
		args  []any
	)
	if f.PublicOnly {
		where = append(where, "p.is_public = 1")
	}
	if f.OwnerID > 0 {
		where = append(where, "p.owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if f.Status != "" {
		where = append(where, "p.status = ?")
		args = append(args, strings.ToUpper(f.Status))
	}
	if f.Query != "" {
		where = append(where, "(p.title LIKE ? OR p.summary LIKE ?)")
		like := "%" + f.Query + "%"
		args = append(args, like, like)
	}
	q := projectSelect
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	limit, offset := limitOffset(f.Limit, f.Offset)
	q += " ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	out := []*model.Project{}
	err := r.with(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanProject(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	return out, err
}

// GetByID fetches one project.  publicOnly hides private projects behind
// ErrNotFound.
func (r *ProjectRepo) GetByID(ctx context.Context, id int64, publicOnly bool) (*model.Project, error) {
	q := projectSelect + " WHERE p.id = ?"
	if publicOnly {
		q += " AND p.is_public = 1"
	}
	var p *model.Project
	err := r.with(ctx, func(conn *sql.Conn) error {
		var err error
		p, err = scanProject(conn.QueryRowContext(ctx, q, id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
	return p, err
}

// Create inserts p and sets its ID.
func (r *ProjectRepo) Create(ctx context.Context, p *model.Project) error {
	return r.with(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			"INSERT INTO projects (title, summary, status, owner_id, is_public, start_date, end_date) VALUES (?, ?, ?, ?, ?, ?, ?)",
			p.Title, p.Summary, p.Status, p.OwnerID, p.IsPublic, p.StartDate, p.EndDate)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		p.ID = id
		return nil
	})
}

// Update overwrites the editable fields of p.  Only the owner or an admin may
// update; anyone else gets ErrForbidden.
func (r *ProjectRepo) Update(ctx context.Context, p *model.Project, actorID int64, admin bool) error {
	return r.with(ctx, func(conn *sql.Conn) error {
		if err := checkOwner(ctx, conn, p.ID, actorID, admin); err != nil {
			return err
		}
		_, err := conn.ExecContext(ctx,
			"UPDATE projects SET title = ?, summary = ?, status = ?, is_public = ?, start_date = ?, end_date = ? WHERE id = ?",
			p.Title, p.Summary, p.Status, p.IsPublic, p.StartDate, p.EndDate, p.ID)
		return err
	})
}

// Delete removes a project.  Ownership rules match Update; existing products
// block the delete with ErrConflict.
func (r *ProjectRepo) Delete(ctx context.Context, id, actorID int64, admin bool) error {
	return r.with(ctx, func(conn *sql.Conn) error {
		if err := checkOwner(ctx, conn, id, actorID, admin); err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id); err != nil {
			if isForeignKey(err) {
				return ErrConflict
			}
			return err
		}
		return nil
	})
}

// checkOwner loads the project owner on conn and enforces ownership.
func checkOwner(ctx context.Context, conn *sql.Conn, projectID, actorID int64, admin bool) error {
	var owner int64
	err := conn.QueryRowContext(ctx, "SELECT owner_id FROM projects WHERE id = ?", projectID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !admin && owner != actorID {
		return ErrForbidden
	}
	return nil
}
