package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/ctei-manager/internal/model"
	"github.com/iliyamo/ctei-manager/internal/pool"
)

const productSelect = `SELECT id, project_id, title, product_type, COALESCE(description, ''),
	COALESCE(doi, ''), COALESCE(url, ''), is_public, created_by, created_at FROM products`

// ProductRepo reads and writes the products table.
type ProductRepo struct{ conns }

func NewProductRepo(p *pool.ConnPool) *ProductRepo { return &ProductRepo{conns{pool: p}} }

func scanProduct(s rowScanner) (*model.Product, error) {
	var p model.Product
	err := s.Scan(&p.ID, &p.ProjectID, &p.Title, &p.Type, &p.Description, &p.DOI, &p.URL,
		&p.IsPublic, &p.CreatedBy, &p.CreatedAt)
	return &p, err
}

// ListByProject returns a project's products, oldest first.
func (r *ProductRepo) ListByProject(ctx context.Context, projectID int64, publicOnly bool) ([]*model.Product, error) {
	q := productSelect + " WHERE project_id = ?"
	if publicOnly {
		q += " AND is_public = 1"
	}
	return r.list(ctx, q+" ORDER BY id", projectID)
}

// ListPublic returns public products, newest first, optionally of one type.
func (r *ProductRepo) ListPublic(ctx context.Context, productType string, limit, offset int) ([]*model.Product, error) {
	limit, offset = limitOffset(limit, offset)
	q := productSelect + " WHERE is_public = 1"
	args := []any{}
	if productType != "" {
		q += " AND product_type = ?"
		args = append(args, strings.ToUpper(productType))
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)
	return r.list(ctx, q, args...)
}

func (r *ProductRepo) list(ctx context.Context, q string, args ...any) ([]*model.Product, error) {
	out := []*model.Product{}
	err := r.with(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanProduct(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	return out, err
}

// Create attaches p to its project.  Only the project owner or an admin may
// add products.
func (r *ProductRepo) Create(ctx context.Context, p *model.Product, admin bool) error {
	return r.with(ctx, func(conn *sql.Conn) error {
		if err := checkOwner(ctx, conn, p.ProjectID, p.CreatedBy, admin); err != nil {
			return err
		}
		res, err := conn.ExecContext(ctx,
			"INSERT INTO products (project_id, title, product_type, description, doi, url, is_public, created_by) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			p.ProjectID, p.Title, p.Type, p.Description, p.DOI, p.URL, p.IsPublic, p.CreatedBy)
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
