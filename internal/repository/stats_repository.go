package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/ctei-manager/internal/model"
	"github.com/iliyamo/ctei-manager/internal/pool"
)

// StatsRepo computes the public portal counters.
type StatsRepo struct{ conns }

func NewStatsRepo(p *pool.ConnPool) *StatsRepo { return &StatsRepo{conns{pool: p}} }

// Summary counts public projects and products and active investigators.
func (r *StatsRepo) Summary(ctx context.Context) (*model.Stats, error) {
	s := &model.Stats{ProductsByType: map[string]int64{}}
	err := r.with(ctx, func(conn *sql.Conn) error {
		err := conn.QueryRowContext(ctx, `SELECT
			(SELECT COUNT(*) FROM projects WHERE is_public = 1),
			(SELECT COUNT(*) FROM projects WHERE is_public = 1 AND status = 'ACTIVE'),
			(SELECT COUNT(*) FROM products WHERE is_public = 1),
			(SELECT COUNT(*) FROM users WHERE role = 'INVESTIGATOR' AND is_active = 1)`).
			Scan(&s.Projects, &s.ActiveProjects, &s.Products, &s.Investigators)
		if err != nil {
			return err
		}
		rows, err := conn.QueryContext(ctx,
			"SELECT product_type, COUNT(*) FROM products WHERE is_public = 1 GROUP BY product_type")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var typ string
			var n int64
			if err := rows.Scan(&typ, &n); err != nil {
				return err
			}
			s.ProductsByType[typ] = n
		}
		return rows.Err()
	})
	return s, err
}
