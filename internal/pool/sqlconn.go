package pool

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"
)

// SQLConnFactory hands out dedicated *sql.Conn handles from a *sql.DB.
type SQLConnFactory struct {
	DB *sql.DB
}

func (f SQLConnFactory) Create(ctx context.Context) (*sql.Conn, error) {
	return f.DB.Conn(ctx)
}

func (f SQLConnFactory) Destroy(c *sql.Conn) error {
	if err := c.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}

// ConnPool is the pool type used by the repositories.
type ConnPool = Pool[*sql.Conn]

// NewConnPool builds a pool of dedicated connections on db.
func NewConnPool(db *sql.DB, cfg Config, logger *zap.Logger) *ConnPool {
	return New[*sql.Conn](SQLConnFactory{DB: db}, cfg, logger)
}
