package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/ctei-manager/internal/pool"
)

// conns runs queries on connections taken from the pool.
type conns struct {
	pool *pool.ConnPool
}

// with acquires a connection, runs fn on it and returns it to the pool.
// Connections that report themselves broken are discarded instead.
func (c conns) with(ctx context.Context, fn func(*sql.Conn) error) error {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	err = fn(conn)
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		_ = c.pool.Discard(conn)
		return err
	}
	_ = c.pool.Release(conn)
	return err
}

// isDuplicate reports a MySQL unique key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// isForeignKey reports a MySQL foreign key violation on delete or update.
func isForeignKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && (me.Number == 1451 || me.Number == 1452)
}

func limitOffset(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
