package pq

import (
	"context"

	"github.com/go-playground/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgtools/go-pq-replica/internal/retry"
)

type Connection interface {
	IsClosed() bool
	Close(ctx context.Context) error
	Exec(ctx context.Context, sql string) ([]*pgconn.Result, error)
	EnsureConnection(ctx context.Context) error
}

type connection struct {
	*pgconn.PgConn
	dsn string
}

func NewConnection(ctx context.Context, dsn string) (Connection, error) {
	conn, err := connect(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "postgres connection")
	}

	return &connection{
		PgConn: conn,
		dsn:    dsn,
	}, nil
}

func (c *connection) Exec(ctx context.Context, sql string) ([]*pgconn.Result, error) {
	resultReader := c.PgConn.Exec(ctx, sql)
	results, err := resultReader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "query execute")
	}

	if err = resultReader.Close(); err != nil {
		return nil, errors.Wrap(err, "result reader close")
	}

	return results, nil
}

func (c *connection) EnsureConnection(ctx context.Context) error {
	if c.IsClosed() {
		conn, err := connect(ctx, c.dsn)
		if err != nil {
			return errors.Wrap(err, "reconnect postgres connection")
		}
		c.PgConn = conn
		return nil
	}

	if err := c.Ping(ctx); err != nil {
		conn, err := connect(ctx, c.dsn)
		if err != nil {
			return errors.Wrap(err, "reconnect postgres connection")
		}
		c.PgConn = conn
		return nil
	}

	return nil
}

func connect(ctx context.Context, dsn string) (*pgconn.PgConn, error) {
	retryConfig := retry.OnErrorConfig[*pgconn.PgConn](5, func(err error) bool { return err == nil })
	conn, err := retryConfig.Do(func() (*pgconn.PgConn, error) {
		conn, err := pgconn.Connect(ctx, dsn)
		if err != nil {
			return nil, err
		}

		// Liveness round trip before handing the connection to callers.
		if err = conn.Ping(ctx); err != nil {
			return nil, err
		}

		return conn, nil
	})

	if err != nil {
		return nil, errors.Wrap(err, "postgres connection")
	}

	return conn, nil
}

// Scalar returns the first column of the first row of a single result set as
// raw text. SHOW and COUNT(*) queries are read through it.
func Scalar(results []*pgconn.Result) (string, error) {
	if len(results) != 1 {
		return "", errors.Newf("expected 1 result set, got %d", len(results))
	}

	if len(results[0].Rows) != 1 || len(results[0].Rows[0]) < 1 {
		return "", errors.New("expected a single scalar row")
	}

	return string(results[0].Rows[0][0]), nil
}
