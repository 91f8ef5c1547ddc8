package subscription

import (
	"context"
	goerrors "errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgtools/go-pq-replica/logger"
	"github.com/pgtools/go-pq-replica/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initLogger() {
	logger.InitLogger(logger.NewSlog(slog.LevelError))
}

type fakeConn struct {
	count     string
	createErr error
	executed  []string
}

func (c *fakeConn) Exec(_ context.Context, sql string) ([]*pgconn.Result, error) {
	c.executed = append(c.executed, sql)

	if strings.HasPrefix(sql, "SELECT COUNT(*)") {
		return []*pgconn.Result{{Rows: [][][]byte{{[]byte(c.count)}}}}, nil
	}

	if c.createErr != nil {
		return nil, c.createErr
	}

	return nil, nil
}

func (c *fakeConn) IsClosed() bool { return false }

func (c *fakeConn) Close(_ context.Context) error { return nil }

func (c *fakeConn) EnsureConnection(_ context.Context) error { return nil }

func (c *fakeConn) createStatements() []string {
	var creates []string
	for _, sql := range c.executed {
		if strings.HasPrefix(sql, "CREATE") {
			creates = append(creates, sql)
		}
	}
	return creates
}

func TestConfigQueries(t *testing.T) {
	cfg := Config{Name: "sales_subscription", Publication: "products_publication"}

	t.Run("should embed the conninfo as a literal", func(t *testing.T) {
		query := cfg.createQuery("host=primary.example.com dbname=products user=admin password=secret sslmode=require")

		assert.Equal(t,
			`CREATE SUBSCRIPTION "sales_subscription" CONNECTION 'host=primary.example.com dbname=products user=admin password=secret sslmode=require' PUBLICATION "products_publication"`,
			query,
		)
	})

	t.Run("should quote single quotes inside the conninfo", func(t *testing.T) {
		query := cfg.createQuery("host=h password=o'brien")

		assert.Contains(t, query, "'host=h password=o''brien'")
	})

	t.Run("should check existence by name literal", func(t *testing.T) {
		assert.Equal(t, "SELECT COUNT(*) FROM pg_subscription WHERE subname = 'sales_subscription'", cfg.existsQuery())
	})
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.Error(t, Config{Name: "sales_subscription"}.Validate())
	assert.Error(t, Config{Publication: "products_publication"}.Validate())
	assert.NoError(t, Config{Name: "sales_subscription", Publication: "products_publication"}.Validate())
}

func TestEnsure(t *testing.T) {
	initLogger()

	cfg := Config{Name: "sales_subscription", Publication: "products_publication"}
	connInfo := "host=primary.example.com dbname=products user=admin password=secret sslmode=require"

	t.Run("should create the subscription when it does not exist", func(t *testing.T) {
		conn := &fakeConn{count: "0"}

		info, err := New(cfg, conn).Ensure(context.Background(), connInfo)

		require.NoError(t, err)
		assert.True(t, info.Created)
		assert.Equal(t, "sales_subscription", info.Name)
		assert.Equal(t, "products_publication", info.Publication)
		require.Len(t, conn.createStatements(), 1)
	})

	t.Run("should skip creation when the subscription exists", func(t *testing.T) {
		conn := &fakeConn{count: "1"}

		info, err := New(cfg, conn).Ensure(context.Background(), connInfo)

		require.NoError(t, err)
		assert.False(t, info.Created)
		assert.Empty(t, conn.createStatements())
	})

	t.Run("should surface a resource creation error on create failure", func(t *testing.T) {
		conn := &fakeConn{count: "0", createErr: goerrors.New("could not connect to the publisher")}

		_, err := New(cfg, conn).Ensure(context.Background(), connInfo)

		var creationErr *pq.ResourceCreationError
		require.ErrorAs(t, err, &creationErr)
		assert.Equal(t, "subscription", creationErr.Resource)
		assert.Equal(t, "sales_subscription", creationErr.Name)
	})
}
