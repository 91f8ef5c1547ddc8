package preflight

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	settings map[string]string
	executed []string
}

func (c *fakeConn) Exec(_ context.Context, sql string) ([]*pgconn.Result, error) {
	c.executed = append(c.executed, sql)
	for name, value := range c.settings {
		if sql == "SHOW "+name {
			return []*pgconn.Result{{Rows: [][][]byte{{[]byte(value)}}}}, nil
		}
	}
	return nil, nil
}

func (c *fakeConn) IsClosed() bool { return false }

func (c *fakeConn) Close(_ context.Context) error { return nil }

func (c *fakeConn) EnsureConnection(_ context.Context) error { return nil }

func TestCheck(t *testing.T) {
	t.Run("should be ready with no warnings on a well configured primary", func(t *testing.T) {
		conn := &fakeConn{settings: map[string]string{
			"wal_level":             "logical",
			"max_replication_slots": "10",
			"max_wal_senders":       "10",
		}}

		result, err := Check(context.Background(), conn)

		require.NoError(t, err)
		assert.True(t, result.Ready)
		assert.Empty(t, result.Warnings)
		assert.Equal(t, "logical", result.Config.WalLevel)
		assert.Equal(t, 10, result.Config.MaxReplicationSlots)
		assert.Equal(t, 10, result.Config.MaxWalSenders)
	})

	t.Run("should not be ready when wal_level is replica", func(t *testing.T) {
		conn := &fakeConn{settings: map[string]string{
			"wal_level":             "replica",
			"max_replication_slots": "10",
			"max_wal_senders":       "10",
		}}

		result, err := Check(context.Background(), conn)

		require.NoError(t, err)
		assert.False(t, result.Ready)
	})

	t.Run("should stay ready but warn below the recommended slot count", func(t *testing.T) {
		conn := &fakeConn{settings: map[string]string{
			"wal_level":             "logical",
			"max_replication_slots": "3",
			"max_wal_senders":       "10",
		}}

		result, err := Check(context.Background(), conn)

		require.NoError(t, err)
		assert.True(t, result.Ready)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "max_replication_slots")
	})

	t.Run("should warn for both capacity settings when both are low", func(t *testing.T) {
		conn := &fakeConn{settings: map[string]string{
			"wal_level":             "logical",
			"max_replication_slots": "2",
			"max_wal_senders":       "4",
		}}

		result, err := Check(context.Background(), conn)

		require.NoError(t, err)
		assert.True(t, result.Ready)
		assert.Len(t, result.Warnings, 2)
	})

	t.Run("should only read settings", func(t *testing.T) {
		conn := &fakeConn{settings: map[string]string{
			"wal_level":             "logical",
			"max_replication_slots": "10",
			"max_wal_senders":       "10",
		}}

		_, err := Check(context.Background(), conn)

		require.NoError(t, err)
		for _, sql := range conn.executed {
			assert.Contains(t, sql, "SHOW ")
		}
	})
}

func TestErrorRemediation(t *testing.T) {
	err := &Error{WalLevel: "replica"}

	assert.Contains(t, err.Error(), "replica")
	assert.Contains(t, err.Error(), "logical")
	require.NotEmpty(t, err.Remediation())
	assert.Contains(t, err.Remediation()[0], "wal_level")
}
