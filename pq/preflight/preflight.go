package preflight

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/errors"
	"github.com/pgtools/go-pq-replica/pq"
)

const (
	WalLevelLogical = "logical"

	recommendedReplicationSlots = 5
	recommendedWalSenders       = 10
)

// ReplicationConfig is a read-only snapshot of the primary's server settings,
// re-fetched on every run.
type ReplicationConfig struct {
	WalLevel            string `json:"walLevel"`
	MaxReplicationSlots int    `json:"maxReplicationSlots"`
	MaxWalSenders       int    `json:"maxWalSenders"`
}

type Result struct {
	Config   ReplicationConfig `json:"config"`
	Warnings []string          `json:"warnings"`
	Ready    bool              `json:"ready"`
}

// Error means the primary cannot serve logical replication at all. Capacity
// settings below the recommended values are warnings, not errors.
type Error struct {
	WalLevel string
}

func (e *Error) Error() string {
	return fmt.Sprintf("wal_level is %q, logical replication requires %q", e.WalLevel, WalLevelLogical)
}

func (e *Error) Remediation() []string {
	return []string{
		"set wal_level to 'logical' in the server parameters",
		fmt.Sprintf("increase max_replication_slots (recommended: %d or more)", recommendedReplicationSlots),
		fmt.Sprintf("increase max_wal_senders (recommended: %d or more)", recommendedWalSenders),
		"restart the server for the changes to take effect",
	}
}

// Check inspects the primary's logical replication settings. It never mutates
// server state.
func Check(ctx context.Context, conn pq.Connection) (*Result, error) {
	walLevel, err := showSetting(ctx, conn, "wal_level")
	if err != nil {
		return nil, err
	}

	slots, err := showIntSetting(ctx, conn, "max_replication_slots")
	if err != nil {
		return nil, err
	}

	senders, err := showIntSetting(ctx, conn, "max_wal_senders")
	if err != nil {
		return nil, err
	}

	res := &Result{
		Config: ReplicationConfig{
			WalLevel:            walLevel,
			MaxReplicationSlots: slots,
			MaxWalSenders:       senders,
		},
		Ready: walLevel == WalLevelLogical,
	}

	if slots < recommendedReplicationSlots {
		res.Warnings = append(res.Warnings, fmt.Sprintf("max_replication_slots is %d, consider increasing it to at least %d", slots, recommendedReplicationSlots))
	}

	if senders < recommendedWalSenders {
		res.Warnings = append(res.Warnings, fmt.Sprintf("max_wal_senders is %d, consider increasing it to at least %d", senders, recommendedWalSenders))
	}

	return res, nil
}

func showSetting(ctx context.Context, conn pq.Connection, name string) (string, error) {
	results, err := conn.Exec(ctx, "SHOW "+name)
	if err != nil {
		return "", errors.Wrap(err, "show "+name)
	}

	value, err := pq.Scalar(results)
	if err != nil {
		return "", errors.Wrap(err, "show "+name+" result")
	}

	return strings.TrimSpace(value), nil
}

func showIntSetting(ctx context.Context, conn pq.Connection, name string) (int, error) {
	value, err := showSetting(ctx, conn, name)
	if err != nil {
		return 0, err
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrap(err, fmt.Sprintf("%s is not an integer: %q", name, value))
	}

	return n, nil
}
