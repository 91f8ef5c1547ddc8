package status

import (
	"context"
	"fmt"

	"github.com/go-playground/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgtools/go-pq-replica/pq"
)

// relationLimit caps the per-relation listing for display purposes only.
const relationLimit = 10

const subscriptionsQuery = "SELECT subname, subenabled, subconninfo FROM pg_subscription"

var relationsQuery = fmt.Sprintf("SELECT s.subname, r.srsubstate, r.srrelid::regclass AS relation_name, r.srsublsn, r.srsubskiplsn "+
	"FROM pg_subscription_rel r JOIN pg_subscription s ON s.oid = r.srsubid LIMIT %d", relationLimit)

type SyncState string

const (
	SyncStateInit     SyncState = "init"
	SyncStateDataSync SyncState = "data-sync"
	SyncStateSynced   SyncState = "synced"
	SyncStateError    SyncState = "error"
)

// mapSyncState maps pg_subscription_rel.srsubstate codes. "f" means the copy
// finished but the relation has not caught up to the synchronization point yet.
func mapSyncState(code string) SyncState {
	switch code {
	case "i":
		return SyncStateInit
	case "d", "f":
		return SyncStateDataSync
	case "s", "r":
		return SyncStateSynced
	default:
		return SyncStateError
	}
}

type Subscription struct {
	Name     string `json:"name"`
	ConnInfo string `json:"connInfo"`
	Enabled  bool   `json:"enabled"`
}

type RelationSync struct {
	Subscription string    `json:"subscription"`
	Relation     string    `json:"relation"`
	State        SyncState `json:"state"`
	ReceivedLSN  pq.LSN    `json:"receivedLSN"`
	SkipLSN      pq.LSN    `json:"skipLSN"`
}

type Report struct {
	Subscriptions []Subscription `json:"subscriptions"`
	Relations     []RelationSync `json:"relations"`
}

// Empty reports whether the replica has no subscriptions at all. That is a
// valid observation, not an error.
func (r *Report) Empty() bool {
	return len(r.Subscriptions) == 0
}

// ReportingError wraps status query failures. Reporting is diagnostic, so the
// orchestrator logs these and keeps the run's outcome.
type ReportingError struct {
	Err error
}

func (e *ReportingError) Error() string {
	return fmt.Sprintf("replication status report: %v", e.Err)
}

func (e *ReportingError) Unwrap() error {
	return e.Err
}

type Reporter struct {
	conn pq.Connection
}

func NewReporter(conn pq.Connection) *Reporter {
	return &Reporter{conn: conn}
}

// Report lists the replica's subscriptions and their per-relation sync state.
// The relation listing is bounded to the top rows for readability.
func (r *Reporter) Report(ctx context.Context) (*Report, error) {
	report := &Report{}

	results, err := r.conn.Exec(ctx, subscriptionsQuery)
	if err != nil {
		return nil, &ReportingError{Err: errors.Wrap(err, "pg_subscription query")}
	}

	report.Subscriptions, err = parseSubscriptions(results)
	if err != nil {
		return nil, &ReportingError{Err: err}
	}

	if report.Empty() {
		return report, nil
	}

	results, err = r.conn.Exec(ctx, relationsQuery)
	if err != nil {
		return nil, &ReportingError{Err: errors.Wrap(err, "pg_subscription_rel query")}
	}

	report.Relations, err = parseRelations(results)
	if err != nil {
		return nil, &ReportingError{Err: err}
	}

	return report, nil
}

func parseSubscriptions(results []*pgconn.Result) ([]Subscription, error) {
	rows, err := resultRows(results, 3)
	if err != nil {
		return nil, errors.Wrap(err, "pg_subscription result")
	}

	subs := make([]Subscription, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, Subscription{
			Name:     string(row[0]),
			Enabled:  string(row[1]) == "t",
			ConnInfo: string(row[2]),
		})
	}

	return subs, nil
}

func parseRelations(results []*pgconn.Result) ([]RelationSync, error) {
	rows, err := resultRows(results, 5)
	if err != nil {
		return nil, errors.Wrap(err, "pg_subscription_rel result")
	}

	relations := make([]RelationSync, 0, len(rows))
	for _, row := range rows {
		rel := RelationSync{
			Subscription: string(row[0]),
			State:        mapSyncState(string(row[1])),
			Relation:     string(row[2]),
		}

		// LSN markers are unset until the relation reaches the
		// synchronization point.
		if len(row[3]) > 0 {
			rel.ReceivedLSN, _ = pq.ParseLSN(string(row[3]))
		}
		if len(row[4]) > 0 {
			rel.SkipLSN, _ = pq.ParseLSN(string(row[4]))
		}

		relations = append(relations, rel)
	}

	return relations, nil
}

func resultRows(results []*pgconn.Result, columns int) ([][][]byte, error) {
	if len(results) != 1 {
		return nil, errors.Newf("expected 1 result set, got %d", len(results))
	}

	for _, row := range results[0].Rows {
		if len(row) != columns {
			return nil, errors.Newf("expected %d result columns, got %d", columns, len(row))
		}
	}

	return results[0].Rows, nil
}
