package subscription

import (
	"context"
	"strconv"

	"github.com/go-playground/errors"
	"github.com/pgtools/go-pq-replica/logger"
	"github.com/pgtools/go-pq-replica/pq"
)

type Info struct {
	Name        string `json:"name"`
	Publication string `json:"publication"`
	Created     bool   `json:"created"`
}

type Subscription struct {
	conn pq.Connection
	cfg  Config
}

func New(cfg Config, conn pq.Connection) *Subscription {
	return &Subscription{cfg: cfg, conn: conn}
}

// Ensure creates the subscription on the replica unless one with the same name
// already exists. connInfo is the libpq key=value descriptor of the primary.
//
// CREATE SUBSCRIPTION cannot run inside a transaction block, so it is issued
// as a single simple-protocol statement that commits implicitly. On success
// the replica starts the initial table copy asynchronously; Ensure does not
// wait for it.
func (s *Subscription) Ensure(ctx context.Context, connInfo string) (*Info, error) {
	exists, err := s.Exists(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "subscription existence check")
	}

	if exists {
		logger.Info("subscription already exists", "name", s.cfg.Name)
		return &Info{Name: s.cfg.Name, Publication: s.cfg.Publication}, nil
	}

	if _, err = s.conn.Exec(ctx, s.cfg.createQuery(connInfo)); err != nil {
		return nil, &pq.ResourceCreationError{Resource: "subscription", Name: s.cfg.Name, Err: err}
	}

	logger.Info("subscription created", "name", s.cfg.Name, "publication", s.cfg.Publication)

	return &Info{Name: s.cfg.Name, Publication: s.cfg.Publication, Created: true}, nil
}

func (s *Subscription) Exists(ctx context.Context) (bool, error) {
	results, err := s.conn.Exec(ctx, s.cfg.existsQuery())
	if err != nil {
		return false, errors.Wrap(err, "pg_subscription query")
	}

	count, err := pq.Scalar(results)
	if err != nil {
		return false, errors.Wrap(err, "pg_subscription result")
	}

	n, err := strconv.Atoi(count)
	if err != nil {
		return false, errors.Wrap(err, "pg_subscription count parse")
	}

	return n > 0, nil
}
