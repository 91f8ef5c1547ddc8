package publication

import (
	"context"
	"strconv"

	"github.com/go-playground/errors"
	"github.com/pgtools/go-pq-replica/logger"
	"github.com/pgtools/go-pq-replica/pq"
)

type Info struct {
	Name    string `json:"name"`
	Created bool   `json:"created"`
}

type Publication struct {
	conn pq.Connection
	cfg  Config
}

func New(cfg Config, conn pq.Connection) *Publication {
	return &Publication{cfg: cfg, conn: conn}
}

// Ensure creates the publication on the primary unless one with the same name
// already exists. Re-running it against an existing publication is a no-op.
func (p *Publication) Ensure(ctx context.Context) (*Info, error) {
	exists, err := p.Exists(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "publication existence check")
	}

	if exists {
		logger.Info("publication already exists", "name", p.cfg.Name)
		return &Info{Name: p.cfg.Name}, nil
	}

	if _, err = p.conn.Exec(ctx, p.cfg.createQuery()); err != nil {
		return nil, &pq.ResourceCreationError{Resource: "publication", Name: p.cfg.Name, Err: err}
	}

	logger.Info("publication created", "name", p.cfg.Name)

	return &Info{Name: p.cfg.Name, Created: true}, nil
}

func (p *Publication) Exists(ctx context.Context) (bool, error) {
	results, err := p.conn.Exec(ctx, p.cfg.existsQuery())
	if err != nil {
		return false, errors.Wrap(err, "pg_publication query")
	}

	count, err := pq.Scalar(results)
	if err != nil {
		return false, errors.Wrap(err, "pg_publication result")
	}

	n, err := strconv.Atoi(count)
	if err != nil {
		return false, errors.Wrap(err, "pg_publication count parse")
	}

	return n > 0, nil
}
