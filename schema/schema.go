package schema

import (
	"context"
	goerrors "errors"
	"strconv"

	"github.com/go-playground/errors"
	"github.com/pgtools/go-pq-replica/logger"
	"github.com/pgtools/go-pq-replica/pq"
)

// ErrDropDeclined is returned when the injected confirm callback refuses a
// destructive action.
var ErrDropDeclined = goerrors.New("table drop declined")

// The table set is fixed: a small products/orders schema replicated from the
// primary to the replica.
var createStatements = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id SERIAL PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		category VARCHAR(50) NOT NULL,
		price NUMERIC(10,2) NOT NULL,
		in_stock BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id SERIAL PRIMARY KEY,
		product_id INTEGER REFERENCES products (id),
		quantity INTEGER NOT NULL,
		order_date TIMESTAMP DEFAULT now()
	)`,
}

// Drop order matters because of the orders -> products foreign key.
var dropStatements = []string{
	"DROP TABLE IF EXISTS orders",
	"DROP TABLE IF EXISTS products",
}

const existsQuery = "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = 'public' AND table_name IN ('products', 'orders')"

// ConfirmFunc decides whether a destructive action may proceed. The caller
// supplies the policy (a --yes flag, a prompt, a test stub).
type ConfirmFunc func(action string) bool

type Definer struct {
	conn    pq.Connection
	confirm ConfirmFunc
}

func NewDefiner(conn pq.Connection, confirm ConfirmFunc) *Definer {
	if confirm == nil {
		confirm = func(string) bool { return false }
	}
	return &Definer{conn: conn, confirm: confirm}
}

func (d *Definer) TablesExist(ctx context.Context) (bool, error) {
	results, err := d.conn.Exec(ctx, existsQuery)
	if err != nil {
		return false, errors.Wrap(err, "table existence query")
	}

	count, err := pq.Scalar(results)
	if err != nil {
		return false, errors.Wrap(err, "table existence result")
	}

	n, err := strconv.Atoi(count)
	if err != nil {
		return false, errors.Wrap(err, "table existence count parse")
	}

	return n > 0, nil
}

func (d *Definer) Create(ctx context.Context) error {
	for _, stmt := range createStatements {
		if _, err := d.conn.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "table create")
		}
	}

	logger.Info("tables created", "tables", []string{"products", "orders"})

	return nil
}

func (d *Definer) Drop(ctx context.Context) error {
	if !d.confirm("drop tables products, orders") {
		return ErrDropDeclined
	}

	for _, stmt := range dropStatements {
		if _, err := d.conn.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "table drop")
		}
	}

	logger.Info("tables dropped", "tables", []string{"orders", "products"})

	return nil
}

// Recreate drops and recreates the tables. Dropping still goes through the
// confirm callback.
func (d *Definer) Recreate(ctx context.Context) error {
	if err := d.Drop(ctx); err != nil {
		return err
	}

	return d.Create(ctx)
}
