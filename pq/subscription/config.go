package subscription

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

type Config struct {
	Name        string `json:"name" yaml:"name"`
	Publication string `json:"publication" yaml:"publication"`
}

func (c Config) Validate() error {
	var err error
	if strings.TrimSpace(c.Name) == "" {
		err = errors.Join(err, errors.New("subscription name cannot be empty"))
	}

	if strings.TrimSpace(c.Publication) == "" {
		err = errors.Join(err, errors.New("subscription publication cannot be empty"))
	}

	return err
}

func (c Config) createQuery(connInfo string) string {
	return fmt.Sprintf(
		"CREATE SUBSCRIPTION %s CONNECTION %s PUBLICATION %s",
		pq.QuoteIdentifier(c.Name),
		pq.QuoteLiteral(connInfo),
		pq.QuoteIdentifier(c.Publication),
	)
}

func (c Config) existsQuery() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM pg_subscription WHERE subname = %s", pq.QuoteLiteral(c.Name))
}
