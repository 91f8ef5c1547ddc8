package publication

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

type Config struct {
	Name string `json:"name" yaml:"name"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("publication name cannot be empty")
	}

	return nil
}

// The publication covers all current tables. The surrounding schema is small
// and fixed, so selective table lists are not supported.
func (c Config) createQuery() string {
	return fmt.Sprintf("CREATE PUBLICATION %s FOR ALL TABLES", pq.QuoteIdentifier(c.Name))
}

func (c Config) existsQuery() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM pg_publication WHERE pubname = %s", pq.QuoteLiteral(c.Name))
}
