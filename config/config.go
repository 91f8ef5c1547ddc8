package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/pgtools/go-pq-replica/logger"
	"github.com/pgtools/go-pq-replica/pq/publication"
	"github.com/pgtools/go-pq-replica/pq/subscription"
)

// Endpoint identifies one database server. Immutable once constructed; one
// instance for the primary, one for the replica.
type Endpoint struct {
	Host     string `json:"host" yaml:"host"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database"`
	SSLMode  string `json:"sslMode" yaml:"sslMode"`
	// ServerName is a diagnostic label only, it is never dialed.
	ServerName string `json:"serverName" yaml:"serverName"`
	Port       int    `json:"port" yaml:"port"`
}

func (e Endpoint) DSN() string {
	// URL-encode username and password to handle special characters
	encodedUsername := url.QueryEscape(e.Username)
	encodedPassword := url.QueryEscape(e.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", encodedUsername, encodedPassword, e.Host, e.Port, e.Database, e.SSLMode)
}

// ConnInfo renders the libpq key=value descriptor used in CREATE SUBSCRIPTION.
func (e Endpoint) ConnInfo() string {
	return fmt.Sprintf("host=%s dbname=%s user=%s password=%s sslmode=%s", e.Host, e.Database, e.Username, e.Password, e.SSLMode)
}

func (e Endpoint) missing(role string) []string {
	var missing []string
	if isEmpty(e.Host) {
		missing = append(missing, role+" host")
	}

	if isEmpty(e.Username) {
		missing = append(missing, role+" username")
	}

	if isEmpty(e.Password) {
		missing = append(missing, role+" password")
	}

	if isEmpty(e.Database) {
		missing = append(missing, role+" database")
	}

	return missing
}

type Config struct {
	Logger       LoggerConfig        `json:"logger" yaml:"logger"`
	Primary      Endpoint            `json:"primary" yaml:"primary"`
	Replica      Endpoint            `json:"replica" yaml:"replica"`
	Publication  publication.Config  `json:"publication" yaml:"publication"`
	Subscription subscription.Config `json:"subscription" yaml:"subscription"`
	Metric       MetricConfig        `json:"metric" yaml:"metric"`
	QueryTimeout time.Duration       `json:"queryTimeout" yaml:"queryTimeout"`
	DebugMode    bool                `json:"debugMode" yaml:"debugMode"`
}

type MetricConfig struct {
	Port int `json:"port" yaml:"port"`
}

type LoggerConfig struct {
	Logger   logger.Logger `json:"-" yaml:"-"`         // custom logger
	LogLevel slog.Level    `json:"level" yaml:"level"` // if custom logger is nil, set the slog log level
}

// ConfigurationError reports required connection parameters that are absent.
// It is raised before any connection attempt.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "missing required configuration: " + strings.Join(e.Missing, ", ")
}

func (c *Config) SetDefault() {
	if c.Primary.Port == 0 {
		c.Primary.Port = 5432
	}

	if c.Replica.Port == 0 {
		c.Replica.Port = 5432
	}

	if c.Primary.SSLMode == "" {
		c.Primary.SSLMode = "require"
	}

	if c.Replica.SSLMode == "" {
		c.Replica.SSLMode = "require"
	}

	if c.Primary.Database == "" {
		c.Primary.Database = "products"
	}

	if c.Replica.Database == "" {
		c.Replica.Database = "sales"
	}

	if c.Publication.Name == "" {
		c.Publication.Name = "products_publication"
	}

	if c.Subscription.Name == "" {
		c.Subscription.Name = "sales_subscription"
	}

	if c.Subscription.Publication == "" {
		c.Subscription.Publication = c.Publication.Name
	}

	if c.QueryTimeout == 0 {
		c.QueryTimeout = 30 * time.Second
	}

	if c.Metric.Port == 0 {
		c.Metric.Port = 8080
	}

	if c.Logger.Logger == nil {
		c.Logger.Logger = logger.NewSlog(c.Logger.LogLevel)
	}
}

func (c *Config) Validate() error {
	missing := append(c.Primary.missing("primary"), c.Replica.missing("replica")...)
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}

	var err error
	if cErr := c.Publication.Validate(); cErr != nil {
		err = errors.Join(err, cErr)
	}

	if cErr := c.Subscription.Validate(); cErr != nil {
		err = errors.Join(err, cErr)
	}

	return err
}

func (c *Config) Print() {
	cfg := *c
	cfg.Primary.Password = "*******"
	cfg.Replica.Password = "*******"
	b, _ := json.Marshal(cfg)
	fmt.Println("used config: " + string(b))
}

func isEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}
