package config

import (
	"encoding/json"
	"os"

	"github.com/go-playground/errors"
	"gopkg.in/yaml.v2"
)

func ReadConfigYAML(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read yaml config")
	}

	c := Config{}

	err = yaml.Unmarshal(b, &c)
	if err != nil {
		return Config{}, errors.Wrap(err, "yaml config file parse")
	}

	return c, nil
}

func ReadConfigJSON(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read json config")
	}

	c := Config{}

	err = json.Unmarshal(b, &c)
	if err != nil {
		return Config{}, errors.Wrap(err, "json config file parse")
	}

	return c, nil
}

// Environment variable names kept from the original Azure setup tooling so
// existing .env files keep working.
const (
	envPrimaryHost       = "AZURE_POSTGRES_PRIMARY_HOST"
	envPrimaryUser       = "AZURE_POSTGRES_PRIMARY_USER"
	envPrimaryPassword   = "AZURE_POSTGRES_PRIMARY_PASSWORD"
	envPrimaryDB         = "AZURE_POSTGRES_PRIMARY_DB"
	envPrimaryServerName = "AZURE_POSTGRES_PRIMARY_SERVER_NAME"
	envReplicaHost       = "AZURE_POSTGRES_REPLICA_HOST"
	envReplicaUser       = "AZURE_POSTGRES_REPLICA_USER"
	envReplicaPassword   = "AZURE_POSTGRES_REPLICA_PASSWORD"
	envReplicaDB         = "AZURE_POSTGRES_REPLICA_DB"
	envReplicaServerName = "AZURE_POSTGRES_REPLICA_SERVER_NAME"
	envSSLMode           = "AZURE_POSTGRES_SSL_MODE"
)

// FromEnv builds a Config from environment variables. The database names and
// SSL mode are optional; everything else is required.
func FromEnv() (Config, error) {
	required := []string{
		envPrimaryHost,
		envPrimaryUser,
		envPrimaryPassword,
		envPrimaryServerName,
		envReplicaHost,
		envReplicaUser,
		envReplicaPassword,
		envReplicaServerName,
	}

	var missing []string
	for _, name := range required {
		if os.Getenv(name) == "" {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return Config{}, &ConfigurationError{Missing: missing}
	}

	sslMode := os.Getenv(envSSLMode)

	c := Config{
		Primary: Endpoint{
			Host:       os.Getenv(envPrimaryHost),
			Username:   os.Getenv(envPrimaryUser),
			Password:   os.Getenv(envPrimaryPassword),
			Database:   os.Getenv(envPrimaryDB),
			ServerName: os.Getenv(envPrimaryServerName),
			SSLMode:    sslMode,
		},
		Replica: Endpoint{
			Host:       os.Getenv(envReplicaHost),
			Username:   os.Getenv(envReplicaUser),
			Password:   os.Getenv(envReplicaPassword),
			Database:   os.Getenv(envReplicaDB),
			ServerName: os.Getenv(envReplicaServerName),
			SSLMode:    sslMode,
		},
	}

	return c, nil
}
