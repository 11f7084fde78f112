package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite"
	DriverMemory   = "memory"
)

// Development secrets. They must never be used in production.
const (
	devPepper   = "secret-random-string"
	devTokenKey = "secret-token-key-for-development-only"
)

// MinTokenKeyLength is the minimum number of bytes of the token signing key in production.
const MinTokenKeyLength = 32

type Config struct {
	Port       int            `json:"port"`
	Env        string         `json:"env"`
	LogLevel   string         `json:"log_level"`
	Pepper     string         `json:"pepper"`
	TokenKey   string         `json:"token_key"`
	TokenTTL   Duration       `json:"token_ttl"`
	BcryptCost int            `json:"bcrypt_cost"`
	Database   DatabaseConfig `json:"database"`
}

// IsProd reports whether the config describes a production setup.
func (c Config) IsProd() bool {
	return c.Env == "prod"
}

// Validate checks the settings a production deployment depends on and
// returns all problems at once.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.Port <= 0 || c.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Pepper == "" || c.Pepper == devPepper {
		result = multierror.Append(result, errors.New("pepper must be set to a non-default value"))
	}
	if c.TokenKey == devTokenKey {
		result = multierror.Append(result, errors.New("token_key must be set to a non-default value"))
	}
	if len(c.TokenKey) < MinTokenKeyLength {
		result = multierror.Append(result, fmt.Errorf("token_key must be at least %d bytes", MinTokenKeyLength))
	}
	if c.TokenTTL.Duration <= 0 {
		result = multierror.Append(result, errors.New("token_ttl must be positive"))
	}
	if err := c.Database.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

type DatabaseConfig struct {
	Driver   string         `json:"driver"`
	Postgres PostgresConfig `json:"postgres"`
	Sqlite   SqliteConfig   `json:"sqlite"`
}

// Validate checks that the driver is known and configured.
func (dc DatabaseConfig) Validate() error {
	switch dc.Driver {
	case DriverPostgres:
		if dc.Postgres.Host == "" || dc.Postgres.Name == "" {
			return errors.New("database.postgres needs a host and a name")
		}
	case DriverSqlite:
		if dc.Sqlite.Path == "" {
			return errors.New("database.sqlite needs a path")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database driver %q", dc.Driver)
	}
	return nil
}

type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
	MaxConns int32  `json:"max_conns"`
}

func (pc PostgresConfig) ConnectionInfo() string {
	if pc.Password == "" {
		return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=disable", pc.Host, pc.Port, pc.User, pc.Name)
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable", pc.Host, pc.Port, pc.User, pc.Password, pc.Name)
}

type SqliteConfig struct {
	Path string `json:"path"`
}

// Duration is a time.Duration that reads and writes Go duration strings
// like "24h" in json.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "duration must be a string")
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func DefaultConfig() Config {
	return Config{
		Port:     1111,
		Env:      "dev",
		LogLevel: "debug",
		Pepper:   devPepper,
		TokenKey: devTokenKey,
		TokenTTL: Duration{24 * time.Hour},
		Database: DatabaseConfig{
			Driver:   DriverSqlite,
			Postgres: DefaultPostgresConfig(),
			Sqlite:   SqliteConfig{Path: "blogd.db"},
		},
	}
}

func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "",
		Name:     "blogd",
		MaxConns: 10,
	}
}

// LoadConfig reads the config file at path on top of DefaultConfig. A missing
// file falls back to the defaults, unless required is set, as it is in
// production. Required forces the prod env, and every prod config is validated.
func LoadConfig(path string, required bool) (Config, error) {
	c := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if required {
			return c, errors.Wrapf(err, "config file %s required in production", path)
		}
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, errors.Wrapf(err, "open config file %s", path)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&c); err != nil {
		return c, errors.Wrapf(err, "decode config file %s", path)
	}
	if required {
		c.Env = "prod"
	}
	if c.IsProd() {
		if err := c.Validate(); err != nil {
			return c, errors.Wrap(err, "invalid production config")
		}
	}
	return c, nil
}
