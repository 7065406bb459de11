package postgres

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Connection        Connection        `yaml:"connection"`
	ConnectionDetails ConnectionDetails `yaml:"connection_details"`
}

// Connection addresses the database. URL, when set, is used verbatim and
// the individual fields are ignored.
type Connection struct {
	URL      string `yaml:"url" envconfig:"POSTGRES_URL"`
	Host     string `yaml:"host" envconfig:"POSTGRES_HOST"`
	Port     string `yaml:"port" envconfig:"POSTGRES_PORT"`
	User     string `yaml:"user" envconfig:"POSTGRES_USER"`
	Password string `yaml:"password" envconfig:"POSTGRES_PASSWORD"`
	DbName   string `yaml:"db_name" envconfig:"POSTGRES_DB"`
	SSLMode  string `yaml:"ssl_mode" envconfig:"POSTGRES_SSLMODE"`
}

type ConnectionDetails struct {
	MaxOpenConns    int           `yaml:"max_open_conns" envconfig:"POSTGRES_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" envconfig:"POSTGRES_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" envconfig:"POSTGRES_CONN_MAX_LIFETIME"`
	PingTimeout     time.Duration `yaml:"ping_timeout" envconfig:"POSTGRES_PING_TIMEOUT"`
}

// DefaultConfig returns local development defaults.
func DefaultConfig() Config {
	return Config{
		Connection: Connection{
			Host:    "localhost",
			Port:    "5432",
			SSLMode: "disable",
		},
		ConnectionDetails: ConnectionDetails{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Minute,
			PingTimeout:     5 * time.Second,
		},
	}
}

// Configured reports whether enough settings are present to connect.
func (c Config) Configured() bool {
	return c.Connection.URL != "" || (c.Connection.Host != "" && c.Connection.DbName != "")
}

// dsn builds the connection string handed to the gorm postgres driver.
// Empty fields are left out so the driver applies its own defaults.
func (c Config) dsn() string {
	if c.Connection.URL != "" {
		return c.Connection.URL
	}
	pairs := []struct{ key, value string }{
		{"host", c.Connection.Host},
		{"port", c.Connection.Port},
		{"user", c.Connection.User},
		{"password", c.Connection.Password},
		{"dbname", c.Connection.DbName},
		{"sslmode", c.Connection.SSLMode},
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p.value != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", p.key, p.value))
		}
	}
	return strings.Join(parts, " ")
}
