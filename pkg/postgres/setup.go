package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Logger defines the logging operations within the postgres package.
//
//go:generate mockgen -source=setup.go -destination=mock_logger.go -package=postgres
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
}

// Postgres holds the gorm handle of the relational store screensim shares
// with the rest of the platform. The service only checks connectivity; it
// owns no tables.
type Postgres struct {
	client *gorm.DB
	cfg    Config
	logger Logger
	mu     sync.RWMutex
}

// NewPostgres opens the connection pool without contacting the server, so
// a database outage surfaces in the readiness check instead of aborting
// startup.
func NewPostgres(cfg Config, logger Logger) (*Postgres, error) {
	conn, err := connectToPostgres(cfg)
	if err != nil {
		return nil, err
	}

	return &Postgres{
		client: conn,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// connectToPostgres opens the gorm handle and configures the pool.
func connectToPostgres(cfg Config) (*gorm.DB, error) {
	database, err := gorm.Open(
		postgres.Open(cfg.dsn()),
		&gorm.Config{
			TranslateError:       true,
			DisableAutomaticPing: true,
			Logger:               gormlogger.Discard,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgresSQL database: %w", err)
	}

	databaseInstance, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get PostgresSQL database instance: %w", err)
	}

	details := cfg.ConnectionDetails
	if details.MaxOpenConns > 0 {
		databaseInstance.SetMaxOpenConns(details.MaxOpenConns)
	}
	if details.MaxIdleConns > 0 {
		databaseInstance.SetMaxIdleConns(details.MaxIdleConns)
	}
	if details.ConnMaxLifetime > 0 {
		databaseInstance.SetConnMaxLifetime(details.ConnMaxLifetime)
	}

	return database, nil
}

// Ping runs SELECT 1 against the database within the configured ping
// timeout.
func (p *Postgres) Ping(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	timeout := p.cfg.ConnectionDetails.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fields := map[string]interface{}{
		"postgres_host": p.cfg.Connection.Host,
		"postgres_port": p.cfg.Connection.Port,
		"postgres_db":   p.cfg.Connection.DbName,
		"postgres_user": p.cfg.Connection.User,
	}

	var one int
	if err := p.client.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		p.logger.Error("PostgreSQL connectivity check failed", err, fields)
		return translateError(err)
	}
	p.logger.Info("PostgreSQL connectivity check succeeded", nil, fields)
	return nil
}

// DB returns the underlying GORM DB client.
func (p *Postgres) DB() *gorm.DB {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	db, err := p.client.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
