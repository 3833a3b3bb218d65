// Package mysql wraps GORM's MySQL driver behind the connection-pool knobs
// the room runtime's outbox and economy layers need.
package mysql

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config carries the DSN pieces and pool tuning recognized by
type Config struct {
	Host                string
	Port                int
	User                string
	Password            string
	DBName              string
	MaxPoolSize         int
	MinPoolSize         int
	ConnectionIdleLife  time.Duration
	CommandTimeout      time.Duration
}

// Client wraps a *gorm.DB. AutoMigrate is called explicitly by callers that
// own a schema (internal/outbox, internal/economy) rather than centrally,
// so each package stays responsible for its own tables.
type Client struct {
	db *gorm.DB
}

// NewClient opens a pooled connection to MySQL.
func NewClient(cfg Config) (*Client, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB handle: %w", err)
	}

	if cfg.MaxPoolSize > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxPoolSize)
	}
	if cfg.MinPoolSize > 0 {
		sqlDB.SetMaxIdleConns(cfg.MinPoolSize)
	}
	if cfg.ConnectionIdleLife > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnectionIdleLife)
	}

	return &Client{db: db}, nil
}

// DB returns the underlying *gorm.DB for repositories to build queries on.
func (c *Client) DB() *gorm.DB {
	return c.db
}

// Close releases the pool.
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
