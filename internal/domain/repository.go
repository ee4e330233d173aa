package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// Post and check operations are scoped by pageID; rule configurations
// are global and stored under GlobalPageID.
type Repository interface {
	// Post operations
	SavePost(ctx context.Context, pageID string, post *Post) error
	GetPost(ctx context.Context, pageID string, postID string) (*Post, error)

	// Check audit trail
	SaveCheck(ctx context.Context, pageID string, rec *CheckRecord) error
	GetCheck(ctx context.Context, pageID string, checkID string) (*CheckRecord, error)
	ListChecks(ctx context.Context, pageID string, since time.Time) ([]*CheckRecord, error)

	// Rule configuration operations
	SaveRule(ctx context.Context, rule *Rule) error
	ListRules(ctx context.Context) ([]*Rule, error)
	DeleteRule(ctx context.Context, ruleID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// GlobalPageID scopes rows that apply to every page.
const GlobalPageID = "*"

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
