// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pagewatch/shrike/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SavePost stores a fetched post with page isolation.
func (r *SQLRepository) SavePost(ctx context.Context, pageID string, post *domain.Post) error {
	if pageID == "" {
		return fmt.Errorf("%w: pageID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO posts (
			id, page_id, type, message, story, description, caption, name,
			created_time, permalink, stored_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, page_id) DO UPDATE SET
			type = excluded.type,
			message = excluded.message,
			story = excluded.story,
			description = excluded.description,
			caption = excluded.caption,
			name = excluded.name,
			permalink = excluded.permalink
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		post.ID, pageID, post.Type,
		post.Message, post.Story, post.Description, post.Caption, post.Name,
		post.CreatedTime, post.Permalink, time.Now().UTC(),
	)
	return err
}

// GetPost retrieves a post by ID with page isolation.
func (r *SQLRepository) GetPost(ctx context.Context, pageID string, postID string) (*domain.Post, error) {
	if pageID == "" {
		return nil, fmt.Errorf("%w: pageID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, page_id, type, message, story, description, caption, name,
		       created_time, permalink
		FROM posts
		WHERE page_id = ? AND id = ?
	`

	var p domain.Post
	err := r.db.QueryRowContext(ctx, r.rebind(query), pageID, postID).Scan(
		&p.ID, &p.PageID, &p.Type,
		&p.Message, &p.Story, &p.Description, &p.Caption, &p.Name,
		&p.CreatedTime, &p.Permalink,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// SaveCheck appends a check record to the audit trail.
func (r *SQLRepository) SaveCheck(ctx context.Context, pageID string, rec *domain.CheckRecord) error {
	if pageID == "" {
		return fmt.Errorf("%w: pageID is required", ErrInvalidInput)
	}

	matches, _ := json.Marshal(rec.Matches)
	metadata, _ := json.Marshal(rec.Metadata)

	alerted := 0
	if rec.Alerted {
		alerted = 1
	}

	query := `
		INSERT INTO checks (
			id, page_id, post_id, text, score, category, label,
			matches, alerted, reason, checked_at, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, pageID, rec.PostID, rec.Text,
		rec.Score, rec.Category, string(rec.Label),
		string(matches), alerted, rec.Reason, rec.CheckedAt,
		string(metadata),
	)
	return err
}

// GetCheck retrieves a check record by ID with page isolation.
func (r *SQLRepository) GetCheck(ctx context.Context, pageID string, checkID string) (*domain.CheckRecord, error) {
	if pageID == "" {
		return nil, fmt.Errorf("%w: pageID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, page_id, post_id, text, score, category, label,
		       matches, alerted, reason, checked_at, metadata
		FROM checks
		WHERE page_id = ? AND id = ?
	`

	rec, err := r.scanCheck(r.db.QueryRowContext(ctx, r.rebind(query), pageID, checkID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// ListChecks retrieves check records for a page since the given time,
// newest first.
func (r *SQLRepository) ListChecks(ctx context.Context, pageID string, since time.Time) ([]*domain.CheckRecord, error) {
	if pageID == "" {
		return nil, fmt.Errorf("%w: pageID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, page_id, post_id, text, score, category, label,
		       matches, alerted, reason, checked_at, metadata
		FROM checks
		WHERE page_id = ? AND checked_at >= ?
		ORDER BY checked_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), pageID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.CheckRecord
	for rows.Next() {
		rec, err := r.scanCheck(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLRepository) scanCheck(row rowScanner) (*domain.CheckRecord, error) {
	var rec domain.CheckRecord
	var matches, label, metadata string
	var alerted int

	err := row.Scan(
		&rec.ID, &rec.PageID, &rec.PostID, &rec.Text,
		&rec.Score, &rec.Category, &label,
		&matches, &alerted, &rec.Reason, &rec.CheckedAt,
		&metadata,
	)
	if err != nil {
		return nil, err
	}

	rec.Label = domain.RiskLabel(label)
	rec.Alerted = alerted == 1
	if matches != "" {
		json.Unmarshal([]byte(matches), &rec.Matches)
	}
	if metadata != "" {
		json.Unmarshal([]byte(metadata), &rec.Metadata)
	}

	return &rec, nil
}

// SaveRule stores a rule configuration. Insertion order is preserved
// through the position column; updates keep the original position.
func (r *SQLRepository) SaveRule(ctx context.Context, rule *domain.Rule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	isRegex := 0
	if rule.IsRegex {
		isRegex = 1
	}
	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	// The WHERE true is required by SQLite to parse ON CONFLICT after a
	// SELECT source; PostgreSQL accepts it too.
	query := `
		INSERT INTO rule_configs (
			id, keyword, is_regex, expression, category, risk_score, enabled,
			position, created_at, updated_at
		)
		SELECT ?, ?, ?, ?, ?, ?, ?, COALESCE(MAX(position), 0) + 1, ?, ?
		FROM rule_configs
		WHERE true
		ON CONFLICT(id) DO UPDATE SET
			keyword = excluded.keyword,
			is_regex = excluded.is_regex,
			expression = excluded.expression,
			category = excluded.category,
			risk_score = excluded.risk_score,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Keyword, isRegex, rule.Expression,
		rule.Category, rule.RiskScore, enabled,
		now, now,
	)
	return err
}

// ListRules retrieves all rule configurations in insertion order,
// including disabled ones; filtering happens at load time in the store.
func (r *SQLRepository) ListRules(ctx context.Context) ([]*domain.Rule, error) {
	query := `
		SELECT id, keyword, is_regex, expression, category, risk_score, enabled
		FROM rule_configs
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Rule
	for rows.Next() {
		var rule domain.Rule
		var isRegex, enabled int

		if err := rows.Scan(
			&rule.ID, &rule.Keyword, &isRegex, &rule.Expression,
			&rule.Category, &rule.RiskScore, &enabled,
		); err != nil {
			return nil, err
		}

		rule.IsRegex = isRegex == 1
		rule.Enabled = enabled == 1
		out = append(out, &rule)
	}

	return out, rows.Err()
}

// DeleteRule removes a rule configuration.
func (r *SQLRepository) DeleteRule(ctx context.Context, ruleID string) error {
	if ruleID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM rule_configs WHERE id = ?`), ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
