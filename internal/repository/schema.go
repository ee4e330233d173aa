package repository

// Schema definitions for the Shrike database.
// Compatible with both SQLite and PostgreSQL.

const schemaPosts = `
CREATE TABLE IF NOT EXISTS posts (
    id TEXT NOT NULL,
    page_id TEXT NOT NULL,
    type TEXT,
    message TEXT,
    story TEXT,
    description TEXT,
    caption TEXT,
    name TEXT,
    created_time TIMESTAMP,
    permalink TEXT,
    stored_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, page_id)
);

CREATE INDEX IF NOT EXISTS idx_posts_page ON posts(page_id);
CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(page_id, created_time);
`

const schemaChecks = `
CREATE TABLE IF NOT EXISTS checks (
    id TEXT PRIMARY KEY,
    page_id TEXT NOT NULL,
    post_id TEXT NOT NULL,
    text TEXT NOT NULL,
    score INTEGER NOT NULL,
    category TEXT NOT NULL,
    label TEXT NOT NULL,
    matches TEXT,
    alerted INTEGER NOT NULL DEFAULT 0,
    reason TEXT,
    checked_at TIMESTAMP NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checks_page ON checks(page_id);
CREATE INDEX IF NOT EXISTS idx_checks_post ON checks(page_id, post_id);
CREATE INDEX IF NOT EXISTS idx_checks_label ON checks(page_id, label);
CREATE INDEX IF NOT EXISTS idx_checks_checked_at ON checks(page_id, checked_at);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT PRIMARY KEY,
    keyword TEXT NOT NULL,
    is_regex INTEGER NOT NULL DEFAULT 0,
    expression TEXT,
    category TEXT NOT NULL,
    risk_score INTEGER NOT NULL DEFAULT 1,
    enabled INTEGER NOT NULL DEFAULT 1,
    position INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_enabled ON rule_configs(enabled);
CREATE INDEX IF NOT EXISTS idx_rule_configs_position ON rule_configs(position);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaPosts,
		schemaChecks,
		schemaRuleConfigs,
	}
}
