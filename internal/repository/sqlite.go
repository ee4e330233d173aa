package repository

import (
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/pagewatch/shrike/internal/domain"
)

func openSQLite(cfg domain.RepositoryConfig) (*sql.DB, error) {
	dsn := cfg.SQLitePath
	if dsn == "" {
		dsn = "shrike.db"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// SQLite performs poorly with concurrent writers
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	// Enforce foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
