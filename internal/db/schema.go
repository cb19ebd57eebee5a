package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    name          TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS food_scans (
    id             TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL,
    image_url      TEXT NOT NULL,
    total_calories REAL NOT NULL,
    timestamp      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_food_scans_user_id ON food_scans(user_id);

CREATE TABLE IF NOT EXISTS food_scan_items (
    scan_id  TEXT NOT NULL REFERENCES food_scans(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    name     TEXT NOT NULL,
    calories REAL NOT NULL,
    protein  REAL,
    carbs    REAL,
    fat      REAL,
    PRIMARY KEY (scan_id, position)
);

CREATE TABLE IF NOT EXISTS goals (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    type       TEXT NOT NULL CHECK (type IN ('calories', 'protein', 'carbs', 'fat')),
    period     TEXT NOT NULL CHECK (period IN ('daily', 'weekly')),
    target     REAL NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_goals_user_id ON goals(user_id);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
