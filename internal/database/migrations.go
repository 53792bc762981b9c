package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS headlines (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    link TEXT UNIQUE NOT NULL,
    disaster_type TEXT NOT NULL,
    posted_datetime TEXT,
    article_body TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS relief_templates (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    headline_id INTEGER NOT NULL REFERENCES headlines(id),
    relief_title TEXT NOT NULL,
    description TEXT NOT NULL,
    monetary_goal REAL NOT NULL DEFAULT 0 CHECK(monetary_goal >= 0),
    deployment_date TEXT,
    is_used INTEGER NOT NULL DEFAULT 0,
    urgency_rank INTEGER NOT NULL DEFAULT -1,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS relief_inkind (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    relief_template_id INTEGER NOT NULL REFERENCES relief_templates(id),
    item TEXT NOT NULL,
    item_desc TEXT,
    quantity INTEGER NOT NULL CHECK(quantity > 0)
);

CREATE INDEX IF NOT EXISTS idx_headlines_link ON headlines(link);
CREATE INDEX IF NOT EXISTS idx_headlines_type ON headlines(disaster_type);
CREATE INDEX IF NOT EXISTS idx_relief_templates_headline ON relief_templates(headline_id);
CREATE INDEX IF NOT EXISTS idx_relief_inkind_template ON relief_inkind(relief_template_id);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
