package store

// schemaVersionV1 is the first history schema.
const schemaVersionV1 = 1

var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	engine      TEXT NOT NULL,
	passed      INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	exit_code   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sites (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position      INTEGER NOT NULL,
	url           TEXT NOT NULL,
	overall_score REAL,
	passed        INTEGER NOT NULL,
	error         TEXT,
	error_kind    TEXT,
	judgments     TEXT NOT NULL,
	UNIQUE(run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_sites_url ON sites(url);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`
