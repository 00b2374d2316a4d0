package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"perfomatic/internal/budget"
)

const currentSchemaVersion = schemaVersionV1

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// nullStr converts a sql.NullString to a plain string (empty if null).
func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .perfomatic) if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableCount == 0 {
		return s.freshInstall()
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return s.freshInstall()
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != currentSchemaVersion {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

func (s *SqlStore) freshInstall() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaV1); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return fmt.Errorf("reset schema version: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SqlStore) Close() error {
	return s.db.Close()
}

// RecordRun implements Store.
func (s *SqlStore) RecordRun(run *Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, started_at, finished_at, engine, passed, failed, skipped, exit_code)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(timeLayout), run.FinishedAt.UTC().Format(timeLayout),
		run.Engine, run.Passed, run.Failed, run.Skipped, run.ExitCode,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for i, site := range run.Sites {
		judgments := site.Judgments
		if judgments == nil {
			judgments = []budget.Judgment{}
		}
		payload, err := json.Marshal(judgments)
		if err != nil {
			return "", fmt.Errorf("marshal judgments for %s: %w", site.URL, err)
		}
		_, err = tx.Exec(
			`INSERT INTO sites (run_id, position, url, overall_score, passed, error, error_kind, judgments)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, site.URL, site.OverallScore, site.Passed,
			nullable(site.Error), nullable(site.ErrorKind), string(payload),
		)
		if err != nil {
			return "", fmt.Errorf("insert site %s: %w", site.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return run.ID, nil
}

// GetRun implements Store.
func (s *SqlStore) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(
		`SELECT id, started_at, finished_at, engine, passed, failed, skipped, exit_code
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT url, overall_score, passed, error, error_kind, judgments
		 FROM sites WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query sites: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		run.Sites = append(run.Sites, site)
	}
	return run, rows.Err()
}

// ListRuns implements Store.
func (s *SqlStore) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, started_at, finished_at, engine, passed, failed, skipped, exit_code
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// SiteHistory implements Store.
func (s *SqlStore) SiteHistory(url string, limit int) ([]SiteEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT r.id, r.started_at, s.url, s.overall_score, s.passed, s.error, s.error_kind, s.judgments
		 FROM sites s JOIN runs r ON r.id = s.run_id
		 WHERE s.url = ? ORDER BY r.started_at DESC, r.rowid DESC LIMIT ?`, url, limit)
	if err != nil {
		return nil, fmt.Errorf("query site history: %w", err)
	}
	defer rows.Close()

	var out []SiteEntry
	for rows.Next() {
		var (
			e       SiteEntry
			started string
		)
		site, err := scanSite(rows, &e.RunID, &started)
		if err != nil {
			return nil, err
		}
		e.Site = site
		if e.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run               Run
		started, finished string
	)
	err := row.Scan(&run.ID, &started, &finished, &run.Engine, &run.Passed, &run.Failed, &run.Skipped, &run.ExitCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}
	return &run, nil
}

// scanSite scans the site columns, after any leading columns given in prefix.
func scanSite(row scanner, prefix ...any) (Site, error) {
	var (
		site            Site
		score           sql.NullFloat64
		errMsg, errKind sql.NullString
		payload         string
	)
	dest := append(prefix, &site.URL, &score, &site.Passed, &errMsg, &errKind, &payload)
	if err := row.Scan(dest...); err != nil {
		return Site{}, fmt.Errorf("scan site: %w", err)
	}
	if score.Valid {
		v := score.Float64
		site.OverallScore = &v
	}
	site.Error = nullStr(errMsg)
	site.ErrorKind = nullStr(errKind)
	if err := json.Unmarshal([]byte(payload), &site.Judgments); err != nil {
		return Site{}, fmt.Errorf("decode judgments for %s: %w", site.URL, err)
	}
	return site, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
