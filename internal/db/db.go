// Package db stores the history of simulator runs in SQLite.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/hydro.report/internal/keytree"
	"github.com/banshee-data/hydro.report/internal/simrun"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

type DB struct {
	*sql.DB
}

// OpenDB opens the database at path without touching the schema.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps the pragmas below in force for every statement.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return &DB{db}, nil
}

// NewDB opens the database at path and applies every pending migration.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(MigrationsFS()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// RecordRun inserts rec and its key database. It implements
// simrun.RunStore.
func (db *DB) RecordRun(rec *simrun.Record) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, name, work_dir, command, status, exit_code, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.Name, rec.WorkDir, rec.Command, rec.Status, rec.ExitCode, rec.Error,
		rec.StartedAt.UnixNano(), rec.FinishedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.ID, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO run_keys (run_id, position, key, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for n, e := range rec.Keys {
		if _, err := stmt.Exec(rec.ID.String(), n, e.Key, e.Value.Text()); err != nil {
			return fmt.Errorf("insert key %s of run %s: %w", e.Key, rec.ID, err)
		}
	}
	return tx.Commit()
}

const runColumns = `id, name, work_dir, command, status, exit_code, error, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*simrun.Record, error) {
	var (
		rec               simrun.Record
		id                string
		started, finished int64
	)
	if err := row.Scan(&id, &rec.Name, &rec.WorkDir, &rec.Command, &rec.Status,
		&rec.ExitCode, &rec.Error, &started, &finished); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("run id %q: %w", id, err)
	}
	rec.ID = parsed
	rec.StartedAt = time.Unix(0, started).UTC()
	rec.FinishedAt = time.Unix(0, finished).UTC()
	return &rec, nil
}

// GetRun returns the run with the given ID, including its keys.
func (db *DB) GetRun(id uuid.UUID) (*simrun.Record, error) {
	rec, err := scanRun(db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if rec.Keys, err = db.RunKeys(id); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRuns returns up to limit runs, most recent first, without their keys.
// An empty name lists runs of every name.
func (db *DB) ListRuns(name string, limit int) ([]*simrun.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`SELECT `+runColumns+` FROM runs
		WHERE (? = '' OR name = ?)
		ORDER BY started_at DESC, id
		LIMIT ?`, name, name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*simrun.Record
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

// RunKeys returns the key database a run was started with, in the order it
// was written.
func (db *DB) RunKeys(id uuid.UUID) ([]keytree.Entry, error) {
	rows, err := db.Query(`SELECT key, value FROM run_keys WHERE run_id = ? ORDER BY position`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []keytree.Entry
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		entries = append(entries, keytree.Entry{Key: key, Value: keytree.ParseValue(value)})
	}
	return entries, rows.Err()
}

// RunTree rebuilds the key tree of a recorded run.
func (db *DB) RunTree(id uuid.UUID) (*keytree.Tree, error) {
	entries, err := db.RunKeys(id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		if _, err := db.GetRun(id); err != nil {
			return nil, err
		}
	}
	t, err := keytree.FromEntries(entries)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	return t, nil
}

// RunCounts returns the number of recorded runs per status.
func (db *DB) RunCounts() (map[string]int, error) {
	rows, err := db.Query(`SELECT status, COUNT(*) FROM runs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
