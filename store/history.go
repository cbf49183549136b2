package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gitlab.com/phishguard/phishguard"
	_ "modernc.org/sqlite" // SQLite driver
)

// History is an append-only log of every classification acted upon, backing
// the history CLI command and the panel's protected-sites view
type History struct {
	db       *sql.DB
	filepath string
}

// NewHistory creates a decision history under dir
func NewHistory(dir string) *History {
	return &History{filepath: dir}
}

// Init opens the database and creates the schema
func (h *History) Init() error {
	if err := os.MkdirAll(h.filepath, 0750); err != nil {
		return errors.Wrap(err, "create history directory")
	}

	dbPath := filepath.Join(h.filepath, "decisions.db")
	db, err := sql.Open("sqlite", dbPath+"?mode=rwc")
	if err != nil {
		return errors.Wrap(err, "open history db")
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return errors.Wrap(err, "enable WAL")
	}

	schema := `
	CREATE TABLE IF NOT EXISTS decisions (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		decision TEXT NOT NULL,
		confidence REAL NOT NULL,
		fallback_url TEXT,
		checked_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_checked_at ON decisions(checked_at);
	CREATE INDEX IF NOT EXISTS idx_decisions_decision ON decisions(decision);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return errors.Wrap(err, "create history schema")
	}

	h.db = db
	return nil
}

// Close the history database
func (h *History) Close() error {
	return h.db.Close()
}

// Append a decision record
func (h *History) Append(ctx context.Context, rec *phishguard.DecisionRecord) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO decisions (id, url, decision, confidence, fallback_url, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.URL, rec.Decision.String(), rec.Confidence, rec.FallbackURL,
		rec.CheckedAt.UTC().Format(time.RFC3339Nano))
	return errors.Wrap(err, "append decision")
}

// Recent returns up to limit records, newest first
func (h *History) Recent(ctx context.Context, limit int) ([]*phishguard.DecisionRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT id, url, decision, confidence, fallback_url, checked_at
		 FROM decisions ORDER BY checked_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query decisions")
	}
	defer rows.Close()

	records := make([]*phishguard.DecisionRecord, 0)
	for rows.Next() {
		rec := &phishguard.DecisionRecord{}
		var decision, checkedAt string
		var fallback sql.NullString
		if err := rows.Scan(&rec.ID, &rec.URL, &decision, &rec.Confidence, &fallback, &checkedAt); err != nil {
			return nil, errors.Wrap(err, "scan decision")
		}
		rec.Decision = phishguard.DecisionFromString(decision)
		rec.FallbackURL = fallback.String
		if t, err := time.Parse(time.RFC3339Nano, checkedAt); err == nil {
			rec.CheckedAt = t
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountByDecision returns how many recorded decisions match d
func (h *History) CountByDecision(ctx context.Context, d phishguard.Decision) (int64, error) {
	var count int64
	err := h.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM decisions WHERE decision = ?`, d.String()).Scan(&count)
	return count, errors.Wrap(err, "count decisions")
}
