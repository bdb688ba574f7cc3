package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Index is a query-only SQLite mirror of the JSONL audit log. It exists so
// that recent(limit) and per-principal dashboard queries don't need to
// scan every day's file; it is rebuildable from the JSONL files at any
// time and is never treated as the source of truth.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (creating if needed) the SQLite index file.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit index: open: %w", err)
	}
	schema := `
CREATE TABLE IF NOT EXISTS audit_entries (
	id TEXT PRIMARY KEY,
	timestamp DATETIME NOT NULL,
	principal TEXT NOT NULL,
	session_id TEXT NOT NULL,
	tool_name TEXT NOT NULL,
	decision TEXT NOT NULL,
	risk_level TEXT,
	auto_approved INTEGER NOT NULL DEFAULT 0,
	success INTEGER NOT NULL,
	error TEXT,
	duration_ms INTEGER NOT NULL,
	raw TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_principal ON audit_entries(principal, timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_entries(timestamp);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit index: migrate: %w", err)
	}
	return &Index{db: db}, nil
}

// Mirror inserts or replaces one entry in the index. Log.Append does not
// call it: the index holds only the entries passed to Mirror, and a failure
// here has no effect on the JSONL log.
func (idx *Index) Mirror(ctx context.Context, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	autoApproved := 0
	if e.AutoApproved {
		autoApproved = 1
	}
	success := 0
	if e.Success {
		success = 1
	}
	_, err = idx.db.ExecContext(ctx, `
INSERT INTO audit_entries (id, timestamp, principal, session_id, tool_name, decision, risk_level, auto_approved, success, error, duration_ms, raw)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	decision=excluded.decision, success=excluded.success, error=excluded.error, duration_ms=excluded.duration_ms, raw=excluded.raw
`, e.ID, e.Timestamp, e.Principal, e.SessionID, e.ToolName, e.Decision, e.RiskLevel, autoApproved, success, e.Error, e.DurationMS, string(raw))
	return err
}

// Recent returns the most recent entries across all principals.
func (idx *Index) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := idx.db.QueryContext(ctx, `SELECT raw FROM audit_entries ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ForPrincipal returns recent entries for a single principal.
func (idx *Index) ForPrincipal(ctx context.Context, principal string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := idx.db.QueryContext(ctx, `SELECT raw FROM audit_entries WHERE principal = ? ORDER BY timestamp DESC LIMIT ?`, principal, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// PrincipalStats summarizes one principal's recent activity.
type PrincipalStats struct {
	Principal      string
	CallCount      int
	ConfirmedCount int
	RejectedCount  int
	FailureCount   int
}

// TopPrincipals returns the most active principals within a time window,
// backing the supplemented GET /security/report endpoint.
func (idx *Index) TopPrincipals(ctx context.Context, since time.Time, limit int) ([]PrincipalStats, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := idx.db.QueryContext(ctx, `
SELECT principal,
	COUNT(*) AS call_count,
	SUM(CASE WHEN decision = 'confirmed' THEN 1 ELSE 0 END) AS confirmed_count,
	SUM(CASE WHEN decision = 'rejected' THEN 1 ELSE 0 END) AS rejected_count,
	SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END) AS failure_count
FROM audit_entries
WHERE timestamp >= ?
GROUP BY principal
ORDER BY call_count DESC
LIMIT ?
`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PrincipalStats
	for rows.Next() {
		var s PrincipalStats
		if err := rows.Scan(&s.Principal, &s.CallCount, &s.ConfirmedCount, &s.RejectedCount, &s.FailureCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (idx *Index) Close() error {
	return idx.db.Close()
}
