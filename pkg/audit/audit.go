// Package audit implements the append-only audit log: one newline-delimited
// JSON file per calendar day, flushed after every entry. It is the system
// of record for every tool call's permission decision and outcome; an
// optional SQLite index exists only to make dashboard queries fast and can
// always be rebuilt from the JSONL files.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one audit record: a tool call, the permission/confirmation
// decision made about it, and its outcome.
type Entry struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	Principal    string         `json:"principal"`
	SessionID    string         `json:"session_id"`
	ToolName     string         `json:"tool_name"`
	Params       map[string]any `json:"params,omitempty"`
	Decision     string         `json:"decision"` // safe, confirmed, rejected, forbidden (auto-approval is the AutoApproved flag)
	RiskLevel    string         `json:"risk_level,omitempty"`
	AutoApproved bool           `json:"auto_approved,omitempty"`
	Success      bool           `json:"success"`
	Error        string         `json:"error,omitempty"`
	DurationMS   int64          `json:"duration_ms"`
}

// Log is the append-only JSONL writer. One file per calendar day under
// Dir, named YYYY-MM-DD.jsonl. Writes are serialized through a single
// mutex, matching the teacher's session-log idiom of one writer per file.
type Log struct {
	mu      sync.Mutex
	dir     string
	day     string
	file    *os.File
	writer  *bufio.Writer
}

// NewLog opens (creating if needed) the audit log directory.
func NewLog(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: create dir: %w", err)
	}
	return &Log{dir: dir}, nil
}

// Append writes one entry, assigning an ID and timestamp if not already set.
func (l *Log) Append(e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rotateLocked(e.Timestamp); err != nil {
		return err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}
	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("audit: write entry: %w", err)
	}
	if err := l.writer.WriteByte('\n'); err != nil {
		return err
	}
	return l.writer.Flush()
}

func (l *Log) rotateLocked(ts time.Time) error {
	day := ts.Format("2006-01-02")
	if day == l.day && l.file != nil {
		return nil
	}
	if l.file != nil {
		l.writer.Flush()
		l.file.Close()
	}

	path := filepath.Join(l.dir, day+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("audit: open %s: %w", path, err)
	}
	l.day = day
	l.file = f
	l.writer = bufio.NewWriter(f)
	return nil
}

// Close flushes and closes the current day's file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	l.writer.Flush()
	return l.file.Close()
}

// ReadDay reads every entry from a single day's file, in append order.
func ReadDay(dir, day string) ([]Entry, error) {
	path := filepath.Join(dir, day+".jsonl")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}
