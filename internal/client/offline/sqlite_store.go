package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the queue in a SQLite file so it survives restarts
type SQLiteStore struct {
	db *sql.DB
}

// DefaultQueuePath is the queue file under the user's data directory
func DefaultQueuePath() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "tracker", "queue.db"), nil
}

// NewSQLiteStore opens (or creates) the queue database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create queue dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}
	// a single connection serialises writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS queue (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		method     TEXT    NOT NULL,
		url        TEXT    NOT NULL,
		header     TEXT    NOT NULL DEFAULT '{}',
		body       BLOB,
		created_at TEXT    NOT NULL,
		attempts   INTEGER NOT NULL DEFAULT 0,
		last_error TEXT    NOT NULL DEFAULT ''
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, entry Entry) (Entry, error) {
	header, err := json.Marshal(entry.Header)
	if err != nil {
		return Entry{}, fmt.Errorf("encode header: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO queue (method, url, header, body, created_at, attempts, last_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Method, entry.URL, string(header), entry.Body,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano), entry.Attempts, entry.LastError,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert queue entry: %w", err)
	}

	entry.ID, err = res.LastInsertId()
	if err != nil {
		return Entry{}, fmt.Errorf("queue entry id: %w", err)
	}
	return entry, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, method, url, header, body, created_at, attempts, last_error
		 FROM queue ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query queue: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			header     string
			createdStr string
		)
		if err := rows.Scan(&e.ID, &e.Method, &e.URL, &header, &e.Body, &createdStr, &e.Attempts, &e.LastError); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		e.Header = http.Header{}
		if err := json.Unmarshal([]byte(header), &e.Header); err != nil {
			return nil, fmt.Errorf("decode header of entry %d: %w", e.ID, err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Update(ctx context.Context, entry Entry) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE queue SET attempts = ?, last_error = ? WHERE id = ?",
		entry.Attempts, entry.LastError, entry.ID,
	)
	if err != nil {
		return fmt.Errorf("update queue entry %d: %w", entry.ID, err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM queue WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete queue entry %d: %w", id, err)
	}
	return requireRow(res)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}
