package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// fixed width so created_at sorts as text
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

const schema = `
CREATE TABLE IF NOT EXISTS analysis_results (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL DEFAULT '',
	scene_id   TEXT NOT NULL,
	created_at TEXT NOT NULL,
	payload    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analysis_results_scene ON analysis_results(scene_id, created_at);
`

// SQLiteHistory is a HistoryRepository backed by SQLite
type SQLiteHistory struct {
	db   *sql.DB
	path string
}

var _ HistoryRepository = (*SQLiteHistory)(nil)

// OpenSQLiteHistory opens or creates the history database at path.
// ":memory:" gives a private in-memory database.
func OpenSQLiteHistory(path string) (*SQLiteHistory, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// each pooled connection would otherwise get its own database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{"PRAGMA busy_timeout = 5000"}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &SQLiteHistory{db: db, path: path}, nil
}

// Path returns the database location
func (h *SQLiteHistory) Path() string {
	return h.path
}

// Close closes the underlying database connection
func (h *SQLiteHistory) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	return h.db.Close()
}

func (h *SQLiteHistory) Save(ctx context.Context, result models.AnalysisResult) error {
	_, err := h.insert(ctx, result)
	return err
}

func (h *SQLiteHistory) insert(ctx context.Context, result models.AnalysisResult) (bool, error) {
	if h == nil || h.db == nil {
		return false, ErrRepositoryUnavailable
	}
	if strings.TrimSpace(result.ID) == "" || strings.TrimSpace(result.SceneID) == "" {
		return false, ErrInvalidResult
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("encode analysis result: %w", err)
	}

	var res sql.Result
	err = retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = h.db.ExecContext(ctx,
			`INSERT INTO analysis_results (id, session_id, scene_id, created_at, payload)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO NOTHING`,
			result.ID, result.SessionID, result.SceneID,
			result.Timestamp.UTC().Format(timeLayout), string(payload))
		return execErr
	})
	if err != nil {
		return false, fmt.Errorf("insert analysis result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert analysis result: %w", err)
	}
	return n > 0, nil
}

func (h *SQLiteHistory) Get(ctx context.Context, id string) (models.AnalysisResult, error) {
	if h == nil || h.db == nil {
		return models.AnalysisResult{}, ErrRepositoryUnavailable
	}
	var payload string
	err := h.db.QueryRowContext(ctx, `SELECT payload FROM analysis_results WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AnalysisResult{}, ErrAnalysisNotFound
	}
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("query analysis result: %w", err)
	}
	return decodeResult(payload)
}

func (h *SQLiteHistory) List(ctx context.Context, filter HistoryFilter) ([]models.AnalysisResult, error) {
	if h == nil || h.db == nil {
		return nil, ErrRepositoryUnavailable
	}

	query := `SELECT payload FROM analysis_results`
	var where []string
	var args []any
	if filter.SceneID != "" {
		where = append(where, "scene_id = ?")
		args = append(args, filter.SceneID)
	}
	if filter.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query analysis history: %w", err)
	}
	defer rows.Close()

	results := make([]models.AnalysisResult, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan analysis result: %w", err)
		}
		result, err := decodeResult(payload)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func (h *SQLiteHistory) Export(ctx context.Context, w io.Writer) (int, error) {
	results, err := h.List(ctx, HistoryFilter{})
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return 0, fmt.Errorf("encode history export: %w", err)
	}
	return len(results), nil
}

func (h *SQLiteHistory) Import(ctx context.Context, r io.Reader) (int, error) {
	var results []models.AnalysisResult
	if err := json.NewDecoder(r).Decode(&results); err != nil {
		return 0, fmt.Errorf("decode history import: %w", err)
	}

	imported := 0
	for i, result := range results {
		if err := ctx.Err(); err != nil {
			return imported, err
		}
		added, err := h.insert(ctx, result)
		if err != nil {
			return imported, fmt.Errorf("import entry %d: %w", i, err)
		}
		if added {
			imported++
		}
	}
	return imported, nil
}

func decodeResult(payload string) (models.AnalysisResult, error) {
	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("decode analysis result: %w", err)
	}
	return result, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
