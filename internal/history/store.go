// Package history persists finished workflows and task executions to SQLite
// so the audit trail survives process restarts. The live system of record is
// the in-memory task store; this is append-only bookkeeping.
package history

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/foreman/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// Execution is one row of the task_executions table.
type Execution struct {
	ID           int64
	TaskID       string
	WorkflowID   string
	TaskType     string
	Agent        string
	Status       string
	Result       map[string]any
	ErrorMessage string
	DurationSecs float64
	CompletedAt  time.Time
}

// Store manages the SQLite audit database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if needed) the audit database at dbPath and
// applies the schema. ":memory:" is supported for tests.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// busy_timeout first so the remaining pragmas wait on locks instead of
	// failing when another process touches the same file.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// execWithRetry retries a statement with exponential backoff on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordWorkflow inserts a workflow record at creation time.
func (s *Store) RecordWorkflow(wf models.Workflow) error {
	params, err := json.Marshal(wf.Params)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	taskIDs, err := json.Marshal(wf.TaskIDs)
	if err != nil {
		return fmt.Errorf("marshal task ids: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO workflows (workflow_id, workflow_type, priority, parameters, task_ids, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		wf.ID, string(wf.Type), wf.Priority, string(params), string(taskIDs), wf.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	return nil
}

// RecordTask inserts one finished task execution. Only terminal tasks are
// recorded; callers pass the task as returned by the store's Complete/Fail.
func (s *Store) RecordTask(t models.Task) error {
	result := "{}"
	if t.Result != nil {
		data, err := json.Marshal(t.Result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		result = string(data)
	}

	completedAt := time.Now()
	if t.CompletedAt != nil {
		completedAt = *t.CompletedAt
	}

	_, err := s.db.Exec(
		`INSERT INTO task_executions (task_id, workflow_id, task_type, agent, status, result, error_message, duration_seconds, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.WorkflowID, string(t.Type), t.AssignedAgent, string(t.Status),
		result, t.Error, t.Duration().Seconds(), completedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task execution: %w", err)
	}
	return nil
}

// ListExecutions returns the most recent task executions, newest first.
func (s *Store) ListExecutions(limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, task_id, workflow_id, task_type, agent, status, result, error_message, duration_seconds, completed_at
		 FROM task_executions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query task executions: %w", err)
	}
	defer rows.Close()

	var out []Execution
	for rows.Next() {
		var e Execution
		var result string
		if err := rows.Scan(&e.ID, &e.TaskID, &e.WorkflowID, &e.TaskType, &e.Agent,
			&e.Status, &result, &e.ErrorMessage, &e.DurationSecs, &e.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan task execution: %w", err)
		}
		if err := json.Unmarshal([]byte(result), &e.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result for %s: %w", e.TaskID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountWorkflows returns the number of recorded workflows.
func (s *Store) CountWorkflows() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM workflows`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count workflows: %w", err)
	}
	return n, nil
}
