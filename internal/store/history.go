package store

import (
	"database/sql"
	"encoding/json"

	_ "github.com/glebarez/go-sqlite"

	"github.com/lulo-labs/lulo/internal/plan"
)

// Store persists dispatched requests and scheduled automation tasks.
type Store struct {
	DB *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Create tables if not exist
	queries := []string{
		`CREATE TABLE IF NOT EXISTS requests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id TEXT,
			input TEXT,
			reply TEXT,
			success INTEGER,
			actions TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id TEXT,
			request TEXT,
			interval_seconds INTEGER,
			last_run DATETIME,
			status TEXT DEFAULT 'active'
		);`,
	}
	for _, q := range queries {
		if _, err = db.Exec(q); err != nil {
			return nil, err
		}
	}

	return &Store{DB: db}, nil
}

// AddRequest records a dispatched request and its report.
func (s *Store) AddRequest(chatID, input string, rep plan.Report) error {
	actions, err := json.Marshal(rep.Actions)
	if err != nil {
		actions = []byte("[]")
	}
	query := `INSERT INTO requests (chat_id, input, reply, success, actions) VALUES (?, ?, ?, ?, ?)`
	_, err = s.DB.Exec(query, chatID, input, rep.Reply, rep.Success, string(actions))
	return err
}

// RecentRequests returns the latest requests for a chat, oldest first.
func (s *Store) RecentRequests(chatID string, limit int) ([]Request, error) {
	// id breaks timestamp ties: CURRENT_TIMESTAMP has second
	// resolution, so rows inserted in one second would otherwise come
	// back in an order that doesn't survive the reverse below.
	query := `SELECT id, input, reply, success, actions, timestamp FROM requests
		WHERE chat_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`
	rows, err := s.DB.Query(query, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		r := Request{ChatID: chatID}
		var success int
		var actions string
		if err := rows.Scan(&r.ID, &r.Input, &r.Reply, &success, &actions, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Success = success != 0
		if actions != "" {
			_ = json.Unmarshal([]byte(actions), &r.Actions)
		}
		out = append(out, r)
	}

	// Reverse to get chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	return out, nil
}

// AddTask schedules a request for periodic re-dispatch.
func (s *Store) AddTask(chatID, request string, intervalSeconds int) error {
	query := `INSERT INTO tasks (chat_id, request, interval_seconds, last_run) VALUES (?, ?, ?, datetime('now', '-365 days'))`
	_, err := s.DB.Exec(query, chatID, request, intervalSeconds)
	return err
}

// PendingTasks returns active tasks whose interval has elapsed.
func (s *Store) PendingTasks() ([]Task, error) {
	query := `
		SELECT id, chat_id, request, interval_seconds
		FROM tasks
		WHERE status = 'active'
		AND (last_run IS NULL OR (julianday('now') - julianday(last_run)) * 86400 >= interval_seconds)`
	rows, err := s.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.ChatID, &t.Request, &t.IntervalSeconds); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// UpdateTaskLastRun marks a task as just executed.
func (s *Store) UpdateTaskLastRun(id int) error {
	query := `UPDATE tasks SET last_run = datetime('now') WHERE id = ?`
	_, err := s.DB.Exec(query, id)
	return err
}

// DeleteTask removes one task for a chat.
func (s *Store) DeleteTask(chatID string, taskID int) error {
	query := `DELETE FROM tasks WHERE chat_id = ? AND id = ?`
	_, err := s.DB.Exec(query, chatID, taskID)
	return err
}

// ClearTasks removes all tasks for a chat.
func (s *Store) ClearTasks(chatID string) error {
	query := `DELETE FROM tasks WHERE chat_id = ?`
	_, err := s.DB.Exec(query, chatID)
	return err
}
