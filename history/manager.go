package history

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNotFound is returned when no session matches an id or prefix.
var ErrNotFound = errors.New("session not found")

// Manager handles dual-write history (JSONL + SQLite). The JSONL file is
// the source of truth; the database is rebuilt from it when empty.
type Manager struct {
	db          *sql.DB
	jsonlPath   string
	searchAvail bool
	logger      *zap.Logger
	mu          sync.Mutex
}

func New(dbPath, jsonlPath string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, ftsEnabled, err := initDB(dbPath)
	if err != nil {
		return nil, err
	}
	if !ftsEnabled {
		logger.Warn("sqlite built without FTS5, history search disabled")
	}

	m := &Manager{
		db:          db,
		jsonlPath:   jsonlPath,
		searchAvail: ftsEnabled,
		logger:      logger,
	}
	m.EnsureMigrated()
	return m, nil
}

func (m *Manager) Close() {
	if m.db != nil {
		m.db.Close()
	}
}

// SearchAvailable reports whether FTS5 search can be used.
func (m *Manager) SearchAvailable() bool {
	return m.searchAvail
}

// EnsureMigrated imports the JSONL log when the database has no sessions.
func (m *Manager) EnsureMigrated() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int
	err := m.db.QueryRow("SELECT count(*) FROM sessions").Scan(&count)
	if err == nil && count > 0 {
		return
	}
	if _, err := os.Stat(m.jsonlPath); os.IsNotExist(err) {
		return
	}

	n, err := m.migrate()
	if err != nil {
		m.logger.Warn("history import failed", zap.String("path", m.jsonlPath), zap.Error(err))
		return
	}
	m.logger.Info("history imported", zap.Int("sessions", n))
}

func (m *Manager) migrate() (int, error) {
	f, err := os.Open(m.jsonlPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 16*1024*1024)

	tx, err := m.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	n := 0
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil || rec.ID == "" {
			m.logger.Debug("skipping history line", zap.Error(err))
			continue
		}
		if err := insertRecord(tx, rec); err != nil {
			return n, err
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, err
	}
	return n, tx.Commit()
}

// === Write Methods ===

// Save appends rec to the JSONL log and indexes it.
func (m *Manager) Save(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.appendJSONL(rec); err != nil {
		return fmt.Errorf("append history log: %w", err)
	}

	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertRecord(tx, rec); err != nil {
		return fmt.Errorf("index history: %w", err)
	}
	return tx.Commit()
}

func insertRecord(tx *sql.Tx, rec Record) error {
	var notebook any
	if len(rec.Notebook) > 0 {
		notebook = string(rec.Notebook)
	}

	res, err := tx.Exec(`INSERT OR IGNORE INTO sessions(id, created_at, model, prompt, status, error, elapsed, notebook)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TS, rec.Model, rec.Prompt, rec.Status, rec.Error, rec.Elapsed, notebook)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	for i, item := range rec.Results {
		dataset, err := json.Marshal(item.Dataset)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT OR IGNORE INTO results(session_id, position, explanation, visualization, dataset)
			VALUES(?, ?, ?, ?, ?)`,
			rec.ID, i, item.Explanation, item.VisualizationType, string(dataset)); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) appendJSONL(data any) error {
	f, err := os.OpenFile(m.jsonlPath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = f.Write(append(b, '\n'))
	return err
}

// === Read Methods ===

func (m *Manager) Search(query string, limit int) ([]SearchResult, error) {
	if !m.searchAvail {
		return nil, fmt.Errorf("search is unavailable (binary compiled without FTS5 support)")
	}

	ftsQuery := ParseQuery(query)
	if ftsQuery == "" {
		return nil, fmt.Errorf("empty query")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := m.db.Query(`
		SELECT entries_fts.session_id, entries_fts.kind, entries_fts.content,
		       highlight(entries_fts, 0, '[', ']'), s.created_at
		FROM entries_fts
		JOIN sessions s ON s.id = entries_fts.session_id
		WHERE entries_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", ftsQuery, err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var ts int64
		if err := rows.Scan(&r.SessionID, &r.Kind, &r.Content, &r.Preview, &ts); err != nil {
			return nil, err
		}
		r.Timestamp = time.Unix(ts, 0)
		results = append(results, r)
	}
	return results, rows.Err()
}

// Resolve finds the full session id given a prefix or full string.
func (m *Manager) Resolve(partial string) (string, error) {
	var full string
	err := m.db.QueryRow("SELECT id FROM sessions WHERE id = ?", partial).Scan(&full)
	if err == nil {
		return full, nil
	}

	rows, err := m.db.Query("SELECT id FROM sessions WHERE id LIKE ? LIMIT 2", partial+"%")
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, partial)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("ambiguous session id: %s...", partial)
	}
}

// Get loads a stored session with its results.
func (m *Manager) Get(id string) (*Record, error) {
	var rec Record
	var errText, notebook sql.NullString
	err := m.db.QueryRow(`SELECT id, created_at, model, prompt, status, error, elapsed, notebook
		FROM sessions WHERE id = ?`, id).
		Scan(&rec.ID, &rec.TS, &rec.Model, &rec.Prompt, &rec.Status, &errText, &rec.Elapsed, &notebook)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	rec.Error = errText.String
	if notebook.Valid && notebook.String != "" {
		rec.Notebook = json.RawMessage(notebook.String)
	}

	rows, err := m.db.Query(`SELECT explanation, visualization, dataset
		FROM results WHERE session_id = ? ORDER BY position ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item struct {
			explanation, visualization, dataset string
		}
		if err := rows.Scan(&item.explanation, &item.visualization, &item.dataset); err != nil {
			return nil, err
		}
		r, err := decodeStoredResult(item.explanation, item.visualization, item.dataset)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", id, err)
		}
		rec.Results = append(rec.Results, r)
	}
	return &rec, rows.Err()
}

func (m *Manager) ListRecent(limit int) ([]SessionSummary, error) {
	rows, err := m.db.Query(`SELECT s.id, s.created_at, s.model, s.status, s.prompt,
		(SELECT count(*) FROM results r WHERE r.session_id = s.id)
		FROM sessions s ORDER BY s.created_at DESC, s.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []SessionSummary
	for rows.Next() {
		var s SessionSummary
		var ts int64
		if err := rows.Scan(&s.ID, &ts, &s.Model, &s.Status, &s.Summary, &s.Results); err != nil {
			return nil, err
		}
		s.Timestamp = time.Unix(ts, 0)
		s.Summary = summarize(s.Summary, 100)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func summarize(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
