package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const schemaCore = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    created_at INTEGER,
    model TEXT,
    prompt TEXT,
    status TEXT,
    error TEXT,
    elapsed REAL,
    notebook TEXT
);

CREATE TABLE IF NOT EXISTS results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT,
    position INTEGER,
    explanation TEXT,
    visualization TEXT,
    dataset TEXT,
    UNIQUE(session_id, position),
    FOREIGN KEY(session_id) REFERENCES sessions(id)
);
`

const schemaFTS = `
CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
    content,
    kind,
    session_id UNINDEXED,
    tokenize = 'porter'
);

CREATE TRIGGER IF NOT EXISTS sessions_ai AFTER INSERT ON sessions BEGIN
  INSERT INTO entries_fts(content, kind, session_id) VALUES (new.prompt, 'prompt', new.id);
END;

CREATE TRIGGER IF NOT EXISTS results_ai AFTER INSERT ON results BEGIN
  INSERT INTO entries_fts(content, kind, session_id) VALUES (new.explanation, 'result', new.session_id);
END;
`

func initDB(dbPath string) (*sql.DB, bool, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, false, fmt.Errorf("failed to create history dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, false, err
	}

	if _, err := db.Exec(schemaCore); err != nil {
		db.Close()
		return nil, false, fmt.Errorf("failed to init core schema: %w", err)
	}

	// Without FTS5 the history still records; only search is disabled.
	ftsEnabled := true
	if _, err := db.Exec(schemaFTS); err != nil {
		ftsEnabled = false
	}

	return db, ftsEnabled, nil
}

// CheckFTS reports whether this binary's SQLite has FTS5.
func CheckFTS() bool {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return false
	}
	defer db.Close()

	_, err = db.Exec("CREATE VIRTUAL TABLE test USING fts5(content)")
	return err == nil
}
