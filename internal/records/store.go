// Package records is the downstream query-serving agent: a sqlite
// candidate store with write methods for the mesh and the standard
// read-only execute/get_schema surface on top of the same file.
package records

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"querymesh/internal/adapter"
	"querymesh/internal/domain"

	_ "modernc.org/sqlite"
)

// Record is one stored candidate. Skills are kept comma-joined, the
// shape the demo sink's queries expect; the agent splits them at the
// wire boundary.
type Record struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Title     string `json:"title"`
	Skills    string `json:"skills,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Store owns the candidates database.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create records directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open records database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, path: dbPath, logger: logger.With("component", "records")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS candidates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			title TEXT NOT NULL,
			skills TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("records migration failed: %w", err)
	}
	return nil
}

// Path returns the database file location. The demo sink descriptor and
// the read-only adapter below both point here.
func (s *Store) Path() string { return s.path }

func (s *Store) Close() error { return s.db.Close() }

// Create stores one candidate and returns its assigned id.
func (s *Store) Create(name, title, skills string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO candidates (name, title, skills) VALUES (?, ?, ?)`,
		name, title, skills,
	)
	if err != nil {
		return 0, fmt.Errorf("cannot store record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("cannot read new record id: %w", err)
	}
	return id, nil
}

// Get returns the record, or (nil, nil) when the id is unknown.
func (s *Store) Get(id int64) (*Record, error) {
	var r Record
	err := s.db.QueryRow(
		`SELECT id, name, title, COALESCE(skills, ''), created_at FROM candidates WHERE id = ?`, id,
	).Scan(&r.ID, &r.Name, &r.Title, &r.Skills, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot load record %d: %w", id, err)
	}
	return &r, nil
}

// List returns records in insertion order, capped at limit (50 when
// limit is not positive).
func (s *Store) List(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, name, title, COALESCE(skills, ''), created_at FROM candidates ORDER BY id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("cannot list records: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Name, &r.Title, &r.Skills, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("cannot scan record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Query runs one read-only statement through a fresh sqlite adapter
// against the records database, so the downstream execute surface has
// exactly the semantics of the planner's data path: same classifier,
// same normalization, connection per call.
func (s *Store) Query(ctx context.Context, q domain.QueryObject) (domain.QueryResult, error) {
	backend := adapter.NewSQLiteAdapter(s.logger)
	if err := backend.Connect(ctx, map[string]any{"database_file_path": s.path}); err != nil {
		return domain.QueryResult{}, err
	}
	defer func() {
		if err := backend.Disconnect(); err != nil {
			s.logger.Warn("adapter disconnect failed", "error", err)
		}
	}()
	return backend.ExecuteQuery(ctx, q)
}

// Schema describes the records database through the same adapter.
func (s *Store) Schema(ctx context.Context, entity string) (domain.SchemaInfo, error) {
	backend := adapter.NewSQLiteAdapter(s.logger)
	if err := backend.Connect(ctx, map[string]any{"database_file_path": s.path}); err != nil {
		return domain.SchemaInfo{}, err
	}
	defer func() {
		if err := backend.Disconnect(); err != nil {
			s.logger.Warn("adapter disconnect failed", "error", err)
		}
	}()
	return backend.GetSchemaInformation(ctx, entity)
}
