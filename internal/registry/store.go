// Package registry implements the shared agent registry: a SQLite-backed
// catalogue of agent descriptors with upsert-by-name semantics, plus the
// mesh agent that serves it over the call envelope.
package registry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"querymesh/internal/domain"
)

// Store implements domain.Registry over SQLite. The whole descriptor is
// stored as one JSON blob keyed by name, so an upsert replaces the
// record in a single statement and can never merge old and new
// capability lists.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ domain.Registry = (*Store)(nil)

func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open registry database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db, logger: logger.With("component", "registry_store")}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry migration failed: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		name        TEXT PRIMARY KEY,
		card        TEXT NOT NULL,
		updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Register upserts an agent descriptor by name. The write either fully
// replaces the prior card or leaves it untouched.
func (s *Store) Register(card domain.AgentDescriptor) error {
	if card.Name == "" {
		return fmt.Errorf("agent descriptor must have a name")
	}
	if card.InternalAddress == "" {
		return fmt.Errorf("agent %s must have an internal address", card.Name)
	}

	data, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("cannot encode card for %s: %w", card.Name, err)
	}

	_, err = s.db.Exec(
		`INSERT INTO agents (name, card) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET card = excluded.card, updated_at = CURRENT_TIMESTAMP`,
		card.Name, string(data),
	)
	if err != nil {
		return fmt.Errorf("cannot register agent %s: %w", card.Name, err)
	}

	s.logger.Debug("agent registered", "name", card.Name, "capabilities", len(card.Capabilities))
	return nil
}

// GetAgent returns (nil, nil) when the agent is not registered; a
// non-nil error always means the store itself failed.
func (s *Store) GetAgent(name string) (*domain.AgentDescriptor, error) {
	var raw string
	err := s.db.QueryRow(`SELECT card FROM agents WHERE name = ?`, name).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot fetch agent %s: %w", name, err)
	}

	var card domain.AgentDescriptor
	if err := json.Unmarshal([]byte(raw), &card); err != nil {
		return nil, fmt.Errorf("corrupt card for agent %s: %w", name, err)
	}
	return &card, nil
}

// ListAgents returns every descriptor ordered by name.
func (s *Store) ListAgents() ([]domain.AgentDescriptor, error) {
	rows, err := s.db.Query(`SELECT name, card FROM agents ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("cannot list agents: %w", err)
	}
	defer rows.Close()

	var cards []domain.AgentDescriptor
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("cannot scan agent row: %w", err)
		}
		var card domain.AgentDescriptor
		if err := json.Unmarshal([]byte(raw), &card); err != nil {
			return nil, fmt.Errorf("corrupt card for agent %s: %w", name, err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// GetMethodDetails is a pure derived lookup over GetAgent. Both an
// unknown agent and an unknown method return (nil, nil).
func (s *Store) GetMethodDetails(agentName, methodName string) (*domain.Capability, error) {
	card, err := s.GetAgent(agentName)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, nil
	}
	return card.Method(methodName), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
