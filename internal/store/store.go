// Package store persists the chat history and user identifier in a
// local key/value table. Read failures degrade to empty results and
// write failures are logged and swallowed; the conversation must keep
// working without persistence.
package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/normanking/jarvis/internal/chat"

	_ "modernc.org/sqlite"
)

const (
	userIDKey  = "jarvis_user_id"
	historyKey = "jarvis_history"

	userIDPrefix    = "USR-"
	userIDSuffixLen = 9

	// HistoryLimit bounds the persisted history to the most recent entries.
	HistoryLimit = 100
)

// Store is a sqlite-backed key/value string store.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
	mu     sync.Mutex
}

// Open opens (or creates) the store database under dataDir.
func Open(dataDir string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "jarvis.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// UserID returns the stored user identifier, generating and storing a
// new one on first use. Repeated calls return the same value.
func (s *Store) UserID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.get(userIDKey)
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to read user id: %w", err)
	}

	id, err = newUserID()
	if err != nil {
		return "", err
	}
	if err := s.set(userIDKey, id); err != nil {
		return "", fmt.Errorf("failed to store user id: %w", err)
	}

	s.logger.Info().Str("userId", id).Msg("Generated new user identifier")
	return id, nil
}

// newUserID builds a fixed-prefix random identifier like USR-K3F9Q2ZX1.
func newUserID() (string, error) {
	const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	buf := make([]byte, userIDSuffixLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate user id: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(userIDPrefix)
	for _, b := range buf {
		sb.WriteByte(alphabet[int(b)%len(alphabet)])
	}
	return sb.String(), nil
}

// LoadHistory returns the persisted message list. A missing or corrupt
// history yields an empty slice, never an error.
func (s *Store) LoadHistory() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.get(historyKey)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn().Err(err).Msg("Failed to read history")
		}
		return nil
	}

	var messages []chat.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		s.logger.Warn().Err(err).Msg("Corrupt history, starting fresh")
		return nil
	}

	return messages
}

// SaveHistory persists the most recent HistoryLimit messages in order.
// Errors are logged and swallowed.
func (s *Store) SaveHistory(messages []chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(messages) > HistoryLimit {
		messages = messages[len(messages)-HistoryLimit:]
	}

	data, err := json.Marshal(messages)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to serialize history")
		return
	}

	if err := s.set(historyKey, string(data)); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist history")
	}
}

// ClearHistory removes the stored history key.
func (s *Store) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, historyKey); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to clear history")
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	return value, err
}

func (s *Store) set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}
