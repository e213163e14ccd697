// Package sqlite is a single-file Storage for deployments without ClickHouse.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"mediabot/internal/models"
)

// SQLiteDB implements storage.Storage on an embedded SQLite file
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens (or creates) the database at path and creates its schema
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteDB{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteDB) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		telegram_id INTEGER PRIMARY KEY,
		username TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL DEFAULT '',
		last_seen INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		telegram_id INTEGER NOT NULL,
		message TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(telegram_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Initialize is a no-op - the schema is created when the file is opened
func (s *SQLiteDB) Initialize(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser returns the stored profile, or nil when the user is unknown
func (s *SQLiteDB) GetUser(ctx context.Context, telegramID int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT telegram_id, username, first_name, last_seen, created_at
		FROM users WHERE telegram_id = ?`, telegramID)

	var user models.User
	var lastSeen, createdAt int64
	err := row.Scan(&user.TelegramID, &user.Username, &user.FirstName, &lastSeen, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.LastSeen = time.UnixMilli(lastSeen)
	user.CreatedAt = time.UnixMilli(createdAt)
	return &user, nil
}

// SaveUser upserts the user keeping the original creation time
func (s *SQLiteDB) SaveUser(ctx context.Context, telegramID int64, username, firstName string) error {
	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (telegram_id, username, first_name, last_seen, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_seen = excluded.last_seen,
			updated_at = excluded.updated_at`,
		telegramID, username, firstName, now, now, now)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// SaveMessage records a chat message
func (s *SQLiteDB) SaveMessage(ctx context.Context, telegramID int64, text string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO messages (telegram_id, message, created_at) VALUES (?, ?, ?)`,
		telegramID, text, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// CountMessages returns how many messages a user has sent in chat mode
func (s *SQLiteDB) CountMessages(ctx context.Context, telegramID int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE telegram_id = ?`, telegramID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// Close closes the database
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
