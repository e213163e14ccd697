package ch

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"time"

	"mediabot/internal/models"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Options describes how to reach a ClickHouse server
type Options struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	UseTLS   bool
}

func (o Options) clickhouse() *clickhouse.Options {
	options := &clickhouse.Options{
		Addr:     []string{fmt.Sprintf("%s:%d", o.Host, o.Port)},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: o.Database,
			Username: o.User,
			Password: o.Password,
		},
		DialTimeout: 10 * time.Second,
	}

	// Configure TLS if enabled
	if o.UseTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}
	return options
}

// OpenSQL returns a database/sql handle for tools that need one (goose)
func OpenSQL(o Options) *sql.DB {
	return clickhouse.OpenDB(o.clickhouse())
}

type ClickHouseDB struct {
	conn clickhouse.Conn
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(o Options) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(o.clickhouse())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test the connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Initialize is a no-op - tables are managed via migrations
func (db *ClickHouseDB) Initialize(ctx context.Context) error {
	return nil
}

// GetUser returns the latest known profile of a user.
// users is a ReplacingMergeTree, so rows are folded with argMax until merges catch up.
func (db *ClickHouseDB) GetUser(ctx context.Context, telegramID int64) (*models.User, error) {
	rows, err := db.conn.Query(ctx, `
		SELECT
			telegram_id,
			argMax(username, last_seen),
			argMax(first_name, last_seen),
			max(last_seen),
			min(created_at)
		FROM users
		WHERE telegram_id = ?
		GROUP BY telegram_id`, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		return nil, nil
	}

	var user models.User
	if err := rows.Scan(&user.TelegramID, &user.Username, &user.FirstName, &user.LastSeen, &user.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}

// SaveUser appends a profile row; the newest row wins on read
func (db *ClickHouseDB) SaveUser(ctx context.Context, telegramID int64, username, firstName string) error {
	now := time.Now().UTC()
	err := db.conn.Exec(ctx, `INSERT INTO users (telegram_id, username, first_name, last_seen, created_at) VALUES (?, ?, ?, ?, ?)`,
		telegramID, username, firstName, now, now)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// SaveMessage records a chat message
func (db *ClickHouseDB) SaveMessage(ctx context.Context, telegramID int64, text string) error {
	err := db.conn.Exec(ctx, `INSERT INTO messages (telegram_id, message, created_at) VALUES (?, ?, ?)`,
		telegramID, text, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// CountMessages returns how many messages a user has sent in chat mode
func (db *ClickHouseDB) CountMessages(ctx context.Context, telegramID int64) (int64, error) {
	var count uint64
	row := db.conn.QueryRow(ctx, `SELECT count() FROM messages WHERE telegram_id = ?`, telegramID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return int64(count), nil
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
