package storage

import (
	"context"

	"mediabot/internal/models"
)

// Storage defines the interface for user and message persistence
type Storage interface {
	// User operations

	// GetUser returns nil, nil when the user has never been saved
	GetUser(ctx context.Context, telegramID int64) (*models.User, error)
	// SaveUser inserts the user or refreshes username, first name and last seen
	SaveUser(ctx context.Context, telegramID int64, username, firstName string) error

	// Message operations
	SaveMessage(ctx context.Context, telegramID int64, text string) error
	CountMessages(ctx context.Context, telegramID int64) (int64, error)

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}
