package stubs

import (
	"context"
	"sync"
	"time"

	"mediabot/internal/models"
)

// MockDB is an in-memory implementation of the Storage interface for testing
type MockDB struct {
	mu       sync.RWMutex
	users    map[int64]models.User
	messages []models.Message

	// Err, when set, is returned by every operation
	Err error
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		users:    make(map[int64]models.User),
		messages: make([]models.Message, 0),
	}
}

// Initialize is a no-op for the mock database
func (m *MockDB) Initialize(ctx context.Context) error {
	return nil
}

// GetUser returns a copy of the stored user or nil
func (m *MockDB) GetUser(ctx context.Context, telegramID int64) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	user, ok := m.users[telegramID]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// SaveUser inserts or refreshes a user
func (m *MockDB) SaveUser(ctx context.Context, telegramID int64, username, firstName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	now := time.Now()
	user, ok := m.users[telegramID]
	if !ok {
		user = models.User{TelegramID: telegramID, CreatedAt: now}
	}
	user.Username = username
	user.FirstName = firstName
	user.LastSeen = now
	m.users[telegramID] = user
	return nil
}

// SaveMessage appends a message
func (m *MockDB) SaveMessage(ctx context.Context, telegramID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.messages = append(m.messages, models.Message{
		TelegramID: telegramID,
		Text:       text,
		CreatedAt:  time.Now(),
	})
	return nil
}

// CountMessages counts the messages of one user
func (m *MockDB) CountMessages(ctx context.Context, telegramID int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return 0, m.Err
	}
	var count int64
	for _, msg := range m.messages {
		if msg.TelegramID == telegramID {
			count++
		}
	}
	return count, nil
}

// Messages returns every stored message in insertion order
func (m *MockDB) Messages() []models.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Message(nil), m.messages...)
}

// Close is a no-op for the mock database
func (m *MockDB) Close() error {
	return nil
}
