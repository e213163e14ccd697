package models

import "time"

// User represents a Telegram user who has started the bot
type User struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastSeen   time.Time
	CreatedAt  time.Time
}

// Message represents a chat message sent in Gemini chat mode
type Message struct {
	TelegramID int64
	Text       string
	CreatedAt  time.Time
}

// DisplayName returns the best available human-readable name
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return "friend"
}
