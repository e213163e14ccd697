package stubs

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"mediabot/internal/messaging"
)

// Sent is one recorded outbound message.
type Sent struct {
	Kind      string // text, photo, video, edit, delete, callback
	ChatID    int64
	MessageID int
	Text      string
	Media     messaging.Media
	Options   messaging.SendOptions
}

// Recorder is an in-memory messaging.Messenger for tests.
type Recorder struct {
	mu     sync.Mutex
	sent   []Sent
	nextID int

	// FileURLs maps file ids to resolved URLs; unknown ids fail to resolve.
	FileURLs map[string]string
	// FailSends makes every send return an error.
	FailSends bool
	// FailEdits makes EditMessage return an error.
	FailEdits bool
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{FileURLs: make(map[string]string), nextID: 100}
}

func (r *Recorder) record(s Sent) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSends {
		return 0, fmt.Errorf("send %s: transport down", s.Kind)
	}
	r.nextID++
	if s.MessageID == 0 {
		s.MessageID = r.nextID
	}
	r.sent = append(r.sent, s)
	return s.MessageID, nil
}

func (r *Recorder) SendText(ctx context.Context, chatID int64, text string, opts messaging.SendOptions) (int, error) {
	return r.record(Sent{Kind: "text", ChatID: chatID, Text: text, Options: opts})
}

func (r *Recorder) SendPhoto(ctx context.Context, chatID int64, photo messaging.Media, caption string, opts messaging.SendOptions) error {
	_, err := r.record(Sent{Kind: "photo", ChatID: chatID, Text: caption, Media: photo, Options: opts})
	return err
}

func (r *Recorder) SendVideo(ctx context.Context, chatID int64, video messaging.Media, caption string, opts messaging.SendOptions) error {
	_, err := r.record(Sent{Kind: "video", ChatID: chatID, Text: caption, Media: video, Options: opts})
	return err
}

func (r *Recorder) ResolveFileURL(ctx context.Context, fileID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	url, ok := r.FileURLs[fileID]
	if !ok {
		return "", fmt.Errorf("file %s not found", fileID)
	}
	return url, nil
}

func (r *Recorder) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	r.mu.Lock()
	failEdits := r.FailEdits
	r.mu.Unlock()
	if failEdits {
		return fmt.Errorf("edit %d: message is not modified", messageID)
	}
	_, err := r.record(Sent{Kind: "edit", ChatID: chatID, MessageID: messageID, Text: text})
	return err
}

func (r *Recorder) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	_, err := r.record(Sent{Kind: "delete", ChatID: chatID, MessageID: messageID})
	return err
}

func (r *Recorder) AnswerCallback(ctx context.Context, callbackID, text string) error {
	_, err := r.record(Sent{Kind: "callback", Text: text})
	return err
}

// All returns every recorded message in order
func (r *Recorder) All() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// OfKind returns recorded messages of one kind
func (r *Recorder) OfKind(kind string) []Sent {
	var out []Sent
	for _, s := range r.All() {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// Last returns the most recent message of kind, or false if none
func (r *Recorder) Last(kind string) (Sent, bool) {
	msgs := r.OfKind(kind)
	if len(msgs) == 0 {
		return Sent{}, false
	}
	return msgs[len(msgs)-1], true
}

// Texts returns the bodies of all text messages
func (r *Recorder) Texts() []string {
	var out []string
	for _, s := range r.OfKind("text") {
		out = append(out, s.Text)
	}
	return out
}

// Contains reports whether any text message contains substr
func (r *Recorder) Contains(substr string) bool {
	for _, text := range r.Texts() {
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}

// Reset forgets all recorded messages
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
