// Package apperr defines the failure categories that workflow steps and
// backends report, and renders them into chat-safe text.
package apperr

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrTimeout is returned when a remote job did not reach a terminal state
// within its attempt budget.
var ErrTimeout = errors.New("generation timed out")

// ErrSourceUnavailable is returned when a previously accepted media reference
// can no longer be fetched.
var ErrSourceUnavailable = errors.New("source media is no longer available")

// maxRemoteMessage caps how much backend text is echoed back to a chat.
const maxRemoteMessage = 200

// UserInputError reports malformed or missing input. The user is re-prompted.
type UserInputError struct {
	Message string
}

func (e *UserInputError) Error() string {
	return e.Message
}

// RemoteError reports a failure of an external backend. Message is the
// backend's own explanation when it returned one.
type RemoteError struct {
	Backend string
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Backend, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Backend, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Backend, e.Err)
	default:
		return e.Backend + ": remote failure"
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Remote wraps err as a RemoteError for the named backend. A nil err yields nil.
func Remote(backend string, err error) error {
	if err == nil {
		return nil
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return err
	}
	return &RemoteError{Backend: backend, Err: err}
}

// PersistenceError reports a storage failure. Callers log it and continue.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// UserMessage renders err into text that is safe to show in a chat.
func UserMessage(err error) string {
	var (
		input  *UserInputError
		remote *RemoteError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &input):
		return input.Message
	case errors.Is(err, ErrTimeout):
		return "the service took too long to respond"
	case errors.Is(err, ErrSourceUnavailable):
		return "the image you sent is no longer available, please send it again"
	case errors.As(err, &remote):
		if remote.Message != "" {
			return truncate(strings.TrimSpace(remote.Message), maxRemoteMessage)
		}
		return "the AI service is unavailable right now"
	default:
		return "an unexpected error occurred"
	}
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}
