// Package session keeps the per-user conversation mode and the partial
// input collected by multi-step flows.
package session

import "time"

// Mode identifies which input the bot expects next from a user.
// An absent session means the user is idle.
type Mode string

const (
	ModeChat            Mode = "chat"
	ModeAnalyzeImage    Mode = "analyze_image"
	ModeAnalyzeVideo    Mode = "analyze_video"
	ModeTranscribeAudio Mode = "transcribe_audio"
	ModeAnalyzeAudio    Mode = "analyze_audio"
	ModeImagePrompt     Mode = "image_prompt"

	ModeEditAwaitingImage  Mode = "edit_awaiting_image"
	ModeEditAwaitingPrompt Mode = "edit_awaiting_prompt"

	ModeTextToVideoPrompt  Mode = "t2v_awaiting_prompt"
	ModeImageToVideoImage  Mode = "i2v_awaiting_image"
	ModeImageToVideoPrompt Mode = "i2v_awaiting_prompt"
	ModeGenerating         Mode = "generating"
)

// Workflow names a multi-step media flow.
type Workflow string

const (
	WorkflowTextToVideo  Workflow = "text_to_video"
	WorkflowImageToVideo Workflow = "image_to_video"
	WorkflowImageEdit    Workflow = "image_edit"
)

// Pending holds the partial input of an in-flight flow.
type Pending struct {
	Workflow  Workflow `json:"workflow"`
	SourceURL string   `json:"source_url,omitempty"`
	Prompt    string   `json:"prompt,omitempty"`
	JobID     string   `json:"job_id,omitempty"`
}

// Session is the conversation state of a single user.
type Session struct {
	UserID    int64     `json:"user_id"`
	Mode      Mode      `json:"mode"`
	Pending   *Pending  `json:"pending,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store holds at most one session per user.
//
// Lock serializes all read-modify-write sequences for one user; callers hold
// it for the duration of an update and release it with the returned func.
type Store interface {
	Get(userID int64) (Session, bool)
	Set(userID int64, mode Mode, pending *Pending)
	Clear(userID int64)
	Lock(userID int64) (unlock func())
	Len() int
	Close() error
}

// RetryMode returns the mode a flow falls back to after its generation
// failed or was interrupted.
func RetryMode(p *Pending) Mode {
	if p == nil {
		return ""
	}
	switch p.Workflow {
	case WorkflowTextToVideo:
		return ModeTextToVideoPrompt
	case WorkflowImageToVideo:
		if p.SourceURL == "" {
			return ModeImageToVideoImage
		}
		return ModeImageToVideoPrompt
	case WorkflowImageEdit:
		if p.SourceURL == "" {
			return ModeEditAwaitingImage
		}
		return ModeEditAwaitingPrompt
	default:
		return ""
	}
}

// clonePending copies p so stored sessions never alias caller memory.
func clonePending(p *Pending) *Pending {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
