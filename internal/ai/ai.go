// Package ai declares the synchronous generative backends the bot talks to.
package ai

import "context"

// InputKind tells a text backend what the input is.
type InputKind int

const (
	InputText InputKind = iota
	InputImage
	InputAudio
	InputVideo
)

func (k InputKind) String() string {
	switch k {
	case InputImage:
		return "image"
	case InputAudio:
		return "audio"
	case InputVideo:
		return "video"
	default:
		return "text"
	}
}

// Input is either literal text or a reference to a downloadable media file.
type Input struct {
	Kind InputKind
	Text string
	URL  string
}

// TextGenerator answers a prompt about an input with text.
type TextGenerator interface {
	Analyze(ctx context.Context, in Input, prompt string) (string, error)
}

// ImageGenerator produces images.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
	Edit(ctx context.Context, imageURL, prompt string) ([]byte, error)
}

// Default instructions for each analysis mode.
const (
	PromptChat            = ""
	PromptDescribeImage   = "Describe this image in detail. If it contains text, transcribe it."
	PromptDescribeVideo   = "Describe what happens in this video."
	PromptTranscribeAudio = "Transcribe this audio recording verbatim."
	PromptAnalyzeAudio    = "Analyze this audio recording: summarize its content, tone and any notable details."
)
