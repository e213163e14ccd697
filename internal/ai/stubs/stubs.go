package stubs

import (
	"context"
	"sync"

	"mediabot/internal/ai"
)

// Call is one recorded backend invocation.
type Call struct {
	Input  ai.Input
	Prompt string
}

// Text is a scripted ai.TextGenerator.
type Text struct {
	mu    sync.Mutex
	Reply string
	Err   error
	calls []Call
}

func (t *Text) Analyze(ctx context.Context, in ai.Input, prompt string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, Call{Input: in, Prompt: prompt})
	if t.Err != nil {
		return "", t.Err
	}
	return t.Reply, nil
}

// Calls returns every recorded Analyze call
func (t *Text) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Call(nil), t.calls...)
}

// Images is a scripted ai.ImageGenerator.
type Images struct {
	mu     sync.Mutex
	Image  []byte
	Err    error
	Prompt string
	Source string
}

func (i *Images) Generate(ctx context.Context, prompt string) ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Prompt = prompt
	if i.Err != nil {
		return nil, i.Err
	}
	return i.Image, nil
}

func (i *Images) Edit(ctx context.Context, imageURL, prompt string) ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Prompt = prompt
	i.Source = imageURL
	if i.Err != nil {
		return nil, i.Err
	}
	return i.Image, nil
}
