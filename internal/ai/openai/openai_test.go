package openai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediabot/internal/ai"
	"mediabot/internal/apperr"
	"mediabot/internal/media"
)

const completion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "  hello there  "}}]
}`

func TestAnalyze_Text(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completion))
	}))
	defer srv.Close()

	c := NewClient("key", "", srv.URL+"/v1/", media.NewFetcher(time.Second), option.WithMaxRetries(0))
	out, err := c.Analyze(context.Background(), ai.Input{Kind: ai.InputText, Text: "hi"}, "")

	require.NoError(t, err)
	assert.Equal(t, "hello there", out)
	assert.Contains(t, body, `"gpt-4o-mini"`)
	assert.Contains(t, body, `"hi"`)
}

func TestAnalyze_ImageIsInlined(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/file.png" {
			_, _ = w.Write([]byte("\x89PNG\r\n\x1a\n\x00\x00"))
			return
		}
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completion))
	}))
	defer srv.Close()

	c := NewClient("key", "", srv.URL+"/v1/", media.NewFetcher(time.Second), option.WithMaxRetries(0))
	_, err := c.Analyze(context.Background(), ai.Input{Kind: ai.InputImage, URL: srv.URL + "/file.png"}, "describe")

	require.NoError(t, err)
	assert.Contains(t, body, "data:image/png;base64,")
	assert.NotContains(t, body, "/file.png")
}

func TestAnalyze_AudioUnsupported(t *testing.T) {
	c := NewClient("key", "", "http://127.0.0.1:1/", media.NewFetcher(time.Second))
	_, err := c.Analyze(context.Background(), ai.Input{Kind: ai.InputAudio, URL: "http://x"}, "")

	var remote *apperr.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Contains(t, remote.Message, "audio")
}
