package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediabot/internal/ai"
	"mediabot/internal/apperr"
	"mediabot/internal/media"
)

func TestAnalyze_ImageSendsBytes(t *testing.T) {
	var req api.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/img.jpg":
			_, _ = w.Write([]byte{0xff, 0xd8, 0xff, 0xe0})
		case "/api/chat":
			require.NoError(t, jsoniter.NewDecoder(r.Body).Decode(&req))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"model":"llava","message":{"role":"assistant","content":"A cat."},"done":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "", media.NewFetcher(time.Second))
	require.NoError(t, err)

	out, err := c.Analyze(context.Background(), ai.Input{Kind: ai.InputImage, URL: srv.URL + "/img.jpg"}, "describe")

	require.NoError(t, err)
	assert.Equal(t, "A cat.", out)
	assert.Equal(t, "llava", req.Model)
	require.Len(t, req.Messages, 1)
	require.Len(t, req.Messages[0].Images, 1)
	assert.Equal(t, "describe", req.Messages[0].Content)
}

func TestAnalyze_VideoUnsupported(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:1", "", media.NewFetcher(time.Second))
	require.NoError(t, err)

	_, err = c.Analyze(context.Background(), ai.Input{Kind: ai.InputVideo, URL: "http://x"}, "")

	var remote *apperr.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Contains(t, remote.Message, "video")
}
