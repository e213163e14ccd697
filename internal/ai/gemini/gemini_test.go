package gemini

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"mediabot/internal/ai"
	"mediabot/internal/apperr"
	"mediabot/internal/media"
)

func TestFirstImage_ReturnsInlineData(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "Here you go"},
				{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte{1, 2, 3}}},
			}},
		}},
	}

	data, err := firstImage(resp)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestFirstImage_TextOnlyBecomesRemoteMessage(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "I can't draw that."}}},
		}},
	}

	_, err := firstImage(resp)

	var remote *apperr.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "I can't draw that.", remote.Message)
}

func TestInputParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OggS\x00\x02voice"))
	}))
	defer srv.Close()

	c := &Client{fetcher: media.NewFetcher(5 * time.Second)}
	ctx := context.Background()

	textParts, err := c.inputParts(ctx, ai.Input{Kind: ai.InputText, Text: "hello"}, "")
	require.NoError(t, err)
	require.Len(t, textParts, 1)
	assert.Equal(t, "hello", textParts[0].Text)

	audioParts, err := c.inputParts(ctx, ai.Input{Kind: ai.InputAudio, URL: srv.URL}, ai.PromptTranscribeAudio)
	require.NoError(t, err)
	require.Len(t, audioParts, 2)
	assert.Equal(t, "audio/ogg", audioParts[0].InlineData.MIMEType)
	assert.Equal(t, ai.PromptTranscribeAudio, audioParts[1].Text)
}

func TestInputParts_DownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := &Client{fetcher: media.NewFetcher(5 * time.Second)}
	_, err := c.inputParts(context.Background(), ai.Input{Kind: ai.InputImage, URL: srv.URL}, "describe")

	var remote *apperr.RemoteError
	assert.ErrorAs(t, err, &remote)
}
