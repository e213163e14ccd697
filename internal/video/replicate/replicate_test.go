package replicate

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediabot/internal/apperr"
	"mediabot/internal/jobs"
)

func TestSubmit_CreatesPrediction(t *testing.T) {
	var got map[string]predictionInput
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/minimax/video-01/predictions", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"p1","status":"starting"}`))
	}))
	defer srv.Close()

	id, err := NewClient(srv.URL, "tok", "").Submit(context.Background(),
		jobs.SubmitParams{Prompt: "waves", SourceURL: "https://img/1.jpg"})

	require.NoError(t, err)
	assert.Equal(t, "p1", id)
	assert.Equal(t, "waves", got["input"].Prompt)
	assert.Equal(t, "https://img/1.jpg", got["input"].FirstFrameImage)
}

func TestStatus_MapsPredictionStates(t *testing.T) {
	responses := map[string]string{
		"starting":   `{"id":"starting","status":"starting"}`,
		"processing": `{"id":"processing","status":"processing"}`,
		"single":     `{"id":"single","status":"succeeded","output":"https://cdn/a.mp4"}`,
		"list":       `{"id":"list","status":"succeeded","output":["https://cdn/b.mp4"]}`,
		"failed":     `{"id":"failed","status":"failed","error":"X"}`,
		"canceled":   `{"id":"canceled","status":"canceled"}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/predictions/"):]
		_, _ = w.Write([]byte(responses[id]))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", "")
	ctx := context.Background()

	tests := []struct {
		id     string
		state  jobs.State
		url    string
		reason string
	}{
		{"starting", jobs.StateQueued, "", ""},
		{"processing", jobs.StateRunning, "", ""},
		{"single", jobs.StateSucceeded, "https://cdn/a.mp4", ""},
		{"list", jobs.StateSucceeded, "https://cdn/b.mp4", ""},
		{"failed", jobs.StateFailed, "", "X"},
		{"canceled", jobs.StateFailed, "", "prediction was canceled"},
	}
	for _, tt := range tests {
		st, err := c.Status(ctx, tt.id)
		require.NoError(t, err, tt.id)
		assert.Equal(t, tt.state, st.State, tt.id)
		assert.Equal(t, tt.url, st.ResultURL, tt.id)
		assert.Equal(t, tt.reason, st.FailureReason, tt.id)
	}
}

func TestDo_ErrorStatusCarriesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"title":"Unauthenticated","detail":"Invalid token."}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "bad", "").Submit(context.Background(), jobs.SubmitParams{Prompt: "x"})

	var remote *apperr.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "Invalid token.", remote.Message)
}
