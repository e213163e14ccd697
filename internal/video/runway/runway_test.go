package runway

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

func TestSubmit_SendsGenerationRequest(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"code":200,"msg":"success","data":{"taskId":"abc"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	taskID, err := c.Submit(context.Background(), jobs.SubmitParams{Prompt: "a cat", SourceURL: "https://img/1.jpg"})

	require.NoError(t, err)
	assert.Equal(t, "abc", taskID)
	assert.Equal(t, "a cat", got.Prompt)
	assert.Equal(t, 5, got.Duration)
	assert.Equal(t, "720p", got.Quality)
	assert.Equal(t, "16:9", got.AspectRatio)
	assert.Equal(t, "https://img/1.jpg", got.ImageURL)
}

func TestSubmit_RejectedCodeIsRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":402,"msg":"Insufficient credits","data":null}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "key").Submit(context.Background(), jobs.SubmitParams{Prompt: "a cat"})

	var remote *apperr.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "Insufficient credits", remote.Message)
}

func TestStatus_MapsStates(t *testing.T) {
	responses := map[string]string{
		"t-wait":  `{"code":200,"data":{"taskId":"t-wait","state":"wait"}}`,
		"t-queue": `{"code":200,"data":{"taskId":"t-queue","state":"queueing"}}`,
		"t-gen":   `{"code":200,"data":{"taskId":"t-gen","state":"generating"}}`,
		"t-ok":    `{"code":200,"data":{"taskId":"t-ok","state":"success","videoInfo":{"videoUrl":"https://cdn/v.mp4"}}}`,
		"t-fail":  `{"code":200,"data":{"taskId":"t-fail","state":"fail","failMsg":"X"}}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/record-detail", r.URL.Path)
		_, _ = w.Write([]byte(responses[r.URL.Query().Get("taskId")]))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "key")
	ctx := context.Background()

	tests := []struct {
		taskID string
		state  jobs.State
	}{
		{"t-wait", jobs.StateQueued},
		{"t-queue", jobs.StateQueued},
		{"t-gen", jobs.StateRunning},
		{"t-ok", jobs.StateSucceeded},
		{"t-fail", jobs.StateFailed},
	}
	for _, tt := range tests {
		st, err := c.Status(ctx, tt.taskID)
		require.NoError(t, err, tt.taskID)
		assert.Equal(t, tt.state, st.State, tt.taskID)
	}

	ok, _ := c.Status(ctx, "t-ok")
	assert.Equal(t, "https://cdn/v.mp4", ok.ResultURL)
	failed, _ := c.Status(ctx, "t-fail")
	assert.Equal(t, "X", failed.FailureReason)
}

func TestStatus_GarbageIsRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "key").Status(context.Background(), "t")

	var remote *apperr.RemoteError
	assert.ErrorAs(t, err, &remote)
}
