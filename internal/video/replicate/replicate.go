// Package replicate runs video models through the Replicate predictions API.
package replicate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"mediabot/internal/apperr"
	"mediabot/internal/jobs"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultBaseURL     = "https://api.replicate.com/v1"
	DefaultModel       = "minimax/video-01"
	DefaultMaxAttempts = 60
	DefaultInterval    = 5 * time.Second

	backendName = "replicate"
)

// Client implements jobs.Backend for a Replicate model.
type Client struct {
	baseURL string
	token   string
	model   string
	http    *http.Client
}

// NewClient creates a Replicate client for model ("owner/name").
func NewClient(baseURL, token, model string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		model:   model,
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *Client) Name() string {
	return backendName
}

type predictionInput struct {
	Prompt          string `json:"prompt"`
	FirstFrameImage string `json:"first_frame_image,omitempty"`
}

type prediction struct {
	ID     string              `json:"id"`
	Status string              `json:"status"`
	Output jsoniter.RawMessage `json:"output"`
	Error  interface{}         `json:"error"`
}

type apiError struct {
	Detail string `json:"detail"`
	Title  string `json:"title"`
}

// Submit creates a prediction and returns its id
func (c *Client) Submit(ctx context.Context, params jobs.SubmitParams) (string, error) {
	body, err := json.Marshal(map[string]predictionInput{
		"input": {Prompt: params.Prompt, FirstFrameImage: params.SourceURL},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	var p prediction
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/models/"+c.model+"/predictions", body, &p); err != nil {
		return "", err
	}
	return p.ID, nil
}

// Status fetches the prediction with id taskID
func (c *Client) Status(ctx context.Context, taskID string) (jobs.Status, error) {
	var p prediction
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/predictions/"+url.PathEscape(taskID), nil, &p); err != nil {
		return jobs.Status{}, err
	}

	st := jobs.Status{TaskID: taskID}
	switch p.Status {
	case "succeeded":
		st.State = jobs.StateSucceeded
		st.ResultURL = outputURL(p.Output)
	case "failed":
		st.State = jobs.StateFailed
		st.FailureReason = errorText(p.Error)
	case "canceled":
		st.State = jobs.StateFailed
		st.FailureReason = "prediction was canceled"
	case "processing":
		st.State = jobs.StateRunning
	default:
		st.State = jobs.StateQueued
	}
	return st, nil
}

// outputURL accepts both a single URL and a list of URLs.
func outputURL(raw jsoniter.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}

func errorText(v interface{}) string {
	switch e := v.(type) {
	case nil:
		return ""
	case string:
		return e
	default:
		return fmt.Sprint(e)
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &apperr.RemoteError{Backend: backendName, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &apperr.RemoteError{Backend: backendName, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ae apiError
		_ = json.Unmarshal(raw, &ae)
		msg := ae.Detail
		if msg == "" {
			msg = ae.Title
		}
		if msg == "" {
			msg = fmt.Sprintf("request failed with status %d", resp.StatusCode)
		}
		return &apperr.RemoteError{Backend: backendName, Message: msg}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &apperr.RemoteError{Backend: backendName, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}
