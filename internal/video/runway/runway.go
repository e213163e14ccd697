// Package runway talks to the Runway video model hosted by the Kie API.
package runway

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
	DefaultBaseURL     = "https://api.kie.ai/api/v1/runway"
	DefaultMaxAttempts = 40
	DefaultInterval    = 30 * time.Second

	backendName = "runway"
)

// Client implements jobs.Backend for Runway.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a Runway client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *Client) Name() string {
	return backendName
}

type generateRequest struct {
	Prompt      string `json:"prompt"`
	Duration    int    `json:"duration"`
	Quality     string `json:"quality"`
	AspectRatio string `json:"aspectRatio"`
	WaterMark   string `json:"waterMark"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

type envelope struct {
	Code int                 `json:"code"`
	Msg  string              `json:"msg"`
	Data jsoniter.RawMessage `json:"data"`
}

type generateData struct {
	TaskID string `json:"taskId"`
}

type recordData struct {
	TaskID    string `json:"taskId"`
	State     string `json:"state"`
	FailMsg   string `json:"failMsg"`
	VideoInfo *struct {
		VideoURL string `json:"videoUrl"`
	} `json:"videoInfo"`
}

// Submit starts a 5 second 720p generation. SourceURL, when set, becomes
// the first frame.
func (c *Client) Submit(ctx context.Context, params jobs.SubmitParams) (string, error) {
	body, err := json.Marshal(generateRequest{
		Prompt:      params.Prompt,
		Duration:    5,
		Quality:     "720p",
		AspectRatio: "16:9",
		WaterMark:   "",
		ImageURL:    params.SourceURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	var data generateData
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/generate", body, &data); err != nil {
		return "", err
	}
	return data.TaskID, nil
}

// Status fetches the record of taskID
func (c *Client) Status(ctx context.Context, taskID string) (jobs.Status, error) {
	endpoint := c.baseURL + "/record-detail?taskId=" + url.QueryEscape(taskID)

	var data recordData
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &data); err != nil {
		return jobs.Status{}, err
	}

	st := jobs.Status{TaskID: taskID, State: mapState(data.State), FailureReason: data.FailMsg}
	if data.VideoInfo != nil {
		st.ResultURL = data.VideoInfo.VideoURL
	}
	return st, nil
}

func mapState(s string) jobs.State {
	switch s {
	case "success":
		return jobs.StateSucceeded
	case "fail":
		return jobs.StateFailed
	case "generating":
		return jobs.StateRunning
	default:
		return jobs.StateQueued
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
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
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

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &apperr.RemoteError{
			Backend: backendName,
			Err:     fmt.Errorf("unexpected response (status %d): %w", resp.StatusCode, err),
		}
	}
	if resp.StatusCode != http.StatusOK || env.Code != http.StatusOK {
		msg := env.Msg
		if msg == "" {
			msg = fmt.Sprintf("request failed with code %d", env.Code)
		}
		return &apperr.RemoteError{Backend: backendName, Message: msg}
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return &apperr.RemoteError{Backend: backendName, Err: fmt.Errorf("failed to decode data: %w", err)}
	}
	return nil
}
