// Package ollama implements the text backend on a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"mediabot/internal/ai"
	"mediabot/internal/apperr"
	"mediabot/internal/media"
)

const (
	DefaultModel = "llava"

	backendName = "ollama"
)

// Client answers text and image inputs with a multimodal Ollama model.
type Client struct {
	client  *api.Client
	model   string
	fetcher *media.Fetcher
}

// NewClient creates a client for host. An empty host falls back to
// OLLAMA_HOST and the Ollama defaults.
func NewClient(host, model string, fetcher *media.Fetcher) (*Client, error) {
	var (
		client *api.Client
		err    error
	)
	if host != "" {
		u, perr := url.Parse(host)
		if perr != nil {
			return nil, fmt.Errorf("invalid Ollama host: %w", perr)
		}
		client = api.NewClient(u, &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)})
	} else {
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{client: client, model: model, fetcher: fetcher}, nil
}

// Analyze runs a single non-streaming chat turn
func (c *Client) Analyze(ctx context.Context, in ai.Input, prompt string) (string, error) {
	msg := api.Message{Role: "user"}

	switch in.Kind {
	case ai.InputText:
		msg.Content = in.Text
		if prompt != "" {
			msg.Content = prompt + "\n\n" + in.Text
		}
	case ai.InputImage:
		file, err := c.fetcher.Fetch(ctx, in.URL)
		if err != nil {
			return "", &apperr.RemoteError{Backend: "telegram", Message: "could not download the file", Err: err}
		}
		msg.Content = strings.TrimSpace(prompt + "\n" + in.Text)
		msg.Images = []api.ImageData{file.Data}
	default:
		return "", &apperr.RemoteError{
			Backend: backendName,
			Message: in.Kind.String() + " input is not supported by the configured model",
		}
	}

	stream := false
	var out strings.Builder
	err := c.client.Chat(ctx, &api.ChatRequest{
		Model:    c.model,
		Messages: []api.Message{msg},
		Stream:   &stream,
	}, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", apperr.Remote(backendName, err)
	}

	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", &apperr.RemoteError{Backend: backendName, Message: "the model returned an empty answer"}
	}
	return text, nil
}
