// Package openai implements the text backend on any OpenAI-compatible
// Chat Completions endpoint.
package openai

import (
	"context"
	"encoding/base64"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"mediabot/internal/ai"
	"mediabot/internal/apperr"
	"mediabot/internal/media"
)

const (
	DefaultModel = "gpt-4o-mini"

	backendName = "openai"
)

// Client answers text and image inputs. Audio and video are not supported.
type Client struct {
	client  *openai.Client
	model   string
	fetcher *media.Fetcher
}

// NewClient creates a client. An empty baseURL targets api.openai.com.
func NewClient(apiKey, model, baseURL string, fetcher *media.Fetcher, extra ...option.RequestOption) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	opts = append(opts, extra...)

	client := openai.NewClient(opts...)
	if model == "" {
		model = DefaultModel
	}
	return &Client{client: &client, model: model, fetcher: fetcher}
}

// Analyze sends one user message built from the input
func (c *Client) Analyze(ctx context.Context, in ai.Input, prompt string) (string, error) {
	var msg openai.ChatCompletionMessageParamUnion

	switch in.Kind {
	case ai.InputText:
		text := in.Text
		if prompt != "" {
			text = prompt + "\n\n" + text
		}
		msg = openai.UserMessage(text)

	case ai.InputImage:
		// Telegram file URLs embed the bot token, so the image is inlined.
		file, err := c.fetcher.Fetch(ctx, in.URL)
		if err != nil {
			return "", &apperr.RemoteError{Backend: "telegram", Message: "could not download the file", Err: err}
		}
		dataURL := "data:" + file.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(file.Data)
		instruction := strings.TrimSpace(prompt + "\n" + in.Text)
		msg = openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(instruction),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
		})

	default:
		return "", &apperr.RemoteError{
			Backend: backendName,
			Message: in.Kind.String() + " input is not supported by the configured model",
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{msg},
	})
	if err != nil {
		return "", apperr.Remote(backendName, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &apperr.RemoteError{Backend: backendName, Message: "the model returned an empty answer"}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
