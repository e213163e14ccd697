// Package gemini implements the text and image backends on Google Gemini.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"mediabot/internal/ai"
	"mediabot/internal/apperr"
	"mediabot/internal/media"
)

const (
	DefaultTextModel  = "gemini-2.5-flash"
	DefaultImageModel = "gemini-2.5-flash-image"

	backendName = "gemini"
)

// Client is a Gemini API client.
type Client struct {
	client     *genai.Client
	textModel  string
	imageModel string
	fetcher    *media.Fetcher
}

// NewClient creates a Gemini client. Empty model names use the defaults.
func NewClient(ctx context.Context, apiKey, textModel, imageModel string, fetcher *media.Fetcher) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if textModel == "" {
		textModel = DefaultTextModel
	}
	if imageModel == "" {
		imageModel = DefaultImageModel
	}
	return &Client{
		client:     client,
		textModel:  textModel,
		imageModel: imageModel,
		fetcher:    fetcher,
	}, nil
}

// Analyze sends the input with an optional instruction and returns the reply text
func (c *Client) Analyze(ctx context.Context, in ai.Input, prompt string) (string, error) {
	parts, err := c.inputParts(ctx, in, prompt)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.textModel, userContent(parts), nil)
	if err != nil {
		return "", apperr.Remote(backendName, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &apperr.RemoteError{Backend: backendName, Message: "the model returned an empty answer"}
	}
	return text, nil
}

// Generate creates an image from a prompt
func (c *Client) Generate(ctx context.Context, prompt string) ([]byte, error) {
	return c.generateImage(ctx, []*genai.Part{{Text: prompt}})
}

// Edit applies prompt to the image at imageURL
func (c *Client) Edit(ctx context.Context, imageURL, prompt string) ([]byte, error) {
	blob, err := c.download(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	return c.generateImage(ctx, []*genai.Part{{InlineData: blob}, {Text: prompt}})
}

func (c *Client) generateImage(ctx context.Context, parts []*genai.Part) ([]byte, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.imageModel, userContent(parts), &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return nil, apperr.Remote(backendName, err)
	}
	return firstImage(resp)
}

// firstImage returns the first inline image in resp. Text-only answers are
// surfaced as the error message, since the model explains refusals in text.
func firstImage(resp *genai.GenerateContentResponse) ([]byte, error) {
	if resp == nil {
		return nil, &apperr.RemoteError{Backend: backendName, Message: "empty response"}
	}
	var explanation []string
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
			if part.Text != "" {
				explanation = append(explanation, part.Text)
			}
		}
	}
	msg := strings.TrimSpace(strings.Join(explanation, " "))
	if msg == "" {
		msg = "the model did not return an image"
	}
	return nil, &apperr.RemoteError{Backend: backendName, Message: msg}
}

func (c *Client) inputParts(ctx context.Context, in ai.Input, prompt string) ([]*genai.Part, error) {
	if in.Kind == ai.InputText {
		text := in.Text
		if prompt != "" {
			text = prompt + "\n\n" + text
		}
		return []*genai.Part{{Text: text}}, nil
	}

	blob, err := c.download(ctx, in.URL)
	if err != nil {
		return nil, err
	}
	parts := []*genai.Part{{InlineData: blob}}
	instruction := prompt
	if in.Text != "" {
		instruction = strings.TrimSpace(instruction + "\n" + in.Text)
	}
	if instruction != "" {
		parts = append(parts, &genai.Part{Text: instruction})
	}
	return parts, nil
}

func (c *Client) download(ctx context.Context, url string) (*genai.Blob, error) {
	file, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, &apperr.RemoteError{Backend: "telegram", Message: "could not download the file", Err: err}
	}
	return &genai.Blob{MIMEType: file.MIMEType, Data: file.Data}, nil
}

func userContent(parts []*genai.Part) []*genai.Content {
	return []*genai.Content{{Role: "user", Parts: parts}}
}
