// Package media downloads user-supplied and generated media files.
package media

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultMaxBytes matches the Telegram bot upload limit.
const DefaultMaxBytes = 50 << 20

// File is a downloaded media file.
type File struct {
	Data     []byte
	MIMEType string
}

// Fetcher downloads files over HTTP with a size cap.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher creates a fetcher whose requests time out after timeout
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxBytes: DefaultMaxBytes,
	}
}

// WithMaxBytes returns a copy of f with a different size cap
func (f *Fetcher) WithMaxBytes(n int64) *Fetcher {
	cp := *f
	cp.maxBytes = n
	return &cp
}

// Fetch downloads url and detects its MIME type
func (f *Fetcher) Fetch(ctx context.Context, url string) (*File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to download file: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("file exceeds %d bytes", f.maxBytes)
	}

	return &File{
		Data:     data,
		MIMEType: DetectMIME(data, resp.Header.Get("Content-Type")),
	}, nil
}

// Probe checks that url still answers with a success status without
// downloading the body. Servers that reject HEAD get a one-byte ranged GET.
func (f *Fetcher) Probe(ctx context.Context, url string) error {
	status, err := f.probe(ctx, http.MethodHead, url)
	if err == nil && status == http.StatusMethodNotAllowed {
		status, err = f.probe(ctx, http.MethodGet, url)
	}
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("source answered with status %d", status)
	}
	return nil
}

func (f *Fetcher) probe(ctx context.Context, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build probe request: %w", err)
	}
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-0")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to probe source: %w", err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	resp.Body.Close()
	return resp.StatusCode, nil
}

// DetectMIME picks a MIME type from the Content-Type header when it is
// specific, falling back to sniffing the payload.
func DetectMIME(data []byte, header string) string {
	if header != "" {
		if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "application/octet-stream" && mt != "binary/octet-stream" {
			return normalize(mt)
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return normalize(mt)
}

func normalize(mt string) string {
	switch {
	case mt == "application/ogg":
		return "audio/ogg"
	case mt == "image/jpg":
		return "image/jpeg"
	case strings.HasPrefix(mt, "video/quicktime"):
		return "video/mov"
	default:
		return mt
	}
}
