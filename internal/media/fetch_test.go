package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestFetch_DetectsMIMEFromBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(pngHeader)
	}))
	defer srv.Close()

	f, err := NewFetcher(5*time.Second).Fetch(context.Background(), srv.URL+"/file.png")

	require.NoError(t, err)
	assert.Equal(t, "image/png", f.MIMEType)
	assert.Equal(t, pngHeader, f.Data)
}

func TestFetch_PrefersSpecificHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("not really a video"))
	}))
	defer srv.Close()

	f, err := NewFetcher(5*time.Second).Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, "video/mp4", f.MIMEType)
}

func TestFetch_RejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := NewFetcher(5*time.Second).Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestFetch_EnforcesSizeCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	_, err := NewFetcher(5*time.Second).WithMaxBytes(32).Fetch(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "exceeds")
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/nohead":
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			w.WriteHeader(http.StatusPartialContent)
		default:
			w.WriteHeader(http.StatusGone)
		}
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)
	assert.NoError(t, f.Probe(context.Background(), srv.URL+"/ok"))
	assert.NoError(t, f.Probe(context.Background(), srv.URL+"/nohead"))
	assert.Error(t, f.Probe(context.Background(), srv.URL+"/expired"))
}

func TestDetectMIME_NormalizesOgg(t *testing.T) {
	assert.Equal(t, "audio/ogg", DetectMIME([]byte("OggS\x00\x02"), ""))
	assert.Equal(t, "image/jpeg", DetectMIME(nil, "image/jpg"))
}
