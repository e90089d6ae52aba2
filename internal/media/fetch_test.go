package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestFetcherValidatesResponses(t *testing.T) {
	img := pngBytes(t, 4, 4)
	mux := http.NewServeMux()
	mux.HandleFunc("/ok.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(img)
	})
	mux.HandleFunc("/sniffed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(img)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
	})
	mux.HandleFunc("/html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(bytes.Repeat([]byte{1}, 2048))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewFetcher(srv.Client())
	policy := Policy{Timeout: 5 * time.Second, MaxBytes: 1024, AllowedTypes: []string{"image/"}}
	ctx := context.Background()

	dl, err := f.Fetch(ctx, srv.URL+"/ok.png", policy)
	require.NoError(t, err)
	assert.Equal(t, "image/png", dl.ContentType)
	assert.True(t, dl.IsImage())

	dl, err = f.Fetch(ctx, srv.URL+"/sniffed", policy)
	require.NoError(t, err)
	assert.Equal(t, "image/png", dl.ContentType)

	cases := map[string]error{
		"/missing": ErrBadStatus,
		"/empty":   ErrEmptyBody,
		"/html":    ErrUnsupportedType,
		"/big":     ErrTooLarge,
	}
	for path, want := range cases {
		_, err := f.Fetch(ctx, srv.URL+path, policy)
		assert.ErrorIs(t, err, want, path)
		var fe *FetchError
		assert.True(t, errors.As(err, &fe), path)
	}

	_, err = f.Fetch(ctx, srv.URL+"/slow", Policy{Timeout: 50 * time.Millisecond, AllowedTypes: []string{"image/"}})
	assert.ErrorIs(t, err, ErrBadStatus)

	_, err = f.Fetch(ctx, "ftp://example.com/a.png", policy)
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestCoverRect(t *testing.T) {
	tests := []struct {
		name string
		src  image.Rectangle
		want image.Rectangle
	}{
		{"landscape trims sides", image.Rect(0, 0, 600, 300), image.Rect(150, 0, 450, 300)},
		{"portrait trims top and bottom", image.Rect(0, 0, 300, 900), image.Rect(0, 300, 300, 600)},
		{"square untouched", image.Rect(0, 0, 500, 500), image.Rect(0, 0, 500, 500)},
		{"offset origin", image.Rect(10, 10, 210, 110), image.Rect(60, 10, 160, 110)},
		{"empty", image.Rectangle{}, image.Rectangle{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, coverRect(tc.src, 300, 300))
		})
	}
}
