// Package media copies provider-hosted outputs into durable storage.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Fetch failure reasons.
var (
	ErrInvalidURL      = errors.New("invalid source url")
	ErrBadStatus       = errors.New("unexpected response status")
	ErrEmptyBody       = errors.New("empty response body")
	ErrTooLarge        = errors.New("media exceeds size limit")
	ErrUnsupportedType = errors.New("unsupported media type")
)

// FetchError describes a failed download.
type FetchError struct {
	URL    string
	Reason error
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Reason)
}

func (e *FetchError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Reason, e.Err}
	}
	return []error{e.Reason}
}

// Policy bounds a single download.
type Policy struct {
	Timeout  time.Duration
	MaxBytes int64
	// AllowedTypes lists accepted media type prefixes such as "image/".
	AllowedTypes []string
}

// ImagePolicy and VideoPolicy are the defaults applied per category.
var (
	ImagePolicy = Policy{Timeout: 30 * time.Second, MaxBytes: 25 << 20, AllowedTypes: []string{"image/"}}
	VideoPolicy = Policy{Timeout: 3 * time.Minute, MaxBytes: 500 << 20, AllowedTypes: []string{"video/"}}
)

// Download is a fetched object held in memory.
type Download struct {
	Data        []byte
	ContentType string
}

// IsImage reports whether the download is a still image.
func (d *Download) IsImage() bool {
	return strings.HasPrefix(d.ContentType, "image/")
}

// Fetcher downloads remote media.
type Fetcher struct {
	client *http.Client
}

// NewFetcher returns a Fetcher. A nil client uses a dedicated default client;
// per-call deadlines come from the Policy.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{client: client}
}

// Fetch downloads rawURL within policy limits. The body is never buffered
// beyond MaxBytes.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, policy Policy) (*Download, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &FetchError{URL: rawURL, Reason: ErrInvalidURL, Err: err}
	}

	if policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: ErrInvalidURL, Err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: ErrBadStatus, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: rawURL, Reason: ErrBadStatus, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if policy.MaxBytes > 0 && resp.ContentLength > policy.MaxBytes {
		return nil, &FetchError{URL: rawURL, Reason: ErrTooLarge, Err: fmt.Errorf("content-length %d", resp.ContentLength)}
	}

	reader := io.Reader(resp.Body)
	if policy.MaxBytes > 0 {
		reader = io.LimitReader(resp.Body, policy.MaxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: ErrBadStatus, Err: err}
	}
	if len(data) == 0 {
		return nil, &FetchError{URL: rawURL, Reason: ErrEmptyBody}
	}
	if policy.MaxBytes > 0 && int64(len(data)) > policy.MaxBytes {
		return nil, &FetchError{URL: rawURL, Reason: ErrTooLarge}
	}

	contentType := detectContentType(resp.Header.Get("Content-Type"), data)
	if !allowedType(contentType, policy.AllowedTypes) {
		return nil, &FetchError{URL: rawURL, Reason: ErrUnsupportedType, Err: fmt.Errorf("content-type %q", contentType)}
	}
	return &Download{Data: data, ContentType: contentType}, nil
}

// detectContentType trusts a specific header and sniffs generic ones.
func detectContentType(header string, data []byte) string {
	mt, _, err := mime.ParseMediaType(header)
	if err == nil && mt != "" && mt != "application/octet-stream" && mt != "binary/octet-stream" {
		return strings.ToLower(mt)
	}
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return strings.ToLower(sniffed)
}

func allowedType(contentType string, allowed []string) bool {
	if len(allowed) == 0 {
		return strings.HasPrefix(contentType, "image/") || strings.HasPrefix(contentType, "video/")
	}
	for _, prefix := range allowed {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}
