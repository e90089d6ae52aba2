package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreUploadAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://localhost:8080/static/")
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}

	ctx := context.Background()
	url, err := store.Upload(ctx, "generated/u1/images/job_0.png", []byte("first"), "image/png")
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if want := "http://localhost:8080/static/generated/u1/images/job_0.png"; url != want {
		t.Fatalf("url = %q, want %q", url, want)
	}

	// a redelivered upload must not overwrite the stored object
	if _, err := store.Upload(ctx, "generated/u1/images/job_0.png", []byte("second"), "image/png"); err != nil {
		t.Fatalf("second Upload returned error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "generated", "u1", "images", "job_0.png"))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "first" {
		t.Fatalf("stored data = %q, want first", data)
	}

	if err := store.Delete(ctx, "generated/u1/images/job_0.png"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if err := store.Delete(ctx, "generated/u1/images/job_0.png"); err != nil {
		t.Fatalf("Delete of missing object returned error: %v", err)
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "generated/u1/images/a.png", want: "generated/u1/images/a.png"},
		{in: "/generated//u1/./a.png", want: "generated/u1/a.png"},
		{in: `generated\u1\a.png`, want: "generated/u1/a.png"},
		{in: "../etc/passwd", wantErr: true},
		{in: "..", wantErr: true},
		{in: "  ", wantErr: true},
	}
	for _, tc := range tests {
		got, err := sanitizeKey(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("sanitizeKey(%q) expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("sanitizeKey(%q) returned error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("sanitizeKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFileStoreServesUploadedObjects(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/media/")
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	if got := store.MountPath(); got != "/media" {
		t.Fatalf("MountPath = %q, want /media", got)
	}
	if _, err := store.Upload(context.Background(), "generated/u1/images/job_0.png", []byte("pixels"), "image/png"); err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}

	tests := []struct {
		target string
		status int
		body   string
	}{
		{"/media/generated/u1/images/job_0.png", http.StatusOK, "pixels"},
		{"/media/generated/u1/images/missing.png", http.StatusNotFound, ""},
		{"/media/generated/u1/images/", http.StatusNotFound, ""},
		{"/media/../filesystem.go", http.StatusNotFound, ""},
	}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		store.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.target, nil))
		if rec.Code != tc.status {
			t.Fatalf("GET %s: status = %d, want %d", tc.target, rec.Code, tc.status)
		}
		if tc.body != "" {
			body, _ := io.ReadAll(rec.Body)
			if string(body) != tc.body {
				t.Fatalf("GET %s: body = %q, want %q", tc.target, body, tc.body)
			}
		}
	}
}

func TestFileStoreMountPathDefault(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	if got := store.MountPath(); got != "/static" {
		t.Fatalf("MountPath = %q, want /static", got)
	}
}
