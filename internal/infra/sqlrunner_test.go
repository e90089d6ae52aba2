package infra

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestExtractMarker(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantMarker string
		wantErr    bool
	}{
		{
			name:       "valid marker",
			query:      "--sql 0b9a4c1e-7d53-4a39-9d43-2f55b1d3f4a0\nselect 1;",
			wantMarker: "0b9a4c1e-7d53-4a39-9d43-2f55b1d3f4a0",
		},
		{
			name:       "leading whitespace",
			query:      "\n   --sql 0b9a4c1e-7d53-4a39-9d43-2f55b1d3f4a0\nselect 1;",
			wantMarker: "0b9a4c1e-7d53-4a39-9d43-2f55b1d3f4a0",
		},
		{name: "missing marker", query: "select 1;", wantErr: true},
		{name: "uppercase uuid", query: "--sql 0B9A4C1E-7D53-4A39-9D43-2F55B1D3F4A0\nselect 1;", wantErr: true},
		{name: "empty", query: "   ", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			marker, body, err := extractMarker(tc.query)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got marker %q", marker)
				}
				return
			}
			if err != nil {
				t.Fatalf("extractMarker returned error: %v", err)
			}
			if marker != tc.wantMarker {
				t.Fatalf("marker = %q, want %q", marker, tc.wantMarker)
			}
			if strings.Contains(body, "--sql") {
				t.Fatalf("body still contains marker: %q", body)
			}
		})
	}
}

func TestSQLRunnerRejectsUnmarkedQueries(t *testing.T) {
	r := &SQLRunner{Logger: zerolog.Nop()}
	if _, err := r.Exec(context.Background(), "update users set credits_used = 0"); err == nil {
		t.Fatalf("expected Exec to reject an unmarked query")
	}
	var n int
	if err := r.QueryRow(context.Background(), "select 1").Scan(&n); err == nil {
		t.Fatalf("expected QueryRow to reject an unmarked query")
	}
	if _, err := r.Query(context.Background(), "select 1"); err == nil {
		t.Fatalf("expected Query to reject an unmarked query")
	}
}

func TestSQLRunnerInTxWithoutPool(t *testing.T) {
	r := &SQLRunner{Logger: zerolog.Nop()}
	called := false
	err := r.InTx(context.Background(), func(SQLExecutor) error {
		called = true
		return nil
	})
	if err == nil || called {
		t.Fatalf("expected InTx to fail before running fn, err=%v called=%v", err, called)
	}
}
