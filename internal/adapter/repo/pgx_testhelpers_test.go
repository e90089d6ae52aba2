package repo

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tiagomennab/ensaio-fotos-sub001/internal/infra"
)

type simpleRow struct {
	scan func(dest ...any) error
}

func newValuesRow(values ...any) simpleRow {
	return simpleRow{scan: func(dest ...any) error {
		if len(dest) != len(values) {
			return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
		}
		for i, v := range values {
			if v == nil {
				continue
			}
			reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
		}
		return nil
	}}
}

func (r simpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type execCall struct {
	query string
	args  []any
}

// stubExecutor answers queries by the constant they were issued with.
type stubExecutor struct {
	rows    map[string]func(args []any) pgx.Row
	tags    map[string]string
	execs   []execCall
	queries []execCall
	txCalls int
	txErr   error
}

func newStubExecutor() *stubExecutor {
	return &stubExecutor{rows: map[string]func([]any) pgx.Row{}, tags: map[string]string{}}
}

func (s *stubExecutor) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execs = append(s.execs, execCall{query: query, args: args})
	if tag, ok := s.tags[query]; ok {
		return pgconn.NewCommandTag(tag), nil
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (s *stubExecutor) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	s.queries = append(s.queries, execCall{query: query, args: args})
	if fn, ok := s.rows[query]; ok {
		return fn(args)
	}
	return simpleRow{}
}

func (s *stubExecutor) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (s *stubExecutor) InTx(_ context.Context, fn func(tx infra.SQLExecutor) error) error {
	s.txCalls++
	if s.txErr != nil {
		return s.txErr
	}
	return fn(s)
}

func (s *stubExecutor) execCount(query string) int {
	n := 0
	for _, c := range s.execs {
		if c.query == query {
			n++
		}
	}
	return n
}

func markerOf(query string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(query), "\n")
	return line
}
