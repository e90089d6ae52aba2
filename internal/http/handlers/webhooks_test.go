package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tiagomennab/ensaio-fotos-sub001/internal/classifier"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/domain"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/infra"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/reconcile"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/webhook"
)

type stubEngine struct {
	calls   int
	hint    *classifier.Hint
	update  domain.ProviderUpdate
	outcome reconcile.Outcome
	err     error
	panic   any
}

func (s *stubEngine) Reconcile(_ context.Context, hint *classifier.Hint, upd domain.ProviderUpdate) (reconcile.Outcome, error) {
	s.calls++
	s.hint, s.update = hint, upd
	if s.panic != nil {
		panic(s.panic)
	}
	return s.outcome, s.err
}

const testSecret = "test-webhook-secret"

func newTestApp(t *testing.T, engine Reconciler, secret string) *App {
	t.Helper()
	cfg := &infra.Config{
		WebhookSecret:       secret,
		WebhookMaxSkew:      5 * time.Minute,
		WebhookMaxBodyBytes: 1 << 16,
	}
	app, err := NewApp(cfg, zerolog.Nop(), engine)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return app
}

func signedRequest(t *testing.T, app *App, target string, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	now := time.Now()
	req.Header.Set(webhook.HeaderID, "msg_1")
	req.Header.Set(webhook.HeaderTimestamp, strconv.FormatInt(now.Unix(), 10))
	req.Header.Set(webhook.HeaderSignature, app.Verifier.Sign("msg_1", now, body))
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestProviderWebhookRejectsUnsignedCallbacks(t *testing.T) {
	engine := &stubEngine{}
	app := newTestApp(t, engine, testSecret)
	body := []byte(`{"id":"p1","status":"failed","error":"OOM"}`)

	tests := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{name: "no headers", setup: func(*http.Request) {}},
		{name: "forged signature", setup: func(r *http.Request) {
			r.Header.Set(webhook.HeaderID, "msg_1")
			r.Header.Set(webhook.HeaderTimestamp, strconv.FormatInt(time.Now().Unix(), 10))
			r.Header.Set(webhook.HeaderSignature, "v1,Zm9yZ2Vk")
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/provider", bytes.NewReader(body))
			tc.setup(req)
			rec := httptest.NewRecorder()
			app.ProviderWebhook(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			if got := decode(t, rec)["error"]; got != "Invalid signature" {
				t.Fatalf("error = %v", got)
			}
		})
	}
	if engine.calls != 0 {
		t.Fatalf("engine called %d times for unauthenticated callbacks", engine.calls)
	}
}

func TestProviderWebhookSuccess(t *testing.T) {
	engine := &stubEngine{outcome: reconcile.Outcome{
		Found:   true,
		JobID:   "gen-1",
		Kind:    domain.JobKindGeneration,
		Status:  domain.JobStatusCompleted,
		Applied: true,
	}}
	app := newTestApp(t, engine, testSecret)
	body := []byte(`{"id":"p1","status":"succeeded","output":{"images":["https://provider.test/a.png"]},"metrics":{"total_time":3.5}}`)

	rec := httptest.NewRecorder()
	app.ProviderWebhook(rec, signedRequest(t, app, "/v1/webhooks/provider?type=generation&id=gen-1&userId=user-1", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	resp := decode(t, rec)
	if resp["success"] != true || resp["jobType"] != "generation" {
		t.Fatalf("unexpected response %v", resp)
	}
	if _, ok := resp["processingTime"]; !ok {
		t.Fatal("missing processingTime")
	}
	if engine.hint == nil || engine.hint.Kind != classifier.HintGeneration || engine.hint.RecordID != "gen-1" || engine.hint.OwnerID != "user-1" {
		t.Fatalf("hint = %+v", engine.hint)
	}
	if engine.update.ExternalJobID != "p1" || len(engine.update.OutputURLs) != 1 || engine.update.TotalTime != 3500*time.Millisecond {
		t.Fatalf("update = %+v", engine.update)
	}
}

func TestProviderWebhookUnknownJobAcknowledged(t *testing.T) {
	engine := &stubEngine{outcome: reconcile.Outcome{Found: false}}
	app := newTestApp(t, engine, "")
	body := []byte(`{"id":"p-unknown","status":"succeeded","output":"https://provider.test/a.png"}`)

	rec := httptest.NewRecorder()
	app.ProviderWebhook(rec, httptest.NewRequest(http.MethodPost, "/v1/webhooks/provider", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Job not found") {
		t.Fatalf("body = %s", rec.Body.String())
	}
	if engine.hint != nil {
		t.Fatalf("expected no hint, got %+v", engine.hint)
	}
}

func TestProviderWebhookMalformedBody(t *testing.T) {
	engine := &stubEngine{}
	app := newTestApp(t, engine, "")

	rec := httptest.NewRecorder()
	app.ProviderWebhook(rec, httptest.NewRequest(http.MethodPost, "/v1/webhooks/provider", strings.NewReader(`{"status":"weird"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if engine.calls != 0 {
		t.Fatal("engine should not run for malformed callbacks")
	}
}

func TestProviderWebhookConvertsFailuresTo500(t *testing.T) {
	for name, engine := range map[string]*stubEngine{
		"error": {err: errors.New("database is down")},
		"panic": {panic: "nil map write"},
	} {
		t.Run(name, func(t *testing.T) {
			app := newTestApp(t, engine, "")
			body := []byte(`{"id":"p1","status":"processing"}`)
			rec := httptest.NewRecorder()
			app.ProviderWebhook(rec, httptest.NewRequest(http.MethodPost, "/v1/webhooks/provider", bytes.NewReader(body)))
			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d", rec.Code)
			}
			resp := decode(t, rec)
			if resp["success"] != false || resp["error"] == "" || resp["timestamp"] == "" {
				t.Fatalf("unexpected response %v", resp)
			}
		})
	}
}

func TestHintFromQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/cb?modelId=m-1&userId=u-1", nil)
	h := hintFromQuery(req.URL.Query())
	if h == nil || h.Kind != classifier.HintTraining || h.RecordID != "m-1" || h.OwnerID != "u-1" {
		t.Fatalf("hint = %+v", h)
	}
	if hintFromQuery(httptest.NewRequest(http.MethodPost, "/cb", nil).URL.Query()) != nil {
		t.Fatal("expected nil hint without parameters")
	}
}
