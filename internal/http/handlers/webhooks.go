package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tiagomennab/ensaio-fotos-sub001/internal/classifier"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/middleware"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/reconcile"
)

type webhookResponse struct {
	Success        bool   `json:"success"`
	JobType        string `json:"jobType,omitempty"`
	ProcessingTime int64  `json:"processingTime"`
	Result         any    `json:"result"`
}

type webhookFailure struct {
	Success        bool   `json:"success"`
	Error          string `json:"error"`
	Timestamp      string `json:"timestamp"`
	ProcessingTime int64  `json:"processingTime"`
}

type notFoundResult struct {
	Message       string `json:"message"`
	ExternalJobID string `json:"externalJobId"`
}

// ProviderWebhook receives inference provider callbacks.
func (a *App) ProviderWebhook(w http.ResponseWriter, r *http.Request) {
	start := a.now()
	log := a.Logger.With().
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Str("handler", "provider_webhook").
		Logger()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxBodyBytes()))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.fail(w, http.StatusRequestEntityTooLarge, "payload too large", start)
			return
		}
		a.fail(w, http.StatusBadRequest, "could not read body", start)
		return
	}

	if a.Verifier != nil {
		if err := a.Verifier.Verify(r.Header, body); err != nil {
			log.Warn().Err(err).Str("remote_ip", r.RemoteAddr).Msg("rejected unauthenticated callback")
			a.json(w, http.StatusUnauthorized, map[string]string{"error": "Invalid signature"})
			return
		}
	} else {
		log.Warn().Msg("WEBHOOK_SECRET is not set: accepting callback without signature verification")
	}

	payload, err := a.Decoder.Decode(body)
	if err != nil {
		log.Warn().Err(err).Msg("malformed callback")
		a.fail(w, http.StatusBadRequest, err.Error(), start)
		return
	}
	log = log.With().Str("external_job_id", payload.ID).Str("provider_status", string(payload.Status)).Logger()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("callback handler panicked")
			a.fail(w, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", rec), start)
		}
	}()

	out, err := a.Engine.Reconcile(r.Context(), hintFromQuery(r.URL.Query()), payload.Update())
	if err != nil {
		log.Error().Err(err).Msg("callback reconciliation failed")
		a.fail(w, http.StatusInternalServerError, err.Error(), start)
		return
	}
	if !out.Found {
		a.json(w, http.StatusOK, webhookResponse{
			Success:        true,
			ProcessingTime: a.elapsed(start),
			Result:         notFoundResult{Message: "Job not found", ExternalJobID: payload.ID},
		})
		return
	}

	log.Info().
		Str("job_id", out.JobID).
		Str("status", string(out.Status)).
		Bool("applied", out.Applied).
		Int64("processing_ms", a.elapsed(start)).
		Msg("callback processed")
	a.json(w, http.StatusOK, webhookResponse{
		Success:        true,
		JobType:        jobType(out),
		ProcessingTime: a.elapsed(start),
		Result:         out,
	})
}

// hintFromQuery reads the identifiers embedded in the callback URL.
func hintFromQuery(q url.Values) *classifier.Hint {
	h := &classifier.Hint{
		Kind:     classifier.HintKind(strings.ToLower(strings.TrimSpace(q.Get("type")))),
		RecordID: strings.TrimSpace(q.Get("id")),
		OwnerID:  strings.TrimSpace(q.Get("userId")),
	}
	if h.RecordID == "" {
		h.RecordID = strings.TrimSpace(q.Get("modelId"))
		if h.RecordID != "" && h.Kind == "" {
			h.Kind = classifier.HintTraining
		}
	}
	if h.Kind == "" && h.RecordID == "" && h.OwnerID == "" {
		return nil
	}
	return h
}

func jobType(out reconcile.Outcome) string {
	return strings.ToLower(string(out.Kind))
}

func (a *App) fail(w http.ResponseWriter, code int, msg string, start time.Time) {
	a.json(w, code, webhookFailure{
		Success:        false,
		Error:          msg,
		Timestamp:      a.now().UTC().Format(time.RFC3339),
		ProcessingTime: a.elapsed(start),
	})
}

func (a *App) elapsed(start time.Time) int64 {
	return a.now().Sub(start).Milliseconds()
}

func (a *App) maxBodyBytes() int64 {
	if a.Config != nil && a.Config.WebhookMaxBodyBytes > 0 {
		return a.Config.WebhookMaxBodyBytes
	}
	return 1 << 20
}
