// Package reconcile applies provider callbacks to job records.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tiagomennab/ensaio-fotos-sub001/internal/classifier"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/domain"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/media"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/realtime"
)

// User-facing messages. Provider and storage internals stay in the logs.
const (
	msgMediaFailed      = "The generated media could not be saved. Your credits were refunded."
	msgNoOutput         = "The provider finished without returning any output."
	msgProviderFailed   = "Generation failed at the provider."
	msgCancelled        = "The job was cancelled."
	msgTrainingFailed   = "Model training failed."
	msgTrainingNoOutput = "Model training finished without producing weights."
)

// Skip reasons reported when a callback changes nothing.
const (
	SkipStale      = "stale_transition"
	SkipConcurrent = "concurrent_update"
)

// Classifier resolves provider job ids.
type Classifier interface {
	Classify(ctx context.Context, hint *classifier.Hint, externalJobID string) (classifier.Result, bool, error)
}

// MediaPersister copies outputs into durable storage.
type MediaPersister interface {
	Persist(ctx context.Context, req media.Request) media.Result
}

// Refunder reverses job charges.
type Refunder interface {
	Refund(ctx context.Context, job *domain.Job, reason string) (domain.RefundOutcome, error)
}

// Options wires an Engine.
type Options struct {
	Classifier  Classifier
	Generations domain.GenerationRepository
	Trainings   domain.TrainingRepository
	Media       MediaPersister
	Credits     Refunder
	Publisher   realtime.Publisher
	Locker      Locker
	Logger      zerolog.Logger
	Now         func() time.Time
}

// Engine is the callback state machine.
type Engine struct {
	classifier  Classifier
	generations domain.GenerationRepository
	trainings   domain.TrainingRepository
	media       MediaPersister
	credits     Refunder
	publisher   realtime.Publisher
	locker      Locker
	logger      zerolog.Logger
	now         func() time.Time
}

func NewEngine(opts Options) *Engine {
	e := &Engine{
		classifier:  opts.Classifier,
		generations: opts.Generations,
		trainings:   opts.Trainings,
		media:       opts.Media,
		credits:     opts.Credits,
		publisher:   opts.Publisher,
		locker:      opts.Locker,
		logger:      opts.Logger.With().Str("component", "reconcile").Logger(),
		now:         opts.Now,
	}
	if e.publisher == nil {
		e.publisher = realtime.Nop{}
	}
	if e.locker == nil {
		e.locker = NewLocalLocker()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Outcome reports what one callback did.
type Outcome struct {
	Found          bool                  `json:"found"`
	JobID          string                `json:"jobId,omitempty"`
	OwnerID        string                `json:"-"`
	Kind           domain.JobKind        `json:"kind,omitempty"`
	PreviousStatus domain.JobStatus      `json:"previousStatus,omitempty"`
	Status         domain.JobStatus      `json:"status,omitempty"`
	Applied        bool                  `json:"applied"`
	Skipped        string                `json:"skipped,omitempty"`
	StoredItems    int                   `json:"storedItems,omitempty"`
	FailedItems    int                   `json:"failedItems,omitempty"`
	Refund         *domain.RefundOutcome `json:"refund,omitempty"`
	RefundError    string                `json:"refundError,omitempty"`
	Published      bool                  `json:"published"`
}

// StatusEvent is the realtime payload of a status change.
type StatusEvent struct {
	JobID         string                `json:"jobId"`
	Kind          domain.JobKind        `json:"kind"`
	Status        domain.ProviderStatus `json:"status"`
	JobStatus     domain.JobStatus      `json:"jobStatus"`
	ResultURLs    []string              `json:"resultUrls,omitempty"`
	ThumbnailURLs []string              `json:"thumbnailUrls,omitempty"`
	ErrorMessage  string                `json:"errorMessage,omitempty"`
	Progress      *int                  `json:"progress,omitempty"`
	QualityScore  *int                  `json:"qualityScore,omitempty"`
	ModelURL      string                `json:"modelUrl,omitempty"`
}

// Reconcile applies one provider callback. An unknown job is not an error;
// Outcome.Found is false. Refund and publish failures are logged and reported
// in the outcome but never fail the call.
func (e *Engine) Reconcile(ctx context.Context, hint *classifier.Hint, upd domain.ProviderUpdate) (Outcome, error) {
	if !upd.Status.Valid() {
		return Outcome{}, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, upd.Status)
	}
	if upd.ExternalJobID == "" {
		return Outcome{}, fmt.Errorf("external job id is required")
	}

	unlock, err := e.locker.Lock(ctx, "reconcile:"+upd.ExternalJobID)
	if err != nil {
		return Outcome{}, err
	}
	defer unlock()

	res, found, err := e.classifier.Classify(ctx, hint, upd.ExternalJobID)
	if err != nil {
		return Outcome{}, fmt.Errorf("classify %s: %w", upd.ExternalJobID, err)
	}
	if !found {
		e.logger.Info().
			Str("external_job_id", upd.ExternalJobID).
			Str("provider_status", string(upd.Status)).
			Msg("callback for unknown job")
		return Outcome{Found: false}, nil
	}

	job := res.Job
	job.Kind = res.Kind
	log := e.logger.With().
		Str("job_id", job.ID).
		Str("owner_id", job.OwnerID).
		Str("external_job_id", upd.ExternalJobID).
		Str("kind", string(res.Kind)).
		Bool("via_hint", res.ViaHint).
		Logger()

	if res.Kind.IsTraining() {
		return e.reconcileTraining(ctx, job, upd, log)
	}
	return e.reconcileGeneration(ctx, job, upd, log)
}

// begin checks monotonicity and seeds the outcome and update.
func (e *Engine) begin(job *domain.Job, upd domain.ProviderUpdate, log zerolog.Logger) (Outcome, domain.JobUpdate, bool, error) {
	out := Outcome{
		Found:          true,
		JobID:          job.ID,
		OwnerID:        job.OwnerID,
		Kind:           job.Kind,
		PreviousStatus: job.Status,
		Status:         job.Status,
	}
	target, err := domain.TargetStatus(job.Kind, upd.Status, upd.HasOutput())
	if err != nil {
		return out, domain.JobUpdate{}, false, err
	}
	if !job.CanTransition(target) {
		log.Info().
			Str("current_status", string(job.Status)).
			Str("target_status", string(target)).
			Str("provider_status", string(upd.Status)).
			Msg("ignoring stale or duplicate callback")
		out.Skipped = SkipStale
		return out, domain.JobUpdate{}, false, nil
	}
	return out, domain.JobUpdate{JobID: job.ID, FromStatus: job.Status, ToStatus: target}, true, nil
}

// finish stamps completion data on terminal updates.
func (e *Engine) finish(update *domain.JobUpdate, job *domain.Job, upd domain.ProviderUpdate) {
	now := e.now().UTC()
	update.CompletedAt = &now
	ms := processingTime(job, upd, now).Milliseconds()
	update.ProcessingTimeMs = &ms
}

func processingTime(job *domain.Job, upd domain.ProviderUpdate, now time.Time) time.Duration {
	if upd.TotalTime > 0 {
		return upd.TotalTime
	}
	if !job.CreatedAt.IsZero() && now.After(job.CreatedAt) {
		return now.Sub(job.CreatedAt)
	}
	return 0
}

func (e *Engine) refund(ctx context.Context, job *domain.Job, reason string, out *Outcome, log zerolog.Logger) {
	if e.credits == nil {
		log.Warn().Str("reason", reason).Msg("no credit service configured, refund skipped")
		out.RefundError = domain.ErrLedgerUnavailable.Error()
		return
	}
	res, err := e.credits.Refund(ctx, job, reason)
	if err != nil {
		log.Error().Err(err).Str("stage", "refund").Str("reason", reason).Msg("refund failed, needs operator attention")
		out.RefundError = err.Error()
		return
	}
	out.Refund = &res
}

func (e *Engine) publish(ctx context.Context, job *domain.Job, ev StatusEvent, out *Outcome, log zerolog.Logger) {
	if err := e.publisher.Publish(ctx, job.OwnerID, eventType(job.Kind), ev); err != nil {
		log.Warn().Err(err).Str("stage", "publish").Msg("realtime publish failed")
		return
	}
	out.Published = true
}

func eventType(kind domain.JobKind) string {
	switch kind {
	case domain.JobKindUpscale:
		return realtime.EventUpscaleStatus
	case domain.JobKindEdit:
		return realtime.EventEditStatus
	case domain.JobKindVideo:
		return realtime.EventVideoStatus
	case domain.JobKindTraining:
		return realtime.EventModelStatus
	}
	return realtime.EventGenerationStatus
}

func strPtr(s string) *string { return &s }
