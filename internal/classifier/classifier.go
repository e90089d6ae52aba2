// Package classifier resolves a provider job id to the record it belongs to.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tiagomennab/ensaio-fotos-sub001/internal/domain"
)

// HintKind is the record family named by the callback URL.
type HintKind string

const (
	HintGeneration HintKind = "generation"
	HintTraining   HintKind = "training"
)

// Hint carries the identifiers embedded in the callback URL when the job was
// submitted. Every field is optional.
type Hint struct {
	Kind     HintKind
	RecordID string
	OwnerID  string
}

func (h *Hint) usable() bool {
	return h != nil && strings.TrimSpace(h.RecordID) != "" && (h.Kind == HintGeneration || h.Kind == HintTraining)
}

// Result is a classified job.
type Result struct {
	Kind    domain.JobKind
	Job     *domain.Job
	ViaHint bool
}

// Classifier looks records up without side effects.
type Classifier struct {
	generations domain.GenerationRepository
	trainings   domain.TrainingRepository
	logger      zerolog.Logger
}

func New(generations domain.GenerationRepository, trainings domain.TrainingRepository, logger zerolog.Logger) *Classifier {
	return &Classifier{generations: generations, trainings: trainings, logger: logger}
}

// Classify resolves externalJobID. A hint is tried first; when it does not
// lead to a matching record the generation store and then the training store
// are searched by external id. found is false when nothing matches.
func (c *Classifier) Classify(ctx context.Context, hint *Hint, externalJobID string) (Result, bool, error) {
	if hint.usable() {
		res, ok, err := c.byHint(ctx, hint, externalJobID)
		if err != nil || ok {
			return res, ok, err
		}
		c.logger.Debug().
			Str("hint_kind", string(hint.Kind)).
			Str("record_id", hint.RecordID).
			Str("external_job_id", externalJobID).
			Msg("hint did not resolve, falling back to detection")
	}

	if externalJobID == "" {
		return Result{}, false, nil
	}

	job, err := c.generations.FindByExternalID(ctx, externalJobID)
	switch {
	case err == nil:
		return Result{Kind: job.Kind, Job: job}, true, nil
	case !errors.Is(err, domain.ErrNotFound):
		return Result{}, false, fmt.Errorf("lookup generation %s: %w", externalJobID, err)
	}

	job, err = c.trainings.FindByExternalID(ctx, externalJobID)
	switch {
	case err == nil:
		job.Kind = domain.JobKindTraining
		return Result{Kind: domain.JobKindTraining, Job: job}, true, nil
	case !errors.Is(err, domain.ErrNotFound):
		return Result{}, false, fmt.Errorf("lookup model %s: %w", externalJobID, err)
	}
	return Result{}, false, nil
}

func (c *Classifier) byHint(ctx context.Context, hint *Hint, externalJobID string) (Result, bool, error) {
	var (
		job *domain.Job
		err error
	)
	if hint.Kind == HintTraining {
		job, err = c.trainings.GetByID(ctx, hint.RecordID, hint.OwnerID)
	} else {
		job, err = c.generations.GetByID(ctx, hint.RecordID, hint.OwnerID)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("lookup hinted %s %s: %w", hint.Kind, hint.RecordID, err)
	}
	// a record whose provider id differs belongs to another submission
	if job.ExternalJobID != "" && externalJobID != "" && job.ExternalJobID != externalJobID {
		c.logger.Warn().
			Str("record_id", job.ID).
			Str("record_external_id", job.ExternalJobID).
			Str("external_job_id", externalJobID).
			Msg("hinted record belongs to another provider job")
		return Result{}, false, nil
	}
	if hint.Kind == HintTraining {
		job.Kind = domain.JobKindTraining
	}
	return Result{Kind: job.Kind, Job: job, ViaHint: true}, true, nil
}
