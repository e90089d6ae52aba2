package reconcile

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tiagomennab/ensaio-fotos-sub001/internal/credits"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/domain"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/media"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/storage"
)

// reconcileGeneration handles generation, upscale, edit and video jobs. They
// differ only in storage category, refund reason and event type, all derived
// from the kind.
func (e *Engine) reconcileGeneration(ctx context.Context, job *domain.Job, upd domain.ProviderUpdate, log zerolog.Logger) (Outcome, error) {
	out, update, ok, err := e.begin(job, upd, log)
	if err != nil || !ok {
		return out, err
	}

	var refundReason string
	switch update.ToStatus {
	case domain.JobStatusCompleted:
		res := e.media.Persist(ctx, media.Request{
			SourceURLs: upd.OutputURLs,
			JobID:      job.ID,
			OwnerID:    job.OwnerID,
			Category:   storage.CategoryForKind(job.Kind),
		})
		out.StoredItems, out.FailedItems = len(res.PermanentURLs), len(res.Failures)
		if res.OK() {
			update.ResultURLs = res.PermanentURLs
			update.ThumbnailURLs = res.ThumbnailURLs
			update.ErrorMessage = strPtr("")
		} else {
			log.Error().Err(res.Err()).Str("stage", "media").Msg("no output could be stored, failing job")
			update.ToStatus = domain.JobStatusFailed
			update.ErrorMessage = strPtr(msgMediaFailed)
			refundReason = credits.Reason(job.Kind, "failed")
		}
	case domain.JobStatusFailed:
		msg := upd.Error
		if msg == "" {
			msg = msgProviderFailed
			if upd.Status == domain.ProviderSucceeded {
				msg = msgNoOutput
			}
		}
		update.ErrorMessage = &msg
		refundReason = credits.Reason(job.Kind, "failed")
	case domain.JobStatusCancelled:
		update.ErrorMessage = strPtr(msgCancelled)
		refundReason = credits.Reason(job.Kind, "cancelled")
	}
	if update.ToStatus != domain.JobStatusProcessing {
		e.finish(&update, job, upd)
	}

	applied, err := e.generations.ApplyUpdate(ctx, update)
	if err != nil {
		return out, fmt.Errorf("persist %s transition: %w", job.Kind, err)
	}
	if !applied {
		log.Info().Str("target_status", string(update.ToStatus)).Msg("job changed concurrently, callback skipped")
		out.Skipped = SkipConcurrent
		return out, nil
	}
	out.Applied = true
	out.Status = update.ToStatus
	log.Info().
		Str("from_status", string(update.FromStatus)).
		Str("to_status", string(update.ToStatus)).
		Msg("job transitioned")

	if refundReason != "" {
		e.refund(ctx, job, refundReason, &out, log)
	}

	ev := StatusEvent{
		JobID:         job.ID,
		Kind:          job.Kind,
		Status:        domain.ProviderStatusFor(update.ToStatus, upd.Status),
		JobStatus:     update.ToStatus,
		ResultURLs:    update.ResultURLs,
		ThumbnailURLs: update.ThumbnailURLs,
	}
	if update.ErrorMessage != nil {
		ev.ErrorMessage = *update.ErrorMessage
	}
	e.publish(ctx, job, ev, &out, log)
	return out, nil
}
