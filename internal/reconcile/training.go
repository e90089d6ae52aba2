package reconcile

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tiagomennab/ensaio-fotos-sub001/internal/credits"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/domain"
)

// reconcileTraining handles custom model training. Weights stay where the
// provider put them; only the URL is recorded.
func (e *Engine) reconcileTraining(ctx context.Context, job *domain.Job, upd domain.ProviderUpdate, log zerolog.Logger) (Outcome, error) {
	out, update, ok, err := e.begin(job, upd, log)
	if err != nil || !ok {
		return out, err
	}

	var refundReason string
	switch update.ToStatus {
	case domain.ModelStatusTraining:
		p := trainingProgress(upd.Status, upd.Logs, job.Progress)
		update.Progress = &p
	case domain.ModelStatusReady:
		p := 100
		update.Progress = &p
		update.ModelURL = strPtr(firstURL(upd.OutputURLs))
		update.ErrorMessage = strPtr("")
		e.finish(&update, job, upd)
		score := QualityScore(true, msDuration(update.ProcessingTimeMs), upd.Logs)
		update.QualityScore = &score
	case domain.ModelStatusError:
		msg := upd.Error
		if msg == "" {
			msg = msgTrainingFailed
			if upd.Status == domain.ProviderSucceeded {
				msg = msgTrainingNoOutput
			}
		}
		update.ErrorMessage = &msg
		e.finish(&update, job, upd)
		score := QualityScore(false, msDuration(update.ProcessingTimeMs), upd.Logs)
		update.QualityScore = &score
		refundReason = credits.Reason(job.Kind, "failed")
	case domain.ModelStatusDraft:
		update.ErrorMessage = strPtr(msgCancelled)
		e.finish(&update, job, upd)
		refundReason = credits.Reason(job.Kind, "cancelled")
	}

	applied, err := e.trainings.ApplyUpdate(ctx, update)
	if err != nil {
		return out, fmt.Errorf("persist training transition: %w", err)
	}
	if !applied {
		log.Info().Str("target_status", string(update.ToStatus)).Msg("model changed concurrently, callback skipped")
		out.Skipped = SkipConcurrent
		return out, nil
	}
	out.Applied = true
	out.Status = update.ToStatus
	log.Info().
		Str("from_status", string(update.FromStatus)).
		Str("to_status", string(update.ToStatus)).
		Msg("model transitioned")

	if refundReason != "" {
		e.refund(ctx, job, refundReason, &out, log)
	}

	ev := StatusEvent{
		JobID:        job.ID,
		Kind:         job.Kind,
		Status:       domain.ProviderStatusFor(update.ToStatus, upd.Status),
		JobStatus:    update.ToStatus,
		Progress:     update.Progress,
		QualityScore: update.QualityScore,
	}
	if update.ModelURL != nil {
		ev.ModelURL = *update.ModelURL
	}
	if update.ErrorMessage != nil {
		ev.ErrorMessage = *update.ErrorMessage
	}
	e.publish(ctx, job, ev, &out, log)
	return out, nil
}

func firstURL(urls []string) string {
	for _, u := range urls {
		if u != "" {
			return u
		}
	}
	return ""
}
