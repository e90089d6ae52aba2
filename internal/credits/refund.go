// Package credits reverses credit charges of jobs that did not deliver.
package credits

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tiagomennab/ensaio-fotos-sub001/internal/domain"
)

// Service applies idempotent refunds through the ledger repository.
type Service struct {
	ledger domain.LedgerRepository
	logger zerolog.Logger
}

// NewService wires a refund service.
func NewService(ledger domain.LedgerRepository, logger zerolog.Logger) *Service {
	return &Service{ledger: ledger, logger: logger.With().Str("component", "credits").Logger()}
}

// Reason builds the refund reason tag for a job kind and outcome, e.g.
// "upscale_failed".
func Reason(kind domain.JobKind, outcome string) string {
	return strings.ToLower(string(kind)) + "_" + outcome
}

// Refund reverses the newest debit charged for the job. Repeated calls for
// the same job are no-ops once a refund exists. job.CreditsCharged only feeds
// a consistency warning; the ledger debit decides the amount.
func (s *Service) Refund(ctx context.Context, job *domain.Job, reason string) (domain.RefundOutcome, error) {
	if job == nil || job.ID == "" || job.OwnerID == "" {
		return domain.RefundOutcome{}, fmt.Errorf("refund: job id and owner are required")
	}
	log := s.logger.With().
		Str("job_id", job.ID).
		Str("owner_id", job.OwnerID).
		Str("reason", reason).
		Logger()

	out, err := s.ledger.RefundJobCharge(ctx, domain.RefundRequest{JobID: job.ID, OwnerID: job.OwnerID, Reason: reason})
	if err != nil {
		log.Error().Err(err).Str("stage", "refund").Msg("credit refund failed")
		return domain.RefundOutcome{}, err
	}

	switch out.Result {
	case domain.RefundApplied:
		log.Info().Int("amount", out.Amount).Str("entry_id", out.EntryID).Msg("credits refunded")
		if job.CreditsCharged > 0 && job.CreditsCharged != out.Amount {
			log.Warn().Int("job_credits", job.CreditsCharged).Int("ledger_debit", out.Amount).Msg("job charge differs from ledger debit")
		}
	case domain.RefundAlreadyReversed:
		log.Info().Str("debit_entry_id", out.DebitEntryID).Msg("refund already applied")
	case domain.RefundNoCharge:
		log.Warn().Msg("no debit found for job, nothing to refund")
	}
	return out, nil
}
