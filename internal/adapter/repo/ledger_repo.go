package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tiagomennab/ensaio-fotos-sub001/internal/domain"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/infra"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/sqlinline"
)

// LedgerRepositoryPG appends compensating entries to usage_logs.
type LedgerRepositoryPG struct {
	db    infra.TxExecutor
	newID func() string
}

// NewLedgerRepository creates a ledger repository that runs refunds in one transaction.
func NewLedgerRepository(db infra.TxExecutor) *LedgerRepositoryPG {
	return &LedgerRepositoryPG{db: db, newID: uuid.NewString}
}

// RefundJobCharge reverses the newest debit of a job at most once. The debit
// row is locked, the refund insert is guarded by the unique reversal
// reference and the owner's counter only moves when the insert happened.
func (r *LedgerRepositoryPG) RefundJobCharge(ctx context.Context, req domain.RefundRequest) (domain.RefundOutcome, error) {
	var out domain.RefundOutcome
	err := r.db.InTx(ctx, func(tx infra.SQLExecutor) error {
		var debitID string
		var amount int
		err := tx.QueryRow(ctx, sqlinline.QSelectLatestDebitForJob, req.JobID, req.OwnerID).Scan(&debitID, &amount)
		if infra.IsNoRows(err) {
			out = domain.RefundOutcome{Result: domain.RefundNoCharge}
			return nil
		}
		if err != nil {
			return fmt.Errorf("select debit: %w", err)
		}

		var entryID string
		err = tx.QueryRow(ctx, sqlinline.QInsertRefundEntry,
			r.newID(), req.OwnerID, req.JobID, amount, debitID, req.Reason,
		).Scan(&entryID)
		if infra.IsNoRows(err) {
			out = domain.RefundOutcome{Result: domain.RefundAlreadyReversed, Amount: amount, DebitEntryID: debitID}
			return nil
		}
		if err != nil {
			return fmt.Errorf("insert refund: %w", err)
		}

		if _, err := tx.Exec(ctx, sqlinline.QDecrementCreditsUsed, req.OwnerID, amount); err != nil {
			return fmt.Errorf("decrement credits: %w", err)
		}
		out = domain.RefundOutcome{Result: domain.RefundApplied, Amount: amount, EntryID: entryID, DebitEntryID: debitID}
		return nil
	})
	if err != nil {
		return domain.RefundOutcome{}, fmt.Errorf("refund job %s: %w", req.JobID, err)
	}
	return out, nil
}

var _ domain.LedgerRepository = (*LedgerRepositoryPG)(nil)
