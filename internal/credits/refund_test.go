package credits

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiagomennab/ensaio-fotos-sub001/internal/domain"
)

// memoryLedger mirrors the SQL refund semantics: newest debit, one reversal
// per debit, counter moved only on insert.
type memoryLedger struct {
	mu          sync.Mutex
	entries     []domain.UsageLogEntry
	creditsUsed map[string]int
	err         error
}

func (m *memoryLedger) RefundJobCharge(_ context.Context, req domain.RefundRequest) (domain.RefundOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.RefundOutcome{}, m.err
	}
	var debit *domain.UsageLogEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.JobID == req.JobID && e.OwnerID == req.OwnerID && e.EntryType == domain.LedgerDebit && e.CreditsDelta > 0 {
			debit = &m.entries[i]
			break
		}
	}
	if debit == nil {
		return domain.RefundOutcome{Result: domain.RefundNoCharge}, nil
	}
	for _, e := range m.entries {
		if e.ReversesEntryID == debit.ID {
			return domain.RefundOutcome{Result: domain.RefundAlreadyReversed, Amount: debit.CreditsDelta, DebitEntryID: debit.ID}, nil
		}
	}
	refund := domain.UsageLogEntry{
		ID:              "refund-" + debit.ID,
		OwnerID:         req.OwnerID,
		JobID:           req.JobID,
		EntryType:       domain.LedgerRefund,
		CreditsDelta:    -debit.CreditsDelta,
		ReversesEntryID: debit.ID,
		Reason:          req.Reason,
	}
	m.entries = append(m.entries, refund)
	m.creditsUsed[req.OwnerID] -= debit.CreditsDelta
	return domain.RefundOutcome{Result: domain.RefundApplied, Amount: debit.CreditsDelta, EntryID: refund.ID, DebitEntryID: debit.ID}, nil
}

func (m *memoryLedger) refunds(jobID string) []domain.UsageLogEntry {
	var out []domain.UsageLogEntry
	for _, e := range m.entries {
		if e.JobID == jobID && e.EntryType == domain.LedgerRefund {
			out = append(out, e)
		}
	}
	return out
}

func newLedger() *memoryLedger {
	return &memoryLedger{
		entries: []domain.UsageLogEntry{
			{ID: "d1", OwnerID: "u1", JobID: "j1", EntryType: domain.LedgerDebit, CreditsDelta: 10},
		},
		creditsUsed: map[string]int{"u1": 50},
	}
}

func TestRefundIsIdempotent(t *testing.T) {
	ledger := newLedger()
	svc := NewService(ledger, zerolog.Nop())
	job := &domain.Job{ID: "j1", OwnerID: "u1", CreditsCharged: 10}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Refund(context.Background(), job, "generation_failed")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	refunds := ledger.refunds("j1")
	require.Len(t, refunds, 1)
	assert.Equal(t, -10, refunds[0].CreditsDelta)
	assert.Equal(t, "d1", refunds[0].ReversesEntryID)
	assert.Equal(t, 40, ledger.creditsUsed["u1"])

	out, err := svc.Refund(context.Background(), job, "generation_failed")
	require.NoError(t, err)
	assert.Equal(t, domain.RefundAlreadyReversed, out.Result)
	assert.False(t, out.Refunded())
}

func TestRefundWithoutDebitIsNoop(t *testing.T) {
	ledger := newLedger()
	svc := NewService(ledger, zerolog.Nop())

	out, err := svc.Refund(context.Background(), &domain.Job{ID: "other", OwnerID: "u1"}, "generation_failed")
	require.NoError(t, err)
	assert.Equal(t, domain.RefundNoCharge, out.Result)
	assert.Equal(t, 50, ledger.creditsUsed["u1"])
}

func TestRefundValidationAndErrors(t *testing.T) {
	ledger := newLedger()
	svc := NewService(ledger, zerolog.Nop())

	_, err := svc.Refund(context.Background(), &domain.Job{ID: "j1"}, "generation_failed")
	require.Error(t, err)

	ledger.err = errors.New("db down")
	_, err = svc.Refund(context.Background(), &domain.Job{ID: "j1", OwnerID: "u1"}, "generation_failed")
	require.Error(t, err)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "upscale_failed", Reason(domain.JobKindUpscale, "failed"))
	assert.Equal(t, "training_cancelled", Reason(domain.JobKindTraining, "cancelled"))
}
