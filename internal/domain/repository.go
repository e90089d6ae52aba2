package domain

import "context"

// GenerationRepository covers generation, upscale, edit and video records.
type GenerationRepository interface {
	GetByID(ctx context.Context, id, ownerID string) (*Job, error)
	FindByExternalID(ctx context.Context, externalJobID string) (*Job, error)
	ApplyUpdate(ctx context.Context, update JobUpdate) (bool, error)
}

// TrainingRepository covers custom model training records.
type TrainingRepository interface {
	GetByID(ctx context.Context, id, ownerID string) (*Job, error)
	FindByExternalID(ctx context.Context, externalJobID string) (*Job, error)
	ApplyUpdate(ctx context.Context, update JobUpdate) (bool, error)
}

// LedgerRepository appends compensating entries to the credit ledger.
type LedgerRepository interface {
	RefundJobCharge(ctx context.Context, req RefundRequest) (RefundOutcome, error)
}
