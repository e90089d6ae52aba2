package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidStatus     = errors.New("invalid provider status")
	ErrInvalidCategory   = errors.New("invalid storage category")
	ErrInvalidKey        = errors.New("invalid storage key")
	ErrNoOutput          = errors.New("provider returned no output")
	ErrNothingPersisted  = errors.New("no media item could be persisted")
	ErrLedgerUnavailable = errors.New("ledger unavailable")
)
