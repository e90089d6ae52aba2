package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tiagomennab/ensaio-fotos-sub001/internal/domain"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/infra"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/sqlinline"
)

// GenerationRepositoryPG implements domain.GenerationRepository backed by PostgreSQL.
type GenerationRepositoryPG struct {
	db infra.SQLExecutor
}

// NewGenerationRepository creates a new GenerationRepositoryPG.
func NewGenerationRepository(db infra.SQLExecutor) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{db: db}
}

// GetByID fetches a generation record, optionally scoped to its owner.
func (r *GenerationRepositoryPG) GetByID(ctx context.Context, id, ownerID string) (*domain.Job, error) {
	return scanGeneration(r.db.QueryRow(ctx, sqlinline.QSelectGenerationByID, id, ownerID))
}

// FindByExternalID fetches the newest generation record for a provider job id.
func (r *GenerationRepositoryPG) FindByExternalID(ctx context.Context, externalJobID string) (*domain.Job, error) {
	return scanGeneration(r.db.QueryRow(ctx, sqlinline.QSelectGenerationByExternalID, externalJobID))
}

// ApplyUpdate writes update when the record still holds update.FromStatus.
func (r *GenerationRepositoryPG) ApplyUpdate(ctx context.Context, u domain.JobUpdate) (bool, error) {
	setErr, errMsg := errorArgs(u.ErrorMessage)
	tag, err := r.db.Exec(ctx, sqlinline.QApplyGenerationUpdate,
		u.JobID,
		string(u.FromStatus),
		string(u.ToStatus),
		u.ResultURLs,
		u.ThumbnailURLs,
		setErr,
		errMsg,
		u.CompletedAt,
		u.ProcessingTimeMs,
	)
	if err != nil {
		return false, fmt.Errorf("update generation %s: %w", u.JobID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanGeneration(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	if err := row.Scan(
		&job.ID,
		&job.ExternalJobID,
		&job.OwnerID,
		&job.Kind,
		&job.Status,
		&job.Prompt,
		&job.ResultURLs,
		&job.ThumbnailURLs,
		&job.ErrorMessage,
		&job.CompletedAt,
		&job.ProcessingTimeMs,
		&job.CreditsCharged,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.Kind = domain.ResolveGenerationKind(job.Kind, job.Prompt)
	return &job, nil
}

func errorArgs(msg *string) (bool, string) {
	if msg == nil {
		return false, ""
	}
	return true, *msg
}

var _ domain.GenerationRepository = (*GenerationRepositoryPG)(nil)
