package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tiagomennab/ensaio-fotos-sub001/internal/domain"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/infra"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/sqlinline"
)

// TrainingRepositoryPG implements domain.TrainingRepository over the ai_models table.
type TrainingRepositoryPG struct {
	db infra.SQLExecutor
}

func NewTrainingRepository(db infra.SQLExecutor) *TrainingRepositoryPG {
	return &TrainingRepositoryPG{db: db}
}

func (r *TrainingRepositoryPG) GetByID(ctx context.Context, id, ownerID string) (*domain.Job, error) {
	return scanTraining(r.db.QueryRow(ctx, sqlinline.QSelectTrainingByID, id, ownerID))
}

func (r *TrainingRepositoryPG) FindByExternalID(ctx context.Context, externalJobID string) (*domain.Job, error) {
	return scanTraining(r.db.QueryRow(ctx, sqlinline.QSelectTrainingByExternalID, externalJobID))
}

func (r *TrainingRepositoryPG) ApplyUpdate(ctx context.Context, u domain.JobUpdate) (bool, error) {
	setErr, errMsg := errorArgs(u.ErrorMessage)
	tag, err := r.db.Exec(ctx, sqlinline.QApplyTrainingUpdate,
		u.JobID,
		string(u.FromStatus),
		string(u.ToStatus),
		setErr,
		errMsg,
		u.CompletedAt,
		u.ProcessingTimeMs,
		u.Progress,
		u.QualityScore,
		u.ModelURL,
	)
	if err != nil {
		return false, fmt.Errorf("update model %s: %w", u.JobID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanTraining(row pgx.Row) (*domain.Job, error) {
	job := domain.Job{Kind: domain.JobKindTraining}
	if err := row.Scan(
		&job.ID,
		&job.ExternalJobID,
		&job.OwnerID,
		&job.Status,
		&job.Progress,
		&job.QualityScore,
		&job.ModelURL,
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
	return &job, nil
}

var _ domain.TrainingRepository = (*TrainingRepositoryPG)(nil)
