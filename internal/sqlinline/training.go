package sqlinline

const trainingColumns = `id, coalesce(training_job_id, ''), user_id, status,
  coalesce(progress, 0), quality_score, coalesce(model_url, ''),
  coalesce(error_message, ''), completed_at, processing_time_ms,
  coalesce(credits_used, 0), created_at, updated_at`

const QSelectTrainingByID = `--sql 584dd7a4-b081-4fef-bf99-71c5d27efd08
select ` + trainingColumns + `
from ai_models
where id = $1::text
  and ($2::text = '' or user_id = $2::text)
limit 1;
`

const QSelectTrainingByExternalID = `--sql 87e0e5e3-c823-4412-a2a7-f033cedad026
select ` + trainingColumns + `
from ai_models
where training_job_id = $1::text
order by created_at desc
limit 1;
`

// QApplyTrainingUpdate guards on the current status. A cancelled model sits in
// DRAFT with completed_at set and must not match.
const QApplyTrainingUpdate = `--sql ea7c6d16-e4dd-4f70-9484-ffaa36ae451d
update ai_models
set status             = $3::text,
    error_message      = case when $4::boolean then nullif($5::text, '') else error_message end,
    completed_at       = coalesce($6::timestamptz, completed_at),
    processing_time_ms = coalesce($7::bigint, processing_time_ms),
    progress           = greatest(coalesce(progress, 0), coalesce($8::int, 0)),
    quality_score      = coalesce($9::int, quality_score),
    model_url          = coalesce($10::text, model_url),
    updated_at         = now()
where id = $1::text
  and status = $2::text
  and not (status = 'DRAFT' and completed_at is not null);
`
