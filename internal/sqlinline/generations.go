package sqlinline

const generationColumns = `id, coalesce(job_id, ''), user_id, kind, status, prompt,
  coalesce(image_urls, '{}'::text[]), coalesce(thumbnail_urls, '{}'::text[]),
  coalesce(error_message, ''), completed_at, processing_time_ms,
  coalesce(credits_used, 0), created_at, updated_at`

const QSelectGenerationByID = `--sql 78345a36-6551-4c85-8055-759adab27387
select ` + generationColumns + `
from generations
where id = $1::text
  and ($2::text = '' or user_id = $2::text)
limit 1;
`

const QSelectGenerationByExternalID = `--sql dcc64cd5-d703-439f-96dd-97fe487e68fc
select ` + generationColumns + `
from generations
where job_id = $1::text
order by created_at desc
limit 1;
`

// QApplyGenerationUpdate is a compare-and-set on the current status; zero
// affected rows means another delivery already moved the job.
const QApplyGenerationUpdate = `--sql baee9fe1-4854-411c-8266-359d76d5c627
update generations
set status             = $3::text,
    image_urls         = coalesce($4::text[], image_urls),
    thumbnail_urls     = coalesce($5::text[], thumbnail_urls),
    error_message      = case when $6::boolean then nullif($7::text, '') else error_message end,
    completed_at       = coalesce($8::timestamptz, completed_at),
    processing_time_ms = coalesce($9::bigint, processing_time_ms),
    updated_at         = now()
where id = $1::text
  and status = $2::text;
`
