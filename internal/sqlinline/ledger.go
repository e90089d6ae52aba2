package sqlinline

// QSelectLatestDebitForJob locks the newest positive debit of a job so that
// concurrent refunds serialize on it.
const QSelectLatestDebitForJob = `--sql 7d32b7e8-f613-4216-b53b-30aa947de418
select id, credits_delta
from usage_logs
where job_id = $1::text
  and user_id = $2::text
  and entry_type = 'debit'
  and credits_delta > 0
order by created_at desc
limit 1
for update;
`

// QInsertRefundEntry relies on the unique index over reverses_entry_id; an
// existing reversal yields no row.
const QInsertRefundEntry = `--sql c2509766-6acd-40b7-8255-443d6710ccb0
insert into usage_logs(id, user_id, job_id, entry_type, credits_delta, reverses_entry_id, reason, created_at)
values ($1::text, $2::text, $3::text, 'refund', -$4::int, $5::text, $6::text, now())
on conflict (reverses_entry_id) do nothing
returning id;
`

const QDecrementCreditsUsed = `--sql ebd86646-45ec-4fd7-8413-56053d27df54
update users
set credits_used = greatest(credits_used - $2::int, 0),
    updated_at   = now()
where id = $1::text;
`
