package sqlinline

const QRunsCreateTable = `--sql 96c66cc7-ba90-45da-8e2b-f55031acd87f
create table if not exists prediction_runs (
    id uuid primary key,
    prediction_id text not null default '',
    status text not null,
    input_json jsonb,
    output_json jsonb,
    error_code text not null default '',
    error_message text not null default '',
    polls integer not null default 0,
    created_at timestamptz not null default now(),
    completed_at timestamptz
);
`

const QRunsCreateIndex = `--sql d989ec87-d9eb-4970-906b-3e06a85fea91
create index if not exists prediction_runs_created_at_idx
    on prediction_runs (created_at desc);
`

const QRunInsert = `--sql ffaedc60-1e1e-4e0d-9ebf-f60c9b0e5bd4
insert into prediction_runs (id, prediction_id, status, input_json, created_at)
values ($1, $2, $3, $4::jsonb, $5);
`

const QRunComplete = `--sql 85267785-ce1a-4e30-9df4-01cd5c595609
update prediction_runs
set status = $2,
    prediction_id = coalesce(nullif($3, ''), prediction_id),
    output_json = $4::jsonb,
    error_code = $5,
    error_message = $6,
    polls = $7,
    completed_at = $8
where id = $1;
`

const QRunByID = `--sql 32cdb508-b5f3-4081-87bb-1327e8097caf
select id::text, prediction_id, status,
       coalesce(input_json, 'null'::jsonb), coalesce(output_json, 'null'::jsonb),
       error_code, error_message, polls, created_at, completed_at
from prediction_runs
where id = $1;
`

const QRunsList = `--sql ccd3d204-aedb-4727-8415-6d8a8a87a147
select id::text, prediction_id, status,
       coalesce(input_json, 'null'::jsonb), coalesce(output_json, 'null'::jsonb),
       error_code, error_message, polls, created_at, completed_at
from prediction_runs
order by created_at desc
limit $1 offset $2;
`
