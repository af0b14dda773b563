package sqlinline

const QInsertJob = `--sql 1266c52a-ccca-4b2c-bcca-b03b0a6f8700
insert into jobs (id, status, prompt, song_url, video_model, aspect_ratio, template, character_ref)
values ($1, $2, $3, $4, $5, $6, $7, $8);
`

const QGetJob = `--sql 4f3bd0fd-7888-4459-81e5-0485b6890d6a
select id, status, current_stage, progress, estimated_remaining_seconds, total_cost,
       prompt, song_url, video_model, aspect_ratio, template, character_ref,
       video_url, duration, created_at, updated_at
from jobs
where id = $1;
`

const QUpdateJobStatus = `--sql d6b6910d-6704-4602-a91d-c91e226284d5
update jobs
set status = $2, updated_at = now()
where id = $1;
`

const QSetJobProgress = `--sql 6510c534-cd9b-48e6-99be-b1d214b32733
update jobs
set progress = $2,
    current_stage = $3,
    estimated_remaining_seconds = $4,
    updated_at = now()
where id = $1;
`

const QAddJobCost = `--sql da2cb891-a692-41a2-acdb-e22f888beb44
update jobs
set total_cost = total_cost + $2, updated_at = now()
where id = $1;
`

const QSetJobResult = `--sql 5ab954b3-3405-46a8-a736-01418d7466b5
update jobs
set video_url = $2, duration = $3, updated_at = now()
where id = $1;
`
