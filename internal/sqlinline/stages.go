package sqlinline

// QStartStage creates the stage row lazily and moves it to processing. The
// conflict guard is the single enforcement point of the monotonic-status
// invariant: a completed or failed stage is never pulled back.
const QStartStage = `--sql a4780e5f-a76a-438e-8a7a-293d33d71f04
insert into job_stages (job_id, stage, status)
values ($1, $2, 'processing')
on conflict (job_id, stage) do update
set status = 'processing', error = '', started_at = now(), updated_at = now()
where job_stages.status not in ('completed', 'failed');
`

// QCompleteStage allows completed -> completed so a recomposition can refresh
// the composer metadata without regressing the status.
const QCompleteStage = `--sql 898bbf3d-f000-4f45-a435-9c6e8aadef6a
update job_stages
set status = 'completed', metadata = $3, cost = $4, error = '', updated_at = now()
where job_id = $1 and stage = $2 and status in ('processing', 'completed');
`

const QFailStage = `--sql 2e0839a9-1890-4ba7-9492-f11ca66027ed
update job_stages
set status = 'failed', error = $3, updated_at = now()
where job_id = $1 and stage = $2 and status in ('pending', 'processing');
`

const QGetStage = `--sql 764b40d3-837f-4700-b0ce-ad45e85eb41b
select job_id, stage, status, metadata, error, cost, started_at, updated_at
from job_stages
where job_id = $1 and stage = $2;
`

const QListStages = `--sql 0fe6970d-4174-4172-85ba-93158e428166
select job_id, stage, status, metadata, error, cost, started_at, updated_at
from job_stages
where job_id = $1
order by array_position(
    array['audio_parser','scene_planner','reference_generator','prompt_generator','video_generator','composer'],
    stage);
`
