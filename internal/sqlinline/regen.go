package sqlinline

const QInsertRegenEvent = `--sql cba499c8-8619-4465-8ade-d177aa59de3e
insert into regeneration_events (id, job_id, clip_index, instruction, matched_template_id, cost, success, error)
values ($1, $2, $3, $4, $5, $6, $7, $8);
`

const QRegenTotalCost = `--sql ebd5fc5b-9de0-431f-8cfc-73ff519adb32
select coalesce(sum(cost), 0)
from regeneration_events
where job_id = $1 and success;
`

const QRegenStats = `--sql 0ac8d712-d502-4f66-a82a-8e3fa64bd031
select count(*),
       count(*) filter (where success),
       coalesce(avg(cost) filter (where success), 0),
       count(*) filter (where matched_template_id <> '')
from regeneration_events;
`

const QRegenCommonInstruction = `--sql 5d383927-a415-4d9e-a629-ad4c5db58844
select instruction
from regeneration_events
group by instruction
order by count(*) desc, instruction
limit 1;
`

const QAcquireRegenLock = `--sql 45688a83-c737-4e81-bb64-a1c9c5a76549
insert into regeneration_locks (job_id, clip_index, state, instruction)
values ($1, $2, $3, $4)
on conflict (job_id, clip_index) do nothing;
`

const QUpdateRegenLockState = `--sql ad0dbc3d-9727-4897-99a4-7f4acfb9da59
update regeneration_locks
set state = $3
where job_id = $1 and clip_index = $2;
`

const QReleaseRegenLock = `--sql 8d657f69-4b6b-4b02-9b0a-f0f7ffcf20b4
delete from regeneration_locks
where job_id = $1 and clip_index = $2;
`

const QListRegenLocks = `--sql 8da894a1-3326-47d7-aa82-faea7367c842
select job_id, clip_index, state, instruction
from regeneration_locks
where job_id = $1
order by clip_index;
`
