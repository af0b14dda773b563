package sqlinline

const QMaxVersion = `--sql cf1d6770-b714-4d90-b77e-d4675df0601a
select coalesce(max(version_number), 0)
from clip_versions
where job_id = $1 and clip_index = $2;
`

const QClearCurrentVersion = `--sql b8e14bc9-93ec-46d0-b048-cebac6087426
update clip_versions
set is_current = false
where job_id = $1 and clip_index = $2 and is_current;
`

const QInsertVersion = `--sql b8c79c35-7366-4803-a5d8-fad6e0f829ff
insert into clip_versions (job_id, clip_index, version_number, video_url, thumbnail_url,
                           prompt, user_instruction, seed, cost, duration, is_current)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, true);
`

const QSetCurrentVersion = `--sql e2c782f8-39f1-4233-abcf-d45440d9d02d
update clip_versions
set is_current = true
where job_id = $1 and clip_index = $2 and version_number = $3;
`

const QGetCurrentVersion = `--sql 7742b70d-1091-4f47-aebb-e7745d93b1fc
select job_id, clip_index, version_number, video_url, thumbnail_url, prompt,
       user_instruction, seed, cost, duration, is_current, created_at
from clip_versions
where job_id = $1 and clip_index = $2 and is_current;
`

const QListVersionsByClip = `--sql 355f6eeb-0b60-46c5-a166-06e0f6965ce0
select job_id, clip_index, version_number, video_url, thumbnail_url, prompt,
       user_instruction, seed, cost, duration, is_current, created_at
from clip_versions
where job_id = $1 and clip_index = $2
order by version_number;
`

const QListCurrentByJob = `--sql 9824865d-7597-42e9-8a47-bb2226592b54
select job_id, clip_index, version_number, video_url, thumbnail_url, prompt,
       user_instruction, seed, cost, duration, is_current, created_at
from clip_versions
where job_id = $1 and is_current
order by clip_index;
`
