package sqlinline

const QSelectSettings = `--sql 0c999b5c-f6dd-46fe-afb6-94d92b0a0845
select key, value
from global_settings
where key = any($1::text[]);
`

const QUpsertSetting = `--sql 1df8c9d2-6135-4a08-b5d6-46cc219ed859
insert into global_settings(key, value, updated_at)
values ($1::text, $2::text, now())
on conflict (key) do update
set value = excluded.value,
    updated_at = now();
`
