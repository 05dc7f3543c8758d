package sqlinline

const QListProducts = `--sql 150e80ee-6962-43d1-9064-3a2fd99e2897
select
  id,
  brand,
  name,
  product_url,
  fragrantica_url,
  description,
  image_path,
  styled_image_path,
  video_path,
  parsed_at
from randewoo_products
order by parsed_at desc nulls last, id desc;
`

const QSelectProductByID = `--sql c5564e05-92d3-44f2-b3b2-39de2089921c
select
  id,
  brand,
  name,
  product_url,
  fragrantica_url,
  description,
  image_path,
  styled_image_path,
  video_path,
  parsed_at
from randewoo_products
where id = $1::bigint
limit 1;
`

const QListProductsPendingStyling = `--sql 0bfa68fa-2332-4487-8344-e0c7ea753b98
select
  id,
  brand,
  name,
  product_url,
  fragrantica_url,
  description,
  image_path,
  styled_image_path,
  video_path,
  parsed_at
from randewoo_products
where coalesce(image_path, '') <> ''
  and coalesce(styled_image_path, '') = ''
  and coalesce(brand, '') <> ''
  and coalesce(name, '') <> ''
  and coalesce(description, '') <> ''
  and not (id = any($2::bigint[]))
order by id asc
limit $1::int;
`

const QUpdateProductImagePath = `--sql ba2b9664-6286-41c1-b8d7-44cae6aa1d87
update randewoo_products
set image_path = $2::text
where id = $1::bigint;
`

const QUpdateProductStyledImagePath = `--sql bd166320-74ed-4c56-a4ba-88d945050441
update randewoo_products
set styled_image_path = $2::text
where id = $1::bigint;
`

const QUpdateProductVideoPath = `--sql 5dec45e6-05ab-47cf-b848-b86ba4d8f20c
update randewoo_products
set video_path = $2::text
where id = $1::bigint;
`
