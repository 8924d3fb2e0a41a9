package pgprovider

// Schema is the idempotent bootstrap DDL for every table the Store touches.
const Schema = `
create table if not exists users (
	id            uuid primary key,
	email         text not null unique,
	username      text not null unique,
	full_name     text not null default '',
	password_hash text not null,
	is_active     bool not null default true,
	is_superuser  bool not null default false,
	is_staff      bool not null default false,
	created_at    timestamptz not null default now(),
	updated_at    timestamptz not null default now()
);

create table if not exists websites (
	id                  uuid primary key,
	name                text not null unique,
	domain              text not null unique,
	is_active           bool not null default true,
	auto_register_users bool not null default false,
	created_at          timestamptz not null default now()
);

create table if not exists website_access (
	user_id    uuid not null references users(id) on delete cascade,
	website_id uuid not null references websites(id) on delete cascade,
	created_at timestamptz not null default now(),
	primary key (user_id, website_id)
);

create table if not exists sessions (
	id         text primary key,
	user_id    uuid not null references users(id) on delete cascade,
	website_id uuid references websites(id) on delete cascade,
	ip_address text not null default '',
	user_agent text not null default '',
	created_at timestamptz not null default now()
);
create index if not exists sessions_user_idx on sessions(user_id);

create table if not exists mfa_devices (
	user_id      uuid primary key references users(id) on delete cascade,
	secret       bytea not null,
	is_active    bool not null default false,
	activated_at timestamptz,
	last_used_at timestamptz
);

create table if not exists mfa_backup_codes (
	user_id   uuid not null references mfa_devices(user_id) on delete cascade,
	code_hash bytea not null,
	primary key (user_id, code_hash)
);

create table if not exists permissions (
	id         uuid primary key,
	codename   text not null,
	scope      text not null check (scope in ('global', 'website')),
	website_id uuid references websites(id) on delete cascade,
	check (scope = 'global' or website_id is not null),
	unique (codename, scope, website_id)
);

create table if not exists roles (
	id   uuid primary key,
	name text not null unique
);

create table if not exists role_permissions (
	role_id       uuid not null references roles(id) on delete cascade,
	permission_id uuid not null references permissions(id) on delete cascade,
	primary key (role_id, permission_id)
);

create table if not exists user_roles (
	id          uuid primary key,
	user_id     uuid not null references users(id) on delete cascade,
	role_id     uuid not null references roles(id) on delete cascade,
	scope       text not null check (scope in ('global', 'website')),
	website_id  uuid references websites(id) on delete cascade,
	assigned_at timestamptz not null default now(),
	assigned_by uuid,
	check (scope = 'global' or website_id is not null),
	unique (user_id, role_id, scope, website_id)
);
create index if not exists user_roles_user_idx on user_roles(user_id);

create table if not exists user_permissions (
	user_id       uuid not null references users(id) on delete cascade,
	permission_id uuid not null references permissions(id) on delete cascade,
	scope         text not null check (scope in ('global', 'website')),
	website_id    uuid references websites(id) on delete cascade,
	granted       bool not null default true,
	assigned_at   timestamptz not null default now(),
	assigned_by   uuid,
	expires_at    timestamptz,
	check (scope = 'global' or website_id is not null),
	unique (user_id, permission_id, scope, website_id)
);
create index if not exists user_permissions_user_idx on user_permissions(user_id);
`
