package wiki

const schemaVersion = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pages (
	id INTEGER PRIMARY KEY,
	uid TEXT UNIQUE NOT NULL,
	title TEXT NOT NULL,
	slug TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	created_by TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	updated_by TEXT NOT NULL
);

-- One row per navigation address a page occupies. slug is a denormalized
-- copy of pages.slug so the (tag, slug) uniqueness constraint needs no join;
-- the page store keeps it in sync on every slug change.
CREATE TABLE IF NOT EXISTS page_locations (
	id INTEGER PRIMARY KEY,
	page_id INTEGER NOT NULL,
	tag TEXT NOT NULL,
	slug TEXT NOT NULL,
	sort_order INTEGER,
	UNIQUE(tag, slug),
	UNIQUE(page_id, tag)
);

CREATE INDEX IF NOT EXISTS page_locations_by_page ON page_locations(page_id);
CREATE INDEX IF NOT EXISTS page_locations_by_tag ON page_locations(tag);

CREATE TABLE IF NOT EXISTS tag_orders (
	tag TEXT PRIMARY KEY,
	sort_order INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS page_history (
	id INTEGER PRIMARY KEY,
	page_id INTEGER NOT NULL,
	title TEXT NOT NULL,
	slug TEXT NOT NULL,
	content TEXT NOT NULL,
	edited_at INTEGER NOT NULL,
	edited_by TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS page_history_by_page ON page_history(page_id);

-- Directed link edges between records. Kinds are the closed wikilink enum;
-- page sources and targets are location ids, not page ids, because one page
-- can be linked at several distinct paths.
CREATE TABLE IF NOT EXISTS record_refs (
	id INTEGER PRIMARY KEY,
	src_kind TEXT NOT NULL,
	src_id INTEGER NOT NULL,
	dst_kind TEXT NOT NULL,
	dst_id INTEGER NOT NULL,
	UNIQUE(src_kind, src_id, dst_kind, dst_id)
);

CREATE INDEX IF NOT EXISTS record_refs_by_target ON record_refs(dst_kind, dst_id);
CREATE INDEX IF NOT EXISTS record_refs_by_source ON record_refs(src_kind, src_id);

CREATE TABLE IF NOT EXISTS machine_models (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	slug TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS machines (
	id INTEGER PRIMARY KEY,
	model_id INTEGER,
	name TEXT NOT NULL,
	slug TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS problem_reports (
	id INTEGER PRIMARY KEY,
	machine_id INTEGER,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	created_by TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS log_entries (
	id INTEGER PRIMARY KEY,
	machine_id INTEGER,
	content TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	created_by TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS part_requests (
	id INTEGER PRIMARY KEY,
	machine_id INTEGER,
	content TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	created_by TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS part_request_updates (
	id INTEGER PRIMARY KEY,
	part_request_id INTEGER NOT NULL,
	content TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	created_by TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS part_request_updates_by_request ON part_request_updates(part_request_id);
`
