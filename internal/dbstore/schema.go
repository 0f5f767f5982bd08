package dbstore

// schema is applied on every Open via CREATE TABLE IF NOT EXISTS, so it is
// safe to run against an existing database. Composite primary/foreign keys
// here stand in for the DynamoDB PK/SK/GSI pattern the teacher used for its
// (cloud-hosted) job store — see DESIGN.md.
const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id                   TEXT PRIMARY KEY,
	project_dir          TEXT NOT NULL UNIQUE,
	video_path           TEXT NOT NULL,
	subtitle_count       INTEGER NOT NULL DEFAULT 0,
	reference_mode       TEXT NOT NULL,
	reference_audio_path TEXT,
	tts_plugin_id        TEXT,
	status               TEXT NOT NULL,
	current_stage        TEXT,
	error                TEXT,
	created_at           INTEGER NOT NULL,
	updated_at           INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS stage_states (
	job_id       TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	stage        TEXT NOT NULL,
	status       TEXT NOT NULL,
	progress     INTEGER NOT NULL DEFAULT 0,
	output_path  TEXT,
	error        TEXT,
	completed_at INTEGER,
	PRIMARY KEY (job_id, stage)
);

CREATE TABLE IF NOT EXISTS tts_items (
	job_id               TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	subtitle_index       INTEGER NOT NULL,
	preprocessed_text    TEXT NOT NULL,
	start_ms             INTEGER NOT NULL,
	end_ms               INTEGER NOT NULL,
	reference_audio_path TEXT,
	tts_audio_path       TEXT,
	tts_duration_ms      INTEGER,
	status               TEXT NOT NULL,
	retry_count          INTEGER NOT NULL DEFAULT 0,
	error                TEXT,
	PRIMARY KEY (job_id, subtitle_index)
);

CREATE TABLE IF NOT EXISTS translation_progress (
	project_dir    TEXT NOT NULL,
	subtitle_index INTEGER NOT NULL,
	phase          TEXT NOT NULL,
	result_text    TEXT NOT NULL,
	PRIMARY KEY (project_dir, subtitle_index, phase)
);

CREATE TABLE IF NOT EXISTS ai_configs (
	id               TEXT PRIMARY KEY,
	base_url         TEXT NOT NULL,
	api_key          TEXT NOT NULL,
	model            TEXT NOT NULL,
	concurrent_limit INTEGER NOT NULL DEFAULT 1,
	request_timeout  INTEGER NOT NULL DEFAULT 60,
	rate_limit       REAL NOT NULL DEFAULT 0,
	is_default       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS tts_plugins (
	id           TEXT PRIMARY KEY,
	plugin_type  TEXT NOT NULL,
	config_json  TEXT NOT NULL DEFAULT '{}',
	requires_ref INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS workbench_tasks (
	id          TEXT PRIMARY KEY,
	project_dir TEXT NOT NULL,
	kind        TEXT NOT NULL,
	status      TEXT NOT NULL,
	progress    INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stage_states_job ON stage_states(job_id);
CREATE INDEX IF NOT EXISTS idx_tts_items_job ON tts_items(job_id);
CREATE INDEX IF NOT EXISTS idx_translation_progress_project ON translation_progress(project_dir);
CREATE INDEX IF NOT EXISTS idx_workbench_tasks_project ON workbench_tasks(project_dir);
`
