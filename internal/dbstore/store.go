package dbstore

import (
	"database/sql"
	"sync"
	"time"

	"github.com/leica1994/dubverse/internal/dubverrs"
	_ "github.com/mattn/go-sqlite3"
)

// Store wraps a single *sql.DB guarded by a process-wide mutex, per spec
// §5's DB access discipline: one mutex, short scopes, never block on
// network I/O while holding it.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path, sets WAL
// mode and foreign_keys=ON, and applies the schema. path is conventionally
// {data_dir}/dubverse.db (spec §6).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, dubverrs.Storage("open", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, dubverrs.Storage("open", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, dubverrs.Storage("migrate", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func strOrEmpty(v sql.NullString) string {
	if v.Valid {
		return v.String
	}
	return ""
}

// -- Jobs ---------------------------------------------------------------

// CreateJob inserts a new job row. Fails with a unique-constraint error
// (wrapped as Storage) if project_dir already has a job — callers that
// want idempotent resume should call GetJobByProjectDir first.
func (s *Store) CreateJob(j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	j.CreatedAt, j.UpdatedAt = now, now
	_, err := s.db.Exec(
		`INSERT INTO jobs (id, project_dir, video_path, subtitle_count, reference_mode, reference_audio_path, tts_plugin_id, status, current_stage, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.ProjectDir, j.VideoPath, j.SubtitleCount, string(j.ReferenceMode),
		nullable(j.ReferenceAudioPath), nullable(j.TtsPluginID), string(j.Status),
		nullable(j.CurrentStage), nullable(j.Error), now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return dubverrs.Storage("create_job", err)
	}
	return nil
}

func scanJob(row interface {
	Scan(dest ...any) error
}) (*Job, error) {
	var j Job
	var refAudio, pluginID, currentStage, errText sql.NullString
	var createdAt, updatedAt int64
	err := row.Scan(&j.ID, &j.ProjectDir, &j.VideoPath, &j.SubtitleCount, &j.ReferenceMode,
		&refAudio, &pluginID, &j.Status, &currentStage, &errText, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	j.ReferenceAudioPath = strOrEmpty(refAudio)
	j.TtsPluginID = strOrEmpty(pluginID)
	j.CurrentStage = strOrEmpty(currentStage)
	j.Error = strOrEmpty(errText)
	j.CreatedAt = time.UnixMilli(createdAt)
	j.UpdatedAt = time.UnixMilli(updatedAt)
	return &j, nil
}

const jobColumns = `id, project_dir, video_path, subtitle_count, reference_mode, reference_audio_path, tts_plugin_id, status, current_stage, error, created_at, updated_at`

// GetJobByProjectDir looks up the (at most one) job for a project directory,
// the idempotency key used by init_dubbing_job (spec §6).
func (s *Store) GetJobByProjectDir(projectDir string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE project_dir = ?`, projectDir)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, dubverrs.Storage("get_job", err)
	}
	return j, nil
}

// GetJob looks up a job by id.
func (s *Store) GetJob(id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, dubverrs.Storage("get_job", err)
	}
	return j, nil
}

// UpdateJobStatus updates status, current_stage and error for a job.
func (s *Store) UpdateJobStatus(id string, status JobStatus, currentStage, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`UPDATE jobs SET status = ?, current_stage = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), nullable(currentStage), nullable(errText), time.Now().UnixMilli(), id,
	)
	if err != nil {
		return dubverrs.Storage("update_job_status", err)
	}
	return nil
}

// DeleteJob deletes a job; cascades to stage_states and tts_items via FK.
func (s *Store) DeleteJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return dubverrs.Storage("delete_job", err)
	}
	return nil
}

// -- Stage states ---------------------------------------------------------

// UpsertStageState writes a StageState row; completed_at is set only when
// status == completed (spec §3 invariant), and progress is forced to 100
// on completion, 0 is left as given otherwise.
func (s *Store) UpsertStageState(st *StageState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var completedAt any
	progress := st.Progress
	if st.Status == StageCompleted {
		progress = 100
		completedAt = time.Now().UnixMilli()
	}
	_, err := s.db.Exec(
		`INSERT INTO stage_states (job_id, stage, status, progress, output_path, error, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(job_id, stage) DO UPDATE SET
		   status = excluded.status,
		   progress = excluded.progress,
		   output_path = excluded.output_path,
		   error = excluded.error,
		   completed_at = excluded.completed_at`,
		st.JobID, string(st.Stage), string(st.Status), progress,
		nullable(st.OutputPath), nullable(st.Error), completedAt,
	)
	if err != nil {
		return dubverrs.Storage("upsert_stage_state", err)
	}
	return nil
}

// GetStageState returns the checkpoint for (jobID, stage), or nil if it has
// never been written.
func (s *Store) GetStageState(jobID string, stage Stage) (*StageState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRow(
		`SELECT job_id, stage, status, progress, output_path, error, completed_at FROM stage_states WHERE job_id = ? AND stage = ?`,
		jobID, string(stage))
	return scanStageState(row)
}

// GetStageStates returns every checkpoint recorded for a job, in no
// particular order; callers sort by the fixed Stages list as needed.
func (s *Store) GetStageStates(jobID string) ([]*StageState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(
		`SELECT job_id, stage, status, progress, output_path, error, completed_at FROM stage_states WHERE job_id = ?`,
		jobID)
	if err != nil {
		return nil, dubverrs.Storage("get_stage_states", err)
	}
	defer rows.Close()

	var out []*StageState
	for rows.Next() {
		st, err := scanStageState(rows)
		if err != nil {
			return nil, dubverrs.Storage("get_stage_states", err)
		}
		out = append(out, st)
	}
	return out, nil
}

func scanStageState(row interface{ Scan(dest ...any) error }) (*StageState, error) {
	var st StageState
	var outputPath, errText sql.NullString
	var completedAt sql.NullInt64
	err := row.Scan(&st.JobID, &st.Stage, &st.Status, &st.Progress, &outputPath, &errText, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st.OutputPath = strOrEmpty(outputPath)
	st.Error = strOrEmpty(errText)
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64)
		st.CompletedAt = &t
	}
	return &st, nil
}

// -- TTS items --------------------------------------------------------------

// BulkUpsertTtsItems inserts or replaces a batch of TtsItem rows, as done
// by init_tts_items (spec §6) from a preprocessed subtitle list.
func (s *Store) BulkUpsertTtsItems(items []*TtsItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return dubverrs.Storage("bulk_upsert_tts_items", err)
	}
	stmt, err := tx.Prepare(
		`INSERT INTO tts_items (job_id, subtitle_index, preprocessed_text, start_ms, end_ms, reference_audio_path, tts_audio_path, tts_duration_ms, status, retry_count, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(job_id, subtitle_index) DO UPDATE SET
		   preprocessed_text = excluded.preprocessed_text,
		   start_ms = excluded.start_ms,
		   end_ms = excluded.end_ms`)
	if err != nil {
		tx.Rollback()
		return dubverrs.Storage("bulk_upsert_tts_items", err)
	}
	defer stmt.Close()

	for _, it := range items {
		var durMs any
		if it.TtsDurationMs != nil {
			durMs = *it.TtsDurationMs
		}
		if _, err := stmt.Exec(it.JobID, it.SubtitleIndex, it.PreprocessedText, it.StartMs, it.EndMs,
			nullable(it.ReferenceAudioPath), nullable(it.TtsAudioPath), durMs, string(it.Status), it.RetryCount, nullable(it.Error)); err != nil {
			tx.Rollback()
			return dubverrs.Storage("bulk_upsert_tts_items", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return dubverrs.Storage("bulk_upsert_tts_items", err)
	}
	return nil
}

const ttsItemColumns = `job_id, subtitle_index, preprocessed_text, start_ms, end_ms, reference_audio_path, tts_audio_path, tts_duration_ms, status, retry_count, error`

func scanTtsItem(row interface{ Scan(dest ...any) error }) (*TtsItem, error) {
	var it TtsItem
	var refAudio, audioPath, errText sql.NullString
	var durMs sql.NullInt64
	err := row.Scan(&it.JobID, &it.SubtitleIndex, &it.PreprocessedText, &it.StartMs, &it.EndMs,
		&refAudio, &audioPath, &durMs, &it.Status, &it.RetryCount, &errText)
	if err != nil {
		return nil, err
	}
	it.ReferenceAudioPath = strOrEmpty(refAudio)
	it.TtsAudioPath = strOrEmpty(audioPath)
	it.Error = strOrEmpty(errText)
	if durMs.Valid {
		v := durMs.Int64
		it.TtsDurationMs = &v
	}
	return &it, nil
}

// GetPendingTtsItems returns items with status != completed, ordered by
// subtitle_index — the TTS Executor's work queue (spec §4.5).
func (s *Store) GetPendingTtsItems(jobID string) ([]*TtsItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(
		`SELECT `+ttsItemColumns+` FROM tts_items WHERE job_id = ? AND status != ? ORDER BY subtitle_index ASC`,
		jobID, string(TtsItemCompleted))
	if err != nil {
		return nil, dubverrs.Storage("get_pending_tts_items", err)
	}
	defer rows.Close()
	return scanTtsItems(rows)
}

// GetAllTtsItems returns every TtsItem for a job, ordered by subtitle_index.
func (s *Store) GetAllTtsItems(jobID string) ([]*TtsItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT `+ttsItemColumns+` FROM tts_items WHERE job_id = ? ORDER BY subtitle_index ASC`, jobID)
	if err != nil {
		return nil, dubverrs.Storage("get_all_tts_items", err)
	}
	defer rows.Close()
	return scanTtsItems(rows)
}

func scanTtsItems(rows *sql.Rows) ([]*TtsItem, error) {
	var out []*TtsItem
	for rows.Next() {
		it, err := scanTtsItem(rows)
		if err != nil {
			return nil, dubverrs.Storage("scan_tts_items", err)
		}
		out = append(out, it)
	}
	return out, nil
}

// UpdateTtsItemCompleted marks an item completed with its audio path and
// duration (spec §3 invariant: completed requires both to be set).
func (s *Store) UpdateTtsItemCompleted(jobID string, subtitleIndex int, audioPath string, durationMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`UPDATE tts_items SET status = ?, tts_audio_path = ?, tts_duration_ms = ?, error = NULL WHERE job_id = ? AND subtitle_index = ?`,
		string(TtsItemCompleted), audioPath, durationMs, jobID, subtitleIndex)
	if err != nil {
		return dubverrs.Storage("update_tts_item_completed", err)
	}
	return nil
}

// UpdateTtsItemFailed marks an item failed and increments retry_count.
func (s *Store) UpdateTtsItemFailed(jobID string, subtitleIndex int, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`UPDATE tts_items SET status = ?, error = ?, retry_count = retry_count + 1 WHERE job_id = ? AND subtitle_index = ?`,
		string(TtsItemFailed), errText, jobID, subtitleIndex)
	if err != nil {
		return dubverrs.Storage("update_tts_item_failed", err)
	}
	return nil
}

// UpdateTtsItemReference sets the reference audio path for an item (the
// Reference stage's output, spec §4.3).
func (s *Store) UpdateTtsItemReference(jobID string, subtitleIndex int, refAudioPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`UPDATE tts_items SET reference_audio_path = ? WHERE job_id = ? AND subtitle_index = ?`,
		refAudioPath, jobID, subtitleIndex)
	if err != nil {
		return dubverrs.Storage("update_tts_item_reference", err)
	}
	return nil
}

// -- Translation progress -----------------------------------------------

// GetTranslationProgress loads the checkpointed (index -> text) map for a
// (project_dir, phase).
func (s *Store) GetTranslationProgress(projectDir string, phase TranslationPhase) (map[int]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(
		`SELECT subtitle_index, result_text FROM translation_progress WHERE project_dir = ? AND phase = ?`,
		projectDir, string(phase))
	if err != nil {
		return nil, dubverrs.Storage("get_translation_progress", err)
	}
	defer rows.Close()

	out := make(map[int]string)
	for rows.Next() {
		var idx int
		var text string
		if err := rows.Scan(&idx, &text); err != nil {
			return nil, dubverrs.Storage("get_translation_progress", err)
		}
		out[idx] = text
	}
	return out, nil
}

// SaveTranslationProgress idempotently replaces the checkpoint for one
// (project_dir, subtitle_index, phase).
func (s *Store) SaveTranslationProgress(projectDir string, subtitleIndex int, phase TranslationPhase, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO translation_progress (project_dir, subtitle_index, phase, result_text)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(project_dir, subtitle_index, phase) DO UPDATE SET result_text = excluded.result_text`,
		projectDir, subtitleIndex, string(phase), text)
	if err != nil {
		return dubverrs.Storage("save_translation_progress", err)
	}
	return nil
}

// ClearTranslationProgress deletes every checkpoint for a project, used by
// clear_translation_progress (spec §6) to force a clean re-run.
func (s *Store) ClearTranslationProgress(projectDir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM translation_progress WHERE project_dir = ?`, projectDir)
	if err != nil {
		return dubverrs.Storage("clear_translation_progress", err)
	}
	return nil
}

// -- AI configs -----------------------------------------------------------

func scanAiConfig(row interface{ Scan(dest ...any) error }) (*AiConfig, error) {
	var c AiConfig
	var isDefault int
	err := row.Scan(&c.ID, &c.BaseURL, &c.APIKey, &c.Model, &c.ConcurrentLimit, &c.RequestTimeout, &c.RateLimit, &isDefault)
	if err != nil {
		return nil, err
	}
	c.IsDefault = isDefault != 0
	return &c, nil
}

const aiConfigColumns = `id, base_url, api_key, model, concurrent_limit, request_timeout, rate_limit, is_default`

// GetAllAiConfigs returns every configured AI endpoint.
func (s *Store) GetAllAiConfigs() ([]*AiConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT ` + aiConfigColumns + ` FROM ai_configs`)
	if err != nil {
		return nil, dubverrs.Storage("get_all_ai_configs", err)
	}
	defer rows.Close()
	var out []*AiConfig
	for rows.Next() {
		c, err := scanAiConfig(rows)
		if err != nil {
			return nil, dubverrs.Storage("get_all_ai_configs", err)
		}
		out = append(out, c)
	}
	return out, nil
}

// GetDefaultAiConfig returns the AiConfig with is_default=1, or nil if none
// is configured (callers should surface ConfigMissing, spec §7).
func (s *Store) GetDefaultAiConfig() (*AiConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRow(`SELECT ` + aiConfigColumns + ` FROM ai_configs WHERE is_default = 1 LIMIT 1`)
	c, err := scanAiConfig(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, dubverrs.Storage("get_default_ai_config", err)
	}
	return c, nil
}

// CreateAiConfig inserts a new AI config row.
func (s *Store) CreateAiConfig(c *AiConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	isDefault := 0
	if c.IsDefault {
		isDefault = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO ai_configs (id, base_url, api_key, model, concurrent_limit, request_timeout, rate_limit, is_default)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.BaseURL, c.APIKey, c.Model, c.ConcurrentLimit, c.RequestTimeout, c.RateLimit, isDefault)
	if err != nil {
		return dubverrs.Storage("create_ai_config", err)
	}
	return nil
}

// UpdateAiConfig replaces the mutable fields of an existing AI config row.
func (s *Store) UpdateAiConfig(c *AiConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`UPDATE ai_configs SET base_url=?, api_key=?, model=?, concurrent_limit=?, request_timeout=?, rate_limit=? WHERE id=?`,
		c.BaseURL, c.APIKey, c.Model, c.ConcurrentLimit, c.RequestTimeout, c.RateLimit, c.ID)
	if err != nil {
		return dubverrs.Storage("update_ai_config", err)
	}
	return nil
}

// DeleteAiConfig removes an AI config row.
func (s *Store) DeleteAiConfig(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM ai_configs WHERE id = ?`, id)
	if err != nil {
		return dubverrs.Storage("delete_ai_config", err)
	}
	return nil
}

// SetDefaultAiConfig clears is_default on every row, then sets it on id.
func (s *Store) SetDefaultAiConfig(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return dubverrs.Storage("set_default_ai_config", err)
	}
	if _, err := tx.Exec(`UPDATE ai_configs SET is_default = 0`); err != nil {
		tx.Rollback()
		return dubverrs.Storage("set_default_ai_config", err)
	}
	if _, err := tx.Exec(`UPDATE ai_configs SET is_default = 1 WHERE id = ?`, id); err != nil {
		tx.Rollback()
		return dubverrs.Storage("set_default_ai_config", err)
	}
	if err := tx.Commit(); err != nil {
		return dubverrs.Storage("set_default_ai_config", err)
	}
	return nil
}

// -- TTS plugins ------------------------------------------------------------

func scanTtsPlugin(row interface{ Scan(dest ...any) error }) (*TtsPlugin, error) {
	var p TtsPlugin
	var requiresRef int
	if err := row.Scan(&p.ID, &p.PluginType, &p.ConfigJSON, &requiresRef); err != nil {
		return nil, err
	}
	p.RequiresRef = requiresRef != 0
	return &p, nil
}

const ttsPluginColumns = `id, plugin_type, config_json, requires_ref`

// GetAllTtsPlugins returns every registered TTS plugin.
func (s *Store) GetAllTtsPlugins() ([]*TtsPlugin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT ` + ttsPluginColumns + ` FROM tts_plugins`)
	if err != nil {
		return nil, dubverrs.Storage("get_all_tts_plugins", err)
	}
	defer rows.Close()
	var out []*TtsPlugin
	for rows.Next() {
		p, err := scanTtsPlugin(rows)
		if err != nil {
			return nil, dubverrs.Storage("get_all_tts_plugins", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// GetTtsPlugin looks up a plugin by id.
func (s *Store) GetTtsPlugin(id string) (*TtsPlugin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRow(`SELECT `+ttsPluginColumns+` FROM tts_plugins WHERE id = ?`, id)
	p, err := scanTtsPlugin(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, dubverrs.Storage("get_tts_plugin", err)
	}
	return p, nil
}

// CreateTtsPlugin inserts a new TTS plugin row.
func (s *Store) CreateTtsPlugin(p *TtsPlugin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	requiresRef := 0
	if p.RequiresRef {
		requiresRef = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO tts_plugins (id, plugin_type, config_json, requires_ref) VALUES (?, ?, ?, ?)`,
		p.ID, string(p.PluginType), p.ConfigJSON, requiresRef)
	if err != nil {
		return dubverrs.Storage("create_tts_plugin", err)
	}
	return nil
}

// UpdateTtsPlugin replaces the mutable fields of an existing plugin row.
func (s *Store) UpdateTtsPlugin(p *TtsPlugin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	requiresRef := 0
	if p.RequiresRef {
		requiresRef = 1
	}
	_, err := s.db.Exec(
		`UPDATE tts_plugins SET plugin_type=?, config_json=?, requires_ref=? WHERE id=?`,
		string(p.PluginType), p.ConfigJSON, requiresRef, p.ID)
	if err != nil {
		return dubverrs.Storage("update_tts_plugin", err)
	}
	return nil
}

// DeleteTtsPlugin removes a TTS plugin row.
func (s *Store) DeleteTtsPlugin(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM tts_plugins WHERE id = ?`, id)
	if err != nil {
		return dubverrs.Storage("delete_tts_plugin", err)
	}
	return nil
}

// -- Workbench tasks (persist-only outer-UI bookkeeping, §10.6) -----------

// CreateWorkbenchTask inserts a new bookkeeping task row.
func (s *Store) CreateWorkbenchTask(t *WorkbenchTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err := s.db.Exec(
		`INSERT INTO workbench_tasks (id, project_dir, kind, status, progress, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectDir, string(t.Kind), t.Status, t.Progress, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return dubverrs.Storage("create_workbench_task", err)
	}
	return nil
}

// UpdateWorkbenchTaskProgress updates status/progress for a task.
func (s *Store) UpdateWorkbenchTaskProgress(id, status string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`UPDATE workbench_tasks SET status=?, progress=?, updated_at=? WHERE id=?`,
		status, progress, time.Now().UnixMilli(), id)
	if err != nil {
		return dubverrs.Storage("update_workbench_task_progress", err)
	}
	return nil
}

func scanWorkbenchTask(row interface{ Scan(dest ...any) error }) (*WorkbenchTask, error) {
	var t WorkbenchTask
	var createdAt, updatedAt int64
	if err := row.Scan(&t.ID, &t.ProjectDir, &t.Kind, &t.Status, &t.Progress, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.CreatedAt = time.UnixMilli(createdAt)
	t.UpdatedAt = time.UnixMilli(updatedAt)
	return &t, nil
}

// ListWorkbenchTasks returns every task for a project directory.
func (s *Store) ListWorkbenchTasks(projectDir string) ([]*WorkbenchTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(
		`SELECT id, project_dir, kind, status, progress, created_at, updated_at FROM workbench_tasks WHERE project_dir = ? ORDER BY created_at ASC`,
		projectDir)
	if err != nil {
		return nil, dubverrs.Storage("list_workbench_tasks", err)
	}
	defer rows.Close()
	var out []*WorkbenchTask
	for rows.Next() {
		t, err := scanWorkbenchTask(rows)
		if err != nil {
			return nil, dubverrs.Storage("list_workbench_tasks", err)
		}
		out = append(out, t)
	}
	return out, nil
}

// DeleteWorkbenchTask removes a bookkeeping task row.
func (s *Store) DeleteWorkbenchTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM workbench_tasks WHERE id = ?`, id)
	if err != nil {
		return dubverrs.Storage("delete_workbench_task", err)
	}
	return nil
}
