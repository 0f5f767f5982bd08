package httpserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/leica1994/dubverse/internal/dbstore"
	"github.com/leica1994/dubverse/internal/dubbing"
	"github.com/leica1994/dubverse/internal/dubverrs"
	"github.com/leica1994/dubverse/internal/subtitle"
	"github.com/leica1994/dubverse/internal/translate"
	"github.com/leica1994/dubverse/internal/ttsprovider"
)

func (s *Server) registerStageCommands(mux *http.ServeMux) {
	handle(mux, "/commands/run_preprocess", s.runPreprocess)
	handle(mux, "/commands/run_media_separation", s.runMediaSeparation)
	handle(mux, "/commands/run_reference_generation", s.runReferenceGeneration)
	handle(mux, "/commands/run_tts_generation", s.runTtsGeneration)
	handle(mux, "/commands/run_alignment_and_compose", s.runAlignmentAndCompose)
}

func (s *Server) loadJob(jobID string) (*dbstore.Job, error) {
	job, err := s.app.Store.GetJob(jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %q not found", jobID)
	}
	return job, nil
}

func subtitleInputs(items []subtitle.Item) []dubbing.SubtitleInput {
	out := make([]dubbing.SubtitleInput, len(items))
	for i, it := range items {
		out[i] = dubbing.SubtitleInput{Index: it.ID, Text: it.Text, StartMs: it.StartMs, EndMs: it.EndMs}
	}
	return out
}

type preprocessRequest struct {
	JobID    string `json:"job_id"`
	AiConfig string `json:"ai_config_id,omitempty"`
}

// runPreprocess folds init_tts_items into itself (spec §6 note: it has no
// StageState of its own and is seeded as part of Preprocess's completion).
func (s *Server) runPreprocess(req preprocessRequest) (jobResponse, error) {
	job, err := s.loadJob(req.JobID)
	if err != nil {
		return jobResponse{}, err
	}
	cfg, err := s.resolveAiConfig(req.AiConfig)
	if err != nil {
		return jobResponse{}, err
	}
	items, err := subtitle.Load(job.ProjectDir)
	if err != nil {
		return jobResponse{}, err
	}
	client := translate.NewClient(cfg, s.app.Clients)
	if err := s.app.Orchestrator.Preprocess(context.Background(), job, subtitleInputs(items), client, cfg, nil); err != nil {
		return jobResponse{}, err
	}
	return s.getDubbingJob(jobIDRequest{JobID: req.JobID})
}

func (s *Server) runMediaSeparation(req jobIDRequest) (jobResponse, error) {
	job, err := s.loadJob(req.JobID)
	if err != nil {
		return jobResponse{}, err
	}
	if err := s.app.Orchestrator.Media(context.Background(), job, nil); err != nil {
		return jobResponse{}, err
	}
	return s.getDubbingJob(req)
}

func (s *Server) runReferenceGeneration(req jobIDRequest) (jobResponse, error) {
	job, err := s.loadJob(req.JobID)
	if err != nil {
		return jobResponse{}, err
	}
	if err := s.app.Orchestrator.Reference(context.Background(), job, nil); err != nil {
		return jobResponse{}, err
	}
	return s.getDubbingJob(req)
}

type ttsGenerationRequest struct {
	JobID           string  `json:"job_id"`
	TtsPluginID     string  `json:"tts_plugin_id,omitempty"`
	ConcurrentLimit int64   `json:"concurrent_limit,omitempty"`
	RateLimit       float64 `json:"rate_limit,omitempty"`
}

func (s *Server) runTtsGeneration(req ttsGenerationRequest) (jobResponse, error) {
	job, err := s.loadJob(req.JobID)
	if err != nil {
		return jobResponse{}, err
	}
	pluginID := req.TtsPluginID
	if pluginID == "" {
		pluginID = job.TtsPluginID
	}
	plugin, err := s.app.Store.GetTtsPlugin(pluginID)
	if err != nil {
		return jobResponse{}, err
	}
	if plugin == nil {
		return jobResponse{}, fmt.Errorf("tts plugin %q not found", pluginID)
	}
	provider, err := ttsprovider.Build(*plugin, s.app.Clients)
	if err != nil {
		return jobResponse{}, err
	}
	concurrentLimit := req.ConcurrentLimit
	if concurrentLimit <= 0 {
		concurrentLimit = 2
	}
	flag := s.registry.Start("dub:" + job.ID)
	defer s.registry.Finish("dub:" + job.ID)
	if err := s.app.Orchestrator.TTS(context.Background(), job, provider, plugin.ID, concurrentLimit, req.RateLimit, flag); err != nil {
		return jobResponse{}, err
	}
	return s.getDubbingJob(jobIDRequest{JobID: req.JobID})
}

type alignmentRequest struct {
	JobID           string `json:"job_id"`
	TotalDurationMs int64  `json:"total_duration_ms,omitempty"`
}

func (s *Server) runAlignmentAndCompose(req alignmentRequest) (jobResponse, error) {
	job, err := s.loadJob(req.JobID)
	if err != nil {
		return jobResponse{}, err
	}
	if err := s.app.Orchestrator.Alignment(context.Background(), job, req.TotalDurationMs, nil); err != nil {
		return jobResponse{}, err
	}
	if err := s.app.Orchestrator.Compose(context.Background(), job, nil); err != nil {
		return jobResponse{}, err
	}
	return s.getDubbingJob(jobIDRequest{JobID: req.JobID})
}

// resolveAiConfig returns the config with id, or the default config when id
// is empty (spec §7's ConfigMissing when neither exists).
func (s *Server) resolveAiConfig(id string) (dbstore.AiConfig, error) {
	if id != "" {
		configs, err := s.app.Store.GetAllAiConfigs()
		if err != nil {
			return dbstore.AiConfig{}, err
		}
		for _, c := range configs {
			if c.ID == id {
				return *c, nil
			}
		}
		return dbstore.AiConfig{}, dubverrs.ConfigMissing("", fmt.Sprintf("ai config %q not found", id))
	}
	cfg, err := s.app.Store.GetDefaultAiConfig()
	if err != nil {
		return dbstore.AiConfig{}, err
	}
	if cfg == nil {
		return dbstore.AiConfig{}, dubverrs.ConfigMissing("", "no default ai config configured")
	}
	return *cfg, nil
}
