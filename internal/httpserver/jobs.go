package httpserver

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/leica1994/dubverse/internal/dbstore"
	"github.com/leica1994/dubverse/internal/project"
	"github.com/leica1994/dubverse/internal/subtitle"
)

type initDubbingJobRequest struct {
	VideoPath          string               `json:"video_path"`
	Subtitles          []subtitle.Item      `json:"subtitles"`
	ReferenceMode      dbstore.ReferenceMode `json:"reference_mode"`
	ReferenceAudioPath string               `json:"reference_audio_path,omitempty"`
	TtsPluginID        string               `json:"tts_plugin_id,omitempty"`
}

type jobResponse struct {
	Job    *dbstore.Job          `json:"job"`
	Stages []*dbstore.StageState `json:"stages,omitempty"`
}

func (s *Server) registerJobCommands(mux *http.ServeMux) {
	handle(mux, "/commands/init_dubbing_job", s.initDubbingJob)
	handle(mux, "/commands/get_dubbing_job", s.getDubbingJob)
	handle(mux, "/commands/reset_dubbing_job", s.resetDubbingJob)
	handle(mux, "/commands/cancel_dubbing", s.cancelDubbing)
}

// initDubbingJob creates a project directory, persists subtitles.json/.srt,
// and inserts the Job row (spec §6's `init_dubbing_job`).
func (s *Server) initDubbingJob(req initDubbingJobRequest) (jobResponse, error) {
	if req.VideoPath == "" {
		return jobResponse{}, fmt.Errorf("video_path is required")
	}
	dirs, err := project.New(s.app.DataDir, project.Stem(req.VideoPath))
	if err != nil {
		return jobResponse{}, err
	}
	if err := subtitle.Save(dirs.ProjectDir, req.Subtitles); err != nil {
		return jobResponse{}, err
	}
	if err := project.DiscardCache(dirs.CacheDir); err != nil {
		return jobResponse{}, err
	}

	job := &dbstore.Job{
		ID:                 uuid.NewString(),
		ProjectDir:         dirs.ProjectDir,
		VideoPath:          req.VideoPath,
		SubtitleCount:      len(req.Subtitles),
		ReferenceMode:      req.ReferenceMode,
		ReferenceAudioPath: req.ReferenceAudioPath,
		TtsPluginID:        req.TtsPluginID,
		Status:             dbstore.JobPending,
	}
	if job.ReferenceMode == "" {
		job.ReferenceMode = dbstore.ReferenceClone
	}
	if err := s.app.Store.CreateJob(job); err != nil {
		return jobResponse{}, err
	}
	return jobResponse{Job: job}, nil
}

type jobIDRequest struct {
	JobID string `json:"job_id"`
}

func (s *Server) getDubbingJob(req jobIDRequest) (jobResponse, error) {
	job, err := s.app.Store.GetJob(req.JobID)
	if err != nil {
		return jobResponse{}, err
	}
	if job == nil {
		return jobResponse{}, fmt.Errorf("job %q not found", req.JobID)
	}
	stages, err := s.app.Store.GetStageStates(req.JobID)
	if err != nil {
		return jobResponse{}, err
	}
	return jobResponse{Job: job, Stages: stages}, nil
}

func (s *Server) resetDubbingJob(req jobIDRequest) (jobResponse, error) {
	job, err := s.app.Store.GetJob(req.JobID)
	if err != nil {
		return jobResponse{}, err
	}
	if job == nil {
		return jobResponse{}, fmt.Errorf("job %q not found", req.JobID)
	}
	if err := s.app.Orchestrator.Reset(job); err != nil {
		return jobResponse{}, err
	}
	job, err = s.app.Store.GetJob(req.JobID)
	return jobResponse{Job: job}, err
}

type okResponse struct {
	OK bool `json:"ok"`
}

func (s *Server) cancelDubbing(req jobIDRequest) (okResponse, error) {
	found := s.registry.Cancel("dub:" + req.JobID)
	return okResponse{OK: found}, nil
}
