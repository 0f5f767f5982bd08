package httpserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/leica1994/dubverse/internal/subtitle"
	"github.com/leica1994/dubverse/internal/translate"
)

func (s *Server) registerTranslateCommands(mux *http.ServeMux) {
	handle(mux, "/commands/start_translation", s.startTranslation)
	handle(mux, "/commands/cancel_translation", s.cancelTranslation)
	handle(mux, "/commands/clear_translation_progress", s.clearTranslationProgress)
}

type startTranslationRequest struct {
	ProjectDir     string          `json:"project_dir"`
	TargetLanguage string          `json:"target_language"`
	Correction     bool            `json:"correction"`
	Optimization   bool            `json:"optimization"`
	PromptType     string          `json:"prompt_type,omitempty"`
	BatchSize      int             `json:"batch_size,omitempty"`
	AiConfigID     string          `json:"ai_config_id,omitempty"`
}

type translationResult struct {
	Results map[int]string `json:"results"`
}

// startTranslation loads subtitles.json from project_dir, runs the
// translation engine, and returns the (index -> text) results in the
// response. It writes no subtitle files; the per-phase checkpoints in the
// store are the only state it persists.
func (s *Server) startTranslation(req startTranslationRequest) (translationResult, error) {
	if req.ProjectDir == "" {
		return translationResult{}, fmt.Errorf("project_dir is required")
	}
	cfg, err := s.resolveAiConfig(req.AiConfigID)
	if err != nil {
		return translationResult{}, err
	}
	items, err := subtitle.Load(req.ProjectDir)
	if err != nil {
		return translationResult{}, err
	}
	subs := make([]translate.Subtitle, len(items))
	for i, it := range items {
		subs[i] = translate.Subtitle{Index: it.ID, Text: it.Text}
	}

	flag := s.registry.Start("translate:" + req.ProjectDir)
	defer s.registry.Finish("translate:" + req.ProjectDir)

	opts := translate.Options{
		ProjectDir:     req.ProjectDir,
		TargetLanguage: req.TargetLanguage,
		Correction:     req.Correction,
		Optimization:   req.Optimization,
		PromptType:     req.PromptType,
		BatchSize:      req.BatchSize,
		Knobs:          translate.Knobs{TargetLanguage: req.TargetLanguage},
	}
	results, err := s.app.Engine.Run(context.Background(), subs, opts, cfg, flag)
	if err != nil {
		return translationResult{}, err
	}
	return translationResult{Results: results}, nil
}

type projectDirRequest struct {
	ProjectDir string `json:"project_dir"`
}

func (s *Server) cancelTranslation(req projectDirRequest) (okResponse, error) {
	found := s.registry.Cancel("translate:" + req.ProjectDir)
	return okResponse{OK: found}, nil
}

func (s *Server) clearTranslationProgress(req projectDirRequest) (okResponse, error) {
	if err := s.app.Store.ClearTranslationProgress(req.ProjectDir); err != nil {
		return okResponse{}, err
	}
	return okResponse{OK: true}, nil
}
