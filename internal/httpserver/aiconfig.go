package httpserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/leica1994/dubverse/internal/dbstore"
)

func (s *Server) registerAiConfigCommands(mux *http.ServeMux) {
	handle(mux, "/commands/get_ai_configs", s.getAiConfigs)
	handle(mux, "/commands/create_ai_config", s.createAiConfig)
	handle(mux, "/commands/update_ai_config", s.updateAiConfig)
	handle(mux, "/commands/delete_ai_config", s.deleteAiConfig)
	handle(mux, "/commands/set_default_ai_config", s.setDefaultAiConfig)
	handle(mux, "/commands/test_ai_connection", s.testAiConnection)
}

type noRequest struct{}

type aiConfigsResponse struct {
	Configs []*dbstore.AiConfig `json:"configs"`
}

func (s *Server) getAiConfigs(noRequest) (aiConfigsResponse, error) {
	configs, err := s.app.Store.GetAllAiConfigs()
	return aiConfigsResponse{Configs: configs}, err
}

type aiConfigResponse struct {
	Config *dbstore.AiConfig `json:"config"`
}

func (s *Server) createAiConfig(cfg dbstore.AiConfig) (aiConfigResponse, error) {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if err := s.app.Store.CreateAiConfig(&cfg); err != nil {
		return aiConfigResponse{}, err
	}
	return aiConfigResponse{Config: &cfg}, nil
}

func (s *Server) updateAiConfig(cfg dbstore.AiConfig) (aiConfigResponse, error) {
	if cfg.ID == "" {
		return aiConfigResponse{}, fmt.Errorf("id is required")
	}
	if err := s.app.Store.UpdateAiConfig(&cfg); err != nil {
		return aiConfigResponse{}, err
	}
	return aiConfigResponse{Config: &cfg}, nil
}

type idRequest struct {
	ID string `json:"id"`
}

func (s *Server) deleteAiConfig(req idRequest) (okResponse, error) {
	if err := s.app.Store.DeleteAiConfig(req.ID); err != nil {
		return okResponse{}, err
	}
	return okResponse{OK: true}, nil
}

func (s *Server) setDefaultAiConfig(req idRequest) (okResponse, error) {
	if err := s.app.Store.SetDefaultAiConfig(req.ID); err != nil {
		return okResponse{}, err
	}
	return okResponse{OK: true}, nil
}

func (s *Server) testAiConnection(cfg dbstore.AiConfig) (okResponse, error) {
	if err := s.app.Control.TestAiConnection(context.Background(), cfg); err != nil {
		return okResponse{}, err
	}
	return okResponse{OK: true}, nil
}
