package httpserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/leica1994/dubverse/internal/dbstore"
	"github.com/leica1994/dubverse/internal/tts"
)

func (s *Server) registerTtsPluginCommands(mux *http.ServeMux) {
	handle(mux, "/commands/get_tts_plugins", s.getTtsPlugins)
	handle(mux, "/commands/create_tts_plugin", s.createTtsPlugin)
	handle(mux, "/commands/update_tts_plugin", s.updateTtsPlugin)
	handle(mux, "/commands/delete_tts_plugin", s.deleteTtsPlugin)
	handle(mux, "/commands/list_tts_voices", s.listTtsVoices)
	handle(mux, "/commands/test_tts_plugin", s.testTtsPlugin)
}

type ttsPluginsResponse struct {
	Plugins []*dbstore.TtsPlugin `json:"plugins"`
}

func (s *Server) getTtsPlugins(noRequest) (ttsPluginsResponse, error) {
	plugins, err := s.app.Store.GetAllTtsPlugins()
	return ttsPluginsResponse{Plugins: plugins}, err
}

type ttsPluginResponse struct {
	Plugin *dbstore.TtsPlugin `json:"plugin"`
}

func (s *Server) createTtsPlugin(p dbstore.TtsPlugin) (ttsPluginResponse, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := s.app.Store.CreateTtsPlugin(&p); err != nil {
		return ttsPluginResponse{}, err
	}
	return ttsPluginResponse{Plugin: &p}, nil
}

func (s *Server) updateTtsPlugin(p dbstore.TtsPlugin) (ttsPluginResponse, error) {
	if p.ID == "" {
		return ttsPluginResponse{}, fmt.Errorf("id is required")
	}
	if err := s.app.Store.UpdateTtsPlugin(&p); err != nil {
		return ttsPluginResponse{}, err
	}
	s.app.Control.InvalidatePlugin(p.ID)
	return ttsPluginResponse{Plugin: &p}, nil
}

func (s *Server) deleteTtsPlugin(req idRequest) (okResponse, error) {
	if err := s.app.Store.DeleteTtsPlugin(req.ID); err != nil {
		return okResponse{}, err
	}
	s.app.Control.InvalidatePlugin(req.ID)
	return okResponse{OK: true}, nil
}

type voicesResponse struct {
	Voices []tts.VoiceInfo `json:"voices"`
}

func (s *Server) lookupPlugin(id string) (dbstore.TtsPlugin, error) {
	plugin, err := s.app.Store.GetTtsPlugin(id)
	if err != nil {
		return dbstore.TtsPlugin{}, err
	}
	if plugin == nil {
		return dbstore.TtsPlugin{}, fmt.Errorf("tts plugin %q not found", id)
	}
	return *plugin, nil
}

func (s *Server) listTtsVoices(req idRequest) (voicesResponse, error) {
	plugin, err := s.lookupPlugin(req.ID)
	if err != nil {
		return voicesResponse{}, err
	}
	voices, err := s.app.Control.ListTtsVoices(context.Background(), plugin)
	return voicesResponse{Voices: voices}, err
}

func (s *Server) testTtsPlugin(req idRequest) (okResponse, error) {
	plugin, err := s.lookupPlugin(req.ID)
	if err != nil {
		return okResponse{}, err
	}
	if err := s.app.Control.TestTtsPlugin(context.Background(), plugin); err != nil {
		return okResponse{}, err
	}
	return okResponse{OK: true}, nil
}
