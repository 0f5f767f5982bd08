// Package httpserver is the local control-plane HTTP server (spec §6,
// §10.2): it exposes the full command table as JSON-in/JSON-out endpoints
// under /commands/ for an external shell or UI, the same role the
// teacher's mcpserver.Server filled for podcast generation — but over a
// plain mux instead of an MCP tool protocol, since dubverse's collaborator
// is a generic JSON client, not an MCP host.
package httpserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/leica1994/dubverse/internal/app"
	"github.com/leica1994/dubverse/internal/runregistry"
)

// Server hosts the command surface for one App.
type Server struct {
	app      *app.App
	registry *runregistry.Registry
	log      *slog.Logger
	addr     string
}

// New builds a Server bound to addr (e.g. ":8099").
func New(a *app.App, logger *slog.Logger, addr string) *Server {
	return &Server{app: a, registry: runregistry.New(), log: logger, addr: addr}
}

// ListenAndServe registers every command handler and blocks serving addr.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	s.registerJobCommands(mux)
	s.registerStageCommands(mux)
	s.registerTranslateCommands(mux)
	s.registerAiConfigCommands(mux)
	s.registerTtsPluginCommands(mux)
	s.registerWorkbenchCommands(mux)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		mux.ServeHTTP(w, r)
		s.log.Info("command request", "path", r.URL.Path, "method", r.Method, "duration_ms", time.Since(start).Milliseconds())
	})

	httpSrv := &http.Server{Addr: s.addr, Handler: handler}
	s.log.Info("control-plane server listening", "addr", s.addr)
	return httpSrv.ListenAndServe()
}

// handle registers a JSON command: decode req (unless nil), call fn, encode
// the result or the error message per spec §6 ("returns a JSON value or
// throws a string error").
func handle[Req any, Resp any](mux *http.ServeMux, path string, fn func(Req) (Resp, error)) {
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, fmt.Errorf("decode request: %w", err))
				return
			}
		}
		resp, err := fn(req)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
