// Package admin serves the match status over HTTP.
package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"matchbot/internal/field"
	"matchbot/internal/logging"
	"matchbot/internal/match"
)

// Match is the part of the orchestrator the server exposes.
type Match interface {
	Status() match.Status
	Zones() []field.ZoneState
	ToggleZone(id string, active bool) bool
	Stop(reason string)
}

// StartCord is pulled by POST /start.
type StartCord interface {
	Pull()
}

type Server struct {
	match Match
	cord  StartCord
	tpl   *template.Template
	mux   *http.ServeMux
	log   *slog.Logger
}

//go:embed templates/index.html
var content embed.FS

// NewServer builds the routes. cord may be nil when no simulated start
// switch is wired.
func NewServer(m Match, cord StartCord, log *slog.Logger) *Server {
	tpl := template.Must(template.New("index.html").ParseFS(content, "templates/index.html"))
	s := &Server{match: m, cord: cord, tpl: tpl, mux: http.NewServeMux(), log: logging.Component(log, "admin")}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /zones", s.handleZones)
	s.mux.HandleFunc("POST /zones/toggle", s.handleToggleZone)
	s.mux.HandleFunc("POST /start", s.handleStart)
	s.mux.HandleFunc("POST /stop", s.handleStop)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// Start serves on addr until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("admin server listening", "addr", addr)
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		match.Status
		CanStart bool
	}{
		Status:   s.match.Status(),
		CanStart: s.cord != nil,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, data); err != nil {
		s.log.Error("render index", "err", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.match.Status())
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.match.Zones())
}

func (s *Server) handleToggleZone(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	active, err := strconv.ParseBool(r.URL.Query().Get("active"))
	if err != nil {
		http.Error(w, "active must be a boolean", http.StatusBadRequest)
		return
	}
	known := false
	for _, z := range s.match.Zones() {
		if z.ID == id {
			known = true
			break
		}
	}
	if !known {
		http.Error(w, "unknown zone", http.StatusNotFound)
		return
	}
	changed := s.match.ToggleZone(id, active)
	s.log.Info("zone toggled", "zone", id, "active", active, "changed", changed)
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "active": active, "changed": changed})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if s.cord == nil {
		http.Error(w, "no start cord", http.StatusConflict)
		return
	}
	s.cord.Pull()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.match.Stop("operator stop")
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
