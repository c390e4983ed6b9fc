package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/compresr/journey-gateway/internal/compiler"
	"github.com/compresr/journey-gateway/internal/contact"
	"github.com/compresr/journey-gateway/internal/journey"
	"github.com/compresr/journey-gateway/internal/registry"
)

type healthResponse struct {
	Status  string           `json:"status"`
	Version string           `json:"version"`
	Uptime  string           `json:"uptime"`
	Stats   map[string]int64 `json:"stats"`
}

type idResponse struct {
	ID string `json:"id"`
}

type listResponse struct {
	Configs []registry.Entry `json:"configs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: Version,
		Uptime:  time.Since(s.started).Truncate(time.Second).String(),
		Stats:   s.metrics.Stats(),
	})
}

// ===== CONFIGURATION CRUD =====

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.authoring.List(r.Context())
	if err != nil {
		s.writeError(w, err.Error(), statusFor(err))
		return
	}
	if entries == nil {
		entries = []registry.Entry{}
	}
	writeJSON(w, http.StatusOK, listResponse{Configs: entries})
}

// handleSaveConfig creates a configuration, or replaces ?id= when given.
func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.Server.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, fmt.Sprintf("configuration exceeds %d bytes", limit), http.StatusRequestEntityTooLarge)
			return
		}
		s.writeError(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	var cfg journey.Config
	if err := json.Unmarshal(body, &cfg); err != nil {
		s.writeError(w, "invalid configuration JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	id, err := s.authoring.Save(r.Context(), &cfg, r.URL.Query().Get("id"))
	if err != nil {
		s.writeError(w, err.Error(), statusFor(err))
		return
	}
	status := http.StatusOK
	if r.URL.Query().Get("id") == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, idResponse{ID: id})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.authoring.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	if err := s.authoring.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetConfigByName returns the stored document unchanged.
func (s *Server) handleGetConfigByName(w http.ResponseWriter, r *http.Request) {
	doc, err := s.registry.FetchByName(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err.Error(), statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (s *Server) handleResolveIdentifier(w http.ResponseWriter, r *http.Request) {
	id, err := s.registry.ResolveIdentifier(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, idResponse{ID: id})
}

// ===== BOOTSTRAP SCRIPT =====

// handleBootstrapScript serves /v1/bootstrap/{name}.js: the compiled script for
// one configuration, with contact details from ?email= and ?phone=.
func (s *Server) handleBootstrapScript(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	name, ok := strings.CutSuffix(file, ".js")
	if !ok || name == "" {
		s.writeError(w, "bootstrap path must be /v1/bootstrap/{name}.js", http.StatusNotFound)
		return
	}

	c := contact.Contact{
		Email: r.URL.Query().Get("email"),
		Phone: r.URL.Query().Get("phone"),
	}.Normalize()
	if err := c.ValidatePartial(); err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	doc, err := s.registry.FetchByName(r.Context(), name)
	if err != nil {
		s.writeError(w, err.Error(), statusFor(err))
		return
	}
	cfg, err := journey.Parse(doc)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	script, err := compiler.Compile(cfg, c, s.compile...)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.metrics.RecordCompile()
	out, err := script.Render()
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out)
}
