package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/plumbus-labs/plumbus/pkg/fallback"
	"github.com/plumbus-labs/plumbus/pkg/generator"
	"github.com/plumbus-labs/plumbus/pkg/models"
	"github.com/plumbus-labs/plumbus/pkg/prompt"
	"github.com/plumbus-labs/plumbus/pkg/site"
)

const maxBodyBytes = 64 << 10

// PresetInfo describes a preset in GET /v1/presets.
type PresetInfo struct {
	Name    string                   `json:"name"`
	Request models.GenerationRequest `json:"request"`
	Prompt  string                   `json:"prompt"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.gen.Generate(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, generator.ErrInvalidRequest):
			writeJSONError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, generator.ErrAllProvidersFailed):
			s.logger.Warn("generation failed",
				zap.String("request_id", generator.RequestIDFromContext(r.Context())),
				zap.Error(err))
			writeJSONError(w, http.StatusBadGateway, generator.ErrAllProvidersFailed.Error())
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			writeJSONError(w, http.StatusGatewayTimeout, "generation canceled")
		default:
			s.logger.Error("generate failed", zap.Error(err))
			writeJSONError(w, http.StatusInternalServerError, "generation failed")
		}
		return
	}

	if res.Cached {
		w.Header().Set("X-Plumbus-Cache", "hit")
	} else {
		w.Header().Set("X-Plumbus-Cache", "miss")
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	names := prompt.PresetNames()
	out := make([]PresetInfo, 0, len(names))
	for _, name := range names {
		req, _ := prompt.Preset(name)
		out = append(out, PresetInfo{Name: name, Request: req, Prompt: prompt.Build(req).Text})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePresetImage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	req, ok := prompt.Preset(name)
	if !ok {
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("unknown preset %q", name))
		return
	}
	writeJSON(w, http.StatusOK, s.loader.Load(r.Context(), req))
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.gen.Usage())
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.gen.CacheStats(r.Context())
	if err != nil {
		s.logger.Error("cache stats failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "cache stats failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := s.gen.ClearCache(r.Context()); err != nil {
		s.logger.Error("cache clear failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "cache clear failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSONError(w, http.StatusNotFound, "history is disabled")
		return
	}

	q := r.URL.Query()
	opts := models.HistoryQueryOpts{
		Provider: q.Get("provider"),
		Outcome:  models.Outcome(q.Get("outcome")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = n
	}
	if v := q.Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid since duration")
			return
		}
		opts.Since = time.Now().Add(-d)
	}

	entries, err := s.history.Query(r.Context(), opts)
	if err != nil {
		s.logger.Error("history query failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", site.CacheStatic)
	_, _ = w.Write(fallback.Raw())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"providers": s.gen.Available(),
	})
}

func (s *Server) handleSite(w http.ResponseWriter, r *http.Request) {
	if s.site == nil {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	s.site.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]apiError{
		"error": {Message: message, Type: "plumbus_error", Code: code},
	})
}
