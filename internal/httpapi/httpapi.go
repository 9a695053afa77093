/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package httpapi serves the read-only observability endpoints next to the
// control socket: health, metrics, a status snapshot, recent logs, and the
// play history. All state changes go through the control protocol; nothing
// here mutates.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/bragi/internal/history"
	"github.com/friendsincode/bragi/internal/logbuffer"
	"github.com/friendsincode/bragi/internal/rotation"
	"github.com/friendsincode/bragi/internal/telemetry"
)

// API bundles the observability handlers.
type API struct {
	svc       *rotation.Service
	logBuffer *logbuffer.Buffer
	historyDB *gorm.DB // may be nil when history is disabled
	logger    zerolog.Logger
}

// New creates the API.
func New(svc *rotation.Service, logBuffer *logbuffer.Buffer, historyDB *gorm.DB, logger zerolog.Logger) *API {
	return &API{
		svc:       svc,
		logBuffer: logBuffer,
		historyDB: historyDB,
		logger:    logger.With().Str("component", "httpapi").Logger(),
	}
}

// Router builds the chi router.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.handleHealthz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())
	r.Get("/api/status", a.handleStatus)
	r.Get("/api/logs", a.handleLogs)
	r.Get("/api/history", a.handleHistory)

	return r
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Status())
}

func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	params := logbuffer.QueryParams{
		Level:      r.URL.Query().Get("level"),
		Component:  r.URL.Query().Get("component"),
		Search:     r.URL.Query().Get("search"),
		Limit:      100,
		Descending: true,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		params.Limit = limit
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid since timestamp"})
			return
		}
		params.Since = since
	}

	writeJSON(w, http.StatusOK, map[string]any{"logs": a.logBuffer.Query(params)})
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	if a.historyDB == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "history disabled"})
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	records, err := history.Recent(a.historyDB, limit)
	if err != nil {
		a.logger.Error().Err(err).Msg("history query failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history query failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plays": records})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
