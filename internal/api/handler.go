// Package api exposes search and alert rounds over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"homefinder/internal/domain"
)

const maxBodyBytes = 1 << 20

type Searcher interface {
	SearchAll(ctx context.Context, query domain.SearchQuery) (*domain.AggregationResult, error)
}

type Checker interface {
	Check(ctx context.Context) (*domain.AlertsResponse, *domain.RoundStats, error)
}

type Handler struct {
	searcher Searcher
	checker  Checker
	logger   *slog.Logger
}

func NewHandler(searcher Searcher, checker Checker, logger *slog.Logger) *Handler {
	return &Handler{
		searcher: searcher,
		checker:  checker,
		logger:   logger.With("component", "api"),
	}
}

func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/search", h.HandleSearch).Methods(http.MethodPost)
	r.HandleFunc("/api/alerts", h.HandleAlerts).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HandleHealth).Methods(http.MethodGet)
	return r
}

type errorResponse struct {
	Success    bool             `json:"success"`
	Error      string           `json:"error"`
	Listings   []domain.Listing `json:"listings"`
	TotalFound int              `json:"totalFound"`
}

func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var query domain.SearchQuery
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&query); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := query.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.searcher.SearchAll(r.Context(), query)
	if err != nil {
		h.logger.Error("search failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, result.Response())
}

func (h *Handler) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	resp, _, err := h.checker.Check(r.Context())
	if err != nil {
		h.logger.Error("alert round failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Success: false, Error: msg, Listings: []domain.Listing{}})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("write response", "error", err)
	}
}
