package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dshills/citeindex/internal/indexer"
	"github.com/dshills/citeindex/internal/searcher"
	"github.com/dshills/citeindex/internal/storage"
)

// Reindex modes accepted by POST /api/reindex
const (
	ModeIncremental = "incremental"
	ModeFull        = "full"
)

// Handler holds API route handlers.
type Handler struct {
	svc *Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// CitationsResponse wraps the citations of one file.
type CitationsResponse struct {
	Path      string                  `json:"path"`
	Citations []*storage.FileCitation `json:"citations"`
}

// Reindex handles POST /api/reindex?mode=full|incremental.
// An empty mode runs an incremental pass.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	mode := strings.ToLower(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = ModeIncremental
	}
	if mode != ModeIncremental && mode != ModeFull {
		writeJSON(w, http.StatusBadRequest, errorBody("mode must be full or incremental"))
		return
	}

	result, err := h.svc.Reindex(r.Context(), mode == ModeFull)
	if errors.Is(err, indexer.ErrIndexingInProgress) {
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
		return
	}
	if err != nil {
		slog.Error("reindex failed", slog.String("mode", mode), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Coverage handles GET /api/coverage.
func (h *Handler) Coverage(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Coverage(r.Context())
	if err != nil {
		slog.Error("coverage failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Citations handles GET /api/citations?path=.
func (h *Handler) Citations(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}

	citations, err := h.svc.CitationsForFile(r.Context(), path)
	if err != nil {
		slog.Error("list citations failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, CitationsResponse{Path: path, Citations: citations})
}

// Files handles GET /api/files.
func (h *Handler) Files(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Files(r.Context())
	if err != nil {
		slog.Error("scan project failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Staleness handles GET /api/staleness.
func (h *Handler) Staleness(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Staleness(r.Context())
	if err != nil {
		slog.Error("staleness check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Status handles GET /api/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Status(r.Context())
	if err != nil {
		slog.Error("status failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// SearchKnowledge handles GET /api/knowledge/search?q=&mode=&limit=.
func (h *Handler) SearchKnowledge(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("q is required"))
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	mode := searcher.SearchMode(strings.ToLower(q.Get("mode")))
	switch mode {
	case "", searcher.SearchModeHybrid, searcher.SearchModeVector, searcher.SearchModeKeyword:
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("mode must be hybrid, vector or keyword"))
		return
	}

	resp, err := h.svc.SearchKnowledge(r.Context(), searcher.SearchRequest{Query: query, Limit: limit, Mode: mode})
	if errors.Is(err, searcher.ErrInvalidRequest) || errors.Is(err, searcher.ErrEmbedderUnavailable) {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err != nil {
		slog.Error("knowledge search failed", slog.String("query", query), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
