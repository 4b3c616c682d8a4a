package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aryannaik/assetreuse/internal/catalog"
	"github.com/aryannaik/assetreuse/internal/keywords"
	"github.com/aryannaik/assetreuse/internal/orchestrator"
	"github.com/aryannaik/assetreuse/internal/reuse"
)

const (
	defaultCount = 5
	maxCount     = 50
	maxBodyBytes = 1 << 20
)

type Handlers struct {
	engine  *reuse.Engine
	planner *orchestrator.Planner
	logger  *slog.Logger
}

func NewHandlers(engine *reuse.Engine, planner *orchestrator.Planner, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		engine:  engine,
		planner: planner,
		logger:  logger,
	}
}

func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	text := params.Get("q")
	if text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing query parameter 'q'"})
		return
	}

	mediaType := catalog.MediaType(params.Get("type"))
	if mediaType != "" && mediaType != catalog.Image && mediaType != catalog.Video {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type must be 'image' or 'video'"})
		return
	}

	category := keywords.Category(params.Get("category"))
	if category != "" && !category.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "category must be 'evergreen' or 'episode_specific'"})
		return
	}

	count := defaultCount
	if s := params.Get("count"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			count = min(n, maxCount)
		}
	}

	results := h.engine.FindBestLocal(reuse.Query{
		Text:         text,
		MediaType:    mediaType,
		Count:        count,
		ChannelID:    params.Get("channel"),
		Category:     category,
		ExcludeIDs:   params["exclude_id"],
		ExcludePaths: params["exclude_path"],
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   text,
		"results": results,
		"total":   len(results),
	})
}

type upsertRequest struct {
	reuse.Acquisition
	LocalPath string `json:"localPath"`
}

func (h *Handlers) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.LocalPath == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing field 'localPath'"})
		return
	}

	entry := h.engine.UpsertFromAcquisition(r.Context(), req.Acquisition, req.LocalPath)
	writeJSON(w, http.StatusOK, map[string]any{
		"entry":     entry,
		"redundant": entry.LocalPath != req.LocalPath,
	})
}

func (h *Handlers) HandleMarkUsed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ref string `json:"ref"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Ref == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing field 'ref'"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"updated": h.engine.MarkUsed(req.Ref)})
}

func (h *Handlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, ok := h.engine.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "asset not found"})
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handlers) HandleGather(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing field 'query'"})
		return
	}
	req.Count = min(req.Count, maxCount)

	res, err := h.planner.Gather(r.Context(), req)
	if err != nil {
		h.logger.Warn("gather failed", "query", req.Query, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":  err.Error(),
			"result": res,
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type statusResponse struct {
	catalog.Stats
	CatalogPath string `json:"catalogPath"`
	UpdatedAt   string `json:"updatedAt"`
	SavePending bool   `json:"savePending"`
	Saves       int64  `json:"saves"`
}

func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	stats := h.engine.Stats()
	store := h.engine.Store()

	updatedStr := ""
	if updatedAt := store.UpdatedAt(); !updatedAt.IsZero() {
		updatedStr = updatedAt.UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Stats:       stats,
		CatalogPath: store.Path(),
		UpdatedAt:   updatedStr,
		SavePending: store.SavePending(),
		Saves:       store.Writes(),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
