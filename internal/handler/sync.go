package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/choresync/internal/model"
	"github.com/dukerupert/choresync/internal/replication"
)

type SyncHandler struct {
	engine *replication.Engine
	logger *slog.Logger
}

func NewSyncHandler(engine *replication.Engine, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{engine: engine, logger: logger}
}

// Pull handles GET /sync?since=<revision>
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	var since int64
	if s := r.URL.Query().Get("since"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since")
			return
		}
		since = v
	}

	resp, err := h.engine.Pull(r.Context(), since)
	if err != nil {
		h.logger.Error("pull", "since", since, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read changes")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Push handles POST /sync
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	var req model.PushRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	resp, err := h.engine.Push(r.Context(), req)
	if err != nil {
		h.logger.Error("push", "base_revision", req.BaseRevision, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to merge changes")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
