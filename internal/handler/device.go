package handler

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/choresync/internal/model"
	"github.com/dukerupert/choresync/internal/store"
)

type DeviceHandler struct {
	members *store.MemberStore
	devices *store.DeviceStore
	logger  *slog.Logger
}

func NewDeviceHandler(db *sql.DB, logger *slog.Logger) *DeviceHandler {
	return &DeviceHandler{
		members: store.NewMemberStore(db),
		devices: store.NewDeviceStore(db),
		logger:  logger,
	}
}

// Register handles POST /devices
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.DeviceRegistration
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	member, err := h.members.Get(r.Context(), req.MemberID)
	if err != nil {
		h.logger.Error("get member", "member", req.MemberID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register device")
		return
	}
	if member == nil {
		writeError(w, http.StatusBadRequest, "unknown member")
		return
	}

	device, err := h.devices.Upsert(r.Context(), req.MemberID, req.Token)
	if err != nil {
		h.logger.Error("upsert device token", "member", req.MemberID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register device")
		return
	}
	writeJSON(w, http.StatusOK, device)
}

// Unregister handles DELETE /devices
func (h *DeviceHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	var req model.DeviceDeletion
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	if err := h.devices.DeleteByToken(r.Context(), req.Token); err != nil {
		h.logger.Error("delete device token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove device")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
