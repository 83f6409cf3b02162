package code

import (
	"encoding/json"
	"net/http"

	"github.com/covestack/covestack/pkg/logger"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type SaveSnapshotRequest struct {
	Files []CodeFile `json:"files" validate:"required,dive"`
}

type Handler struct {
	Store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{Store: store}
}

// Get returns the workspace's code snapshot, or {files: [], updatedAt: null}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspaceId")
	if workspaceID == "" {
		http.Error(w, "workspaceId required", http.StatusBadRequest)
		return
	}

	snap, err := h.Store.Get(workspaceID)
	if err != nil {
		logger.Sugar.Errorf("Failed to read code snapshot for workspace %s: %v", workspaceID, err)
		http.Error(w, "Snapshot store error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// Put replaces the workspace's code snapshot.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspaceId")
	if workspaceID == "" {
		http.Error(w, "workspaceId required", http.StatusBadRequest)
		return
	}

	var req SaveSnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, "Each file needs a path", http.StatusBadRequest)
		return
	}

	if _, err := h.Store.Put(workspaceID, req.Files); err != nil {
		logger.Sugar.Errorf("Failed to save code snapshot for workspace %s: %v", workspaceID, err)
		http.Error(w, "Snapshot store error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}
