package notes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/covestack/covestack/middleware"
	"github.com/covestack/covestack/pkg/logger"
)

type Handler struct {
	Service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{Service: service}
}

// GetNotes returns the workspace note, lazily creating it, with the version
// exposed in the ETag header.
func (h *Handler) GetNotes(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("id")

	note, err := h.Service.Get(r.Context(), workspaceID)
	if err != nil {
		logger.Sugar.Errorf("Failed to load notes for workspace %s: %v", workspaceID, err)
		http.Error(w, "Failed to load notes", http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", FormatETag(note.Version))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(note)
}

// SaveNotes performs the conditional update. The expected version comes from
// If-Match when present, else from the body; absent means last-writer-wins.
func (h *Handler) SaveNotes(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("id")

	var req SaveNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	expected := req.Version
	if v, ok := ParseVersionTag(r.Header.Get("If-Match")); ok {
		expected = &v
	}

	user, _ := middleware.UserFrom(r.Context())

	note, err := h.Service.Save(r.Context(), workspaceID, req.Content, expected, user.ID)
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			w.Header().Set("ETag", FormatETag(conflict.Current.Version))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"message":        "Version conflict",
				"expected":       conflict.Expected,
				"currentVersion": conflict.Current.Version,
				"current":        conflict.Current,
			})
			return
		}
		logger.Sugar.Errorf("Failed to save notes for workspace %s: %v", workspaceID, err)
		http.Error(w, "Failed to save notes", http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", FormatETag(note.Version))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(note)
}
