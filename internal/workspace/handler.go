package workspace

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/covestack/covestack/middleware"
	"github.com/covestack/covestack/pkg/logger"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Handler struct {
	Service *Service
	Hub     Disconnecter
}

// Disconnecter lets the handler kick live clients out of a deleted
// workspace. *socket.Hub satisfies it.
type Disconnecter interface {
	DisconnectWorkspace(workspaceID string)
}

func NewHandler(service *Service, hub Disconnecter) *Handler {
	return &Handler{Service: service, Hub: hub}
}

// List returns only workspaces the caller belongs to.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	workspaces, err := h.Service.List(r.Context(), user.ID)
	if err != nil {
		logger.Sugar.Errorf("Error listing workspaces: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Database error")
		return
	}
	writeJSON(w, http.StatusOK, workspaces)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	var req CreateWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeMessage(w, http.StatusBadRequest, "name is required")
		return
	}

	ws, err := h.Service.Create(r.Context(), req, user.ID)
	if err != nil {
		logger.Sugar.Errorf("Error creating workspace: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Failed to create workspace")
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	detail, err := h.Service.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Workspace not found")
		return
	}
	if err != nil {
		logger.Sugar.Errorf("Error loading workspace %s: %v", id, err)
		writeMessage(w, http.StatusInternalServerError, "Database error")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req UpdateWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeMessage(w, http.StatusBadRequest, "name must not be empty")
		return
	}

	ws, err := h.Service.Update(r.Context(), id, req)
	if errors.Is(err, ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Workspace not found")
		return
	}
	if err != nil {
		logger.Sugar.Errorf("Error updating workspace %s: %v", id, err)
		writeMessage(w, http.StatusInternalServerError, "Failed to update workspace")
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.Service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Workspace not found")
			return
		}
		logger.Sugar.Errorf("Error deleting workspace %s: %v", id, err)
		writeMessage(w, http.StatusInternalServerError, "Failed to delete workspace")
		return
	}
	if h.Hub != nil {
		h.Hub.DisconnectWorkspace(id)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("id")

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeMessage(w, http.StatusBadRequest, "A valid email is required")
		return
	}
	if req.Role != "" && !req.Role.Valid() {
		writeMessage(w, http.StatusBadRequest, "Invalid role")
		return
	}

	member, err := h.Service.AddMember(r.Context(), workspaceID, req)
	if errors.Is(err, ErrAlreadyMember) {
		writeMessage(w, http.StatusConflict, "User is already a member")
		return
	}
	if err != nil {
		logger.Sugar.Errorf("Error adding member to workspace %s: %v", workspaceID, err)
		writeMessage(w, http.StatusInternalServerError, "Failed to add member")
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("id")
	userID := r.PathValue("userId")
	caller, _ := middleware.UserFrom(r.Context())

	err := h.Service.RemoveMember(r.Context(), workspaceID, userID, caller.ID)
	switch {
	case errors.Is(err, ErrNotMember):
		writeMessage(w, http.StatusNotFound, "Member not found")
	case errors.Is(err, ErrOnlyOwnerRemovesOwner):
		writeMessage(w, http.StatusForbidden, "Only owner can remove another owner")
	case err != nil:
		logger.Sugar.Errorf("Error removing member %s from workspace %s: %v", userID, workspaceID, err)
		writeMessage(w, http.StatusInternalServerError, "Failed to remove member")
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
