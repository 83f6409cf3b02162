package tasks

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/covestack/covestack/internal/workspace"
	"github.com/covestack/covestack/middleware"
	"github.com/covestack/covestack/pkg/logger"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Handler struct {
	Repo    *Repository
	Members *workspace.Repository
}

func NewHandler(repo *Repository, members *workspace.Repository) *Handler {
	return &Handler{Repo: repo, Members: members}
}

// List returns a workspace's tasks (route guarded at viewer+).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("id")
	result, err := h.Repo.ListForWorkspace(r.Context(), workspaceID)
	if err != nil {
		logger.Sugar.Errorf("Error fetching tasks: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Database error")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Create adds a task (route guarded at editor+).
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("id")
	user, _ := middleware.UserFrom(r.Context())

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeMessage(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Status != "" && !req.Status.Valid() {
		writeMessage(w, http.StatusBadRequest, "Invalid status")
		return
	}

	task, err := h.Repo.Create(r.Context(), workspaceID, req, user.ID)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Failed to create task")
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// Update patches a task. The route has no workspace segment, so the role
// check happens here against the task's own workspace.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")

	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeMessage(w, http.StatusBadRequest, "title must not be empty")
		return
	}
	if req.Status != nil && !req.Status.Valid() {
		writeMessage(w, http.StatusBadRequest, "Invalid status")
		return
	}

	if !h.verifyRole(w, r, taskID, workspace.RoleEditor) {
		return
	}

	task, err := h.Repo.Update(r.Context(), taskID, req)
	if errors.Is(err, ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Task not found")
		return
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Failed to update task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Delete removes a task (admin+ of its workspace).
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")

	if !h.verifyRole(w, r, taskID, workspace.RoleAdmin) {
		return
	}

	if err := h.Repo.Delete(r.Context(), taskID); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Task not found")
			return
		}
		writeMessage(w, http.StatusInternalServerError, "Failed to delete task")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// verifyRole resolves the task's workspace and checks the caller's standing
// there. Writes the error response itself and reports whether to proceed.
func (h *Handler) verifyRole(w http.ResponseWriter, r *http.Request, taskID string, required workspace.Role) bool {
	user, err := middleware.VerifyToken(middleware.TokenFromRequest(r))
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid token")
		return false
	}

	workspaceID, err := h.Repo.WorkspaceOf(r.Context(), taskID)
	if errors.Is(err, ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Task not found")
		return false
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Database error")
		return false
	}

	role, err := h.Members.GetMemberRole(r.Context(), workspaceID, user.ID)
	if errors.Is(err, workspace.ErrNotMember) {
		writeMessage(w, http.StatusForbidden, "Not a member of this workspace")
		return false
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Database error")
		return false
	}
	if !role.Meets(required) {
		writeMessage(w, http.StatusForbidden, "Insufficient role")
		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"message": message})
}
