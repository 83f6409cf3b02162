package files

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/covestack/covestack/internal/workspace"
	"github.com/covestack/covestack/middleware"
	"github.com/covestack/covestack/pkg/logger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

type Handler struct {
	Repo    *Repository
	Storage *Storage
	Members *workspace.Repository
}

func NewHandler(repo *Repository, storage *Storage, members *workspace.Repository) *Handler {
	return &Handler{Repo: repo, Storage: storage, Members: members}
}

// List returns a workspace's file records (route guarded at viewer+).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspaceId")
	result, err := h.Repo.ListForWorkspace(r.Context(), workspaceID)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Database error")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Create registers a file and hands back a presigned POST so the browser
// uploads straight to the object store (route guarded at editor+).
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("id")
	user, _ := middleware.UserFrom(r.Context())

	var req CreateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeMessage(w, http.StatusBadRequest, "name, mime and a non-negative size are required")
		return
	}

	safeName := strings.Join(strings.Fields(req.Name), "_")
	key := fmt.Sprintf("%s/%d-%s-%s", workspaceID, time.Now().UnixMilli(), uuid.NewString(), safeName)

	file, err := h.Repo.Create(r.Context(), workspaceID, req, key, user.ID)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Failed to create file")
		return
	}

	uploadURL, fields, err := h.Storage.PresignUpload(r.Context(), key, req.Mime)
	if err != nil {
		logger.Sugar.Errorf("Failed to presign upload for file %s: %v", file.ID, err)
		writeMessage(w, http.StatusInternalServerError, "Failed to presign upload")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"file": file,
		"upload": map[string]interface{}{
			"method": "POST",
			"url":    uploadURL,
			"fields": fields,
		},
	})
}

// Download redirects members to a presigned GET for the object.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	file, err := h.Repo.GetByID(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "File not found")
		return
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Database error")
		return
	}

	if _, ok := h.requireMember(w, r, file.WorkspaceID, workspace.RoleViewer); !ok {
		return
	}

	downloadURL, err := h.Storage.PresignDownload(r.Context(), file.StorageKey, file.Name)
	if err != nil {
		logger.Sugar.Errorf("Failed to presign download for file %s: %v", id, err)
		writeMessage(w, http.StatusInternalServerError, "Failed to presign download")
		return
	}
	http.Redirect(w, r, downloadURL, http.StatusFound)
}

// Delete removes the object and then the record (admin+ of its workspace).
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	file, err := h.Repo.GetByID(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "File not found")
		return
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Database error")
		return
	}

	if _, ok := h.requireMember(w, r, file.WorkspaceID, workspace.RoleAdmin); !ok {
		return
	}

	if err := h.Storage.Delete(r.Context(), file.StorageKey); err != nil {
		logger.Sugar.Errorf("Failed to delete object %s: %v", file.StorageKey, err)
		writeMessage(w, http.StatusInternalServerError, "Failed to delete object")
		return
	}
	if err := h.Repo.Delete(r.Context(), id); err != nil && !errors.Is(err, ErrNotFound) {
		writeMessage(w, http.StatusInternalServerError, "Failed to delete file")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// requireMember authenticates the caller and checks their standing in the
// file's workspace. The /files/{id} routes have no workspace path segment,
// so the workspace guard cannot cover them.
func (h *Handler) requireMember(w http.ResponseWriter, r *http.Request, workspaceID string, required workspace.Role) (middleware.SessionUser, bool) {
	user, err := middleware.VerifyToken(middleware.TokenFromRequest(r))
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid token")
		return middleware.SessionUser{}, false
	}
	role, err := h.Members.GetMemberRole(r.Context(), workspaceID, user.ID)
	if errors.Is(err, workspace.ErrNotMember) {
		writeMessage(w, http.StatusForbidden, "Not a member of this workspace")
		return middleware.SessionUser{}, false
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Database error")
		return middleware.SessionUser{}, false
	}
	if !role.Meets(required) {
		writeMessage(w, http.StatusForbidden, "Insufficient role")
		return middleware.SessionUser{}, false
	}
	return user, true
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"message": message})
}
