package githubsync

import (
	"encoding/json"
	"net/http"

	"github.com/covestack/covestack/pkg/logger"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Handler struct {
	Service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{Service: service}
}

// Push writes one file to a GitHub repository and reports the commit.
func (h *Handler) Push(w http.ResponseWriter, r *http.Request) {
	var req PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeMessage(w, http.StatusBadRequest, "owner, repo, path, content are required")
		return
	}

	if h.Service.Token == "" {
		writeMessage(w, http.StatusBadRequest, "GITHUB_TOKEN not configured")
		return
	}

	commitSha, err := h.Service.Push(r.Context(), req)
	if err != nil {
		logger.Sugar.Errorf("GitHub push failed: %v", err)
		writeMessage(w, http.StatusBadGateway, "GitHub push failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "commitSha": commitSha})
}

func writeMessage(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
