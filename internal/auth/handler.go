package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/covestack/covestack/middleware"
	"github.com/covestack/covestack/pkg/logger"
)

type Handler struct {
	Repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{Repo: repo}
}

type passcodeRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Passcode string `json:"passcode"`
}

// Passcode is the dev sign-in: a shared passcode plus a name and email.
func (h *Handler) Passcode(w http.ResponseWriter, r *http.Request) {
	var req passcodeRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	if name == "" || email == "" || req.Passcode == "" {
		writeMessage(w, http.StatusBadRequest, "name, email, passcode are required")
		return
	}

	expected := os.Getenv("DEV_PASSCODE")
	if expected == "" {
		expected = "letmein-123"
	}
	if req.Passcode != expected {
		writeMessage(w, http.StatusUnauthorized, "Invalid passcode")
		return
	}

	user, err := h.Repo.UpsertUser(r.Context(), email, name)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	session, err := SignSession(user)
	if err != nil {
		logger.Sugar.Errorf("Failed to sign session: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}
	SetSessionCookie(w, session)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":   true,
		"user": map[string]string{"id": user.ID, "email": user.Email, "name": user.Name},
	})
}

// Me returns the caller's identity from a fresh database read.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.VerifyToken(middleware.TokenFromRequest(r))
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	user, err := h.Repo.GetByID(r.Context(), session.ID)
	if errors.Is(err, ErrNotFound) {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Database error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": user.ID, "email": user.Email, "name": user.Name})
}

// Signout clears the session cookie.
func (h *Handler) Signout(w http.ResponseWriter, r *http.Request) {
	ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"message": message})
}
