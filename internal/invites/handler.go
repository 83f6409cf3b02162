package invites

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/covestack/covestack/pkg/logger"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
)

var validate = validator.New()

type InviteRequest struct {
	WorkspaceID string `json:"workspaceId" validate:"required,min=1"`
	Email       string `json:"email" validate:"required,email"`
	Name        string `json:"name"`
}

type Handler struct {
	DB     *sql.DB
	Mailer *Mailer
}

func NewHandler(db *sql.DB, mailer *Mailer) *Handler {
	return &Handler{DB: db, Mailer: mailer}
}

// Send mails an invite link carrying a short-lived token the accept page can
// verify.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeMessage(w, http.StatusBadRequest, "workspaceId and a valid email are required")
		return
	}

	var exists bool
	err := h.DB.QueryRowContext(r.Context(),
		`SELECT EXISTS(SELECT 1 FROM workspaces WHERE id = $1)`, req.WorkspaceID).Scan(&exists)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !exists {
		writeMessage(w, http.StatusNotFound, "Workspace not found")
		return
	}

	token, err := signInviteToken(req.WorkspaceID, req.Email)
	if err != nil {
		logger.Sugar.Errorf("Failed to sign invite token: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Failed to send invite")
		return
	}

	link := frontendOrigin() + "/invite?" + url.Values{
		"workspace": {req.WorkspaceID},
		"email":     {req.Email},
		"token":     {token},
	}.Encode()

	if err := h.Mailer.SendInvite(req.Email, req.Name, link); err != nil {
		logger.Sugar.Errorf("Failed to send invite mail: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Failed to send invite")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// VerifyInviteToken checks an invite token and returns its workspace and
// email claims. Used by the accept flow.
func VerifyInviteToken(tokenString string) (workspaceID, email string, err error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		return "", "", errors.New("invalid invite token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("invalid invite claims")
	}
	workspaceID, _ = claims["workspaceId"].(string)
	email, _ = claims["email"].(string)
	if workspaceID == "" || email == "" {
		return "", "", errors.New("invite claims incomplete")
	}
	return workspaceID, email, nil
}

func signInviteToken(workspaceID, email string) (string, error) {
	claims := jwt.MapClaims{
		"workspaceId": workspaceID,
		"email":       email,
		"exp":         time.Now().Add(7 * 24 * time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(os.Getenv("JWT_SECRET")))
}

func frontendOrigin() string {
	if v := os.Getenv("FRONTEND_ORIGIN"); v != "" {
		return v
	}
	return "http://localhost:5173"
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"message": message})
}
