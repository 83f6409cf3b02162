package health

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/covestack/covestack/internal/code"
)

type Handler struct {
	DB        *sql.DB
	Snapshots *code.Store
}

func NewHandler(db *sql.DB, snapshots *code.Store) *Handler {
	return &Handler{DB: db, Snapshots: snapshots}
}

// Ping is the fast liveness check.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// Deep reports the state of the database and the snapshot store.
func (h *Handler) Deep(w http.ResponseWriter, r *http.Request) {
	result := map[string]interface{}{"ok": true, "db": "down", "snapshots": "down"}

	var x int
	if err := h.DB.QueryRowContext(r.Context(), `SELECT 1`).Scan(&x); err == nil && x == 1 {
		result["db"] = "up"
	}
	if h.Snapshots != nil && h.Snapshots.Ping() {
		result["snapshots"] = "up"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
