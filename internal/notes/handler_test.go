package notes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covestack/covestack/middleware"
)

func newNotesMux(repo Repository) *http.ServeMux {
	h := NewHandler(NewService(repo, nil))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /workspaces/{id}/notes", h.GetNotes)
	mux.HandleFunc("PUT /workspaces/{id}/notes", h.SaveNotes)
	return mux
}

func doSave(t *testing.T, mux *http.ServeMux, workspaceID, body, ifMatch string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/workspaces/"+workspaceID+"/notes", strings.NewReader(body))
	if ifMatch != "" {
		req.Header.Set("If-Match", ifMatch)
	}
	req = req.WithContext(middleware.WithUser(req.Context(), middleware.SessionUser{ID: "u1", Email: "u1@example.com"}))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestGetNotesLazilyCreates(t *testing.T) {
	mux := newNotesMux(newMemoryRepo())

	req := httptest.NewRequest(http.MethodGet, "/workspaces/ws-1/notes", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `W/"v1"`, rec.Header().Get("ETag"))

	var note Note
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &note))
	assert.Equal(t, "ws-1", note.WorkspaceID)
	assert.Equal(t, 1, note.Version)
	assert.Equal(t, "", note.Content)
}

func TestSaveNotesConditionalFlow(t *testing.T) {
	mux := newNotesMux(newMemoryRepo())

	// First write creates the note.
	rec := doSave(t, mux, "ws-1", `{"content":"draft"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `W/"v1"`, rec.Header().Get("ETag"))

	// Conditional write against the current version is accepted.
	rec = doSave(t, mux, "ws-1", `{"content":"edited","version":1}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `W/"v2"`, rec.Header().Get("ETag"))

	var note Note
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &note))
	assert.Equal(t, 2, note.Version)
	assert.Equal(t, "edited", note.Content)
	assert.Equal(t, "u1", note.UpdatedByID)
}

func TestSaveNotesConflictResponse(t *testing.T) {
	mux := newNotesMux(newMemoryRepo())

	rec := doSave(t, mux, "ws-1", `{"content":"a"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doSave(t, mux, "ws-1", `{"content":"b","version":1}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// A stale writer is rejected with the untouched server state.
	rec = doSave(t, mux, "ws-1", `{"content":"c","version":1}`, "")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, `W/"v2"`, rec.Header().Get("ETag"))

	var body struct {
		Message        string `json:"message"`
		Expected       int    `json:"expected"`
		CurrentVersion int    `json:"currentVersion"`
		Current        *Note  `json:"current"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Version conflict", body.Message)
	assert.Equal(t, 1, body.Expected)
	assert.Equal(t, 2, body.CurrentVersion)
	require.NotNil(t, body.Current)
	assert.Equal(t, "b", body.Current.Content)
}

func TestSaveNotesIfMatchOverridesBodyVersion(t *testing.T) {
	mux := newNotesMux(newMemoryRepo())

	rec := doSave(t, mux, "ws-1", `{"content":"a"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Body carries a stale version but If-Match has the right one.
	rec = doSave(t, mux, "ws-1", `{"content":"b","version":99}`, `W/"v1"`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `W/"v2"`, rec.Header().Get("ETag"))

	// And the other way round: a stale If-Match loses even if the body is right.
	rec = doSave(t, mux, "ws-1", `{"content":"c","version":2}`, `W/"v1"`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSaveNotesUnconditionalAlwaysLands(t *testing.T) {
	mux := newNotesMux(newMemoryRepo())

	for i := 1; i <= 3; i++ {
		rec := doSave(t, mux, "ws-1", `{"content":"rev"}`, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var note Note
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &note))
		assert.Equal(t, i, note.Version)
	}
}

func TestSaveNotesRejectsBadBody(t *testing.T) {
	mux := newNotesMux(newMemoryRepo())

	rec := doSave(t, mux, "ws-1", `{not json`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
