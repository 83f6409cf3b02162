package tasks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covestack/covestack/internal/workspace"
	"github.com/covestack/covestack/middleware"
)

var taskCols = []string{"id", "workspace_id", "title", "status", "due", "created_by_id", "created_at"}

func newTaskMux(t *testing.T) (*http.ServeMux, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := NewHandler(NewRepository(db), workspace.NewRepository(db))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /workspaces/{id}/tasks", h.List)
	mux.HandleFunc("POST /workspaces/{id}/tasks", h.Create)
	mux.HandleFunc("PATCH /tasks/{id}", h.Update)
	mux.HandleFunc("DELETE /tasks/{id}", h.Delete)
	return mux, mock
}

func taskToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestListTasks(t *testing.T) {
	mux, mock := newTaskMux(t)

	mock.ExpectQuery("SELECT (.+) FROM tasks t JOIN users u ON u.id = t.created_by_id").
		WithArgs("ws-1").
		WillReturnRows(sqlmock.NewRows(append(taskCols[:6:6], "email", "created_at")).
			AddRow("t-1", "ws-1", "Ship it", "todo", nil, "u1", "u1@example.com", time.Now()).
			AddRow("t-2", "ws-1", "Test it", "done", nil, "u1", "u1@example.com", time.Now()))

	req := httptest.NewRequest(http.MethodGet, "/workspaces/ws-1/tasks", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 2)
	assert.Equal(t, "Ship it", tasks[0].Title)
	assert.Equal(t, "u1@example.com", tasks[0].CreatedByEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTask(t *testing.T) {
	mux, mock := newTaskMux(t)

	mock.ExpectQuery("INSERT INTO tasks").
		WithArgs(sqlmock.AnyArg(), "ws-1", "Ship it", StatusTodo, nil, "u1").
		WillReturnRows(sqlmock.NewRows(taskCols).
			AddRow("t-1", "ws-1", "Ship it", "todo", nil, "u1", time.Now()))

	req := httptest.NewRequest(http.MethodPost, "/workspaces/ws-1/tasks", strings.NewReader(`{"title":"Ship it"}`))
	req = req.WithContext(middleware.WithUser(req.Context(), middleware.SessionUser{ID: "u1"}))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var task Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	assert.Equal(t, StatusTodo, task.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTaskRejectsMissingTitle(t *testing.T) {
	mux, _ := newTaskMux(t)

	req := httptest.NewRequest(http.MethodPost, "/workspaces/ws-1/tasks", strings.NewReader(`{"title":""}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTaskRejectsUnknownStatus(t *testing.T) {
	mux, _ := newTaskMux(t)

	req := httptest.NewRequest(http.MethodPost, "/workspaces/ws-1/tasks", strings.NewReader(`{"title":"x","status":"blocked"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateTaskChecksWorkspaceRole(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	mux, mock := newTaskMux(t)

	mock.ExpectQuery("SELECT workspace_id FROM tasks WHERE id = \\$1").
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows([]string{"workspace_id"}).AddRow("ws-1"))
	mock.ExpectQuery("SELECT role FROM members").
		WithArgs("ws-1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("EDITOR"))
	mock.ExpectQuery("UPDATE tasks SET status = \\$1 WHERE id = \\$2").
		WithArgs("done", "t-1").
		WillReturnRows(sqlmock.NewRows(taskCols).
			AddRow("t-1", "ws-1", "Ship it", "done", nil, "u1", time.Now()))

	req := httptest.NewRequest(http.MethodPatch, "/tasks/t-1", strings.NewReader(`{"status":"done"}`))
	req.Header.Set("Authorization", "Bearer "+taskToken(t, "u1"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var task Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	assert.Equal(t, StatusDone, task.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTaskRequiresAdmin(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	mux, mock := newTaskMux(t)

	mock.ExpectQuery("SELECT workspace_id FROM tasks WHERE id = \\$1").
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows([]string{"workspace_id"}).AddRow("ws-1"))
	mock.ExpectQuery("SELECT role FROM members").
		WithArgs("ws-1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("EDITOR"))

	req := httptest.NewRequest(http.MethodDelete, "/tasks/t-1", nil)
	req.Header.Set("Authorization", "Bearer "+taskToken(t, "u1"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMissingTask(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	mux, mock := newTaskMux(t)

	mock.ExpectQuery("SELECT workspace_id FROM tasks WHERE id = \\$1").
		WithArgs("t-404").
		WillReturnRows(sqlmock.NewRows([]string{"workspace_id"}))

	req := httptest.NewRequest(http.MethodDelete, "/tasks/t-404", nil)
	req.Header.Set("Authorization", "Bearer "+taskToken(t, "u1"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
