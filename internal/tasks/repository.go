package tasks

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/covestack/covestack/pkg/logger"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("tasks: not found")

type Repository struct {
	DB *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{DB: db}
}

func (r *Repository) ListForWorkspace(ctx context.Context, workspaceID string) ([]Task, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT t.id, t.workspace_id, t.title, t.status, t.due, t.created_by_id, u.email, t.created_at
		 FROM tasks t JOIN users u ON u.id = t.created_by_id
		 WHERE t.workspace_id = $1
		 ORDER BY t.created_at ASC, t.id ASC`, workspaceID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list tasks for workspace %s: %v", workspaceID, err)
		return nil, err
	}
	defer rows.Close()

	result := []Task{}
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.WorkspaceID, &t.Title, &t.Status, &t.Due, &t.CreatedByID, &t.CreatedByEmail, &t.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (r *Repository) Create(ctx context.Context, workspaceID string, req CreateTaskRequest, creatorID string) (*Task, error) {
	status := req.Status
	if status == "" {
		status = StatusTodo
	}
	var t Task
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO tasks (id, workspace_id, title, status, due, created_by_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 RETURNING id, workspace_id, title, status, due, created_by_id, created_at`,
		uuid.NewString(), workspaceID, req.Title, status, req.Due, creatorID).
		Scan(&t.ID, &t.WorkspaceID, &t.Title, &t.Status, &t.Due, &t.CreatedByID, &t.CreatedAt)
	if err != nil {
		logger.Sugar.Errorf("Failed to create task in workspace %s: %v", workspaceID, err)
		return nil, err
	}
	return &t, nil
}

// WorkspaceOf resolves the owning workspace of a task, for role checks.
func (r *Repository) WorkspaceOf(ctx context.Context, taskID string) (string, error) {
	var workspaceID string
	err := r.DB.QueryRowContext(ctx,
		`SELECT workspace_id FROM tasks WHERE id = $1`, taskID).Scan(&workspaceID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to resolve workspace of task %s: %v", taskID, err)
		return "", err
	}
	return workspaceID, nil
}

func (r *Repository) Update(ctx context.Context, taskID string, req UpdateTaskRequest) (*Task, error) {
	sets := []string{}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if req.Title != nil {
		sets = append(sets, "title = "+arg(*req.Title))
	}
	if req.Status != nil {
		sets = append(sets, "status = "+arg(*req.Status))
	}
	if req.Due.Set {
		sets = append(sets, "due = "+arg(req.Due.Value))
	}
	if len(sets) == 0 {
		return r.getByID(ctx, taskID)
	}

	args = append(args, taskID)
	var t Task
	err := r.DB.QueryRowContext(ctx,
		`UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = $`+strconv.Itoa(len(args))+
			` RETURNING id, workspace_id, title, status, due, created_by_id, created_at`,
		args...).
		Scan(&t.ID, &t.WorkspaceID, &t.Title, &t.Status, &t.Due, &t.CreatedByID, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to update task %s: %v", taskID, err)
		return nil, err
	}
	return &t, nil
}

func (r *Repository) getByID(ctx context.Context, taskID string) (*Task, error) {
	var t Task
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, workspace_id, title, status, due, created_by_id, created_at FROM tasks WHERE id = $1`,
		taskID).
		Scan(&t.ID, &t.WorkspaceID, &t.Title, &t.Status, &t.Due, &t.CreatedByID, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &t, err
}

func (r *Repository) Delete(ctx context.Context, taskID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, taskID)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete task %s: %v", taskID, err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
