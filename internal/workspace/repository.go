package workspace

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/covestack/covestack/pkg/logger"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrNotFound      = errors.New("workspace: not found")
	ErrNotMember     = errors.New("workspace: not a member")
	ErrAlreadyMember = errors.New("workspace: already a member")
)

type Repository struct {
	DB *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{DB: db}
}

func (r *Repository) ListForUser(ctx context.Context, userID string) ([]Workspace, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT w.id, w.name, COALESCE(w.description, ''), w.deadline, w.owner_id, w.created_at
		 FROM workspaces w JOIN members m ON m.workspace_id = w.id
		 WHERE m.user_id = $1
		 ORDER BY w.created_at DESC`, userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list workspaces for user %s: %v", userID, err)
		return nil, err
	}
	defer rows.Close()

	workspaces := []Workspace{}
	for rows.Next() {
		var ws Workspace
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.Description, &ws.Deadline, &ws.OwnerID, &ws.CreatedAt); err != nil {
			return nil, err
		}
		workspaces = append(workspaces, ws)
	}
	return workspaces, rows.Err()
}

// Create inserts the workspace and its OWNER membership in one transaction.
func (r *Repository) Create(ctx context.Context, name, description string, deadline *time.Time, ownerID string) (*Workspace, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var ws Workspace
	err = tx.QueryRowContext(ctx,
		`INSERT INTO workspaces (id, name, description, deadline, owner_id, created_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, NOW())
		 RETURNING id, name, COALESCE(description, ''), deadline, owner_id, created_at`,
		uuid.NewString(), name, description, deadline, ownerID).
		Scan(&ws.ID, &ws.Name, &ws.Description, &ws.Deadline, &ws.OwnerID, &ws.CreatedAt)
	if err != nil {
		logger.Sugar.Errorf("Failed to create workspace: %v", err)
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO members (workspace_id, user_id, role, created_at) VALUES ($1, $2, $3, NOW())`,
		ws.ID, ownerID, RoleOwner); err != nil {
		logger.Sugar.Errorf("Failed to create owner membership: %v", err)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &ws, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*WorkspaceDetail, error) {
	var detail WorkspaceDetail
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, name, COALESCE(description, ''), deadline, owner_id, created_at
		 FROM workspaces WHERE id = $1`, id).
		Scan(&detail.ID, &detail.Name, &detail.Description, &detail.Deadline, &detail.OwnerID, &detail.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to load workspace %s: %v", id, err)
		return nil, err
	}

	rows, err := r.DB.QueryContext(ctx,
		`SELECT m.workspace_id, m.user_id, m.role, u.email, COALESCE(u.name, ''), m.created_at
		 FROM members m JOIN users u ON u.id = m.user_id
		 WHERE m.workspace_id = $1
		 ORDER BY m.created_at ASC`, id)
	if err != nil {
		logger.Sugar.Errorf("Failed to load members for workspace %s: %v", id, err)
		return nil, err
	}
	defer rows.Close()

	detail.Members = []Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.Email, &m.Name, &m.CreatedAt); err != nil {
			return nil, err
		}
		detail.Members = append(detail.Members, m)
	}
	return &detail, rows.Err()
}

func (r *Repository) Update(ctx context.Context, id string, req UpdateWorkspaceRequest) (*Workspace, error) {
	sets := []string{}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if req.Name != nil {
		sets = append(sets, "name = "+arg(*req.Name))
	}
	if req.Description != nil {
		sets = append(sets, "description = NULLIF("+arg(*req.Description)+", '')")
	}
	if req.Deadline.Set {
		sets = append(sets, "deadline = "+arg(req.Deadline.Value))
	}
	if len(sets) == 0 {
		detail, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return &detail.Workspace, nil
	}

	args = append(args, id)
	var ws Workspace
	err := r.DB.QueryRowContext(ctx,
		`UPDATE workspaces SET `+strings.Join(sets, ", ")+` WHERE id = $`+strconv.Itoa(len(args))+
			` RETURNING id, name, COALESCE(description, ''), deadline, owner_id, created_at`,
		args...).
		Scan(&ws.ID, &ws.Name, &ws.Description, &ws.Deadline, &ws.OwnerID, &ws.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to update workspace %s: %v", id, err)
		return nil, err
	}
	return &ws, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	// notes, tasks, files and members cascade via foreign keys
	res, err := r.DB.ExecContext(ctx, `DELETE FROM workspaces WHERE id = $1`, id)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete workspace %s: %v", id, err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) GetMemberRole(ctx context.Context, workspaceID, userID string) (Role, error) {
	var role Role
	err := r.DB.QueryRowContext(ctx,
		`SELECT role FROM members WHERE workspace_id = $1 AND user_id = $2`,
		workspaceID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotMember
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to load membership for user %s in workspace %s: %v", userID, workspaceID, err)
		return "", err
	}
	return role, nil
}

// EnsureUserByEmail finds or creates a user, deriving a display name from
// the address when creating.
func (r *Repository) EnsureUserByEmail(ctx context.Context, email string) (string, error) {
	name := strings.SplitN(email, "@", 2)[0]
	var userID string
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO users (id, email, name, created_at) VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		 RETURNING id`,
		uuid.NewString(), email, name).Scan(&userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to ensure user %s: %v", email, err)
	}
	return userID, err
}

func (r *Repository) AddMember(ctx context.Context, workspaceID, userID string, role Role) (*Member, error) {
	var m Member
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO members (workspace_id, user_id, role, created_at) VALUES ($1, $2, $3, NOW())
		 RETURNING workspace_id, user_id, role, created_at`,
		workspaceID, userID, role).Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrAlreadyMember
		}
		logger.Sugar.Errorf("Failed to add member %s to workspace %s: %v", userID, workspaceID, err)
		return nil, err
	}
	return &m, nil
}

func (r *Repository) RemoveMember(ctx context.Context, workspaceID, userID string) error {
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM members WHERE workspace_id = $1 AND user_id = $2`, workspaceID, userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to remove member %s from workspace %s: %v", userID, workspaceID, err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotMember
	}
	return nil
}
