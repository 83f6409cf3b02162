package files

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/covestack/covestack/pkg/logger"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("files: not found")

type File struct {
	ID             string    `json:"id"`
	WorkspaceID    string    `json:"workspaceId"`
	Name           string    `json:"name"`
	Mime           string    `json:"mime"`
	Size           int64     `json:"size"`
	StorageKey     string    `json:"storageKey"`
	CreatedByID    string    `json:"createdById"`
	CreatedByEmail string    `json:"createdByEmail,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type CreateFileRequest struct {
	Name string `json:"name" validate:"required,min=1"`
	Mime string `json:"mime" validate:"required,min=1"`
	Size int64  `json:"size" validate:"gte=0"`
}

type Repository struct {
	DB *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{DB: db}
}

func (r *Repository) ListForWorkspace(ctx context.Context, workspaceID string) ([]File, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT f.id, f.workspace_id, f.name, f.mime, f.size, f.storage_key, f.created_by_id, u.email, f.created_at
		 FROM files f JOIN users u ON u.id = f.created_by_id
		 WHERE f.workspace_id = $1
		 ORDER BY f.created_at DESC`, workspaceID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list files for workspace %s: %v", workspaceID, err)
		return nil, err
	}
	defer rows.Close()

	result := []File{}
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.WorkspaceID, &f.Name, &f.Mime, &f.Size, &f.StorageKey, &f.CreatedByID, &f.CreatedByEmail, &f.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *Repository) Create(ctx context.Context, workspaceID string, req CreateFileRequest, storageKey, creatorID string) (*File, error) {
	var f File
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO files (id, workspace_id, name, mime, size, storage_key, created_by_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		 RETURNING id, workspace_id, name, mime, size, storage_key, created_by_id, created_at`,
		uuid.NewString(), workspaceID, req.Name, req.Mime, req.Size, storageKey, creatorID).
		Scan(&f.ID, &f.WorkspaceID, &f.Name, &f.Mime, &f.Size, &f.StorageKey, &f.CreatedByID, &f.CreatedAt)
	if err != nil {
		logger.Sugar.Errorf("Failed to create file record in workspace %s: %v", workspaceID, err)
		return nil, err
	}
	return &f, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*File, error) {
	var f File
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, workspace_id, name, mime, size, storage_key, created_by_id, created_at
		 FROM files WHERE id = $1`, id).
		Scan(&f.ID, &f.WorkspaceID, &f.Name, &f.Mime, &f.Size, &f.StorageKey, &f.CreatedByID, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to load file %s: %v", id, err)
		return nil, err
	}
	return &f, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete file %s: %v", id, err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
