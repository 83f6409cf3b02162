package notes

import (
	"context"
	"database/sql"
	"errors"

	"github.com/covestack/covestack/pkg/logger"
	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("notes: not found")
	ErrAlreadyExists = errors.New("notes: already exists")
)

// Repository persists one note per workspace. The conditional update is a
// single atomic statement; the version check never happens in application
// code against a previously read snapshot.
type Repository interface {
	// GetByWorkspace returns the workspace note or ErrNotFound.
	GetByWorkspace(ctx context.Context, workspaceID string) (*Note, error)
	// Create inserts a note at version 1. Returns ErrAlreadyExists when the
	// workspace already has one (unique constraint on workspace_id).
	Create(ctx context.Context, workspaceID, content, editorID string) (*Note, error)
	// CompareAndSwap replaces content only if the stored version equals
	// expected, bumping version by one. ErrNotFound means no row matched:
	// either the note is missing or the version is stale.
	CompareAndSwap(ctx context.Context, workspaceID, content string, expected int, editorID string) (*Note, error)
	// ForceUpdate replaces content unconditionally. The version increment
	// still happens inside the statement, so concurrent forced writes
	// serialize on the row.
	ForceUpdate(ctx context.Context, workspaceID, content, editorID string) (*Note, error)
}

type PostgresRepository struct {
	DB *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{DB: db}
}

const noteColumns = `id, workspace_id, content, version, updated_at, COALESCE(updated_by_id, '')`

func scanNote(row *sql.Row) (*Note, error) {
	var n Note
	err := row.Scan(&n.ID, &n.WorkspaceID, &n.Content, &n.Version, &n.UpdatedAt, &n.UpdatedByID)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *PostgresRepository) GetByWorkspace(ctx context.Context, workspaceID string) (*Note, error) {
	n, err := scanNote(r.DB.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE workspace_id = $1`, workspaceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to load note for workspace %s: %v", workspaceID, err)
		return nil, err
	}
	return n, nil
}

func (r *PostgresRepository) Create(ctx context.Context, workspaceID, content, editorID string) (*Note, error) {
	n, err := scanNote(r.DB.QueryRowContext(ctx,
		`INSERT INTO notes (id, workspace_id, content, version, updated_at, updated_by_id)
		 VALUES ($1, $2, $3, 1, NOW(), NULLIF($4, ''))
		 ON CONFLICT (workspace_id) DO NOTHING
		 RETURNING `+noteColumns,
		uuid.NewString(), workspaceID, content, editorID))
	if errors.Is(err, sql.ErrNoRows) {
		// DO NOTHING returned no row: somebody else created it first.
		return nil, ErrAlreadyExists
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to create note for workspace %s: %v", workspaceID, err)
		return nil, err
	}
	return n, nil
}

func (r *PostgresRepository) CompareAndSwap(ctx context.Context, workspaceID, content string, expected int, editorID string) (*Note, error) {
	n, err := scanNote(r.DB.QueryRowContext(ctx,
		`UPDATE notes
		 SET content = $1, version = version + 1, updated_at = NOW(), updated_by_id = NULLIF($2, '')
		 WHERE workspace_id = $3 AND version = $4
		 RETURNING `+noteColumns,
		content, editorID, workspaceID, expected))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed conditional note update for workspace %s: %v", workspaceID, err)
		return nil, err
	}
	return n, nil
}

func (r *PostgresRepository) ForceUpdate(ctx context.Context, workspaceID, content, editorID string) (*Note, error) {
	n, err := scanNote(r.DB.QueryRowContext(ctx,
		`UPDATE notes
		 SET content = $1, version = version + 1, updated_at = NOW(), updated_by_id = NULLIF($2, '')
		 WHERE workspace_id = $3
		 RETURNING `+noteColumns,
		content, editorID, workspaceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed note update for workspace %s: %v", workspaceID, err)
		return nil, err
	}
	return n, nil
}
