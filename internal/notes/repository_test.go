package notes

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noteCols = []string{"id", "workspace_id", "content", "version", "updated_at", "updated_by_id"}

func noteRow(id, workspaceID, content string, version int, editorID string) *sqlmock.Rows {
	return sqlmock.NewRows(noteCols).AddRow(id, workspaceID, content, version, time.Now(), editorID)
}

func TestPostgresRepositoryGetByWorkspace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM notes WHERE workspace_id = \\$1").
		WithArgs("ws-1").
		WillReturnRows(noteRow("n-1", "ws-1", "hello", 3, "u1"))

	n, err := repo.GetByWorkspace(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", n.Content)
	assert.Equal(t, 3, n.Version)
	assert.Equal(t, "u1", n.UpdatedByID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryGetByWorkspaceNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM notes WHERE workspace_id = \\$1").
		WithArgs("ws-missing").
		WillReturnRows(sqlmock.NewRows(noteCols))

	_, err = repo.GetByWorkspace(context.Background(), "ws-missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectQuery("INSERT INTO notes (.+) ON CONFLICT \\(workspace_id\\) DO NOTHING").
		WithArgs(sqlmock.AnyArg(), "ws-1", "draft", "u1").
		WillReturnRows(noteRow("n-1", "ws-1", "draft", 1, "u1"))

	n, err := repo.Create(context.Background(), "ws-1", "draft", "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryCreateLosesRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	// DO NOTHING on a conflicting insert returns no rows at all.
	mock.ExpectQuery("INSERT INTO notes (.+) ON CONFLICT \\(workspace_id\\) DO NOTHING").
		WithArgs(sqlmock.AnyArg(), "ws-1", "draft", "u1").
		WillReturnRows(sqlmock.NewRows(noteCols))

	_, err = repo.Create(context.Background(), "ws-1", "draft", "u1")
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryCompareAndSwap(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectQuery("UPDATE notes SET (.+) WHERE workspace_id = \\$3 AND version = \\$4").
		WithArgs("new content", "u1", "ws-1", 3).
		WillReturnRows(noteRow("n-1", "ws-1", "new content", 4, "u1"))

	n, err := repo.CompareAndSwap(context.Background(), "ws-1", "new content", 3, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, n.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryCompareAndSwapStaleVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	// Version predicate matched nothing: the caller's version is stale.
	mock.ExpectQuery("UPDATE notes SET (.+) WHERE workspace_id = \\$3 AND version = \\$4").
		WithArgs("new content", "u1", "ws-1", 2).
		WillReturnRows(sqlmock.NewRows(noteCols))

	_, err = repo.CompareAndSwap(context.Background(), "ws-1", "new content", 2, "u1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryForceUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectQuery("UPDATE notes SET (.+) WHERE workspace_id = \\$3 RETURNING").
		WithArgs("anything", "u2", "ws-1").
		WillReturnRows(noteRow("n-1", "ws-1", "anything", 8, "u2"))

	n, err := repo.ForceUpdate(context.Background(), "ws-1", "anything", "u2")
	require.NoError(t, err)
	assert.Equal(t, 8, n.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
