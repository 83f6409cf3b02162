package code

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGetMissingReturnsEmptySnapshot(t *testing.T) {
	store, err := NewStore()
	require.NoError(t, err)

	snap, err := store.Get("ws-1")
	require.NoError(t, err)
	assert.Equal(t, "ws-1", snap.WorkspaceID)
	assert.Empty(t, snap.Files)
	assert.Nil(t, snap.UpdatedAt)
}

func TestStorePutReplacesSnapshot(t *testing.T) {
	store, err := NewStore()
	require.NoError(t, err)

	_, err = store.Put("ws-1", []CodeFile{{Path: "main.go", Content: "package main"}})
	require.NoError(t, err)

	snap, err := store.Put("ws-1", []CodeFile{
		{Path: "main.go", Content: "package main\n\nfunc main() {}"},
		{Path: "go.mod", Content: "module scratch"},
	})
	require.NoError(t, err)
	require.NotNil(t, snap.UpdatedAt)

	got, err := store.Get("ws-1")
	require.NoError(t, err)
	assert.Len(t, got.Files, 2)
	assert.Equal(t, "go.mod", got.Files[1].Path)
}

func TestStoreIsolatesWorkspaces(t *testing.T) {
	store, err := NewStore()
	require.NoError(t, err)

	_, err = store.Put("ws-1", []CodeFile{{Path: "a.go", Content: "a"}})
	require.NoError(t, err)

	other, err := store.Get("ws-2")
	require.NoError(t, err)
	assert.Empty(t, other.Files)
}

func TestStorePing(t *testing.T) {
	store, err := NewStore()
	require.NoError(t, err)
	assert.True(t, store.Ping())
}
