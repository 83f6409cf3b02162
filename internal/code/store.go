package code

import (
	"time"

	"github.com/hashicorp/go-memdb"
)

// CodeFile is one entry in a workspace's scratch code snapshot.
type CodeFile struct {
	Path    string `json:"path" validate:"required,min=1"`
	Content string `json:"content"`
}

// Snapshot is the ephemeral per-workspace code state. It lives in process
// memory only; a restart drops it, like the cache it replaces.
type Snapshot struct {
	WorkspaceID string     `json:"-"`
	Files       []CodeFile `json:"files"`
	UpdatedAt   *time.Time `json:"updatedAt"`
}

const tableSnapshot = "snapshot"

// Store holds snapshots in a transactional in-memory database.
type Store struct {
	db *memdb.MemDB
}

func NewStore() (*Store, error) {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableSnapshot: {
				Name: tableSnapshot,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "WorkspaceID"},
					},
				},
			},
		},
	}
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Get returns the snapshot for a workspace, or an empty one when none was
// ever saved.
func (s *Store) Get(workspaceID string) (*Snapshot, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableSnapshot, "id", workspaceID)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return &Snapshot{WorkspaceID: workspaceID, Files: []CodeFile{}}, nil
	}
	return raw.(*Snapshot), nil
}

// Put replaces the snapshot for a workspace.
func (s *Store) Put(workspaceID string, codeFiles []CodeFile) (*Snapshot, error) {
	now := time.Now().UTC()
	snap := &Snapshot{WorkspaceID: workspaceID, Files: codeFiles, UpdatedAt: &now}

	txn := s.db.Txn(true)
	if err := txn.Insert(tableSnapshot, snap); err != nil {
		txn.Abort()
		return nil, err
	}
	txn.Commit()
	return snap, nil
}

// Ping reports whether the store is usable; used by the deep health check.
func (s *Store) Ping() bool {
	txn := s.db.Txn(false)
	defer txn.Abort()
	_, err := txn.First(tableSnapshot, "id", "")
	return err == nil
}
