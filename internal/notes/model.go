package notes

import (
	"fmt"
	"time"
)

// Note is the single shared document of a workspace. Version starts at 1 and
// moves up by exactly one on every accepted write.
type Note struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	Content     string    `json:"content"`
	Version     int       `json:"version"`
	UpdatedAt   time.Time `json:"updatedAt"`
	UpdatedByID string    `json:"updatedById,omitempty"`
}

// SaveNoteRequest is the PUT body. Version, when present, is the optimistic
// lock the client read; the If-Match header takes precedence over it.
type SaveNoteRequest struct {
	Content string `json:"content"`
	Version *int   `json:"version,omitempty"`
}

// ConflictError reports a rejected write: the client's expected version no
// longer matches. Current carries the untouched server note so the caller
// can reconcile without a second fetch.
type ConflictError struct {
	Expected int
	Current  *Note
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict: expected %d, current %d", e.Expected, e.Current.Version)
}
