package workspace

import (
	"encoding/json"
	"time"
)

// Role ranks: VIEWER < EDITOR < ADMIN < OWNER.
type Role string

const (
	RoleViewer Role = "VIEWER"
	RoleEditor Role = "EDITOR"
	RoleAdmin  Role = "ADMIN"
	RoleOwner  Role = "OWNER"
)

var rank = map[Role]int{
	RoleViewer: 0,
	RoleEditor: 1,
	RoleAdmin:  2,
	RoleOwner:  3,
}

// Meets reports whether r carries at least the standing of required.
func (r Role) Meets(required Role) bool {
	return rank[r] >= rank[required]
}

func (r Role) Valid() bool {
	_, ok := rank[r]
	return ok
}

type Workspace struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	OwnerID     string     `json:"ownerId"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type Member struct {
	WorkspaceID string    `json:"workspaceId"`
	UserID      string    `json:"userId"`
	Role        Role      `json:"role"`
	Email       string    `json:"email,omitempty"`
	Name        string    `json:"name,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// WorkspaceDetail is a workspace plus its member list.
type WorkspaceDetail struct {
	Workspace
	Members []Member `json:"members"`
}

type CreateWorkspaceRequest struct {
	Name        string     `json:"name" validate:"required,min=1"`
	Description string     `json:"description"`
	Deadline    *time.Time `json:"deadline"`
}

type UpdateWorkspaceRequest struct {
	Name        *string      `json:"name" validate:"omitempty,min=1"`
	Description *string      `json:"description"`
	Deadline    NullableTime `json:"deadline"`
}

type AddMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  Role   `json:"role"`
}

// NullableTime distinguishes "absent" from an explicit null, so PATCH can
// clear a deadline.
type NullableTime struct {
	Set   bool
	Value *time.Time
}

func (t *NullableTime) UnmarshalJSON(data []byte) error {
	t.Set = true
	if string(data) == "null" {
		t.Value = nil
		return nil
	}
	return json.Unmarshal(data, &t.Value)
}
