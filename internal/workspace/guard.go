package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/covestack/covestack/middleware"
	"github.com/covestack/covestack/pkg/logger"
)

type roleContextKey string

const memberRoleKey roleContextKey = "memberRole"

// RoleFrom returns the caller's role in the guarded workspace, as stored by
// Guard.Require.
func RoleFrom(ctx context.Context) (Role, bool) {
	role, ok := ctx.Value(memberRoleKey).(Role)
	return role, ok
}

// Guard authenticates the caller and checks workspace membership rank.
type Guard struct {
	Repo *Repository
}

func NewGuard(repo *Repository) *Guard {
	return &Guard{Repo: repo}
}

// Require wraps a handler for a route with an {id} or {workspaceId} path
// segment. 401 without a valid session, 403 for non-members or insufficient
// rank. On success the user and their role land in the request context.
func (g *Guard) Require(required Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := middleware.VerifyToken(middleware.TokenFromRequest(r))
			if err != nil {
				writeMessage(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			workspaceID := r.PathValue("id")
			if workspaceID == "" {
				workspaceID = r.PathValue("workspaceId")
			}
			if workspaceID == "" {
				writeMessage(w, http.StatusBadRequest, "Missing workspace id")
				return
			}

			role, err := g.Repo.GetMemberRole(r.Context(), workspaceID, user.ID)
			if errors.Is(err, ErrNotMember) {
				writeMessage(w, http.StatusForbidden, "Not a member of this workspace")
				return
			}
			if err != nil {
				logger.Sugar.Errorf("Membership lookup failed: %v", err)
				writeMessage(w, http.StatusInternalServerError, "Database error")
				return
			}
			if !role.Meets(required) {
				writeMessage(w, http.StatusForbidden, "Insufficient role")
				return
			}

			ctx := middleware.WithUser(r.Context(), user)
			ctx = context.WithValue(ctx, memberRoleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeMessage(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
