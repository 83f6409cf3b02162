package router

import (
	"database/sql"
	"net/http"
	"os"

	"github.com/covestack/covestack/internal/auth"
	"github.com/covestack/covestack/internal/code"
	"github.com/covestack/covestack/internal/files"
	"github.com/covestack/covestack/internal/githubsync"
	"github.com/covestack/covestack/internal/health"
	"github.com/covestack/covestack/internal/invites"
	"github.com/covestack/covestack/internal/notes"
	"github.com/covestack/covestack/internal/tasks"
	"github.com/covestack/covestack/internal/workspace"
	"github.com/covestack/covestack/middleware"
	"github.com/covestack/covestack/pkg/metrics"
	"github.com/covestack/covestack/socket"
)

func Setup(db *sql.DB, hub *socket.Hub, snapshots *code.Store, storage *files.Storage) http.Handler {
	mux := http.NewServeMux()

	wsRepo := workspace.NewRepository(db)
	guard := workspace.NewGuard(wsRepo)
	wsHandler := workspace.NewHandler(workspace.NewService(wsRepo), hub)

	noteHandler := notes.NewHandler(notes.NewService(notes.NewPostgresRepository(db), hub))
	taskHandler := tasks.NewHandler(tasks.NewRepository(db), wsRepo)
	fileHandler := files.NewHandler(files.NewRepository(db), storage, wsRepo)
	codeHandler := code.NewHandler(snapshots)
	authHandler := auth.NewHandler(auth.NewRepository(db))
	inviteHandler := invites.NewHandler(db, invites.NewMailerFromEnv())
	githubHandler := githubsync.NewHandler(githubsync.NewService(os.Getenv("GITHUB_TOKEN")))
	healthHandler := health.NewHandler(db, snapshots)

	authed := middleware.AuthMiddleware
	viewer := guard.Require(workspace.RoleViewer)
	editor := guard.Require(workspace.RoleEditor)
	admin := guard.Require(workspace.RoleAdmin)
	owner := guard.Require(workspace.RoleOwner)

	// WebSocket: join a workspace room for live notes and presence.
	mux.Handle("GET /ws", authed(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := middleware.UserFrom(r.Context())
		socket.ServeWs(hub, w, r, user.ID)
	})))

	// Auth
	mux.HandleFunc("POST /auth/passcode", authHandler.Passcode)
	mux.HandleFunc("GET /auth/me", authHandler.Me)
	mux.HandleFunc("POST /auth/signout", authHandler.Signout)
	mux.HandleFunc("GET /auth/google/start", authHandler.GoogleStart)
	mux.HandleFunc("GET /auth/google/callback", authHandler.GoogleCallback)

	// Workspaces and members
	mux.Handle("GET /workspaces", authed(http.HandlerFunc(wsHandler.List)))
	mux.Handle("POST /workspaces", authed(http.HandlerFunc(wsHandler.Create)))
	mux.Handle("GET /workspaces/{id}", viewer(http.HandlerFunc(wsHandler.Get)))
	mux.Handle("PATCH /workspaces/{id}", admin(http.HandlerFunc(wsHandler.Update)))
	mux.Handle("DELETE /workspaces/{id}", owner(http.HandlerFunc(wsHandler.Delete)))
	mux.Handle("POST /workspaces/{id}/members", admin(http.HandlerFunc(wsHandler.AddMember)))
	mux.Handle("DELETE /workspaces/{id}/members/{userId}", admin(http.HandlerFunc(wsHandler.RemoveMember)))

	// Notes: ETag-based optimistic concurrency
	mux.Handle("GET /workspaces/{id}/notes", viewer(http.HandlerFunc(noteHandler.GetNotes)))
	mux.Handle("PUT /workspaces/{id}/notes", editor(http.HandlerFunc(noteHandler.SaveNotes)))

	// Tasks; the /tasks/{id} routes resolve their workspace in the handler
	mux.Handle("GET /workspaces/{id}/tasks", viewer(http.HandlerFunc(taskHandler.List)))
	mux.Handle("POST /workspaces/{id}/tasks", editor(http.HandlerFunc(taskHandler.Create)))
	mux.Handle("PATCH /tasks/{id}", http.HandlerFunc(taskHandler.Update))
	mux.Handle("DELETE /tasks/{id}", http.HandlerFunc(taskHandler.Delete))

	// Files; download/delete check membership against the file's workspace
	mux.Handle("GET /workspaces/{workspaceId}/files", viewer(http.HandlerFunc(fileHandler.List)))
	mux.Handle("POST /workspaces/{id}/files", editor(http.HandlerFunc(fileHandler.Create)))
	mux.Handle("GET /files/{id}", http.HandlerFunc(fileHandler.Download))
	mux.Handle("DELETE /files/{id}", http.HandlerFunc(fileHandler.Delete))

	// Ephemeral code snapshots
	mux.Handle("GET /code/{workspaceId}", authed(http.HandlerFunc(codeHandler.Get)))
	mux.Handle("PUT /code/{workspaceId}", authed(http.HandlerFunc(codeHandler.Put)))

	// Integrations
	mux.Handle("POST /invites/send", authed(http.HandlerFunc(inviteHandler.Send)))
	mux.Handle("POST /github/push", authed(http.HandlerFunc(githubHandler.Push)))

	// Operational
	mux.HandleFunc("GET /health", healthHandler.Ping)
	mux.HandleFunc("GET /healthz", healthHandler.Deep)
	mux.Handle("GET /metrics", metrics.Handler())

	return middleware.CORSMiddleware(mux)
}
