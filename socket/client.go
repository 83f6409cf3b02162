package socket

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/covestack/covestack/pkg/logger"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect cross-origin from the SPA dev server.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWs upgrades the connection and joins the caller to the room of the
// workspace given by ?workspaceId=. The caller must already be authenticated;
// membership is checked here so non-members never join a room.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, userID string) {
	workspaceID := r.URL.Query().Get("workspaceId")
	if workspaceID == "" {
		http.Error(w, "Missing workspaceId parameter", http.StatusBadRequest)
		return
	}

	var role, workspaceName string
	err := hub.db.QueryRow(
		`SELECT m.role, w.name FROM members m JOIN workspaces w ON w.id = m.workspace_id
		 WHERE m.workspace_id = $1 AND m.user_id = $2`,
		workspaceID, userID).Scan(&role, &workspaceName)
	if err == sql.ErrNoRows {
		logger.Sugar.Warnf("Connection rejected: user %s is not a member of workspace %s", userID, workspaceID)
		http.Error(w, "Not a member of this workspace", http.StatusForbidden)
		return
	} else if err != nil {
		logger.Sugar.Errorf("Database error checking membership: %v", err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		Hub:         hub,
		Conn:        conn,
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        role,
		Workspace:   workspaceName,
		Send:        make(chan []byte, 256),
	}

	client.Hub.Register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, rawMessage, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(rawMessage, &msg); err != nil {
			logger.Sugar.Errorf("Error unmarshalling message: %v", err)
			continue
		}

		// Overwrite with server-authoritative values to prevent spoofing.
		msg.WorkspaceID = c.WorkspaceID
		msg.UserID = c.UserID

		// Note content never comes in over the socket. Writes go through the
		// conditional-update endpoint, which publishes accepted results.
		if msg.Type == UpdateType {
			logger.Sugar.Warnf("Dropped socket UPDATE from user %s for workspace %s", c.UserID, c.WorkspaceID)
			continue
		}

		c.Hub.Broadcast <- msg
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			c.Conn.WriteMessage(websocket.TextMessage, message)
		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
