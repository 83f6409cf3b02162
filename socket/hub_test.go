package socket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to read messages from a WebSocket connection with a timeout.
func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	var msg WSMessage
	// Set a deadline to avoid tests hanging forever.
	conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	_, p, err := conn.ReadMessage()
	require.NoError(t, err, "Failed to read message from WebSocket")
	err = json.Unmarshal(p, &msg)
	require.NoError(t, err, "Failed to unmarshal WSMessage JSON")
	return msg
}

func TestHubIntegration(t *testing.T) {
	// 1. Setup Mock DB and Hub
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	hub := NewHub(db)
	go hub.Run()

	// 2. Setup Test HTTP Server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// For simplicity, we'll hardcode the user ID for tests.
		userID := r.URL.Query().Get("user_id")
		ServeWs(hub, w, r, userID)
	}))
	defer server.Close()

	// Convert http:// to ws://
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	// --- Test Scenario ---

	workspaceID := "ws-1"
	membershipQuery := "SELECT m.role, w.name FROM members m JOIN workspaces w"

	// Client 1: membership check, then the note load for the new room.
	mock.ExpectQuery(membershipQuery).
		WithArgs(workspaceID, "user1").
		WillReturnRows(sqlmock.NewRows([]string{"role", "name"}).AddRow("OWNER", "Launch Plan"))
	mock.ExpectQuery("SELECT content, version FROM notes WHERE workspace_id = \\$1").
		WithArgs(workspaceID).
		WillReturnRows(sqlmock.NewRows([]string{"content", "version"}).AddRow("Hello World", 3))

	// Client 2 joins an already-open room, so only membership is checked.
	mock.ExpectQuery(membershipQuery).
		WithArgs(workspaceID, "user2").
		WillReturnRows(sqlmock.NewRows([]string{"role", "name"}).AddRow("EDITOR", "Launch Plan"))

	// 3. Client 1 Joins
	conn1, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?workspaceId="+workspaceID+"&user_id=user1", nil)
	require.NoError(t, err, "Client 1 failed to connect")
	defer conn1.Close()

	// Client 1 should immediately receive the current note state.
	initialMsg := readMessage(t, conn1)
	assert.Equal(t, UpdateType, initialMsg.Type)
	assert.Equal(t, workspaceID, initialMsg.WorkspaceID)
	var initialNote NotePayload
	require.NoError(t, json.Unmarshal(initialMsg.Payload, &initialNote))
	assert.Equal(t, "Hello World", initialNote.Content)
	assert.Equal(t, 3, initialNote.Version)

	// Followed by the workspace metadata and its own presence update.
	metaMsg := readMessage(t, conn1)
	assert.Equal(t, MetadataType, metaMsg.Type)
	assert.JSONEq(t, `{"name":"Launch Plan"}`, string(metaMsg.Payload))
	_ = readMessage(t, conn1) // PRESENCE_UPDATE for client 1 itself

	// 4. Client 2 Joins the same room
	conn2, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?workspaceId="+workspaceID+"&user_id=user2", nil)
	require.NoError(t, err, "Client 2 failed to connect")
	defer conn2.Close()

	// Client 2 receives its own initial note, metadata and presence messages.
	_ = readMessage(t, conn2)
	_ = readMessage(t, conn2)
	_ = readMessage(t, conn2)

	// Client 1 should receive a presence update about Client 2 joining.
	presenceUpdateMsg := readMessage(t, conn1)
	assert.Equal(t, PresenceUpdateType, presenceUpdateMsg.Type)
	var statuses []UserStatus
	err = json.Unmarshal(presenceUpdateMsg.Payload, &statuses)
	require.NoError(t, err)
	assert.Len(t, statuses, 2, "Should be two users in the room")
	userIDs := []string{statuses[0].UserID, statuses[1].UserID}
	assert.Contains(t, userIDs, "user1")
	assert.Contains(t, userIDs, "user2")

	// 5. Client 2 moves their cursor; Client 1 sees it.
	cursorPayload := `{"cursor_pos":11}`
	msgToSend := WSMessage{
		Type:    CursorType,
		Payload: json.RawMessage(cursorPayload),
	}
	msgBytes, _ := json.Marshal(msgToSend)
	err = conn2.WriteMessage(websocket.TextMessage, msgBytes)
	require.NoError(t, err, "Client 2 failed to send cursor message")

	cursorMsg := readMessage(t, conn1)
	assert.Equal(t, CursorType, cursorMsg.Type)
	assert.Equal(t, "user2", cursorMsg.UserID, "Broadcast message should have correct UserID")
	assert.JSONEq(t, cursorPayload, string(cursorMsg.Payload))

	// 6. An accepted write published by the REST layer reaches Client 1.
	hub.PublishNoteUpdate(workspaceID, "user2", "Hello World!", 4)

	broadcastMsg := readMessage(t, conn1)
	assert.Equal(t, UpdateType, broadcastMsg.Type)
	assert.Equal(t, "user2", broadcastMsg.UserID)
	var updated NotePayload
	require.NoError(t, json.Unmarshal(broadcastMsg.Payload, &updated))
	assert.Equal(t, "Hello World!", updated.Content)
	assert.Equal(t, 4, updated.Version)

	// 7. UPDATE messages sent over the socket itself are dropped.
	noteBytes, _ := json.Marshal(WSMessage{Type: UpdateType, Payload: json.RawMessage(`{"content":"sneaky","version":99}`)})
	require.NoError(t, conn2.WriteMessage(websocket.TextMessage, noteBytes))

	conn1.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err = conn1.ReadMessage()
	assert.Error(t, err, "Socket UPDATE from a client must not be broadcast")

	// Ensure all mock expectations were met.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServeWsRejectsNonMember(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	hub := NewHub(db)

	mock.ExpectQuery("SELECT m.role, w.name FROM members m JOIN workspaces w").
		WithArgs("ws-1", "outsider").
		WillReturnRows(sqlmock.NewRows([]string{"role", "name"}))

	req := httptest.NewRequest(http.MethodGet, "/ws?workspaceId=ws-1", nil)
	rec := httptest.NewRecorder()
	ServeWs(hub, rec, req, "outsider")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServeWsRequiresWorkspaceID(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	ServeWs(NewHub(db), rec, req, "user1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
