package socket

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/covestack/covestack/pkg/logger"
	"github.com/covestack/covestack/pkg/metrics"
	"github.com/gorilla/websocket"
)

const (
	UpdateType         = "UPDATE"          // Accepted note write (content + version)
	CursorType         = "CURSOR"          // User moved their cursor
	JoinType           = "JOIN"            // User opened the workspace notes
	LeaveType          = "LEAVE"           // User closed the tab
	PresenceUpdateType = "PRESENCE_UPDATE" // A user joined or left
	MetadataType       = "METADATA"        // Workspace name/info
)

type WSMessage struct {
	Type        string          `json:"type"`
	WorkspaceID string          `json:"workspace_id"`
	UserID      string          `json:"user_id"`
	Payload     json.RawMessage `json:"payload"`
}

// NotePayload is what UPDATE messages and the initial join message carry.
type NotePayload struct {
	Content string `json:"content"`
	Version int    `json:"version"`
}

type UserStatus struct {
	UserID    string    `json:"user_id"`
	CursorPos int       `json:"cursor_pos"`
	LastSeen  time.Time `json:"last_seen"`
}

// Hub fans messages out to per-workspace rooms. It never writes note state:
// all note mutations go through the REST conditional-update path, which
// publishes the accepted result here.
type Hub struct {
	Rooms      map[string]map[*Client]bool
	Broadcast  chan WSMessage
	Register   chan *Client
	Unregister chan *Client
	db         *sql.DB

	// Latest accepted note per open room, so late joiners get the current
	// state without a database read.
	noteCache map[string]NotePayload
	mu        sync.Mutex
	Presence  map[string]map[string]UserStatus // workspaceID -> userID -> status
}

type Client struct {
	Hub         *Hub
	Conn        *websocket.Conn
	WorkspaceID string
	UserID      string
	Send        chan []byte
	Role        string
	Workspace   string // workspace display name
}

func NewHub(db *sql.DB) *Hub {
	return &Hub{
		Rooms:      make(map[string]map[*Client]bool),
		Broadcast:  make(chan WSMessage),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		db:         db,
		noteCache:  make(map[string]NotePayload),
		Presence:   make(map[string]map[string]UserStatus),
	}
}

// PublishNoteUpdate is called by the notes service after an accepted write.
// Passing an empty editorID delivers the update to every room member.
func (h *Hub) PublishNoteUpdate(workspaceID, editorID, content string, version int) {
	payload, err := json.Marshal(NotePayload{Content: content, Version: version})
	if err != nil {
		return
	}
	h.Broadcast <- WSMessage{
		Type:        UpdateType,
		WorkspaceID: workspaceID,
		UserID:      editorID,
		Payload:     payload,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if h.Rooms[client.WorkspaceID] == nil {
				h.Rooms[client.WorkspaceID] = make(map[*Client]bool)
				h.Presence[client.WorkspaceID] = make(map[string]UserStatus)

				// First member of the room: load the current note.
				var note NotePayload
				err := h.db.QueryRow("SELECT content, version FROM notes WHERE workspace_id = $1", client.WorkspaceID).
					Scan(&note.Content, &note.Version)
				if err != nil {
					// No note yet; the first REST read will create it at v1.
					note = NotePayload{Content: "", Version: 1}
				}
				h.noteCache[client.WorkspaceID] = note
			}
			h.Rooms[client.WorkspaceID][client] = true
			h.Presence[client.WorkspaceID][client.UserID] = UserStatus{UserID: client.UserID, LastSeen: time.Now()}
			current := h.noteCache[client.WorkspaceID]
			h.mu.Unlock()
			metrics.SocketClients.Inc()

			// Bring the new client up to date before anything else.
			notePayload, _ := json.Marshal(current)
			initialMsg, _ := json.Marshal(WSMessage{Type: UpdateType, WorkspaceID: client.WorkspaceID, Payload: notePayload})
			client.Send <- initialMsg

			metaPayload, _ := json.Marshal(map[string]string{"name": client.Workspace})
			metaMsg, _ := json.Marshal(WSMessage{Type: MetadataType, WorkspaceID: client.WorkspaceID, UserID: client.UserID, Payload: metaPayload})
			client.Send <- metaMsg

			h.broadcastPresenceUpdate(client.WorkspaceID)

		case client := <-h.Unregister:
			h.mu.Lock()
			workspaceID := client.WorkspaceID
			if _, ok := h.Rooms[workspaceID][client]; ok {
				delete(h.Rooms[workspaceID], client)
				delete(h.Presence[workspaceID], client.UserID)
				close(client.Send)
				metrics.SocketClients.Dec()

				if len(h.Rooms[workspaceID]) == 0 {
					delete(h.Rooms, workspaceID)
					delete(h.Presence, workspaceID)
					delete(h.noteCache, workspaceID)
					logger.Sugar.Infof("Closed empty room for workspace %s", workspaceID)
				}
			}
			h.mu.Unlock()

			if h.Rooms[workspaceID] != nil {
				h.broadcastPresenceUpdate(workspaceID)
			}

		case msg := <-h.Broadcast:
			h.mu.Lock()
			if msg.Type == UpdateType {
				var note NotePayload
				if err := json.Unmarshal(msg.Payload, &note); err == nil {
					if _, open := h.Rooms[msg.WorkspaceID]; open {
						h.noteCache[msg.WorkspaceID] = note
					}
				}
			}

			payload, err := json.Marshal(msg)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
				h.mu.Unlock()
				continue
			}

			// Everyone in the room except the sender; copy the list so the
			// lock is not held during channel sends.
			clientsToSend := make([]*Client, 0, len(h.Rooms[msg.WorkspaceID]))
			for client := range h.Rooms[msg.WorkspaceID] {
				if client.UserID != msg.UserID {
					clientsToSend = append(clientsToSend, client)
				}
			}
			h.mu.Unlock()

			for _, client := range clientsToSend {
				select {
				case client.Send <- payload:
				default:
					// Send buffer full: the client is lagging, drop it so the
					// hub never blocks.
					logger.Sugar.Warnf("Client %s send buffer full, unregistering", client.UserID)
					h.Unregister <- client
				}
			}
		}
	}
}

// DisconnectWorkspace drops the room for a deleted workspace and closes its
// client connections.
func (h *Hub) DisconnectWorkspace(workspaceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.noteCache, workspaceID)
	delete(h.Presence, workspaceID)

	if clients, ok := h.Rooms[workspaceID]; ok {
		for client := range clients {
			client.Conn.Close() // readPump exits and unregisters
		}
		delete(h.Rooms, workspaceID)
	}
}

func (h *Hub) broadcastPresenceUpdate(workspaceID string) {
	var userStatuses []UserStatus
	var clientsToSend []*Client

	h.mu.Lock()
	if _, ok := h.Presence[workspaceID]; ok {
		userStatuses = make([]UserStatus, 0, len(h.Presence[workspaceID]))
		for _, status := range h.Presence[workspaceID] {
			userStatuses = append(userStatuses, status)
		}
		clientsToSend = make([]*Client, 0, len(h.Rooms[workspaceID]))
		for client := range h.Rooms[workspaceID] {
			clientsToSend = append(clientsToSend, client)
		}
	}
	h.mu.Unlock()

	payload, err := json.Marshal(userStatuses)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling presence payload: %v", err)
		return
	}
	msg, err := json.Marshal(WSMessage{Type: PresenceUpdateType, WorkspaceID: workspaceID, Payload: payload})
	if err != nil {
		return
	}

	for _, client := range clientsToSend {
		select {
		case client.Send <- msg:
		default:
		}
	}
}
