package notification

import (
	"encoding/json"
	"net/http"
	"time"

	"hms-backend/internal/access"
	"hms-backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	clientBuffer = 64
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
)

// ClientMessage is an inbound request from a websocket client
type ClientMessage struct {
	Action string `json:"action"`
	UserID uint   `json:"user_id"`
}

// Authenticator resolves a bearer token to the current actor
type Authenticator func(token string) (access.Actor, error)

// WebSocketHandler upgrades authenticated requests and routes room joins
type WebSocketHandler struct {
	hub      *Hub
	auth     Authenticator
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a handler. allowedOrigins limits browser origins;
// an empty list accepts any origin.
func NewWebSocketHandler(hub *Hub, auth Authenticator, allowedOrigins []string, log *zap.Logger) *WebSocketHandler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}
	return &WebSocketHandler{
		hub:  hub,
		auth: auth,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(origins) == 0 {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
	}
}

// Connect handles GET /ws?token=<jwt>
func (h *WebSocketHandler) Connect(c *gin.Context) {
	actor, err := h.auth(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid or missing token"})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(uuid.New().String(), clientBuffer)
	h.hub.Register(client)
	h.log.Debug("Websocket connected", zap.String("client_id", client.ID), zap.Uint("user_id", actor.UserID))

	go h.writePump(client, ws)
	go h.readPump(client, ws, actor)
}

// HandleMessage applies a client request. Joining another user's room or the
// pharmacy room without a pharmacy-facing role is refused.
func (h *WebSocketHandler) HandleMessage(client *Client, actor access.Actor, msg ClientMessage) bool {
	switch msg.Action {
	case "join_user_room":
		if msg.UserID != actor.UserID {
			return false
		}
		h.hub.Join(client, UserRoom(actor.UserID))
		return true
	case "join_pharmacy_room":
		if actor.Role != models.RoleMedicalShop && actor.Role != models.RoleAdmin {
			return false
		}
		h.hub.Join(client, TopicPharmacyQueue)
		return true
	}
	return false
}

func (h *WebSocketHandler) readPump(client *Client, ws *websocket.Conn, actor access.Actor) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
	}()

	ws.SetReadLimit(4096)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if !h.HandleMessage(client, actor, msg) {
			h.log.Debug("Websocket request refused",
				zap.String("client_id", client.ID),
				zap.String("action", msg.Action),
			)
		}
	}
}

func (h *WebSocketHandler) writePump(client *Client, ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
