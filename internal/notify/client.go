package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512KB
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict origins once the web client's domain is fixed
		return true
	},
}

// Client is one websocket connection of one user.
type Client struct {
	id     string
	userID string
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
}

// inboundMessage is what clients send: a chat line addressed at a workflow.
type inboundMessage struct {
	WorkflowID string `json:"workflowId"`
	Message    string `json:"message"`
}

// outboundError is pushed back when an inbound message is rejected.
type outboundError struct {
	WorkflowID string `json:"workflowId"`
	Error      string `json:"error"`
}

// Serve upgrades the request and runs the connection until either side
// closes it.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &Client{
		id:     uuid.New().String(),
		userID: userID,
		hub:    h,
		conn:   conn,
		send:   make(chan Message, 64),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
	return nil
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("websocket read failed", "socketId", c.id, "error", err)
			}
			break
		}
		c.handleInbound(data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleInbound(data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.hub.logger.Warn("unparseable client message", "socketId", c.id, "error", err)
		return
	}
	if msg.WorkflowID == "" || msg.Message == "" {
		return
	}

	if c.hub.onInteract == nil {
		return
	}
	if err := c.hub.onInteract(context.Background(), msg.WorkflowID, c.userID, msg.Message); err != nil {
		c.hub.logger.Debug("interact message rejected",
			"workflowId", msg.WorkflowID, "userId", c.userID, "error", err)
		select {
		case c.send <- Message{
			Type:      "error",
			Data:      outboundError{WorkflowID: msg.WorkflowID, Error: err.Error()},
			Timestamp: time.Now(),
		}:
		default:
		}
	}
}
