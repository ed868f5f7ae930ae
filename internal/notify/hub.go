// Package notify pushes engine output to connected chat clients over
// websockets. The hub owns the in-process connections; cross-instance
// presence lives in redis so any instance can tell whether a user is
// reachable at all.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/flowgrid-go/internal/domain/workflow"
	"github.com/flowgrid-go/pkg/apperr"
	"github.com/flowgrid-go/pkg/logger"
)

// Message is the wire envelope pushed to clients.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

const (
	// MessageTypeNodeOutput carries execution output back to the user.
	MessageTypeNodeOutput = "node_output"

	// MessageTypeWorkflowStatus announces a lifecycle change of a workflow
	// the user can talk to.
	MessageTypeWorkflowStatus = "workflow_status"
)

// InteractHandler receives inbound chat messages. Wired to the trigger
// listener registry.
type InteractHandler func(ctx context.Context, workflowID, userID, message string) error

type Hub struct {
	presence   *Presence
	onInteract InteractHandler
	logger     logger.Logger

	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	clients map[string]*Client          // by socket id
	users   map[string]map[string]bool  // user id -> socket ids
}

func NewHub(presence *Presence, onInteract InteractHandler, log logger.Logger) *Hub {
	return &Hub{
		presence:   presence,
		onInteract: onInteract,
		logger:     log,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string]*Client),
		users:      make(map[string]map[string]bool),
	}
}

// Run drives registration until the context ends, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.registerClient(ctx, client)
		case client := <-h.unregister:
			h.unregisterClient(ctx, client)
		}
	}
}

func (h *Hub) registerClient(ctx context.Context, client *Client) {
	h.mu.Lock()
	h.clients[client.id] = client
	if h.users[client.userID] == nil {
		h.users[client.userID] = make(map[string]bool)
	}
	h.users[client.userID][client.id] = true
	h.mu.Unlock()

	if err := h.presence.Connect(ctx, client.userID, client.id); err != nil {
		h.logger.Warn("failed to record presence", "userId", client.userID, "error", err)
	}
	h.logger.Info("client connected", "socketId", client.id, "userId", client.userID)
}

func (h *Hub) unregisterClient(ctx context.Context, client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.id]; ok {
		delete(h.clients, client.id)
		close(client.send)
		if sockets := h.users[client.userID]; sockets != nil {
			delete(sockets, client.id)
			if len(sockets) == 0 {
				delete(h.users, client.userID)
			}
		}
	}
	h.mu.Unlock()

	if err := h.presence.Disconnect(ctx, client.userID, client.id); err != nil {
		h.logger.Warn("failed to clear presence", "userId", client.userID, "error", err)
	}
	h.logger.Info("client disconnected", "socketId", client.id, "userId", client.userID)
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.send)
		delete(h.clients, id)
	}
	h.users = make(map[string]map[string]bool)
}

// SendToUser delivers a payload to every open connection of the user. It is
// the responder's chat channel.
func (h *Hub) SendToUser(ctx context.Context, userID string, payload interface{}) error {
	msg := Message{Type: MessageTypeNodeOutput, Data: payload, Timestamp: time.Now()}
	if h.deliver(userID, msg) {
		return nil
	}

	online, err := h.presence.IsConnected(ctx, userID)
	if err != nil {
		return apperr.External("failed to check user presence", "notify.Hub.SendToUser", err)
	}
	if !online {
		return apperr.NotFound("user has no active connection", "notify.Hub.SendToUser")
	}
	// Connected to another instance. Single-instance deployments never get
	// here; fan-out across instances is the gateway's concern.
	h.logger.Debug("user connected elsewhere", "userId", userID)
	return nil
}

// UpdateInteractStatus announces a workflow lifecycle change to its owner.
func (h *Hub) UpdateInteractStatus(ctx context.Context, userID, workflowID string, status workflow.Status) error {
	msg := Message{
		Type: MessageTypeWorkflowStatus,
		Data: map[string]interface{}{
			"workflowId": workflowID,
			"status":     status,
		},
		Timestamp: time.Now(),
	}
	h.deliver(userID, msg)
	return nil
}

// deliver fans a message out to the user's local connections. Slow clients
// drop messages rather than block the engine.
func (h *Hub) deliver(userID string, msg Message) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sockets := h.users[userID]
	delivered := false
	for id := range sockets {
		client, ok := h.clients[id]
		if !ok {
			continue
		}
		select {
		case client.send <- msg:
			delivered = true
		default:
			h.logger.Warn("message dropped for slow client", "socketId", id, "userId", userID)
		}
	}
	return delivered
}
