// Package http exposes the engine over REST and websockets: workflow CRUD
// and lifecycle, inbound webhook traffic, chat connections.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flowgrid-go/internal/domain/workflow"
	"github.com/flowgrid-go/internal/engine"
	"github.com/flowgrid-go/internal/engine/listener"
	"github.com/flowgrid-go/internal/engine/responder"
	"github.com/flowgrid-go/internal/notify"
	"github.com/flowgrid-go/pkg/apperr"
	"github.com/flowgrid-go/pkg/logger"
)

// Repository is the persistence surface the REST handlers need on top of
// what the engine facade already covers.
type Repository interface {
	CreateWorkflow(ctx context.Context, wf *workflow.Workflow) error
	GetWorkflow(ctx context.Context, workflowID string) (*workflow.Workflow, error)
	ListWorkflows(ctx context.Context, userID string) ([]workflow.Workflow, error)
}

// Handlers binds the engine facade to gin.
type Handlers struct {
	service      *engine.Service
	repo         Repository
	listeners    *listener.Registry
	pending      *responder.PendingReplies
	hub          *notify.Hub
	replyTimeout time.Duration
	logger       logger.Logger
}

func NewHandlers(
	service *engine.Service,
	repo Repository,
	listeners *listener.Registry,
	pending *responder.PendingReplies,
	hub *notify.Hub,
	replyTimeout time.Duration,
	log logger.Logger,
) *Handlers {
	if replyTimeout == 0 {
		replyTimeout = 25 * time.Second
	}
	return &Handlers{
		service:      service,
		repo:         repo,
		listeners:    listeners,
		pending:      pending,
		hub:          hub,
		replyTimeout: replyTimeout,
		logger:       log,
	}
}

// respond maps the error taxonomy onto HTTP statuses and always emits the
// uniform result shape.
func respond(c *gin.Context, value interface{}, err error) {
	if err == nil {
		c.JSON(http.StatusOK, apperr.OKResult(value))
		return
	}
	c.JSON(statusFor(err), apperr.ErrResult(err))
}

func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type createWorkflowRequest struct {
	Name     string                   `json:"name" binding:"required"`
	Nodes    []workflow.Node          `json:"nodes"`
	Edges    []workflow.Edge          `json:"edges"`
	Settings workflow.GeneralSettings `json:"generalSettings"`
}

func (h *Handlers) CreateWorkflow(c *gin.Context) {
	var req createWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, nil, apperr.Validation("invalid workflow payload", "http.CreateWorkflow"))
		return
	}

	wf := workflow.NewWorkflow(req.Name, userID(c))
	wf.Nodes = req.Nodes
	wf.Edges = req.Edges
	wf.Settings = req.Settings

	if err := h.repo.CreateWorkflow(c.Request.Context(), wf); err != nil {
		respond(c, nil, err)
		return
	}
	respond(c, wf, nil)
}

func (h *Handlers) ListWorkflows(c *gin.Context) {
	wfs, err := h.repo.ListWorkflows(c.Request.Context(), userID(c))
	respond(c, wfs, err)
}

func (h *Handlers) GetWorkflow(c *gin.Context) {
	wf, err := h.repo.GetWorkflow(c.Request.Context(), c.Param("id"))
	if err == nil && wf.UserID != userID(c) {
		err = apperr.NotFound("workflow not found", "http.GetWorkflow")
	}
	if err != nil {
		respond(c, nil, err)
		return
	}
	respond(c, wf, nil)
}

func (h *Handlers) ActivateWorkflow(c *gin.Context) {
	err := h.service.Activate(c.Request.Context(), c.Param("id"), userID(c))
	respond(c, gin.H{"status": workflow.StatusLive}, err)
}

func (h *Handlers) TerminateWorkflow(c *gin.Context) {
	err := h.service.Terminate(c.Request.Context(), c.Param("id"), userID(c))
	respond(c, gin.H{"status": workflow.StatusInactive}, err)
}

type interactRequest struct {
	Message string `json:"message" binding:"required"`
}

// Interact is the REST alternative to the websocket channel: fire the
// workflow's interact trigger with one message. Replies arrive over the
// websocket, so the immediate response only acknowledges admission.
func (h *Handlers) Interact(c *gin.Context) {
	var req interactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, nil, apperr.Validation("message is required", "http.Interact"))
		return
	}

	err := h.listeners.HandleInteractEvent(c.Request.Context(), c.Param("id"), userID(c), req.Message)
	respond(c, gin.H{"accepted": true}, err)
}

// VerifyWebhook is the GET half of a webhook subscription handshake.
func (h *Handlers) VerifyWebhook(c *gin.Context) {
	challenge, err := h.listeners.VerifyWebhook(
		c.Param("path"),
		c.Query("mode"),
		c.Query("verifyToken"),
		c.Query("challenge"),
	)
	if err != nil {
		respond(c, nil, err)
		return
	}
	c.String(http.StatusOK, challenge)
}

// ReceiveWebhook accepts an inbound event, fires the bound workflow and
// waits a bounded time for a synchronous reply. When the execution outlives
// the wait the caller gets a 202 and the outcome lands in the workflow
// report.
func (h *Handlers) ReceiveWebhook(c *gin.Context) {
	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respond(c, nil, apperr.Validation("body must be a JSON object", "http.ReceiveWebhook"))
		return
	}

	requestID := uuid.New().String()
	replyCh := h.pending.Register(requestID)
	defer h.pending.Reject(requestID)

	err := h.listeners.HandleWebhookEvent(c.Request.Context(), c.Param("path"), requestID, payload, "json")
	if err != nil {
		respond(c, nil, err)
		return
	}

	select {
	case reply := <-replyCh:
		respond(c, gin.H{"format": reply.Format, "content": reply.Content}, nil)
	case <-time.After(h.replyTimeout):
		c.JSON(http.StatusAccepted, apperr.OKResult(gin.H{"accepted": true, "requestId": requestID}))
	case <-c.Request.Context().Done():
		// client went away; the execution carries on
	}
}

// ServeWS upgrades a chat connection for the calling user.
func (h *Handlers) ServeWS(c *gin.Context) {
	if err := h.hub.Serve(c.Writer, c.Request, userID(c)); err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
	}
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func userID(c *gin.Context) string {
	return c.GetString(contextUserKey)
}
