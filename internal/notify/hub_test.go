package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid-go/internal/domain/workflow"
	"github.com/flowgrid-go/pkg/apperr"
	"github.com/flowgrid-go/pkg/logger"
)

func newPresence(t *testing.T) *Presence {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewPresence(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestPresenceLifecycle(t *testing.T) {
	p := newPresence(t)
	ctx := context.Background()

	online, err := p.IsConnected(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, online)

	require.NoError(t, p.Connect(ctx, "user-1", "sock-1"))
	require.NoError(t, p.Connect(ctx, "user-1", "sock-2"))

	online, err = p.IsConnected(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, online)

	require.NoError(t, p.Disconnect(ctx, "user-1", "sock-1"))
	online, err = p.IsConnected(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, online)

	require.NoError(t, p.Disconnect(ctx, "user-1", "sock-2"))
	online, err = p.IsConnected(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, online)
}

type interactRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *interactRecorder) handle(ctx context.Context, workflowID, userID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, workflowID+"/"+userID+"/"+message)
	return nil
}

func dialHub(t *testing.T, hub *Hub, userID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.Serve(w, r, userID); err != nil {
			t.Errorf("serve failed: %v", err)
		}
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubDeliversToUser(t *testing.T) {
	p := newPresence(t)
	hub := NewHub(p, nil, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialHub(t, hub, "user-1")

	require.Eventually(t, func() bool {
		online, err := p.IsConnected(ctx, "user-1")
		return err == nil && online
	}, time.Second, 10*time.Millisecond)

	err := hub.SendToUser(ctx, "user-1", map[string]interface{}{"content": "done"})
	require.NoError(t, err)

	var msg Message
	conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeNodeOutput, msg.Type)
	data := msg.Data.(map[string]interface{})
	assert.Equal(t, "done", data["content"])
}

func TestHubSendToOfflineUser(t *testing.T) {
	p := newPresence(t)
	hub := NewHub(p, nil, logger.NewNop())

	err := hub.SendToUser(context.Background(), "nobody", "hi")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestHubRoutesInboundInteract(t *testing.T) {
	p := newPresence(t)
	rec := &interactRecorder{}
	hub := NewHub(p, rec.handle, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialHub(t, hub, "user-1")
	require.NoError(t, conn.WriteJSON(map[string]string{
		"workflowId": "wf-1",
		"message":    "hello",
	}))

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.calls) == 1
	}, time.Second, 10*time.Millisecond)

	rec.mu.Lock()
	assert.Equal(t, "wf-1/user-1/hello", rec.calls[0])
	rec.mu.Unlock()
}

func TestHubStatusUpdate(t *testing.T) {
	p := newPresence(t)
	hub := NewHub(p, nil, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialHub(t, hub, "user-1")
	require.Eventually(t, func() bool {
		online, err := p.IsConnected(ctx, "user-1")
		return err == nil && online
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.UpdateInteractStatus(ctx, "user-1", "wf-1", workflow.StatusLive))

	var msg Message
	conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeWorkflowStatus, msg.Type)
}
