package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ai-companion/backend/internal/models"
	apperrors "ai-companion/backend/pkg/errors"
	"ai-companion/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// headerResolver authenticates by the X-User header
type headerResolver map[string]uint

func (r headerResolver) ResolveUserID(c *gin.Context) (uint, error) {
	if id, ok := r[c.GetHeader("X-User")]; ok {
		return id, nil
	}
	return 0, errors.New("no session")
}

func startServer(t *testing.T) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(logger.Discard())
	go hub.Run(ctx)

	h := NewHandler(hub, headerResolver{"alice": 1, "bob": 2}, []string{"http://localhost:5173"})
	r := gin.New()
	r.Use(apperrors.ErrorHandler())
	r.GET("/api/ws", h.ServeWs)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
}

func dial(t *testing.T, url, user string) *websocket.Conn {
	t.Helper()
	header := http.Header{"X-User": {user}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPublishReachesOnlyOwner(t *testing.T) {
	hub, url := startServer(t)

	alice := dial(t, url, "alice")
	aliceTab := dial(t, url, "alice")
	bob := dial(t, url, "bob")
	require.Eventually(t, func() bool { return hub.ActiveConnections() == 3 }, time.Second, 5*time.Millisecond)

	hub.Publish(1, models.Message{ID: 10, UserID: 1, Role: models.RoleUser, Content: "hello"})

	for _, conn := range []*websocket.Conn{alice, aliceTab} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		var event struct {
			Type    string         `json:"type"`
			Content models.Message `json:"content"`
		}
		require.NoError(t, conn.ReadJSON(&event))
		assert.Equal(t, "message", event.Type)
		assert.Equal(t, uint(10), event.Content.ID)
		assert.Equal(t, "hello", event.Content.Content)
	}

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := bob.ReadMessage()
	assert.Error(t, err, "another user's message must not be delivered")
}

func TestPingPong(t *testing.T) {
	hub, url := startServer(t)
	conn := dial(t, url, "alice")
	require.Eventually(t, func() bool { return hub.ActiveConnections() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteJSON(Event{Type: "ping"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "pong", event.Type)
}

func TestUnauthenticatedUpgradeRejected(t *testing.T) {
	_, url := startServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"X-User": {"mallory"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestForeignOriginRejected(t *testing.T) {
	_, url := startServer(t)

	header := http.Header{"X-User": {"alice"}, "Origin": {"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, url := startServer(t)
	conn := dial(t, url, "bob")
	require.Eventually(t, func() bool { return hub.ActiveConnections() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ActiveConnections() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestPublishWithoutRunDoesNotBlock(t *testing.T) {
	hub := NewHub(logger.Discard())
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Publish(1, models.Message{Content: "x"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked")
	}
}

type recordedFrame struct {
	kind int
	data []byte
}

type frameRecorder struct {
	frames []recordedFrame
	err    error
}

func (r *frameRecorder) WriteMessage(kind int, data []byte) error {
	if r.err != nil {
		return r.err
	}
	r.frames = append(r.frames, recordedFrame{kind, data})
	return nil
}

func TestWriteQueuedStopsOnClosedChannel(t *testing.T) {
	send := make(chan []byte, 4)
	send <- []byte(`{"type":"a"}`)
	n := 3
	close(send)

	w := &frameRecorder{}
	closed, err := writeQueued(w, send, n)
	require.NoError(t, err)
	assert.True(t, closed)
	require.Len(t, w.frames, 2)
	assert.Equal(t, websocket.TextMessage, w.frames[0].kind)
	assert.Equal(t, `{"type":"a"}`, string(w.frames[0].data))
	assert.Equal(t, websocket.CloseMessage, w.frames[1].kind)
}

func TestWriteQueuedDrainsCount(t *testing.T) {
	send := make(chan []byte, 4)
	send <- []byte("1")
	send <- []byte("2")
	send <- []byte("3")

	w := &frameRecorder{}
	closed, err := writeQueued(w, send, 2)
	require.NoError(t, err)
	assert.False(t, closed)
	require.Len(t, w.frames, 2)
	assert.Len(t, send, 1)

	w.err = errors.New("broken pipe")
	_, err = writeQueued(w, send, 1)
	assert.Error(t, err)
}
