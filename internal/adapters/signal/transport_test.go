package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mtman1987/streamweaver-v2-sub001/internal/core"
)

// dialTestServer stands up the controller behind a real WebSocket
// endpoint and dials it, so frame delivery is tested through the actual
// pumps instead of a recording fake.
func dialTestServer(t *testing.T, ctl *Controller) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	engine.GET("/api/ws/signal", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func TestKickedClientReceivesFinalFrameBeforeClose(t *testing.T) {
	// The server queues admin_kicked and then closes the connection; the
	// write pump must flush the queue before tearing down the socket,
	// otherwise the client never learns why it was dropped.
	ctl := newTestController(t)
	ws := dialTestServer(t, ctl)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, envelope(t, "join_voice", map[string]any{
		"userId":   "a1",
		"userName": "Alice",
		"roomId":   "lobby",
	})))
	require.Eventually(t, func() bool {
		_, _, ok := ctl.Registry.FindUserConn("a1")
		return ok
	}, 2*time.Second, 10*time.Millisecond, "join never registered")

	admin := &fakeConn{}
	ctl.HandleMessage(admin, envelope(t, "admin_connect", struct{}{}))
	ctl.HandleMessage(admin, envelope(t, "admin_kick_user", map[string]string{"userId": "a1"}))

	var got []string
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			break
		}
		var env core.Envelope
		if json.Unmarshal(data, &env) == nil {
			got = append(got, env.Type)
		}
	}
	assert.Contains(t, got, "admin_kicked", "final frame must flush before the socket closes, got %v", got)
}
