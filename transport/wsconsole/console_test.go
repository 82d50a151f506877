package wsconsole

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/runner"
)

type keyEcho struct{}

func (keyEcho) Dispatch(_ context.Context, key core.ConversationKey, text string) string {
	return key.String() + ": " + text
}

func startServer(t *testing.T, optFns ...func(o *Options)) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	New(runner.New(keyEcho{}), optFns...).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/console"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func TestConsole_RoundTrip(t *testing.T) {
	conn := dial(t, startServer(t))

	require.NoError(t, conn.WriteJSON(Request{User: "alice", Text: "hi"}))

	var resp Response
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, Response{User: "alice", Topic: "main", Reply: "console/alice/main: hi"}, resp)

	require.NoError(t, conn.WriteJSON(Request{Topic: "blog", Text: "hey"}))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "console/local/blog: hey", resp.Reply)
}

func TestConsole_BadFrames(t *testing.T) {
	conn := dial(t, startServer(t))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	var resp Response
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Contains(t, resp.Error, "invalid request")

	require.NoError(t, conn.WriteJSON(Request{User: "a", Text: "  "}))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "empty text", resp.Error)
}

func TestConsole_Token(t *testing.T) {
	url := startServer(t, func(o *Options) { o.Token = "t0k" })

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn := dial(t, url+"?token=t0k")
	require.NoError(t, conn.WriteJSON(Request{User: "a", Text: "x"}))
	var r Response
	require.NoError(t, conn.ReadJSON(&r))
	assert.Equal(t, "console/a/main: x", r.Reply)

	header := http.Header{"Authorization": {"Bearer t0k"}}
	conn2, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = conn2.Close()
}
