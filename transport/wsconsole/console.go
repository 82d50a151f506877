// Package wsconsole is a local websocket front end for talking to the bot
// without Telegram. Each text frame is a JSON request
// {"user": "...", "topic": "...", "text": "..."} answered by
// {"user": "...", "topic": "...", "reply": "..."}.
package wsconsole

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/logging"
	"github.com/hupe1980/meshbot/runner"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 64 << 10
)

// DefaultAppName is the application part of console conversation keys.
const DefaultAppName = "console"

// Request is an inbound frame.
type Request struct {
	User  string `json:"user"`
	Topic string `json:"topic,omitempty"`
	Text  string `json:"text"`
}

// Response is an outbound frame.
type Response struct {
	User  string `json:"user"`
	Topic string `json:"topic"`
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

// Executor runs inbound units synchronously. *runner.Runner satisfies it.
type Executor interface {
	Run(ctx context.Context, in runner.Inbound) (string, error)
}

// Options configure a Console.
type Options struct {
	AppName string
	// Token, when set, must be passed as ?token= or a bearer token.
	Token string
	// DefaultUser is used for frames without a user.
	DefaultUser string
	Logger      logging.Logger
}

// Console serves the websocket endpoint.
type Console struct {
	exec     Executor
	opts     Options
	upgrader websocket.Upgrader
}

// New creates a console over exec.
func New(exec Executor, optFns ...func(o *Options)) *Console {
	opts := Options{
		AppName:     DefaultAppName,
		DefaultUser: "local",
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Console{
		exec: exec,
		opts: opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// RegisterRoutes mounts GET /console.
func (c *Console) RegisterRoutes(r gin.IRouter) {
	r.GET("/console", c.handle)
}

func (c *Console) authorized(r *http.Request) bool {
	if c.opts.Token == "" {
		return true
	}
	got := r.URL.Query().Get("token")
	if got == "" {
		got = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(c.opts.Token)) == 1
}

func (c *Console) handle(ctx *gin.Context) {
	if !c.authorized(ctx.Request) {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.opts.Logger.Warn("wsconsole.upgrade_failed", "error", err)
		return
	}

	s := &session{
		console: c,
		conn:    conn,
		send:    make(chan Response, 16),
	}
	s.serve(ctx.Request.Context())
}

// session is one websocket connection.
type session struct {
	console *Console
	conn    *websocket.Conn
	send    chan Response
	wg      sync.WaitGroup
}

func (s *session) serve(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump()
	}()

	s.readPump(ctx)

	cancel()
	s.wg.Wait()
	close(s.send)
	<-writerDone
}

func (s *session) readPump(ctx context.Context) {
	logger := s.console.opts.Logger

	s.conn.SetReadLimit(maxMsgSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Info("wsconsole.disconnected", "error", err)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			s.send <- Response{Error: "invalid request: " + err.Error()}
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.send <- s.answer(ctx, req)
		}()
	}
}

func (s *session) answer(ctx context.Context, req Request) Response {
	opts := s.console.opts

	user := strings.TrimSpace(req.User)
	if user == "" {
		user = opts.DefaultUser
	}
	key := core.NewConversationKey(opts.AppName, user, req.Topic)
	resp := Response{User: key.User, Topic: key.Topic}

	if strings.TrimSpace(req.Text) == "" {
		resp.Error = "empty text"
		return resp
	}

	reply, err := s.console.exec.Run(ctx, runner.Inbound{Key: key, Text: req.Text})
	if err != nil {
		opts.Logger.Warn("wsconsole.run_failed", "conversation", key.String(), "error", err)
		resp.Error = err.Error()
		return resp
	}

	resp.Reply = reply
	return resp
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case resp, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(resp); err != nil {
				s.drain()
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.drain()
				return
			}
		}
	}
}

// drain keeps pending answers from blocking after the writer gave up.
func (s *session) drain() {
	_ = s.conn.Close()
	for range s.send {
	}
}
