package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoointerview/internal/interview"
	"github.com/yoockh/yoointerview/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
)

type WSHandler struct {
	base     context.Context // cancelled on server shutdown
	deps     interview.Deps
	opts     map[models.Mode]interview.Options
	log      *logrus.Logger
	upgrader websocket.Upgrader
	active   sync.WaitGroup
}

func NewWSHandler(base context.Context, deps interview.Deps, interviewOpts, codeOpts interview.Options, log *logrus.Logger) *WSHandler {
	interviewOpts.Mode = models.ModeInterview
	codeOpts.Mode = models.ModeCodeInterview
	return &WSHandler{
		base: base,
		deps: deps,
		opts: map[models.Mode]interview.Options{
			models.ModeInterview:     interviewOpts,
			models.ModeCodeInterview: codeOpts,
		},
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true }, // the path token authenticates the caller
		},
	}
}

func (h *WSHandler) Interview(c *gin.Context)     { h.serve(c, models.ModeInterview) }
func (h *WSHandler) CodeInterview(c *gin.Context) { h.serve(c, models.ModeCodeInterview) }

// Wait blocks until every live session has returned.
func (h *WSHandler) Wait() { h.active.Wait() }

func (h *WSHandler) serve(c *gin.Context, mode models.Mode) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	h.active.Add(1)
	defer h.active.Done()

	wc := newWSConn(conn)
	stop := wc.keepAlive()
	defer stop()

	sess := interview.New(c.Param("session_id"), c.Param("token"), wc, h.opts[mode], h.deps)
	sess.Run(h.base)
}

// wsConn adapts a gorilla connection to interview.Conn.
type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func newWSConn(c *websocket.Conn) *wsConn {
	_ = c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &wsConn{c: c}
}

func (w *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := w.c.ReadMessage()
	if err != nil {
		return nil, err
	}
	_ = w.c.SetReadDeadline(time.Now().Add(pongWait))
	return data, nil
}

func (w *wsConn) WriteMessage(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(writeWait))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) Close(code int, reason string) error {
	w.mu.Lock()
	_ = w.c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	w.mu.Unlock()
	return w.c.Close()
}

// keepAlive pings the peer so idle but healthy clients survive the read
// deadline.
func (w *wsConn) keepAlive() (stop func()) {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(pingPeriod)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				if err := w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()
	return func() { close(done) }
}
