package interview

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Close codes used by the orchestrator.
const (
	CloseNormal          = websocket.CloseNormalClosure
	ClosePolicyViolation = websocket.ClosePolicyViolation
	CloseGoingAway       = websocket.CloseGoingAway
	CloseInternalError   = websocket.CloseInternalServerErr
)

// Conn is the duplex transport. ReadMessage and WriteMessage are never
// called concurrently with themselves.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	// Close sends a close frame with code and reason, then closes the transport.
	Close(code int, reason string) error
}

type frame struct {
	payload []byte
	close   bool
	code    int
	reason  string
}

// outbox is the single ordered send path. Only the session loop enqueues;
// one writer goroutine drains it onto the transport.
type outbox struct {
	ch     chan frame
	done   chan struct{}
	sealed bool
	once   sync.Once
	log    *logrus.Entry
}

func newOutbox(size int, log *logrus.Entry) *outbox {
	return &outbox{
		ch:   make(chan frame, size),
		done: make(chan struct{}),
		log:  log,
	}
}

func (o *outbox) run(conn Conn) {
	defer close(o.done)
	for f := range o.ch {
		if f.close {
			if err := conn.Close(f.code, f.reason); err != nil {
				o.log.WithError(err).Debug("close transport")
			}
			return
		}
		if err := conn.WriteMessage(f.payload); err != nil {
			o.log.WithError(err).Debug("write failed, dropping outbound events")
			_ = conn.Close(CloseInternalError, "")
			return
		}
	}
}

// send enqueues ev. It reports false once the writer has stopped or the
// outbox is sealed.
func (o *outbox) send(ev ServerEvent) bool {
	if o.sealed {
		return false
	}
	b, err := json.Marshal(ev)
	if err != nil {
		o.log.WithError(err).Error("marshal outbound event")
		return false
	}
	select {
	case o.ch <- frame{payload: b}:
		return true
	case <-o.done:
		return false
	}
}

// seal enqueues the terminal close frame. Nothing is accepted afterwards.
func (o *outbox) seal(code int, reason string) {
	o.once.Do(func() {
		o.sealed = true
		select {
		case o.ch <- frame{close: true, code: code, reason: reason}:
		case <-o.done:
		}
		close(o.ch)
	})
}
