package interview

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
)

const (
	listeningMarker  = "Listening..."
	progressInterval = 10
)

// fragmentQueue is an unbounded FIFO of audio fragments. The session loop
// pushes; the stream task pops.
type fragmentQueue struct {
	mu     sync.Mutex
	items  [][]byte
	closed bool
	notify chan struct{}
}

func newFragmentQueue() *fragmentQueue {
	return &fragmentQueue{notify: make(chan struct{}, 1)}
}

func (q *fragmentQueue) push(b []byte) {
	q.mu.Lock()
	if !q.closed {
		q.items = append(q.items, b)
	}
	q.mu.Unlock()
	q.wake()
}

// close marks end of stream. Fragments already queued are still delivered.
func (q *fragmentQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

func (q *fragmentQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pop blocks for the next fragment. ok is false once the queue is closed and
// drained.
func (q *fragmentQueue) pop(ctx context.Context) (frag []byte, ok bool, err error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			frag = q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return frag, true, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, false, nil
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-q.notify:
		}
	}
}

type partialMsg struct {
	id   uint64
	text string
}

type speechDoneMsg struct {
	id         uint64
	text       string
	confidence float64
	err        error
}

func (partialMsg) loopMsg()    {}
func (speechDoneMsg) loopMsg() {}

// runSpeechStream accumulates fragments until end of stream, then
// transcribes once. Cancellation suppresses the final result.
func runSpeechStream(ctx context.Context, id uint64, q *fragmentQueue, stt Transcriber, language string, post func(context.Context, loopMsg) bool) {
	if !post(ctx, partialMsg{id: id, text: listeningMarker}) {
		return
	}

	var audio []byte
	n := 0
	for {
		frag, ok, err := q.pop(ctx)
		if err != nil {
			return
		}
		if !ok {
			break
		}
		audio = append(audio, frag...)
		n++
		if n%progressInterval == 0 {
			if !post(ctx, partialMsg{id: id, text: fmt.Sprintf("Processing speech... (%d chunks)", n)}) {
				return
			}
		}
	}

	if len(audio) == 0 {
		post(ctx, speechDoneMsg{id: id})
		return
	}
	text, conf, err := stt.Transcribe(ctx, audio, language)
	if ctx.Err() != nil {
		return
	}
	post(ctx, speechDoneMsg{id: id, text: strings.TrimSpace(text), confidence: conf, err: err})
}

// decodeAudio accepts raw base64 or a data URI.
func decodeAudio(s string) ([]byte, error) {
	if i := strings.Index(s, "base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len("base64,"):]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty audio payload")
	}
	return base64.StdEncoding.DecodeString(s)
}
