package interview

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/yoockh/yoointerview/internal/logger"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/sandbox"
	"github.com/yoockh/yoointerview/internal/utils"
)

const waitTimeout = 3 * time.Second

type event map[string]any

func (e event) str(k string) string { s, _ := e[k].(string); return s }
func (e event) num(k string) int    { f, _ := e[k].(float64); return int(f) }

type fakeConn struct {
	in      chan []byte
	written chan event

	mu          sync.Mutex
	all         []event
	closed      chan struct{}
	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:      make(chan []byte, 16),
		written: make(chan event, 1024),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case b, ok := <-c.in:
		if !ok {
			return nil, io.EOF
		}
		return b, nil
	case <-c.closed:
		return nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	var ev event
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	c.mu.Lock()
	c.all = append(c.all, ev)
	c.mu.Unlock()
	c.written <- ev
	return nil
}

func (c *fakeConn) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeCode, c.closeReason = code, reason
		c.mu.Unlock()
		close(c.closed)
	})
	return nil
}

func (c *fakeConn) send(t *testing.T, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	c.in <- b
}

func (c *fakeConn) next(t *testing.T) event {
	t.Helper()
	select {
	case ev := <-c.written:
		return ev
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for an outbound event")
		return nil
	}
}

// expect reads the next event and checks its type.
func (c *fakeConn) expect(t *testing.T, typ string) event {
	t.Helper()
	ev := c.next(t)
	if ev.str("type") != typ {
		t.Fatalf("event type = %q (%v), want %q", ev.str("type"), ev, typ)
	}
	return ev
}

func (c *fakeConn) code() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

func (c *fakeConn) events() []event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event(nil), c.all...)
}

type fakeAuth struct{ user string }

func (a fakeAuth) Authenticate(token string) (string, error) {
	if token != "good-token" {
		return "", errors.New("bad token")
	}
	return a.user, nil
}

type fakeStore struct {
	mu      sync.Mutex
	rec     *models.Session
	loadErr error

	markPanics bool
	started    *time.Time

	savedMsgs     []models.Message
	saveCalls     int
	completed     bool
	completeCalls int
	completeMsgs  []models.Message
	completeSubs  []models.CodeSubmission
}

func (s *fakeStore) Load(_ context.Context, sessionID, userID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.rec == nil || s.rec.SessionID != sessionID || s.rec.UserID != userID {
		return nil, utils.E(utils.CodeNotFound, "fakeStore.Load", "session not found", nil)
	}
	cp := *s.rec
	return &cp, nil
}

func (s *fakeStore) MarkStarted(_ context.Context, _ string, at time.Time) error {
	if s.markPanics {
		panic("store exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = &at
	return nil
}

func (s *fakeStore) SaveProgress(_ context.Context, _ string, msgs []models.Message, _ []models.CodeSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	s.savedMsgs = append([]models.Message(nil), msgs...)
	return nil
}

func (s *fakeStore) Complete(_ context.Context, _ string, msgs []models.Message, subs []models.CodeSubmission, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeCalls++
	s.completed = true
	s.completeMsgs = append([]models.Message(nil), msgs...)
	s.completeSubs = append([]models.CodeSubmission(nil), subs...)
	return nil
}

func (s *fakeStore) snapshot() fakeStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fakeStore{
		started:       s.started,
		savedMsgs:     s.savedMsgs,
		saveCalls:     s.saveCalls,
		completed:     s.completed,
		completeCalls: s.completeCalls,
		completeMsgs:  s.completeMsgs,
		completeSubs:  s.completeSubs,
	}
}

type llmReply struct {
	tokens []string
	hang   bool
	err    error
}

type fakeLLM struct {
	mu      sync.Mutex
	replies []llmReply
	calls   [][]models.Message
}

func (l *fakeLLM) StreamChat(ctx context.Context, _ string, history []models.Message) (<-chan string, <-chan error) {
	l.mu.Lock()
	n := len(l.calls)
	l.calls = append(l.calls, append([]models.Message(nil), history...))
	reply := llmReply{tokens: []string{"ok"}}
	if n < len(l.replies) {
		reply = l.replies[n]
	}
	l.mu.Unlock()

	out := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		for _, tok := range reply.tokens {
			select {
			case out <- tok:
			case <-ctx.Done():
				return
			}
		}
		if reply.hang {
			<-ctx.Done()
			return
		}
		if reply.err != nil {
			errs <- reply.err
		}
	}()
	return out, errs
}

func (l *fakeLLM) history(i int) []models.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[i]
}

type fakeSTT struct{ text string }

func (f fakeSTT) Transcribe(context.Context, []byte, string) (string, float64, error) {
	return f.text, 0.9, nil
}

// echoSTT transcribes audio bytes as their own text.
type echoSTT struct{}

func (echoSTT) Transcribe(_ context.Context, audio []byte, _ string) (string, float64, error) {
	return string(audio), 0.8, nil
}

// gatedSTT reports each recognition it starts and holds it until release is
// closed or the stream is cancelled.
type gatedSTT struct {
	entered chan string
	release chan struct{}
}

func (g *gatedSTT) Transcribe(ctx context.Context, audio []byte, _ string) (string, float64, error) {
	g.entered <- string(audio)
	select {
	case <-g.release:
		return string(audio), 0.8, nil
	case <-ctx.Done():
		return "", 0, ctx.Err()
	}
}

func (g *gatedSTT) await(t *testing.T) string {
	t.Helper()
	select {
	case s := <-g.entered:
		return s
	case <-time.After(waitTimeout):
		t.Fatal("recognition never started")
		return ""
	}
}

type fakeTTS struct{}

func (fakeTTS) Synthesize(_ context.Context, text string) ([]byte, error) {
	return []byte("RIFF" + text), nil
}

type fakeSandbox struct{}

func (fakeSandbox) Execute(_ context.Context, language, code string) sandbox.Result {
	return sandbox.Result{Success: true, Output: language + ":" + code, ExitCode: 0}
}

type fakeChallenges struct{}

func (fakeChallenges) Pick(_ context.Context, language string) (*models.Challenge, error) {
	return &models.Challenge{
		Title:       "FizzBuzz",
		Language:    language,
		Description: "Print fizz and buzz.",
		StarterCode: "def fizzbuzz():\n    pass",
		Difficulty:  "easy",
	}, nil
}

type fakeEvaluator struct{}

func (fakeEvaluator) Evaluate(_ context.Context, ch *models.Challenge, _, _ string) string {
	return "Looks right for " + ch.Title + "."
}

type fakeLock struct{ err error }

func (l fakeLock) Acquire(context.Context, string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	return func() {}, nil
}

type harness struct {
	conn  *fakeConn
	store *fakeStore
	llm   *fakeLLM
	sess  *Session
	done  chan struct{}

	// shutdown cancels the server context the session runs under.
	shutdown context.CancelFunc
}

func newRecord(mode models.Mode) *models.Session {
	return &models.Session{
		SessionID:  "sess-1",
		UserID:     "user-1",
		Mode:       mode,
		Status:     models.StatusOngoing,
		ResumeText: "Go developer",
		CreatedAt:  time.Now().UTC(),
	}
}

func testOptions(mode models.Mode, speech SpeechMode) Options {
	return Options{
		Mode:       mode,
		SpeechMode: speech,
		Budget:     30 * time.Minute,
		Tick:       time.Hour,
		MinStart:   time.Minute,
	}
}

func testDeps(store *fakeStore, llm *fakeLLM) Deps {
	return Deps{
		Auth:       fakeAuth{user: "user-1"},
		Store:      store,
		LLM:        llm,
		STT:        fakeSTT{text: "I write Go"},
		Sandbox:    fakeSandbox{},
		Challenges: fakeChallenges{},
		Evaluator:  fakeEvaluator{},
		Logger:     logger.Discard(),
	}
}

func start(t *testing.T, token string, opts Options, deps Deps) *harness {
	t.Helper()
	h := &harness{conn: newFakeConn(), done: make(chan struct{})}
	h.store, _ = deps.Store.(*fakeStore)
	h.llm, _ = deps.LLM.(*fakeLLM)
	h.sess = New("sess-1", token, h.conn, opts, deps)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h.shutdown = cancel
	go func() {
		defer close(h.done)
		h.sess.Run(ctx)
	}()
	return h
}

func (h *harness) wait(t *testing.T) {
	t.Helper()
	select {
	case <-h.done:
	case <-time.After(waitTimeout):
		t.Fatal("session did not finish")
	}
}
