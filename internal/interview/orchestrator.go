// Package interview runs one interview session per connection. A single
// loop goroutine owns all session state; the timer, transcription stream,
// generation and blocking jobs run as tasks that report back to the loop
// over a channel and never touch that state themselves.
package interview

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/utils"
)

const (
	reasonExpiredOnStart = "Session time has expired."
	reasonExpired        = "Your session time has expired."
	reasonEndedByUser    = "Session ended by user."
)

type loopMsg interface{ loopMsg() }

type jobDoneMsg struct {
	id    uint64
	apply func()
}

func (jobDoneMsg) loopMsg() {}

type inboundMsg struct {
	data []byte
	err  error
}

type task struct {
	id     uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// stop cancels the task and waits for its goroutine to exit.
func (t *task) stop() {
	if t == nil {
		return
	}
	t.cancel()
	<-t.done
}

type jobFunc func(ctx context.Context) (apply func())

type Session struct {
	id    string
	token string
	opts  Options
	deps  Deps
	conn  Conn
	log   *logrus.Entry

	out     *outbox
	msgs    chan loopMsg
	inbound chan inboundMsg

	// loop-owned state
	userID       string
	record       *models.Session
	systemPrompt string
	transcript   []models.Message
	submissions  []models.CodeSubmission
	challenge    *models.Challenge
	clock        deadline
	idleCount    int
	completed    bool

	seq     uint64
	timer   *task
	gen     *task
	genBuf  strings.Builder
	stream  *task
	streamQ *fragmentQueue
	job     *task
	pending []jobFunc
}

func New(sessionID, token string, conn Conn, opts Options, deps Deps) *Session {
	opts = opts.withDefaults()
	lg := deps.Logger
	if lg == nil {
		lg = logrus.StandardLogger()
	}
	log := lg.WithFields(logrus.Fields{"session_id": sessionID, "mode": string(opts.Mode)})
	return &Session{
		id:      sessionID,
		token:   token,
		opts:    opts,
		deps:    deps,
		conn:    conn,
		log:     log,
		out:     newOutbox(opts.OutboxSize, log),
		msgs:    make(chan loopMsg, 64),
		inbound: make(chan inboundMsg),
	}
}

// Run drives the session until it completes, the peer disconnects or ctx
// is cancelled. The transport is closed when Run returns.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.out.run(s.conn)
	defer func() { <-s.out.done }()
	defer s.out.seal(CloseNormal, "")
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error("session loop panicked")
			s.stopAll()
			if s.record != nil && !s.completed {
				s.saveProgress(ctx)
			}
			s.out.seal(CloseInternalError, "internal error")
		}
	}()

	if !s.authenticate() {
		return
	}
	release, ok := s.acquire(ctx)
	if !ok {
		return
	}
	defer release()

	if !s.load(ctx) || !s.startClock(ctx) {
		return
	}

	s.log.Info("session active")
	go s.readLoop(ctx)
	s.loop(ctx)
}

func (s *Session) authenticate() bool {
	userID, err := s.deps.Auth.Authenticate(s.token)
	if err != nil || userID == "" {
		s.log.WithError(err).Warn("authentication failed")
		s.fail("Invalid token.", ClosePolicyViolation)
		return false
	}
	s.userID = userID
	s.log = s.log.WithField("user_id", userID)
	return true
}

func (s *Session) acquire(ctx context.Context) (func(), bool) {
	if s.deps.Lock == nil {
		return func() {}, true
	}
	release, err := s.deps.Lock.Acquire(ctx, s.id)
	switch {
	case err == nil:
		return release, true
	case utils.IsCode(err, utils.CodeConflict):
		s.log.Warn("session already has an active connection")
		s.fail("Session is already active in another connection.", ClosePolicyViolation)
		return nil, false
	default:
		s.log.WithError(err).Warn("session lock unavailable, continuing without it")
		return func() {}, true
	}
}

func (s *Session) load(ctx context.Context) bool {
	rec, err := s.deps.Store.Load(ctx, s.id, s.userID)
	switch {
	case err == nil && rec.Mode != "" && rec.Mode != s.opts.Mode:
		s.log.WithField("record_mode", rec.Mode).Warn("session connected on the wrong endpoint")
		s.fail("Session not found.", ClosePolicyViolation)
		return false
	case err == nil && rec.Completed():
		s.fail("Session already completed.", ClosePolicyViolation)
		return false
	case err == nil:
		s.record = rec
		return true
	case utils.IsCode(err, utils.CodeNotFound):
		s.fail("Session not found.", ClosePolicyViolation)
	case utils.IsCode(err, utils.CodeFailedPrecondition):
		s.fail("Session already completed.", ClosePolicyViolation)
	default:
		s.log.WithError(err).Error("load session")
		s.fail("Database error.", CloseInternalError)
	}
	return false
}

// startClock resolves started_at, seeds the countdown and starts the ticker.
// It reports false when the session completed instead.
func (s *Session) startClock(ctx context.Context) bool {
	now := s.now()
	var started time.Time
	if s.record.StartedAt == nil {
		started = now
		if err := s.deps.Store.MarkStarted(ctx, s.id, started); err != nil {
			s.log.WithError(err).Error("persist started_at")
			s.fail("Database error.", CloseInternalError)
			return false
		}
	} else {
		started = s.record.StartedAt.UTC()
	}

	s.transcript = append([]models.Message(nil), s.record.Messages...)
	s.submissions = append([]models.CodeSubmission(nil), s.record.CodeSubmissions...)
	s.systemPrompt = SystemPrompt(s.record.ResumeText)
	s.clock = deadline{
		remaining: remainingFrom(s.opts.Budget, started, now),
		tick:      s.opts.Tick,
		warning:   s.opts.WarningThreshold,
	}

	s.log.WithFields(logrus.Fields{
		"elapsed_s":   int(now.Sub(started).Seconds()),
		"remaining_s": int(s.clock.remaining.Seconds()),
	}).Info("session clock started")
	s.out.send(timerUpdate(int(s.clock.remaining/time.Second), int(s.opts.Budget/time.Second)))

	if s.clock.remaining < s.opts.MinStart {
		s.complete(ctx, reasonExpiredOnStart)
		return false
	}
	tick := s.opts.Tick
	s.timer = s.spawn(ctx, func(ctx context.Context, id uint64) { runTicker(ctx, id, tick, s.post) })
	return true
}

func (s *Session) readLoop(ctx context.Context) {
	for {
		data, err := s.conn.ReadMessage()
		select {
		case s.inbound <- inboundMsg{data: data, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) loop(ctx context.Context) {
	for !s.completed {
		// inbound events wait while a blocking job is in flight
		var in chan inboundMsg
		if s.job == nil {
			in = s.inbound
		}
		select {
		case <-ctx.Done():
			s.disconnect(ctx, CloseGoingAway, "server shutting down")
			return
		case <-s.out.done:
			s.disconnect(ctx, CloseInternalError, "")
			return
		case m := <-in:
			if m.err != nil {
				s.log.WithError(m.err).Info("client disconnected")
				s.disconnect(ctx, CloseNormal, "")
				return
			}
			s.dispatch(ctx, m.data)
		case m := <-s.msgs:
			s.handle(ctx, m)
		}
	}
}

func (s *Session) handle(ctx context.Context, m loopMsg) {
	switch m := m.(type) {
	case tickMsg:
		if s.timer == nil || m.id != s.timer.id {
			return
		}
		secs, warn, expired := s.clock.step()
		s.out.send(timerUpdate(secs, 0))
		if warn {
			s.out.send(timerWarning(warningMessage))
		}
		if expired {
			s.complete(ctx, reasonExpired)
		}

	case tokenMsg:
		if s.gen == nil || m.id != s.gen.id {
			return
		}
		s.genBuf.WriteString(m.token)
		s.out.send(llmToken(m.token))

	case genDoneMsg:
		if s.gen == nil || m.id != s.gen.id {
			return
		}
		s.gen = nil
		text := strings.TrimSpace(s.genBuf.String())
		s.genBuf.Reset()
		if m.err != nil {
			s.log.WithError(m.err).Error("generation failed")
			s.out.send(errorEvent(generationFailed))
			return
		}
		if text != "" {
			s.transcript = append(s.transcript, models.NewMessage(models.RoleAssistant, text, s.now()))
		}
		s.out.send(llmEnd())

	case partialMsg:
		if s.stream == nil || m.id != s.stream.id {
			return
		}
		s.out.send(partialTranscription(m.text))

	case speechDoneMsg:
		if s.stream == nil || m.id != s.stream.id {
			return
		}
		s.stream, s.streamQ = nil, nil
		if m.err != nil {
			s.log.WithError(m.err).Error("speech stream transcription failed")
			s.out.send(errorEvent("Error during transcription."))
			return
		}
		if m.text == "" {
			return
		}
		s.handleUserText(ctx, m.text, m.confidence)

	case jobDoneMsg:
		if s.job == nil || m.id != s.job.id {
			return
		}
		s.job = nil
		if m.apply != nil {
			m.apply()
		}
		if s.job == nil && len(s.pending) > 0 && !s.completed {
			next := s.pending[0]
			s.pending = s.pending[1:]
			s.startJob(ctx, next)
		}
	}
}

func (s *Session) spawn(parent context.Context, fn func(ctx context.Context, id uint64)) *task {
	s.seq++
	ctx, cancel := context.WithCancel(parent)
	t := &task{id: s.seq, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(t.done)
		defer cancel()
		fn(ctx, t.id)
	}()
	return t
}

// post hands a task result to the loop. It gives up once the task is cancelled.
func (s *Session) post(ctx context.Context, m loopMsg) bool {
	select {
	case s.msgs <- m:
		return true
	case <-ctx.Done():
		return false
	}
}

// enqueueJob runs fn off the loop; its apply func runs back on the loop.
// Jobs run one at a time in submission order.
func (s *Session) enqueueJob(ctx context.Context, fn jobFunc) {
	if s.job != nil {
		s.pending = append(s.pending, fn)
		return
	}
	s.startJob(ctx, fn)
}

func (s *Session) startJob(ctx context.Context, fn jobFunc) {
	s.job = s.spawn(ctx, func(ctx context.Context, id uint64) {
		apply := fn(ctx)
		if ctx.Err() != nil {
			return
		}
		s.post(ctx, jobDoneMsg{id: id, apply: apply})
	})
}

func (s *Session) stopAll() {
	s.timer.stop()
	s.gen.stop()
	s.stream.stop()
	s.job.stop()
	s.timer, s.gen, s.stream, s.job = nil, nil, nil, nil
	s.streamQ = nil
	s.pending = nil
	s.genBuf.Reset()
}

// complete ends the session. Only the first call has any effect.
func (s *Session) complete(ctx context.Context, reason string) {
	if s.completed {
		return
	}
	s.completed = true
	s.stopAll()
	s.log.WithField("reason", reason).Info("completing session")

	sctx, cancel := s.storeContext(ctx)
	err := s.deps.Store.Complete(sctx, s.id, s.transcript, s.submissions, s.now())
	cancel()
	switch {
	case err == nil:
	case utils.IsCode(err, utils.CodeConflict):
		s.log.Warn("session was already completed by another writer")
	default:
		s.log.WithError(err).Error("persist completed session")
	}

	if s.deps.Archive != nil {
		actx, cancel := s.storeContext(ctx)
		if err := s.deps.Archive.Enqueue(actx, s.id); err != nil {
			s.log.WithError(err).Warn("enqueue transcript archive")
		}
		cancel()
	}

	s.out.send(sessionComplete(reason))
	s.out.seal(CloseNormal, "")
}

// disconnect handles a transport loss: progress is kept, the session stays
// ongoing.
func (s *Session) disconnect(ctx context.Context, code int, reason string) {
	s.stopAll()
	s.saveProgress(ctx)
	s.out.seal(code, reason)
}

func (s *Session) saveProgress(ctx context.Context) {
	if len(s.transcript) == 0 && len(s.submissions) == 0 {
		return
	}
	sctx, cancel := s.storeContext(ctx)
	defer cancel()
	if err := s.deps.Store.SaveProgress(sctx, s.id, s.transcript, s.submissions); err != nil {
		s.log.WithError(err).Error("save session progress")
		return
	}
	s.log.WithField("messages", len(s.transcript)).Info("session progress saved")
}

func (s *Session) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.opts.StoreTimeout)
}

func (s *Session) fail(msg string, code int) {
	s.out.send(errorEvent(msg))
	s.out.seal(code, msg)
}

func (s *Session) now() time.Time {
	if s.deps.Now != nil {
		return s.deps.Now().UTC()
	}
	return time.Now().UTC()
}
