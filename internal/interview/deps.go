package interview

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/sandbox"
)

// Authenticator resolves the connection token to an owner identity.
type Authenticator interface {
	Authenticate(token string) (userID string, err error)
}

// Store is the session persistence boundary. Load reports a missing or
// foreign record with utils.CodeNotFound and a completed one with
// utils.CodeFailedPrecondition.
type Store interface {
	Load(ctx context.Context, sessionID, userID string) (*models.Session, error)
	MarkStarted(ctx context.Context, sessionID string, at time.Time) error
	SaveProgress(ctx context.Context, sessionID string, msgs []models.Message, subs []models.CodeSubmission) error
	Complete(ctx context.Context, sessionID string, msgs []models.Message, subs []models.CodeSubmission, endedAt time.Time) error
}

// Locker guards a session against concurrent connections. Acquire returns
// utils.CodeConflict when another connection holds the session.
type Locker interface {
	Acquire(ctx context.Context, sessionID string) (release func(), err error)
}

type Generator interface {
	StreamChat(ctx context.Context, system string, history []models.Message) (<-chan string, <-chan error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) (text string, confidence float64, err error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type ChallengeSource interface {
	Pick(ctx context.Context, language string) (*models.Challenge, error)
}

// Evaluator never fails; backend problems degrade to a fixed acknowledgment.
type Evaluator interface {
	Evaluate(ctx context.Context, ch *models.Challenge, language, code string) string
}

type Archiver interface {
	Enqueue(ctx context.Context, sessionID string) error
}

type SpeechMode string

const (
	SpeechStreaming  SpeechMode = "streaming"
	SpeechSingleShot SpeechMode = "single_shot"
)

type Options struct {
	Mode       models.Mode
	SpeechMode SpeechMode

	Budget           time.Duration
	Tick             time.Duration
	WarningThreshold time.Duration
	MinStart         time.Duration

	Language          string // speech recognition language
	ChallengeLanguage string

	StoreTimeout time.Duration
	OutboxSize   int
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = models.ModeInterview
	}
	if o.SpeechMode == "" {
		o.SpeechMode = SpeechStreaming
	}
	if o.Budget <= 0 {
		o.Budget = 30 * time.Minute
	}
	if o.Tick <= 0 {
		o.Tick = 10 * time.Second
	}
	if o.WarningThreshold <= 0 {
		o.WarningThreshold = time.Minute
	}
	if o.MinStart <= 0 {
		o.MinStart = time.Minute
	}
	if o.Language == "" {
		o.Language = "en-US"
	}
	if o.ChallengeLanguage == "" {
		o.ChallengeLanguage = "python"
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 10 * time.Second
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = 256
	}
	return o
}

// Deps are the process-wide capability handles a session borrows. Lock,
// TTS and Archive are optional.
type Deps struct {
	Auth       Authenticator
	Store      Store
	Lock       Locker
	LLM        Generator
	STT        Transcriber
	TTS        Synthesizer
	Sandbox    sandbox.Executor
	Challenges ChallengeSource
	Evaluator  Evaluator
	Archive    Archiver
	Logger     *logrus.Logger
	Now        func() time.Time
}
