package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoointerview/config"
	"github.com/yoockh/yoointerview/internal/api/handlers"
	"github.com/yoockh/yoointerview/internal/api/middleware"
	"github.com/yoockh/yoointerview/internal/api/routes"
	"github.com/yoockh/yoointerview/internal/cache"
	"github.com/yoockh/yoointerview/internal/interview"
	"github.com/yoockh/yoointerview/internal/logger"
	"github.com/yoockh/yoointerview/internal/providers/document"
	"github.com/yoockh/yoointerview/internal/providers/llm"
	"github.com/yoockh/yoointerview/internal/providers/stt"
	"github.com/yoockh/yoointerview/internal/providers/tts"
	"github.com/yoockh/yoointerview/internal/repositories"
	mongorepo "github.com/yoockh/yoointerview/internal/repositories/mongo"
	pgrepo "github.com/yoockh/yoointerview/internal/repositories/postgres"
	"github.com/yoockh/yoointerview/internal/repositories/sqlite"
	"github.com/yoockh/yoointerview/internal/sandbox"
	"github.com/yoockh/yoointerview/internal/services"
	"github.com/yoockh/yoointerview/internal/storage"
	"github.com/yoockh/yoointerview/internal/workers"
)

const shutdownTimeout = 20 * time.Second

func main() {
	_ = godotenv.Load()

	settings, err := config.LoadSettings()
	if err != nil {
		logger.New().WithError(err).Fatal("config")
	}
	log := logger.NewWithLevel(os.Stdout, settings.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	sessions, err := openSessionStore(settings, log)
	if err != nil {
		log.WithError(err).Fatal("session store init error")
	}
	closers = append(closers, func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sessions.Close(cctx)
		if settings.StoreDriver == "mongo" {
			_ = config.CloseMongo(cctx)
		}
	})

	// Redis: session lock, speech cache, archive stream
	if err := config.InitRedis(); err != nil {
		log.WithError(err).Fatal("Redis init error")
	}
	closers = append(closers, func() { _ = config.CloseRedis() })
	log.Info("Redis connected")

	// Postgres is optional; without it there is no archive or catalog
	var (
		challengeRepo pgrepo.ChallengeRepository
		resumeRepo    pgrepo.ResumeFileRepository
		convoRepo     pgrepo.ConversationRepo
	)
	if os.Getenv("POSTGRES_URI") != "" {
		if err := config.InitPostgres(); err != nil {
			log.WithError(err).Fatal("PostgreSQL init error")
		}
		closers = append(closers, func() { _ = config.ClosePostgres() })
		if err := config.MigratePostgres(ctx); err != nil {
			log.WithError(err).Fatal("PostgreSQL migration error")
		}
		challengeRepo = pgrepo.NewChallengeRepo(config.PostgresDB)
		resumeRepo = pgrepo.NewResumeFileRepo(config.PostgresDB)
		convoRepo = pgrepo.NewConversationRepo(config.PostgresDB)
		log.Info("PostgreSQL connected")
	} else {
		log.Warn("POSTGRES_URI not set: archive worker, challenge catalog and resume records disabled")
	}

	// Providers
	gemini, err := llm.NewVertexGemini(ctx, settings.GCPProject, settings.GCPLocation, llm.VertexOptions{
		Model:       settings.LLMModel,
		Temperature: float32(settings.LLMTemperature),
		TopP:        float32(settings.LLMTopP),
		TopK:        int32(settings.LLMTopK),
	})
	if err != nil {
		log.WithError(err).Fatal("Vertex AI init error")
	}
	closers = append(closers, func() { _ = gemini.Close() })

	speech, err := stt.NewGoogleSpeech(ctx, settings.STTEncoding, settings.STTSampleRate, settings.STTLanguage)
	if err != nil {
		log.WithError(err).Fatal("Speech-to-Text init error")
	}
	closers = append(closers, func() { _ = speech.Close() })

	var synth interview.Synthesizer
	if settings.ElevenLabsAPIKey != "" {
		el := tts.NewElevenLabs(settings.ElevenLabsAPIKey, settings.ElevenLabsVoice, settings.ElevenLabsModel)
		synth = tts.NewCached(el, cache.NewRedisCache(config.RedisClient), settings.TTSCacheTTL, log)
	} else {
		log.Warn("ELEVENLABS_API_KEY not set: speech synthesis disabled")
	}

	executor, err := newExecutor(settings.Sandbox)
	if err != nil {
		log.WithError(err).Fatal("sandbox init error")
	}
	if settings.Sandbox.Backend == "local" {
		log.Warn("SANDBOX_BACKEND=local runs submissions as host processes; use docker outside development")
	}
	if c, ok := executor.(interface{ Close() error }); ok {
		closers = append(closers, func() { _ = c.Close() })
	}

	var uploader storage.Uploader
	if settings.GCSBucket != "" {
		gcs, err := storage.NewGCSUploader(ctx, settings.GCSBucket)
		if err != nil {
			log.WithError(err).Fatal("GCS init error")
		}
		closers = append(closers, func() { _ = gcs.Close() })
		uploader = gcs
	}

	// Services
	interviewSvc := services.NewInterviewService(sessions)
	resumeSvc := services.NewResumeService(document.NewPDFToText(), uploader, resumeRepo)
	challengeSvc := services.NewChallengeService(challengeRepo, log)
	evalSvc := services.NewEvaluationService(gemini, log)

	verifier := &middleware.JWTVerifier{
		Secret:   settings.JWTSecret,
		Issuer:   settings.JWTIssuer,
		Audience: settings.JWTAudience,
	}

	deps := interview.Deps{
		Auth:       verifier,
		Store:      interviewSvc,
		Lock:       cache.NewSessionLock(config.RedisClient, cache.DefaultLockTTL),
		LLM:        gemini,
		STT:        speech,
		TTS:        synth,
		Sandbox:    executor,
		Challenges: challengeSvc,
		Evaluator:  evalSvc,
		Logger:     log,
	}

	var pool *workers.ArchiveWorkerPool
	var convoHandler *handlers.ConversationHandler
	if convoRepo != nil {
		convoSvc := services.NewConversationService(sessions, convoRepo)
		convoHandler = handlers.NewConversationHandler(convoSvc)
		deps.Archive = &workers.RedisArchiveQueue{Redis: config.RedisClient}
		pool = &workers.ArchiveWorkerPool{
			Redis:         config.RedisClient,
			Conversations: convoSvc,
			NumWorkers:    settings.ArchiveWorkers,
			Logger:        log,
		}
		if err := pool.Start(ctx); err != nil {
			log.WithError(err).Fatal("archive worker start error")
		}
	}

	s := settings.Session
	base := interview.Options{
		Budget:            s.Duration,
		Tick:              s.Tick,
		WarningThreshold:  s.Warning,
		MinStart:          s.MinStart,
		Language:          settings.STTLanguage,
		ChallengeLanguage: s.ChallengeLanguage,
	}
	interviewOpts, codeOpts := base, base
	interviewOpts.SpeechMode = interview.SpeechMode(s.InterviewSpeech)
	codeOpts.SpeechMode = interview.SpeechMode(s.CodeSpeech)

	ws := handlers.NewWSHandler(ctx, deps, interviewOpts, codeOpts, log)

	if settings.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	routes.RegisterRoutes(r, routes.Deps{
		Auth:         verifier,
		Interview:    handlers.NewInterviewHandler(interviewSvc, resumeSvc),
		Conversation: convoHandler,
		Challenge:    handlers.NewChallengeHandler(challengeSvc),
		WS:           ws,
	})

	srv := &http.Server{Addr: ":" + settings.Port, Handler: r}
	go func() {
		log.WithField("port", settings.Port).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	// Hijacked websocket connections are not tracked by Shutdown.
	ws.Wait()
	if pool != nil {
		pool.Wait()
	}
}

func openSessionStore(settings *config.Settings, log *logrus.Logger) (repositories.SessionRepository, error) {
	if settings.StoreDriver == "sqlite" {
		return sqlite.NewSessionRepo(settings.SQLitePath, log)
	}
	if err := config.InitMongo(); err != nil {
		return nil, err
	}
	if err := config.EnsureMongoIndexes(); err != nil {
		return nil, err
	}
	log.Info("MongoDB connected")
	return mongorepo.NewSessionRepo(config.MongoDatabase()), nil
}

func newExecutor(s config.SandboxSettings) (sandbox.Executor, error) {
	limits := sandbox.Limits{Timeout: s.Timeout, MaxOutput: s.MaxOutput}
	if s.Backend == "docker" {
		d, err := sandbox.NewDocker(limits, sandbox.DockerOptions{
			PythonImage: s.PythonImage,
			CImage:      s.CImage,
			Runtime:     s.Runtime,
			MemoryBytes: s.MemoryMB << 20,
			PidsLimit:   s.PidsLimit,
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return sandbox.NewLocal(limits), nil
}
