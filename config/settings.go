package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings is the typed process configuration. Connection strings for
// Mongo, Postgres and Redis are still read by their Init functions.
type Settings struct {
	Port     string
	LogLevel string

	Session SessionSettings

	StoreDriver string // mongo | sqlite
	SQLitePath  string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	GCPProject  string
	GCPLocation string

	LLMModel       string
	LLMTemperature float64
	LLMTopP        float64
	LLMTopK        int

	STTLanguage   string
	STTEncoding   string
	STTSampleRate int

	ElevenLabsAPIKey string
	ElevenLabsVoice  string
	ElevenLabsModel  string
	TTSCacheTTL      time.Duration

	Sandbox SandboxSettings

	GCSBucket      string
	ArchiveWorkers int
}

type SessionSettings struct {
	Duration          time.Duration
	Tick              time.Duration
	Warning           time.Duration
	MinStart          time.Duration
	InterviewSpeech   string // streaming | single_shot
	CodeSpeech        string
	ChallengeLanguage string
}

type SandboxSettings struct {
	Backend     string // local | docker
	Timeout     time.Duration
	MaxOutput   int
	Runtime     string // "" = runc, "runsc" = gVisor
	PythonImage string
	CImage      string
	MemoryMB    int64
	PidsLimit   int64
}

func LoadSettings() (*Settings, error) {
	s := &Settings{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Session: SessionSettings{
			Duration:          seconds("SESSION_DURATION_SECONDS", 1800),
			Tick:              seconds("TIMER_TICK_SECONDS", 10),
			Warning:           seconds("TIMER_WARNING_SECONDS", 60),
			MinStart:          seconds("SESSION_MIN_START_SECONDS", 60),
			InterviewSpeech:   strings.ToLower(getEnv("INTERVIEW_SPEECH_MODE", "streaming")),
			CodeSpeech:        strings.ToLower(getEnv("CODE_INTERVIEW_SPEECH_MODE", "single_shot")),
			ChallengeLanguage: strings.ToLower(getEnv("CHALLENGE_LANGUAGE", "python")),
		},
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "mongo")),
		SQLitePath:  getEnv("SQLITE_PATH", "./data/interviews.db"),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", ""),
		JWTAudience: getEnv("JWT_AUDIENCE", ""),

		GCPProject:  getEnv("GCP_PROJECT", ""),
		GCPLocation: getEnv("GCP_LOCATION", "us-central1"),

		LLMModel:       getEnv("LLM_MODEL", "gemini-1.5-flash"),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.7),
		LLMTopP:        getEnvFloat("LLM_TOP_P", 0.9),
		LLMTopK:        getEnvInt("LLM_TOP_K", 40),

		STTLanguage:   getEnv("STT_LANGUAGE", "en-US"),
		STTEncoding:   getEnv("STT_ENCODING", "LINEAR16"),
		STTSampleRate: getEnvInt("STT_SAMPLE_RATE", 16000),

		ElevenLabsAPIKey: getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoice:  getEnv("ELEVENLABS_VOICE", ""),
		ElevenLabsModel:  getEnv("ELEVENLABS_MODEL", "eleven_multilingual_v2"),
		TTSCacheTTL:      seconds("TTS_CACHE_TTL_SECONDS", 86400),

		Sandbox: SandboxSettings{
			Backend:     strings.ToLower(getEnv("SANDBOX_BACKEND", "local")),
			Timeout:     seconds("SANDBOX_TIMEOUT_SECONDS", 10),
			MaxOutput:   getEnvInt("SANDBOX_MAX_OUTPUT", 5000),
			Runtime:     getEnv("SANDBOX_RUNTIME", ""),
			PythonImage: getEnv("SANDBOX_PYTHON_IMAGE", "python:3.12-alpine"),
			CImage:      getEnv("SANDBOX_C_IMAGE", "gcc:14"),
			MemoryMB:    int64(getEnvInt("SANDBOX_MEMORY_MB", 256)),
			PidsLimit:   int64(getEnvInt("SANDBOX_PIDS_LIMIT", 64)),
		},

		GCSBucket:      getEnv("GCS_BUCKET", ""),
		ArchiveWorkers: getEnvInt("ARCHIVE_WORKERS", 2),
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return s, nil
}

func (s *Settings) Validate() error {
	if s.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if s.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}
	if s.Session.Duration <= 0 {
		return fmt.Errorf("SESSION_DURATION_SECONDS must be > 0")
	}
	if s.Session.Tick <= 0 {
		return fmt.Errorf("TIMER_TICK_SECONDS must be > 0")
	}
	if s.Session.Warning < s.Session.Tick {
		return fmt.Errorf("TIMER_WARNING_SECONDS must be >= TIMER_TICK_SECONDS")
	}
	for name, mode := range map[string]string{
		"INTERVIEW_SPEECH_MODE":      s.Session.InterviewSpeech,
		"CODE_INTERVIEW_SPEECH_MODE": s.Session.CodeSpeech,
	} {
		if mode != "streaming" && mode != "single_shot" {
			return fmt.Errorf("%s must be streaming or single_shot, got %q", name, mode)
		}
	}
	switch s.StoreDriver {
	case "mongo":
	case "sqlite":
		if s.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH cannot be empty when STORE_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be mongo or sqlite, got %q", s.StoreDriver)
	}
	switch s.Sandbox.Backend {
	case "local", "docker":
	default:
		return fmt.Errorf("SANDBOX_BACKEND must be local or docker, got %q", s.Sandbox.Backend)
	}
	if s.Sandbox.Timeout <= 0 {
		return fmt.Errorf("SANDBOX_TIMEOUT_SECONDS must be > 0")
	}
	if s.Sandbox.MaxOutput <= 0 {
		return fmt.Errorf("SANDBOX_MAX_OUTPUT must be > 0")
	}
	if s.ArchiveWorkers <= 0 {
		return fmt.Errorf("ARCHIVE_WORKERS must be > 0")
	}
	return nil
}

func seconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Second
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}
