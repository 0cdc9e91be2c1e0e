package services

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yoockh/yoointerview/internal/logger"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/repositories"
	"github.com/yoockh/yoointerview/internal/repositories/sqlite"
	"github.com/yoockh/yoointerview/internal/utils"
)

func newSessionRepo(t *testing.T) repositories.SessionRepository {
	t.Helper()
	repo, err := sqlite.NewSessionRepo(filepath.Join(t.TempDir(), "svc.db"), logger.Discard())
	if err != nil {
		t.Fatalf("NewSessionRepo() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close(context.Background()) })
	return repo
}

func TestInterviewServiceLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewInterviewService(newSessionRepo(t))

	if _, err := svc.Start(ctx, "user-1", "karaoke", ""); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("Start(bad mode) error = %v", err)
	}

	sess, err := svc.Start(ctx, "user-1", models.ModeInterview, "  Go developer \n")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if sess.ResumeText != "Go developer" || sess.Status != models.StatusOngoing {
		t.Fatalf("session = %+v", sess)
	}

	if _, err := svc.Load(ctx, sess.SessionID, "user-2"); !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("Load(foreign) error = %v", err)
	}
	if _, err := svc.Get(ctx, "user-2", sess.SessionID); !utils.IsCode(err, utils.CodeForbidden) {
		t.Fatalf("Get(foreign) error = %v", err)
	}

	started := time.Now().UTC().Truncate(time.Second)
	if err := svc.MarkStarted(ctx, sess.SessionID, started); err != nil {
		t.Fatalf("MarkStarted() error = %v", err)
	}
	msgs := []models.Message{models.NewMessage(models.RoleUser, "hello", started)}
	if err := svc.SaveProgress(ctx, sess.SessionID, msgs, nil); err != nil {
		t.Fatalf("SaveProgress() error = %v", err)
	}

	loaded, err := svc.Load(ctx, sess.SessionID, "user-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.StartedAt == nil || !loaded.StartedAt.Equal(started) || len(loaded.Messages) != 1 {
		t.Fatalf("loaded = %+v", loaded)
	}

	if err := svc.Complete(ctx, sess.SessionID, msgs, nil, time.Now()); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if err := svc.Complete(ctx, sess.SessionID, msgs, nil, time.Now()); !utils.IsCode(err, utils.CodeConflict) {
		t.Fatalf("second Complete() error = %v", err)
	}
	if _, err := svc.Load(ctx, sess.SessionID, "user-1"); !utils.IsCode(err, utils.CodeFailedPrecondition) {
		t.Fatalf("Load(completed) error = %v", err)
	}
}

type fakeChallengeRepo struct {
	rows    []models.CatalogChallenge
	err     error
	created []*models.CatalogChallenge
}

func (r *fakeChallengeRepo) Insert(_ context.Context, c *models.CatalogChallenge) error {
	r.created = append(r.created, c)
	return nil
}

func (r *fakeChallengeRepo) ListByLanguage(_ context.Context, language, difficulty string) ([]models.CatalogChallenge, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []models.CatalogChallenge
	for _, c := range r.rows {
		if c.Language == language && c.Difficulty == difficulty {
			out = append(out, c)
		}
	}
	return out, nil
}

func TestChallengeCandidates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	builtin := NewChallengeService(nil, logger.Discard())
	py, _ := builtin.Candidates(ctx, "python", DefaultDifficulty)
	c, _ := builtin.Candidates(ctx, "C", DefaultDifficulty)
	if len(py) != 3 || len(c) != 2 {
		t.Fatalf("python=%d c=%d", len(py), len(c))
	}

	repo := &fakeChallengeRepo{rows: []models.CatalogChallenge{{Language: "python", Difficulty: "easy", Title: "Two Sum"}}}
	merged, _ := NewChallengeService(repo, logger.Discard()).Candidates(ctx, "python", DefaultDifficulty)
	if len(merged) != 4 || merged[3].Title != "Two Sum" {
		t.Fatalf("merged = %+v", merged)
	}

	down := &fakeChallengeRepo{err: errors.New("pg down")}
	fallback, err := NewChallengeService(down, logger.Discard()).Candidates(ctx, "python", DefaultDifficulty)
	if err != nil || len(fallback) != 3 {
		t.Fatalf("fallback = %d, %v", len(fallback), err)
	}
}

func TestChallengePick(t *testing.T) {
	t.Parallel()

	svc := NewChallengeService(nil, logger.Discard()).(*challengeService)
	svc.pick = func(n int) int { return n - 1 }

	ch, err := svc.Pick(context.Background(), "python")
	if err != nil || ch.Title != "List Sum" {
		t.Fatalf("Pick() = %+v, %v", ch, err)
	}
	if _, err := svc.Pick(context.Background(), "cobol"); !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("Pick(cobol) error = %v", err)
	}
}

func TestChallengeAdd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	if _, err := NewChallengeService(nil, logger.Discard()).Add(ctx, models.Challenge{}, nil); !utils.IsCode(err, utils.CodeUnavailable) {
		t.Fatalf("Add(no catalog) error = %v", err)
	}

	repo := &fakeChallengeRepo{}
	svc := NewChallengeService(repo, logger.Discard())
	if _, err := svc.Add(ctx, models.Challenge{Language: "rust", Title: "x", Description: "y"}, nil); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("Add(rust) error = %v", err)
	}
	row, err := svc.Add(ctx, models.Challenge{Language: " Python ", Title: "Reverse", Description: "Reverse a list."}, []string{"lists"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if row.Language != "python" || row.Difficulty != "easy" || row.ID == "" || len(row.Tags) != 1 || len(repo.created) != 1 {
		t.Fatalf("row = %+v", row)
	}
}

type fakeCompleter struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeCompleter) Complete(_ context.Context, _, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func TestEvaluationFallbacks(t *testing.T) {
	t.Parallel()

	ch := &models.Challenge{Title: "FizzBuzz", Description: "Print fizz."}
	cases := []struct {
		llm  *fakeCompleter
		want string
	}{
		{&fakeCompleter{reply: " Nice loop. "}, "Nice loop."},
		{&fakeCompleter{reply: "  "}, "Code received. Good effort!"},
		{&fakeCompleter{err: errors.New("timeout")}, "Code received. Unable to provide detailed feedback at the moment."},
	}
	for _, tc := range cases {
		got := NewEvaluationService(tc.llm, logger.Discard()).Evaluate(context.Background(), ch, "python", "print(1)")
		if got != tc.want {
			t.Fatalf("Evaluate() = %q, want %q", got, tc.want)
		}
		if !strings.Contains(tc.llm.prompt, "Problem: Print fizz.") || !strings.Contains(tc.llm.prompt, "```python\nprint(1)\n```") {
			t.Fatalf("prompt = %q", tc.llm.prompt)
		}
	}
}

func TestConversationRows(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	sess := &models.Session{
		SessionID: "s1",
		UserID:    "u1",
		Mode:      models.ModeCodeInterview,
		Messages: []models.Message{
			models.NewMessage(models.RoleAssistant, "Good day.", at),
			{Role: models.RoleUser, Content: "Hi", Timestamp: at, VoiceData: &models.VoiceData{Energy: 0.4}},
		},
	}
	rows, err := conversationRows(sess)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1].Seq != 1 || rows[1].Role != "user" || rows[1].Embedding != nil {
		t.Fatalf("rows = %+v", rows)
	}
	var md messageMetadata
	if err := json.Unmarshal(rows[1].Metadata, &md); err != nil {
		t.Fatal(err)
	}
	if md.Mode != models.ModeCodeInterview || md.VoiceData == nil || md.VoiceData.Energy != 0.4 {
		t.Fatalf("metadata = %+v", md)
	}
}

type fakeExtractor struct{ text string }

func (f fakeExtractor) ExtractText(context.Context, []byte) (string, error) { return f.text, nil }

func TestResumeIngestValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pdf := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")

	svc := NewResumeService(fakeExtractor{text: "Go developer"}, nil, nil)
	cases := []struct {
		name string
		file string
		data []byte
	}{
		{"extension", "cv.docx", pdf},
		{"content", "cv.pdf", []byte("hello world, not a pdf")},
		{"empty", "cv.pdf", nil},
		{"size", "cv.pdf", append(pdf, make([]byte, MaxResumeBytes)...)},
	}
	for _, tc := range cases {
		if _, err := svc.Ingest(ctx, "u1", tc.file, tc.data); !utils.IsCode(err, utils.CodeInvalidArgument) {
			t.Fatalf("%s: error = %v", tc.name, err)
		}
	}

	up, err := svc.Ingest(ctx, "u1", "dir/CV.PDF", pdf)
	if err != nil || up.Text != "Go developer" || up.FileName != "CV.PDF" || up.StoredPath != "" {
		t.Fatalf("Ingest() = %+v, %v", up, err)
	}
	if err := svc.Record(ctx, "u1", "s1", up); err != nil {
		t.Fatalf("Record() without catalog = %v", err)
	}

	blank := NewResumeService(fakeExtractor{text: " \n "}, nil, nil)
	if _, err := blank.Ingest(ctx, "u1", "cv.pdf", pdf); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("blank extraction error = %v", err)
	}
}
