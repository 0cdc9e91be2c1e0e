package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/yoockh/yoointerview/internal/logger"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/utils"
)

func newTestRepo(t *testing.T) *sessionRepo {
	t.Helper()
	repo, err := NewSessionRepo(filepath.Join(t.TempDir(), "interviews.db"), logger.Discard())
	if err != nil {
		t.Fatalf("NewSessionRepo() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close(context.Background()) })
	return repo.(*sessionRepo)
}

func seed(t *testing.T, repo *sessionRepo, id string) {
	t.Helper()
	err := repo.Create(context.Background(), &models.Session{
		SessionID:  id,
		UserID:     "user-1",
		Mode:       models.ModeCodeInterview,
		Status:     models.StatusOngoing,
		ResumeText: "Go developer",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
}

func TestGetMissingSession(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)

	_, err := repo.GetBySessionID(context.Background(), "nope")
	if !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("GetBySessionID() error = %v, want ErrNotFound", err)
	}
}

func TestStartedAtIsSetOnce(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	ctx := context.Background()
	seed(t, repo, "s1")

	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ok, err := repo.SetStartedAt(ctx, "s1", first)
	if err != nil || !ok {
		t.Fatalf("first SetStartedAt() = %v, %v", ok, err)
	}
	ok, err = repo.SetStartedAt(ctx, "s1", first.Add(time.Hour))
	if err != nil || ok {
		t.Fatalf("second SetStartedAt() = %v, %v; want false, nil", ok, err)
	}

	got, err := repo.GetBySessionID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetBySessionID() error = %v", err)
	}
	if got.StartedAt == nil || !got.StartedAt.Equal(first) {
		t.Fatalf("StartedAt = %v, want %v", got.StartedAt, first)
	}
}

func TestCompleteStoresTranscriptAndSubmissions(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	ctx := context.Background()
	seed(t, repo, "s2")

	now := time.Now().UTC()
	msgs := []models.Message{
		models.NewMessage(models.RoleAssistant, "Good day.", now),
		models.NewMessage(models.RoleUser, "Hello", now),
	}
	subs := []models.CodeSubmission{{Language: "python", Code: "print(1)", Timestamp: now}}

	if err := repo.SaveProgress(ctx, "s2", msgs[:1], nil); err != nil {
		t.Fatalf("SaveProgress() error = %v", err)
	}
	if err := repo.Complete(ctx, "s2", msgs, subs, now); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if err := repo.Complete(ctx, "s2", msgs, subs, now); !errors.Is(err, utils.ErrConflict) {
		t.Fatalf("second Complete() error = %v, want ErrConflict", err)
	}
	if err := repo.SaveProgress(ctx, "s2", msgs, subs); !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("SaveProgress() after completion error = %v, want ErrNotFound", err)
	}

	got, err := repo.GetBySessionID(ctx, "s2")
	if err != nil {
		t.Fatalf("GetBySessionID() error = %v", err)
	}
	if got.Status != models.StatusCompleted || got.EndedAt == nil {
		t.Fatalf("status/ended_at = %q/%v", got.Status, got.EndedAt)
	}
	if len(got.Messages) != 2 || got.Messages[1].Content != "Hello" {
		t.Fatalf("messages = %+v", got.Messages)
	}
	if len(got.CodeSubmissions) != 1 || got.CodeSubmissions[0].Challenge != nil {
		t.Fatalf("submissions = %+v", got.CodeSubmissions)
	}
}

func TestNaiveStartedAtIsReadAsUTC(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	ctx := context.Background()
	seed(t, repo, "s3")

	if _, err := repo.db.ExecContext(ctx,
		`UPDATE interviews SET started_at = ? WHERE session_id = ?`, "2026-03-01 10:00:00", "s3"); err != nil {
		t.Fatalf("exec: %v", err)
	}

	got, err := repo.GetBySessionID(ctx, "s3")
	if err != nil {
		t.Fatalf("GetBySessionID() error = %v", err)
	}
	want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if got.StartedAt == nil || !got.StartedAt.Equal(want) || got.StartedAt.Location() != time.UTC {
		t.Fatalf("StartedAt = %v, want %v UTC", got.StartedAt, want)
	}
}
