// Package sqlite is the embedded session store used for single-node
// deployments and by tests.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/repositories"
	"github.com/yoockh/yoointerview/internal/utils"
	_ "modernc.org/sqlite"
)

// Timestamps written by older tooling may lack a zone; they are read as UTC.
var naiveLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

type sessionRepo struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewSessionRepo(dbPath string, log *logrus.Logger) (repositories.SessionRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	r := &sessionRepo{db: db, log: log}
	if err := r.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return r, nil
}

func (r *sessionRepo) initSchema() error {
	const query = `
	CREATE TABLE IF NOT EXISTS interviews (
		session_id       TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL,
		mode             TEXT NOT NULL,
		status           TEXT NOT NULL,
		resume_text      TEXT NOT NULL DEFAULT '',
		messages_json    TEXT NOT NULL DEFAULT '[]',
		submissions_json TEXT NOT NULL DEFAULT '[]',
		created_at       TEXT NOT NULL,
		started_at       TEXT,
		ended_at         TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_interviews_user ON interviews(user_id, created_at);
	`
	_, err := r.db.Exec(query)
	return err
}

func (r *sessionRepo) Create(ctx context.Context, s *models.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	msgs, subs, err := encodeLogs(s.Messages, s.CodeSubmissions)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO interviews (session_id, user_id, mode, status, resume_text,
			messages_json, submissions_json, created_at, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SessionID, s.UserID, string(s.Mode), string(s.Status), s.ResumeText,
		msgs, subs, formatTime(s.CreatedAt), nullableTime(s.StartedAt), nullableTime(s.EndedAt),
	)
	return err
}

func (r *sessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT session_id, user_id, mode, status, resume_text, messages_json,
		       submissions_json, created_at, started_at, ended_at
		FROM interviews WHERE session_id = ?`, sessionID)

	var (
		s                  models.Session
		mode, status       string
		msgsJSON, subsJSON string
		createdAt          string
		startedAt, endedAt sql.NullString
	)
	err := row.Scan(&s.SessionID, &s.UserID, &mode, &status, &s.ResumeText,
		&msgsJSON, &subsJSON, &createdAt, &startedAt, &endedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan interview row: %w", err)
	}

	s.Mode = models.Mode(mode)
	s.Status = models.SessionStatus(status)
	if err := json.Unmarshal([]byte(msgsJSON), &s.Messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	if err := json.Unmarshal([]byte(subsJSON), &s.CodeSubmissions); err != nil {
		return nil, fmt.Errorf("decode submissions: %w", err)
	}
	if s.CreatedAt, err = r.parseTime(sessionID, "created_at", createdAt); err != nil {
		return nil, err
	}
	if s.StartedAt, err = r.parseNullable(sessionID, "started_at", startedAt); err != nil {
		return nil, err
	}
	if s.EndedAt, err = r.parseNullable(sessionID, "ended_at", endedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) SetStartedAt(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE interviews SET started_at = ? WHERE session_id = ? AND started_at IS NULL`,
		formatTime(at), sessionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *sessionRepo) SaveProgress(ctx context.Context, sessionID string, msgs []models.Message, subs []models.CodeSubmission) error {
	m, s, err := encodeLogs(msgs, subs)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE interviews SET messages_json = ?, submissions_json = ? WHERE session_id = ? AND status = ?`,
		m, s, sessionID, string(models.StatusOngoing))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *sessionRepo) Complete(ctx context.Context, sessionID string, msgs []models.Message, subs []models.CodeSubmission, endedAt time.Time) error {
	m, s, err := encodeLogs(msgs, subs)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE interviews
		SET status = ?, ended_at = ?, messages_json = ?, submissions_json = ?
		WHERE session_id = ? AND status != ?`,
		string(models.StatusCompleted), formatTime(endedAt), m, s, sessionID, string(models.StatusCompleted))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return utils.ErrConflict
	}
	return nil
}

func (r *sessionRepo) Close(ctx context.Context) error { return r.db.Close() }

func (r *sessionRepo) parseTime(sessionID, field, v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			r.log.WithFields(logrus.Fields{
				"session_id": sessionID,
				"field":      field,
			}).Warn("naive timestamp, assuming UTC")
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse %s %q", field, v)
}

func (r *sessionRepo) parseNullable(sessionID, field string, v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := r.parseTime(sessionID, field, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeLogs(msgs []models.Message, subs []models.CodeSubmission) (string, string, error) {
	if msgs == nil {
		msgs = []models.Message{}
	}
	if subs == nil {
		subs = []models.CodeSubmission{}
	}
	m, err := json.Marshal(msgs)
	if err != nil {
		return "", "", fmt.Errorf("encode messages: %w", err)
	}
	s, err := json.Marshal(subs)
	if err != nil {
		return "", "", fmt.Errorf("encode submissions: %w", err)
	}
	return string(m), string(s), nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
