package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/repositories"
	"github.com/yoockh/yoointerview/internal/utils"
)

// InterviewService owns session records. It also satisfies interview.Store.
type InterviewService interface {
	Start(ctx context.Context, userID string, mode models.Mode, resumeText string) (*models.Session, error)
	Get(ctx context.Context, userID, sessionID string) (*models.Session, error)

	Load(ctx context.Context, sessionID, userID string) (*models.Session, error)
	MarkStarted(ctx context.Context, sessionID string, at time.Time) error
	SaveProgress(ctx context.Context, sessionID string, msgs []models.Message, subs []models.CodeSubmission) error
	Complete(ctx context.Context, sessionID string, msgs []models.Message, subs []models.CodeSubmission, endedAt time.Time) error
}

type interviewService struct {
	sessions repositories.SessionRepository
}

func NewInterviewService(sessions repositories.SessionRepository) InterviewService {
	return &interviewService{sessions: sessions}
}

func (s *interviewService) Start(ctx context.Context, userID string, mode models.Mode, resumeText string) (*models.Session, error) {
	const op = "InterviewService.Start"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if !mode.Valid() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "unknown interview mode", nil)
	}

	session := &models.Session{
		SessionID:  uuid.NewString(),
		UserID:     userID,
		Mode:       mode,
		Status:     models.StatusOngoing,
		ResumeText: strings.TrimSpace(resumeText),
		Messages:   []models.Message{},
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}
	return session, nil
}

func (s *interviewService) Get(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	const op = "InterviewService.Get"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	out, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}
	if out.UserID != userID {
		return nil, utils.E(utils.CodeForbidden, op, "forbidden", nil)
	}
	return out, nil
}

// Load resolves a session for a live connection. Foreign sessions look
// missing so their existence is not disclosed.
func (s *interviewService) Load(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	const op = "InterviewService.Load"

	out, err := s.sessions.GetBySessionID(ctx, sessionID)
	switch {
	case errors.Is(err, utils.ErrNotFound):
		return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
	case err != nil:
		return nil, utils.E(utils.CodeInternal, op, "failed to load session", err)
	case out.UserID != userID:
		return nil, utils.E(utils.CodeNotFound, op, "session not found", nil)
	case out.Completed():
		return nil, utils.E(utils.CodeFailedPrecondition, op, "session already completed", nil)
	}
	return out, nil
}

func (s *interviewService) MarkStarted(ctx context.Context, sessionID string, at time.Time) error {
	const op = "InterviewService.MarkStarted"

	// false means another connection got there first; its value stands
	if _, err := s.sessions.SetStartedAt(ctx, sessionID, at.UTC()); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to set started_at", err)
	}
	return nil
}

func (s *interviewService) SaveProgress(ctx context.Context, sessionID string, msgs []models.Message, subs []models.CodeSubmission) error {
	const op = "InterviewService.SaveProgress"

	if err := s.sessions.SaveProgress(ctx, sessionID, msgs, subs); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeFailedPrecondition, op, "session is no longer ongoing", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to save progress", err)
	}
	return nil
}

func (s *interviewService) Complete(ctx context.Context, sessionID string, msgs []models.Message, subs []models.CodeSubmission, endedAt time.Time) error {
	const op = "InterviewService.Complete"

	err := s.sessions.Complete(ctx, sessionID, msgs, subs, endedAt.UTC())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, utils.ErrConflict):
		return utils.E(utils.CodeConflict, op, "session already completed", err)
	case errors.Is(err, utils.ErrNotFound):
		return utils.E(utils.CodeNotFound, op, "session not found", err)
	default:
		return utils.E(utils.CodeInternal, op, "failed to complete session", err)
	}
}
