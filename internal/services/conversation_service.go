package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/repositories"
	pgrepo "github.com/yoockh/yoointerview/internal/repositories/postgres"
	"github.com/yoockh/yoointerview/internal/utils"
	"gorm.io/datatypes"
)

type ConversationService interface {
	// ArchiveSession copies a completed session's transcript into the
	// relational archive, replacing any earlier copy.
	ArchiveSession(ctx context.Context, sessionID string) (int, error)
	ListBySession(ctx context.Context, userID, sessionID string, limit int) ([]models.ConversationLog, error)
}

type conversationService struct {
	sessions repositories.SessionRepository
	convos   pgrepo.ConversationRepo
}

func NewConversationService(sessions repositories.SessionRepository, convos pgrepo.ConversationRepo) ConversationService {
	return &conversationService{sessions: sessions, convos: convos}
}

type messageMetadata struct {
	Mode      models.Mode         `json:"mode"`
	FaceData  *models.EmotionData `json:"face_data,omitempty"`
	VoiceData *models.VoiceData   `json:"voice_data,omitempty"`
}

func (s *conversationService) ArchiveSession(ctx context.Context, sessionID string) (int, error) {
	const op = "ConversationService.ArchiveSession"

	if sessionID == "" {
		return 0, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	sess, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return 0, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return 0, utils.E(utils.CodeInternal, op, "failed to load session", err)
	}
	if !sess.Completed() {
		return 0, utils.E(utils.CodeFailedPrecondition, op, "session is still ongoing", nil)
	}

	rows, err := conversationRows(sess)
	if err != nil {
		return 0, utils.E(utils.CodeInternal, op, "failed to encode metadata", err)
	}
	if err := s.convos.ReplaceSession(ctx, sessionID, rows); err != nil {
		return 0, utils.E(utils.CodeInternal, op, "failed to archive conversation", err)
	}
	return len(rows), nil
}

func conversationRows(sess *models.Session) ([]models.ConversationLog, error) {
	rows := make([]models.ConversationLog, 0, len(sess.Messages))
	for i, m := range sess.Messages {
		if m.Role == models.RoleSystem {
			continue
		}
		md, err := json.Marshal(messageMetadata{Mode: sess.Mode, FaceData: m.FaceData, VoiceData: m.VoiceData})
		if err != nil {
			return nil, err
		}
		rows = append(rows, models.ConversationLog{
			ID:        uuid.NewString(),
			UserID:    sess.UserID,
			SessionID: sess.SessionID,
			Seq:       i,
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp.UTC(),
			Metadata:  datatypes.JSON(md),
		})
	}
	return rows, nil
}

func (s *conversationService) ListBySession(ctx context.Context, userID, sessionID string, limit int) ([]models.ConversationLog, error) {
	const op = "ConversationService.ListBySession"

	if userID == "" || sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and session_id are required", nil)
	}

	rows, err := s.convos.ListBySession(ctx, userID, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list conversations", err)
	}
	return rows, nil
}
