package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/repositories"
	"github.com/yoockh/yoointerview/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type sessionRepo struct {
	col *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) repositories.SessionRepository {
	return &sessionRepo{col: db.Collection("interviews")}
}

func (r *sessionRepo) Create(ctx context.Context, s *models.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.Messages == nil {
		s.Messages = []models.Message{}
	}
	_, err := r.col.InsertOne(ctx, s)
	return err
}

func (r *sessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error) {
	var s models.Session
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) SetStartedAt(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "started_at": nil},
		bson.M{"$set": bson.M{"started_at": at.UTC()}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *sessionRepo) SaveProgress(ctx context.Context, sessionID string, msgs []models.Message, subs []models.CodeSubmission) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "status": models.StatusOngoing},
		bson.M{"$set": bson.M{
			"messages":         nonNilMessages(msgs),
			"code_submissions": subs,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *sessionRepo) Complete(ctx context.Context, sessionID string, msgs []models.Message, subs []models.CodeSubmission, endedAt time.Time) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "status": bson.M{"$ne": models.StatusCompleted}},
		bson.M{"$set": bson.M{
			"status":           models.StatusCompleted,
			"ended_at":         endedAt.UTC(),
			"messages":         nonNilMessages(msgs),
			"code_submissions": subs,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrConflict
	}
	return nil
}

func (r *sessionRepo) Close(ctx context.Context) error { return nil }

func nonNilMessages(msgs []models.Message) []models.Message {
	if msgs == nil {
		return []models.Message{}
	}
	return msgs
}
