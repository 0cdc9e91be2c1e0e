// Package repositories holds the storage contracts shared by the Mongo and
// SQLite session stores.
package repositories

import (
	"context"
	"time"

	"github.com/yoockh/yoointerview/internal/models"
)

// SessionRepository persists interview session records.
//
// GetBySessionID returns utils.ErrNotFound when no record exists.
// SetStartedAt only writes when started_at is still unset and reports
// whether it did. Complete returns utils.ErrConflict when the record is
// already completed.
type SessionRepository interface {
	Create(ctx context.Context, s *models.Session) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error)
	SetStartedAt(ctx context.Context, sessionID string, at time.Time) (bool, error)
	SaveProgress(ctx context.Context, sessionID string, msgs []models.Message, subs []models.CodeSubmission) error
	Complete(ctx context.Context, sessionID string, msgs []models.Message, subs []models.CodeSubmission, endedAt time.Time) error
	Close(ctx context.Context) error
}
