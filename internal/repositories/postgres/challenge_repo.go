package postgres

import (
	"context"

	"github.com/yoockh/yoointerview/internal/models"
	"gorm.io/gorm"
)

type ChallengeRepository interface {
	Insert(ctx context.Context, c *models.CatalogChallenge) error
	ListByLanguage(ctx context.Context, language, difficulty string) ([]models.CatalogChallenge, error)
}

type challengeRepo struct {
	db *gorm.DB
}

func NewChallengeRepo(db *gorm.DB) ChallengeRepository {
	return &challengeRepo{db: db}
}

func (r *challengeRepo) Insert(ctx context.Context, c *models.CatalogChallenge) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *challengeRepo) ListByLanguage(ctx context.Context, language, difficulty string) ([]models.CatalogChallenge, error) {
	var rows []models.CatalogChallenge
	err := r.db.WithContext(ctx).
		Where("language = ? AND difficulty = ?", language, difficulty).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
