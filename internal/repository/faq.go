package repository

import (
	"context"
	"errors"

	"github.com/psds-microservice/voice-support/internal/errs"
	"github.com/psds-microservice/voice-support/internal/model"
	"gorm.io/gorm"
)

type FAQRepository struct {
	db *gorm.DB
}

func NewFAQRepository(db *gorm.DB) *FAQRepository {
	return &FAQRepository{db: db}
}

// Candidates: до limit записей с сохранённым вектором, в порядке id.
func (r *FAQRepository) Candidates(ctx context.Context, limit int) ([]model.FAQEntry, error) {
	q := r.db.WithContext(ctx).
		Where("embedding IS NOT NULL AND embedding <> ''").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var items []model.FAQEntry
	err := q.Find(&items).Error
	return items, err
}

func (r *FAQRepository) List(ctx context.Context) ([]model.FAQEntry, error) {
	var items []model.FAQEntry
	err := r.db.WithContext(ctx).Order("id ASC").Find(&items).Error
	return items, err
}

func (r *FAQRepository) Get(ctx context.Context, id uint64) (*model.FAQEntry, error) {
	var e model.FAQEntry
	if err := r.db.WithContext(ctx).First(&e, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrFAQNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *FAQRepository) Create(ctx context.Context, e *model.FAQEntry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *FAQRepository) UpdateEmbedding(ctx context.Context, id uint64, embedding string) error {
	res := r.db.WithContext(ctx).Model(&model.FAQEntry{}).Where("id = ?", id).Update("embedding", embedding)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrFAQNotFound
	}
	return nil
}
