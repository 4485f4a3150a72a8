package repository

import (
	"sat_prep_backend/internal/model"

	"gorm.io/gorm"
)

type AnalyticsRepository struct {
	DB *gorm.DB
}

func NewAnalyticsRepository(db *gorm.DB) *AnalyticsRepository {
	return &AnalyticsRepository{DB: db}
}

// Upsert 每个会话只保留一份分析快照
func (r *AnalyticsRepository) Upsert(a *model.UserAnalytics) error {
	var existing model.UserAnalytics
	err := r.DB.Where("test_session_id = ?", a.TestSessionID).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return r.DB.Create(a).Error
	}
	if err != nil {
		return err
	}

	a.ID = existing.ID
	a.CreatedAt = existing.CreatedAt
	return r.DB.Save(a).Error
}

func (r *AnalyticsRepository) FindByUser(userID uint) ([]model.UserAnalytics, error) {
	var list []model.UserAnalytics
	err := r.DB.Where("user_id = ?", userID).Order("updated_at DESC").Find(&list).Error
	return list, err
}

func (r *AnalyticsRepository) FindBySession(sessionID uint) (*model.UserAnalytics, error) {
	var a model.UserAnalytics
	if err := r.DB.Where("test_session_id = ?", sessionID).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}
