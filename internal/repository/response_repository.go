package repository

import (
	"sat_prep_backend/internal/model"

	"gorm.io/gorm"
)

type ResponseRepository struct {
	DB *gorm.DB
}

func NewResponseRepository(db *gorm.DB) *ResponseRepository {
	return &ResponseRepository{DB: db}
}

// Upsert 按 (session, question) 幂等保存：已存在则更新同一行，
// time_spent 累加而不是覆盖。
func (r *ResponseRepository) Upsert(resp *model.Response) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var existing model.Response
		err := tx.Where("test_session_id = ? AND question_id = ?",
			resp.TestSessionID, resp.QuestionID).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			return tx.Create(resp).Error
		}
		if err != nil {
			return err
		}

		existing.UserAnswer = resp.UserAnswer
		existing.TimeSpent += resp.TimeSpent
		existing.SequenceNumber = resp.SequenceNumber
		existing.IsFlagged = resp.IsFlagged
		if err := tx.Save(&existing).Error; err != nil {
			return err
		}
		*resp = existing
		return nil
	})
}

func (r *ResponseRepository) GetBySession(sessionID uint) ([]model.Response, error) {
	var list []model.Response
	err := r.DB.Where("test_session_id = ?", sessionID).
		Order("sequence_number").Find(&list).Error
	return list, err
}

// GetBySessionAndQuestions 只取命中给定题目集合的答题记录
func (r *ResponseRepository) GetBySessionAndQuestions(sessionID uint, questionIDs []uint) ([]model.Response, error) {
	if len(questionIDs) == 0 {
		return nil, nil
	}
	var list []model.Response
	err := r.DB.Where("test_session_id = ? AND question_id IN ?", sessionID, questionIDs).
		Find(&list).Error
	return list, err
}
