package repository

import (
	"sat_prep_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type SessionRepository struct {
	DB *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

func (r *SessionRepository) Create(s *model.TestSession) error {
	return r.DB.Create(s).Error
}

func (r *SessionRepository) FindByID(id uint) (*model.TestSession, error) {
	var s model.TestSession
	if err := r.DB.First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// FindActive 查 (user, exam) 下进行中或暂停的会话
func (r *SessionRepository) FindActive(userID, examID uint) (*model.TestSession, error) {
	var s model.TestSession
	err := r.DB.Where("user_id = ? AND exam_id = ? AND status IN ?",
		userID, examID, []model.SessionStatus{model.SessionInProgress, model.SessionPaused}).
		Order("id DESC").First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) FindCompletedByUser(userID uint) ([]model.TestSession, error) {
	var list []model.TestSession
	err := r.DB.Where("user_id = ? AND status = ?", userID, model.SessionCompleted).
		Order("completed_at DESC").Find(&list).Error
	return list, err
}

type ReviewRow struct {
	TestSessionID uint       `gorm:"column:test_session_id" json:"testSessionId"`
	ExamID        uint       `gorm:"column:exam_id" json:"examId"`
	ExamName      string     `gorm:"column:exam_name" json:"examName"`
	TotalScore    *int       `gorm:"column:total_score" json:"totalScore"`
	CompletedAt   *time.Time `gorm:"column:completed_at" json:"completedAt"`
}

// ListReviews 带试卷名的已完成会话列表，按完成时间倒序
func (r *SessionRepository) ListReviews(userID uint) ([]ReviewRow, error) {
	var rows []ReviewRow
	err := r.DB.Table("test_sessions").
		Select("test_sessions.id AS test_session_id, test_sessions.exam_id, exams.name AS exam_name, test_sessions.total_score, test_sessions.completed_at").
		Joins("INNER JOIN exams ON exams.id = test_sessions.exam_id").
		Where("test_sessions.user_id = ? AND test_sessions.status = ?", userID, model.SessionCompleted).
		Where("test_sessions.deleted_at IS NULL").
		Order("test_sessions.completed_at DESC").
		Scan(&rows).Error
	return rows, err
}

// UpdateFields 部分字段更新，调用方只传需要落库的列
func (r *SessionRepository) UpdateFields(id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return r.DB.Model(&model.TestSession{}).Where("id = ?", id).Updates(fields).Error
}

// Delete 硬删除会话及其全部答题记录（重新开考时使用）
func (r *SessionRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("test_session_id = ?", id).Delete(&model.Response{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&model.TestSession{}, id).Error
	})
}
