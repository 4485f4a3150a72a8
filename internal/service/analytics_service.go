package service

import (
	"encoding/json"
	"errors"

	"sat_prep_backend/internal/model"
	"sat_prep_backend/internal/repository"

	"gorm.io/gorm"
)

// AnalyticsService 考后成绩分析：交卷时固化一份快照，供报表端读取。
// 计算本身复用判分引擎的连接逻辑。
type AnalyticsService struct {
	Repo    *repository.AnalyticsRepository
	Grading *GradingService
}

func NewAnalyticsService(repo *repository.AnalyticsRepository, grading *GradingService) *AnalyticsService {
	return &AnalyticsService{Repo: repo, Grading: grading}
}

// RecordSession 交卷后落一份 user_analytics 快照（按会话幂等覆盖）
func (s *AnalyticsService) RecordSession(sess *model.TestSession, rwGrade, mathGrade *ModuleGrade) (*OverallGrade, error) {
	overall, err := s.Grading.GradeOverall(sess.ID)
	if err != nil {
		return nil, err
	}

	strengths, _ := json.Marshal(overall.Strengths)
	weaknesses, _ := json.Marshal(overall.Weaknesses)

	snapshot := &model.UserAnalytics{
		UserID:             sess.UserID,
		ExamID:             sess.ExamID,
		TestSessionID:      sess.ID,
		RWAccuracy:         rwGrade.Percent,
		MathAccuracy:       mathGrade.Percent,
		AvgTimePerQuestion: overall.AvgTimePerQuestion,
		Strengths:          strengths,
		Weaknesses:         weaknesses,
	}
	if sess.RWScore != nil {
		snapshot.RWScore = *sess.RWScore
	}
	if sess.MathScore != nil {
		snapshot.MathScore = *sess.MathScore
	}
	if sess.TotalScore != nil {
		snapshot.TotalScore = *sess.TotalScore
	}

	if err := s.Repo.Upsert(snapshot); err != nil {
		return nil, err
	}
	return overall, nil
}

// GetOverview 某用户的全部历史快照，按更新时间倒序
func (s *AnalyticsService) GetOverview(userID uint) ([]model.UserAnalytics, error) {
	return s.Repo.FindByUser(userID)
}

// GetBySession 单次会话的快照；不存在返回 nil
func (s *AnalyticsService) GetBySession(sessionID uint) (*model.UserAnalytics, error) {
	a, err := s.Repo.FindBySession(sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}
