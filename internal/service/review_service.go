package service

import (
	"errors"

	"sat_prep_backend/internal/model"
	"sat_prep_backend/internal/repository"
	"sat_prep_backend/internal/util"

	"gorm.io/gorm"
)

// ReviewService 考后回顾：历史成绩列表和逐题对错明细
type ReviewService struct {
	SessionRepo  *repository.SessionRepository
	ResponseRepo *repository.ResponseRepository
	QuestionRepo *repository.QuestionRepository
}

func NewReviewService(sessionRepo *repository.SessionRepository, responseRepo *repository.ResponseRepository, questionRepo *repository.QuestionRepository) *ReviewService {
	return &ReviewService{
		SessionRepo:  sessionRepo,
		ResponseRepo: responseRepo,
		QuestionRepo: questionRepo,
	}
}

func (s *ReviewService) ListReviews(userID uint) ([]repository.ReviewRow, error) {
	return s.SessionRepo.ListReviews(userID)
}

type ReviewQuestion struct {
	QuestionID    uint            `json:"questionId"`
	Module        model.ModuleTag `json:"module"`
	SkillCategory string          `json:"skillCategory"`
	QuestionText  string          `json:"questionText"`
	UserAnswer    *string         `json:"userAnswer"`
	CorrectAnswer string          `json:"correctAnswer"`
	IsCorrect     bool            `json:"isCorrect"`
	TimeSpent     int             `json:"timeSpent"`
	IsFlagged     bool            `json:"isFlagged"`
	Explanation   string          `json:"explanation"`
}

type ReviewDetail struct {
	Session   *model.TestSession `json:"session"`
	Questions []ReviewQuestion   `json:"questions"`
}

// GetReview 单场考试的逐题回顾（只开放本人的会话）
func (s *ReviewService) GetReview(sessionID, userID uint) (*ReviewDetail, error) {
	sess, err := s.SessionRepo.FindByID(sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, util.ErrSessionNotFound
	}

	responses, err := s.ResponseRepo.GetBySession(sess.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(responses))
	for _, r := range responses {
		ids = append(ids, r.QuestionID)
	}
	questions, err := s.QuestionRepo.FindByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	items := make([]ReviewQuestion, 0, len(responses))
	for _, r := range responses {
		q, ok := byID[r.QuestionID]
		if !ok {
			continue
		}
		items = append(items, ReviewQuestion{
			QuestionID:    q.ID,
			Module:        q.Module,
			SkillCategory: q.SkillCategory,
			QuestionText:  q.QuestionText,
			UserAnswer:    r.UserAnswer,
			CorrectAnswer: q.CorrectAnswer,
			IsCorrect:     answerMatches(r.UserAnswer, q.CorrectAnswer),
			TimeSpent:     r.TimeSpent,
			IsFlagged:     r.IsFlagged,
			Explanation:   q.Explanation,
		})
	}

	return &ReviewDetail{Session: sess, Questions: items}, nil
}
