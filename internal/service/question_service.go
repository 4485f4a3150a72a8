package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"sat_prep_backend/internal/model"
	"sat_prep_backend/internal/repository"
	"sat_prep_backend/internal/util"
	"sat_prep_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	questionCacheTTL       = 10 * time.Minute
	questionCacheKeyPrefix = "exam:questions:"
)

// QuestionService 题目投放与题库管理。投放侧按 (试卷, 模块, 难度档) 做
// redis 缓存并剥掉答案；管理侧的增删改会让对应试卷的缓存失效。
type QuestionService struct {
	QuestionRepo *repository.QuestionRepository
	ExamRepo     *repository.ExamRepository
	Storage      *StorageService
	Redis        *redis.Client
}

func NewQuestionService(questionRepo *repository.QuestionRepository, examRepo *repository.ExamRepository, storage *StorageService, rdb *redis.Client) *QuestionService {
	return &QuestionService{
		QuestionRepo: questionRepo,
		ExamRepo:     examRepo,
		Storage:      storage,
		Redis:        rdb,
	}
}

// StudentQuestion 投放给考生的题目，不带答案和解析
type StudentQuestion struct {
	ID            uint            `json:"id"`
	Module        model.ModuleTag `json:"module"`
	SkillCategory string          `json:"skillCategory"`
	QuestionText  string          `json:"questionText"`
	QuestionData  json.RawMessage `json:"questionData,omitempty"`
	Options       json.RawMessage `json:"options"`
	AssetURL      string          `json:"assetUrl,omitempty"`
}

func cacheKey(examID uint, module model.ModuleTag, difficulty *model.Difficulty) string {
	band := "all"
	if difficulty != nil {
		band = string(*difficulty)
	}
	return fmt.Sprintf("%s%d:%s:%s", questionCacheKeyPrefix, examID, module, band)
}

// GetModuleQuestions 按会话取某模块的题目。模块2按会话已记录的难度档位
// 过滤；档位尚未产生时不过滤。
func (s *QuestionService) GetModuleQuestions(ctx context.Context, sess *model.TestSession, module model.ModuleTag) ([]StudentQuestion, error) {
	if !module.Valid() {
		return nil, util.ErrInvalidModule
	}

	var difficulty *model.Difficulty
	switch module {
	case model.ModuleRW2:
		difficulty = sess.Module2Difficulty
	case model.ModuleMath2:
		difficulty = sess.Math2Difficulty
	}

	key := cacheKey(sess.ExamID, module, difficulty)
	if s.Redis != nil {
		if val, err := s.Redis.Get(ctx, key).Result(); err == nil {
			var cached []StudentQuestion
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return cached, nil
			}
		} else if err != redis.Nil {
			logger.Log.Warn("question cache read failed", zap.Error(err))
		}
	}

	questions, err := s.QuestionRepo.FindByModule(sess.ExamID, module, difficulty)
	if err != nil {
		return nil, err
	}

	safe := make([]StudentQuestion, len(questions))
	for i, q := range questions {
		safe[i] = StudentQuestion{
			ID:            q.ID,
			Module:        q.Module,
			SkillCategory: q.SkillCategory,
			QuestionText:  q.QuestionText,
			QuestionData:  q.QuestionData,
			Options:       q.Options,
			AssetURL:      q.AssetURL,
		}
	}

	if s.Redis != nil {
		if payload, err := json.Marshal(safe); err == nil {
			if err := s.Redis.Set(ctx, key, payload, questionCacheTTL).Err(); err != nil {
				logger.Log.Warn("question cache write failed", zap.Error(err))
			}
		}
	}
	return safe, nil
}

// invalidateExamCache 题库变更后清掉该试卷全部模块/档位组合的缓存
func (s *QuestionService) invalidateExamCache(ctx context.Context, examID uint) {
	if s.Redis == nil {
		return
	}
	bands := []string{"all", string(model.DifficultyEasy), string(model.DifficultyMedium), string(model.DifficultyHard)}
	keys := make([]string, 0, len(model.ModuleSequence)*len(bands))
	for _, module := range model.ModuleSequence {
		for _, band := range bands {
			keys = append(keys, fmt.Sprintf("%s%d:%s:%s", questionCacheKeyPrefix, examID, module, band))
		}
	}
	if err := s.Redis.Del(ctx, keys...).Err(); err != nil {
		logger.Log.Warn("question cache invalidation failed", zap.Uint("examId", examID), zap.Error(err))
	}
}

type ExamRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (s *QuestionService) CreateExam(req ExamRequest) (*model.Exam, error) {
	exam := &model.Exam{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
	}
	if err := s.ExamRepo.Create(exam); err != nil {
		return nil, err
	}
	return exam, nil
}

func (s *QuestionService) ListActiveExams() ([]model.Exam, error) {
	return s.ExamRepo.FindAllActive()
}

func (s *QuestionService) ListExams(page, limit int) ([]model.Exam, int64, error) {
	return s.ExamRepo.List(page, limit)
}

func (s *QuestionService) SetExamActive(examID uint, active bool) error {
	if _, err := s.ExamRepo.FindByID(examID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrExamNotFound
		}
		return err
	}
	return s.ExamRepo.SetActive(examID, active)
}

type QuestionRequest struct {
	ExamID        uint            `json:"examId" binding:"required"`
	Module        model.ModuleTag `json:"module" binding:"required"`
	Difficulty    int             `json:"difficulty" binding:"required,min=1,max=5"`
	SkillCategory string          `json:"skillCategory"`
	QuestionText  string          `json:"questionText" binding:"required"`
	QuestionData  json.RawMessage `json:"questionData"`
	Options       json.RawMessage `json:"options"`
	CorrectAnswer string          `json:"correctAnswer" binding:"required"`
	Explanation   string          `json:"explanation"`
	AssetURL      string          `json:"assetUrl"`
}

func (s *QuestionService) CreateQuestion(req QuestionRequest) (*model.Question, error) {
	if !req.Module.Valid() {
		return nil, util.ErrInvalidModule
	}
	if _, err := s.ExamRepo.FindByID(req.ExamID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrExamNotFound
		}
		return nil, err
	}

	q := &model.Question{
		ExamID:        req.ExamID,
		Module:        req.Module,
		Difficulty:    req.Difficulty,
		SkillCategory: req.SkillCategory,
		QuestionText:  req.QuestionText,
		QuestionData:  req.QuestionData,
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
		Explanation:   req.Explanation,
		AssetURL:      req.AssetURL,
	}
	q.NormalizeOptions()
	if err := s.QuestionRepo.Create(q); err != nil {
		return nil, err
	}

	s.refreshExamQuestionCount(req.ExamID)
	s.invalidateExamCache(context.Background(), req.ExamID)
	return q, nil
}

func (s *QuestionService) UpdateQuestion(id uint, req QuestionRequest) (*model.Question, error) {
	q, err := s.QuestionRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if !req.Module.Valid() {
		return nil, util.ErrInvalidModule
	}

	q.Module = req.Module
	q.Difficulty = req.Difficulty
	q.SkillCategory = req.SkillCategory
	q.QuestionText = req.QuestionText
	q.QuestionData = req.QuestionData
	q.Options = req.Options
	q.CorrectAnswer = req.CorrectAnswer
	q.Explanation = req.Explanation
	q.AssetURL = req.AssetURL
	q.NormalizeOptions()
	if err := s.QuestionRepo.Update(q); err != nil {
		return nil, err
	}

	s.invalidateExamCache(context.Background(), q.ExamID)
	return q, nil
}

func (s *QuestionService) DeleteQuestion(id uint) error {
	q, err := s.QuestionRepo.FindByID(id)
	if err != nil {
		return err
	}
	if err := s.QuestionRepo.Delete(id); err != nil {
		return err
	}
	s.refreshExamQuestionCount(q.ExamID)
	s.invalidateExamCache(context.Background(), q.ExamID)
	return nil
}

func (s *QuestionService) refreshExamQuestionCount(examID uint) {
	count, err := s.QuestionRepo.CountByExam(examID)
	if err != nil {
		logger.Log.Warn("question count refresh failed", zap.Uint("examId", examID), zap.Error(err))
		return
	}
	exam, err := s.ExamRepo.FindByID(examID)
	if err != nil {
		return
	}
	exam.TotalQuestions = int(count)
	if err := s.ExamRepo.Update(exam); err != nil {
		logger.Log.Warn("question count persist failed", zap.Uint("examId", examID), zap.Error(err))
	}
}

// UploadAsset 题目配图上传，文件名用 uuid 防冲突
func (s *QuestionService) UploadAsset(ctx context.Context, file *multipart.FileHeader) (string, error) {
	if file.Size > util.MaxAssetSizeBytes {
		return "", errors.New("file too large")
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	allowed := false
	for _, e := range util.AllowedAssetExtensions {
		if ext == e {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", fmt.Errorf("unsupported file extension %s", ext)
	}

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	filename := "question-assets/" + uuid.New().String() + ext
	return s.Storage.Upload(ctx, filename, src, file.Size, file.Header.Get("Content-Type"))
}
