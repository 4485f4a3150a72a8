package service

import (
	"fmt"
	"testing"

	"sat_prep_backend/internal/model"
	"sat_prep_backend/internal/repository"
	"sat_prep_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	logger.Log = zap.NewNop()
}

// testEnv 内存 sqlite 上的完整服务栈，hub 不挂真实连接
type testEnv struct {
	db        *gorm.DB
	exam      *ExamService
	grading   *GradingService
	analytics *AnalyticsService
	review    *ReviewService

	examRepo     *repository.ExamRepository
	sessionRepo  *repository.SessionRepository
	responseRepo *repository.ResponseRepository
	questionRepo *repository.QuestionRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	// User 的列定义带 MySQL 专属语法，内存库用不到用户表，不迁移
	if err := db.AutoMigrate(
		&model.Exam{},
		&model.Question{},
		&model.TestSession{},
		&model.Response{},
		&model.UserAnalytics{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	examRepo := repository.NewExamRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	responseRepo := repository.NewResponseRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)

	grading := NewGradingService(questionRepo, responseRepo)
	analytics := NewAnalyticsService(analyticsRepo, grading)
	hub := NewSessionHub()
	exam := NewExamService(examRepo, sessionRepo, responseRepo, questionRepo, grading, analytics, hub)
	review := NewReviewService(sessionRepo, responseRepo, questionRepo)

	return &testEnv{
		db:           db,
		exam:         exam,
		grading:      grading,
		analytics:    analytics,
		review:       review,
		examRepo:     examRepo,
		sessionRepo:  sessionRepo,
		responseRepo: responseRepo,
		questionRepo: questionRepo,
	}
}

// seedExam 建一套试卷：每个模块在 1-5 每档难度各 perDifficulty 道题，
// 正确答案都是 "A"
func (e *testEnv) seedExam(t *testing.T, perDifficulty int) *model.Exam {
	t.Helper()

	exam := &model.Exam{Name: "Practice Test", IsActive: true}
	if err := e.examRepo.Create(exam); err != nil {
		t.Fatalf("create exam: %v", err)
	}

	var questions []model.Question
	for _, module := range model.ModuleSequence {
		for difficulty := 1; difficulty <= 5; difficulty++ {
			for i := 0; i < perDifficulty; i++ {
				questions = append(questions, model.Question{
					ExamID:        exam.ID,
					Module:        module,
					Difficulty:    difficulty,
					SkillCategory: fmt.Sprintf("skill-%d", difficulty),
					QuestionText:  fmt.Sprintf("%s d%d #%d", module, difficulty, i),
					CorrectAnswer: "A",
				})
			}
		}
	}
	if err := e.questionRepo.CreateBatch(questions); err != nil {
		t.Fatalf("create questions: %v", err)
	}
	return exam
}

// answerModule 把某模块的全部题目按给定正确率作答（难度档位过滤后）
func (e *testEnv) answerModule(t *testing.T, sess *model.TestSession, module model.ModuleTag, correctRatio float64) {
	t.Helper()

	var difficulty *model.Difficulty
	switch module {
	case model.ModuleRW2:
		difficulty = sess.Module2Difficulty
	case model.ModuleMath2:
		difficulty = sess.Math2Difficulty
	}

	questions, err := e.questionRepo.FindByModule(sess.ExamID, module, difficulty)
	if err != nil {
		t.Fatalf("load questions: %v", err)
	}
	if len(questions) == 0 {
		t.Fatalf("no questions for %s", module)
	}

	correct := int(correctRatio * float64(len(questions)))
	for i, q := range questions {
		answer := "A"
		if i >= correct {
			answer = "B"
		}
		_, err := e.exam.SubmitAnswer(sess.ID, sess.UserID, AnswerRequest{
			QuestionID:     q.ID,
			UserAnswer:     &answer,
			TimeSpent:      30,
			SequenceNumber: i + 1,
		})
		if err != nil {
			t.Fatalf("submit answer: %v", err)
		}
	}
}

func (e *testEnv) reload(t *testing.T, sessionID uint) *model.TestSession {
	t.Helper()
	sess, err := e.sessionRepo.FindByID(sessionID)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	return sess
}

func strPtr(s string) *string { return &s }
