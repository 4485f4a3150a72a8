package service

import (
	"context"
	"encoding/json"
	"testing"

	"sat_prep_backend/internal/model"
	"sat_prep_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQuestionService(env *testEnv) *QuestionService {
	// 存储与 redis 缓存在内存库测试里不参与
	return NewQuestionService(env.questionRepo, env.examRepo, nil, nil)
}

func TestGetModuleQuestions(t *testing.T) {
	env := newTestEnv(t)
	exam := env.seedExam(t, 2)
	qs := newQuestionService(env)

	start, err := env.exam.StartSession(1, exam.ID, false)
	require.NoError(t, err)
	sess := start.Session

	// 模块1不过滤难度，投放内容不含答案
	delivered, err := qs.GetModuleQuestions(context.Background(), sess, model.ModuleRW1)
	require.NoError(t, err)
	require.Len(t, delivered, 10)
	for _, q := range delivered {
		assert.Equal(t, model.ModuleRW1, q.Module)
		assert.NotEmpty(t, q.QuestionText)
	}

	// raw JSON 序列化后也不应泄露答案字段
	payload, err := json.Marshal(delivered)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "correctAnswer")
	assert.NotContains(t, string(payload), "explanation")

	_, err = qs.GetModuleQuestions(context.Background(), sess, model.ModuleTag("bogus"))
	assert.ErrorIs(t, err, util.ErrInvalidModule)
}

func TestGetModuleQuestionsAdaptiveBand(t *testing.T) {
	env := newTestEnv(t)
	exam := env.seedExam(t, 2)
	qs := newQuestionService(env)

	start, err := env.exam.StartSession(1, exam.ID, false)
	require.NoError(t, err)
	sess := start.Session

	// 难度未确定时模块2不过滤
	delivered, err := qs.GetModuleQuestions(context.Background(), sess, model.ModuleRW2)
	require.NoError(t, err)
	assert.Len(t, delivered, 10)

	easy := model.DifficultyEasy
	require.NoError(t, env.sessionRepo.UpdateFields(sess.ID, map[string]interface{}{
		"module2_difficulty": easy,
	}))
	sess = env.reload(t, sess.ID)

	// easy 档位只含难度 1-2
	delivered, err = qs.GetModuleQuestions(context.Background(), sess, model.ModuleRW2)
	require.NoError(t, err)
	assert.Len(t, delivered, 4)
}

func TestQuestionAdminCRUD(t *testing.T) {
	env := newTestEnv(t)
	qs := newQuestionService(env)

	exam, err := qs.CreateExam(ExamRequest{Name: "Admin Test"})
	require.NoError(t, err)
	assert.True(t, exam.IsActive)

	q, err := qs.CreateQuestion(QuestionRequest{
		ExamID:        exam.ID,
		Module:        model.ModuleMath1,
		Difficulty:    3,
		SkillCategory: "Algebra",
		QuestionText:  "2 + 2 = ?",
		Options:       json.RawMessage(`["3","4","5","6"]`),
		CorrectAnswer: "4",
	})
	require.NoError(t, err)

	// 题量计数已刷新
	fresh, err := env.examRepo.FindByID(exam.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.TotalQuestions)

	updated, err := qs.UpdateQuestion(q.ID, QuestionRequest{
		ExamID:        exam.ID,
		Module:        model.ModuleMath1,
		Difficulty:    4,
		QuestionText:  "3 + 3 = ?",
		CorrectAnswer: "6",
	})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Difficulty)
	assert.Equal(t, "3 + 3 = ?", updated.QuestionText)

	_, err = qs.CreateQuestion(QuestionRequest{
		ExamID:        99999,
		Module:        model.ModuleMath1,
		Difficulty:    1,
		QuestionText:  "orphan",
		CorrectAnswer: "A",
	})
	assert.ErrorIs(t, err, util.ErrExamNotFound)

	_, err = qs.CreateQuestion(QuestionRequest{
		ExamID:        exam.ID,
		Module:        model.ModuleTag("bogus"),
		Difficulty:    1,
		QuestionText:  "bad module",
		CorrectAnswer: "A",
	})
	assert.ErrorIs(t, err, util.ErrInvalidModule)

	require.NoError(t, qs.DeleteQuestion(q.ID))
	fresh, err = env.examRepo.FindByID(exam.ID)
	require.NoError(t, err)
	assert.Zero(t, fresh.TotalQuestions)
}

func TestSetExamActive(t *testing.T) {
	env := newTestEnv(t)
	qs := newQuestionService(env)

	exam, err := qs.CreateExam(ExamRequest{Name: "Toggle"})
	require.NoError(t, err)

	require.NoError(t, qs.SetExamActive(exam.ID, false))
	active, err := qs.ListActiveExams()
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, qs.SetExamActive(exam.ID, true))
	active, err = qs.ListActiveExams()
	require.NoError(t, err)
	assert.Len(t, active, 1)

	assert.ErrorIs(t, qs.SetExamActive(99999, false), util.ErrExamNotFound)
}

func TestExamCreatedInactiveStaysInactive(t *testing.T) {
	env := newTestEnv(t)

	// 直接建停用试卷，落库后不能被默认值翻成启用
	exam := &model.Exam{Name: "Disabled", IsActive: false}
	require.NoError(t, env.examRepo.Create(exam))

	stored, err := env.examRepo.FindByID(exam.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}
