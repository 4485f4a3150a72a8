package service

import (
	"testing"
	"time"

	"sat_prep_backend/internal/model"
	"sat_prep_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdaptiveFlow(t *testing.T) {
	env := newTestEnv(t)
	exam := env.seedExam(t, 2) // 每模块10题，自适应档位各4题（easy/hard）

	start, err := env.exam.StartSession(1, exam.ID, false)
	require.NoError(t, err)
	sess := start.Session
	require.NotNil(t, sess.CurrentModule)
	assert.Equal(t, model.ModuleRW1, *sess.CurrentModule)
	assert.Equal(t, util.RWModuleSeconds, sess.TimeRemaining)

	// RW 模块1 全对 → hard
	env.answerModule(t, sess, model.ModuleRW1, 1.0)
	result, err := env.exam.CompleteModule(sess.ID, sess.UserID, model.ModuleRW1)
	require.NoError(t, err)
	assert.Equal(t, 10, result.CorrectCount)
	assert.False(t, result.Completed)
	require.NotNil(t, result.NextModule)
	assert.Equal(t, model.ModuleRW2, *result.NextModule)
	require.NotNil(t, result.Difficulty)
	assert.Equal(t, model.DifficultyHard, *result.Difficulty)

	sess = env.reload(t, sess.ID)
	require.NotNil(t, sess.Module1Score)
	assert.Equal(t, 100, *sess.Module1Score)
	require.NotNil(t, sess.Module2Difficulty)
	assert.Equal(t, model.DifficultyHard, *sess.Module2Difficulty)
	require.NotNil(t, sess.CurrentModule)
	assert.Equal(t, model.ModuleRW2, *sess.CurrentModule)

	// RW 模块2（hard 档位4题）对一半
	env.answerModule(t, sess, model.ModuleRW2, 0.5)
	_, err = env.exam.CompleteModule(sess.ID, sess.UserID, model.ModuleRW2)
	require.NoError(t, err)

	sess = env.reload(t, sess.ID)
	require.NotNil(t, sess.RW2Score)
	assert.Equal(t, 50, *sess.RW2Score)
	// 0.4*1.0 + 0.6*0.5 + 0.03 = 0.73 → 638
	require.NotNil(t, sess.RWScore)
	assert.Equal(t, 638, *sess.RWScore)
	assert.Equal(t, util.MathModuleSeconds, sess.TimeRemaining)

	// Math 模块1 全错 → easy
	env.answerModule(t, sess, model.ModuleMath1, 0)
	result, err = env.exam.CompleteModule(sess.ID, sess.UserID, model.ModuleMath1)
	require.NoError(t, err)
	require.NotNil(t, result.Difficulty)
	assert.Equal(t, model.DifficultyEasy, *result.Difficulty)

	// Math 模块2（easy 档位4题）全对，整卷结束
	sess = env.reload(t, sess.ID)
	env.answerModule(t, sess, model.ModuleMath2, 1.0)
	result, err = env.exam.CompleteModule(sess.ID, sess.UserID, model.ModuleMath2)
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Nil(t, result.NextModule)

	sess = env.reload(t, sess.ID)
	assert.Equal(t, model.SessionCompleted, sess.Status)
	assert.Nil(t, sess.CurrentModule)
	assert.NotNil(t, sess.CompletedAt)
	// 0.4*0 + 0.6*1.0 - 0.03 = 0.57 → 542
	require.NotNil(t, sess.MathScore)
	assert.Equal(t, 542, *sess.MathScore)
	require.NotNil(t, sess.TotalScore)
	assert.Equal(t, 1180, *sess.TotalScore)
}

func TestCompleteModuleIdempotent(t *testing.T) {
	env := newTestEnv(t)
	exam := env.seedExam(t, 2)

	start, err := env.exam.StartSession(1, exam.ID, false)
	require.NoError(t, err)
	sess := start.Session

	env.answerModule(t, sess, model.ModuleRW1, 1.0)
	_, err = env.exam.CompleteModule(sess.ID, sess.UserID, model.ModuleRW1)
	require.NoError(t, err)

	// 重复提交：分数不重写，模块不回退，难度不变
	result, err := env.exam.CompleteModule(sess.ID, sess.UserID, model.ModuleRW1)
	require.NoError(t, err)
	require.NotNil(t, result.Difficulty)
	assert.Equal(t, model.DifficultyHard, *result.Difficulty)
	assert.False(t, result.Completed)
	assert.Nil(t, result.NextModule)

	sess = env.reload(t, sess.ID)
	require.NotNil(t, sess.Module1Score)
	assert.Equal(t, 100, *sess.Module1Score)
	require.NotNil(t, sess.CurrentModule)
	assert.Equal(t, model.ModuleRW2, *sess.CurrentModule)
}

func TestCompleteModuleInvalid(t *testing.T) {
	env := newTestEnv(t)
	exam := env.seedExam(t, 1)

	start, err := env.exam.StartSession(1, exam.ID, false)
	require.NoError(t, err)

	_, err = env.exam.CompleteModule(start.Session.ID, 1, model.ModuleTag("bogus"))
	assert.ErrorIs(t, err, util.ErrInvalidModule)
}

func TestStartSessionResumeAndForceNew(t *testing.T) {
	env := newTestEnv(t)
	exam := env.seedExam(t, 1)

	first, err := env.exam.StartSession(1, exam.ID, false)
	require.NoError(t, err)
	assert.False(t, first.RequiresConfirmation)

	// 再次开考：有活跃会话，要求确认
	again, err := env.exam.StartSession(1, exam.ID, false)
	require.NoError(t, err)
	assert.True(t, again.RequiresConfirmation)
	assert.True(t, again.Resumed)
	assert.Equal(t, first.Session.ID, again.Session.ID)

	// 留一条答题记录，重考时应一并清除
	questions, err := env.questionRepo.FindByModule(exam.ID, model.ModuleRW1, nil)
	require.NoError(t, err)
	_, err = env.exam.SubmitAnswer(first.Session.ID, 1, AnswerRequest{
		QuestionID: questions[0].ID,
		UserAnswer: strPtr("A"),
	})
	require.NoError(t, err)

	fresh, err := env.exam.StartSession(1, exam.ID, true)
	require.NoError(t, err)
	assert.False(t, fresh.RequiresConfirmation)
	assert.NotEqual(t, first.Session.ID, fresh.Session.ID)

	_, err = env.exam.SessionForUser(first.Session.ID, 1)
	assert.ErrorIs(t, err, util.ErrSessionNotFound)

	var count int64
	env.db.Model(&model.Response{}).Where("test_session_id = ?", first.Session.ID).Count(&count)
	assert.Zero(t, count)
}

func TestStartSessionInactiveExam(t *testing.T) {
	env := newTestEnv(t)

	exam := &model.Exam{Name: "Disabled", IsActive: false}
	require.NoError(t, env.examRepo.Create(exam))

	_, err := env.exam.StartSession(1, exam.ID, false)
	assert.ErrorIs(t, err, util.ErrExamNotFound)
}

func TestPauseSession(t *testing.T) {
	env := newTestEnv(t)
	exam := env.seedExam(t, 1)

	start, err := env.exam.StartSession(1, exam.ID, false)
	require.NoError(t, err)

	remaining := 1200
	module := model.ModuleRW1
	paused, err := env.exam.PauseSession(start.Session.ID, 1, &remaining, &module)
	require.NoError(t, err)
	assert.Equal(t, model.SessionPaused, paused.Status)
	assert.Equal(t, 1200, paused.TimeRemaining)

	// 重复暂停是幂等操作，调用方的新快照生效
	remaining = 900
	paused, err = env.exam.PauseSession(start.Session.ID, 1, &remaining, nil)
	require.NoError(t, err)
	assert.Equal(t, model.SessionPaused, paused.Status)
	assert.Equal(t, 900, paused.TimeRemaining)

	bogus := model.ModuleTag("bogus")
	_, err = env.exam.PauseSession(start.Session.ID, 1, nil, &bogus)
	assert.ErrorIs(t, err, util.ErrInvalidModule)
}

func TestSessionOwnership(t *testing.T) {
	env := newTestEnv(t)
	exam := env.seedExam(t, 1)

	start, err := env.exam.StartSession(1, exam.ID, false)
	require.NoError(t, err)

	// 他人的会话与不存在的会话返回同一个错误
	_, err = env.exam.GetSessionStatus(start.Session.ID, 2)
	assert.ErrorIs(t, err, util.ErrSessionNotFound)
	_, err = env.exam.GetSessionStatus(99999, 2)
	assert.ErrorIs(t, err, util.ErrSessionNotFound)
	_, err = env.exam.CompleteModule(start.Session.ID, 2, model.ModuleRW1)
	assert.ErrorIs(t, err, util.ErrSessionNotFound)
}

func TestSubmitAnswerUpsert(t *testing.T) {
	env := newTestEnv(t)
	exam := env.seedExam(t, 1)

	start, err := env.exam.StartSession(1, exam.ID, false)
	require.NoError(t, err)
	sess := start.Session

	questions, err := env.questionRepo.FindByModule(exam.ID, model.ModuleRW1, nil)
	require.NoError(t, err)
	q := questions[0]

	_, err = env.exam.SubmitAnswer(sess.ID, 1, AnswerRequest{
		QuestionID: q.ID,
		UserAnswer: strPtr("B"),
		TimeSpent:  20,
	})
	require.NoError(t, err)

	// 二次提交：答案覆盖，用时累加，仍是一条记录
	resp, err := env.exam.SubmitAnswer(sess.ID, 1, AnswerRequest{
		QuestionID: q.ID,
		UserAnswer: strPtr("A"),
		TimeSpent:  15,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.UserAnswer)
	assert.Equal(t, "A", *resp.UserAnswer)
	assert.Equal(t, 35, resp.TimeSpent)

	var count int64
	env.db.Model(&model.Response{}).Where("test_session_id = ?", sess.ID).Count(&count)
	assert.EqualValues(t, 1, count)

	_, err = env.exam.SubmitAnswer(sess.ID, 1, AnswerRequest{})
	assert.ErrorIs(t, err, util.ErrQuestionRequired)
}

func TestSubmitAnswerAfterCompletion(t *testing.T) {
	env := newTestEnv(t)
	exam := env.seedExam(t, 1)

	start, err := env.exam.StartSession(1, exam.ID, false)
	require.NoError(t, err)
	require.NoError(t, env.sessionRepo.UpdateFields(start.Session.ID, map[string]interface{}{
		"status": model.SessionCompleted,
	}))

	questions, err := env.questionRepo.FindByModule(exam.ID, model.ModuleRW1, nil)
	require.NoError(t, err)

	_, err = env.exam.SubmitAnswer(start.Session.ID, 1, AnswerRequest{
		QuestionID: questions[0].ID,
		UserAnswer: strPtr("A"),
	})
	assert.ErrorIs(t, err, util.ErrSessionCompleted)

	_, err = env.exam.PauseSession(start.Session.ID, 1, nil, nil)
	assert.ErrorIs(t, err, util.ErrSessionCompleted)
}

func TestCompleteExam(t *testing.T) {
	env := newTestEnv(t)
	exam := env.seedExam(t, 2)

	start, err := env.exam.StartSession(1, exam.ID, false)
	require.NoError(t, err)
	sess := start.Session

	env.answerModule(t, sess, model.ModuleRW1, 1.0)
	_, err = env.exam.CompleteModule(sess.ID, 1, model.ModuleRW1)
	require.NoError(t, err)
	sess = env.reload(t, sess.ID)
	env.answerModule(t, sess, model.ModuleRW2, 0.5)
	_, err = env.exam.CompleteModule(sess.ID, 1, model.ModuleRW2)
	require.NoError(t, err)
	env.answerModule(t, sess, model.ModuleMath1, 0)
	_, err = env.exam.CompleteModule(sess.ID, 1, model.ModuleMath1)
	require.NoError(t, err)
	sess = env.reload(t, sess.ID)
	env.answerModule(t, sess, model.ModuleMath2, 1.0)
	_, err = env.exam.CompleteModule(sess.ID, 1, model.ModuleMath2)
	require.NoError(t, err)

	final, err := env.exam.CompleteExam(sess.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 638, final.RWScore)
	assert.Equal(t, 542, final.MathScore)
	assert.Equal(t, 1180, final.TotalScore)
	require.NotNil(t, final.Overall)

	// 成绩分析快照已落库
	row, err := env.analytics.GetBySession(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, 1180, row.TotalScore)

	// 重复交卷：已锁定的分数不变
	again, err := env.exam.CompleteExam(sess.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, final.TotalScore, again.TotalScore)
	assert.Equal(t, final.RWScore, again.RWScore)
}

func TestCompleteExamLegacyFallback(t *testing.T) {
	env := newTestEnv(t)
	exam := env.seedExam(t, 1)

	// 没有模块级记录的历史会话，交卷时降级走整区正确率线性换算
	now := time.Now()
	module := model.ModuleRW1
	sess := &model.TestSession{
		UserID:        7,
		ExamID:        exam.ID,
		Status:        model.SessionInProgress,
		CurrentModule: &module,
		StartedAt:     &now,
	}
	require.NoError(t, env.sessionRepo.Create(sess))

	questions, err := env.questionRepo.FindByModule(exam.ID, model.ModuleRW1, nil)
	require.NoError(t, err)
	for _, q := range questions {
		_, err := env.exam.SubmitAnswer(sess.ID, 7, AnswerRequest{
			QuestionID: q.ID,
			UserAnswer: strPtr("A"),
		})
		require.NoError(t, err)
	}

	final, err := env.exam.CompleteExam(sess.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 800, final.RWScore) // ScaleLinear(1.0)
	assert.Equal(t, 0, final.MathScore) // 无数学作答
	assert.Equal(t, 800, final.TotalScore)

	fresh := env.reload(t, sess.ID)
	assert.Equal(t, model.SessionCompleted, fresh.Status)
	assert.Nil(t, fresh.CurrentModule)
}

func TestGetSessionMeta(t *testing.T) {
	env := newTestEnv(t)
	exam := env.seedExam(t, 1)

	start, err := env.exam.StartSession(1, exam.ID, false)
	require.NoError(t, err)

	meta, err := env.exam.GetSessionMeta(start.Session.ID, 1)
	require.NoError(t, err)
	require.Len(t, meta.Modules, 4)
	assert.Equal(t, model.ModuleRW1, meta.Modules[0].Module)
	assert.Equal(t, util.RWModuleSeconds, meta.Modules[0].DurationSeconds)
	assert.Equal(t, util.MathModuleSeconds, meta.Modules[3].DurationSeconds)
	assert.Equal(t, exam.ID, meta.Exam.ID)
}
