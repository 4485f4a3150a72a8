package service

import (
	"testing"

	"sat_prep_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerMatches(t *testing.T) {
	tests := []struct {
		name    string
		user    *string
		correct string
		want    bool
	}{
		{"nil answer", nil, "A", false},
		{"blank answer", strPtr(""), "A", false},
		{"whitespace only", strPtr("   "), "A", false},
		{"exact match", strPtr("A"), "A", true},
		{"case insensitive", strPtr("a"), "A", true},
		{"surrounding whitespace", strPtr(" b "), "B", true},
		{"wrong answer", strPtr("B"), "A", false},
		{"blank never matches blank", strPtr(""), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, answerMatches(tt.user, tt.correct))
		})
	}
}

func TestGradeModule(t *testing.T) {
	env := newTestEnv(t)
	exam := env.seedExam(t, 1) // 每模块每档难度1题，模块共5题

	start, err := env.exam.StartSession(1, exam.ID, false)
	require.NoError(t, err)
	sess := start.Session

	questions, err := env.questionRepo.FindByModule(exam.ID, model.ModuleRW1, nil)
	require.NoError(t, err)
	require.Len(t, questions, 5)

	// 2 对（其中一个带空白和大小写差异）、1 错、1 空答案、1 未作答
	answers := []*string{strPtr("A"), strPtr(" a "), strPtr("B"), strPtr("")}
	for i, ans := range answers {
		_, err := env.exam.SubmitAnswer(sess.ID, sess.UserID, AnswerRequest{
			QuestionID: questions[i].ID,
			UserAnswer: ans,
			TimeSpent:  10,
		})
		require.NoError(t, err)
	}

	grade, err := env.grading.GradeModule(sess, model.ModuleRW1)
	require.NoError(t, err)
	assert.Equal(t, 2, grade.CorrectCount)
	assert.Equal(t, 5, grade.TotalQuestions)
	assert.InDelta(t, 0.4, grade.Percent, 1e-9)
}

func TestGradeModuleEmptySet(t *testing.T) {
	env := newTestEnv(t)

	exam := &model.Exam{Name: "Empty Test", IsActive: true}
	require.NoError(t, env.examRepo.Create(exam))

	start, err := env.exam.StartSession(1, exam.ID, false)
	require.NoError(t, err)

	grade, err := env.grading.GradeModule(start.Session, model.ModuleMath1)
	require.NoError(t, err)
	assert.Equal(t, 0, grade.CorrectCount)
	assert.Equal(t, 0, grade.TotalQuestions)
	assert.Zero(t, grade.Percent)
}

func TestGradeModuleBandFilter(t *testing.T) {
	env := newTestEnv(t)
	exam := env.seedExam(t, 2) // rw_2 每档难度2题

	start, err := env.exam.StartSession(1, exam.ID, false)
	require.NoError(t, err)
	sess := start.Session

	hard := model.DifficultyHard
	require.NoError(t, env.sessionRepo.UpdateFields(sess.ID, map[string]interface{}{
		"module2_difficulty": hard,
	}))
	sess = env.reload(t, sess.ID)

	// hard 档位只包含难度 4-5，共4题；全部答对
	bandQuestions, err := env.questionRepo.FindByModule(exam.ID, model.ModuleRW2, &hard)
	require.NoError(t, err)
	require.Len(t, bandQuestions, 4)
	for _, q := range bandQuestions {
		_, err := env.exam.SubmitAnswer(sess.ID, sess.UserID, AnswerRequest{
			QuestionID: q.ID,
			UserAnswer: strPtr("A"),
		})
		require.NoError(t, err)
	}

	// 档位外的答题记录不参与该模块判分
	allRW2, err := env.questionRepo.FindByModule(exam.ID, model.ModuleRW2, nil)
	require.NoError(t, err)
	for _, q := range allRW2 {
		if q.Difficulty < 4 {
			_, err := env.exam.SubmitAnswer(sess.ID, sess.UserID, AnswerRequest{
				QuestionID: q.ID,
				UserAnswer: strPtr("A"),
			})
			require.NoError(t, err)
			break
		}
	}

	grade, err := env.grading.GradeModule(sess, model.ModuleRW2)
	require.NoError(t, err)
	assert.Equal(t, 4, grade.CorrectCount)
	assert.Equal(t, 4, grade.TotalQuestions)
	assert.InDelta(t, 1.0, grade.Percent, 1e-9)
}

func TestGradeOverall(t *testing.T) {
	env := newTestEnv(t)
	exam := env.seedExam(t, 1)

	start, err := env.exam.StartSession(1, exam.ID, false)
	require.NoError(t, err)
	sess := start.Session

	questions, err := env.questionRepo.FindByModule(exam.ID, model.ModuleRW1, nil)
	require.NoError(t, err)

	// skill-1 答对，skill-2 答错，其余不答
	for _, q := range questions[:2] {
		answer := "A"
		if q.SkillCategory == "skill-2" {
			answer = "B"
		}
		_, err := env.exam.SubmitAnswer(sess.ID, sess.UserID, AnswerRequest{
			QuestionID: q.ID,
			UserAnswer: &answer,
			TimeSpent:  20,
		})
		require.NoError(t, err)
	}

	overall, err := env.grading.GradeOverall(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, overall.CorrectCount)
	assert.Equal(t, 2, overall.TotalQuestions)
	assert.InDelta(t, 20.0, overall.AvgTimePerQuestion, 1e-9)
	require.NotEmpty(t, overall.Strengths)
	require.NotEmpty(t, overall.Weaknesses)
	assert.Equal(t, "skill-1", overall.Strengths[0])
	assert.Equal(t, "skill-2", overall.Weaknesses[0])
	assert.Len(t, overall.SkillBreakdown, 2)
}

func TestGradeOverallNoResponses(t *testing.T) {
	env := newTestEnv(t)
	exam := env.seedExam(t, 1)

	start, err := env.exam.StartSession(1, exam.ID, false)
	require.NoError(t, err)

	overall, err := env.grading.GradeOverall(start.Session.ID)
	require.NoError(t, err)
	assert.Zero(t, overall.TotalQuestions)
	assert.Empty(t, overall.Strengths)
	assert.Empty(t, overall.Weaknesses)
}
