package service

import (
	"sync"
	"testing"

	"sat_prep_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 并发重复提交同一个模块完成请求：判分只落一次，模块只前移一格
func TestConcurrentModuleCompletion(t *testing.T) {
	env := newTestEnv(t)
	exam := env.seedExam(t, 2)

	start, err := env.exam.StartSession(1, exam.ID, false)
	require.NoError(t, err)
	sess := start.Session

	env.answerModule(t, sess, model.ModuleRW1, 1.0)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.exam.CompleteModule(sess.ID, 1, model.ModuleRW1)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}

	fresh := env.reload(t, sess.ID)
	require.NotNil(t, fresh.Module1Score)
	assert.Equal(t, 100, *fresh.Module1Score)
	require.NotNil(t, fresh.Module2Difficulty)
	assert.Equal(t, model.DifficultyHard, *fresh.Module2Difficulty)
	require.NotNil(t, fresh.CurrentModule)
	assert.Equal(t, model.ModuleRW2, *fresh.CurrentModule)
}

// 并发暂停与完成模块交错不破坏会话状态
func TestConcurrentPauseAndComplete(t *testing.T) {
	env := newTestEnv(t)
	exam := env.seedExam(t, 1)

	start, err := env.exam.StartSession(1, exam.ID, false)
	require.NoError(t, err)
	sess := start.Session

	env.answerModule(t, sess, model.ModuleRW1, 1.0)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		remaining := 600
		env.exam.PauseSession(sess.ID, 1, &remaining, nil)
	}()
	go func() {
		defer wg.Done()
		env.exam.CompleteModule(sess.ID, 1, model.ModuleRW1)
	}()
	wg.Wait()

	fresh := env.reload(t, sess.ID)
	// 不论先后，模块分都已锁定且会话未损坏
	require.NotNil(t, fresh.Module1Score)
	assert.Equal(t, 100, *fresh.Module1Score)
	assert.Contains(t, []model.SessionStatus{model.SessionInProgress, model.SessionPaused}, fresh.Status)
}
