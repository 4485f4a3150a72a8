package util

import "errors"

var (
	ErrUserNotFound    = errors.New("用户不存在")
	ErrEmailRegistered = errors.New("该邮箱已被注册")
	ErrExamNotFound    = errors.New("exam not found")
	// 会话不存在和会话属于他人统一报这个错，避免泄露会话是否存在
	ErrSessionNotFound  = errors.New("test session not found")
	ErrSessionCompleted = errors.New("test session already completed")
	ErrInvalidModule    = errors.New("invalid module tag")
	ErrSessionVanished  = errors.New("test session disappeared mid-transition")
	ErrQuestionRequired = errors.New("questionId is required")
)
