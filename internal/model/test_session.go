package model

import (
	"time"
)

type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionPaused     SessionStatus = "paused"
	SessionCompleted  SessionStatus = "completed"
)

// TestSession 一次完整的自适应考试（四个模块）的会话状态
// swagger:model TestSession
type TestSession struct {
	BaseModel
	UserID uint `gorm:"index;type:bigint unsigned;not null" json:"userId"`
	ExamID uint `gorm:"index;type:bigint unsigned;not null" json:"examId"`

	Status        SessionStatus `gorm:"size:20;default:'in_progress';index" json:"status"`
	CurrentModule *ModuleTag    `gorm:"size:30" json:"currentModule"`
	TimeRemaining int           `gorm:"default:0" json:"timeRemaining"` // 当前模块剩余秒数
	StartedAt     *time.Time    `json:"startedAt"`
	CompletedAt   *time.Time    `json:"completedAt"`

	// 模块原始得分（百分比 0-100），未判分前为 null，判分后不可覆盖
	Module1Score *int `json:"module1Score"` // RW 模块1
	RW2Score     *int `gorm:"column:rw2_score" json:"rw2Score"`
	Math1Score   *int `json:"math1Score"`
	Math2Score   *int `json:"math2Score"`

	// 自适应难度决定，模块1完成时写入一次，之后不再改变
	Module2Difficulty *Difficulty `gorm:"size:10" json:"module2Difficulty"`
	Math2Difficulty   *Difficulty `gorm:"size:10" json:"math2Difficulty"`

	// 换算后的分数，区完成时各计算一次: 200-800 / 400-1600
	RWScore    *int `gorm:"column:rw_score" json:"rwScore"`
	MathScore  *int `json:"mathScore"`
	TotalScore *int `json:"totalScore"`
}

func (TestSession) TableName() string {
	return "test_sessions"
}

// ModuleScore 返回指定模块已记录的原始得分
func (s *TestSession) ModuleScore(m ModuleTag) *int {
	switch m {
	case ModuleRW1:
		return s.Module1Score
	case ModuleRW2:
		return s.RW2Score
	case ModuleMath1:
		return s.Math1Score
	case ModuleMath2:
		return s.Math2Score
	}
	return nil
}

// SectionScore 返回该区已换算的标准分
func (s *TestSession) SectionScore(sec Section) *int {
	if sec == SectionMath {
		return s.MathScore
	}
	return s.RWScore
}

// SectionDifficulty 返回该区模块2的自适应难度
func (s *TestSession) SectionDifficulty(sec Section) *Difficulty {
	if sec == SectionMath {
		return s.Math2Difficulty
	}
	return s.Module2Difficulty
}

// Response 答题记录，(test_session_id, question_id) 唯一
// swagger:model Response
type Response struct {
	BaseModel
	TestSessionID  uint    `gorm:"uniqueIndex:idx_session_question;type:bigint unsigned;not null" json:"testSessionId"`
	QuestionID     uint    `gorm:"uniqueIndex:idx_session_question;type:bigint unsigned;not null" json:"questionId"`
	UserAnswer     *string `gorm:"size:255" json:"userAnswer"`
	TimeSpent      int     `gorm:"default:0" json:"timeSpent"` // 秒，多次保存累加
	SequenceNumber int     `gorm:"default:0" json:"sequenceNumber"`
	IsFlagged      bool    `gorm:"default:false" json:"isFlagged"`
}

func (Response) TableName() string {
	return "responses"
}
