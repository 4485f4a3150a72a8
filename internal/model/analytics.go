package model

import "encoding/json"

// UserAnalytics 考试完成后的成绩分析快照，每个 (user, session) 一行
// swagger:model UserAnalytics
type UserAnalytics struct {
	BaseModel
	UserID        uint `gorm:"index;type:bigint unsigned;not null" json:"userId"`
	ExamID        uint `gorm:"index;type:bigint unsigned;not null" json:"examId"`
	TestSessionID uint `gorm:"uniqueIndex;type:bigint unsigned;not null" json:"testSessionId"`

	RWScore    int `gorm:"column:rw_score" json:"rwScore"`
	MathScore  int `json:"mathScore"`
	TotalScore int `json:"totalScore"`

	RWAccuracy         float64 `gorm:"column:rw_accuracy" json:"rwAccuracy"`
	MathAccuracy       float64 `json:"mathAccuracy"`
	AvgTimePerQuestion float64 `json:"avgTimePerQuestion"` // 秒

	Strengths  json.RawMessage `gorm:"type:json" json:"strengths"`  // []string 技能类别
	Weaknesses json.RawMessage `gorm:"type:json" json:"weaknesses"` // []string 技能类别
}

func (UserAnalytics) TableName() string {
	return "user_analytics"
}
