package model

import (
	"encoding/json"
)

// ModuleTag 试卷的四个固定模块，顺序固定
type ModuleTag string

const (
	ModuleRW1   ModuleTag = "reading_writing_1"
	ModuleRW2   ModuleTag = "reading_writing_2"
	ModuleMath1 ModuleTag = "math_1"
	ModuleMath2 ModuleTag = "math_2"
)

// ModuleSequence 模块的固定推进顺序
var ModuleSequence = []ModuleTag{ModuleRW1, ModuleRW2, ModuleMath1, ModuleMath2}

func (m ModuleTag) Valid() bool {
	for _, t := range ModuleSequence {
		if m == t {
			return true
		}
	}
	return false
}

// Next 返回顺序中的下一个模块；math_2 之后没有下一个模块
func (m ModuleTag) Next() (ModuleTag, bool) {
	for i, t := range ModuleSequence {
		if m == t && i+1 < len(ModuleSequence) {
			return ModuleSequence[i+1], true
		}
	}
	return "", false
}

// Section 题目所属的大区 (rw / math)
type Section string

const (
	SectionRW   Section = "rw"
	SectionMath Section = "math"
)

func (m ModuleTag) Section() Section {
	if m == ModuleMath1 || m == ModuleMath2 {
		return SectionMath
	}
	return SectionRW
}

func (s Section) Modules() []ModuleTag {
	if s == SectionMath {
		return []ModuleTag{ModuleMath1, ModuleMath2}
	}
	return []ModuleTag{ModuleRW1, ModuleRW2}
}

// Difficulty 自适应难度档位，由模块1的正确率决定
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Band 档位对应的题目难度区间: easy={1,2} medium={3} hard={4,5}
func (d Difficulty) Band() (min, max int, ok bool) {
	switch d {
	case DifficultyEasy:
		return 1, 2, true
	case DifficultyMedium:
		return 3, 3, true
	case DifficultyHard:
		return 4, 5, true
	}
	return 0, 0, false
}

// swagger:model Exam
type Exam struct {
	BaseModel
	Name           string `gorm:"size:255;not null" json:"name"`
	Description    string `gorm:"type:text" json:"description"`
	TotalQuestions int    `gorm:"default:0" json:"totalQuestions"`
	// 带 default 标签的布尔零值不会落库，停用会被写成启用；创建方显式赋值
	IsActive       bool   `gorm:"index" json:"isActive"`
}

func (Exam) TableName() string {
	return "exams"
}

// swagger:model Question
type Question struct {
	BaseModel
	ExamID        uint            `gorm:"index;type:bigint unsigned;not null" json:"examId"`
	Module        ModuleTag       `gorm:"size:30;index;not null" json:"module"`
	Difficulty    int             `gorm:"not null" json:"difficulty"` // 1-5
	SkillCategory string          `gorm:"size:100" json:"skillCategory"`
	QuestionText  string          `gorm:"type:text;not null" json:"questionText"`
	QuestionData  json.RawMessage `gorm:"type:json" json:"questionData,omitempty"`
	Options       json.RawMessage `gorm:"type:json" json:"options"`
	CorrectAnswer string          `gorm:"size:100;not null" json:"correctAnswer,omitempty"`
	Explanation   string          `gorm:"type:text" json:"explanation,omitempty"`
	AssetURL      string          `gorm:"size:255" json:"assetUrl,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// NormalizeOptions 读入时对 options 做一次校验归一化，下游不再二次解析。
// 解析失败或为空时回退为空数组。
func (q *Question) NormalizeOptions() {
	var opts []string
	if len(q.Options) > 0 {
		if err := json.Unmarshal(q.Options, &opts); err != nil {
			opts = nil
		}
	}
	if opts == nil {
		opts = []string{}
	}
	normalized, _ := json.Marshal(opts)
	q.Options = normalized
}
