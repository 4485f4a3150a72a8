package service

import (
	"sort"
	"strings"

	"sat_prep_backend/internal/model"
	"sat_prep_backend/internal/repository"
)

// GradingService 把答题记录和题库答案做比对，产出模块/区/整卷的正确率。
// 判分只读，不修改任何会话状态。
type GradingService struct {
	QuestionRepo *repository.QuestionRepository
	ResponseRepo *repository.ResponseRepository
}

func NewGradingService(questionRepo *repository.QuestionRepository, responseRepo *repository.ResponseRepository) *GradingService {
	return &GradingService{
		QuestionRepo: questionRepo,
		ResponseRepo: responseRepo,
	}
}

type ModuleGrade struct {
	CorrectCount   int     `json:"correctCount"`
	TotalQuestions int     `json:"totalQuestions"`
	Percent        float64 `json:"percent"`
}

type SkillStat struct {
	Skill   string  `json:"skill"`
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

type OverallGrade struct {
	ModuleGrade
	Strengths          []string    `json:"strengths"`
	Weaknesses         []string    `json:"weaknesses"`
	SkillBreakdown     []SkillStat `json:"skillBreakdown"`
	AvgTimePerQuestion float64     `json:"avgTimePerQuestion"`
}

// answerMatches 答案比对：去首尾空白、不区分大小写；空答案永远不算对
func answerMatches(userAnswer *string, correctAnswer string) bool {
	if userAnswer == nil {
		return false
	}
	ua := strings.TrimSpace(*userAnswer)
	ca := strings.TrimSpace(correctAnswer)
	if ua == "" {
		return false
	}
	return strings.EqualFold(ua, ca)
}

// GradeModule 判一个模块。模块2按会话里记录的难度档位过滤题目，
// 档位未记录时不过滤（兜底）。题目集合为空不算错误，返回全零结果。
func (s *GradingService) GradeModule(session *model.TestSession, module model.ModuleTag) (*ModuleGrade, error) {
	var difficulty *model.Difficulty
	switch module {
	case model.ModuleRW2:
		difficulty = session.Module2Difficulty
	case model.ModuleMath2:
		difficulty = session.Math2Difficulty
	}

	questions, err := s.QuestionRepo.FindByModule(session.ExamID, module, difficulty)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return &ModuleGrade{}, nil
	}

	questionIDs := make([]uint, len(questions))
	correctByID := make(map[uint]string, len(questions))
	for i, q := range questions {
		questionIDs[i] = q.ID
		correctByID[q.ID] = q.CorrectAnswer
	}

	responses, err := s.ResponseRepo.GetBySessionAndQuestions(session.ID, questionIDs)
	if err != nil {
		return nil, err
	}

	correctCount := 0
	for _, r := range responses {
		ca, ok := correctByID[r.QuestionID]
		if !ok {
			// 不属于该模块题目集合的答题记录，忽略
			continue
		}
		if answerMatches(r.UserAnswer, ca) {
			correctCount++
		}
	}

	total := len(questions)
	return &ModuleGrade{
		CorrectCount:   correctCount,
		TotalQuestions: total,
		Percent:        float64(correctCount) / float64(total),
	}, nil
}

// GradeSection 判整个区（两个模块合并），不做难度过滤，
// 以已有答题记录与题目的连接为准。用于最终结果汇总。
func (s *GradingService) GradeSection(session *model.TestSession, section model.Section) (*ModuleGrade, error) {
	responses, err := s.ResponseRepo.GetBySession(session.ID)
	if err != nil {
		return nil, err
	}

	questions, err := s.questionsForResponses(responses)
	if err != nil {
		return nil, err
	}

	inSection := make(map[model.ModuleTag]bool)
	for _, m := range section.Modules() {
		inSection[m] = true
	}

	correctCount, total := 0, 0
	for _, r := range responses {
		q, ok := questions[r.QuestionID]
		if !ok || !inSection[q.Module] {
			continue
		}
		total++
		if answerMatches(r.UserAnswer, q.CorrectAnswer) {
			correctCount++
		}
	}

	grade := &ModuleGrade{CorrectCount: correctCount, TotalQuestions: total}
	if total > 0 {
		grade.Percent = float64(correctCount) / float64(total)
	}
	return grade, nil
}

// GradeOverall 整卷判分，并按技能类别聚合出最弱/最强各3项
// （同分按出现顺序），附带平均每题耗时。供成绩分析使用。
func (s *GradingService) GradeOverall(sessionID uint) (*OverallGrade, error) {
	responses, err := s.ResponseRepo.GetBySession(sessionID)
	if err != nil {
		return nil, err
	}
	if len(responses) == 0 {
		return &OverallGrade{Strengths: []string{}, Weaknesses: []string{}, SkillBreakdown: []SkillStat{}}, nil
	}

	questions, err := s.questionsForResponses(responses)
	if err != nil {
		return nil, err
	}

	var skillOrder []string
	stats := make(map[string]*SkillStat)

	correctCount, total, totalTime := 0, 0, 0
	for _, r := range responses {
		q, ok := questions[r.QuestionID]
		if !ok {
			continue
		}
		total++
		totalTime += r.TimeSpent

		skill := q.SkillCategory
		st, seen := stats[skill]
		if !seen {
			st = &SkillStat{Skill: skill}
			stats[skill] = st
			skillOrder = append(skillOrder, skill)
		}
		st.Total++

		if answerMatches(r.UserAnswer, q.CorrectAnswer) {
			correctCount++
			st.Correct++
		}
	}

	breakdown := make([]SkillStat, 0, len(skillOrder))
	for _, skill := range skillOrder {
		st := stats[skill]
		if st.Total > 0 {
			st.Percent = float64(st.Correct) / float64(st.Total)
		}
		breakdown = append(breakdown, *st)
	}

	grade := &OverallGrade{
		Strengths:      topSkills(breakdown, 3, false),
		Weaknesses:     topSkills(breakdown, 3, true),
		SkillBreakdown: breakdown,
	}
	grade.CorrectCount = correctCount
	grade.TotalQuestions = total
	if total > 0 {
		grade.Percent = float64(correctCount) / float64(total)
		grade.AvgTimePerQuestion = float64(totalTime) / float64(total)
	}
	return grade, nil
}

// questionsForResponses 按答题记录批量取题并建索引
func (s *GradingService) questionsForResponses(responses []model.Response) (map[uint]model.Question, error) {
	ids := make([]uint, 0, len(responses))
	for _, r := range responses {
		ids = append(ids, r.QuestionID)
	}
	questions, err := s.QuestionRepo.FindByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return byID, nil
}

// topSkills 取最强或最弱的 n 个技能类别，同正确率按出现顺序
func topSkills(breakdown []SkillStat, n int, weakest bool) []string {
	sorted := make([]SkillStat, len(breakdown))
	copy(sorted, breakdown)
	sort.SliceStable(sorted, func(i, j int) bool {
		if weakest {
			return sorted[i].Percent < sorted[j].Percent
		}
		return sorted[i].Percent > sorted[j].Percent
	})

	if n > len(sorted) {
		n = len(sorted)
	}
	out := make([]string, 0, n)
	for _, st := range sorted[:n] {
		out = append(out, st.Skill)
	}
	return out
}
