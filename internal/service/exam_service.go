package service

import (
	"errors"
	"math"
	"sync"
	"time"

	"sat_prep_backend/internal/model"
	"sat_prep_backend/internal/repository"
	"sat_prep_backend/internal/util"
	"sat_prep_backend/pkg/logger"
	"sat_prep_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ExamService 自适应考试的会话状态机：负责开考/暂停/续考、模块推进、
// 模块边界上的判分与难度路由、区分数换算和总分终结。
//
// 模块完成、暂停、交卷等读-改-写转移按会话加锁串行执行，
// 配合字段的一次性写入保证并发重复提交不会重判或重推进。
type ExamService struct {
	ExamRepo     *repository.ExamRepository
	SessionRepo  *repository.SessionRepository
	ResponseRepo *repository.ResponseRepository
	QuestionRepo *repository.QuestionRepository
	Grading      *GradingService
	Analytics    *AnalyticsService
	Hub          *SessionHub
	sessionLocks sync.Map // sessionID -> *sync.Mutex
}

func NewExamService(
	examRepo *repository.ExamRepository,
	sessionRepo *repository.SessionRepository,
	responseRepo *repository.ResponseRepository,
	questionRepo *repository.QuestionRepository,
	grading *GradingService,
	analytics *AnalyticsService,
	hub *SessionHub,
) *ExamService {
	return &ExamService{
		ExamRepo:     examRepo,
		SessionRepo:  sessionRepo,
		ResponseRepo: responseRepo,
		QuestionRepo: questionRepo,
		Grading:      grading,
		Analytics:    analytics,
		Hub:          hub,
	}
}

// lockSession 按会话串行化状态转移
func (s *ExamService) lockSession(sessionID uint) func() {
	v, _ := s.sessionLocks.LoadOrStore(sessionID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// getOwnedSession 取会话并校验归属；不存在与属于他人统一返回
// ErrSessionNotFound，不泄露会话是否存在
func (s *ExamService) getOwnedSession(sessionID, userID uint) (*model.TestSession, error) {
	sess, err := s.SessionRepo.FindByID(sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, util.ErrSessionNotFound
	}
	return sess, nil
}

// SessionForUser 供外层按归属取会话
func (s *ExamService) SessionForUser(sessionID, userID uint) (*model.TestSession, error) {
	return s.getOwnedSession(sessionID, userID)
}

// ModuleSeconds 各模块的答题时长
func ModuleSeconds(m model.ModuleTag) int {
	if m.Section() == model.SectionMath {
		return util.MathModuleSeconds
	}
	return util.RWModuleSeconds
}

type StartResult struct {
	Session              *model.TestSession `json:"session"`
	Resumed              bool               `json:"resumed"`
	RequiresConfirmation bool               `json:"requiresConfirmation"`
}

// StartSession 开考。已有进行中/暂停的会话时要求调用方确认续考或重考；
// forceNew 为真则硬删除旧会话（含答题记录）后重新创建。
func (s *ExamService) StartSession(userID, examID uint, forceNew bool) (*StartResult, error) {
	exam, err := s.ExamRepo.FindActiveByID(examID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrExamNotFound
	}
	if err != nil {
		return nil, err
	}

	existing, err := s.SessionRepo.FindActive(userID, examID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil && err == nil {
		if !forceNew {
			// 让前端弹确认框：续考还是重考
			return &StartResult{Session: existing, Resumed: true, RequiresConfirmation: true}, nil
		}
		if err := s.SessionRepo.Delete(existing.ID); err != nil {
			return nil, err
		}
		logger.Log.Warn("stale session hard-deleted on restart",
			zap.Uint("sessionId", existing.ID), zap.Uint("userId", userID))
	}

	now := time.Now()
	firstModule := model.ModuleRW1
	session := &model.TestSession{
		UserID:        userID,
		ExamID:        exam.ID,
		Status:        model.SessionInProgress,
		CurrentModule: &firstModule,
		TimeRemaining: ModuleSeconds(firstModule),
		StartedAt:     &now,
	}
	if err := s.SessionRepo.Create(session); err != nil {
		return nil, err
	}
	monitoring.SessionsStarted.Inc()

	return &StartResult{Session: session}, nil
}

type AnswerRequest struct {
	QuestionID     uint    `json:"questionId" binding:"required"`
	UserAnswer     *string `json:"userAnswer"`
	TimeSpent      int     `json:"timeSpent"`
	SequenceNumber int     `json:"sequenceNumber"`
	IsFlagged      bool    `json:"isFlagged"`
}

// SubmitAnswer 保存/更新一条答题记录，(session, question) 幂等
func (s *ExamService) SubmitAnswer(sessionID, userID uint, req AnswerRequest) (*model.Response, error) {
	if req.QuestionID == 0 {
		return nil, util.ErrQuestionRequired
	}

	sess, err := s.getOwnedSession(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if sess.Status == model.SessionCompleted {
		return nil, util.ErrSessionCompleted
	}

	resp := &model.Response{
		TestSessionID:  sess.ID,
		QuestionID:     req.QuestionID,
		UserAnswer:     req.UserAnswer,
		TimeSpent:      req.TimeSpent,
		SequenceNumber: req.SequenceNumber,
		IsFlagged:      req.IsFlagged,
	}
	if err := s.ResponseRepo.Upsert(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// PauseSession 暂停。幂等：重复暂停只是重存剩余时间。
// 调用方给的 timeRemaining/currentModule 优先，缺省回退为已存值。
func (s *ExamService) PauseSession(sessionID, userID uint, timeRemaining *int, currentModule *model.ModuleTag) (*model.TestSession, error) {
	unlock := s.lockSession(sessionID)
	defer unlock()

	sess, err := s.getOwnedSession(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if sess.Status == model.SessionCompleted {
		return nil, util.ErrSessionCompleted
	}
	if currentModule != nil && !currentModule.Valid() {
		return nil, util.ErrInvalidModule
	}

	fields := map[string]interface{}{"status": model.SessionPaused}
	if timeRemaining != nil {
		fields["time_remaining"] = *timeRemaining
	}
	if currentModule != nil {
		fields["current_module"] = *currentModule
	}
	if err := s.SessionRepo.UpdateFields(sess.ID, fields); err != nil {
		return nil, err
	}

	fresh, err := s.SessionRepo.FindByID(sess.ID)
	if err != nil {
		return nil, err
	}

	s.Hub.Notify(SessionEvent{
		Type:          "paused",
		SessionID:     fresh.ID,
		CurrentModule: moduleString(fresh.CurrentModule),
		TimeRemaining: fresh.TimeRemaining,
	})
	return fresh, nil
}

type ModuleResult struct {
	ModuleGrade
	Module     model.ModuleTag   `json:"module"`
	NextModule *model.ModuleTag  `json:"nextModule"`
	Difficulty *model.Difficulty `json:"difficulty"`
	Completed  bool              `json:"completed"`
}

// CompleteModule 模块完成转移：判分 → 一次性写入模块分 → 模块1完成时
// 推导并一次性写入模块2难度 → current_module 前移 → 区分数换算副作用。
// math_2 完成即整卷结束。重复调用不会覆盖已锁定的分数。
func (s *ExamService) CompleteModule(sessionID, userID uint, module model.ModuleTag) (*ModuleResult, error) {
	if !module.Valid() {
		return nil, util.ErrInvalidModule
	}

	unlock := s.lockSession(sessionID)
	defer unlock()

	sess, err := s.getOwnedSession(sessionID, userID)
	if err != nil {
		return nil, err
	}

	grade, err := s.Grading.GradeModule(sess, module)
	if err != nil {
		return nil, err
	}
	scorePercent := int(math.Round(grade.Percent * 100))

	fields := map[string]interface{}{}

	// 模块分一次性写入：已判过的模块不再覆盖
	if sess.ModuleScore(module) == nil {
		fields[moduleScoreColumn(module)] = scorePercent
	}

	// 模块1完成时决定模块2的自适应难度，只写一次
	section := module.Section()
	difficulty := sess.SectionDifficulty(section)
	if (module == model.ModuleRW1 || module == model.ModuleMath1) && difficulty == nil {
		d := SelectDifficulty(grade.Percent)
		difficulty = &d
		fields[sectionDifficultyColumn(section)] = d
	}

	// current_module 只在当前正处于该模块时前移，杜绝重复提交导致回退
	var nextModule *model.ModuleTag
	completed := false
	advanced := false
	if sess.CurrentModule != nil && *sess.CurrentModule == module {
		advanced = true
		if next, ok := module.Next(); ok {
			fields["current_module"] = next
			fields["time_remaining"] = ModuleSeconds(next)
			nextModule = &next
		} else {
			now := time.Now()
			fields["current_module"] = nil
			fields["time_remaining"] = 0
			fields["status"] = model.SessionCompleted
			fields["completed_at"] = now
			completed = true
		}
	}

	if err := s.SessionRepo.UpdateFields(sess.ID, fields); err != nil {
		return nil, err
	}
	if advanced {
		monitoring.ModulesCompleted.WithLabelValues(string(module), difficultyLabel(difficulty)).Inc()
		if completed {
			monitoring.ExamsCompleted.Inc()
		}
	}

	// 防御性回读：会话在转移中途消失按致命内部错误处理，不再做后续换算
	fresh, err := s.SessionRepo.FindByID(sess.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSessionVanished
	}
	if err != nil {
		return nil, err
	}

	fresh, err = s.applySectionScaling(fresh, section)
	if err != nil {
		return nil, err
	}

	eventType := "module_completed"
	if fresh.Status == model.SessionCompleted {
		eventType = "exam_completed"
	}
	s.Hub.Notify(SessionEvent{
		Type:          eventType,
		SessionID:     fresh.ID,
		CurrentModule: moduleString(fresh.CurrentModule),
		TimeRemaining: fresh.TimeRemaining,
	})

	result := &ModuleResult{
		Module:     module,
		NextModule: nextModule,
		Difficulty: difficulty,
		Completed:  completed,
	}
	result.ModuleGrade = *grade
	return result, nil
}

// applySectionScaling 模块完成后的派生副作用：该区两个模块分都已落库
// 且区分数尚未计算时换算 200-800 分；两区分数齐备时总分只算一次并终结会话。
func (s *ExamService) applySectionScaling(sess *model.TestSession, section model.Section) (*model.TestSession, error) {
	modules := section.Modules()
	m1 := sess.ModuleScore(modules[0])
	m2 := sess.ModuleScore(modules[1])

	fields := map[string]interface{}{}

	if m1 != nil && m2 != nil && sess.SectionScore(section) == nil {
		difficulty := model.DifficultyMedium
		if d := sess.SectionDifficulty(section); d != nil {
			difficulty = *d
		}
		scaled := ScaleSection(float64(*m1)/100, float64(*m2)/100, difficulty)
		fields[sectionScoreColumn(section)] = scaled

		// 区分数写入后立刻检查总分
		rw, math2 := sess.RWScore, sess.MathScore
		if section == model.SectionRW {
			rw = &scaled
		} else {
			math2 = &scaled
		}
		if rw != nil && math2 != nil && sess.TotalScore == nil {
			fields["total_score"] = *rw + *math2
			fields["status"] = model.SessionCompleted
			if sess.CompletedAt == nil {
				fields["completed_at"] = time.Now()
			}
		}
	}

	if len(fields) == 0 {
		return sess, nil
	}
	if err := s.SessionRepo.UpdateFields(sess.ID, fields); err != nil {
		return nil, err
	}

	fresh, err := s.SessionRepo.FindByID(sess.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSessionVanished
	}
	if err != nil {
		return nil, err
	}
	return fresh, nil
}

type FinalResult struct {
	Session    *model.TestSession `json:"session"`
	RW         ModuleGrade        `json:"rw"`
	Math       ModuleGrade        `json:"math"`
	RWScore    int                `json:"rwScore"`
	MathScore  int                `json:"mathScore"`
	TotalScore int                `json:"totalScore"`
	Overall    *OverallGrade      `json:"overall"`
}

// CompleteExam 交卷终结。正常走完四个模块的会话直接用已锁定的区分数和
// 总分；缺失模块级记录的历史会话降级用整区正确率线性换算补齐（见
// ScaleLinear），同一会话两条路径不会同时生效。最后落一份成绩分析快照。
func (s *ExamService) CompleteExam(sessionID, userID uint) (*FinalResult, error) {
	unlock := s.lockSession(sessionID)
	defer unlock()

	sess, err := s.getOwnedSession(sessionID, userID)
	if err != nil {
		return nil, err
	}

	rwGrade, err := s.Grading.GradeSection(sess, model.SectionRW)
	if err != nil {
		return nil, err
	}
	mathGrade, err := s.Grading.GradeSection(sess, model.SectionMath)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}

	rwScore := s.resolveSectionScore(sess, model.SectionRW, rwGrade, fields)
	mathScore := s.resolveSectionScore(sess, model.SectionMath, mathGrade, fields)

	if sess.TotalScore == nil {
		fields["total_score"] = rwScore + mathScore
	}
	finalized := sess.Status != model.SessionCompleted
	if finalized {
		fields["status"] = model.SessionCompleted
		fields["current_module"] = nil
		fields["time_remaining"] = 0
	}
	if sess.CompletedAt == nil {
		fields["completed_at"] = time.Now()
	}

	if err := s.SessionRepo.UpdateFields(sess.ID, fields); err != nil {
		return nil, err
	}
	if finalized {
		monitoring.ExamsCompleted.Inc()
	}

	fresh, err := s.SessionRepo.FindByID(sess.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSessionVanished
	}
	if err != nil {
		return nil, err
	}

	overall, err := s.Analytics.RecordSession(fresh, rwGrade, mathGrade)
	if err != nil {
		// 分析快照失败不影响成绩本身，记日志继续
		logger.Log.Error("failed to record session analytics",
			zap.Uint("sessionId", fresh.ID), zap.Error(err))
	}

	s.Hub.Notify(SessionEvent{Type: "exam_completed", SessionID: fresh.ID})

	total := rwScore + mathScore
	if fresh.TotalScore != nil {
		total = *fresh.TotalScore
	}
	return &FinalResult{
		Session:    fresh,
		RW:         *rwGrade,
		Math:       *mathGrade,
		RWScore:    rwScore,
		MathScore:  mathScore,
		TotalScore: total,
		Overall:    overall,
	}, nil
}

// resolveSectionScore 取该区标准分：已计算的不重算；模块分齐备走标准
// 加权换算；都没有才降级线性换算整区正确率
func (s *ExamService) resolveSectionScore(sess *model.TestSession, section model.Section, grade *ModuleGrade, fields map[string]interface{}) int {
	if existing := sess.SectionScore(section); existing != nil {
		return *existing
	}

	modules := section.Modules()
	m1 := sess.ModuleScore(modules[0])
	m2 := sess.ModuleScore(modules[1])

	var score int
	if m1 != nil && m2 != nil {
		difficulty := model.DifficultyMedium
		if d := sess.SectionDifficulty(section); d != nil {
			difficulty = *d
		}
		score = ScaleSection(float64(*m1)/100, float64(*m2)/100, difficulty)
	} else {
		score = ScaleLinear(grade.Percent)
	}
	fields[sectionScoreColumn(section)] = score
	return score
}

type SessionStatus struct {
	Session       *model.TestSession `json:"session"`
	Responses     []model.Response   `json:"responses"`
	CurrentModule *model.ModuleTag   `json:"currentModule"`
}

// GetSessionStatus 续考/恢复现场用：会话 + 全部答题记录
func (s *ExamService) GetSessionStatus(sessionID, userID uint) (*SessionStatus, error) {
	sess, err := s.getOwnedSession(sessionID, userID)
	if err != nil {
		return nil, err
	}
	responses, err := s.ResponseRepo.GetBySession(sess.ID)
	if err != nil {
		return nil, err
	}
	return &SessionStatus{
		Session:       sess,
		Responses:     responses,
		CurrentModule: sess.CurrentModule,
	}, nil
}

type ModuleInfo struct {
	Module          model.ModuleTag `json:"module"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	DurationSeconds int             `json:"durationSeconds"`
}

type SessionMeta struct {
	Exam          *model.Exam      `json:"exam"`
	CurrentModule *model.ModuleTag `json:"currentModule"`
	Modules       []ModuleInfo     `json:"modules"`
}

var moduleBlurbs = map[model.ModuleTag]ModuleInfo{
	model.ModuleRW1: {
		Title:       "Reading & Writing — Module 1",
		Description: "Mixed-difficulty reading and writing questions. Your performance decides the difficulty of Module 2.",
	},
	model.ModuleRW2: {
		Title:       "Reading & Writing — Module 2",
		Description: "Adaptive module: question difficulty is matched to your Module 1 performance.",
	},
	model.ModuleMath1: {
		Title:       "Math — Module 1",
		Description: "Mixed-difficulty math questions. Your performance decides the difficulty of Module 2.",
	},
	model.ModuleMath2: {
		Title:       "Math — Module 2",
		Description: "Adaptive module: question difficulty is matched to your Module 1 performance.",
	},
}

// GetSessionMeta 考前/模块间隙页展示用的静态信息
func (s *ExamService) GetSessionMeta(sessionID, userID uint) (*SessionMeta, error) {
	sess, err := s.getOwnedSession(sessionID, userID)
	if err != nil {
		return nil, err
	}
	exam, err := s.ExamRepo.FindByID(sess.ExamID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrExamNotFound
	}
	if err != nil {
		return nil, err
	}

	modules := make([]ModuleInfo, 0, len(model.ModuleSequence))
	for _, tag := range model.ModuleSequence {
		info := moduleBlurbs[tag]
		info.Module = tag
		info.DurationSeconds = ModuleSeconds(tag)
		modules = append(modules, info)
	}
	return &SessionMeta{
		Exam:          exam,
		CurrentModule: sess.CurrentModule,
		Modules:       modules,
	}, nil
}

func moduleScoreColumn(m model.ModuleTag) string {
	switch m {
	case model.ModuleRW1:
		return "module1_score"
	case model.ModuleRW2:
		return "rw2_score"
	case model.ModuleMath1:
		return "math1_score"
	default:
		return "math2_score"
	}
}

func sectionDifficultyColumn(sec model.Section) string {
	if sec == model.SectionMath {
		return "math2_difficulty"
	}
	return "module2_difficulty"
}

func sectionScoreColumn(sec model.Section) string {
	if sec == model.SectionMath {
		return "math_score"
	}
	return "rw_score"
}

func moduleString(m *model.ModuleTag) string {
	if m == nil {
		return ""
	}
	return string(*m)
}

// difficultyLabel 指标用的难度档标签，模块1没有档位记 standard
func difficultyLabel(d *model.Difficulty) string {
	if d == nil {
		return "standard"
	}
	return string(*d)
}
