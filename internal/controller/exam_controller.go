package controller

import (
	"errors"
	"strconv"

	"sat_prep_backend/internal/model"
	"sat_prep_backend/internal/service"
	"sat_prep_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ExamController struct {
	ExamService     *service.ExamService
	QuestionService *service.QuestionService
	Hub             *service.SessionHub
}

func NewExamController(examService *service.ExamService, questionService *service.QuestionService, hub *service.SessionHub) *ExamController {
	return &ExamController{
		ExamService:     examService,
		QuestionService: questionService,
		Hub:             hub,
	}
}

func sessionIDParam(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "无效的会话ID")
		return 0, false
	}
	return uint(id), true
}

// 会话层错误到 HTTP 状态码的统一映射
func respondSessionError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrSessionNotFound):
		util.NotFound(ctx, "测试会话不存在")
	case errors.Is(err, util.ErrExamNotFound):
		util.NotFound(ctx, "试卷不存在")
	case errors.Is(err, util.ErrSessionCompleted):
		util.Error(ctx, 409, "测试会话已完成")
	case errors.Is(err, util.ErrInvalidModule):
		util.BadRequest(ctx, "无效的模块标识")
	case errors.Is(err, util.ErrQuestionRequired):
		util.BadRequest(ctx, "缺少题目ID")
	default:
		util.LogInternalError(ctx, err)
	}
}

// ListExams godoc
// @Summary 获取可用试卷列表
// @Description 列出全部启用中的试卷
// @Tags 测试会话
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Exam} "成功"
// @Router /api/exams [get]
func (c *ExamController) ListExams(ctx *gin.Context) {
	exams, err := c.QuestionService.ListActiveExams()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, exams)
}

// swagger:model StartSessionRequest
type StartSessionRequest struct {
	ExamID   uint `json:"examId" binding:"required"`
	ForceNew bool `json:"forceNew"`
}

// StartSession godoc
// @Summary 开始或恢复测试会话
// @Description 已有进行中/暂停的会话时恢复该会话；forceNew 为 true 时丢弃旧会话重新开始
// @Tags 测试会话
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body StartSessionRequest true "开始参数"
// @Success 200 {object} util.Response{data=service.StartResult} "成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 404 {object} util.Response "试卷不存在"
// @Router /api/sessions [post]
func (c *ExamController) StartSession(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req StartSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.ExamService.StartSession(user.UserID, req.ExamID, req.ForceNew)
	if err != nil {
		respondSessionError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetModuleQuestions godoc
// @Summary 获取某模块的题目
// @Description 按会话取指定模块的题目，自适应模块按已确定的难度档位过滤；返回内容不含答案
// @Tags 测试会话
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "会话ID"
// @Param   module path string true "模块标识"
// @Success 200 {object} util.Response{data=[]service.StudentQuestion} "成功"
// @Failure 400 {object} util.Response "无效的模块标识"
// @Failure 404 {object} util.Response "测试会话不存在"
// @Router /api/sessions/{id}/modules/{module}/questions [get]
func (c *ExamController) GetModuleQuestions(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	sessionID, ok := sessionIDParam(ctx)
	if !ok {
		return
	}

	sess, err := c.ExamService.SessionForUser(sessionID, user.UserID)
	if err != nil {
		respondSessionError(ctx, err)
		return
	}

	module := model.ModuleTag(ctx.Param("module"))
	questions, err := c.QuestionService.GetModuleQuestions(ctx.Request.Context(), sess, module)
	if err != nil {
		respondSessionError(ctx, err)
		return
	}
	util.Success(ctx, questions)
}

// SubmitAnswer godoc
// @Summary 提交或更新作答
// @Description 同一题目重复提交时覆盖答案并累加作答用时
// @Tags 测试会话
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "会话ID"
// @Param   body body service.AnswerRequest true "作答内容"
// @Success 200 {object} util.Response{data=model.Response} "成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 404 {object} util.Response "测试会话不存在"
// @Failure 409 {object} util.Response "测试会话已完成"
// @Router /api/sessions/{id}/answers [post]
func (c *ExamController) SubmitAnswer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	sessionID, ok := sessionIDParam(ctx)
	if !ok {
		return
	}

	var req service.AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	resp, err := c.ExamService.SubmitAnswer(sessionID, user.UserID, req)
	if err != nil {
		respondSessionError(ctx, err)
		return
	}
	util.Success(ctx, resp)
}

// swagger:model PauseRequest
type PauseRequest struct {
	TimeRemaining *int             `json:"timeRemaining"`
	CurrentModule *model.ModuleTag `json:"currentModule"`
}

// PauseSession godoc
// @Summary 暂停测试会话
// @Description 保存剩余时间与当前模块，会话可稍后恢复；对已暂停会话重复调用为幂等操作
// @Tags 测试会话
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "会话ID"
// @Param   body body PauseRequest false "暂停时的进度快照"
// @Success 200 {object} util.Response{data=model.TestSession} "成功"
// @Failure 404 {object} util.Response "测试会话不存在"
// @Failure 409 {object} util.Response "测试会话已完成"
// @Router /api/sessions/{id}/pause [post]
func (c *ExamController) PauseSession(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	sessionID, ok := sessionIDParam(ctx)
	if !ok {
		return
	}

	var req PauseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		util.BadRequest(ctx, err.Error())
		return
	}

	sess, err := c.ExamService.PauseSession(sessionID, user.UserID, req.TimeRemaining, req.CurrentModule)
	if err != nil {
		respondSessionError(ctx, err)
		return
	}
	util.Success(ctx, sess)
}

// swagger:model CompleteModuleRequest
type CompleteModuleRequest struct {
	Module model.ModuleTag `json:"module" binding:"required"`
}

// CompleteModule godoc
// @Summary 完成一个模块
// @Description 判分并写入模块成绩；第一模块完成时确定第二模块难度档位，最后一个模块完成时会话转为已完成
// @Tags 测试会话
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "会话ID"
// @Param   body body CompleteModuleRequest true "模块标识"
// @Success 200 {object} util.Response{data=service.ModuleResult} "成功"
// @Failure 400 {object} util.Response "无效的模块标识"
// @Failure 404 {object} util.Response "测试会话不存在"
// @Router /api/sessions/{id}/complete-module [post]
func (c *ExamController) CompleteModule(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	sessionID, ok := sessionIDParam(ctx)
	if !ok {
		return
	}

	var req CompleteModuleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.ExamService.CompleteModule(sessionID, user.UserID, req.Module)
	if err != nil {
		respondSessionError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// CompleteExam godoc
// @Summary 完成整场测试
// @Description 汇总两个板块的成绩并换算量表分，写入总分与学情快照；重复调用不改变已写入的分数
// @Tags 测试会话
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "会话ID"
// @Success 200 {object} util.Response{data=service.FinalResult} "成功"
// @Failure 404 {object} util.Response "测试会话不存在"
// @Router /api/sessions/{id}/complete [post]
func (c *ExamController) CompleteExam(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	sessionID, ok := sessionIDParam(ctx)
	if !ok {
		return
	}

	result, err := c.ExamService.CompleteExam(sessionID, user.UserID)
	if err != nil {
		respondSessionError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetSessionStatus godoc
// @Summary 获取会话状态
// @Description 返回会话当前进度与已提交的全部作答，用于断点恢复
// @Tags 测试会话
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "会话ID"
// @Success 200 {object} util.Response{data=service.SessionStatus} "成功"
// @Failure 404 {object} util.Response "测试会话不存在"
// @Router /api/sessions/{id}/status [get]
func (c *ExamController) GetSessionStatus(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	sessionID, ok := sessionIDParam(ctx)
	if !ok {
		return
	}

	status, err := c.ExamService.GetSessionStatus(sessionID, user.UserID)
	if err != nil {
		respondSessionError(ctx, err)
		return
	}
	util.Success(ctx, status)
}

// GetSessionMeta godoc
// @Summary 获取会话元信息
// @Description 返回试卷信息与各模块的标题、说明和答题时长
// @Tags 测试会话
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "会话ID"
// @Success 200 {object} util.Response{data=service.SessionMeta} "成功"
// @Failure 404 {object} util.Response "测试会话不存在"
// @Router /api/sessions/{id}/meta [get]
func (c *ExamController) GetSessionMeta(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	sessionID, ok := sessionIDParam(ctx)
	if !ok {
		return
	}

	meta, err := c.ExamService.GetSessionMeta(sessionID, user.UserID)
	if err != nil {
		respondSessionError(ctx, err)
		return
	}
	util.Success(ctx, meta)
}

// SessionWebSocket godoc
// @Summary 会话事件推送
// @Description 建立 websocket 连接，接收暂停、模块完成、测试完成等事件
// @Tags 测试会话
// @Security ApiKeyAuth
// @Param   id path int true "会话ID"
// @Router /api/sessions/{id}/ws [get]
func (c *ExamController) SessionWebSocket(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	sessionID, ok := sessionIDParam(ctx)
	if !ok {
		return
	}

	if _, err := c.ExamService.SessionForUser(sessionID, user.UserID); err != nil {
		respondSessionError(ctx, err)
		return
	}

	if err := c.Hub.ServeWS(ctx.Writer, ctx.Request, user.UserID, sessionID); err != nil {
		util.LogInternalError(ctx, err)
	}
}
