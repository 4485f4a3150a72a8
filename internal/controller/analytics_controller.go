package controller

import (
	"sat_prep_backend/internal/service"
	"sat_prep_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AnalyticsController struct {
	AnalyticsService *service.AnalyticsService
	ExamService      *service.ExamService
}

func NewAnalyticsController(analyticsService *service.AnalyticsService, examService *service.ExamService) *AnalyticsController {
	return &AnalyticsController{
		AnalyticsService: analyticsService,
		ExamService:      examService,
	}
}

// GetOverview godoc
// @Summary 获取学情总览
// @Description 返回当前用户历次测试的学情快照
// @Tags 学情分析
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.UserAnalytics} "成功"
// @Router /api/analytics [get]
func (c *AnalyticsController) GetOverview(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	rows, err := c.AnalyticsService.GetOverview(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, rows)
}

// GetSessionAnalytics godoc
// @Summary 获取单场测试的学情
// @Description 返回指定会话的正确率、知识点强弱项与平均用时
// @Tags 学情分析
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "会话ID"
// @Success 200 {object} util.Response{data=model.UserAnalytics} "成功"
// @Failure 404 {object} util.Response "测试会话不存在"
// @Router /api/analytics/sessions/{id} [get]
func (c *AnalyticsController) GetSessionAnalytics(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	sessionID, ok := sessionIDParam(ctx)
	if !ok {
		return
	}

	// 归属检查与会话存在性一并处理
	if _, err := c.ExamService.SessionForUser(sessionID, user.UserID); err != nil {
		respondSessionError(ctx, err)
		return
	}

	row, err := c.AnalyticsService.GetBySession(sessionID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	if row == nil {
		util.NotFound(ctx, "该会话暂无学情数据")
		return
	}
	util.Success(ctx, row)
}
