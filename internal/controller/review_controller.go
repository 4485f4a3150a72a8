package controller

import (
	"sat_prep_backend/internal/service"
	"sat_prep_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ReviewController struct {
	ReviewService *service.ReviewService
}

func NewReviewController(reviewService *service.ReviewService) *ReviewController {
	return &ReviewController{ReviewService: reviewService}
}

// ListReviews godoc
// @Summary 获取已完成的测试列表
// @Description 列出当前用户全部已完成的测试会话及分数，按完成时间倒序
// @Tags 测试回顾
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]repository.ReviewRow} "成功"
// @Router /api/reviews [get]
func (c *ReviewController) ListReviews(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	rows, err := c.ReviewService.ListReviews(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, rows)
}

// GetReview godoc
// @Summary 获取单场测试的回顾详情
// @Description 返回逐题的作答、正确答案与解析
// @Tags 测试回顾
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "会话ID"
// @Success 200 {object} util.Response{data=service.ReviewDetail} "成功"
// @Failure 404 {object} util.Response "测试会话不存在"
// @Router /api/reviews/{id} [get]
func (c *ReviewController) GetReview(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	sessionID, ok := sessionIDParam(ctx)
	if !ok {
		return
	}

	detail, err := c.ReviewService.GetReview(sessionID, user.UserID)
	if err != nil {
		respondSessionError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}
