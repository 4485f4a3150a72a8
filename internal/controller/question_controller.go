package controller

import (
	"errors"
	"strconv"

	"sat_prep_backend/internal/service"
	"sat_prep_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// QuestionController 题库管理接口，仅管理员可用
type QuestionController struct {
	QuestionService *service.QuestionService
}

func NewQuestionController(questionService *service.QuestionService) *QuestionController {
	return &QuestionController{QuestionService: questionService}
}

// CreateExam godoc
// @Summary 创建试卷
// @Description 新建一套试卷，默认为启用状态
// @Tags 题库管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.ExamRequest true "试卷信息"
// @Success 201 {object} util.Response{data=model.Exam} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Router /api/admin/exams [post]
func (c *QuestionController) CreateExam(ctx *gin.Context) {
	var req service.ExamRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	exam, err := c.QuestionService.CreateExam(req)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Created(ctx, exam)
}

// ListExams godoc
// @Summary 分页查询试卷
// @Description 管理端分页列出全部试卷，含已停用的
// @Tags 题库管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页数量" default(10)
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/admin/exams [get]
func (c *QuestionController) ListExams(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))

	exams, total, err := c.QuestionService.ListExams(page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"exams": exams,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// swagger:model SetExamActiveRequest
type SetExamActiveRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// SetExamActive godoc
// @Summary 启用或停用试卷
// @Description 停用后的试卷不再出现在考生可选列表中
// @Tags 题库管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "试卷ID"
// @Param   body body SetExamActiveRequest true "启用状态"
// @Success 200 {object} util.Response "成功"
// @Failure 404 {object} util.Response "试卷不存在"
// @Router /api/admin/exams/{id}/active [put]
func (c *QuestionController) SetExamActive(ctx *gin.Context) {
	examID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "无效的试卷ID")
		return
	}

	var req SetExamActiveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.QuestionService.SetExamActive(uint(examID), *req.IsActive); err != nil {
		if errors.Is(err, util.ErrExamNotFound) {
			util.NotFound(ctx, "试卷不存在")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}

// CreateQuestion godoc
// @Summary 新增题目
// @Description 向指定试卷的某个模块添加一道题目
// @Tags 题库管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.QuestionRequest true "题目内容"
// @Success 201 {object} util.Response{data=model.Question} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 404 {object} util.Response "试卷不存在"
// @Router /api/admin/questions [post]
func (c *QuestionController) CreateQuestion(ctx *gin.Context) {
	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	q, err := c.QuestionService.CreateQuestion(req)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrExamNotFound):
			util.NotFound(ctx, "试卷不存在")
		case errors.Is(err, util.ErrInvalidModule):
			util.BadRequest(ctx, "无效的模块标识")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Created(ctx, q)
}

// UpdateQuestion godoc
// @Summary 更新题目
// @Description 覆盖题目的全部可编辑字段
// @Tags 题库管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "题目ID"
// @Param   body body service.QuestionRequest true "题目内容"
// @Success 200 {object} util.Response{data=model.Question} "成功"
// @Failure 404 {object} util.Response "题目不存在"
// @Router /api/admin/questions/{id} [put]
func (c *QuestionController) UpdateQuestion(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "无效的题目ID")
		return
	}

	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	q, err := c.QuestionService.UpdateQuestion(uint(id), req)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			util.NotFound(ctx, "题目不存在")
		case errors.Is(err, util.ErrInvalidModule):
			util.BadRequest(ctx, "无效的模块标识")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, q)
}

// DeleteQuestion godoc
// @Summary 删除题目
// @Description 软删除题目并刷新试卷题量
// @Tags 题库管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "题目ID"
// @Success 200 {object} util.Response "成功"
// @Failure 404 {object} util.Response "题目不存在"
// @Router /api/admin/questions/{id} [delete]
func (c *QuestionController) DeleteQuestion(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "无效的题目ID")
		return
	}

	if err := c.QuestionService.DeleteQuestion(uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.NotFound(ctx, "题目不存在")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}

// UploadAsset godoc
// @Summary 上传题目配图
// @Description 上传题目用到的图片资源，返回可访问的URL
// @Tags 题库管理
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   file formData file true "图片文件"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 400 {object} util.Response "文件不合法"
// @Router /api/admin/questions/assets [post]
func (c *QuestionController) UploadAsset(ctx *gin.Context) {
	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "缺少上传文件")
		return
	}

	url, err := c.QuestionService.UploadAsset(ctx.Request.Context(), file)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	util.Success(ctx, gin.H{"url": url})
}
