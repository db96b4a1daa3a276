package controller

import (
	"campus_edu_backend/internal/service"
	"campus_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type GradebookController struct {
	Service *service.GradebookService
}

func NewGradebookController(svc *service.GradebookService) *GradebookController {
	return &GradebookController{Service: svc}
}

// @Summary 成绩册详情
// @Tags 成绩册
// @Produce json
// @Security BearerAuth
// @Param id path int true "教学班ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/class-sections/{id}/gradebook [get]
func (c *GradebookController) Detail(ctx *gin.Context) {
	classSectionID, ok := util.ParseID(ctx.Param("id"))
	if !ok {
		util.BadRequest(ctx, "invalid class section id")
		return
	}

	actor := util.GetUserFromContext(ctx)
	detail, err := c.Service.Detail(actor.UserID, classSectionID)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// @Summary 添加评分项
// @Tags 成绩册
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "教学班ID"
// @Param body body service.GradeItemRequest true "评分项"
// @Success 201 {object} util.Response
// @Router /api/teacher/class-sections/{id}/gradebook/items [post]
func (c *GradebookController) AddItem(ctx *gin.Context) {
	classSectionID, ok := util.ParseID(ctx.Param("id"))
	if !ok {
		util.BadRequest(ctx, "invalid class section id")
		return
	}
	var req service.GradeItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	actor := util.GetUserFromContext(ctx)
	item, err := c.Service.AddItem(actor.UserID, classSectionID, req)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Created(ctx, item)
}

// @Summary 批量写分（乐观并发）
// @Tags 成绩册
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "教学班ID"
// @Param body body service.UpsertScoresRequest true "分数批次"
// @Success 200 {object} util.Response
// @Router /api/teacher/class-sections/{id}/gradebook/scores [put]
func (c *GradebookController) UpsertScores(ctx *gin.Context) {
	classSectionID, ok := util.ParseID(ctx.Param("id"))
	if !ok {
		util.BadRequest(ctx, "invalid class section id")
		return
	}
	var req service.UpsertScoresRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	actor := util.GetUserFromContext(ctx)
	version, err := c.Service.UpsertScores(ctx.Request.Context(), actor.UserID, classSectionID, req)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"version": version})
}

// @Summary 提交审批
// @Tags 成绩册
// @Produce json
// @Security BearerAuth
// @Param id path int true "教学班ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/class-sections/{id}/gradebook/request-approval [post]
func (c *GradebookController) RequestApproval(ctx *gin.Context) {
	classSectionID, ok := util.ParseID(ctx.Param("id"))
	if !ok {
		util.BadRequest(ctx, "invalid class section id")
		return
	}

	actor := util.GetUserFromContext(ctx)
	approval, err := c.Service.RequestApproval(actor.UserID, classSectionID)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, approval)
}

type decisionRequest struct {
	Message string `json:"message"`
}

// @Summary 审批通过并发布
// @Tags 成绩册审批
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "教学班ID"
// @Param body body controller.decisionRequest false "备注"
// @Success 200 {object} util.Response
// @Router /api/admin/class-sections/{id}/gradebook/approve [post]
func (c *GradebookController) Approve(ctx *gin.Context) {
	classSectionID, ok := util.ParseID(ctx.Param("id"))
	if !ok {
		util.BadRequest(ctx, "invalid class section id")
		return
	}
	var req decisionRequest
	_ = ctx.ShouldBindJSON(&req)

	actor := util.GetUserFromContext(ctx)
	if err := c.Service.Approve(actor.UserID, classSectionID, req.Message); err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 驳回审批
// @Tags 成绩册审批
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "教学班ID"
// @Param body body controller.decisionRequest true "驳回原因（必填）"
// @Success 200 {object} util.Response
// @Router /api/admin/class-sections/{id}/gradebook/reject [post]
func (c *GradebookController) Reject(ctx *gin.Context) {
	classSectionID, ok := util.ParseID(ctx.Param("id"))
	if !ok {
		util.BadRequest(ctx, "invalid class section id")
		return
	}
	var req decisionRequest
	_ = ctx.ShouldBindJSON(&req)

	actor := util.GetUserFromContext(ctx)
	if err := c.Service.Reject(actor.UserID, classSectionID, req.Message); err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
