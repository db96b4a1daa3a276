package controller

import (
	"campus_edu_backend/internal/service"
	"campus_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	Service *service.AttemptService
}

func NewAttemptController(svc *service.AttemptService) *AttemptController {
	return &AttemptController{Service: svc}
}

// @Summary 开始作答
// @Tags 测验作答
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Success 201 {object} util.Response
// @Router /api/quizzes/{id}/attempts [post]
func (c *AttemptController) Start(ctx *gin.Context) {
	quizID, ok := util.ParseID(ctx.Param("id"))
	if !ok {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	actor := util.GetUserFromContext(ctx)
	view, err := c.Service.StartAttempt(actor.UserID, quizID)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Created(ctx, view)
}

// @Summary 查看作答页（刷新不换顺序）
// @Tags 测验作答
// @Produce json
// @Security BearerAuth
// @Param id path int true "作答ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id} [get]
func (c *AttemptController) Get(ctx *gin.Context) {
	attemptID, ok := util.ParseID(ctx.Param("id"))
	if !ok {
		util.BadRequest(ctx, "invalid attempt id")
		return
	}

	actor := util.GetUserFromContext(ctx)
	view, err := c.Service.GetAttempt(actor.UserID, attemptID)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 教师查看作答详情（含正确答案）
// @Tags 测验作答
// @Produce json
// @Security BearerAuth
// @Param id path int true "作答ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/attempts/{id} [get]
func (c *AttemptController) Review(ctx *gin.Context) {
	attemptID, ok := util.ParseID(ctx.Param("id"))
	if !ok {
		util.BadRequest(ctx, "invalid attempt id")
		return
	}

	actor := util.GetUserFromContext(ctx)
	review, err := c.Service.ReviewAttempt(actor.UserID, attemptID)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, review)
}

type submitRequest struct {
	Answers []service.AnswerSubmission `json:"answers"`
}

// @Summary 提交作答
// @Tags 测验作答
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "作答ID"
// @Param body body controller.submitRequest true "答案列表"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/submit [post]
func (c *AttemptController) Submit(ctx *gin.Context) {
	attemptID, ok := util.ParseID(ctx.Param("id"))
	if !ok {
		util.BadRequest(ctx, "invalid attempt id")
		return
	}
	var req submitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	actor := util.GetUserFromContext(ctx)
	result, err := c.Service.SubmitAttempt(ctx.Request.Context(), actor.UserID, attemptID, req.Answers)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, result)
}
