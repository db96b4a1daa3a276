package controller

import (
	"campus_edu_backend/internal/service"
	"campus_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	Service *service.QuizService
}

func NewQuizController(svc *service.QuizService) *QuizController {
	return &QuizController{Service: svc}
}

// @Summary 创建测验草稿
// @Tags 测验管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.QuizCreateRequest true "测验信息"
// @Success 201 {object} util.Response
// @Router /api/teacher/quizzes [post]
func (c *QuizController) Create(ctx *gin.Context) {
	var req service.QuizCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	actor := util.GetUserFromContext(ctx)
	quiz, err := c.Service.CreateDraft(actor.UserID, req)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Created(ctx, quiz)
}

// @Summary 添加题目
// @Tags 测验管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Param body body service.QuestionRequest true "题目与选项"
// @Success 201 {object} util.Response
// @Router /api/teacher/quizzes/{id}/questions [post]
func (c *QuizController) AddQuestion(ctx *gin.Context) {
	quizID, ok := util.ParseID(ctx.Param("id"))
	if !ok {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}
	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	actor := util.GetUserFromContext(ctx)
	question, err := c.Service.AddQuestion(actor.UserID, quizID, req)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Created(ctx, question)
}

// @Summary 更新题目
// @Tags 测验管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Param questionId path int true "题目ID"
// @Param body body service.QuestionRequest true "题目与选项"
// @Success 200 {object} util.Response
// @Router /api/teacher/quizzes/{id}/questions/{questionId} [put]
func (c *QuizController) UpdateQuestion(ctx *gin.Context) {
	quizID, ok := util.ParseID(ctx.Param("id"))
	if !ok {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}
	questionID, ok := util.ParseID(ctx.Param("questionId"))
	if !ok {
		util.BadRequest(ctx, "invalid question id")
		return
	}
	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	actor := util.GetUserFromContext(ctx)
	question, err := c.Service.UpdateQuestion(actor.UserID, quizID, questionID, req)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, question)
}

// @Summary 删除题目
// @Tags 测验管理
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Param questionId path int true "题目ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/quizzes/{id}/questions/{questionId} [delete]
func (c *QuizController) DeleteQuestion(ctx *gin.Context) {
	quizID, ok := util.ParseID(ctx.Param("id"))
	if !ok {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}
	questionID, ok := util.ParseID(ctx.Param("questionId"))
	if !ok {
		util.BadRequest(ctx, "invalid question id")
		return
	}

	actor := util.GetUserFromContext(ctx)
	if err := c.Service.DeleteQuestion(actor.UserID, quizID, questionID); err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 发布测验
// @Tags 测验管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Param body body service.PublishRequest true "作答窗口"
// @Success 200 {object} util.Response
// @Router /api/teacher/quizzes/{id}/publish [post]
func (c *QuizController) Publish(ctx *gin.Context) {
	quizID, ok := util.ParseID(ctx.Param("id"))
	if !ok {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}
	var req service.PublishRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	actor := util.GetUserFromContext(ctx)
	quiz, err := c.Service.Publish(actor.UserID, quizID, req)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// @Summary 关闭测验
// @Tags 测验管理
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/quizzes/{id}/close [post]
func (c *QuizController) Close(ctx *gin.Context) {
	quizID, ok := util.ParseID(ctx.Param("id"))
	if !ok {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	actor := util.GetUserFromContext(ctx)
	quiz, err := c.Service.Close(actor.UserID, quizID)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// @Summary 教师测验列表
// @Tags 测验管理
// @Produce json
// @Security BearerAuth
// @Param classSectionId query int true "教学班ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/quizzes [get]
func (c *QuizController) List(ctx *gin.Context) {
	classSectionID, ok := util.ParseID(ctx.Query("classSectionId"))
	if !ok {
		util.BadRequest(ctx, "invalid classSectionId")
		return
	}

	actor := util.GetUserFromContext(ctx)
	quizzes, err := c.Service.ListForTeacher(actor.UserID, classSectionID)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, quizzes)
}

// @Summary 测验详情（含答案标记）
// @Tags 测验管理
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/quizzes/{id} [get]
func (c *QuizController) Detail(ctx *gin.Context) {
	quizID, ok := util.ParseID(ctx.Param("id"))
	if !ok {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	actor := util.GetUserFromContext(ctx)
	detail, err := c.Service.Detail(actor.UserID, quizID)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// @Summary 学生可见的已发布测验
// @Tags 测验作答
// @Produce json
// @Security BearerAuth
// @Param classSectionId query int true "教学班ID"
// @Success 200 {object} util.Response
// @Router /api/quizzes [get]
func (c *QuizController) ListPublished(ctx *gin.Context) {
	classSectionID, ok := util.ParseID(ctx.Query("classSectionId"))
	if !ok {
		util.BadRequest(ctx, "invalid classSectionId")
		return
	}

	actor := util.GetUserFromContext(ctx)
	quizzes, err := c.Service.ListForStudent(actor.UserID, classSectionID)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, quizzes)
}
