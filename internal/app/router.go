package app

import (
	"campus_edu_backend/docs"
	"campus_edu_backend/internal/config"
	"campus_edu_backend/internal/middleware"
	"campus_edu_backend/internal/model"
	"campus_edu_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.Check)
		public.POST("/login", c.auth.Login)
	}

	// 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		// 学生作答
		student := authGroup.Group("/")
		student.Use(middleware.RoleMiddleware(model.Student))
		{
			student.GET("/quizzes", c.quiz.ListPublished)
			student.POST("/quizzes/:id/attempts", c.attempt.Start)
			student.GET("/attempts/:id", c.attempt.Get)
			student.POST("/attempts/:id/submit", c.attempt.Submit)
		}

		// 教师：测验生命周期 + 成绩册
		teacher := authGroup.Group("/teacher")
		teacher.Use(middleware.RoleMiddleware(model.Teacher))
		{
			teacher.POST("/quizzes", c.quiz.Create)
			teacher.GET("/quizzes", c.quiz.List)
			teacher.GET("/quizzes/:id", c.quiz.Detail)
			teacher.POST("/quizzes/:id/questions", c.quiz.AddQuestion)
			teacher.PUT("/quizzes/:id/questions/:questionId", c.quiz.UpdateQuestion)
			teacher.DELETE("/quizzes/:id/questions/:questionId", c.quiz.DeleteQuestion)
			teacher.POST("/quizzes/:id/publish", c.quiz.Publish)
			teacher.POST("/quizzes/:id/close", c.quiz.Close)
			teacher.GET("/attempts/:id", c.attempt.Review)

			teacher.GET("/class-sections/:id/gradebook", c.gradebook.Detail)
			teacher.POST("/class-sections/:id/gradebook/items", c.gradebook.AddItem)
			teacher.PUT("/class-sections/:id/gradebook/scores", c.gradebook.UpsertScores)
			teacher.POST("/class-sections/:id/gradebook/request-approval", c.gradebook.RequestApproval)
		}

		// 管理员：审批与手动同步
		admin := authGroup.Group("/admin")
		admin.Use(middleware.RoleMiddleware(model.Admin))
		{
			admin.POST("/class-sections/:id/gradebook/approve", c.gradebook.Approve)
			admin.POST("/class-sections/:id/gradebook/reject", c.gradebook.Reject)
			admin.POST("/attempts/:id/sync", c.sync.SyncAttempt)
		}
	}
}
