package app

import (
	"sat_prep_backend/docs"
	"sat_prep_backend/internal/config"
	"sat_prep_backend/internal/middleware"
	"sat_prep_backend/internal/model"
	"sat_prep_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		a.registerStudentRoutes(authGroup, c)
	}

	// 3. 管理员相关接口
	a.registerAdminRoutes(router, c, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/profile", c.auth.GetProfile)
	rg.GET("/exams", c.exam.ListExams)

	// 测试会话
	sessions := rg.Group("/sessions")
	{
		sessions.POST("", c.exam.StartSession)
		sessions.GET("/:id/status", c.exam.GetSessionStatus)
		sessions.GET("/:id/meta", c.exam.GetSessionMeta)
		sessions.GET("/:id/modules/:module/questions", c.exam.GetModuleQuestions)
		sessions.POST("/:id/answers", c.exam.SubmitAnswer)
		sessions.POST("/:id/pause", c.exam.PauseSession)
		sessions.POST("/:id/complete-module", c.exam.CompleteModule)
		sessions.POST("/:id/complete", c.exam.CompleteExam)
		sessions.GET("/:id/ws", c.exam.SessionWebSocket)
	}

	// 测试回顾
	rg.GET("/reviews", c.review.ListReviews)
	rg.GET("/reviews/:id", c.review.GetReview)

	// 学情分析
	rg.GET("/analytics", c.analytics.GetOverview)
	rg.GET("/analytics/sessions/:id", c.analytics.GetSessionAnalytics)
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.Admin))
	{
		admin.POST("/exams", c.question.CreateExam)
		admin.GET("/exams", c.question.ListExams)
		admin.PUT("/exams/:id/active", c.question.SetExamActive)

		admin.POST("/questions", c.question.CreateQuestion)
		admin.PUT("/questions/:id", c.question.UpdateQuestion)
		admin.DELETE("/questions/:id", c.question.DeleteQuestion)
		admin.POST("/questions/assets", c.question.UploadAsset)
	}
}
