package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sat_prep_backend/internal/config"
	"sat_prep_backend/internal/controller"
	"sat_prep_backend/internal/repository"
	"sat_prep_backend/internal/service"
	"sat_prep_backend/pkg/database"
	"sat_prep_backend/pkg/logger"
	"sat_prep_backend/pkg/monitoring"
	"sat_prep_backend/pkg/security"
	"sat_prep_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracerProvider  *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user      *repository.UserRepository
	exam      *repository.ExamRepository
	question  *repository.QuestionRepository
	session   *repository.SessionRepository
	response  *repository.ResponseRepository
	analytics *repository.AnalyticsRepository
}

type services struct {
	auth       *service.AuthService
	storage    *service.StorageService
	grading    *service.GradingService
	analytics  *service.AnalyticsService
	exam       *service.ExamService
	question   *service.QuestionService
	review     *service.ReviewService
	sessionHub *service.SessionHub
}

type controllers struct {
	auth      *controller.AuthController
	exam      *controller.ExamController
	review    *controller.ReviewController
	analytics *controller.AnalyticsController
	question  *controller.QuestionController
	health    *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig 配置热更新入口，分发给已注册的回调
func (a *App) ApplyConfig(cfg *config.Config) {
	a.Config = cfg
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
	logger.Log.Info("config reloaded")
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:      repository.NewUserRepository(db),
		exam:      repository.NewExamRepository(db),
		question:  repository.NewQuestionRepository(db),
		session:   repository.NewSessionRepository(db),
		response:  repository.NewResponseRepository(db),
		analytics: repository.NewAnalyticsRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.grading = service.NewGradingService(repos.question, repos.response)
	s.analytics = service.NewAnalyticsService(repos.analytics, s.grading)

	s.sessionHub = service.NewSessionHub()
	go s.sessionHub.Run()

	s.exam = service.NewExamService(
		repos.exam,
		repos.session,
		repos.response,
		repos.question,
		s.grading,
		s.analytics,
		s.sessionHub,
	)
	s.question = service.NewQuestionService(repos.question, repos.exam, s.storage, rdb)
	s.review = service.NewReviewService(repos.session, repos.response, repos.question)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:      controller.NewAuthController(s.auth),
		exam:      controller.NewExamController(s.exam, s.question, s.sessionHub),
		review:    controller.NewReviewController(s.review),
		analytics: controller.NewAnalyticsController(s.analytics, s.exam),
		question:  controller.NewQuestionController(s.question),
		health:    controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 1000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db)

	// 监控初始化
	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("sat-prep-platform", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		// provider 跟随进程存活，Run 的优雅退出里统一关闭
		app.tracerProvider = tp
	}

	app.registerRoutes(router, controllers, repos, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
		router.Static("/api/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// 断开会话推送连接
	if a.services != nil && a.services.sessionHub != nil {
		a.services.sessionHub.Stop()
	}

	// 上报剩余 span 后关闭 tracer provider
	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	// 关闭服务
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
