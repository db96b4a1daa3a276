package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"campus_edu_backend/internal/config"
	"campus_edu_backend/internal/controller"
	"campus_edu_backend/internal/repository"
	"campus_edu_backend/internal/service"
	"campus_edu_backend/pkg/configwatcher"
	"campus_edu_backend/pkg/database"
	"campus_edu_backend/pkg/logger"
	"campus_edu_backend/pkg/monitoring"
	"campus_edu_backend/pkg/security"
	"campus_edu_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client

	services   *services
	syncWorker *service.SyncWorker
	workerStop context.CancelFunc

	// 热加载后的补录政策，worker 与同步服务读它
	allowPublishedSync atomic.Bool
}

type repositories struct {
	user       *repository.UserRepository
	enrollment *repository.EnrollmentRepository
	quiz       *repository.QuizRepository
	attempt    *repository.AttemptRepository
	gradebook  *repository.GradebookRepository
}

type services struct {
	auth      *service.AuthService
	quiz      *service.QuizService
	attempt   *service.AttemptService
	gradebook *service.GradebookService
	scoreSync *service.ScoreSyncService
	queue     *service.RedisSyncQueue
	events    *service.RedisEventSink
	archive   *service.ArchiveService
}

type controllers struct {
	auth      *controller.AuthController
	quiz      *controller.QuizController
	attempt   *controller.AttemptController
	gradebook *controller.GradebookController
	sync      *controller.SyncController
	health    *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:       repository.NewUserRepository(db),
		enrollment: repository.NewEnrollmentRepository(db),
		quiz:       repository.NewQuizRepository(db),
		attempt:    repository.NewAttemptRepository(db),
		gradebook:  repository.NewGradebookRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.queue = service.NewRedisSyncQueue(rdb)
	s.events = service.NewRedisEventSink(rdb)

	a.allowPublishedSync.Store(cfg.Grading.AllowPublishedSync)
	allowPublished := func() bool { return a.allowPublishedSync.Load() }

	if cfg.Archive.Enabled {
		archive, err := service.NewArchiveService(cfg.Archive, repos.gradebook)
		if err != nil {
			logger.Log.Error("archive service disabled", zap.Error(err))
		} else {
			s.archive = archive
		}
	}

	s.auth = service.NewAuthService(repos.user, cfg.JWT.Secret, cfg.JWT.ExpireTime)
	s.quiz = service.NewQuizService(repos.quiz, repos.enrollment, s.events, nil)
	s.attempt = service.NewAttemptService(repos.attempt, repos.quiz, repos.enrollment, s.queue, nil)
	// ArchiveService 为 nil 时接口值必须也是 nil，不能包一层
	var archiver service.GradebookArchiver
	if s.archive != nil {
		archiver = s.archive
	}
	s.gradebook = service.NewGradebookService(repos.gradebook, repos.enrollment, s.events, archiver, nil)
	s.scoreSync = service.NewScoreSyncService(repos.attempt, repos.quiz, repos.gradebook, repos.enrollment, repos.gradebook, allowPublished)

	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		auth:      controller.NewAuthController(s.auth),
		quiz:      controller.NewQuizController(s.quiz),
		attempt:   controller.NewAttemptController(s.attempt),
		gradebook: controller.NewGradebookController(s.gradebook),
		sync:      controller.NewSyncController(s.scoreSync),
		health:    controller.NewHealthController(),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) startBackgroundTasks(s *services) {
	ctx, cancel := context.WithCancel(context.Background())
	a.workerStop = cancel

	a.syncWorker = service.NewSyncWorker(s.queue, s.scoreSync, a.Config.Grading)
	go a.syncWorker.Run(ctx)

	// 配置热加载：补录政策可在运行期切换
	go configwatcher.WatchConfig("configs/config.yaml", func(newCfg *config.Config) {
		a.allowPublishedSync.Store(newCfg.Grading.AllowPublishedSync)
		logger.Log.Info("grading policy reloaded",
			zap.Bool("allowPublishedSync", newCfg.Grading.AllowPublishedSync))
	})
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}

	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}
	app.Redis = rdb

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services)

	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("campus-edu-backend", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, repos, cfg)

	app.startBackgroundTasks(services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

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

	if a.workerStop != nil {
		a.workerStop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
