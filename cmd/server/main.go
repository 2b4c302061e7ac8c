package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ravi1997/spars/internal/config"
	"github.com/ravi1997/spars/internal/handler"
	"github.com/ravi1997/spars/internal/middleware"
	"github.com/ravi1997/spars/internal/model/entity"
	"github.com/ravi1997/spars/internal/repository"
	"github.com/ravi1997/spars/internal/service"
	"github.com/ravi1997/spars/internal/sms"
	"github.com/ravi1997/spars/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := newDatabase(cfg.Database)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	if err := autoMigrate(db); err != nil {
		logger.Fatal("migrate schema", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("connect redis", zap.Error(err))
	}

	var store *storage.ObjectStore
	if cfg.MinIO.Endpoint != "" {
		store, err = storage.New(cfg.MinIO)
		if err != nil {
			logger.Fatal("connect object storage", zap.Error(err))
		}
		if err := store.EnsureBucket(context.Background()); err != nil {
			logger.Fatal("prepare bucket", zap.Error(err))
		}
	} else {
		logger.Warn("object storage not configured, file uploads disabled")
	}

	repos := repository.NewRepositories(db)
	if err := seed(context.Background(), repos, logger); err != nil {
		logger.Fatal("seed data", zap.Error(err))
	}

	smsClient := sms.NewClient(cfg.SMS, logger)
	services := service.NewServices(repos, rdb, store, smsClient, cfg, logger)
	handlers := handler.NewHandlers(services)

	gin.SetMode(ginMode(cfg.Server.Mode))
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS())
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	registerRoutes(router, handlers, cfg)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Format(time.RFC3339)})
	})

	api := r.Group("/api/v1")

	api.POST("/auth/request_otp", h.Auth.RequestOTP)
	api.POST("/auth/verify_otp", h.Auth.VerifyOTP)

	// Survey definitions are world readable.
	api.GET("/survey", h.Survey.List)
	api.GET("/survey/:id", h.Survey.Get)

	authed := api.Group("", middleware.JWTAuth(cfg.JWT.Secret))

	admin := authed.Group("", middleware.RequireRole(entity.RoleAdmin))
	admin.POST("/survey", h.Survey.Create)
	admin.PUT("/survey/:id", h.Survey.Update)
	admin.PUT("/survey/:id/state", h.Survey.UpdateState)
	admin.DELETE("/survey/:id", h.Survey.Delete)
	admin.POST("/survey/:id/question", h.Survey.AddQuestion)
	admin.PUT("/survey/:id/question/:qid", h.Survey.UpdateQuestion)
	admin.DELETE("/survey/:id/question/:qid", h.Survey.DeleteQuestion)
	admin.POST("/survey/:id/question/:qid/option", h.Survey.AddOption)
	admin.DELETE("/survey/:id/question/:qid/option/:oid", h.Survey.DeleteOption)

	authed.POST("/survey/:id/answers", h.Answer.Submit)
	authed.GET("/survey/:id/answers", h.Answer.List)
	authed.GET("/survey/:id/answers/:aid", h.Answer.Get)
	authed.PUT("/survey/:id/answers/:aid", h.Answer.Update)
	authed.DELETE("/survey/:id/answers/:aid", h.Answer.Delete)
	authed.POST("/survey/:id/answers/upload", h.Answer.Upload)
	authed.GET("/survey/:id/answers/download", h.Answer.Download)
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func newDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	return db, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.User{},
		&entity.Role{},
		&entity.Survey{},
		&entity.Question{},
		&entity.Option{},
		&entity.QuestionConstraint{},
		&entity.SurveyAttempt{},
		&entity.Answer{},
	)
}

// seed guarantees the role rows and one superadmin account exist.
func seed(ctx context.Context, repos *repository.Repositories, logger *zap.Logger) error {
	roles := []string{
		entity.RoleSuperadmin,
		entity.RoleAdmin,
		entity.RoleTester,
		entity.RoleNormal,
	}
	if err := repos.User.EnsureRoles(ctx, roles); err != nil {
		return err
	}

	mobile := config.GetEnvOrDefault("SEED_SUPERADMIN_MOBILE", "9899378106")
	_, err := repos.User.FindByMobile(ctx, mobile)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	admin := &entity.User{
		ID:     uuid.New().String(),
		Mobile: mobile,
	}
	if err := repos.User.Create(ctx, admin); err != nil {
		return err
	}
	if err := repos.User.AttachRole(ctx, admin, entity.RoleSuperadmin); err != nil {
		return err
	}
	logger.Info("seeded superadmin", zap.String("mobile", mobile))
	return nil
}

func ginMode(mode string) string {
	switch mode {
	case "release":
		return gin.ReleaseMode
	case "test":
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}
