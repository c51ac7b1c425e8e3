package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/yourusername/homepage-api/internal/config"
	"github.com/yourusername/homepage-api/internal/domain/repository"
	"github.com/yourusername/homepage-api/internal/handler"
	"github.com/yourusername/homepage-api/internal/metrics"
	"github.com/yourusername/homepage-api/internal/middleware"
	"github.com/yourusername/homepage-api/internal/repository/memory"
	pgRepo "github.com/yourusername/homepage-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/homepage-api/internal/repository/redis"
	"github.com/yourusername/homepage-api/internal/service"
	"github.com/yourusername/homepage-api/internal/service/captcha"
	"github.com/yourusername/homepage-api/pkg/auth"
	"github.com/yourusername/homepage-api/pkg/database"
	"github.com/yourusername/homepage-api/pkg/logger"
)

// codeStore - все, что приложению нужно от хранилища кодов
type codeStore interface {
	repository.VerificationStore
	repository.CounterStore
	repository.SessionRevocationStore
	repository.Pinger
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	appLog, err := logger.New(cfg.Log.Dir, cfg.Log.Debug || !cfg.Server.IsRelease())
	if err != nil {
		log.Printf("Failed to init logger: %v", err)
		os.Exit(1)
	}
	defer appLog.Sync()

	gin.SetMode(cfg.Server.Mode)

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), cfg.Log.Debug)
	if err != nil {
		appLog.Fatal("Failed to connect to database", zap.Error(err))
	}
	sqlDB, err := database.GetSQLDB(db)
	if err != nil {
		appLog.Fatal("Failed to get sql.DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := database.MigrateDB(db, cfg.Database.MigrationsPath, appLog); err != nil {
		appLog.Fatal("Failed to migrate database", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, storeID, closeStore := openStore(ctx, cfg, appLog)
	defer closeStore()

	appMetrics := metrics.New()

	mailer, err := service.NewMailDispatcher(cfg.Mail, appLog)
	if err != nil {
		appLog.Fatal("Failed to init mail dispatcher", zap.Error(err))
	}

	sessions, err := auth.NewSessionManager(cfg.Session.Secret, time.Duration(cfg.Session.TTLHours)*time.Hour, store)
	if err != nil {
		appLog.Fatal("Failed to init session manager", zap.Error(err))
	}

	userRepo := pgRepo.NewUserRepo(db)
	messageRepo := pgRepo.NewMessageRepo(db)

	renderer := captcha.NewRenderer(cfg.Verification.FontPath, appLog)
	appLog.Info("Captcha renderer ready", zap.String("font", renderer.Source()))

	verificationService := service.NewVerificationService(
		store,
		service.NewRateLimiter(store, cfg.Verification),
		captcha.NewGenerator(),
		renderer,
		mailer,
		userRepo,
		cfg.Verification,
		time.Duration(cfg.Mail.TimeoutSec)*time.Second,
		appMetrics,
		appLog,
	)
	authService := service.NewAuthService(userRepo, verificationService, sessions, appLog)
	messageService := service.NewMessageService(messageRepo, cfg.Guestbook.MaxMessageLength, appLog)

	if err := handler.RegisterValidators(); err != nil {
		appLog.Fatal("Failed to register validators", zap.Error(err))
	}

	postThrottle := middleware.NewPostThrottle(cfg.Guestbook.PostsPerMinute, cfg.Guestbook.PostBurst)
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				postThrottle.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()

	router := gin.New()
	router.Use(middleware.Recover(appLog), middleware.Logger(appLog.Named("http")), middleware.Metrics(appMetrics))

	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		appLog.Warn("Failed to set trusted proxies", zap.Error(err))
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handler.RegisterRoutes(router, handler.Routes{
		Auth:      handler.NewAuthHandler(authService, cfg.Session, appLog),
		Captcha:   handler.NewCaptchaHandler(verificationService, appLog),
		Messages:  handler.NewMessageHandler(messageService, appLog),
		Health:    handler.NewHealthHandler(database.NewSQLPinger(sqlDB), store, storeID, appLog),
		AuthMW:    middleware.NewAuthMiddleware(sessions, cfg.Session.CookieName, appLog),
		RateLimit: middleware.NewRateLimiter(store, appLog),
		Throttle:  postThrottle,
	})
	router.GET("/metrics", gin.WrapH(appMetrics.Handler()))

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		appLog.Info("Starting server", zap.String("port", cfg.Server.Port), zap.String("store", storeID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	// Останавливаем фоновые горутины (sweeper, очистка throttle)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	appLog.Info("Server exited properly")
}

// openStore подключает Redis. Если Redis недоступен при старте или выбран store=memory,
// работает in-memory хранилище (только для одного экземпляра приложения).
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (codeStore, string, func()) {
	timeout := time.Duration(cfg.Verification.StoreTimeoutSec) * time.Second

	if cfg.Verification.Store == "redis" {
		client, err := database.NewUniversalRedisClient(ctx, cfg.Redis)
		if err == nil {
			var store *redisRepo.VerificationStore
			store, err = redisRepo.NewVerificationStore(client, timeout)
			if err == nil {
				log.Info("Verification store: redis", zap.String("mode", cfg.Redis.Mode))
				return store, "redis", func() { closeRedis(client, log) }
			}
			closeRedis(client, log)
		}
		log.Error("Redis is unavailable, falling back to in-memory verification store (single instance only)", zap.Error(err))
	}

	store := memory.NewVerificationStore()
	interval := time.Duration(cfg.Verification.SweepIntervalSec) * time.Second
	go store.RunSweeper(ctx, interval, func(removed int) {
		if removed > 0 {
			log.Debug("Expired verification entries swept", zap.Int("removed", removed))
		}
	})
	return store, "memory", func() {}
}

func closeRedis(client goredis.UniversalClient, log *zap.Logger) {
	if err := client.Close(); err != nil {
		log.Warn("Error closing Redis client", zap.Error(err))
	}
}
