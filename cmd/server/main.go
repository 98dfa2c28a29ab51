package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codesteps/internal/api"
	"codesteps/internal/app/ratelimit"
	"codesteps/internal/app/sandbox"
	"codesteps/internal/app/service"
	"codesteps/internal/app/worker"
	"codesteps/internal/common/security"
	"codesteps/internal/domain/repository"
	"codesteps/internal/platform/cache"
	"codesteps/internal/platform/config"
	"codesteps/internal/platform/database"
	"codesteps/internal/platform/logger"
)

func main() {
	config.Load()

	log, err := logger.New(config.AppConfig.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	security.InitJWT()

	database.Connect()
	defer database.Close()

	cache.ConnectRedis()
	defer cache.CloseRedis()

	userRepo := repository.NewPgUserRepository(database.DB)
	courseRepo := repository.NewPgCourseRepository(database.DB)
	progressRepo := repository.NewPgProgressRepository(database.DB)
	submissionLogRepo := repository.NewPgSubmissionLogRepository(database.DB)
	testRepo := repository.NewPgTestRepository(database.DB)
	auditRepo := repository.NewPgAuditRepository(database.DB)

	runner := sandbox.NewRunner(config.AppConfig.SandboxTimeout, config.AppConfig.SandboxMemoryLimitMB)
	limiter := ratelimit.New(ratelimit.Config{
		Window:           config.AppConfig.RateLimitWindow,
		MaxPerWindow:     config.AppConfig.RateLimitMaxPerWindow,
		FailureThreshold: config.AppConfig.RateLimitFailureThreshold,
		PenaltyCooldown:  config.AppConfig.RateLimitPenaltyCooldown,
	})
	curriculumCache := cache.NewCurriculumCache(cache.RDB, config.AppConfig.CurriculumCacheTTL)

	authService := service.NewAuthService(userRepo)
	auditService := service.NewAuditService(cache.RDB, auditRepo, config.AppConfig.AuditQueueName, log)
	progressService := service.NewProgressService(
		database.DB, courseRepo, progressRepo, submissionLogRepo,
		runner, limiter, curriculumCache, log, config.AppConfig.MaxSubmissionBytes,
	)
	adminService := service.NewCourseAdminService(
		database.DB, courseRepo, progressRepo, submissionLogRepo,
		auditService, curriculumCache, log,
	)
	testService := service.NewTestSessionService(testRepo, progressRepo, runner, log)

	auditWorker := worker.NewAuditWorker(cache.RDB, auditRepo, config.AppConfig.AuditQueueName, log)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go auditWorker.Start(workerCtx)

	router := api.NewRouter(authService, progressService, adminService, testService, auditService)

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("server starting", "port", config.AppConfig.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server listen failed", "error", err)
		}
	}()

	<-stop

	log.Info("shutting down")
	workerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server shutdown failed", "error", err)
	}
	log.Info("server stopped")
}
