package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"flowtrack/internal/analytics"
	"flowtrack/internal/api/handler"
	"flowtrack/internal/config"
	"flowtrack/internal/core/ports"
	"flowtrack/internal/core/postgres/repository"
	infraredis "flowtrack/internal/infrastructure/redis"
	"flowtrack/internal/infrastructure/ticket"
	"flowtrack/internal/service"
	"flowtrack/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// 1. Set up database connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := repository.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// 2. Set up redis: completion queue for the anomaly worker, pub/sub for alerts
	redisClient, err := infraredis.NewRedisClient(ctx, cfg.Redis.Addr)
	if err != nil {
		log.Fatal("Failed to connect to redis:", err)
	}
	queue := infraredis.NewCompletionQueue(redisClient)
	alerts := infraredis.NewAlertBus(redisClient)

	// 3. Initialize repositories
	templateRepo := repository.NewTemplateRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)
	stepRepo := repository.NewStepRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	estimateRepo := repository.NewEstimateRepository(db)
	anomalyRepo := repository.NewAnomalyRepository(db)

	if err := templateRepo.SeedDefaults(ctx); err != nil {
		log.Fatal("Failed to seed default templates:", err)
	}

	// 4. Initialize services
	clock := ports.SystemClock{}
	tracker := service.NewTrackingService(sessionRepo, clock)
	adjuster := analytics.NewEstimateAdjuster(estimateRepo)
	workflowSvc := service.NewWorkflowService(
		templateRepo, workflowRepo, stepRepo,
		tracker, adjuster, queue,
		ticket.NewNoopProvider(), alerts, clock,
	)

	// 5. Start the anomaly detection worker
	anomalyWorker := worker.NewAnomalyWorker(queue, workflowRepo, anomalyRepo, alerts, clock)
	go anomalyWorker.Start(ctx)

	// 6. Set up routes
	workflowHandler := handler.NewWorkflowHandler(workflowSvc, templateRepo, anomalyRepo)

	router := gin.Default()
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	workflowHandler.RegisterRoutes(api)

	// 7. Start server
	log.Println("Server starting on", cfg.Server.Addr)
	if err := router.Run(cfg.Server.Addr); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
