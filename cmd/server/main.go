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

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ponselpay/financing-engine/internal/audit"
	"github.com/ponselpay/financing-engine/internal/config"
	"github.com/ponselpay/financing-engine/internal/handler"
	"github.com/ponselpay/financing-engine/internal/notification"
	"github.com/ponselpay/financing-engine/internal/repository"
	"github.com/ponselpay/financing-engine/internal/service"
	"github.com/ponselpay/financing-engine/pkg/response"
)

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database and apply migrations
	db, err := repository.Connect(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := repository.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize Redis
	redisClient := initRedis(cfg)
	defer redisClient.Close()

	// Initialize repositories and collaborators
	loanRepo := repository.NewLoanRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)
	tx := repository.NewTransactor(db)
	auditSink := audit.NewSink(db, logger)
	notifier := notification.NewRedisDispatcher(redisClient, cfg.Business.NotificationChannel, logger)

	// Initialize services
	loanService := service.NewLoanService(loanRepo, deviceRepo, tx, auditSink, logger)
	paymentService := service.NewPaymentService(loanRepo, paymentRepo, tx, auditSink, notifier, logger)
	lockService := service.NewDeviceLockService(deviceRepo, tx, auditSink, notifier, logger)

	financingHandler := handler.NewFinancingHandler(loanService, paymentService)
	lockHandler := handler.NewDeviceLockHandler(lockService)
	healthHandler := handler.NewHealthHandler(db, redisClient, cfg.GetHealthTimeout())

	// Setup routes
	router := setupRoutes(financingHandler, lockHandler, healthHandler)

	// Start server
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("server exited")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func setupRoutes(financingHandler *handler.FinancingHandler, lockHandler *handler.DeviceLockHandler, healthHandler *handler.HealthHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware)

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/loans/quote", financingHandler.Quote).Methods("POST")
	api.HandleFunc("/loans", financingHandler.FinalizeLoan).Methods("POST")
	api.HandleFunc("/loans/{loanId}/schedule", financingHandler.GetSchedule).Methods("GET")
	api.HandleFunc("/loans/{loanId}/cancel", financingHandler.CancelLoan).Methods("POST")

	api.HandleFunc("/payments", financingHandler.SubmitPayment).Methods("POST")
	api.HandleFunc("/payments/{paymentId}/verify", financingHandler.VerifyPayment).Methods("POST")
	api.HandleFunc("/payments/{paymentId}/reject", financingHandler.RejectPayment).Methods("POST")
	api.HandleFunc("/payments/{paymentId}/allocate", financingHandler.AllocatePayment).Methods("POST")
	api.HandleFunc("/installments/{installmentId}/mark-paid", financingHandler.MarkInstallmentPaid).Methods("POST")

	api.HandleFunc("/devices/{deviceId}/lock", lockHandler.RequestLock).Methods("POST")
	api.HandleFunc("/devices/{deviceId}/lock/confirm", lockHandler.ConfirmLock).Methods("POST")
	api.HandleFunc("/devices/{deviceId}/unlock", lockHandler.Unlock).Methods("POST")
	api.HandleFunc("/devices/{deviceId}/lock", lockHandler.CurrentState).Methods("GET")
	api.HandleFunc("/devices/{deviceId}/lock/history", lockHandler.History).Methods("GET")

	return router
}
