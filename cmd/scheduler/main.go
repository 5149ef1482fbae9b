package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ponselpay/financing-engine/internal/audit"
	"github.com/ponselpay/financing-engine/internal/config"
	"github.com/ponselpay/financing-engine/internal/notification"
	"github.com/ponselpay/financing-engine/internal/repository"
	"github.com/ponselpay/financing-engine/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := repository.Connect(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := repository.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	loanRepo := repository.NewLoanRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)
	tx := repository.NewTransactor(db)
	auditSink := audit.NewSink(db, logger)
	notifier := notification.NewRedisDispatcher(redisClient, cfg.Business.NotificationChannel, logger)

	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		log.Fatalf("Failed to load scheduler timezone: %v", err)
	}

	lockService := service.NewDeviceLockService(deviceRepo, tx, auditSink, notifier, logger)
	sweepService := service.NewSweepService(loanRepo, deviceRepo, lockService, tx, auditSink, location, logger)

	c := cron.New(cron.WithSeconds(), cron.WithLocation(location))
	setupCronJobs(c, cfg, sweepService, redisClient, logger)

	c.Start()
	logger.Info("scheduler started",
		zap.String("overdue_sweep_spec", cfg.Scheduler.OverdueSweepSpec),
		zap.String("auto_block_spec", cfg.Scheduler.AutoBlockSpec),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down scheduler")
	<-c.Stop().Done()
	logger.Info("scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, sweeps *service.SweepService, redisClient *redis.Client, logger *zap.Logger) {
	_, err := c.AddFunc(cfg.Scheduler.OverdueSweepSpec, func() {
		runWithLease(cfg, redisClient, logger, "overdue-sweep", func(ctx context.Context) {
			result, err := sweeps.SweepOverdue(ctx)
			if err != nil {
				logger.Error("overdue sweep failed", zap.Error(err))
				return
			}
			logger.Info("overdue sweep done", zap.Int("marked", result.Marked))
		})
	})
	if err != nil {
		log.Fatalf("Failed to schedule overdue sweep: %v", err)
	}

	_, err = c.AddFunc(cfg.Scheduler.AutoBlockSpec, func() {
		runWithLease(cfg, redisClient, logger, "auto-block", func(ctx context.Context) {
			result, err := sweeps.AutoBlockOverdue(ctx, cfg.Business.AutoBlockThresholdDays)
			if err != nil {
				logger.Error("auto-block sweep failed", zap.Error(err))
				return
			}
			logger.Info("auto-block sweep done",
				zap.Int("blocked", result.Blocked),
				zap.Int("skipped", result.Skipped),
			)
		})
	})
	if err != nil {
		log.Fatalf("Failed to schedule auto-block sweep: %v", err)
	}
}

// runWithLease takes a short Redis lease so overlapping scheduler replicas
// run each sweep once. The sweeps themselves are idempotent; the lease just
// avoids duplicate work.
func runWithLease(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger, name string, job func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetLeaseTTL())
	defer cancel()

	key := "financing:lease:" + name
	acquired, err := redisClient.SetNX(ctx, key, time.Now().Format(time.RFC3339), cfg.GetLeaseTTL()).Result()
	if err != nil {
		// Redis being down should not stop the ledger sweeps.
		logger.Warn("lease check failed, running anyway", zap.String("job", name), zap.Error(err))
	} else if !acquired {
		logger.Info("lease held elsewhere, skipping", zap.String("job", name))
		return
	}

	job(ctx)

	if err == nil {
		redisClient.Del(ctx, key)
	}
}
