package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"campus/internal/audit"
	"campus/internal/config"
	"campus/internal/library"
	"campus/internal/logging"
	"campus/internal/queue"
	"campus/internal/store"
)

// The worker drains queue events into the audit log and periodically reports
// overdue loans. It never mutates ledger or session state.
func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "campus:events")
	}

	trail := audit.NewRepository(db.Client)
	libraryRepo := library.NewRepository(db.Client)

	go scanOverdue(ctx, libraryRepo, cfg.OverdueScanEvery, logger)

	events, err := q.Consume(ctx)
	if err != nil {
		logger.Fatal("queue consume failed", zap.Error(err))
	}
	logger.Info("worker consuming events")

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopped")
			return
		case evt, ok := <-events:
			if !ok {
				logger.Info("event stream closed")
				return
			}
			if err := trail.Record(ctx, evt); err != nil {
				logger.Error("audit record failed",
					zap.String("type", evt.Type), zap.Error(err))
				continue
			}
			logger.Debug("event recorded", zap.String("type", evt.Type))
		}
	}
}

// scanOverdue logs loans past due on a fixed interval. An immediate first pass
// runs on startup.
func scanOverdue(ctx context.Context, repo *library.Repository, every time.Duration, logger *zap.Logger) {
	if every <= 0 {
		every = time.Hour
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		overdue, err := repo.Overdue(ctx, time.Now())
		if err != nil {
			logger.Error("overdue scan failed", zap.Error(err))
		} else if len(overdue) > 0 {
			logger.Warn("overdue loans", zap.Int("count", len(overdue)))
			for _, b := range overdue {
				logger.Warn("overdue loan",
					zap.Int64("borrowing_id", b.ID),
					zap.Int64("student_id", b.StudentID),
					zap.Time("due_at", b.DueAt))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
