package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	lockrepo "agendly/internal/locks/repository"
	lockservice "agendly/internal/locks/service"
	"agendly/pkg/clock"
	"agendly/pkg/config"
	"agendly/pkg/logger"
)

const JobName = "lock-sweeper"

func main() {
	cfg := config.Load(JobName)

	var repo lockrepo.SlotLockRepository
	if cfg.LockStore == config.StoreRedis {
		cfg.SetRedis()
		repo = lockrepo.NewRedisSlotLockRepository(cfg.Client.Redis)
	} else {
		cfg.SetMongo()
		repo = lockrepo.NewMongoSlotLockRepository(cfg)
	}
	defer cfg.GracefulShutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := lockservice.NewSlotLockManager(repo, clock.Real{}, cfg)
	cfg.Log.Info("Starting lock sweeper", "interval", cfg.LockSweepInterval, "lock_store", cfg.LockStore)
	run(ctx, manager, cfg.LockSweepInterval, cfg.Log)
	cfg.Log.Info("Lock sweeper stopped")
}

// run sweeps once immediately and then on every tick until ctx is done.
func run(ctx context.Context, manager lockservice.SlotLockManager, interval time.Duration, log *logger.Logger) {
	sweep(ctx, manager, log)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx, manager, log)
		}
	}
}

func sweep(ctx context.Context, manager lockservice.SlotLockManager, log *logger.Logger) {
	removed, err := manager.SweepExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Error("Lock sweep failed", "error", err)
		}
		return
	}
	if removed > 0 {
		log.Info("Expired slot locks removed", "count", removed)
	}
}
