package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/ChrisHK/label-printer/internal/cache"
	"github.com/ChrisHK/label-printer/internal/config"
	"github.com/ChrisHK/label-printer/internal/lock"
	"github.com/ChrisHK/label-printer/internal/logging"
	"github.com/ChrisHK/label-printer/internal/repository"
	"github.com/ChrisHK/label-printer/internal/service"

	"github.com/redis/go-redis/v9"
)

// app holds the shared dependencies of every command.
type app struct {
	cfg     *config.Config
	store   *repository.Store
	redis   *redis.Client
	cache   cache.Cache
	locker  lock.Locker
	records *repository.RecordRepository
	logs    *repository.LogRepository
	archive *repository.ArchiveRepository
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logging.Component("App")

	dialect, err := repository.ParseDialect(cfg.Store.Driver)
	if err != nil {
		return nil, err
	}
	store, err := repository.Open(ctx, repository.Options{
		Dialect:         dialect,
		DSN:             cfg.Store.DSN(),
		MaxOpenConns:    cfg.Store.MaxOpenConns,
		MaxIdleConns:    cfg.Store.MaxIdleConns,
		ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		store:   store,
		records: repository.NewRecordRepository(),
		logs:    repository.NewLogRepository(),
		archive: repository.NewArchiveRepository(),
	}

	if cfg.Cache.Type == "redis" || cfg.Lock.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			client.Close()
			if cfg.Lock.Backend == "redis" {
				store.Close()
				return nil, fmt.Errorf("redis is required for LOCK_BACKEND=redis: %w", err)
			}
			log.WithError(err).Warn("redis unavailable, falling back to in-memory cache")
		} else {
			a.redis = client
			log.WithField("addr", cfg.Cache.RedisAddress()).Info("redis client initialized")
		}
	}

	switch {
	case cfg.Cache.Type == "redis" && a.redis != nil:
		a.cache = cache.NewRedis(a.redis, cfg.Cache.RedisPrefix)
	case cfg.Cache.Type == "none":
		a.cache = cache.Nop{}
	default:
		a.cache = cache.NewMemory(time.Minute)
	}

	if cfg.Lock.Backend == "redis" {
		a.locker = lock.NewRedis(a.redis, lock.RedisConfig{
			Prefix: cfg.Cache.RedisPrefix + "lock:serial:",
			TTL:    cfg.Lock.TTL,
			Wait:   cfg.Lock.Wait,
		})
	} else {
		a.locker = lock.NewLocal()
	}

	return a, nil
}

func (a *app) close() {
	log := logging.Component("App")
	if err := a.cache.Close(); err != nil {
		log.WithError(err).Warn("failed to close cache")
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.WithError(err).Warn("failed to close redis client")
		}
	}
	if err := a.store.Close(); err != nil {
		log.WithError(err).Warn("failed to close store")
	}
}

func (a *app) ingestor() *service.BatchIngestor {
	return service.NewBatchIngestor(a.store, a.records, a.logs, a.locker, a.cache, service.IngestConfig{
		Workers:        a.cfg.Ingest.Workers,
		MaxItems:       a.cfg.Ingest.MaxItems,
		VerifyChecksum: a.cfg.Ingest.VerifyChecksum,
		DefaultSource:  a.cfg.Ingest.DefaultSource,
	})
}

func (a *app) logService() *service.LogService {
	return service.NewLogService(a.store, a.logs, a.records, a.cache, a.cfg.Cache.TTL)
}

func (a *app) archiver() *service.LogArchiver {
	return service.NewLogArchiver(a.store, a.archive, a.cache, a.cfg.Archive.RetentionDays)
}

func (a *app) reconciler() *service.Reconciler {
	return service.NewReconciler(a.store, a.logs, a.cfg.Archive.ProcessingLease)
}

func (a *app) scheduler() (*service.Scheduler, error) {
	return service.NewScheduler(a.archiver(), a.reconciler(), service.SchedulerConfig{
		ArchiveSchedule:   a.cfg.Archive.Schedule,
		ReconcileSchedule: a.cfg.Archive.ReconcileSchedule,
		RetentionDays:     a.cfg.Archive.RetentionDays,
		Lease:             a.cfg.Archive.ProcessingLease,
		JobTimeout:        a.cfg.Archive.JobTimeout,
	})
}
