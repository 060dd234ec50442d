package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ChrisHK/label-printer/internal/cache"
	"github.com/ChrisHK/label-printer/internal/logging"
	"github.com/ChrisHK/label-printer/internal/model"
	"github.com/ChrisHK/label-printer/internal/repository"

	"github.com/sirupsen/logrus"
)

// LogCacheKey is the cache key of a batch's status.
func LogCacheKey(batchID string) string {
	return "log:" + batchID
}

// LogService reads and deletes processing logs.
type LogService struct {
	db      repository.DB
	logs    repository.LogStore
	records repository.RecordStore
	cache   cache.Cache
	ttl     time.Duration
	log     *logrus.Entry
}

// NewLogService creates a log service. Terminal statuses are cached for ttl.
func NewLogService(db repository.DB, logs repository.LogStore, records repository.RecordStore, c cache.Cache, ttl time.Duration) *LogService {
	if c == nil {
		c = cache.Nop{}
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LogService{
		db:      db,
		logs:    logs,
		records: records,
		cache:   c,
		ttl:     ttl,
		log:     logging.Component("LogService"),
	}
}

// List returns one page of logs, newest first.
func (s *LogService) List(ctx context.Context, q repository.ListQuery) (*model.LogPage, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, model.NewValidationError("unknown status %q", q.Status)
	}
	return s.logs.List(ctx, s.db, q)
}

// Get returns the newest log for a batch.
func (s *LogService) Get(ctx context.Context, batchID string) (*model.ProcessingLog, error) {
	key := LogCacheKey(batchID)

	if b, err := s.cache.Get(ctx, key); err == nil {
		var cached model.ProcessingLog
		if json.Unmarshal(b, &cached) == nil {
			return &cached, nil
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.log.WithError(err).Warn("cache read failed")
	}

	entry, err := s.logs.GetByBatchID(ctx, s.db, batchID)
	if err != nil {
		return nil, err
	}

	if entry.Status.Terminal() {
		if b, err := json.Marshal(entry); err == nil {
			if err := s.cache.Set(ctx, key, b, s.ttl); err != nil {
				s.log.WithError(err).Warn("cache write failed")
			}
		}
	}
	return entry, nil
}

// Delete removes every log of a batch.
func (s *LogService) Delete(ctx context.Context, batchID string) error {
	n, err := s.logs.DeleteByBatchID(ctx, s.db, batchID)
	if err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, LogCacheKey(batchID)); err != nil {
		s.log.WithError(err).Warn("failed to invalidate cached status")
	}
	s.log.WithFields(logrus.Fields{"batch_id": batchID, "deleted": n}).Info("processing log deleted")
	return nil
}

// Stats summarizes logs and stored records.
func (s *LogService) Stats(ctx context.Context) (*model.LogStats, error) {
	stats, err := s.logs.Stats(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if s.records != nil {
		total, current, err := s.records.Counts(ctx, s.db)
		if err != nil {
			return nil, err
		}
		stats.Records = total
		stats.CurrentRecord = current
	}
	return stats, nil
}
