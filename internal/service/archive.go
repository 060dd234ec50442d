package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ChrisHK/label-printer/internal/cache"
	"github.com/ChrisHK/label-printer/internal/logging"
	"github.com/ChrisHK/label-printer/internal/repository"

	"github.com/sirupsen/logrus"
)

// DefaultRetentionDays is the age at which completed logs are archived.
const DefaultRetentionDays = 30

// ArchiveResult reports one archive run.
type ArchiveResult struct {
	Cleared int64     `json:"cleared"`
	Cutoff  time.Time `json:"cutoff"`
}

// LogArchiver moves aged processing logs to the archive table.
type LogArchiver struct {
	db            repository.DB
	archive       repository.ArchiveStore
	cache         cache.Cache
	retentionDays int
	now           func() time.Time
	log           *logrus.Entry
}

// NewLogArchiver creates an archiver. retentionDays <= 0 uses DefaultRetentionDays.
func NewLogArchiver(db repository.DB, archive repository.ArchiveStore, c cache.Cache, retentionDays int) *LogArchiver {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	if c == nil {
		c = cache.Nop{}
	}
	return &LogArchiver{
		db:            db,
		archive:       archive,
		cache:         c,
		retentionDays: retentionDays,
		now:           time.Now,
		log:           logging.Component("LogArchiver"),
	}
}

// Archive copies logs completed more than retentionDays ago into the archive
// and deletes them from the live table, all in one transaction. A
// non-positive retentionDays uses the archiver's configured value.
func (a *LogArchiver) Archive(ctx context.Context, retentionDays int) (*ArchiveResult, error) {
	if retentionDays <= 0 {
		retentionDays = a.retentionDays
	}
	now := a.now().UTC()
	result := &ArchiveResult{Cutoff: now.AddDate(0, 0, -retentionDays)}

	var batchIDs []string
	err := a.db.WithTx(ctx, func(tx *repository.Tx) error {
		count, err := a.archive.CountArchivable(ctx, tx, result.Cutoff)
		if err != nil || count == 0 {
			return err
		}

		if batchIDs, err = a.archive.ArchivableBatchIDs(ctx, tx, result.Cutoff); err != nil {
			return err
		}

		copied, err := a.archive.CopyToArchive(ctx, tx, result.Cutoff, now)
		if err != nil {
			return err
		}
		if copied != count {
			return fmt.Errorf("archived %d logs, expected %d", copied, count)
		}

		deleted, err := a.archive.DeleteArchived(ctx, tx, result.Cutoff)
		if err != nil {
			return err
		}
		if deleted != copied {
			return fmt.Errorf("deleted %d logs, archived %d", deleted, copied)
		}

		result.Cleared = deleted
		return nil
	})
	if err != nil {
		a.log.WithError(err).Error("archive failed")
		return nil, err
	}

	if len(batchIDs) > 0 {
		keys := make([]string, len(batchIDs))
		for i, id := range batchIDs {
			keys[i] = LogCacheKey(id)
		}
		if err := a.cache.Delete(ctx, keys...); err != nil {
			a.log.WithError(err).Warn("failed to invalidate cached statuses")
		}
	}

	a.log.WithFields(logrus.Fields{
		"cleared":        result.Cleared,
		"retention_days": retentionDays,
	}).Info("archive finished")
	return result, nil
}
