package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/ChrisHK/label-printer/internal/cache"
	"github.com/ChrisHK/label-printer/internal/checksum"
	"github.com/ChrisHK/label-printer/internal/lock"
	"github.com/ChrisHK/label-printer/internal/logging"
	"github.com/ChrisHK/label-printer/internal/model"
	"github.com/ChrisHK/label-printer/internal/normalize"
	"github.com/ChrisHK/label-printer/internal/repository"
	"github.com/ChrisHK/label-printer/pkg/uid"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// IngestConfig holds configuration for the batch ingestor.
type IngestConfig struct {
	// Workers bounds concurrent item normalization.
	// Default: number of CPUs
	Workers int

	// MaxItems is the largest accepted batch.
	// Default: 10000
	MaxItems int

	// VerifyChecksum rejects batches whose metadata checksum does not match.
	// When false a mismatch is only logged.
	VerifyChecksum bool

	// DefaultSource is used when a request names no source.
	// Default: "api"
	DefaultSource string

	// FailureTimeout bounds the attempt to mark an aborted batch as failed.
	// Default: 10 seconds
	FailureTimeout time.Duration
}

// BatchIngestor processes one batch per call inside one transaction.
type BatchIngestor struct {
	db        repository.DB
	versioner repository.RecordVersioner
	logs      repository.LogStore
	locker    lock.Locker
	cache     cache.Cache
	config    IngestConfig

	now   func() time.Time
	newID func() string
	log   *logrus.Entry
}

// NewBatchIngestor creates a new batch ingestor.
func NewBatchIngestor(
	db repository.DB,
	versioner repository.RecordVersioner,
	logs repository.LogStore,
	locker lock.Locker,
	c cache.Cache,
	config IngestConfig,
) *BatchIngestor {
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.MaxItems <= 0 {
		config.MaxItems = 10000
	}
	if config.DefaultSource == "" {
		config.DefaultSource = "api"
	}
	if config.FailureTimeout <= 0 {
		config.FailureTimeout = 10 * time.Second
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	if c == nil {
		c = cache.Nop{}
	}

	return &BatchIngestor{
		db:        db,
		versioner: versioner,
		logs:      logs,
		locker:    locker,
		cache:     c,
		config:    config,
		now:       time.Now,
		newID:     uid.New,
		log:       logging.Component("BatchIngestor"),
	}
}

// prepared is one normalized item, or the reason it was rejected.
type prepared struct {
	rec *model.SystemRecord
	err *model.ItemProcessingError
}

// Ingest validates, normalizes and stores a batch. Item failures are reported
// in the result; only a ValidationError or TransactionError fails the call.
func (b *BatchIngestor) Ingest(ctx context.Context, req model.IngestRequest) (*model.BatchResult, error) {
	if len(req.Items) == 0 {
		return nil, model.NewValidationError("items must be a non-empty array")
	}
	if len(req.Items) > b.config.MaxItems {
		return nil, model.NewValidationError("batch has %d items, the limit is %d", len(req.Items), b.config.MaxItems)
	}

	batchID := req.BatchID
	if batchID == "" {
		batchID = b.newID()
	}
	source := req.Source
	if source == "" {
		source = b.config.DefaultSource
	}
	log := b.log.WithFields(logrus.Fields{"batch_id": batchID, "source": source, "items": len(req.Items)})

	if err := b.checkMetadata(req, log); err != nil {
		return nil, err
	}

	startedAt := b.now().UTC()
	items := b.prepare(ctx, req.Items, source, startedAt)
	failure := repository.Failure{BatchID: batchID, Source: source, TotalItems: len(req.Items)}

	release, err := b.locker.Acquire(ctx, serialsOf(items))
	if err != nil {
		return nil, b.abort(ctx, failure, fmt.Errorf("failed to lock serial numbers: %w", err), log)
	}
	defer release()

	result := &model.BatchResult{BatchID: batchID, TotalItems: len(req.Items)}
	err = b.db.WithTx(ctx, func(tx *repository.Tx) error {
		entry := &model.ProcessingLog{
			BatchID:    batchID,
			Source:     source,
			Status:     model.StatusProcessing,
			TotalItems: len(req.Items),
			StartedAt:  startedAt,
		}
		if err := b.logs.Create(ctx, tx, entry); err != nil {
			return err
		}
		failure.ID = entry.ID

		if err := b.apply(ctx, tx, items, result); err != nil {
			return err
		}

		result.Status = model.StatusCompleted
		if result.ErrorCount > 0 {
			result.Status = model.StatusCompletedWithErrors
		}
		return b.logs.Finalize(ctx, tx, entry.ID, repository.Completion{
			Status:         result.Status,
			ProcessedCount: result.ProcessedCount,
			ErrorCount:     result.ErrorCount,
			Errors:         result.Errors,
			CompletedAt:    b.now().UTC(),
		})
	})
	if err != nil {
		return nil, b.abort(ctx, failure, err, log)
	}

	if err := b.cache.Delete(ctx, LogCacheKey(batchID)); err != nil {
		log.WithError(err).Warn("failed to invalidate cached status")
	}

	log.WithFields(logrus.Fields{
		"status":    result.Status,
		"processed": result.ProcessedCount,
		"errors":    result.ErrorCount,
	}).Info("batch processed")
	return result, nil
}

// checkMetadata decodes the optional metadata and verifies its checksum.
func (b *BatchIngestor) checkMetadata(req model.IngestRequest, log *logrus.Entry) error {
	if len(req.Metadata) == 0 {
		return nil
	}

	var meta model.BatchMetadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &meta,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(req.Metadata); err != nil {
		return model.NewValidationError("invalid metadata: %v", err)
	}

	if meta.TotalItems > 0 && meta.TotalItems != len(req.Items) {
		log.WithField("declared", meta.TotalItems).Warn("metadata total_items does not match item count")
	}
	if meta.Checksum == "" || checksum.Verify(req.Items, meta.Checksum) {
		return nil
	}
	if b.config.VerifyChecksum {
		return model.NewValidationError("checksum mismatch")
	}
	log.WithField("checksum", meta.Checksum).Warn("checksum mismatch")
	return nil
}

// prepare normalizes every item concurrently. Results keep input order.
func (b *BatchIngestor) prepare(ctx context.Context, raw []model.RawItem, source string, at time.Time) []prepared {
	out := make([]prepared, len(raw))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(b.config.Workers)
	for i := range raw {
		g.Go(func() error {
			rec, err := normalize.Item(raw[i], source, at)
			if err != nil {
				var ipe *model.ItemProcessingError
				if !errors.As(err, &ipe) {
					ipe = &model.ItemProcessingError{Message: err.Error()}
				}
				out[i] = prepared{err: ipe}
				return nil
			}
			out[i] = prepared{rec: rec}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// apply writes the prepared items in input order, each in its own savepoint.
// It returns an error only when the transaction itself can no longer be used.
func (b *BatchIngestor) apply(ctx context.Context, tx *repository.Tx, items []prepared, result *model.BatchResult) error {
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		if item.err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, model.ItemError{SerialNumber: item.err.SerialNumber, Error: item.err.Message})
			continue
		}

		err := tx.Savepoint(ctx, fmt.Sprintf("item_%d", i), func() error {
			return b.versioner.Apply(ctx, tx, item.rec)
		})
		switch {
		case err == nil:
			result.ProcessedCount++
		case errors.Is(err, repository.ErrTxBroken) || ctx.Err() != nil:
			return err
		default:
			result.ErrorCount++
			result.Errors = append(result.Errors, model.ItemError{SerialNumber: item.rec.SerialNumber, Error: err.Error()})
		}
	}
	return nil
}

// abort records the batch as failed in a fresh transaction and returns the
// TransactionError for the caller. Failing to record is only logged.
func (b *BatchIngestor) abort(ctx context.Context, f repository.Failure, cause error, log *logrus.Entry) error {
	log.WithError(cause).Error("batch aborted")

	f.Message = cause.Error()
	f.At = b.now().UTC()

	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.config.FailureTimeout)
	defer cancel()

	err := b.db.WithTx(markCtx, func(tx *repository.Tx) error {
		_, err := b.logs.MarkFailed(markCtx, tx, f)
		return err
	})
	if err != nil {
		log.WithError(err).Error("failed to mark batch as failed")
	} else if cerr := b.cache.Delete(markCtx, LogCacheKey(f.BatchID)); cerr != nil {
		log.WithError(cerr).Warn("failed to invalidate cached status")
	}

	return &model.TransactionError{BatchID: f.BatchID, Err: cause}
}

func serialsOf(items []prepared) []string {
	serials := make([]string, 0, len(items))
	for _, it := range items {
		if it.rec != nil {
			serials = append(serials, it.rec.SerialNumber)
		}
	}
	return serials
}
