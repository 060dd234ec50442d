package service

import (
	"context"
	"time"

	"github.com/ChrisHK/label-printer/internal/logging"
	"github.com/ChrisHK/label-printer/internal/repository"

	"github.com/sirupsen/logrus"
)

// StaleMessage is recorded on logs failed by the reconciliation sweep.
const StaleMessage = "processing lease expired"

// Reconciler fails processing logs whose batch can no longer be running.
type Reconciler struct {
	db    repository.DB
	logs  repository.LogStore
	lease time.Duration
	now   func() time.Time
	log   *logrus.Entry
}

// NewReconciler creates a reconciler. Logs processing for longer than lease are failed.
func NewReconciler(db repository.DB, logs repository.LogStore, lease time.Duration) *Reconciler {
	if lease <= 0 {
		lease = 30 * time.Minute
	}
	return &Reconciler{
		db:    db,
		logs:  logs,
		lease: lease,
		now:   time.Now,
		log:   logging.Component("Reconciler"),
	}
}

// Sweep marks stale processing logs failed and returns how many it changed.
// A non-positive lease uses the configured one.
func (r *Reconciler) Sweep(ctx context.Context, lease time.Duration) (int64, error) {
	if lease <= 0 {
		lease = r.lease
	}
	now := r.now().UTC()

	var n int64
	err := r.db.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		n, err = r.logs.MarkStale(ctx, tx, now.Add(-lease), StaleMessage, now)
		return err
	})
	if err != nil {
		r.log.WithError(err).Error("reconciliation sweep failed")
		return 0, err
	}

	if n > 0 {
		r.log.WithFields(logrus.Fields{"failed": n, "lease": lease}).Warn("stale processing logs marked failed")
	}
	return n, nil
}
