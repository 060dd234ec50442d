package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ChrisHK/label-printer/internal/model"
	"github.com/ChrisHK/label-printer/internal/repository"
)

func TestArchiveMovesAgedLogs(t *testing.T) {
	env := newTestEnv(t, IngestConfig{})
	ctx := context.Background()
	now := time.Now().UTC()

	env.ingestor.now = fixedClock(now.AddDate(0, 0, -40))
	if _, err := env.ingestor.Ingest(ctx, model.IngestRequest{BatchID: "old", Items: raw("S1")}); err != nil {
		t.Fatal(err)
	}
	env.ingestor.now = fixedClock(now)
	if _, err := env.ingestor.Ingest(ctx, model.IngestRequest{BatchID: "new", Items: raw("S2")}); err != nil {
		t.Fatal(err)
	}

	original, err := env.logSvc.Get(ctx, "old")
	if err != nil {
		t.Fatal(err)
	}

	archiver := NewLogArchiver(env.store, env.archive, env.cache, 0)
	archiver.now = fixedClock(now)

	res, err := archiver.Archive(ctx, 30)
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if res.Cleared != 1 {
		t.Errorf("Cleared = %d, want 1", res.Cleared)
	}
	if !res.Cutoff.Equal(now.AddDate(0, 0, -30)) {
		t.Errorf("Cutoff = %v", res.Cutoff)
	}

	if _, err := env.logSvc.Get(ctx, "old"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Get(old) after archive error = %v, want ErrNotFound", err)
	}
	if _, err := env.logSvc.Get(ctx, "new"); err != nil {
		t.Errorf("Get(new) error = %v", err)
	}

	archived, err := env.archive.ListArchived(ctx, env.store, "old")
	if err != nil {
		t.Fatal(err)
	}
	if len(archived) != 1 {
		t.Fatalf("archived rows = %d, want 1", len(archived))
	}
	a := archived[0]
	if a.OriginalID != original.ID || a.Status != model.StatusCompleted || a.ProcessedCount != 1 {
		t.Errorf("archived = %+v, original id %d", a, original.ID)
	}

	res, err = archiver.Archive(ctx, 30)
	if err != nil {
		t.Fatal(err)
	}
	if res.Cleared != 0 {
		t.Errorf("second Archive() Cleared = %d, want 0", res.Cleared)
	}

	stats, err := env.logSvc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Archived != 1 {
		t.Errorf("Archived = %d, want 1", stats.Archived)
	}
}

func TestArchiveSkipsProcessingLogs(t *testing.T) {
	env := newTestEnv(t, IngestConfig{})
	ctx := context.Background()

	err := env.store.WithTx(ctx, func(tx *repository.Tx) error {
		return env.logs.Create(ctx, tx, &model.ProcessingLog{
			BatchID:    "stuck",
			Source:     "api",
			Status:     model.StatusProcessing,
			TotalItems: 1,
			StartedAt:  time.Now().UTC().AddDate(0, 0, -90),
		})
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := NewLogArchiver(env.store, env.archive, nil, 30).Archive(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Cleared != 0 {
		t.Errorf("Cleared = %d, want 0", res.Cleared)
	}
	if env.totalLogs(t) != 1 {
		t.Errorf("processing log was removed")
	}
}

// faultyArchive fails one step of the copy-then-delete sequence after the
// real statement has run.
type faultyArchive struct {
	*repository.ArchiveRepository
	failDelete bool
	shortCopy  bool
}

func (f *faultyArchive) CopyToArchive(ctx context.Context, q repository.Querier, cutoff, archivedAt time.Time) (int64, error) {
	n, err := f.ArchiveRepository.CopyToArchive(ctx, q, cutoff, archivedAt)
	if err != nil || !f.shortCopy {
		return n, err
	}
	return n - 1, nil
}

func (f *faultyArchive) DeleteArchived(ctx context.Context, q repository.Querier, cutoff time.Time) (int64, error) {
	n, err := f.ArchiveRepository.DeleteArchived(ctx, q, cutoff)
	if err != nil || !f.failDelete {
		return n, err
	}
	return 0, errors.New("delete failed")
}

func TestArchiveRollsBackOnFailure(t *testing.T) {
	tests := []struct {
		name  string
		store *faultyArchive
	}{
		{"delete fails after copy", &faultyArchive{ArchiveRepository: repository.NewArchiveRepository(), failDelete: true}},
		{"copy count mismatch", &faultyArchive{ArchiveRepository: repository.NewArchiveRepository(), shortCopy: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, IngestConfig{})
			ctx := context.Background()
			now := time.Now().UTC()

			env.ingestor.now = fixedClock(now.AddDate(0, 0, -40))
			if _, err := env.ingestor.Ingest(ctx, model.IngestRequest{BatchID: "old", Items: raw("S1")}); err != nil {
				t.Fatal(err)
			}

			archiver := NewLogArchiver(env.store, tt.store, env.cache, 30)
			archiver.now = fixedClock(now)

			if res, err := archiver.Archive(ctx, 30); err == nil {
				t.Fatalf("Archive() = %+v, want error", res)
			}

			if got := env.totalLogs(t); got != 1 {
				t.Errorf("live logs = %d, want 1", got)
			}
			if _, err := env.logSvc.Get(ctx, "old"); err != nil {
				t.Errorf("Get(old) error = %v", err)
			}
			archived, err := env.archive.ListArchived(ctx, env.store, "old")
			if err != nil {
				t.Fatal(err)
			}
			if len(archived) != 0 {
				t.Errorf("archived rows = %d, want 0", len(archived))
			}
		})
	}
}
