package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ChrisHK/label-printer/internal/model"
	"github.com/ChrisHK/label-printer/internal/repository"

	"github.com/xuri/excelize/v2"
)

func TestLogServiceGetCachesTerminalStatus(t *testing.T) {
	env := newTestEnv(t, IngestConfig{})
	ctx := context.Background()

	if _, err := env.ingestor.Ingest(ctx, model.IngestRequest{BatchID: "B1", Items: raw("S1")}); err != nil {
		t.Fatal(err)
	}

	got, err := env.logSvc.Get(ctx, "B1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != model.StatusCompleted {
		t.Errorf("Status = %q", got.Status)
	}
	if env.cache.Len() != 1 {
		t.Fatalf("cache entries = %d, want 1", env.cache.Len())
	}

	// Re-running the batch must not serve the stale cached status.
	items := []model.RawItem{{"serialnumber": "S1"}, {"cpu": "no serial"}}
	if _, err := env.ingestor.Ingest(ctx, model.IngestRequest{BatchID: "B1", Items: items}); err != nil {
		t.Fatal(err)
	}
	if env.cache.Len() != 0 {
		t.Errorf("ingest did not invalidate the cached status")
	}
	got, err = env.logSvc.Get(ctx, "B1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusCompletedWithErrors {
		t.Errorf("Status = %q, want completed_with_errors", got.Status)
	}
}

func TestLogServiceGetDoesNotCacheProcessing(t *testing.T) {
	env := newTestEnv(t, IngestConfig{})
	ctx := context.Background()

	err := env.store.WithTx(ctx, func(tx *repository.Tx) error {
		return env.logs.Create(ctx, tx, &model.ProcessingLog{
			BatchID: "running", Source: "api", Status: model.StatusProcessing, TotalItems: 1, StartedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := env.logSvc.Get(ctx, "running"); err != nil {
		t.Fatal(err)
	}
	if env.cache.Len() != 0 {
		t.Errorf("processing status was cached")
	}
}

func TestLogServiceDelete(t *testing.T) {
	env := newTestEnv(t, IngestConfig{})
	ctx := context.Background()

	if _, err := env.ingestor.Ingest(ctx, model.IngestRequest{BatchID: "gone", Items: raw("S1")}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.logSvc.Get(ctx, "gone"); err != nil {
		t.Fatal(err)
	}

	if err := env.logSvc.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := env.logSvc.Get(ctx, "gone"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := env.logSvc.Delete(ctx, "gone"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}

	// Records survive log deletion.
	if _, err := env.records.Current(ctx, env.store, "S1"); err != nil {
		t.Errorf("record removed with its log: %v", err)
	}
}

func TestLogServiceList(t *testing.T) {
	env := newTestEnv(t, IngestConfig{})
	ctx := context.Background()

	for _, id := range []string{"L1", "L2", "L3"} {
		if _, err := env.ingestor.Ingest(ctx, model.IngestRequest{BatchID: id, Items: raw("S-" + id)}); err != nil {
			t.Fatal(err)
		}
	}

	page, err := env.logSvc.List(ctx, repository.ListQuery{Page: 1, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 || page.TotalPages != 2 || len(page.Logs) != 2 {
		t.Errorf("page = total %d, pages %d, logs %d", page.Total, page.TotalPages, len(page.Logs))
	}

	page, err = env.logSvc.List(ctx, repository.ListQuery{Status: model.StatusFailed})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 0 || len(page.Logs) != 0 {
		t.Errorf("failed filter returned %d logs", page.Total)
	}

	if _, err := env.logSvc.List(ctx, repository.ListQuery{Status: "bogus"}); !model.IsValidation(err) {
		t.Errorf("List() with unknown status error = %v, want ValidationError", err)
	}
}

func TestLogServiceStats(t *testing.T) {
	env := newTestEnv(t, IngestConfig{})
	ctx := context.Background()

	if _, err := env.ingestor.Ingest(ctx, model.IngestRequest{BatchID: "a", Items: raw("S1", "S2")}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.ingestor.Ingest(ctx, model.IngestRequest{BatchID: "b", Items: raw("S1")}); err != nil {
		t.Fatal(err)
	}

	stats, err := env.logSvc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.ByStatus[model.StatusCompleted] != 2 {
		t.Errorf("completed = %d, want 2", stats.ByStatus[model.StatusCompleted])
	}
	if stats.Records != 3 || stats.CurrentRecord != 2 {
		t.Errorf("records = %d, current = %d; want 3, 2", stats.Records, stats.CurrentRecord)
	}
}

func TestLogServiceExport(t *testing.T) {
	env := newTestEnv(t, IngestConfig{})
	ctx := context.Background()

	for _, id := range []string{"E1", "E2", "E3"} {
		if _, err := env.ingestor.Ingest(ctx, model.IngestRequest{BatchID: id, Items: raw("S-" + id)}); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	n, err := env.logSvc.Export(ctx, &buf, "")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Export() rows = %d, want 3", n)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("sheet rows = %d, want 4", len(rows))
	}
	if rows[0][0] != "Batch ID" || rows[0][2] != "Status" {
		t.Errorf("header = %v", rows[0])
	}
	seen := map[string]bool{}
	for _, r := range rows[1:] {
		seen[r[0]] = true
		if r[2] != string(model.StatusCompleted) {
			t.Errorf("row %v status = %q", r, r[2])
		}
	}
	for _, id := range []string{"E1", "E2", "E3"} {
		if !seen[id] {
			t.Errorf("batch %s missing from export", id)
		}
	}

	if _, err := env.logSvc.Export(ctx, &bytes.Buffer{}, "bogus"); !model.IsValidation(err) {
		t.Errorf("Export() with unknown status error = %v", err)
	}
}
