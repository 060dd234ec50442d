package service

import (
	"context"
	"testing"
	"time"

	"github.com/ChrisHK/label-printer/internal/cache"
	"github.com/ChrisHK/label-printer/internal/lock"
	"github.com/ChrisHK/label-printer/internal/model"
	"github.com/ChrisHK/label-printer/internal/repository"
)

type testEnv struct {
	store    *repository.Store
	records  *repository.RecordRepository
	logs     *repository.LogRepository
	archive  *repository.ArchiveRepository
	cache    *cache.Memory
	ingestor *BatchIngestor
	logSvc   *LogService
}

func newTestEnv(t *testing.T, cfg IngestConfig) *testEnv {
	t.Helper()
	store, err := repository.Open(context.Background(), repository.Options{Dialect: repository.SQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	c := cache.NewMemory(time.Hour)
	t.Cleanup(func() { c.Close() })

	env := &testEnv{
		store:   store,
		records: repository.NewRecordRepository(),
		logs:    repository.NewLogRepository(),
		archive: repository.NewArchiveRepository(),
		cache:   c,
	}
	env.ingestor = NewBatchIngestor(store, env.records, env.logs, lock.NewLocal(), c, cfg)
	env.logSvc = NewLogService(store, env.logs, env.records, c, time.Minute)
	return env
}

func raw(serials ...string) []model.RawItem {
	items := make([]model.RawItem, len(serials))
	for i, s := range serials {
		items[i] = model.RawItem{"serialnumber": s, "cpu": "cpu-" + s}
	}
	return items
}

func (e *testEnv) currentRows(t *testing.T, serial string) int {
	t.Helper()
	history, err := e.records.History(context.Background(), e.store, serial)
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, h := range history {
		if h.IsCurrent {
			n++
		}
	}
	return n
}

func (e *testEnv) totalLogs(t *testing.T) int {
	t.Helper()
	page, err := e.logs.List(context.Background(), e.store, repository.ListQuery{})
	if err != nil {
		t.Fatal(err)
	}
	return page.Total
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
