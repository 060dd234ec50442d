package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ChrisHK/label-printer/internal/model"
)

func TestRecordServiceSyncStatuses(t *testing.T) {
	env := newTestEnv(t, IngestConfig{})
	ctx := context.Background()
	svc := NewRecordService(env.store, env.records)

	items := []model.RawItem{
		{"serialnumber": "S1", "sync_status": "synced", "sync_version": "2.0"},
		{"serialnumber": "S2"},
	}
	if _, err := env.ingestor.Ingest(ctx, model.IngestRequest{Items: items}); err != nil {
		t.Fatal(err)
	}

	got, err := svc.SyncStatuses(ctx, []string{"S1", "S2", "unknown"})
	if err != nil {
		t.Fatalf("SyncStatuses() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got["S1"].SyncStatus != "synced" || got["S1"].SyncVersion != "2.0" {
		t.Errorf("S1 = %+v", got["S1"])
	}
	if got["S2"].SyncStatus != "pending" || got["S2"].SyncVersion != "1.0" {
		t.Errorf("S2 = %+v", got["S2"])
	}

	empty, err := svc.SyncStatuses(ctx, []string{})
	if err != nil || len(empty) != 0 {
		t.Errorf("SyncStatuses(empty) = %v, %v", empty, err)
	}

	if _, err := svc.SyncStatuses(ctx, nil); !model.IsValidation(err) {
		t.Errorf("SyncStatuses(nil) error = %v, want ValidationError", err)
	}
}

func TestRecordServiceHistory(t *testing.T) {
	env := newTestEnv(t, IngestConfig{})
	ctx := context.Background()
	svc := NewRecordService(env.store, env.records)

	for _, id := range []string{"h1", "h2"} {
		if _, err := env.ingestor.Ingest(ctx, model.IngestRequest{BatchID: id, Items: raw("S1")}); err != nil {
			t.Fatal(err)
		}
	}

	history, err := svc.History(ctx, "S1")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || !history[0].IsCurrent || history[1].IsCurrent {
		t.Errorf("history = %+v", history)
	}

	if _, err := svc.History(ctx, "nope"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("History(nope) error = %v, want ErrNotFound", err)
	}
}
