package service

import (
	"context"

	"github.com/ChrisHK/label-printer/internal/model"
	"github.com/ChrisHK/label-printer/internal/repository"
)

// maxSyncSerials bounds one sync-status request.
const maxSyncSerials = 5000

// RecordService answers queries about stored system records.
type RecordService struct {
	db      repository.DB
	records repository.RecordStore
}

// NewRecordService creates a new record service.
func NewRecordService(db repository.DB, records repository.RecordStore) *RecordService {
	return &RecordService{db: db, records: records}
}

// SyncStatuses maps each known serial number to the sync state of its
// current record. Serial numbers with no record are omitted.
func (s *RecordService) SyncStatuses(ctx context.Context, serials []string) (map[string]model.SyncStatus, error) {
	if serials == nil {
		return nil, model.NewValidationError("serialnumbers must be an array")
	}
	if len(serials) > maxSyncSerials {
		return nil, model.NewValidationError("at most %d serial numbers per request", maxSyncSerials)
	}
	return s.records.SyncStatuses(ctx, s.db, serials)
}

// History returns every stored version of a serial number, newest first.
func (s *RecordService) History(ctx context.Context, serial string) ([]model.SystemRecord, error) {
	history, err := s.records.History(ctx, s.db, serial)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, model.ErrNotFound
	}
	return history, nil
}
