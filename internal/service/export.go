package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ChrisHK/label-printer/internal/model"
	"github.com/ChrisHK/label-printer/internal/repository"

	"github.com/xuri/excelize/v2"
)

const (
	exportSheet    = "Logs"
	exportPageSize = 500
)

var exportHeaders = []any{
	"Batch ID", "Source", "Status", "Total Items", "Processed", "Errors",
	"Error Message", "Started At", "Completed At",
}

// Export writes the logs matching status as an XLSX workbook and returns the row count.
func (s *LogService) Export(ctx context.Context, w io.Writer, status model.LogStatus) (int, error) {
	if status != "" && !status.Valid() {
		return 0, model.NewValidationError("unknown status %q", status)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return 0, err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeaders); err != nil {
		return 0, err
	}

	rows := 0
	for page := 1; ; page++ {
		p, err := s.logs.List(ctx, s.db, repository.ListQuery{Page: page, Limit: exportPageSize, Status: status})
		if err != nil {
			return 0, err
		}
		for _, l := range p.Logs {
			rows++
			completed := ""
			if l.CompletedAt != nil {
				completed = l.CompletedAt.UTC().Format(time.RFC3339)
			}
			values := []any{
				l.BatchID, l.Source, string(l.Status), l.TotalItems, l.ProcessedCount, l.ErrorCount,
				l.ErrorMessage, l.StartedAt.UTC().Format(time.RFC3339), completed,
			}
			if err := f.SetSheetRow(exportSheet, fmt.Sprintf("A%d", rows+1), &values); err != nil {
				return 0, err
			}
		}
		if page >= p.TotalPages {
			break
		}
	}

	if err := f.Write(w); err != nil {
		return 0, fmt.Errorf("failed to write workbook: %w", err)
	}
	return rows, nil
}
