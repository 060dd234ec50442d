package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ChrisHK/label-printer/pkg/client"
)

// Callers outside the module only see the exported client types.
func TestExportedTypesRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/data-process/inventory":
			var req client.IngestRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Error(err)
				return
			}
			json.NewEncoder(w).Encode(client.IngestResponse{
				Success: true,
				BatchID: req.BatchID,
				Details: client.BatchResult{
					BatchID:        req.BatchID,
					TotalItems:     len(req.Items),
					ProcessedCount: 1,
					ErrorCount:     1,
					Status:         client.StatusCompletedWithErrors,
					Errors:         []client.ItemError{{Error: "Missing serial number"}},
				},
			})
		case "/api/v1/data-process/status/B1":
			w.Write([]byte(`{"success":true,"status":{"id":7,"batch_id":"B1","status":"completed_with_errors","total_items":2,"started_at":"2024-01-02T03:04:05Z","completed_at":null}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	ctx := context.Background()

	res, err := c.Ingest(ctx, client.IngestRequest{BatchID: "B1", Items: []client.Item{{"serialnumber": "A1"}, {"cpu": "x"}}})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.Details.Status != client.StatusCompletedWithErrors || len(res.Details.Errors) != 1 || res.Details.TotalItems != 2 {
		t.Errorf("Ingest() = %+v", res)
	}

	log, err := c.Status(ctx, "B1")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if log.ID != 7 || log.Status != client.StatusCompletedWithErrors || log.CompletedAt != nil {
		t.Errorf("Status() = %+v", log)
	}
}

func TestChecksumMatchesServerDigest(t *testing.T) {
	got, err := client.Checksum([]client.Item{{"serialnumber": "B1"}, {"serialnumber": "A1"}})
	if err != nil {
		t.Fatal(err)
	}
	if want := "28e8c4815e8e78e4575d9a2584fffceabdeafe38640fa4a3dfa69ded1a55a2e7"; got != want {
		t.Errorf("Checksum() = %s, want %s", got, want)
	}
}
