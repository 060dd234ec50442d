package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommands(t *testing.T) {
	root := NewRootCommand()
	want := map[string]bool{"serve": false, "archive": false, "reconcile": false, "checksum": false, "push": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestChecksumCommand(t *testing.T) {
	const digest = "28e8c4815e8e78e4575d9a2584fffceabdeafe38640fa4a3dfa69ded1a55a2e7"
	path := filepath.Join(t.TempDir(), "items.json")
	if err := os.WriteFile(path, []byte(`[{"serialnumber":"B1"},{"serialnumber":"A1"}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "", "checksum", path)
	if err != nil {
		t.Fatalf("checksum error = %v", err)
	}
	if strings.TrimSpace(out) != digest {
		t.Errorf("output = %q", out)
	}

	out, err = run(t, `[{"serialnumber":"A1"},{"serialnumber":"B1"}]`, "checksum", "--verify", digest)
	if err != nil || strings.TrimSpace(out) != digest {
		t.Errorf("stdin checksum = %q, %v", out, err)
	}

	if _, err := run(t, `[{"serialnumber":"A1"}]`, "checksum", "--verify", digest); err == nil {
		t.Errorf("mismatch should fail")
	}
	if _, err := run(t, `{"serialnumber":"A1"}`, "checksum"); err == nil {
		t.Errorf("non-array input should fail")
	}
}

func TestArchiveAndReconcileCommands(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("STORE_PATH", filepath.Join(t.TempDir(), "db", "inventory.db"))
	t.Setenv("CACHE_TYPE", "none")

	out, err := run(t, "", "archive", "--days", "7")
	if err != nil {
		t.Fatalf("archive error = %v", err)
	}
	if !strings.Contains(out, "No logs to archive") {
		t.Errorf("archive output = %q", out)
	}

	out, err = run(t, "", "reconcile")
	if err != nil {
		t.Fatalf("reconcile error = %v", err)
	}
	if !strings.Contains(out, "0 stale logs") {
		t.Errorf("reconcile output = %q", out)
	}
}

func TestPushCommand(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		w.Write([]byte(`{"success":true,"message":"Data processing completed","batchId":"B7","details":{"batch_id":"B7","status":"completed"}}`))
	}))
	defer srv.Close()

	out, err := run(t, `[{"serialnumber":"A1"}]`, "push", "--server", srv.URL, "--batch-id", "B7", "--source", "cli")
	if err != nil {
		t.Fatalf("push error = %v", err)
	}
	if !strings.Contains(out, `"batchId": "B7"`) {
		t.Errorf("output = %q", out)
	}
	if got["batch_id"] != "B7" || got["source"] != "cli" {
		t.Errorf("request = %v", got)
	}
	meta, _ := got["metadata"].(map[string]any)
	if meta["checksum"] == nil {
		t.Errorf("checksum not added: %v", got)
	}
}

func TestParseBatch(t *testing.T) {
	req, err := parseBatch([]byte(` {"batch_id":"x","items":[{"serialnumber":"A","ram_gb":8}],"source":"s"}`))
	if err != nil {
		t.Fatal(err)
	}
	if req.BatchID != "x" || len(req.Items) != 1 || req.Source != "s" {
		t.Errorf("req = %+v", req)
	}
	if _, ok := req.Items[0]["ram_gb"].(json.Number); !ok {
		t.Errorf("numbers should stay json.Number, got %T", req.Items[0]["ram_gb"])
	}

	if _, err := parseBatch([]byte(`nope`)); err == nil {
		t.Errorf("invalid input accepted")
	}
}
