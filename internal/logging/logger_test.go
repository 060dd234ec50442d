package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestConfigureJSON(t *testing.T) {
	var buf bytes.Buffer
	l := configure(logrus.New(), "warn", "json", &buf)

	l.Info("dropped")
	l.WithField("component", "Test").Warn("kept")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("output is not a single JSON line: %q", buf.String())
	}
	if entry["msg"] != "kept" || entry["component"] != "Test" {
		t.Errorf("entry = %v", entry)
	}
}

func TestConfigureBadLevelDefaultsToInfo(t *testing.T) {
	l := configure(logrus.New(), "loud", "text", &bytes.Buffer{})
	if l.GetLevel() != logrus.InfoLevel {
		t.Errorf("level = %v, want info", l.GetLevel())
	}
	if _, ok := l.Formatter.(*logrus.TextFormatter); !ok {
		t.Errorf("formatter = %T, want *logrus.TextFormatter", l.Formatter)
	}
}

func TestFromContext(t *testing.T) {
	entry := logrus.NewEntry(logrus.New()).WithField("request_id", "abc")
	ctx := WithContext(context.Background(), entry)

	if got := FromContext(ctx); got.Data["request_id"] != "abc" {
		t.Errorf("FromContext() data = %v", got.Data)
	}
	if got := FromContext(context.Background()); got == nil {
		t.Errorf("FromContext() on empty context returned nil")
	}
}
