package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}

	if err := Init(WithFormat("yaml")); err == nil {
		t.Fatal("expected an error for an unknown format")
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithFormat("json"), WithWriter(&buf), WithSource(false)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	_ = SetLevelString("info")

	Named("engine").Info(context.Background(), "pair scored",
		String("event_id", "E1"),
		Int("picks", 3),
		Bool("exact", true),
		Error(errors.New("boom")),
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not json: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "pair scored" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
	if entry["component"] != "engine" {
		t.Errorf("expected component=engine, got %v", entry["component"])
	}
	if entry["event_id"] != "E1" {
		t.Errorf("expected event_id=E1, got %v", entry["event_id"])
	}
	if entry["error"] != "boom" {
		t.Errorf("expected error=boom, got %v", entry["error"])
	}
	if _, ok := entry["source"]; ok {
		t.Error("source attribute should be disabled")
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	if err := SetLevelString("warn"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = SetLevelString("info") }()

	ctx := context.Background()
	Get().Info(ctx, "hidden")
	Get().With(String("run_id", "r1")).Warn(ctx, "visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "visible") || !strings.Contains(out, "run_id=r1") {
		t.Errorf("warn message missing or incomplete: %q", out)
	}
	if !strings.Contains(out, "source=") {
		t.Error("text output should carry the caller by default")
	}

	if err := SetLevelString("loud"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}
