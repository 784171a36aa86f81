package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// swap replaces the package logger with an observed one and returns the logs.
func swap(t *testing.T, lvl zapcore.Level) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(lvl)
	mu.Lock()
	orig := log
	log = zap.New(core).Sugar()
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		log = orig
		mu.Unlock()
	})
	return logs
}

func TestLevelFiltering(t *testing.T) {
	logs := swap(t, zapcore.WarnLevel)

	Debugf("debug-msg")
	Infof("info-msg %d", 1)
	Warnf("warn-msg %d", 2)
	Errorf("error-msg")
	Warn("plain-warn")

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries at warn level, got %d", len(entries))
	}
	if entries[0].Message != "warn-msg 2" {
		t.Fatalf("unexpected first message %q", entries[0].Message)
	}
	if entries[1].Level != zapcore.ErrorLevel {
		t.Fatalf("expected error level, got %v", entries[1].Level)
	}
	if entries[2].Message != "plain-warn" {
		t.Fatalf("unexpected last message %q", entries[2].Message)
	}
}

func TestInitUnknownLevelDefaultsToInfo(t *testing.T) {
	Init("nonsense")
	// must not panic and must keep a usable logger
	Infof("still logging")
	Sync()
}
