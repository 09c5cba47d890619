package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// TestNewLogger tests logger construction with temp directories
func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		baseDir string
		runID   string
		wantErr bool
	}{
		{
			name:    "valid directory and run ID",
			baseDir: t.TempDir(),
			runID:   "run-01hx",
		},
		{
			name:    "creates directories if not exist",
			baseDir: filepath.Join(t.TempDir(), "nested", "path"),
			runID:   "run-02",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.baseDir, tt.runID)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer logger.Close()

			if logger.RunID() != tt.runID {
				t.Errorf("RunID() = %v, want %v", logger.RunID(), tt.runID)
			}
			if logger.out.minLevel != LevelInfo {
				t.Errorf("minLevel = %v, want %v", logger.out.minLevel, LevelInfo)
			}

			for _, path := range []string{
				logger.RunLogPath(),
				filepath.Join(tt.baseDir, "errors.jsonl"),
				filepath.Join(tt.baseDir, "network.jsonl"),
			} {
				if _, err := os.Stat(path); os.IsNotExist(err) {
					t.Errorf("%s not created", path)
				}
			}
		})
	}
}

// TestNewLoggerInvalidDirectory tests error handling for invalid directories
func TestNewLoggerInvalidDirectory(t *testing.T) {
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "file-not-dir")
	if err := os.WriteFile(filePath, []byte("test"), 0644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if _, err := NewLogger(filePath, "run"); err == nil {
		t.Fatal("expected error when baseDir is a file, got nil")
	}
}

// TestLogEvent tests the Log method
func TestLogEvent(t *testing.T) {
	baseDir := t.TempDir()
	logger, err := NewLogger(baseDir, "run-1")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	before := time.Now()
	event := Event{
		Level:     LevelInfo,
		Category:  CategoryStep,
		EventType: "step_ok",
		Message:   "clicked text=Portfolio",
		Details:   map[string]any{"index": 3},
	}
	if err := logger.Log(event); err != nil {
		t.Fatalf("Log() failed: %v", err)
	}

	events, err := ReadRecentEvents(logger.RunLogPath(), 1)
	if err != nil {
		t.Fatalf("ReadRecentEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	logged := events[0]
	if logged.Category != CategoryStep || logged.EventType != "step_ok" {
		t.Errorf("unexpected event %+v", logged)
	}
	if logged.RunID != "run-1" {
		t.Errorf("RunID = %v, want run-1", logged.RunID)
	}
	if logged.Timestamp.Before(before) {
		t.Errorf("Timestamp %v should be set automatically", logged.Timestamp)
	}
}

// TestWithScenario tests that scoped loggers stamp scenario and session
func TestWithScenario(t *testing.T) {
	baseDir := t.TempDir()
	logger, err := NewLogger(baseDir, "run-1")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	child := logger.WithScenario("gallery", "sess-9")
	if err := child.Info(CategoryScenario, "scenario_started", "", nil); err != nil {
		t.Fatalf("Info() failed: %v", err)
	}
	if err := child.Close(); err != nil {
		t.Fatalf("child Close() failed: %v", err)
	}
	if err := logger.Info(CategoryRun, "still_open", "", nil); err != nil {
		t.Fatalf("parent should still log after child Close: %v", err)
	}

	events, _ := ReadRecentEvents(logger.RunLogPath(), 10)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Scenario != "gallery" || events[0].SessionID != "sess-9" {
		t.Errorf("child event = %+v", events[0])
	}
	if events[1].Scenario != "" {
		t.Errorf("parent event should not carry a scenario, got %q", events[1].Scenario)
	}
}

// TestLogErrorEvent tests error events are written to both run and error logs
func TestLogErrorEvent(t *testing.T) {
	baseDir := t.TempDir()
	logger, err := NewLogger(baseDir, "run-1")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	if err := logger.Error(CategoryStep, "hard_fail", "navigation timed out", nil); err != nil {
		t.Fatalf("Error() failed: %v", err)
	}

	errorEvents, err := ReadRecentEvents(filepath.Join(baseDir, "errors.jsonl"), 1)
	if err != nil {
		t.Fatalf("ReadRecentEvents (error) failed: %v", err)
	}
	if len(errorEvents) != 1 || errorEvents[0].Message != "navigation timed out" {
		t.Errorf("error log = %+v", errorEvents)
	}
}

// TestRequestEvent tests network events are copied to network.jsonl
func TestRequestEvent(t *testing.T) {
	baseDir := t.TempDir()
	logger, err := NewLogger(baseDir, "run-1")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	if err := logger.Request("POST", "http://localhost:5000/api/auth/otp", true, 200); err != nil {
		t.Fatalf("Request() failed: %v", err)
	}
	if err := logger.Request("GET", "http://localhost:8081/logo.png", false, 0); err != nil {
		t.Fatalf("Request() failed: %v", err)
	}

	events, err := ReadRecentEvents(filepath.Join(baseDir, "network.jsonl"), 10)
	if err != nil {
		t.Fatalf("ReadRecentEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 network events, got %d", len(events))
	}
	if events[0].Message != ">> POST http://localhost:5000/api/auth/otp" {
		t.Errorf("Message = %q", events[0].Message)
	}
	if events[0].Details["mocked"] != true {
		t.Errorf("first request should be marked mocked: %+v", events[0].Details)
	}
	if _, ok := events[1].Details["status"]; ok {
		t.Error("pass-through request should not carry a status")
	}
}

// TestShouldLog tests level filtering
func TestShouldLog(t *testing.T) {
	tests := []struct {
		minLevel  Level
		logLevel  Level
		shouldLog bool
	}{
		{LevelDebug, LevelDebug, true},
		{LevelInfo, LevelDebug, false},
		{LevelInfo, LevelWarn, true},
		{LevelWarn, LevelInfo, false},
		{LevelError, LevelWarn, false},
		{LevelError, LevelError, true},
	}

	for _, tt := range tests {
		if got := shouldLog(tt.minLevel, tt.logLevel); got != tt.shouldLog {
			t.Errorf("shouldLog(%v, %v) = %v, want %v", tt.minLevel, tt.logLevel, got, tt.shouldLog)
		}
	}
}

// TestSetMinLevel tests level filtering end to end
func TestSetMinLevel(t *testing.T) {
	logger, err := NewLogger(t.TempDir(), "run-1")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	logger.Debug(CategoryPage, "console", "filtered", nil)
	logger.SetMinLevel(LevelDebug)
	logger.Debug(CategoryPage, "console", "kept", nil)

	events, _ := ReadRecentEvents(logger.RunLogPath(), 10)
	if len(events) != 1 || events[0].Message != "kept" {
		t.Errorf("events = %+v", events)
	}
}

// TestConsoleMirror tests the human-readable mirror
func TestConsoleMirror(t *testing.T) {
	logger, err := NewLogger(t.TempDir(), "run-1")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	var buf bytes.Buffer
	logger.SetConsole(&buf)
	logger.WithScenario("login", "").Warn(CategoryStep, "soft_fail", "text=Continue not visible", map[string]any{"step": 2})

	line := buf.String()
	for _, want := range []string{"WARN", "[step]", "login:", "text=Continue not visible", "step=2"} {
		if !strings.Contains(line, want) {
			t.Errorf("console line %q missing %q", line, want)
		}
	}
}

// TestNilLogger tests that a nil logger is safe to use
func TestNilLogger(t *testing.T) {
	var logger *Logger
	if err := logger.Info(CategoryRun, "x", "y", nil); err != nil {
		t.Errorf("nil logger Info() = %v", err)
	}
	if logger.WithScenario("s", "x") != nil {
		t.Error("nil logger WithScenario should stay nil")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("nil logger Close() = %v", err)
	}
}

// TestClose tests that Close is idempotent and stops further writes
func TestClose(t *testing.T) {
	logger, err := NewLogger(t.TempDir(), "run-1")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
	if err := logger.Info(CategoryRun, "after_close", "", nil); err != nil {
		t.Errorf("Log after Close should be dropped silently, got %v", err)
	}
}

// TestReadRecentEventsOrder tests tail semantics
func TestReadRecentEventsOrder(t *testing.T) {
	logger, err := NewLogger(t.TempDir(), "run-1")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	for _, name := range []string{"a", "b", "c", "d"} {
		logger.Info(CategoryStep, name, "", nil)
	}

	events, err := ReadRecentEvents(logger.RunLogPath(), 2)
	if err != nil {
		t.Fatalf("ReadRecentEvents failed: %v", err)
	}
	if len(events) != 2 || events[0].EventType != "c" || events[1].EventType != "d" {
		t.Errorf("events = %+v", events)
	}
}

// TestReadRecentEventsNonexistent tests a missing file
func TestReadRecentEventsNonexistent(t *testing.T) {
	if _, err := ReadRecentEvents(filepath.Join(t.TempDir(), "missing.jsonl"), 5); err == nil {
		t.Error("expected error for missing file")
	}
}

// TestConcurrentWrites tests parallel scenario loggers sharing one run log
func TestConcurrentWrites(t *testing.T) {
	logger, err := NewLogger(t.TempDir(), "run-1")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			child := logger.WithScenario("s", "")
			for j := 0; j < 25; j++ {
				child.Info(CategoryStep, "tick", "", map[string]any{"worker": n})
			}
		}(i)
	}
	wg.Wait()

	events, _ := ReadRecentEvents(logger.RunLogPath(), 1000)
	if len(events) != 100 {
		t.Errorf("expected 100 events, got %d", len(events))
	}
}

// TestJSONLFormat tests every line is standalone JSON
func TestJSONLFormat(t *testing.T) {
	logger, err := NewLogger(t.TempDir(), "run-1")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	logger.Info(CategoryFixture, "seeded", "user", map[string]any{"role": "user"})
	logger.Info(CategoryArtifact, "checkpoint", "gallery.png", nil)
	logger.Close()

	f, err := os.Open(logger.RunLogPath())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lines := 0
	for scanner.Scan() {
		lines++
		var raw map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
			t.Errorf("line %d is not valid JSON: %v", lines, err)
		}
	}
	if lines != 2 {
		t.Errorf("expected 2 lines, got %d", lines)
	}
}
