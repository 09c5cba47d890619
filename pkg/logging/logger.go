package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Category represents the subsystem generating the log
type Category string

const (
	CategoryRun      Category = "run"
	CategorySession  Category = "session"
	CategoryNetwork  Category = "network"
	CategoryScenario Category = "scenario"
	CategoryStep     Category = "step"
	CategoryArtifact Category = "artifact"
	CategoryFixture  Category = "fixture"
	CategoryPage     Category = "page"
)

// Event represents a structured log event
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Level     Level             `json:"level"`
	Category  Category          `json:"category"`
	EventType string            `json:"type"`
	RunID     string            `json:"run_id,omitempty"`
	Scenario  string            `json:"scenario,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	URL       string            `json:"url,omitempty"`
	Details   map[string]any    `json:"details,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Message   string            `json:"message,omitempty"`
}

// sinks are the destinations shared by a run logger and its scoped children.
type sinks struct {
	mu          sync.Mutex
	runFile     *os.File
	errorFile   *os.File
	networkFile *os.File
	console     io.Writer
	minLevel    Level
	closed      bool
}

// Logger writes structured events to multiple destinations.
//
// Every event lands in runs/<run-id>.jsonl. Error events are copied to
// errors.jsonl and network events to network.jsonl. A nil *Logger discards
// everything, so components can log unconditionally.
type Logger struct {
	runID     string
	baseDir   string
	scenario  string
	sessionID string
	root      bool
	out       *sinks
}

// NewLogger creates a new structured logger for one harness run
func NewLogger(baseDir, runID string) (*Logger, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	runsDir := filepath.Join(baseDir, "runs")
	if err := os.MkdirAll(runsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runs directory: %w", err)
	}

	runFile, err := openAppend(filepath.Join(runsDir, runID+".jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}

	errorFile, err := openAppend(filepath.Join(baseDir, "errors.jsonl"))
	if err != nil {
		runFile.Close()
		return nil, fmt.Errorf("failed to open error log: %w", err)
	}

	networkFile, err := openAppend(filepath.Join(baseDir, "network.jsonl"))
	if err != nil {
		runFile.Close()
		errorFile.Close()
		return nil, fmt.Errorf("failed to open network log: %w", err)
	}

	return &Logger{
		runID:   runID,
		baseDir: baseDir,
		root:    true,
		out: &sinks{
			runFile:     runFile,
			errorFile:   errorFile,
			networkFile: networkFile,
			minLevel:    LevelInfo,
		},
	}, nil
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

// RunID returns the run identifier the logger was created with.
func (l *Logger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// RunLogPath returns the path of the per-run JSONL file.
func (l *Logger) RunLogPath() string {
	if l == nil {
		return ""
	}
	return filepath.Join(l.baseDir, "runs", l.runID+".jsonl")
}

// WithScenario returns a child logger that stamps every event with the
// scenario name and browser session id. Children share the parent's files.
func (l *Logger) WithScenario(scenario, sessionID string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{
		runID:     l.runID,
		baseDir:   l.baseDir,
		scenario:  scenario,
		sessionID: sessionID,
		out:       l.out,
	}
}

// SetMinLevel sets the minimum log level
func (l *Logger) SetMinLevel(level Level) {
	if l == nil {
		return
	}
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.minLevel = level
}

// SetConsole mirrors events as human-readable lines to w. Pass nil to disable.
func (l *Logger) SetConsole(w io.Writer) {
	if l == nil {
		return
	}
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.console = w
}

// Log writes an event to appropriate destinations
func (l *Logger) Log(event Event) error {
	if l == nil {
		return nil
	}
	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	if l.out.closed {
		return nil
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RunID == "" {
		event.RunID = l.runID
	}
	if event.Scenario == "" {
		event.Scenario = l.scenario
	}
	if event.SessionID == "" {
		event.SessionID = l.sessionID
	}

	if !shouldLog(l.out.minLevel, event.Level) {
		return nil
	}

	data, err := sonic.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	data = append(data, '\n')

	if l.out.runFile != nil {
		if _, err := l.out.runFile.Write(data); err != nil {
			return fmt.Errorf("failed to write to run log: %w", err)
		}
	}

	if event.Level == LevelError && l.out.errorFile != nil {
		if _, err := l.out.errorFile.Write(data); err != nil {
			return fmt.Errorf("failed to write to error log: %w", err)
		}
	}

	if event.Category == CategoryNetwork && l.out.networkFile != nil {
		if _, err := l.out.networkFile.Write(data); err != nil {
			return fmt.Errorf("failed to write to network log: %w", err)
		}
	}

	if l.out.console != nil {
		fmt.Fprintln(l.out.console, FormatConsole(event))
	}

	return nil
}

var levelRank = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// shouldLog checks if event should be logged based on level
func shouldLog(minLevel, level Level) bool {
	return levelRank[level] >= levelRank[minLevel]
}

// FormatConsole renders an event as a single human-readable line.
func FormatConsole(event Event) string {
	var sb strings.Builder
	sb.WriteString(event.Timestamp.Format("15:04:05.000"))
	sb.WriteString(" ")
	sb.WriteString(fmt.Sprintf("%-5s", strings.ToUpper(string(event.Level))))
	sb.WriteString(" [")
	sb.WriteString(string(event.Category))
	sb.WriteString("]")
	if event.Scenario != "" {
		sb.WriteString(" ")
		sb.WriteString(event.Scenario)
		sb.WriteString(":")
	}
	if event.Message != "" {
		sb.WriteString(" ")
		sb.WriteString(event.Message)
	} else {
		sb.WriteString(" ")
		sb.WriteString(event.EventType)
	}
	if event.URL != "" {
		sb.WriteString(" (")
		sb.WriteString(event.URL)
		sb.WriteString(")")
	}
	if len(event.Details) > 0 {
		keys := make([]string, 0, len(event.Details))
		for k := range event.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf(" %s=%v", k, event.Details[k]))
		}
	}
	return sb.String()
}

// Helper methods for common log patterns

// Debug logs a debug event
func (l *Logger) Debug(category Category, eventType string, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     LevelDebug,
		Category:  category,
		EventType: eventType,
		Message:   message,
		Details:   details,
	})
}

// Info logs an info event
func (l *Logger) Info(category Category, eventType string, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     LevelInfo,
		Category:  category,
		EventType: eventType,
		Message:   message,
		Details:   details,
	})
}

// Warn logs a warning event
func (l *Logger) Warn(category Category, eventType string, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     LevelWarn,
		Category:  category,
		EventType: eventType,
		Message:   message,
		Details:   details,
	})
}

// Error logs an error event
func (l *Logger) Error(category Category, eventType string, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     LevelError,
		Category:  category,
		EventType: eventType,
		Message:   message,
		Details:   details,
	})
}

// Request logs an intercepted outbound request (">> METHOD URL").
func (l *Logger) Request(method, url string, mocked bool, status int) error {
	details := map[string]any{"method": method, "mocked": mocked}
	if mocked {
		details["status"] = status
	}
	return l.Log(Event{
		Level:     LevelInfo,
		Category:  CategoryNetwork,
		EventType: "request",
		Message:   ">> " + method + " " + url,
		URL:       url,
		Details:   details,
	})
}

// Close closes all log files. Closing a scoped child is a no-op.
func (l *Logger) Close() error {
	if l == nil || !l.root {
		return nil
	}
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	if l.out.closed {
		return nil
	}
	l.out.closed = true

	var errs []error
	for _, f := range []*os.File{l.out.runFile, l.out.errorFile, l.out.networkFile} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing log files: %v", errs)
	}
	return nil
}

// ReadRecentEvents reads the last N events from a JSONL log
func ReadRecentEvents(logPath string, count int) ([]Event, error) {
	file, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	defer file.Close()

	var events []Event
	decoder := sonic.ConfigDefault.NewDecoder(file)
	for {
		var event Event
		if err := decoder.Decode(&event); err != nil {
			break
		}
		events = append(events, event)
	}

	if len(events) > count {
		events = events[len(events)-count:]
	}
	return events, nil
}
