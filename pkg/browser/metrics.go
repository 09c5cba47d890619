package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ashparshp/hairone/pkg/telemetry"
)

// Metrics tracks harness counters across every session of a run.
type Metrics struct {
	// Session counts
	SessionsCreated atomic.Int64
	SessionsClosed  atomic.Int64
	ActiveSessions  atomic.Int64
	LaunchFailures  atomic.Int64

	// Operation counts
	NavigateCount      atomic.Int64
	NavigateLatencySum atomic.Int64 // nanoseconds
	ActionCount        atomic.Int64
	ActionSuccessCount atomic.Int64
	ActionFailureCount atomic.Int64

	// Network interception
	RequestsIntercepted atomic.Int64
	RequestsMocked      atomic.Int64
	ResponderFailures   atomic.Int64

	CheckpointsCaptured atomic.Int64

	// Telemetry integration
	mu    sync.RWMutex
	hub   *telemetry.Hub
	runID string
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// EnableTelemetry wires the metrics collector to a telemetry hub.
func (m *Metrics) EnableTelemetry(hub *telemetry.Hub, runID string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.hub = hub
	m.runID = runID
	m.mu.Unlock()
}

// RecordSessionCreated increments session creation counter.
func (m *Metrics) RecordSessionCreated(sessionID string) {
	if m == nil {
		return
	}
	m.SessionsCreated.Add(1)
	m.ActiveSessions.Add(1)
	m.publishEvent(telemetry.EventBrowserSessionCreated, sessionID, nil)
}

// RecordLaunchFailure counts an engine that failed to start.
func (m *Metrics) RecordLaunchFailure() {
	if m == nil {
		return
	}
	m.LaunchFailures.Add(1)
}

// RecordSessionClosed increments session close counter.
func (m *Metrics) RecordSessionClosed(sessionID string) {
	if m == nil {
		return
	}
	m.SessionsClosed.Add(1)
	m.ActiveSessions.Add(-1)
	m.publishEvent(telemetry.EventBrowserSessionClosed, sessionID, nil)
}

// RecordNavigate increments navigation counter.
func (m *Metrics) RecordNavigate(sessionID, url string, latency time.Duration) {
	if m == nil {
		return
	}
	m.NavigateCount.Add(1)
	m.NavigateLatencySum.Add(latency.Nanoseconds())
	m.publishEvent(telemetry.EventBrowserNavigate, sessionID, map[string]any{
		"url":        url,
		"latency_ms": latency.Milliseconds(),
	})
}

// RecordAction increments action counter and tracks success/failure.
func (m *Metrics) RecordAction(sessionID, action string, success bool, latency time.Duration) {
	if m == nil {
		return
	}
	m.ActionCount.Add(1)
	eventType := telemetry.EventBrowserAction
	if success {
		m.ActionSuccessCount.Add(1)
	} else {
		m.ActionFailureCount.Add(1)
		eventType = telemetry.EventBrowserActionFailed
	}
	m.publishEvent(eventType, sessionID, map[string]any{
		"action":     action,
		"success":    success,
		"latency_ms": latency.Milliseconds(),
	})
}

// RecordRequest counts an intercepted request and whether a mock answered it.
func (m *Metrics) RecordRequest(sessionID, method, url string, mocked bool) {
	if m == nil {
		return
	}
	m.RequestsIntercepted.Add(1)
	eventType := telemetry.EventRequestIntercepted
	if mocked {
		m.RequestsMocked.Add(1)
		eventType = telemetry.EventRequestMocked
	}
	m.publishEvent(eventType, sessionID, map[string]any{
		"method": method,
		"url":    url,
	})
}

// RecordResponderFailure counts a mock responder that errored or panicked.
func (m *Metrics) RecordResponderFailure(sessionID, url string) {
	if m == nil {
		return
	}
	m.ResponderFailures.Add(1)
	m.publishEvent(telemetry.EventResponderFailed, sessionID, map[string]any{"url": url})
}

// RecordCheckpoint counts a captured artifact.
func (m *Metrics) RecordCheckpoint(sessionID, path string) {
	if m == nil {
		return
	}
	m.CheckpointsCaptured.Add(1)
	m.publishEvent(telemetry.EventCheckpointCaptured, sessionID, map[string]any{"path": path})
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	avgNavigate := time.Duration(0)
	if n := m.NavigateCount.Load(); n > 0 {
		avgNavigate = time.Duration(m.NavigateLatencySum.Load() / n)
	}
	successCount := m.ActionSuccessCount.Load()
	failCount := m.ActionFailureCount.Load()
	successRate := float64(1.0)
	if total := successCount + failCount; total > 0 {
		successRate = float64(successCount) / float64(total)
	}
	return MetricsSnapshot{
		SessionsCreated:     m.SessionsCreated.Load(),
		SessionsClosed:      m.SessionsClosed.Load(),
		ActiveSessions:      m.ActiveSessions.Load(),
		LaunchFailures:      m.LaunchFailures.Load(),
		NavigateCount:       m.NavigateCount.Load(),
		AverageNavigate:     avgNavigate,
		ActionCount:         m.ActionCount.Load(),
		ActionSuccessCount:  successCount,
		ActionFailureCount:  failCount,
		ActionSuccessRate:   successRate,
		RequestsIntercepted: m.RequestsIntercepted.Load(),
		RequestsMocked:      m.RequestsMocked.Load(),
		ResponderFailures:   m.ResponderFailures.Load(),
		CheckpointsCaptured: m.CheckpointsCaptured.Load(),
	}
}

// Registry builds a Prometheus registry whose collectors read the live counters.
func (m *Metrics) Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	counter := func(name, help string, v *atomic.Int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "uiverify",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(v.Load()) })
	}
	reg.MustRegister(
		counter("sessions_created_total", "Browser sessions opened.", &m.SessionsCreated),
		counter("sessions_closed_total", "Browser sessions torn down.", &m.SessionsClosed),
		counter("launch_failures_total", "Engine launches that failed.", &m.LaunchFailures),
		counter("navigations_total", "Page navigations and reloads.", &m.NavigateCount),
		counter("actions_total", "Clicks and fills attempted.", &m.ActionCount),
		counter("action_failures_total", "Clicks and fills that failed.", &m.ActionFailureCount),
		counter("requests_intercepted_total", "Outbound requests seen by the mock registry.", &m.RequestsIntercepted),
		counter("requests_mocked_total", "Outbound requests answered by a mock route.", &m.RequestsMocked),
		counter("responder_failures_total", "Mock responders that failed and produced a 500.", &m.ResponderFailures),
		counter("checkpoints_total", "Screenshots written.", &m.CheckpointsCaptured),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "uiverify",
			Name:      "sessions_active",
			Help:      "Browser sessions currently open.",
		}, func() float64 { return float64(m.ActiveSessions.Load()) }),
	)
	return reg
}

// WriteTextfile exports the counters in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.Registry()); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func (m *Metrics) publishEvent(eventType telemetry.EventType, sessionID string, data map[string]any) {
	m.mu.RLock()
	hub := m.hub
	runID := m.runID
	m.mu.RUnlock()
	if hub == nil {
		return
	}
	hub.Publish(telemetry.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		RunID:     runID,
		SessionID: sessionID,
		Data:      data,
	})
}

// MetricsSnapshot is a point-in-time copy of harness metrics.
type MetricsSnapshot struct {
	SessionsCreated     int64
	SessionsClosed      int64
	ActiveSessions      int64
	LaunchFailures      int64
	NavigateCount       int64
	AverageNavigate     time.Duration
	ActionCount         int64
	ActionSuccessCount  int64
	ActionFailureCount  int64
	ActionSuccessRate   float64
	RequestsIntercepted int64
	RequestsMocked      int64
	ResponderFailures   int64
	CheckpointsCaptured int64
}
