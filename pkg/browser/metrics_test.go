package browser

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashparshp/hairone/pkg/telemetry"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordSessionCreated("s1")
	m.RecordNavigate("s1", "http://localhost:8081/", 200*time.Millisecond)
	m.RecordNavigate("s1", "http://localhost:8081/home", 400*time.Millisecond)
	m.RecordAction("s1", "click", true, time.Millisecond)
	m.RecordAction("s1", "fill", false, time.Millisecond)
	m.RecordRequest("s1", "POST", "http://localhost:5000/api/auth/otp", true)
	m.RecordRequest("s1", "GET", "http://localhost:8081/logo.png", false)
	m.RecordResponderFailure("s1", "http://localhost:5000/api/admin/stats")
	m.RecordCheckpoint("s1", "artifacts/login/01-start.png")
	m.RecordSessionClosed("s1")

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.SessionsCreated)
	assert.Equal(t, int64(0), snap.ActiveSessions)
	assert.Equal(t, 300*time.Millisecond, snap.AverageNavigate)
	assert.Equal(t, 0.5, snap.ActionSuccessRate)
	assert.Equal(t, int64(2), snap.RequestsIntercepted)
	assert.Equal(t, int64(1), snap.RequestsMocked)
	assert.Equal(t, int64(1), snap.ResponderFailures)
	assert.Equal(t, int64(1), snap.CheckpointsCaptured)
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.RecordSessionCreated("s")
	m.RecordAction("s", "click", true, 0)
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestMetricsPublishesToHub(t *testing.T) {
	hub := telemetry.NewHub()
	defer hub.Close()
	events, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	m := NewMetrics()
	m.EnableTelemetry(hub, "run-1")
	m.RecordSessionCreated("s1")

	select {
	case ev := <-events:
		assert.Equal(t, telemetry.EventBrowserSessionCreated, ev.Type)
		assert.Equal(t, "run-1", ev.RunID)
		assert.Equal(t, "s1", ev.SessionID)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.RecordSessionCreated("s1")
	m.RecordRequest("s1", "GET", "http://x/api", true)

	path := filepath.Join(t.TempDir(), "nested", "uiverify.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "uiverify_sessions_created_total 1")
	assert.Contains(t, string(data), "uiverify_requests_mocked_total 1")
	assert.Contains(t, string(data), "uiverify_sessions_active 1")
}
