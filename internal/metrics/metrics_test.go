package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue gathers the registry and returns the value of the counter
// family name whose labels match exactly.
func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range metric.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			if assert.ObjectsAreEqual(labels, got) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestMetrics_ObserveLookup(t *testing.T) {
	m := New()
	m.ObserveLookup("tile", "ok", 120*time.Millisecond)
	m.ObserveLookup("tile", "ok", 80*time.Millisecond)
	m.ObserveLookup("segment", "mismatched_identity", 0)

	assert.Equal(t, 2.0, counterValue(t, m, "traffic_board_source_lookups_total",
		map[string]string{"source": "tile", "result": "ok"}))
	assert.Equal(t, 1.0, counterValue(t, m, "traffic_board_source_lookups_total",
		map[string]string{"source": "segment", "result": "mismatched_identity"}))
}

func TestMetrics_ObserveArtifact(t *testing.T) {
	m := New()
	m.ObserveArtifact("csv", nil)
	m.ObserveArtifact("binary", errors.New("disk full"))

	assert.Equal(t, 1.0, counterValue(t, m, "traffic_board_pipeline_artifacts_total",
		map[string]string{"format": "csv", "status": "ok"}))
	assert.Equal(t, 1.0, counterValue(t, m, "traffic_board_pipeline_artifacts_total",
		map[string]string{"format": "binary", "status": "error"}))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.ObserveTarget("North", "value")
	m.MarkSuccess("North", "current", time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "traffic_board.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `traffic_board_pipeline_targets_total{direction="North",state="value"} 1`)
	assert.Contains(t, string(data), `traffic_board_pipeline_last_success_timestamp_seconds{direction="North",metric="current"} 1.7e+09`)
}

// TestMetrics_Nil verifies that a nil *Metrics is a no-op.
func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveLookup("tile", "ok", time.Second)
		m.ObserveTarget("North", "value")
		m.ObserveArtifact("csv", nil)
		m.MarkSuccess("North", "current", time.Now())
	})
	assert.NoError(t, m.WriteTextfile("/nonexistent/metrics.prom"))
	assert.Nil(t, m.Registry())
}
