package metrics_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarkusio/jbang-catalog/internal/metrics"
)

func TestCounters(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.Publish("catalog", "published")
	m.Publish("catalog", "published")
	m.Publish("catalog", "already-exists")
	m.Fetch("catalog", "skipped")
	m.Descriptor("platform", "failed")
	m.AddNewVersions("extension", 3)
	m.AddNewVersions("extension", 0)

	assert.InDelta(t, 2, testutil.ToFloat64(m.Publishes.WithLabelValues("catalog", "published")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Publishes.WithLabelValues("catalog", "already-exists")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Fetches.WithLabelValues("catalog", "skipped")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Descriptors.WithLabelValues("platform", "failed")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.NewVersions.WithLabelValues("extension")), 0)
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.Publish("extension", "published")

	path := filepath.Join(t.TempDir(), "catalog.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `catalog_publish_total{kind="extension",outcome="published"} 1`)
	assert.Contains(t, string(data), "catalog_last_run_timestamp_seconds")
}

func TestNilMetrics(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics
	m.Publish("catalog", "published")
	m.Fetch("catalog", "ok")
	m.Descriptor("platform", "ok")
	m.AddNewVersions("platform", 1)
	require.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
	assert.NotNil(t, m.Gatherer())
}
