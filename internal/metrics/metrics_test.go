package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()
	m := New()

	m.FileDone(OutcomeOK)
	m.FileDone(OutcomeOK)
	m.FileDone(OutcomeParseError)
	m.CallsDone(3, 1)
	m.CallsDone(2, 0)
	m.HookFailed()

	assert.InDelta(t, 2, testutil.ToFloat64(m.FilesAnalyzed.WithLabelValues(OutcomeOK)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.FilesAnalyzed.WithLabelValues(OutcomeParseError)), 0)
	assert.InDelta(t, 5, testutil.ToFloat64(m.CallsAttributed.WithLabelValues(ResolutionResolved)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CallsAttributed.WithLabelValues(ResolutionUnresolved)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.HookFailures), 0)
}

func TestMetrics_Registry(t *testing.T) {
	t.Parallel()
	m := New()
	m.FileDone(OutcomeOK)
	m.FileDone(OutcomeCached)
	m.FileDone(OutcomeCancelled)

	n, err := testutil.GatherAndCount(m.Registry(), "callmap_files_analyzed_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// The registry is private: other instances do not see these series.
	n, err = testutil.GatherAndCount(New().Registry(), "callmap_files_analyzed_total")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()
	var m *Metrics
	assert.NotPanics(t, func() {
		m.FileDone(OutcomeOK)
		m.CallsDone(1, 1)
		m.HookFailed()
	})
}

func TestMetrics_WriteTextfile(t *testing.T) {
	t.Parallel()
	m := New()
	m.FileDone(OutcomeCached)

	path := filepath.Join(t.TempDir(), "callmap.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `callmap_files_analyzed_total{outcome="cached"} 1`)
}
