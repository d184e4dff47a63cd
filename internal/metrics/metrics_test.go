package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webvulnscan/internal/models"
)

func TestObserveFetch(t *testing.T) {
	m := New()
	m.ObserveFetch(&models.FetchResult{StatusCode: 200, Elapsed: 20 * time.Millisecond})
	m.ObserveFetch(&models.FetchResult{StatusCode: 200, Elapsed: 30 * time.Millisecond})
	m.ObserveFetch(&models.FetchResult{Kind: models.ErrRateLimited})
	m.ObserveFetch(&models.FetchResult{Kind: models.ErrTimeout, Elapsed: time.Second})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited))
	assert.EqualValues(t, 3, histogramCount(t, m, "webvulnscan_fetch_duration_seconds"))
}

func histogramCount(t *testing.T, m *Metrics, name string) uint64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			require.Len(t, mf.GetMetric(), 1)
			return mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}

func TestObserveFinding(t *testing.T) {
	m := New()
	m.ObserveFinding(models.Finding{Severity: models.SeverityHigh})
	m.ObserveFinding(models.Finding{Severity: models.SeverityHigh})
	m.ObserveFinding(models.Finding{Severity: models.SeverityLow})
	m.ObserveSkippedPage()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.findings.WithLabelValues("High")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.findings.WithLabelValues("Low")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.skipped))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFetch(&models.FetchResult{})
		m.ObserveFinding(models.Finding{})
		m.ObserveSkippedPage()
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveFetch(&models.FetchResult{StatusCode: 200})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `webvulnscan_requests_total{outcome="ok"} 1`)
}
