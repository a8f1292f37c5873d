package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.FetchOutcomes.WithLabelValues("ok").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.FetchOutcomes.WithLabelValues("ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.FetchOutcomes.WithLabelValues("ok")))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New()
	m.WebhookRequests.WithLabelValues("accepted").Inc()
	m.StreamConnections.WithLabelValues("sse").Set(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `dashboard_webhook_requests_total{result="accepted"} 1`)
	assert.Contains(t, string(body), `dashboard_stream_connections{transport="sse"} 2`)
	assert.Contains(t, string(body), "go_goroutines")
}
