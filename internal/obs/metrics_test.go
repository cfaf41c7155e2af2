package obs

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.ObserveRequest("GET", "/health", "200", 0.01)
	m.ObserveRequest("GET", "/health", "200", 0.02)
	m.RateLimitRejected("rl:auth:")
	m.RateLimitBypassed("cache_unavailable")
	m.InFlightInc()
	m.InFlightInc()
	m.InFlightDec()
	m.SetCacheAvailable(true)

	out := scrape(t, m)
	assert.Contains(t, out, `http_requests_total{method="GET",path="/health",status="200"} 2`)
	assert.Contains(t, out, `http_request_duration_seconds_count{method="GET",path="/health",status="200"} 2`)
	assert.Contains(t, out, `rate_limit_rejections_total{prefix="rl:auth:"} 1`)
	assert.Contains(t, out, `rate_limit_bypass_total{reason="cache_unavailable"} 1`)
	assert.Contains(t, out, "http_in_flight_requests 1")
	assert.Contains(t, out, "session_cache_available 1")

	m.SetCacheAvailable(false)
	assert.Contains(t, scrape(t, m), "session_cache_available 0")
}

// 2つ作っても登録が衝突しない
func TestMetrics_SeparateRegistries(t *testing.T) {
	_ = NewMetrics()
	m := NewMetrics()
	m.RequestLogDropped()

	assert.Contains(t, scrape(t, m), "request_log_dropped_total 1")
}
