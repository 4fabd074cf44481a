package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.MessageSent("text")
	m.MessageSent("text")
	m.MessageSent("image")
	m.TxRetry(1, nil)
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.EventReceived("typing")
	m.EventDropped("buffer_full")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messagesSent.WithLabelValues("text")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messagesSent.WithLabelValues("image")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.txRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsReceived.WithLabelValues("typing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsDropped.WithLabelValues("buffer_full")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "/api/chats", 200, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `parley_http_request_duration_seconds_count{method="GET",route="/api/chats",status="200"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
