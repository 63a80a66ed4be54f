package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, rec Recorder) string {
	t.Helper()
	require.NotNil(t, rec.Handler())
	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	return w.Body.String()
}

func TestHandshakeMetrics(t *testing.T) {
	rec := NewPrometheusRecorder()
	h := NewHandshake(rec, "authenticator", "02:00:00:00:00:02")

	h.FrameSent()
	h.FrameSent()
	h.FrameReceived()
	h.FrameRejected(RejectReasonDecode)
	h.Attempt(2)
	h.Finished(ResultCompleted, time.Now().Add(-time.Millisecond))

	body := scrape(t, rec)
	assert.Contains(t, body, `rsn_frames_total{direction="tx",role="authenticator"} 2`)
	assert.Contains(t, body, `rsn_frames_total{direction="rx",role="authenticator"} 1`)
	assert.Contains(t, body, `rsn_frames_rejected_total{reason="decode",role="authenticator"} 1`)
	assert.Contains(t, body, `rsn_handshakes_total{result="completed",role="authenticator"} 1`)
	assert.Contains(t, body, `rsn_handshake_attempts{peer="02:00:00:00:00:02",role="authenticator"} 2`)
	assert.Contains(t, body, `rsn_handshake_duration_seconds_count{role="authenticator"} 1`)
	assert.Contains(t, body, "# HELP rsn_frames_rejected_total")
}

func TestPrometheusRecorderReusesVectors(t *testing.T) {
	rec := NewPrometheusRecorder()
	for i := 0; i < 3; i++ {
		rec.IncCounter(FramesTotal, Labels{"role": "supplicant", "direction": DirectionRx})
	}
	assert.Len(t, rec.counters, 1)

	families, err := rec.Registry().Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, 3.0, families[0].GetMetric()[0].GetCounter().GetValue())
}

func TestNoopRecorder(t *testing.T) {
	h := NewHandshake(nil, "supplicant", "peer")
	assert.NotPanics(t, func() {
		h.FrameSent()
		h.Finished(ResultFailed, time.Now())
	})
	assert.Nil(t, NewNoopRecorder().Handler())
}
