// Package metrics instruments handshakes and the frames exchanged for them.
// Recorder hides the backend so link endpoints do not depend on Prometheus.
package metrics

import (
	"net/http"
	"time"
)

// Labels represents a collection of labels (key-value pairs) for a metric.
type Labels map[string]string

// Recorder defines the standard interface for recording application metrics.
type Recorder interface {
	IncCounter(name string, labels Labels)
	SetGauge(name string, labels Labels, value float64)
	ObserveHistogram(name string, labels Labels, value float64)

	// Handler returns an http.Handler exposing the metrics for scraping, or
	// nil if the backend does not support it.
	Handler() http.Handler
}

const (
	HandshakesTotal          = "rsn_handshakes_total"
	HandshakeDuration        = "rsn_handshake_duration_seconds"
	HandshakeAttempts        = "rsn_handshake_attempts"
	FramesTotal              = "rsn_frames_total"
	FramesRejectedTotal      = "rsn_frames_rejected_total"
	DirectionTx              = "tx"
	DirectionRx              = "rx"
	ResultCompleted          = "completed"
	ResultFailed             = "failed"
	RejectReasonDecode       = "decode"
	RejectReasonRateLimited  = "rate_limited"
	RejectReasonHandshake    = "handshake"
	RejectReasonWrongAddress = "wrong_address"
)

var help = map[string]string{
	HandshakesTotal:     "Finished handshakes by role and result.",
	HandshakeDuration:   "Time from the first attempt to completion or failure.",
	HandshakeAttempts:   "Attempts used by the current handshake of a link.",
	FramesTotal:         "EAPOL-Key frames by role and direction.",
	FramesRejectedTotal: "Received EAPOL-Key frames that were dropped or rejected.",
}

// Handshake records the metrics of one link endpoint.
type Handshake struct {
	rec  Recorder
	role string
	peer string
}

// NewHandshake binds rec to the endpoint playing role towards peer. A nil rec
// records nothing.
func NewHandshake(rec Recorder, role, peer string) *Handshake {
	if rec == nil {
		rec = NewNoopRecorder()
	}
	return &Handshake{rec: rec, role: role, peer: peer}
}

func (h *Handshake) FrameSent() {
	h.rec.IncCounter(FramesTotal, Labels{"role": h.role, "direction": DirectionTx})
}

func (h *Handshake) FrameReceived() {
	h.rec.IncCounter(FramesTotal, Labels{"role": h.role, "direction": DirectionRx})
}

func (h *Handshake) FrameRejected(reason string) {
	h.rec.IncCounter(FramesRejectedTotal, Labels{"role": h.role, "reason": reason})
}

func (h *Handshake) Attempt(n int) {
	h.rec.SetGauge(HandshakeAttempts, Labels{"role": h.role, "peer": h.peer}, float64(n))
}

// Finished records the outcome of a handshake that started at start.
func (h *Handshake) Finished(result string, start time.Time) {
	h.rec.IncCounter(HandshakesTotal, Labels{"role": h.role, "result": result})
	h.rec.ObserveHistogram(HandshakeDuration, Labels{"role": h.role}, time.Since(start).Seconds())
}

// noopRecorder is used when metrics are disabled to avoid nil checks.
type noopRecorder struct{}

// NewNoopRecorder returns a new no-op recorder.
func NewNoopRecorder() Recorder {
	return &noopRecorder{}
}

func (r *noopRecorder) IncCounter(string, Labels)                {}
func (r *noopRecorder) SetGauge(string, Labels, float64)         {}
func (r *noopRecorder) ObserveHistogram(string, Labels, float64) {}
func (r *noopRecorder) Handler() http.Handler                    { return nil }
