// Package link connects a key exchange to an Ethernet-framed EAPOL medium. It
// decodes received frames, feeds them to the exchange, drains the resulting
// updates and owns the retransmission policy the exchange itself lacks.
package link

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"wlanrsn-go/pkg/config"
	"wlanrsn-go/pkg/eapol"
	"wlanrsn-go/pkg/metrics"
	"wlanrsn-go/pkg/rsna"
	"wlanrsn-go/pkg/rsna/exchange"
	"wlanrsn-go/pkg/rsna/fourway"
	"wlanrsn-go/pkg/securestore"
)

var (
	ErrMaxAttempts  = errors.New("handshake attempts exhausted")
	ErrRateLimited  = errors.New("frame rate limit exceeded")
	ErrWrongAddress = errors.New("frame not addressed to this link")
	ErrClosed       = errors.New("endpoint closed")
)

// Transport sends an Ethernet frame carrying EAPOL.
type Transport interface {
	Send(frame []byte) error
}

// KeyInstaller receives keys produced by a completed handshake. The key
// material is wiped once InstallKey returns.
type KeyInstaller interface {
	InstallKey(kind rsna.UpdateKind, key *rsna.Key) error
}

// Options tune an Endpoint. Zero values select the defaults.
type Options struct {
	MaxAttempts int
	RateLimit   rate.Limit
	RateBurst   int
	Logger      zerolog.Logger
	Metrics     metrics.Recorder
	Handshake   []fourway.Option
}

// Status is a snapshot of an endpoint, safe to serialize.
type Status struct {
	Role      string   `json:"role"`
	Local     string   `json:"local"`
	Peer      string   `json:"peer"`
	Exchange  string   `json:"exchange"`
	Attempts  int      `json:"attempts"`
	Completed bool     `json:"completed"`
	Failed    bool     `json:"failed"`
	LastError string   `json:"last_error,omitempty"`
	Installed []string `json:"installed,omitempty"`
}

// Endpoint drives one key exchange towards one peer. All methods are safe
// for concurrent use; calls into the exchange are serialized.
type Endpoint struct {
	mu          sync.Mutex
	role        rsna.Role
	local       net.HardwareAddr
	peer        net.HardwareAddr
	handshake   fourway.Config
	pmk         *securestore.Secret
	method      exchange.Method
	fresh       bool
	krc         uint64
	attempts    int
	maxAttempts int
	started     time.Time
	gaveUp      bool
	closed      bool
	lastErr     error
	installed   []string

	limiter   *rate.Limiter
	transport Transport
	installer KeyInstaller
	fwOpts    []fourway.Option
	metrics   *metrics.Handshake
	logger    zerolog.Logger
}

// NewEndpoint starts the exchange described by cfg. The PMK is copied into
// guarded memory and reused for every retry.
func NewEndpoint(cfg exchange.FourwayConfig, transport Transport, installer KeyInstaller, opts Options) (*Endpoint, error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 5
	}

	hs := cfg.Handshake
	e := &Endpoint{
		role:        hs.Role(),
		local:       hs.StaAddr(),
		peer:        hs.PeerAddr(),
		handshake:   hs,
		pmk:         securestore.CopySecret(cfg.PMK),
		maxAttempts: opts.MaxAttempts,
		limiter:     rate.NewLimiter(opts.RateLimit, opts.RateBurst),
		transport:   transport,
		installer:   installer,
		metrics:     metrics.NewHandshake(opts.Metrics, hs.Role().String(), hs.PeerAddr().String()),
		logger: opts.Logger.With().
			Str("component", "link").
			Str("role", hs.Role().String()).
			Stringer("peer", hs.PeerAddr()).
			Logger(),
	}
	e.fwOpts = append([]fourway.Option{fourway.WithLogger(e.logger)}, opts.Handshake...)
	if err := e.restart(); err != nil {
		e.pmk.Destroy()
		return nil, err
	}
	e.started = time.Now()
	return e, nil
}

// restart replaces the current method with a fresh one. Callers hold mu or
// own e exclusively.
func (e *Endpoint) restart() error {
	cfg := exchange.FourwayConfig{Handshake: e.handshake}
	if e.method != nil {
		if c, ok := e.method.Destroy().(exchange.FourwayConfig); ok {
			cfg = c
		}
		e.method = nil
	}
	cfg.PMK = e.pmk.Bytes()
	m, err := exchange.FromConfig(cfg, e.fwOpts...)
	if err != nil {
		return err
	}
	e.method = m
	e.fresh = true
	e.attempts++
	e.metrics.Attempt(e.attempts)
	return nil
}

// Start sends Message 1 when acting as authenticator. A supplicant waits for
// the peer.
func (e *Endpoint) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return e.initiate()
}

func (e *Endpoint) initiate() error {
	if e.role != rsna.RoleAuthenticator {
		e.logger.Debug().Msg("Waiting for the authenticator to start the handshake")
		return nil
	}
	var sink rsna.UpdateSink
	err := e.method.Initiate(&sink, e.krc)
	e.drain(sink)
	return err
}

// HandleFrame processes one received Ethernet frame.
func (e *Endpoint) HandleFrame(frame []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	src, dst, payload, err := eapol.DecodeEthernet(frame)
	if err != nil {
		e.metrics.FrameRejected(metrics.RejectReasonDecode)
		return err
	}
	if !sameAddr(dst, e.local) || !sameAddr(src, e.peer) {
		e.metrics.FrameRejected(metrics.RejectReasonWrongAddress)
		return fmt.Errorf("%w: %s -> %s", ErrWrongAddress, src, dst)
	}
	if !e.limiter.Allow() {
		e.metrics.FrameRejected(metrics.RejectReasonRateLimited)
		e.logger.Warn().Msg("Dropping key frame over the rate limit")
		return ErrRateLimited
	}
	kf, err := eapol.Decode(payload)
	if err != nil {
		e.metrics.FrameRejected(metrics.RejectReasonDecode)
		e.logger.Debug().Err(err).Msg("Dropping undecodable EAPOL frame")
		return err
	}
	e.metrics.FrameReceived()
	e.logger.Debug().
		Stringer("msg", fourway.Classify(kf)).
		Uint64("replay_counter", kf.KeyReplayCounter).
		Msg("Received key frame")

	if e.role == rsna.RoleSupplicant && fourway.Classify(kf) == fourway.Message1 && !e.fresh {
		e.logger.Info().Msg("Authenticator restarted the handshake")
		if err := e.restart(); err != nil {
			return err
		}
	}
	e.fresh = false

	var sink rsna.UpdateSink
	err = e.method.OnFrame(&sink, e.krc, rsna.VerifyUnencrypted(kf))
	if err == nil && e.role == rsna.RoleSupplicant {
		e.krc = kf.KeyReplayCounter
	}
	e.drain(sink)
	if err != nil {
		e.metrics.FrameRejected(metrics.RejectReasonHandshake)
	}
	return err
}

// drain forwards updates in order.
func (e *Endpoint) drain(sink rsna.UpdateSink) {
	for _, u := range sink {
		switch u.Kind {
		case rsna.UpdateTxKeyFrame:
			if err := e.send(u.Frame); err != nil {
				e.logger.Error().Err(err).Msg("Failed to send key frame")
			}
		case rsna.UpdateInstallPairwiseKey, rsna.UpdateInstallGroupKey, rsna.UpdateInstallIntegrityKey:
			if err := e.installer.InstallKey(u.Kind, u.Key); err != nil {
				e.logger.Error().Err(err).Stringer("kind", u.Kind).Msg("Failed to install key")
			} else {
				e.installed = append(e.installed, fmt.Sprintf("%s:%d", u.Kind, u.Key.KeyID))
			}
			u.Key.Wipe()
		case rsna.UpdateHandshakeCompleted:
			e.lastErr = nil
			e.metrics.Finished(metrics.ResultCompleted, e.started)
			e.logger.Info().Int("attempts", e.attempts).Dur("elapsed", time.Since(e.started)).Msg("Handshake completed")
		case rsna.UpdateHandshakeFailed:
			e.lastErr = u.Err
			e.metrics.Finished(metrics.ResultFailed, e.started)
			e.logger.Warn().Err(u.Err).Int("attempt", e.attempts).Msg("Handshake attempt failed")
		}
	}
}

func (e *Endpoint) send(kf *eapol.KeyFrame) error {
	payload, err := kf.MarshalBinary()
	if err != nil {
		return err
	}
	frame, err := eapol.EncodeEthernet(e.local, e.peer, payload)
	if err != nil {
		return err
	}
	if e.role == rsna.RoleAuthenticator && kf.KeyReplayCounter > e.krc {
		e.krc = kf.KeyReplayCounter
	}
	e.metrics.FrameSent()
	e.logger.Debug().
		Stringer("msg", fourway.Classify(kf)).
		Uint64("replay_counter", kf.KeyReplayCounter).
		Msg("Sending key frame")
	return e.transport.Send(frame)
}

// Timeout is called when the peer did not answer in time. Unless the
// handshake completed, it restarts the exchange, re-initiating with a higher
// replay counter as authenticator, until the attempts are exhausted.
func (e *Endpoint) Timeout() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.method.Completed() {
		return nil
	}
	if e.gaveUp {
		return ErrMaxAttempts
	}
	if e.attempts >= e.maxAttempts {
		e.gaveUp = true
		e.logger.Warn().Int("attempts", e.attempts).Msg("Giving up on handshake")
		return fmt.Errorf("%w after %d attempts", ErrMaxAttempts, e.attempts)
	}

	e.logger.Info().Int("attempt", e.attempts+1).Msg("Retrying handshake")
	if err := e.restart(); err != nil {
		return err
	}
	return e.initiate()
}

// Completed reports whether the current exchange installed its keys.
func (e *Endpoint) Completed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.closed && e.method.Completed()
}

// Done reports whether no further progress is possible without a new peer
// frame or Timeout: the exchange completed or the endpoint gave up.
func (e *Endpoint) Done() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed || e.gaveUp || e.method.Completed()
}

func (e *Endpoint) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Status{
		Role:      e.role.String(),
		Local:     e.local.String(),
		Peer:      e.peer.String(),
		Attempts:  e.attempts,
		Failed:    e.gaveUp,
		Installed: append([]string(nil), e.installed...),
	}
	if e.lastErr != nil {
		s.LastError = e.lastErr.Error()
	}
	if !e.closed {
		s.Exchange = e.method.String()
		s.Completed = e.method.Completed()
		s.Failed = s.Failed || (e.method.Failed() && e.attempts >= e.maxAttempts)
	}
	return s
}

// Reconfigure applies the reloadable handshake tunables.
func (e *Endpoint) Reconfigure(cfg *config.Config) error {
	h := cfg.Handshake
	if h.MaxAttempts < 1 || h.FrameRateLimit <= 0 || h.FrameRateBurst < 1 {
		return fmt.Errorf("%w: attempts and rate limits must be positive", config.ErrInvalidConfig)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.maxAttempts = h.MaxAttempts
	e.limiter.SetLimit(rate.Limit(h.FrameRateLimit))
	e.limiter.SetBurst(h.FrameRateBurst)
	return nil
}

// Close destroys the exchange and wipes the PMK.
func (e *Endpoint) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.method.Destroy()
	e.pmk.Destroy()
	e.logger.Debug().Msg("Endpoint closed")
}

func sameAddr(a, b net.HardwareAddr) bool {
	return a.String() == b.String()
}
