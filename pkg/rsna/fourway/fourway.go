// Package fourway implements the IEEE 802.11i 4-Way Handshake for both the
// authenticator and the supplicant role (IEEE Std 802.11-2016, 12.7.6).
//
// A Fourway value performs no I/O and never blocks. Callers feed it verified
// key frames in arrival order, one call at a time, and forward the updates it
// appends to their sink.
package fourway

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"wlanrsn-go/pkg/keys"
	"wlanrsn-go/pkg/rsna"
	"wlanrsn-go/pkg/securestore"
	"wlanrsn-go/pkg/statemachine"
)

const (
	defaultGTKKeyID  = 1
	defaultIGTKKeyID = 4
)

// roleHandler is either *authenticatorHandler or *supplicantHandler.
type roleHandler interface {
	role() rsna.Role
}

type authenticatorHandler struct {
	*authenticator
	sm *statemachine.StateMachine[authState]
}

func (h *authenticatorHandler) role() rsna.Role { return rsna.RoleAuthenticator }

type supplicantHandler struct {
	*supplicant
	sm *statemachine.StateMachine[suppState]
}

func (h *supplicantHandler) role() rsna.Role { return rsna.RoleSupplicant }

// Fourway is one handshake instance. It owns the PMK copy, the derived PTK and
// the group keys, all of which are wiped by Destroy.
type Fourway struct {
	cfg     Config
	pmk     *securestore.Secret
	handler roleHandler
	current State
	strict  bool
	logger  zerolog.Logger
}

// New creates a handshake for cfg.Role(). pmk is copied.
func New(cfg Config, pmk []byte, opts ...Option) (*Fourway, error) {
	if !cfg.valid() {
		return nil, fmt.Errorf("%w: config was not built by NewConfig", ErrInvalidConfig)
	}
	if len(pmk) == 0 {
		return nil, keys.ErrEmptyPMK
	}
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.nonces == nil {
		nr, err := keys.NewNonceReader(cfg.StaAddr())
		if err != nil {
			return nil, err
		}
		o.nonces = nr
	}

	f := &Fourway{
		cfg:    cfg,
		strict: o.strictMessage1MIC,
		logger: o.logger.With().Str("component", "fourway").Str("role", cfg.Role().String()).Logger(),
	}

	switch cfg.Role() {
	case rsna.RoleAuthenticator:
		gtk, igtk, err := groupKeys(cfg, o)
		if err != nil {
			return nil, err
		}
		f.pmk = securestore.CopySecret(pmk)
		a := &authenticator{cfg: cfg, pmk: f.pmk, gtk: gtk, igtk: igtk, nonces: o.nonces, logger: f.logger}
		f.handler = &authenticatorHandler{
			authenticator: a,
			sm:            statemachine.New[authState](&authIdle{a: a}),
		}
	case rsna.RoleSupplicant:
		f.pmk = securestore.CopySecret(pmk)
		p := &supplicant{cfg: cfg, pmk: f.pmk, nonces: o.nonces, logger: f.logger}
		f.handler = &supplicantHandler{
			supplicant: p,
			sm:         statemachine.New[suppState](&suppIdle{p: p}),
		}
	}
	f.current = StateIdle
	return f, nil
}

// groupKeys copies the configured GTK and IGTK or generates fresh ones.
func groupKeys(cfg Config, o options) (*keys.GroupKey, *keys.GroupKey, error) {
	n := cfg.Negotiated()
	var gtk *keys.GroupKey
	if o.gtk != nil {
		gtk = keys.GroupKeyFromBytes(o.gtk.KeyID, o.gtk.Bytes())
	} else {
		var err error
		if gtk, err = keys.NewGroupKey(defaultGTKKeyID, n.GTKLen()); err != nil {
			return nil, nil, err
		}
	}
	if gtk.Len() != n.GTKLen() {
		gtk.Destroy()
		return nil, nil, fmt.Errorf("%w: GTK must be %d octets", ErrInvalidConfig, n.GTKLen())
	}
	if gtk.KeyID < 1 || gtk.KeyID > 3 {
		gtk.Destroy()
		return nil, nil, fmt.Errorf("%w: GTK key ID %d outside 1..3", ErrInvalidConfig, gtk.KeyID)
	}
	if !n.MFP {
		return gtk, nil, nil
	}

	var igtk *keys.GroupKey
	if o.igtk != nil {
		igtk = keys.GroupKeyFromBytes(o.igtk.KeyID, o.igtk.Bytes())
	} else {
		var err error
		if igtk, err = keys.NewGroupKey(defaultIGTKKeyID, n.IGTKLen()); err != nil {
			gtk.Destroy()
			return nil, nil, err
		}
	}
	if igtk.KeyID != 4 && igtk.KeyID != 5 {
		gtk.Destroy()
		igtk.Destroy()
		return nil, nil, fmt.Errorf("%w: IGTK key ID %d outside 4..5", ErrInvalidConfig, igtk.KeyID)
	}
	return gtk, igtk, nil
}

// transition runs step inside the state machine, logging state changes and
// recording the resulting state.
func transition[S roleState](f *Fourway, sm *statemachine.StateMachine[S], step func(S) (S, error)) error {
	var result error
	err := sm.ReplaceState(func(s S) S {
		next, err := step(s)
		result = err
		if from, to := s.state(), next.state(); from != to {
			f.logger.Debug().Str("from", from.String()).Str("to", to.String()).Msg("Handshake state transition")
		}
		f.current = next.state()
		return next
	})
	if err != nil {
		return fmt.Errorf("%s handshake: %w", f.cfg.Role(), err)
	}
	return result
}

// Initiate sends Message 1. Only the authenticator can initiate; for a
// supplicant the call is a no-op.
func (f *Fourway) Initiate(sink *rsna.UpdateSink, krc uint64) error {
	switch h := f.handler.(type) {
	case *authenticatorHandler:
		return transition(f, h.sm, func(s authState) (authState, error) {
			return s.initiate(sink, krc)
		})
	case *supplicantHandler:
		f.logger.Debug().Msg("Supplicant cannot initiate a handshake, waiting for message 1")
	}
	return nil
}

// OnFrame processes one verified key frame. krc is the replay counter of the
// last frame the caller accepted on this link and is only used by the
// supplicant as a lower bound. Any rejection moves the handshake to Failed and
// appends a single failure update.
func (f *Fourway) OnFrame(sink *rsna.UpdateSink, krc uint64, vf rsna.VerifiedKeyFrame) error {
	switch h := f.handler.(type) {
	case *authenticatorHandler:
		return transition(f, h.sm, func(s authState) (authState, error) {
			if s.state() == StateFailed {
				return s.onFrame(sink, nil)
			}
			frame, err := FromVerified(vf, rsna.RoleAuthenticator, ValidationOptions{StrictMessage1MIC: f.strict})
			if err != nil {
				f.logRejected(vf, err)
				return h.fail(sink, s, err)
			}
			defer frame.wipe()
			return s.onFrame(sink, frame)
		})
	case *supplicantHandler:
		return transition(f, h.sm, func(s suppState) (suppState, error) {
			if s.state() == StateFailed {
				return s.onFrame(sink, krc, nil)
			}
			frame, err := FromVerified(vf, rsna.RoleSupplicant, ValidationOptions{
				ReferenceNonce:    s.referenceNonce(),
				StrictMessage1MIC: f.strict,
			})
			if err != nil {
				f.logRejected(vf, err)
				return h.fail(sink, s, err)
			}
			defer frame.wipe()
			return s.onFrame(sink, krc, frame)
		})
	}
	return nil
}

func (f *Fourway) logRejected(vf rsna.VerifiedKeyFrame, err error) {
	ev := f.logger.Warn().Err(err)
	if kf := vf.Frame(); kf != nil {
		ev = ev.Stringer("msg", Classify(kf)).Uint64("replay_counter", kf.KeyReplayCounter)
	}
	ev.Msg("Rejected key frame")
}

// State reports the current role state.
func (f *Fourway) State() State {
	return f.current
}

// Role reports the role this handshake plays.
func (f *Fourway) Role() rsna.Role {
	return f.handler.role()
}

// Destroy wipes all key material and returns the Config for reuse. The
// handshake must not be used afterwards.
func (f *Fourway) Destroy() Config {
	var err error
	switch h := f.handler.(type) {
	case *authenticatorHandler:
		var s authState
		if s, err = h.sm.IntoState(); err == nil {
			s.destroy()
		}
		h.gtk.Destroy()
		h.igtk.Destroy()
	case *supplicantHandler:
		var s suppState
		if s, err = h.sm.IntoState(); err == nil {
			s.destroy()
		}
	}
	if err != nil && !errors.Is(err, statemachine.ErrNoState) {
		f.logger.Error().Err(err).Msg("Failed to release handshake state")
	}
	f.pmk.Destroy()
	f.logger.Debug().Msg("Handshake destroyed")
	return f.cfg
}
