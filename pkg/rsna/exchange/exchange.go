// Package exchange selects and drives the key exchange method of an RSNA.
package exchange

import (
	"errors"
	"fmt"

	"wlanrsn-go/pkg/rsna"
	"wlanrsn-go/pkg/rsna/fourway"
)

var ErrUnknownKeyExchange = errors.New("unknown key exchange method")

// Config selects a key exchange method and carries what it needs to start.
type Config interface {
	method() string
}

// FourwayConfig starts a 4-Way Handshake using PMK.
type FourwayConfig struct {
	Handshake fourway.Config
	PMK       []byte
}

func (FourwayConfig) method() string { return "fourway" }

// Method is a running key exchange.
type Method interface {
	Initiate(sink *rsna.UpdateSink, krc uint64) error
	OnFrame(sink *rsna.UpdateSink, krc uint64, vf rsna.VerifiedKeyFrame) error
	// Destroy wipes the method's secrets and returns a Config that restarts
	// the same exchange. The PMK of the returned config is nil.
	Destroy() Config
	Role() rsna.Role
	Completed() bool
	Failed() bool
	String() string
}

// FromConfig starts the method selected by cfg.
func FromConfig(cfg Config, opts ...fourway.Option) (Method, error) {
	switch c := cfg.(type) {
	case FourwayConfig:
		hs, err := fourway.New(c.Handshake, c.PMK, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to start 4-way handshake: %w", err)
		}
		return &fourwayMethod{hs: hs}, nil
	case *FourwayConfig:
		if c == nil {
			return nil, ErrUnknownKeyExchange
		}
		return FromConfig(*c, opts...)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKeyExchange, cfg)
	}
}

type fourwayMethod struct {
	hs *fourway.Fourway
}

func (m *fourwayMethod) Initiate(sink *rsna.UpdateSink, krc uint64) error {
	return m.hs.Initiate(sink, krc)
}

func (m *fourwayMethod) OnFrame(sink *rsna.UpdateSink, krc uint64, vf rsna.VerifiedKeyFrame) error {
	return m.hs.OnFrame(sink, krc, vf)
}

func (m *fourwayMethod) Destroy() Config {
	return FourwayConfig{Handshake: m.hs.Destroy()}
}

func (m *fourwayMethod) Role() rsna.Role { return m.hs.Role() }
func (m *fourwayMethod) Completed() bool { return m.hs.State() == fourway.StateCompleted }
func (m *fourwayMethod) Failed() bool    { return m.hs.State() == fourway.StateFailed }

func (m *fourwayMethod) String() string {
	return fmt.Sprintf("4-way handshake (%s, %s)", m.hs.Role(), m.hs.State())
}
