package fourway

import (
	"fmt"
	"net"

	"wlanrsn-go/pkg/rsna"
	"wlanrsn-go/pkg/rsne"
)

// Config describes both ends of one handshake. It is immutable once built and
// only obtainable through NewConfig, which negotiates copies of the two RSNEs.
type Config struct {
	role       rsna.Role
	staAddr    net.HardwareAddr
	staRSNE    *rsne.Rsne
	peerAddr   net.HardwareAddr
	peerRSNE   *rsne.Rsne
	negotiated *rsne.Negotiated
}

// NewConfig builds a Config for a station with address staAddr advertising
// staRSNE, talking to peerAddr advertising peerRSNE.
func NewConfig(role rsna.Role, staAddr net.HardwareAddr, staRSNE *rsne.Rsne, peerAddr net.HardwareAddr, peerRSNE *rsne.Rsne) (Config, error) {
	if role != rsna.RoleAuthenticator && role != rsna.RoleSupplicant {
		return Config{}, fmt.Errorf("%w: unknown role %d", ErrInvalidConfig, int(role))
	}
	if len(staAddr) != 6 || len(peerAddr) != 6 {
		return Config{}, fmt.Errorf("%w: addresses must be 6 octets", ErrInvalidConfig)
	}
	if staRSNE == nil || peerRSNE == nil {
		return Config{}, fmt.Errorf("%w: both RSNEs are required", ErrInvalidConfig)
	}

	c := Config{
		role:     role,
		staAddr:  append(net.HardwareAddr(nil), staAddr...),
		staRSNE:  staRSNE.Clone(),
		peerAddr: append(net.HardwareAddr(nil), peerAddr...),
		peerRSNE: peerRSNE.Clone(),
	}
	n, err := rsne.Negotiate(c.AuthenticatorRSNE(), c.SupplicantRSNE())
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfigNegotiationFailed, err)
	}
	c.negotiated = n
	return c, nil
}

func (c Config) Role() rsna.Role              { return c.role }
func (c Config) StaAddr() net.HardwareAddr    { return c.staAddr }
func (c Config) PeerAddr() net.HardwareAddr   { return c.peerAddr }
func (c Config) StaRSNE() *rsne.Rsne          { return c.staRSNE.Clone() }
func (c Config) PeerRSNE() *rsne.Rsne         { return c.peerRSNE.Clone() }
func (c Config) Negotiated() *rsne.Negotiated { return c.negotiated }
func (c Config) valid() bool                  { return c.negotiated != nil }

func (c Config) AuthenticatorAddr() net.HardwareAddr {
	if c.role == rsna.RoleAuthenticator {
		return c.staAddr
	}
	return c.peerAddr
}

func (c Config) SupplicantAddr() net.HardwareAddr {
	if c.role == rsna.RoleSupplicant {
		return c.staAddr
	}
	return c.peerAddr
}

// AuthenticatorRSNE and SupplicantRSNE return copies; the Config keeps its own.
func (c Config) AuthenticatorRSNE() *rsne.Rsne {
	if c.role == rsna.RoleAuthenticator {
		return c.staRSNE.Clone()
	}
	return c.peerRSNE.Clone()
}

func (c Config) SupplicantRSNE() *rsne.Rsne {
	if c.role == rsna.RoleSupplicant {
		return c.staRSNE.Clone()
	}
	return c.peerRSNE.Clone()
}
