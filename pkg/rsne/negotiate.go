package rsne

import (
	"fmt"
	"slices"
)

// Negotiated is the security association agreed between both stations.
type Negotiated struct {
	GroupData Suite
	Pairwise  Suite
	AKM       Suite
	MFP       bool
	GroupMgmt *Suite
}

var supportedAKMs = []Suite{AKMPSK, AKM8021X}

var supportedCiphers = []Suite{CipherCCMP128}

// Negotiate selects the suites used between an authenticator advertising
// auth and a supplicant requesting supp. The supplicant's preference order
// wins among the mutually offered suites.
func Negotiate(auth, supp *Rsne) (*Negotiated, error) {
	if auth == nil || supp == nil {
		return nil, fmt.Errorf("%w: missing RSN element", ErrNegotiationFailed)
	}

	group := auth.groupCipher()
	if supp.groupCipher() != group {
		return nil, fmt.Errorf("%w: group cipher mismatch %s != %s", ErrNegotiationFailed, supp.groupCipher(), group)
	}
	if !slices.Contains(supportedCiphers, group) {
		return nil, fmt.Errorf("%w: unsupported group cipher %s", ErrNegotiationFailed, group)
	}

	pairwise, ok := pick(supp.pairwiseCiphers(), auth.pairwiseCiphers(), supportedCiphers)
	if !ok {
		return nil, fmt.Errorf("%w: no common pairwise cipher", ErrNegotiationFailed)
	}

	akm, ok := pick(supp.akms(), auth.akms(), supportedAKMs)
	if !ok {
		for _, a := range supp.akms() {
			if slices.Contains(auth.akms(), a) {
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedAKM, a)
			}
		}
		return nil, fmt.Errorf("%w: no common AKM", ErrNegotiationFailed)
	}

	authCaps, suppCaps := auth.caps(), supp.caps()
	if authCaps.MFPRequired() && !suppCaps.MFPCapable() {
		return nil, fmt.Errorf("%w: authenticator requires MFP", ErrNegotiationFailed)
	}
	if suppCaps.MFPRequired() && !authCaps.MFPCapable() {
		return nil, fmt.Errorf("%w: supplicant requires MFP", ErrNegotiationFailed)
	}

	n := &Negotiated{
		GroupData: group,
		Pairwise:  pairwise,
		AKM:       akm,
		MFP:       authCaps.MFPCapable() && suppCaps.MFPCapable(),
	}
	if n.MFP {
		mgmt := CipherBIPCMAC128
		if auth.GroupMgmtCipher != nil {
			mgmt = *auth.GroupMgmtCipher
		}
		if mgmt != CipherBIPCMAC128 {
			return nil, fmt.Errorf("%w: unsupported group management cipher %s", ErrNegotiationFailed, mgmt)
		}
		n.GroupMgmt = &mgmt
	}
	return n, nil
}

func pick(preferred, offered, supported []Suite) (Suite, bool) {
	for _, s := range preferred {
		if slices.Contains(offered, s) && slices.Contains(supported, s) {
			return s, true
		}
	}
	return Suite{}, false
}

// KeyDescriptorVersion is the EAPOL-Key descriptor version used with the
// negotiated AKM and pairwise cipher.
func (n *Negotiated) KeyDescriptorVersion() uint8 {
	if n.Pairwise == CipherTKIP {
		return 1
	}
	return 2
}

func (n *Negotiated) KCKLen() int { return 16 }
func (n *Negotiated) KEKLen() int { return 16 }
func (n *Negotiated) MICLen() int { return 16 }

func (n *Negotiated) TKLen() int { return cipherKeyLen(n.Pairwise) }

func (n *Negotiated) GTKLen() int { return cipherKeyLen(n.GroupData) }

func (n *Negotiated) IGTKLen() int {
	if n.GroupMgmt == nil {
		return 0
	}
	return 16
}

func cipherKeyLen(s Suite) int {
	switch s {
	case CipherTKIP, CipherGCMP256:
		return 32
	default:
		return 16
	}
}
