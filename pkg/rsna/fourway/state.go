package fourway

import (
	"fmt"

	"wlanrsn-go/pkg/eapol"
	"wlanrsn-go/pkg/rsne"
)

// State is the externally visible state of a role state machine.
type State int

const (
	StateIdle State = iota
	StateAwaitingMessage2
	StateAwaitingMessage4
	StateResponding
	StateAwaitingMessage3
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingMessage2:
		return "AwaitingMessage2"
	case StateAwaitingMessage4:
		return "AwaitingMessage4"
	case StateResponding:
		return "Responding"
	case StateAwaitingMessage3:
		return "AwaitingMessage3"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// roleState is the behavior common to the states of both roles.
type roleState interface {
	state() State
	// destroy wipes secrets held by the state.
	destroy()
}

// newKeyFrame builds a pairwise EAPOL-Key frame with the negotiated
// descriptor version.
func newKeyFrame(version eapol.ProtocolVersion, n *rsne.Negotiated, krc uint64, nonce [eapol.NonceLen]byte, bits eapol.KeyInfo) *eapol.KeyFrame {
	return &eapol.KeyFrame{
		Version:          version,
		DescriptorType:   eapol.DescriptorTypeIEEE80211,
		KeyInfo:          eapol.KeyInfo(0).WithDescriptorVersion(n.KeyDescriptorVersion()).With(eapol.KeyInfoKeyType | bits),
		KeyReplayCounter: krc,
		KeyNonce:         nonce,
	}
}

// rsneFromKeyData extracts the RSNE carried in plaintext key data.
func rsneFromKeyData(plaintext []byte) ([]byte, error) {
	kd, err := eapol.ParseKeyData(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyData, err)
	}
	if kd.RSNE == nil {
		return nil, fmt.Errorf("%w: no RSNE", ErrInvalidKeyData)
	}
	return kd.RSNE, nil
}
