// Package rsna holds the types shared between key exchange methods and the
// collaborators that feed them frames and consume their updates.
package rsna

import (
	"fmt"
	"net"

	"wlanrsn-go/pkg/eapol"
	"wlanrsn-go/pkg/rsne"
)

// Role is the side of the handshake a station plays.
type Role int

const (
	RoleAuthenticator Role = iota + 1
	RoleSupplicant
)

func (r Role) String() string {
	switch r {
	case RoleAuthenticator:
		return "authenticator"
	case RoleSupplicant:
		return "supplicant"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// UpdateKind identifies a SecAssocUpdate.
type UpdateKind int

const (
	UpdateTxKeyFrame UpdateKind = iota + 1
	UpdateInstallPairwiseKey
	UpdateInstallGroupKey
	UpdateInstallIntegrityKey
	UpdateHandshakeCompleted
	UpdateHandshakeFailed
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateTxKeyFrame:
		return "tx-key-frame"
	case UpdateInstallPairwiseKey:
		return "install-pairwise-key"
	case UpdateInstallGroupKey:
		return "install-group-key"
	case UpdateInstallIntegrityKey:
		return "install-integrity-key"
	case UpdateHandshakeCompleted:
		return "handshake-completed"
	case UpdateHandshakeFailed:
		return "handshake-failed"
	default:
		return fmt.Sprintf("update(%d)", int(k))
	}
}

// Key is key material ready to be installed into the data path. Material is a
// copy owned by the receiver of the update.
type Key struct {
	Peer     net.HardwareAddr
	KeyID    uint16
	Cipher   rsne.Suite
	RSC      uint64
	Material []byte
}

// Wipe zeroes the key material.
func (k *Key) Wipe() {
	clear(k.Material)
}

// SecAssocUpdate is an event produced by a key exchange for its caller.
// Frame is set for UpdateTxKeyFrame, Key for install updates and Err for
// UpdateHandshakeFailed.
type SecAssocUpdate struct {
	Kind  UpdateKind
	Frame *eapol.KeyFrame
	Key   *Key
	Err   error
}

func TxKeyFrame(f *eapol.KeyFrame) SecAssocUpdate {
	return SecAssocUpdate{Kind: UpdateTxKeyFrame, Frame: f}
}

func InstallPairwiseKey(k *Key) SecAssocUpdate {
	return SecAssocUpdate{Kind: UpdateInstallPairwiseKey, Key: k}
}

func InstallGroupKey(k *Key) SecAssocUpdate {
	return SecAssocUpdate{Kind: UpdateInstallGroupKey, Key: k}
}

func InstallIntegrityKey(k *Key) SecAssocUpdate {
	return SecAssocUpdate{Kind: UpdateInstallIntegrityKey, Key: k}
}

func HandshakeCompleted() SecAssocUpdate {
	return SecAssocUpdate{Kind: UpdateHandshakeCompleted}
}

func HandshakeFailed(err error) SecAssocUpdate {
	return SecAssocUpdate{Kind: UpdateHandshakeFailed, Err: err}
}

// UpdateSink is the caller-owned, append-only list of updates.
type UpdateSink []SecAssocUpdate

func (s *UpdateSink) Push(u SecAssocUpdate) {
	*s = append(*s, u)
}

// Kinds returns the kinds of all updates in order.
func (s UpdateSink) Kinds() []UpdateKind {
	kinds := make([]UpdateKind, len(s))
	for i, u := range s {
		kinds[i] = u.Kind
	}
	return kinds
}

// VerifiedKeyFrame is a frame whose integrity was checked by the caller where
// possible, together with its decrypted key data. An empty plaintext on a frame
// with encrypted key data leaves decryption to the key exchange, which owns
// the KEK.
type VerifiedKeyFrame struct {
	frame     *eapol.KeyFrame
	plaintext []byte
}

func NewVerifiedKeyFrame(frame *eapol.KeyFrame, keyDataPlaintext []byte) VerifiedKeyFrame {
	return VerifiedKeyFrame{frame: frame, plaintext: keyDataPlaintext}
}

// VerifyUnencrypted wraps a frame whose key data is not encrypted, using the
// key data itself as plaintext.
func VerifyUnencrypted(frame *eapol.KeyFrame) VerifiedKeyFrame {
	if frame.KeyInfo.EncryptedKeyData() {
		return VerifiedKeyFrame{frame: frame}
	}
	return VerifiedKeyFrame{frame: frame, plaintext: frame.KeyData}
}

func (v VerifiedKeyFrame) Frame() *eapol.KeyFrame { return v.frame }

func (v VerifiedKeyFrame) KeyDataPlaintext() []byte { return v.plaintext }
