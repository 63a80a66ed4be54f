package fourway

import (
	"bytes"
	"fmt"

	"github.com/rs/zerolog"

	"wlanrsn-go/pkg/eapol"
	"wlanrsn-go/pkg/keys"
	"wlanrsn-go/pkg/rsna"
	"wlanrsn-go/pkg/securestore"
)

// Authenticator frames are sent with 802.1X-2004, which every supplicant
// accepts.
const authenticatorFrameVersion = eapol.ProtocolVersionIeee802dot1x2004

type authenticator struct {
	cfg    Config
	pmk    *securestore.Secret
	gtk    *keys.GroupKey
	igtk   *keys.GroupKey
	nonces NonceSource
	logger zerolog.Logger
}

type authState interface {
	roleState
	initiate(sink *rsna.UpdateSink, krc uint64) (authState, error)
	onFrame(sink *rsna.UpdateSink, f *Frame) (authState, error)
}

// fail moves to Failed, wiping the secrets of from.
func (a *authenticator) fail(sink *rsna.UpdateSink, from authState, err error) (authState, error) {
	from.destroy()
	sink.Push(rsna.HandshakeFailed(err))
	a.logger.Warn().Err(err).Str("state", from.state().String()).Msg("Handshake failed")
	return &authFailed{err: err}, err
}

func (a *authenticator) unexpected(sink *rsna.UpdateSink, from authState, msg MessageNumber) (authState, error) {
	return a.fail(sink, from, messageError(ErrUnexpectedMessage, msg))
}

func (a *authenticator) message1(anonce [eapol.NonceLen]byte, krc uint64) *eapol.KeyFrame {
	n := a.cfg.Negotiated()
	f := newKeyFrame(authenticatorFrameVersion, n, krc, anonce, eapol.KeyInfoKeyAck)
	f.KeyLength = uint16(n.TKLen())
	return f
}

func (a *authenticator) message3(anonce [eapol.NonceLen]byte, krc uint64, ptk *keys.PTK) (*eapol.KeyFrame, error) {
	n := a.cfg.Negotiated()
	kd := &eapol.KeyData{
		RSNE: a.cfg.AuthenticatorRSNE().Bytes(),
		GTK:  &eapol.GTKKDE{KeyID: uint8(a.gtk.KeyID), Key: a.gtk.Bytes()},
	}
	if a.igtk != nil {
		kd.IGTK = &eapol.IGTKKDE{KeyID: a.igtk.KeyID, Key: a.igtk.Bytes()}
	}
	raw := kd.Bytes()
	plaintext := eapol.Pad(raw)
	clear(raw)
	wrapped, err := keys.Wrap(ptk.KEK(), plaintext)
	clear(plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap key data: %w", err)
	}

	bits := eapol.KeyInfoInstall | eapol.KeyInfoKeyAck | eapol.KeyInfoKeyMIC | eapol.KeyInfoSecure | eapol.KeyInfoEncryptedKeyData
	f := newKeyFrame(authenticatorFrameVersion, n, krc, anonce, bits)
	f.KeyLength = uint16(n.TKLen())
	f.SetKeyData(wrapped)
	if err := f.UpdateMIC(ptk.KCK()); err != nil {
		return nil, err
	}
	return f, nil
}

func (a *authenticator) installKeys(sink *rsna.UpdateSink, ptk *keys.PTK) {
	n := a.cfg.Negotiated()
	sink.Push(rsna.InstallPairwiseKey(&rsna.Key{
		Peer:     a.cfg.PeerAddr(),
		Cipher:   n.Pairwise,
		Material: bytes.Clone(ptk.TK()),
	}))
	sink.Push(rsna.InstallGroupKey(&rsna.Key{
		KeyID:    a.gtk.KeyID,
		Cipher:   n.GroupData,
		Material: bytes.Clone(a.gtk.Bytes()),
	}))
	if a.igtk != nil {
		sink.Push(rsna.InstallIntegrityKey(&rsna.Key{
			KeyID:    a.igtk.KeyID,
			Cipher:   *n.GroupMgmt,
			Material: bytes.Clone(a.igtk.Bytes()),
		}))
	}
}

type authIdle struct {
	a *authenticator
}

func (s *authIdle) state() State { return StateIdle }
func (s *authIdle) destroy()     {}

func (s *authIdle) initiate(sink *rsna.UpdateSink, krc uint64) (authState, error) {
	anonce := s.a.nonces.Next()
	krc++
	sink.Push(rsna.TxKeyFrame(s.a.message1(anonce, krc)))
	return &authAwaitingMessage2{a: s.a, anonce: anonce, krc: krc}, nil
}

func (s *authIdle) onFrame(sink *rsna.UpdateSink, f *Frame) (authState, error) {
	return s.a.unexpected(sink, s, f.Message)
}

type authAwaitingMessage2 struct {
	a      *authenticator
	anonce [eapol.NonceLen]byte
	krc    uint64
}

func (s *authAwaitingMessage2) state() State { return StateAwaitingMessage2 }
func (s *authAwaitingMessage2) destroy()     { clear(s.anonce[:]) }

func (s *authAwaitingMessage2) initiate(*rsna.UpdateSink, uint64) (authState, error) {
	return s, ErrNotIdle
}

func (s *authAwaitingMessage2) onFrame(sink *rsna.UpdateSink, f *Frame) (authState, error) {
	a := s.a
	if f.Message != Message2 {
		return a.unexpected(sink, s, f.Message)
	}
	if f.KeyFrame.KeyReplayCounter != s.krc {
		return a.fail(sink, s, messageError(ErrInvalidReplayCounter, Message2))
	}

	n := a.cfg.Negotiated()
	ptk, err := keys.DerivePTK(a.pmk.Bytes(), a.cfg.AuthenticatorAddr(), a.cfg.SupplicantAddr(),
		s.anonce[:], f.KeyFrame.KeyNonce[:], n.KCKLen(), n.KEKLen(), n.TKLen())
	if err != nil {
		return a.fail(sink, s, err)
	}
	if ok, err := f.KeyFrame.HasValidMIC(ptk.KCK()); err != nil || !ok {
		ptk.Destroy()
		return a.fail(sink, s, messageError(ErrInvalidMIC, Message2))
	}

	ie, err := rsneFromKeyData(f.KeyData)
	if err != nil {
		ptk.Destroy()
		return a.fail(sink, s, messageError(err, Message2))
	}
	if !bytes.Equal(ie, a.cfg.SupplicantRSNE().Bytes()) {
		ptk.Destroy()
		return a.fail(sink, s, messageError(ErrRSNEMismatch, Message2))
	}

	msg3, err := a.message3(s.anonce, s.krc+1, ptk)
	if err != nil {
		ptk.Destroy()
		return a.fail(sink, s, err)
	}
	sink.Push(rsna.TxKeyFrame(msg3))
	return &authAwaitingMessage4{a: a, krc: s.krc + 1, ptk: ptk}, nil
}

type authAwaitingMessage4 struct {
	a   *authenticator
	krc uint64
	ptk *keys.PTK
}

func (s *authAwaitingMessage4) state() State { return StateAwaitingMessage4 }
func (s *authAwaitingMessage4) destroy()     { s.ptk.Destroy() }

func (s *authAwaitingMessage4) initiate(*rsna.UpdateSink, uint64) (authState, error) {
	return s, ErrNotIdle
}

func (s *authAwaitingMessage4) onFrame(sink *rsna.UpdateSink, f *Frame) (authState, error) {
	a := s.a
	if f.Message != Message4 {
		return a.unexpected(sink, s, f.Message)
	}
	if f.KeyFrame.KeyReplayCounter != s.krc {
		return a.fail(sink, s, messageError(ErrInvalidReplayCounter, Message4))
	}
	if ok, err := f.KeyFrame.HasValidMIC(s.ptk.KCK()); err != nil || !ok {
		return a.fail(sink, s, messageError(ErrInvalidMIC, Message4))
	}

	a.installKeys(sink, s.ptk)
	sink.Push(rsna.HandshakeCompleted())
	return &authCompleted{a: a, ptk: s.ptk}, nil
}

type authCompleted struct {
	a   *authenticator
	ptk *keys.PTK
}

func (s *authCompleted) state() State { return StateCompleted }
func (s *authCompleted) destroy()     { s.ptk.Destroy() }

func (s *authCompleted) initiate(*rsna.UpdateSink, uint64) (authState, error) {
	return s, ErrNotIdle
}

func (s *authCompleted) onFrame(sink *rsna.UpdateSink, f *Frame) (authState, error) {
	return s.a.unexpected(sink, s, f.Message)
}

// authFailed is absorbing.
type authFailed struct {
	err error
}

func (s *authFailed) state() State { return StateFailed }
func (s *authFailed) destroy()     {}

func (s *authFailed) initiate(*rsna.UpdateSink, uint64) (authState, error) {
	return s, fmt.Errorf("%w: %w", ErrHandshakeFailed, s.err)
}

func (s *authFailed) onFrame(*rsna.UpdateSink, *Frame) (authState, error) {
	return s, fmt.Errorf("%w: %w", ErrHandshakeFailed, s.err)
}
