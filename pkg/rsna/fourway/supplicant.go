package fourway

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/rs/zerolog"

	"wlanrsn-go/pkg/eapol"
	"wlanrsn-go/pkg/keys"
	"wlanrsn-go/pkg/rsna"
	"wlanrsn-go/pkg/securestore"
)

type supplicant struct {
	cfg    Config
	pmk    *securestore.Secret
	nonces NonceSource
	logger zerolog.Logger
}

type suppState interface {
	roleState
	// referenceNonce is the ANonce Message 3 must carry, if known.
	referenceNonce() []byte
	onFrame(sink *rsna.UpdateSink, krc uint64, f *Frame) (suppState, error)
}

func (p *supplicant) fail(sink *rsna.UpdateSink, from suppState, err error) (suppState, error) {
	from.destroy()
	sink.Push(rsna.HandshakeFailed(err))
	p.logger.Warn().Err(err).Str("state", from.state().String()).Msg("Handshake failed")
	return &suppFailed{err: err}, err
}

func (p *supplicant) unexpected(sink *rsna.UpdateSink, from suppState, msg MessageNumber) (suppState, error) {
	return p.fail(sink, from, messageError(ErrUnexpectedMessage, msg))
}

// belowFloor reports whether counter fails the caller's lower bound. A zero
// floor means the caller has accepted nothing on the link yet.
func belowFloor(counter, floor uint64) bool {
	return floor > 0 && counter <= floor
}

// replayed reports whether counter is not newer than both the last counter
// accepted by this state machine and the caller's floor.
func replayed(counter, last, floor uint64) bool {
	return counter <= last || belowFloor(counter, floor)
}

type suppIdle struct {
	p *supplicant
}

func (s *suppIdle) state() State           { return StateIdle }
func (s *suppIdle) destroy()               {}
func (s *suppIdle) referenceNonce() []byte { return nil }

func (s *suppIdle) onFrame(sink *rsna.UpdateSink, krc uint64, f *Frame) (suppState, error) {
	if f.Message != Message1 {
		return s.p.unexpected(sink, s, f.Message)
	}
	if belowFloor(f.KeyFrame.KeyReplayCounter, krc) {
		return s.p.fail(sink, s, messageError(ErrInvalidReplayCounter, Message1))
	}
	s.p.logger.Debug().Str("from", StateIdle.String()).Str("to", StateResponding.String()).Msg("Handshake state transition")
	return (&suppResponding{p: s.p, msg1: f}).respond(sink)
}

// suppResponding only exists while Message 2 is being built.
type suppResponding struct {
	p    *supplicant
	msg1 *Frame
}

func (s *suppResponding) state() State           { return StateResponding }
func (s *suppResponding) destroy()               {}
func (s *suppResponding) referenceNonce() []byte { return nil }

func (s *suppResponding) onFrame(sink *rsna.UpdateSink, _ uint64, f *Frame) (suppState, error) {
	return s.p.unexpected(sink, s, f.Message)
}

func (s *suppResponding) respond(sink *rsna.UpdateSink) (suppState, error) {
	p := s.p
	n := p.cfg.Negotiated()
	msg1 := s.msg1.KeyFrame
	snonce := p.nonces.Next()

	ptk, err := keys.DerivePTK(p.pmk.Bytes(), p.cfg.AuthenticatorAddr(), p.cfg.SupplicantAddr(),
		msg1.KeyNonce[:], snonce[:], n.KCKLen(), n.KEKLen(), n.TKLen())
	if err != nil {
		return p.fail(sink, s, err)
	}

	msg2 := newKeyFrame(msg1.Version, n, msg1.KeyReplayCounter, snonce, eapol.KeyInfoKeyMIC)
	msg2.SetKeyData(p.cfg.SupplicantRSNE().Bytes())
	if err := msg2.UpdateMIC(ptk.KCK()); err != nil {
		ptk.Destroy()
		return p.fail(sink, s, err)
	}
	sink.Push(rsna.TxKeyFrame(msg2))

	return &suppAwaitingMessage3{
		p:      p,
		anonce: msg1.KeyNonce,
		krc:    msg1.KeyReplayCounter,
		ptk:    ptk,
	}, nil
}

type suppAwaitingMessage3 struct {
	p      *supplicant
	anonce [eapol.NonceLen]byte
	krc    uint64
	ptk    *keys.PTK
}

func (s *suppAwaitingMessage3) state() State           { return StateAwaitingMessage3 }
func (s *suppAwaitingMessage3) destroy()               { s.ptk.Destroy() }
func (s *suppAwaitingMessage3) referenceNonce() []byte { return s.anonce[:] }

func (s *suppAwaitingMessage3) onFrame(sink *rsna.UpdateSink, krc uint64, f *Frame) (suppState, error) {
	p := s.p
	if f.Message != Message3 {
		return p.unexpected(sink, s, f.Message)
	}
	msg3 := f.KeyFrame
	if replayed(msg3.KeyReplayCounter, s.krc, krc) {
		return p.fail(sink, s, messageError(ErrInvalidReplayCounter, Message3))
	}
	if ok, err := msg3.HasValidMIC(s.ptk.KCK()); err != nil || !ok {
		return p.fail(sink, s, messageError(ErrInvalidMIC, Message3))
	}

	plaintext := f.KeyData
	if len(plaintext) == 0 {
		var err error
		plaintext, err = keys.Unwrap(s.ptk.KEK(), msg3.KeyData)
		if err != nil {
			return p.fail(sink, s, messageError(fmt.Errorf("%w: %w", ErrInvalidKeyData, err), Message3))
		}
	}
	kd, err := eapol.ParseKeyData(plaintext)
	clear(plaintext)
	if err != nil {
		return p.fail(sink, s, messageError(fmt.Errorf("%w: %w", ErrInvalidKeyData, err), Message3))
	}
	defer kd.Wipe()

	if err := p.checkKeyData(kd); err != nil {
		return p.fail(sink, s, messageError(err, Message3))
	}

	msg4 := newKeyFrame(msg3.Version, p.cfg.Negotiated(), msg3.KeyReplayCounter, [eapol.NonceLen]byte{}, eapol.KeyInfoKeyMIC|eapol.KeyInfoSecure)
	if err := msg4.UpdateMIC(s.ptk.KCK()); err != nil {
		return p.fail(sink, s, err)
	}
	sink.Push(rsna.TxKeyFrame(msg4))

	p.installKeys(sink, s.ptk, kd, msg3.KeyRSC)
	sink.Push(rsna.HandshakeCompleted())
	return &suppCompleted{p: p, ptk: s.ptk}, nil
}

func (p *supplicant) checkKeyData(kd *eapol.KeyData) error {
	n := p.cfg.Negotiated()
	if kd.RSNE == nil {
		return fmt.Errorf("%w: no RSNE", ErrInvalidKeyData)
	}
	if !bytes.Equal(kd.RSNE, p.cfg.AuthenticatorRSNE().Bytes()) {
		return ErrRSNEMismatch
	}
	if kd.GTK == nil || len(kd.GTK.Key) != n.GTKLen() {
		return fmt.Errorf("%w: missing or malformed GTK", ErrInvalidKeyData)
	}
	if n.MFP && (kd.IGTK == nil || len(kd.IGTK.Key) != n.IGTKLen()) {
		return fmt.Errorf("%w: missing or malformed IGTK", ErrInvalidKeyData)
	}
	return nil
}

func (p *supplicant) installKeys(sink *rsna.UpdateSink, ptk *keys.PTK, kd *eapol.KeyData, rsc uint64) {
	n := p.cfg.Negotiated()
	sink.Push(rsna.InstallPairwiseKey(&rsna.Key{
		Peer:     p.cfg.PeerAddr(),
		Cipher:   n.Pairwise,
		Material: bytes.Clone(ptk.TK()),
	}))
	sink.Push(rsna.InstallGroupKey(&rsna.Key{
		Peer:     p.cfg.PeerAddr(),
		KeyID:    uint16(kd.GTK.KeyID),
		Cipher:   n.GroupData,
		RSC:      rsc,
		Material: bytes.Clone(kd.GTK.Key),
	}))
	if n.MFP {
		var ipn [8]byte
		copy(ipn[:], kd.IGTK.IPN[:])
		sink.Push(rsna.InstallIntegrityKey(&rsna.Key{
			Peer:     p.cfg.PeerAddr(),
			KeyID:    kd.IGTK.KeyID,
			Cipher:   *n.GroupMgmt,
			RSC:      binary.LittleEndian.Uint64(ipn[:]),
			Material: bytes.Clone(kd.IGTK.Key),
		}))
	}
}

type suppCompleted struct {
	p   *supplicant
	ptk *keys.PTK
}

func (s *suppCompleted) state() State           { return StateCompleted }
func (s *suppCompleted) destroy()               { s.ptk.Destroy() }
func (s *suppCompleted) referenceNonce() []byte { return nil }

func (s *suppCompleted) onFrame(sink *rsna.UpdateSink, _ uint64, f *Frame) (suppState, error) {
	return s.p.unexpected(sink, s, f.Message)
}

// suppFailed is absorbing.
type suppFailed struct {
	err error
}

func (s *suppFailed) state() State           { return StateFailed }
func (s *suppFailed) destroy()               {}
func (s *suppFailed) referenceNonce() []byte { return nil }

func (s *suppFailed) onFrame(*rsna.UpdateSink, uint64, *Frame) (suppState, error) {
	return s, fmt.Errorf("%w: %w", ErrHandshakeFailed, s.err)
}
