package fourway

import (
	"errors"
	"fmt"

	"wlanrsn-go/pkg/eapol"
)

var (
	ErrUnexpectedMessage               = errors.New("unexpected message")
	ErrInvalidInstallBitValue          = errors.New("invalid install bit value")
	ErrInvalidKeyAckBitValue           = errors.New("invalid key_ack bit value")
	ErrInvalidKeyMicBitValue           = errors.New("invalid key_mic bit value")
	ErrInvalidSecureBitValue           = errors.New("invalid secure bit value")
	ErrInvalidErrorBitValue            = errors.New("invalid error bit value")
	ErrInvalidRequestBitValue          = errors.New("invalid request bit value")
	ErrInvalidEncryptedKeyDataBitValue = errors.New("invalid encrypted_key_data bit value")
	ErrInvalidNonce                    = errors.New("invalid nonce")
	ErrInvalidIV                       = errors.New("invalid IV")
	ErrInvalidRSC                      = errors.New("invalid RSC")
	ErrEmptyKeyData                    = errors.New("empty key data")
	ErrInvalidMIC                      = errors.New("invalid MIC")
	ErrInvalidReplayCounter            = errors.New("invalid key replay counter")
	ErrInvalidKeyData                  = errors.New("invalid key data")
	ErrRSNEMismatch                    = errors.New("RSNE does not match the associated RSNE")
	ErrUnsupportedKeyType              = errors.New("group key handshake frames are not supported")
	ErrSMKUnsupported                  = errors.New("SMK handshake frames are not supported")

	ErrConfigNegotiationFailed = errors.New("config negotiation failed")
	ErrInvalidConfig           = errors.New("invalid handshake config")
	ErrHandshakeFailed         = errors.New("handshake already failed")
	ErrNotIdle                 = errors.New("handshake already initiated")
)

// MessageError tags a frame-level error with the message it was raised for.
// Version is only set for IV violations, whose legality depends on it.
type MessageError struct {
	Err     error
	Message MessageNumber
	Version eapol.ProtocolVersion
}

func (e *MessageError) Error() string {
	if e.Version != 0 {
		return fmt.Sprintf("%s: %v (protocol version %d)", e.Message, e.Err, e.Version)
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *MessageError) Unwrap() error {
	return e.Err
}

func messageError(err error, msg MessageNumber) error {
	return &MessageError{Err: err, Message: msg}
}
