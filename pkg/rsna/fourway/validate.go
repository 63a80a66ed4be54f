package fourway

import (
	"bytes"

	"wlanrsn-go/pkg/eapol"
)

type bitRule int

const (
	bitClear bitRule = iota
	bitSet
	// bitClearTolerated must be clear but is only enforced in strict mode.
	bitClearTolerated
)

type nonceRule int

const (
	nonceUnchecked nonceRule = iota
	nonceNonZero
	// nonceMatchesReference is non-zero and equal to the reference nonce when
	// one is supplied.
	nonceMatchesReference
)

type ivRule int

const (
	ivZero ivRule = iota
	// ivZeroSince2010 only requires a zero IV from 802.1X-2010 onwards.
	ivZeroSince2010
)

type messageRules struct {
	bits           map[eapol.KeyInfo]bitRule
	nonce          nonceRule
	iv             ivRule
	rscZero        bool
	keyDataNonZero bool
}

// keyInfoChecks lists the checked Key Information bits in the order they are
// validated, with the error raised when a bit violates its rule.
var keyInfoChecks = []struct {
	bit eapol.KeyInfo
	err error
}{
	{eapol.KeyInfoInstall, ErrInvalidInstallBitValue},
	{eapol.KeyInfoKeyAck, ErrInvalidKeyAckBitValue},
	{eapol.KeyInfoKeyMIC, ErrInvalidKeyMicBitValue},
	{eapol.KeyInfoSecure, ErrInvalidSecureBitValue},
	{eapol.KeyInfoError, ErrInvalidErrorBitValue},
	{eapol.KeyInfoRequest, ErrInvalidRequestBitValue},
	{eapol.KeyInfoEncryptedKeyData, ErrInvalidEncryptedKeyDataBitValue},
}

// validationRules is the per-message field requirement table
// (IEEE Std 802.11-2016, 12.7.6.2 to 12.7.6.5).
var validationRules = map[MessageNumber]messageRules{
	Message1: {
		bits: map[eapol.KeyInfo]bitRule{
			eapol.KeyInfoInstall:          bitClear,
			eapol.KeyInfoKeyAck:           bitSet,
			eapol.KeyInfoKeyMIC:           bitClearTolerated,
			eapol.KeyInfoSecure:           bitClear,
			eapol.KeyInfoError:            bitClear,
			eapol.KeyInfoRequest:          bitClear,
			eapol.KeyInfoEncryptedKeyData: bitClear,
		},
		nonce:   nonceNonZero,
		iv:      ivZero,
		rscZero: true,
	},
	Message2: {
		bits: map[eapol.KeyInfo]bitRule{
			eapol.KeyInfoInstall:          bitClear,
			eapol.KeyInfoKeyAck:           bitClear,
			eapol.KeyInfoKeyMIC:           bitSet,
			eapol.KeyInfoSecure:           bitClear,
			eapol.KeyInfoError:            bitClear,
			eapol.KeyInfoRequest:          bitClear,
			eapol.KeyInfoEncryptedKeyData: bitClear,
		},
		nonce:   nonceNonZero,
		iv:      ivZero,
		rscZero: true,
	},
	Message3: {
		bits: map[eapol.KeyInfo]bitRule{
			eapol.KeyInfoInstall:          bitSet,
			eapol.KeyInfoKeyAck:           bitSet,
			eapol.KeyInfoKeyMIC:           bitSet,
			eapol.KeyInfoSecure:           bitSet,
			eapol.KeyInfoError:            bitClear,
			eapol.KeyInfoRequest:          bitClear,
			eapol.KeyInfoEncryptedKeyData: bitSet,
		},
		nonce:          nonceMatchesReference,
		iv:             ivZeroSince2010,
		keyDataNonZero: true,
	},
	Message4: {
		bits: map[eapol.KeyInfo]bitRule{
			eapol.KeyInfoInstall:          bitClear,
			eapol.KeyInfoKeyAck:           bitClear,
			eapol.KeyInfoKeyMIC:           bitSet,
			eapol.KeyInfoSecure:           bitSet,
			eapol.KeyInfoError:            bitClear,
			eapol.KeyInfoRequest:          bitClear,
			eapol.KeyInfoEncryptedKeyData: bitClear,
		},
		nonce:   nonceUnchecked,
		iv:      ivZero,
		rscZero: true,
	},
}

// ValidationOptions carries caller state that some rules depend on.
type ValidationOptions struct {
	// ReferenceNonce, when set, must equal the nonce of Message 3.
	ReferenceNonce []byte
	// StrictMessage1MIC rejects Message 1 frames with the MIC bit set.
	StrictMessage1MIC bool
}

// Validate checks f against the rules of message msg and returns the first
// violation as a *MessageError.
func Validate(f *eapol.KeyFrame, msg MessageNumber, opts ValidationOptions) error {
	rules, ok := validationRules[msg]
	if !ok {
		return messageError(ErrUnexpectedMessage, msg)
	}

	if rules.keyDataNonZero && f.KeyDataLen == 0 {
		return messageError(ErrEmptyKeyData, msg)
	}

	for _, check := range keyInfoChecks {
		set := f.KeyInfo.IsSet(check.bit)
		switch rules.bits[check.bit] {
		case bitSet:
			if !set {
				return messageError(check.err, msg)
			}
		case bitClear:
			if set {
				return messageError(check.err, msg)
			}
		case bitClearTolerated:
			if set && opts.StrictMessage1MIC {
				return messageError(check.err, msg)
			}
		}
	}

	switch rules.nonce {
	case nonceNonZero:
		if isZero(f.KeyNonce[:]) {
			return messageError(ErrInvalidNonce, msg)
		}
	case nonceMatchesReference:
		if isZero(f.KeyNonce[:]) {
			return messageError(ErrInvalidNonce, msg)
		}
		if opts.ReferenceNonce != nil && !bytes.Equal(f.KeyNonce[:], opts.ReferenceNonce) {
			return messageError(ErrInvalidNonce, msg)
		}
	}

	if !isZero(f.KeyIV[:]) {
		if rules.iv == ivZero || f.Version >= eapol.ProtocolVersionIeee802dot1x2010 {
			return &MessageError{Err: ErrInvalidIV, Message: msg, Version: f.Version}
		}
	}

	if rules.rscZero && f.KeyRSC != 0 {
		return messageError(ErrInvalidRSC, msg)
	}
	return nil
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
