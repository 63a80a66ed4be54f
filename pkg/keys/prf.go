package keys

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"fmt"
	"net"

	"golang.org/x/crypto/pbkdf2"

	"wlanrsn-go/pkg/securestore"
)

const (
	pmkLen        = 32
	pskIterations = 4096
	ptkLabel      = "Pairwise key expansion"
)

// PRF is the SHA-1 based pseudo-random function of IEEE Std 802.11-2016, 12.7.1.2.
// bits must be a multiple of 8.
func PRF(key []byte, label string, data []byte, bits int) []byte {
	h := hmac.New(sha1.New, key)
	out := make([]byte, 0, (bits+159)/160*sha1.Size)
	for i := 0; len(out) < bits/8; i++ {
		h.Reset()
		h.Write([]byte(label))
		h.Write([]byte{0x00})
		h.Write(data)
		h.Write([]byte{byte(i)})
		out = h.Sum(out)
	}
	return out[:bits/8]
}

// PSK derives a PMK from an ASCII passphrase and SSID (IEEE Std 802.11-2016, J.4.1).
func PSK(passphrase, ssid string) ([]byte, error) {
	if len(passphrase) < 8 || len(passphrase) > 63 {
		return nil, fmt.Errorf("%w: expected 8-63 characters, got %d", ErrInvalidPassphrase, len(passphrase))
	}
	for _, c := range passphrase {
		if c < 32 || c > 126 {
			return nil, fmt.Errorf("%w: invalid character %#x", ErrInvalidPassphrase, c)
		}
	}
	if len(ssid) == 0 || len(ssid) > 32 {
		return nil, fmt.Errorf("%w: SSID must be 1-32 octets, got %d", ErrInvalidSSID, len(ssid))
	}
	return pbkdf2.Key([]byte(passphrase), []byte(ssid), pskIterations, pmkLen, sha1.New), nil
}

// PTK is a pairwise transient key held in guarded memory.
type PTK struct {
	secret *securestore.Secret
	kckLen int
	kekLen int
}

// DerivePTK computes the PTK from the PMK, both station addresses and both
// nonces (IEEE Std 802.11-2016, 12.7.1.3).
func DerivePTK(pmk []byte, aa, spa net.HardwareAddr, anonce, snonce []byte, kckLen, kekLen, tkLen int) (*PTK, error) {
	if len(pmk) == 0 {
		return nil, ErrEmptyPMK
	}
	if kckLen <= 0 || kekLen <= 0 || tkLen <= 0 {
		return nil, fmt.Errorf("invalid PTK layout %d/%d/%d", kckLen, kekLen, tkLen)
	}
	data := make([]byte, 0, 2*len(aa)+2*len(anonce))
	data = append(data, minBytes(aa, spa)...)
	data = append(data, maxBytes(aa, spa)...)
	data = append(data, minBytes(anonce, snonce)...)
	data = append(data, maxBytes(anonce, snonce)...)

	raw := PRF(pmk, ptkLabel, data, (kckLen+kekLen+tkLen)*8)
	return &PTK{
		secret: securestore.NewSecretFromBytes(raw),
		kckLen: kckLen,
		kekLen: kekLen,
	}, nil
}

func (p *PTK) KCK() []byte {
	return p.secret.Bytes()[:p.kckLen]
}

func (p *PTK) KEK() []byte {
	return p.secret.Bytes()[p.kckLen : p.kckLen+p.kekLen]
}

func (p *PTK) TK() []byte {
	return p.secret.Bytes()[p.kckLen+p.kekLen:]
}

// Destroy wipes the key. Accessors must not be used afterwards.
func (p *PTK) Destroy() {
	if p != nil {
		p.secret.Destroy()
	}
}

func minBytes(a, b []byte) []byte {
	if bytes.Compare(a, b) < 0 {
		return a
	}
	return b
}

func maxBytes(a, b []byte) []byte {
	if bytes.Compare(a, b) > 0 {
		return a
	}
	return b
}
