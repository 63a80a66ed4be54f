package keys

import (
	"bytes"
	"crypto/md5"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rfc2548Encrypt is a helper function to create test vectors for MS-MPPE-Key decryption testing.
// It implements the encryption process described in RFC 2548, Section 2.4.3.
func rfc2548Encrypt(t *testing.T, secret, authenticator, salt, plainKey []byte) []byte {
	t.Helper()
	require.Len(t, salt, 2)
	plain := append([]byte{byte(len(plainKey))}, plainKey...)
	padded := make([]byte, (len(plain)+15)&^15)
	copy(padded, plain)

	out := make([]byte, len(padded))
	b := md5.Sum(append(append(append([]byte{}, secret...), authenticator...), salt...))
	for i := 0; i < len(padded); i += 16 {
		if i > 0 {
			b = md5.Sum(append(append([]byte{}, secret...), out[i-16:i]...))
		}
		for j := 0; j < 16; j++ {
			out[i+j] = padded[i+j] ^ b[j]
		}
	}
	return append(append([]byte{}, salt...), out...)
}

// TestPMKFromMPPEKey verifies the decryption logic against RFC 2548 encryption.
func TestPMKFromMPPEKey(t *testing.T) {
	secret := []byte("thisisasecret")
	authenticator := bytes.Repeat([]byte{0x5a}, 16)
	salt := []byte{0x80, 0x01}
	pmk := make([]byte, 32)
	for i := range pmk {
		pmk[i] = byte(i + 1)
	}

	encrypted := rfc2548Encrypt(t, secret, authenticator, salt, pmk)
	require.Len(t, encrypted, 2+48)

	decrypted, err := PMKFromMPPEKey(encrypted, secret, authenticator)
	require.NoError(t, err)
	assert.Equal(t, pmk, decrypted)

	wrong, err := PMKFromMPPEKey(encrypted, []byte("wrong secret"), authenticator)
	if err == nil {
		assert.NotEqual(t, pmk, wrong)
	}
}

func TestPMKFromMPPEKeyMalformed(t *testing.T) {
	_, err := PMKFromMPPEKey([]byte{0x80}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidMPPEKey)

	_, err = PMKFromMPPEKey(make([]byte, 2+17), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidMPPEKey)
}

func TestGroupKey(t *testing.T) {
	gtk, err := NewGroupKey(1, 16)
	require.NoError(t, err)
	defer gtk.Destroy()
	assert.Equal(t, uint16(1), gtk.KeyID)
	assert.Equal(t, 16, gtk.Len())

	src := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	fixed := GroupKeyFromBytes(4, src)
	defer fixed.Destroy()
	assert.Equal(t, src, fixed.Bytes())
	assert.Equal(t, byte(1), src[0], "source must not be wiped")
}
