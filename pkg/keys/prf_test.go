package keys

import (
	"bytes"
	"encoding/hex"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

// TestPSK verifies passphrase mapping against IEEE Std 802.11-2016, J.4.2.
func TestPSK(t *testing.T) {
	tests := []struct {
		passphrase string
		ssid       string
		expected   string
	}{
		{"password", "IEEE", "f42c6fc52df0ebef9ebb4b90b38a5f902e83fe1b135a70e23aed762e9710a12e"},
		{"ThisIsAPassword", "ThisIsASSID", "0dc0d6eb90555ed6419756b9a15ec3e3209b63df707dd508d14581f8982721af"},
		{"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "ZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZ", "becb93866bb8c3832cb777c2f559807c8c59afcb6eae734885001300a981cc62"},
	}
	for _, tt := range tests {
		t.Run(tt.ssid, func(t *testing.T) {
			pmk, err := PSK(tt.passphrase, tt.ssid)
			require.NoError(t, err)
			assert.Equal(t, mustHex(t, tt.expected), pmk)
		})
	}
}

func TestPSKRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name       string
		passphrase string
		ssid       string
		expected   error
	}{
		{"too short", "short", "An SSID", ErrInvalidPassphrase},
		{"too long", "1234567890123456789012345678901234567890123456789012345678901234", "SSID", ErrInvalidPassphrase},
		{"control character", "Invalid Char \x1F", "SSID", ErrInvalidPassphrase},
		{"non-ascii", "Lorem ipsum ß dolor", "SSID", ErrInvalidPassphrase},
		{"empty ssid", "password", "", ErrInvalidSSID},
		{"long ssid", "password", string(bytes.Repeat([]byte("s"), 33)), ErrInvalidSSID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PSK(tt.passphrase, tt.ssid)
			assert.ErrorIs(t, err, tt.expected)
		})
	}

	_, err := PSK("\x20ASCII Bound Test \x7E", "SSID")
	assert.NoError(t, err, "printable ASCII bounds must be accepted")
}

// TestPRF verifies the PRF against IEEE Std 802.11-2016, J.3.2 and J.6.5.
func TestPRF(t *testing.T) {
	tests := []struct {
		name     string
		key      []byte
		label    string
		data     []byte
		bits     int
		expected string
	}{
		{"J.3.2 case 1", bytes.Repeat([]byte{0x0b}, 20), "prefix", []byte("Hi There"), 512,
			"bcd4c650b30b9684951829e0d75f9d54b862175ed9f00606e17d8da35402ffee75df78c3d31e0f889f012120c0862beb67753e7439ae242edb8373698356cf5a"},
		{"J.3.2 case 2", []byte("Jefe"), "prefix", []byte("what do ya want for nothing?"), 512,
			"51f4de5b33f249adf81aeb713a3c20f4fe631446fabdfa58244759ae58ef9009a99abf4eac2ca5fa87e692c440eb40023e7babb206d61de7b92f41529092b8fc"},
		{"J.3.2 case 3", bytes.Repeat([]byte{0xaa}, 20), "prefix", bytes.Repeat([]byte{0xdd}, 50), 512,
			"e1ac546ec4cb636f9976487be5c86be17a0252ca5d8d8df12cfb0473525249ce9dd8d177ead710bc9b590547239107aef7b4abd43d87f0a68f1cbd9e2b6f7607"},
		{"J.6.5 case 1", bytes.Repeat([]byte{0x0b}, 20), "prefix", []byte("Hi There"), 192,
			"bcd4c650b30b9684951829e0d75f9d54b862175ed9f00606"},
		{"J.6.5 case 2", []byte("Jefe"), "prefix-2", []byte("what do ya want for nothing?"), 256,
			"47c4908e30c947521ad20be9053450ecbea23d3aa604b77326d8b3825ff7475c"},
		{"empty key", []byte{}, "something is happening", []byte("Lorem ipsum"), 256,
			"5b154287399baeabd7d2c9682989e0933b3fdef8211ae7ae0c6586bb1e38de7c"},
		{"all empty", []byte{}, "", []byte{}, 128, "310354661a5962d5b8cb76032d5a97e8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, mustHex(t, tt.expected), PRF(tt.key, tt.label, tt.data, tt.bits))
		})
	}

	assert.Empty(t, PRF([]byte{0xaa}, "prefix", nil, 0))
}

// TestDerivePTK verifies PTK derivation against a known CCMP vector.
func TestDerivePTK(t *testing.T) {
	pmk := mustHex(t, "0dc0d6eb90555ed6419756b9a15ec3e3209b63df707dd508d14581f8982721af")
	anonce := mustHex(t, "e0e1e2e3e4e5e6e7e8e9f0f1f2f3f4f5f6f7f8f9fafbfcfdfeff000102030405")
	snonce := mustHex(t, "c0c1c2c3c4c5c6c7c8c9d0d1d2d3d4d5d6d7d8d9dadbdcdddedfe0e1e2e3e4e5")
	aa := net.HardwareAddr(mustHex(t, "a0a1a1a3a4a5"))
	spa := net.HardwareAddr(mustHex(t, "b0b1b2b3b4b5"))

	ptk, err := DerivePTK(pmk, aa, spa, anonce, snonce, 16, 16, 16)
	require.NoError(t, err)
	defer ptk.Destroy()

	assert.Equal(t, mustHex(t, "379f9852d0199236b94e407ce4c00ec8"), ptk.KCK())
	assert.Equal(t, mustHex(t, "47c9edc01c2c6e5b4910caddfb3e51a7"), ptk.KEK())
	assert.Equal(t, mustHex(t, "b2360c79e9710fdd58bea93deaf06599"), ptk.TK())

	swapped, err := DerivePTK(pmk, spa, aa, snonce, anonce, 16, 16, 16)
	require.NoError(t, err)
	defer swapped.Destroy()
	assert.Equal(t, ptk.TK(), swapped.TK(), "derivation must not depend on argument order")
}

func TestDerivePTKRejectsBadInput(t *testing.T) {
	aa := net.HardwareAddr{1, 2, 3, 4, 5, 6}
	_, err := DerivePTK(nil, aa, aa, nil, nil, 16, 16, 16)
	assert.ErrorIs(t, err, ErrEmptyPMK)

	_, err = DerivePTK([]byte{1}, aa, aa, nil, nil, 16, 0, 16)
	assert.Error(t, err)
}
