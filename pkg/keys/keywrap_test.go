package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWrap verifies key wrapping against RFC 3394, 4.1 and 4.2.
func TestWrap(t *testing.T) {
	tests := []struct {
		name     string
		kek      string
		data     string
		expected string
	}{
		{"128 bit KEK", "000102030405060708090a0b0c0d0e0f", "00112233445566778899aabbccddeeff",
			"1fa68b0a8112b447aef34bd8fb5a7b829d3e862371d2cfe5"},
		{"192 bit KEK", "000102030405060708090a0b0c0d0e0f1011121314151617", "00112233445566778899aabbccddeeff",
			"96778b25ae6ca435f92b5b97c050aed2468ab8a17ad84e5d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kek := mustHex(t, tt.kek)
			wrapped, err := Wrap(kek, mustHex(t, tt.data))
			require.NoError(t, err)
			assert.Equal(t, mustHex(t, tt.expected), wrapped)

			unwrapped, err := Unwrap(kek, wrapped)
			require.NoError(t, err)
			assert.Equal(t, mustHex(t, tt.data), unwrapped)
		})
	}
}

func TestUnwrapDetectsTampering(t *testing.T) {
	kek := mustHex(t, "000102030405060708090a0b0c0d0e0f")
	plaintext := make([]byte, 40)
	for i := range plaintext {
		plaintext[i] = byte(i)
	}
	wrapped, err := Wrap(kek, plaintext)
	require.NoError(t, err)
	require.Len(t, wrapped, 48)

	wrapped[20] ^= 0x01
	_, err = Unwrap(kek, wrapped)
	assert.ErrorIs(t, err, ErrKeyUnwrapIntegrity)

	wrapped[20] ^= 0x01
	_, err = Unwrap(mustHex(t, "0f0e0d0c0b0a09080706050403020100"), wrapped)
	assert.ErrorIs(t, err, ErrKeyUnwrapIntegrity)
}

func TestWrapRejectsBadLengths(t *testing.T) {
	kek := make([]byte, 16)
	_, err := Wrap(kek, make([]byte, 8))
	assert.ErrorIs(t, err, ErrInvalidKeyWrap)
	_, err = Wrap(kek, make([]byte, 20))
	assert.ErrorIs(t, err, ErrInvalidKeyWrap)
	_, err = Wrap(make([]byte, 5), make([]byte, 16))
	assert.ErrorIs(t, err, ErrInvalidKeyWrap)
	_, err = Unwrap(kek, make([]byte, 16))
	assert.ErrorIs(t, err, ErrInvalidKeyWrap)
}
