package securestore

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSecret(t *testing.T) {
	t.Run("passphrase", func(t *testing.T) {
		s := NewSecret("correct horse")
		defer s.Destroy()
		assert.True(t, s.IsSet())
		assert.Equal(t, 13, s.Len())
	})

	t.Run("empty", func(t *testing.T) {
		s := NewSecret("")
		assert.False(t, s.IsSet())
		assert.Zero(t, s.Len())
		assert.Nil(t, s.Bytes())
	})
}

func TestNewSecretFromBytesWipesInput(t *testing.T) {
	pmk := bytes.Repeat([]byte{0x42}, 32)
	s := NewSecretFromBytes(pmk)
	defer s.Destroy()

	assert.Equal(t, make([]byte, 32), pmk, "source slice must be wiped")
	assert.Equal(t, bytes.Repeat([]byte{0x42}, 32), s.Bytes())
}

func TestCopySecretKeepsInput(t *testing.T) {
	tk := []byte{0x01, 0x02, 0x03, 0x04}
	s := CopySecret(tk)
	defer s.Destroy()

	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, tk)
	assert.Equal(t, tk, s.Bytes())

	c := s.Clone()
	s.Destroy()
	defer c.Destroy()
	assert.Equal(t, tk, c.Bytes(), "a clone outlives its source")
}

func TestNilSecret(t *testing.T) {
	var s *Secret
	assert.False(t, s.IsSet())
	assert.Zero(t, s.Len())
	assert.Nil(t, s.Bytes())
	assert.Nil(t, s.Clone().Bytes())
	assert.NotPanics(t, s.Destroy)

	called := false
	require.NoError(t, s.Access(func(b []byte) error {
		called = true
		assert.Nil(t, b)
		return nil
	}))
	assert.True(t, called)
}

func TestAccess(t *testing.T) {
	s := NewSecret("radius-secret")
	defer s.Destroy()

	var seen []byte
	require.NoError(t, s.Access(func(b []byte) error {
		seen = append([]byte(nil), b...)
		return nil
	}))
	assert.Equal(t, []byte("radius-secret"), seen)

	sentinel := errors.New("boom")
	assert.ErrorIs(t, s.Access(func([]byte) error { return sentinel }), sentinel)
}

func TestEqualToConstantTime(t *testing.T) {
	s := CopySecret([]byte{0xaa, 0xbb})
	defer s.Destroy()

	tests := []struct {
		name  string
		value []byte
		want  bool
	}{
		{"equal", []byte{0xaa, 0xbb}, true},
		{"different", []byte{0xaa, 0xbc}, false},
		{"shorter", []byte{0xaa}, false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.EqualToConstantTime(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	var unset *Secret
	got, err := unset.EqualToConstantTime(nil)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestDestroy(t *testing.T) {
	s := CopySecret([]byte("kck"))
	s.Destroy()
	assert.False(t, s.IsSet())
	assert.Nil(t, s.Bytes())
	assert.NotPanics(t, s.Destroy, "second destroy is a no-op")
}

func TestConcurrentReads(t *testing.T) {
	s := CopySecret(bytes.Repeat([]byte{0x5c}, 16))
	defer s.Destroy()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.EqualToConstantTime(bytes.Repeat([]byte{0x5c}, 16))
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	wg.Wait()
}
