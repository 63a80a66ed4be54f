package securestore

import (
	"github.com/awnumar/memguard"
)

// Secret holds key material in guarded, locked memory.
type Secret struct {
	buffer *memguard.LockedBuffer
}

// NewSecret creates a new secret from a string.
// The original string should be cleared from memory after use.
func NewSecret(value string) *Secret {
	return NewSecretFromBytes([]byte(value))
}

// NewSecretFromBytes moves b into guarded memory. b is wiped.
func NewSecretFromBytes(b []byte) *Secret {
	if len(b) == 0 {
		return &Secret{}
	}
	buf := memguard.NewBufferFromBytes(b)
	buf.Freeze()
	return &Secret{buffer: buf}
}

// CopySecret stores a copy of b in guarded memory, leaving b untouched.
func CopySecret(b []byte) *Secret {
	return NewSecretFromBytes(append([]byte(nil), b...))
}

// IsSet reports whether the secret holds a non-empty value.
func (s *Secret) IsSet() bool {
	return s != nil && s.buffer != nil && s.buffer.IsAlive() && s.buffer.Size() > 0
}

// Len returns the size of the secret in bytes.
func (s *Secret) Len() int {
	if !s.IsSet() {
		return 0
	}
	return s.buffer.Size()
}

// Bytes returns a view of the guarded memory. The slice is only valid until
// Destroy and must not be modified.
func (s *Secret) Bytes() []byte {
	if !s.IsSet() {
		return nil
	}
	return s.buffer.Bytes()
}

// Clone copies the secret into a new guarded buffer.
func (s *Secret) Clone() *Secret {
	return CopySecret(s.Bytes())
}

// Access securely calls a function with the plaintext value of the secret.
// The provided byte slice is only valid for the duration of the function call.
func (s *Secret) Access(f func([]byte) error) error {
	return f(s.Bytes())
}

// EqualToConstantTime compares the secret against value in constant time.
func (s *Secret) EqualToConstantTime(value []byte) (bool, error) {
	if !s.IsSet() {
		return len(value) == 0, nil
	}
	return s.buffer.EqualTo(value), nil
}

// Destroy securely wipes the secret from memory.
func (s *Secret) Destroy() {
	if s != nil && s.buffer != nil {
		s.buffer.Destroy()
	}
}
