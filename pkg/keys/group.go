package keys

import (
	"crypto/rand"
	"fmt"

	"wlanrsn-go/pkg/securestore"
)

// GroupKey is a GTK or IGTK together with its key index.
type GroupKey struct {
	KeyID  uint16
	secret *securestore.Secret
}

// NewGroupKey generates a random group key of n octets.
func NewGroupKey(keyID uint16, n int) (*GroupKey, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate group key: %w", err)
	}
	return &GroupKey{KeyID: keyID, secret: securestore.NewSecretFromBytes(b)}, nil
}

// GroupKeyFromBytes copies key into a new GroupKey.
func GroupKeyFromBytes(keyID uint16, key []byte) *GroupKey {
	return &GroupKey{KeyID: keyID, secret: securestore.CopySecret(key)}
}

func (g *GroupKey) Bytes() []byte {
	return g.secret.Bytes()
}

func (g *GroupKey) Len() int {
	return g.secret.Len()
}

func (g *GroupKey) Destroy() {
	if g != nil {
		g.secret.Destroy()
	}
}
