package link

import (
	"fmt"
	"sync"

	"wlanrsn-go/pkg/rsna"
	"wlanrsn-go/pkg/securestore"
)

// InstalledKey is a key held by a KeyTable.
type InstalledKey struct {
	Kind     rsna.UpdateKind
	Peer     string
	KeyID    uint16
	Cipher   string
	RSC      uint64
	Material *securestore.Secret
}

// KeyTable is a KeyInstaller standing in for a driver's key store.
type KeyTable struct {
	mu   sync.Mutex
	keys []InstalledKey
}

func NewKeyTable() *KeyTable {
	return &KeyTable{}
}

func (t *KeyTable) InstallKey(kind rsna.UpdateKind, key *rsna.Key) error {
	if key == nil || len(key.Material) == 0 {
		return fmt.Errorf("cannot install empty %s", kind)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.keys = append(t.keys, InstalledKey{
		Kind:     kind,
		Peer:     key.Peer.String(),
		KeyID:    key.KeyID,
		Cipher:   key.Cipher.String(),
		RSC:      key.RSC,
		Material: securestore.CopySecret(key.Material),
	})
	return nil
}

// Keys returns the installed keys in installation order.
func (t *KeyTable) Keys() []InstalledKey {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]InstalledKey(nil), t.keys...)
}

// Find returns the most recently installed key of kind.
func (t *KeyTable) Find(kind rsna.UpdateKind) (InstalledKey, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.keys) - 1; i >= 0; i-- {
		if t.keys[i].Kind == kind {
			return t.keys[i], true
		}
	}
	return InstalledKey{}, false
}

// Destroy wipes all installed key material.
func (t *KeyTable) Destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, k := range t.keys {
		k.Material.Destroy()
	}
	t.keys = nil
}
