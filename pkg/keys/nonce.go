package keys

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"
	"net"
	"sync"
	"time"
)

// NonceLen is the length of an EAPOL-Key nonce.
const NonceLen = 32

// NonceReader produces successive nonces from a randomly seeded 256-bit
// counter (IEEE Std 802.11-2016, 12.7.5). It is safe for concurrent use.
type NonceReader struct {
	mu      sync.Mutex
	counter *big.Int
}

// NewNonceReader seeds a counter from the station address, the current time
// and fresh randomness.
func NewNonceReader(addr net.HardwareAddr) (*NonceReader, error) {
	seed := make([]byte, NonceLen)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("failed to seed nonce counter: %w", err)
	}
	data := make([]byte, 0, len(addr)+8)
	data = append(data, addr...)
	data = binary.BigEndian.AppendUint64(data, uint64(time.Now().UnixNano()))
	start := PRF(seed, "Init Counter", data, NonceLen*8)
	return &NonceReader{counter: new(big.Int).SetBytes(start)}, nil
}

// Next returns the next nonce. Nonces never repeat within a reader.
func (r *NonceReader) Next() [NonceLen]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counter.Add(r.counter, big.NewInt(1))
	var nonce [NonceLen]byte
	// FillBytes panics if the counter overflows 256 bits; wrap it instead.
	if r.counter.BitLen() > NonceLen*8 {
		r.counter.SetInt64(0)
	}
	r.counter.FillBytes(nonce[:])
	return nonce
}
