package keys

import (
	"crypto/md5"
	"fmt"
)

// PMKFromMPPEKey recovers a PMK from an encrypted MS-MPPE-Recv-Key attribute
// value (RFC 2548, 2.4.3) as delivered by a RADIUS server after 802.1X
// authentication. The value is a 2 octet salt followed by the encrypted key.
func PMKFromMPPEKey(encrypted, secret, authenticator []byte) ([]byte, error) {
	if len(encrypted) < 2+md5.Size {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidMPPEKey, len(encrypted))
	}
	salt := encrypted[:2]
	data := encrypted[2:]
	if len(data)%md5.Size != 0 {
		return nil, fmt.Errorf("%w: encrypted data length %d not a multiple of 16", ErrInvalidMPPEKey, len(data))
	}

	h := md5.New()
	h.Write(secret)
	h.Write(authenticator)
	h.Write(salt)
	b := h.Sum(nil)

	plain := make([]byte, len(data))
	for offset := 0; offset < len(data); offset += md5.Size {
		if offset > 0 {
			h.Reset()
			h.Write(secret)
			h.Write(data[offset-md5.Size : offset])
			b = h.Sum(b[:0])
		}
		for i := 0; i < md5.Size; i++ {
			plain[offset+i] = data[offset+i] ^ b[i]
		}
	}

	keyLen := int(plain[0])
	if keyLen == 0 || keyLen > len(plain)-1 {
		clear(plain)
		return nil, fmt.Errorf("%w: key length %d", ErrInvalidMPPEKey, keyLen)
	}
	pmk := make([]byte, keyLen)
	copy(pmk, plain[1:1+keyLen])
	clear(plain)
	return pmk, nil
}
