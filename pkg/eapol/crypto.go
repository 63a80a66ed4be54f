package eapol

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"errors"
	"fmt"
	"hash"
)

// Key descriptor versions (IEEE Std 802.11-2016, 12.7.2 b.1).
const (
	DescriptorVersionHMACMD5RC4  uint8 = 1
	DescriptorVersionHMACSHA1AES uint8 = 2
	DescriptorVersionAESCMAC     uint8 = 3
)

var ErrUnsupportedDescriptorVersion = errors.New("unsupported key descriptor version")

// calculateMIC computes the MIC over an encoded EAPOL frame whose MIC field
// has already been zeroed.
func calculateMIC(version uint8, kck, eapolFrame []byte) ([]byte, error) {
	var h hash.Hash
	switch version {
	case DescriptorVersionHMACMD5RC4:
		h = hmac.New(md5.New, kck)
	case DescriptorVersionHMACSHA1AES:
		h = hmac.New(sha1.New, kck)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedDescriptorVersion, version)
	}
	h.Write(eapolFrame)
	return h.Sum(nil)[:MICLen], nil
}

// VerifyRawMIC verifies the MIC of an encoded EAPOL-Key frame using the
// descriptor version found in its Key Information field.
func VerifyRawMIC(kck, eapolFrame []byte) (bool, error) {
	if len(eapolFrame) < micOffset+MICLen {
		return false, fmt.Errorf("%w: frame too short for MIC verification", ErrShortFrame)
	}
	version := eapolFrame[headerLen+2] & uint8(KeyInfoDescriptorVersion)
	receivedMIC := make([]byte, MICLen)
	copy(receivedMIC, eapolFrame[micOffset:micOffset+MICLen])

	frameCopy := make([]byte, len(eapolFrame))
	copy(frameCopy, eapolFrame)
	clear(frameCopy[micOffset : micOffset+MICLen])

	expected, err := calculateMIC(version, kck, frameCopy)
	if err != nil {
		return false, err
	}
	return hmac.Equal(receivedMIC, expected), nil
}

// ComputeMIC returns the MIC of f computed with its MIC field zeroed.
func (f *KeyFrame) ComputeMIC(kck []byte) ([]byte, error) {
	c := *f
	c.KeyMIC = [MICLen]byte{}
	raw, err := c.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return calculateMIC(f.KeyInfo.DescriptorVersion(), kck, raw)
}

// UpdateMIC computes the MIC of f and stores it in the MIC field.
func (f *KeyFrame) UpdateMIC(kck []byte) error {
	mic, err := f.ComputeMIC(kck)
	if err != nil {
		return err
	}
	copy(f.KeyMIC[:], mic)
	return nil
}

// HasValidMIC reports whether the MIC field of f matches the MIC computed with kck.
func (f *KeyFrame) HasValidMIC(kck []byte) (bool, error) {
	mic, err := f.ComputeMIC(kck)
	if err != nil {
		return false, err
	}
	return hmac.Equal(f.KeyMIC[:], mic), nil
}
