package eapol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	elementIDRSN    = 48
	elementIDVendor = 0xdd

	kdeTypeGTK  = 1
	kdeTypeIGTK = 9

	// IPNLen is the length of the IGTK packet number.
	IPNLen = 6
)

var ieee80211OUI = [3]byte{0x00, 0x0f, 0xac}

var ErrMalformedKeyData = errors.New("malformed key data")

// GTKKDE is the GTK key data encapsulation (IEEE Std 802.11-2016, 12.7.2, Figure 12-35).
type GTKKDE struct {
	KeyID uint8
	Tx    bool
	Key   []byte
}

// IGTKKDE is the IGTK key data encapsulation (IEEE Std 802.11-2016, 12.7.2, Figure 12-42).
type IGTKKDE struct {
	KeyID uint16
	IPN   [IPNLen]byte
	Key   []byte
}

// KeyData is the set of elements and KDEs carried in the Key Data field.
// RSNE holds the complete element, header included.
type KeyData struct {
	RSNE []byte
	GTK  *GTKKDE
	IGTK *IGTKKDE
}

// Wipe zeroes the group key material.
func (kd *KeyData) Wipe() {
	if kd.GTK != nil {
		clear(kd.GTK.Key)
	}
	if kd.IGTK != nil {
		clear(kd.IGTK.Key)
	}
}

// Bytes encodes the key data elements without padding.
func (kd *KeyData) Bytes() []byte {
	var buf bytes.Buffer
	buf.Write(kd.RSNE)
	if kd.GTK != nil {
		body := make([]byte, 2, 2+len(kd.GTK.Key))
		body[0] = kd.GTK.KeyID & 0x03
		if kd.GTK.Tx {
			body[0] |= 0x04
		}
		body = append(body, kd.GTK.Key...)
		writeKDE(&buf, kdeTypeGTK, body)
	}
	if kd.IGTK != nil {
		body := make([]byte, 2+IPNLen, 2+IPNLen+len(kd.IGTK.Key))
		binary.LittleEndian.PutUint16(body[:2], kd.IGTK.KeyID)
		copy(body[2:], kd.IGTK.IPN[:])
		body = append(body, kd.IGTK.Key...)
		writeKDE(&buf, kdeTypeIGTK, body)
	}
	return buf.Bytes()
}

func writeKDE(buf *bytes.Buffer, dataType byte, body []byte) {
	buf.WriteByte(elementIDVendor)
	buf.WriteByte(byte(len(ieee80211OUI) + 1 + len(body)))
	buf.Write(ieee80211OUI[:])
	buf.WriteByte(dataType)
	buf.Write(body)
}

// Pad appends 0xdd 0x00.. padding so the result is at least 16 octets and a
// multiple of 8, as required before AES key wrapping.
func Pad(data []byte) []byte {
	out := append([]byte(nil), data...)
	if len(out) >= 16 && len(out)%8 == 0 {
		return out
	}
	out = append(out, elementIDVendor)
	for len(out) < 16 || len(out)%8 != 0 {
		out = append(out, 0)
	}
	return out
}

// ParseKeyData decodes the elements and KDEs of a plaintext Key Data field.
// Unknown elements are skipped; trailing padding terminates parsing.
func ParseKeyData(data []byte) (*KeyData, error) {
	kd := &KeyData{}
	for len(data) > 0 {
		id := data[0]
		if id == elementIDVendor && (len(data) == 1 || data[1] == 0) {
			break
		}
		if len(data) < 2 {
			return nil, fmt.Errorf("%w: truncated element header", ErrMalformedKeyData)
		}
		n := int(data[1])
		if len(data) < 2+n {
			return nil, fmt.Errorf("%w: element %d claims %d bytes, %d remain", ErrMalformedKeyData, id, n, len(data)-2)
		}
		elem, body := data[:2+n], data[2:2+n]
		data = data[2+n:]

		switch id {
		case elementIDRSN:
			kd.RSNE = append([]byte(nil), elem...)
		case elementIDVendor:
			if n < 4 || !bytes.Equal(body[:3], ieee80211OUI[:]) {
				continue
			}
			if err := kd.parseKDE(body[3], body[4:]); err != nil {
				return nil, err
			}
		}
	}
	return kd, nil
}

func (kd *KeyData) parseKDE(dataType byte, body []byte) error {
	switch dataType {
	case kdeTypeGTK:
		if len(body) < 2 {
			return fmt.Errorf("%w: GTK KDE too short", ErrMalformedKeyData)
		}
		kd.GTK = &GTKKDE{
			KeyID: body[0] & 0x03,
			Tx:    body[0]&0x04 != 0,
			Key:   append([]byte(nil), body[2:]...),
		}
	case kdeTypeIGTK:
		if len(body) < 2+IPNLen {
			return fmt.Errorf("%w: IGTK KDE too short", ErrMalformedKeyData)
		}
		igtk := &IGTKKDE{
			KeyID: binary.LittleEndian.Uint16(body[:2]),
			Key:   append([]byte(nil), body[2+IPNLen:]...),
		}
		copy(igtk.IPN[:], body[2:2+IPNLen])
		kd.IGTK = igtk
	}
	return nil
}
