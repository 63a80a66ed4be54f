package eapol

import (
	"errors"
	"fmt"
	"net"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// ProtocolVersion is the 802.1X protocol version carried in the EAPOL header.
type ProtocolVersion uint8

const (
	ProtocolVersionIeee802dot1x2001 ProtocolVersion = 1
	ProtocolVersionIeee802dot1x2004 ProtocolVersion = 2
	ProtocolVersionIeee802dot1x2010 ProtocolVersion = 3
)

// DescriptorType identifies the EAPOL-Key descriptor layout.
type DescriptorType uint8

const (
	DescriptorTypeRC4       DescriptorType = 1
	DescriptorTypeIEEE80211 DescriptorType = 2
	DescriptorTypeWPA       DescriptorType = 254
)

const (
	NonceLen = 32
	IVLen    = 16
	MICLen   = 16

	headerLen        = 4
	keyDescriptorLen = 95
	// micOffset is the offset of the MIC field within an encoded frame,
	// EAPOL header included.
	micOffset = headerLen + 77
)

var (
	ErrNotKeyFrame  = errors.New("not an EAPOL-Key frame")
	ErrShortFrame   = errors.New("EAPOL frame too short")
	ErrNotEAPOLType = errors.New("ethernet frame does not carry EAPOL")
)

// KeyInfo is the Key Information field of an EAPOL-Key frame
// (IEEE Std 802.11-2016, 12.7.2, Figure 12-33).
type KeyInfo uint16

const (
	KeyInfoDescriptorVersion KeyInfo = 0x0007
	KeyInfoKeyType           KeyInfo = 1 << 3
	KeyInfoKeyIndex          KeyInfo = 0x0030
	KeyInfoInstall           KeyInfo = 1 << 6
	KeyInfoKeyAck            KeyInfo = 1 << 7
	KeyInfoKeyMIC            KeyInfo = 1 << 8
	KeyInfoSecure            KeyInfo = 1 << 9
	KeyInfoError             KeyInfo = 1 << 10
	KeyInfoRequest           KeyInfo = 1 << 11
	KeyInfoEncryptedKeyData  KeyInfo = 1 << 12
	KeyInfoSMKMessage        KeyInfo = 1 << 13
)

func (k KeyInfo) IsSet(bits KeyInfo) bool { return k&bits != 0 }

func (k KeyInfo) With(bits KeyInfo) KeyInfo { return k | bits }

func (k KeyInfo) Without(bits KeyInfo) KeyInfo { return k &^ bits }

// WithDescriptorVersion replaces the descriptor version bits.
func (k KeyInfo) WithDescriptorVersion(v uint8) KeyInfo {
	return k&^KeyInfoDescriptorVersion | KeyInfo(v)&KeyInfoDescriptorVersion
}

func (k KeyInfo) DescriptorVersion() uint8 { return uint8(k & KeyInfoDescriptorVersion) }
func (k KeyInfo) KeyIndex() uint8          { return uint8((k & KeyInfoKeyIndex) >> 4) }
func (k KeyInfo) Pairwise() bool           { return k.IsSet(KeyInfoKeyType) }
func (k KeyInfo) Install() bool            { return k.IsSet(KeyInfoInstall) }
func (k KeyInfo) KeyAck() bool             { return k.IsSet(KeyInfoKeyAck) }
func (k KeyInfo) KeyMIC() bool             { return k.IsSet(KeyInfoKeyMIC) }
func (k KeyInfo) Secure() bool             { return k.IsSet(KeyInfoSecure) }
func (k KeyInfo) KeyError() bool           { return k.IsSet(KeyInfoError) }
func (k KeyInfo) Request() bool            { return k.IsSet(KeyInfoRequest) }
func (k KeyInfo) EncryptedKeyData() bool   { return k.IsSet(KeyInfoEncryptedKeyData) }
func (k KeyInfo) SMKMessage() bool         { return k.IsSet(KeyInfoSMKMessage) }

// KeyFrame is a decoded EAPOL-Key frame (IEEE Std 802.11-2016, 12.7.2, Figure 12-32).
// The 8 reserved Key ID octets are always encoded as zero.
type KeyFrame struct {
	Version          ProtocolVersion
	DescriptorType   DescriptorType
	KeyInfo          KeyInfo
	KeyLength        uint16
	KeyReplayCounter uint64
	KeyNonce         [NonceLen]byte
	KeyIV            [IVLen]byte
	KeyRSC           uint64
	KeyMIC           [MICLen]byte
	KeyDataLen       uint16
	KeyData          []byte
}

// Clone returns a deep copy of the frame.
func (f *KeyFrame) Clone() *KeyFrame {
	c := *f
	c.KeyData = append([]byte(nil), f.KeyData...)
	return &c
}

// SetKeyData replaces the key data and keeps KeyDataLen consistent with it.
func (f *KeyFrame) SetKeyData(data []byte) {
	f.KeyData = data
	f.KeyDataLen = uint16(len(data))
}

func (f *KeyFrame) layers() (*layers.EAPOL, *layers.EAPOLKey) {
	keyType := layers.EAPOLKeyTypeGroupSMK
	if f.KeyInfo.Pairwise() {
		keyType = layers.EAPOLKeyTypePairwise
	}
	key := &layers.EAPOLKey{
		KeyDescriptorType:    layers.EAPOLKeyDescriptorType(f.DescriptorType),
		KeyDescriptorVersion: layers.EAPOLKeyDescriptorVersion(f.KeyInfo.DescriptorVersion()),
		KeyType:              keyType,
		KeyIndex:             f.KeyInfo.KeyIndex(),
		Install:              f.KeyInfo.Install(),
		KeyACK:               f.KeyInfo.KeyAck(),
		KeyMIC:               f.KeyInfo.KeyMIC(),
		Secure:               f.KeyInfo.Secure(),
		MICError:             f.KeyInfo.KeyError(),
		Request:              f.KeyInfo.Request(),
		HasEncryptedKeyData:  f.KeyInfo.EncryptedKeyData(),
		SMKMessage:           f.KeyInfo.SMKMessage(),
		KeyLength:            f.KeyLength,
		ReplayCounter:        f.KeyReplayCounter,
		Nonce:                f.KeyNonce[:],
		IV:                   f.KeyIV[:],
		RSC:                  f.KeyRSC,
		MIC:                  f.KeyMIC[:],
		KeyDataLength:        uint16(len(f.KeyData)),
		EncryptedKeyData:     f.KeyData,
	}
	hdr := &layers.EAPOL{
		Version: uint8(f.Version),
		Type:    layers.EAPOLTypeKey,
		Length:  uint16(keyDescriptorLen + len(f.KeyData)),
	}
	return hdr, key
}

// MarshalBinary encodes the frame, EAPOL header included. The key data length
// field is always derived from KeyData.
func (f *KeyFrame) MarshalBinary() ([]byte, error) {
	hdr, key := f.layers()
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, hdr, key); err != nil {
		return nil, fmt.Errorf("failed to serialize EAPOL-Key frame: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses an EAPOL packet (header included) carrying an EAPOL-Key frame.
func Decode(raw []byte) (*KeyFrame, error) {
	if len(raw) < headerLen {
		return nil, fmt.Errorf("%w: got %d bytes", ErrShortFrame, len(raw))
	}
	var hdr layers.EAPOL
	if err := hdr.DecodeFromBytes(raw, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("failed to decode EAPOL header: %w", err)
	}
	if hdr.Type != layers.EAPOLTypeKey {
		return nil, fmt.Errorf("%w: packet type %d", ErrNotKeyFrame, hdr.Type)
	}
	body := hdr.LayerPayload()
	if len(body) < keyDescriptorLen {
		return nil, fmt.Errorf("%w: key descriptor has %d bytes, need %d", ErrShortFrame, len(body), keyDescriptorLen)
	}
	var key layers.EAPOLKey
	if err := key.DecodeFromBytes(body, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("failed to decode EAPOL-Key descriptor: %w", err)
	}

	info := KeyInfo(0).WithDescriptorVersion(uint8(key.KeyDescriptorVersion))
	info |= KeyInfo(key.KeyIndex&0x3) << 4
	flags := []struct {
		set bool
		bit KeyInfo
	}{
		{key.KeyType == layers.EAPOLKeyTypePairwise, KeyInfoKeyType},
		{key.Install, KeyInfoInstall},
		{key.KeyACK, KeyInfoKeyAck},
		{key.KeyMIC, KeyInfoKeyMIC},
		{key.Secure, KeyInfoSecure},
		{key.MICError, KeyInfoError},
		{key.Request, KeyInfoRequest},
		{key.HasEncryptedKeyData, KeyInfoEncryptedKeyData},
		{key.SMKMessage, KeyInfoSMKMessage},
	}
	for _, fl := range flags {
		if fl.set {
			info |= fl.bit
		}
	}

	f := &KeyFrame{
		Version:          ProtocolVersion(hdr.Version),
		DescriptorType:   DescriptorType(key.KeyDescriptorType),
		KeyInfo:          info,
		KeyLength:        key.KeyLength,
		KeyReplayCounter: key.ReplayCounter,
		KeyRSC:           key.RSC,
		KeyDataLen:       key.KeyDataLength,
		KeyData:          append([]byte(nil), key.EncryptedKeyData...),
	}
	copy(f.KeyNonce[:], key.Nonce)
	copy(f.KeyIV[:], key.IV)
	copy(f.KeyMIC[:], key.MIC)
	return f, nil
}

// EncodeEthernet wraps an EAPOL payload into an Ethernet II frame.
func EncodeEthernet(src, dst net.HardwareAddr, payload []byte) ([]byte, error) {
	ethLayer := &layers.Ethernet{
		SrcMAC:       src,
		DstMAC:       dst,
		EthernetType: layers.EthernetTypeEAPOL,
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, ethLayer, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("failed to serialize EAPOL ethernet frame: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeEthernet extracts the EAPOL payload and addresses of an Ethernet II frame.
func DecodeEthernet(frame []byte) (src, dst net.HardwareAddr, payload []byte, err error) {
	var eth layers.Ethernet
	if err := eth.DecodeFromBytes(frame, gopacket.NilDecodeFeedback); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to decode ethernet frame: %w", err)
	}
	if eth.EthernetType != layers.EthernetTypeEAPOL {
		return nil, nil, nil, fmt.Errorf("%w: ethertype %s", ErrNotEAPOLType, eth.EthernetType)
	}
	return eth.SrcMAC, eth.DstMAC, eth.LayerPayload(), nil
}
