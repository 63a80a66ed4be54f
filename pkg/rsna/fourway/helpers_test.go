package fourway

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"wlanrsn-go/pkg/eapol"
	"wlanrsn-go/pkg/keys"
	"wlanrsn-go/pkg/rsna"
	"wlanrsn-go/pkg/rsne"
)

var (
	authAddr = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	suppAddr = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
	testPMK  = bytes.Repeat([]byte{0x42}, 32)
)

// fixedNonces returns nonces filled with an incrementing byte.
type fixedNonces struct {
	next byte
}

func (n *fixedNonces) Next() [keys.NonceLen]byte {
	n.next++
	var b [keys.NonceLen]byte
	for i := range b {
		b[i] = n.next
	}
	return b
}

func pskRSNE(caps rsne.Capabilities) *rsne.Rsne {
	return rsne.New(rsne.CipherCCMP128, []rsne.Suite{rsne.CipherCCMP128}, []rsne.Suite{rsne.AKMPSK}, caps)
}

func newAuthenticator(t *testing.T, authIE, suppIE *rsne.Rsne, opts ...Option) *Fourway {
	t.Helper()
	cfg, err := NewConfig(rsna.RoleAuthenticator, authAddr, authIE, suppAddr, suppIE)
	require.NoError(t, err)
	opts = append([]Option{WithNonceSource(&fixedNonces{next: 0x10})}, opts...)
	f, err := New(cfg, testPMK, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { f.Destroy() })
	return f
}

func newSupplicant(t *testing.T, suppIE, authIE *rsne.Rsne, opts ...Option) *Fourway {
	t.Helper()
	cfg, err := NewConfig(rsna.RoleSupplicant, suppAddr, suppIE, authAddr, authIE)
	require.NoError(t, err)
	opts = append([]Option{WithNonceSource(&fixedNonces{next: 0x80})}, opts...)
	f, err := New(cfg, testPMK, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { f.Destroy() })
	return f
}

func newPair(t *testing.T, caps rsne.Capabilities, authOpts ...Option) (*Fourway, *Fourway) {
	t.Helper()
	return newAuthenticator(t, pskRSNE(caps), pskRSNE(caps), authOpts...),
		newSupplicant(t, pskRSNE(caps), pskRSNE(caps))
}

// overTheAir encodes and decodes f the way a peer would receive it.
func overTheAir(t *testing.T, f *eapol.KeyFrame) *eapol.KeyFrame {
	t.Helper()
	raw, err := f.MarshalBinary()
	require.NoError(t, err)
	decoded, err := eapol.Decode(raw)
	require.NoError(t, err)
	return decoded
}

// txFrame returns the decoded frame of the transmit update at index i.
func txFrame(t *testing.T, sink rsna.UpdateSink, i int) *eapol.KeyFrame {
	t.Helper()
	require.Greater(t, len(sink), i)
	require.Equal(t, rsna.UpdateTxKeyFrame, sink[i].Kind)
	return overTheAir(t, sink[i].Frame)
}

func deliver(t *testing.T, to *Fourway, krc uint64, f *eapol.KeyFrame) (rsna.UpdateSink, error) {
	t.Helper()
	var sink rsna.UpdateSink
	err := to.OnFrame(&sink, krc, rsna.VerifyUnencrypted(f))
	return sink, err
}

func installed(sink rsna.UpdateSink, kind rsna.UpdateKind) *rsna.Key {
	for _, u := range sink {
		if u.Kind == kind {
			return u.Key
		}
	}
	return nil
}

// message1 is a well formed Message 1 with a non-zero ANonce.
func message1(krc uint64) *eapol.KeyFrame {
	f := &eapol.KeyFrame{
		Version:          eapol.ProtocolVersionIeee802dot1x2004,
		DescriptorType:   eapol.DescriptorTypeIEEE80211,
		KeyInfo:          eapol.KeyInfo(0).WithDescriptorVersion(eapol.DescriptorVersionHMACSHA1AES).With(eapol.KeyInfoKeyType | eapol.KeyInfoKeyAck),
		KeyLength:        16,
		KeyReplayCounter: krc,
	}
	f.KeyNonce[0] = 0x01
	return f
}

func message3Bits() eapol.KeyInfo {
	return eapol.KeyInfo(0).WithDescriptorVersion(eapol.DescriptorVersionHMACSHA1AES).
		With(eapol.KeyInfoKeyType | eapol.KeyInfoInstall | eapol.KeyInfoKeyAck | eapol.KeyInfoKeyMIC | eapol.KeyInfoSecure | eapol.KeyInfoEncryptedKeyData)
}
