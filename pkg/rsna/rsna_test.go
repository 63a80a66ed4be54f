package rsna

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"wlanrsn-go/pkg/eapol"
)

func TestUpdateSinkPreservesOrder(t *testing.T) {
	var sink UpdateSink
	failure := errors.New("boom")

	sink.Push(TxKeyFrame(&eapol.KeyFrame{}))
	sink.Push(InstallPairwiseKey(&Key{KeyID: 0}))
	sink.Push(InstallGroupKey(&Key{KeyID: 1}))
	sink.Push(HandshakeFailed(failure))

	assert.Equal(t, []UpdateKind{
		UpdateTxKeyFrame,
		UpdateInstallPairwiseKey,
		UpdateInstallGroupKey,
		UpdateHandshakeFailed,
	}, sink.Kinds())
	assert.ErrorIs(t, sink[3].Err, failure)
	assert.Equal(t, "install-group-key", sink[2].Kind.String())
}

func TestVerifyUnencrypted(t *testing.T) {
	plain := &eapol.KeyFrame{KeyData: []byte{0x30, 0x00}}
	assert.Equal(t, []byte{0x30, 0x00}, VerifyUnencrypted(plain).KeyDataPlaintext())
	assert.Same(t, plain, VerifyUnencrypted(plain).Frame())

	encrypted := &eapol.KeyFrame{
		KeyInfo: eapol.KeyInfo(0).With(eapol.KeyInfoEncryptedKeyData),
		KeyData: []byte{1, 2, 3},
	}
	assert.Nil(t, VerifyUnencrypted(encrypted).KeyDataPlaintext())
}

func TestKeyWipe(t *testing.T) {
	k := &Key{Material: []byte{1, 2, 3}}
	k.Wipe()
	assert.Equal(t, []byte{0, 0, 0}, k.Material)
}

func TestRoleString(t *testing.T) {
	assert.Equal(t, "authenticator", RoleAuthenticator.String())
	assert.Equal(t, "supplicant", RoleSupplicant.String())
}
