package fourway

import (
	"fmt"

	"wlanrsn-go/pkg/eapol"
	"wlanrsn-go/pkg/rsna"
)

// Frame is a verified key frame that passed classification, the receiving
// role check and validation. It owns copies of the frame and its plaintext key
// data and only lives for the duration of one OnFrame call.
type Frame struct {
	Message  MessageNumber
	KeyFrame *eapol.KeyFrame
	KeyData  []byte
}

// receivable lists the messages each role may legally receive.
var receivable = map[rsna.Role][]MessageNumber{
	rsna.RoleAuthenticator: {Message2, Message4},
	rsna.RoleSupplicant:    {Message1, Message3},
}

// FromVerified classifies and validates vf for a station acting as role.
func FromVerified(vf rsna.VerifiedKeyFrame, role rsna.Role, opts ValidationOptions) (*Frame, error) {
	kf := vf.Frame()
	if kf == nil {
		return nil, fmt.Errorf("%w: no frame", ErrInvalidKeyData)
	}
	if !kf.KeyInfo.Pairwise() {
		return nil, ErrUnsupportedKeyType
	}
	if kf.KeyInfo.SMKMessage() {
		return nil, ErrSMKUnsupported
	}

	msg := Classify(kf)
	if !canReceive(role, msg) {
		return nil, messageError(ErrUnexpectedMessage, msg)
	}
	if err := Validate(kf, msg, opts); err != nil {
		return nil, err
	}
	return &Frame{
		Message:  msg,
		KeyFrame: kf.Clone(),
		KeyData:  append([]byte(nil), vf.KeyDataPlaintext()...),
	}, nil
}

func canReceive(role rsna.Role, msg MessageNumber) bool {
	for _, m := range receivable[role] {
		if m == msg {
			return true
		}
	}
	return false
}

// wipe clears the plaintext key data copy.
func (f *Frame) wipe() {
	clear(f.KeyData)
}
