package fourway

import (
	"fmt"

	"wlanrsn-go/pkg/eapol"
)

// MessageNumber identifies one of the four handshake messages.
type MessageNumber int

const (
	Message1 MessageNumber = iota + 1
	Message2
	Message3
	Message4
)

func (m MessageNumber) String() string {
	return fmt.Sprintf("message %d", int(m))
}

// Classify derives the message number from the key_ack, install and secure
// bits. It never fails and checks nothing else.
func Classify(f *eapol.KeyFrame) MessageNumber {
	switch {
	case f.KeyInfo.KeyAck() && f.KeyInfo.Install():
		return Message3
	case f.KeyInfo.KeyAck():
		return Message1
	case f.KeyInfo.Secure():
		return Message4
	default:
		return Message2
	}
}
