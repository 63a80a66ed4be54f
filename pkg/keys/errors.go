package keys

import "errors"

var (
	ErrInvalidPassphrase  = errors.New("invalid passphrase")
	ErrInvalidSSID        = errors.New("invalid SSID")
	ErrEmptyPMK           = errors.New("empty PMK")
	ErrInvalidKeyWrap     = errors.New("invalid key wrap input")
	ErrKeyUnwrapIntegrity = errors.New("key unwrap integrity check failed")
	ErrInvalidMPPEKey     = errors.New("invalid MS-MPPE key attribute")
)
