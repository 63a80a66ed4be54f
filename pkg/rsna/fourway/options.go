package fourway

import (
	"github.com/rs/zerolog"

	"wlanrsn-go/pkg/keys"
)

// NonceSource produces ANonces and SNonces. Implementations must never return
// the same nonce twice.
type NonceSource interface {
	Next() [keys.NonceLen]byte
}

type options struct {
	logger            zerolog.Logger
	nonces            NonceSource
	gtk               *keys.GroupKey
	igtk              *keys.GroupKey
	strictMessage1MIC bool
}

// Option configures a Fourway handshake.
type Option func(*options)

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithNonceSource replaces the default per-handshake NonceReader.
func WithNonceSource(nonces NonceSource) Option {
	return func(o *options) { o.nonces = nonces }
}

// WithGroupKey makes the authenticator distribute a copy of gtk instead of a
// freshly generated one. The caller keeps ownership of gtk.
func WithGroupKey(gtk *keys.GroupKey) Option {
	return func(o *options) { o.gtk = gtk }
}

// WithIntegrityGroupKey sets the IGTK distributed when MFP is negotiated.
// The caller keeps ownership of igtk.
func WithIntegrityGroupKey(igtk *keys.GroupKey) Option {
	return func(o *options) { o.igtk = igtk }
}

// WithStrictMessage1MIC rejects Message 1 frames that have the MIC bit set.
// By default the bit is ignored on Message 1.
func WithStrictMessage1MIC() Option {
	return func(o *options) { o.strictMessage1MIC = true }
}
