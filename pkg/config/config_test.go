package config

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wlanrsn-go/pkg/keys"
	"wlanrsn-go/pkg/rsne"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rsnsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadPassphrase(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
metrics:
  enabled: true
handshake:
  ssid: IEEE
  passphrase: password
  mfp: true
  max_attempts: 5
  timeout: 250ms
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	defer cfg.Destroy()

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9110", cfg.Metrics.Listen)
	assert.Empty(t, cfg.Handshake.PassphraseStr, "plaintext passphrase must be cleared")
	assert.True(t, cfg.Handshake.Passphrase.IsSet())
	assert.Equal(t, 5, cfg.Handshake.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Handshake.Timeout)

	pmk, err := cfg.Handshake.DerivePMK()
	require.NoError(t, err)
	expected, err := keys.PSK("password", "IEEE")
	require.NoError(t, err)
	assert.Equal(t, expected, pmk)

	ie := cfg.Handshake.RSNE()
	require.NotNil(t, ie.Capabilities)
	assert.True(t, ie.Capabilities.MFPCapable())
	assert.Equal(t, []rsne.Suite{rsne.AKMPSK}, ie.AKMs)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	path := writeConfig(t, `
handshake:
  pmk: "0dc0d6eb90555ed6419756b9a15ec3e3209b63df707dd508d14581f8982721af"
`)
	t.Setenv("RSNSIM_LOGGING_LEVEL", "warn")
	t.Setenv("RSNSIM_HANDSHAKE_SUPPLICANT_ADDR", "02:aa:bb:cc:dd:ee")

	cfg, err := Load(path)
	require.NoError(t, err)
	defer cfg.Destroy()

	assert.Equal(t, "warn", cfg.Logging.Level)
	addrs, err := cfg.Handshake.Addresses()
	require.NoError(t, err)
	assert.Equal(t, "02:aa:bb:cc:dd:ee", addrs.Supplicant.String())
	assert.Equal(t, "02:00:00:00:00:01", addrs.Authenticator.String())

	pmk, err := cfg.Handshake.DerivePMK()
	require.NoError(t, err)
	assert.Len(t, pmk, 32)
}

func TestLoadMissingFileUsesEnvironment(t *testing.T) {
	t.Setenv("RSNSIM_HANDSHAKE_SSID", "lab")
	t.Setenv("RSNSIM_HANDSHAKE_PASSPHRASE", "correct horse")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	defer cfg.Destroy()
	assert.Equal(t, "lab", cfg.Handshake.SSID)
}

func TestLoadMPPE(t *testing.T) {
	secret := []byte("radius-secret")
	authenticator := bytes.Repeat([]byte{0x11}, 16)
	pmk := bytes.Repeat([]byte{0x5c}, 32)

	// RFC 2548 encryption with salt 0x8001.
	plain := append([]byte{byte(len(pmk))}, pmk...)
	padded := make([]byte, 48)
	copy(padded, plain)
	salt := []byte{0x80, 0x01}
	enc := make([]byte, len(padded))
	b := md5.Sum(append(append(append([]byte{}, secret...), authenticator...), salt...))
	for i := 0; i < len(padded); i += 16 {
		if i > 0 {
			b = md5.Sum(append(append([]byte{}, secret...), enc[i-16:i]...))
		}
		for j := 0; j < 16; j++ {
			enc[i+j] = padded[i+j] ^ b[j]
		}
	}

	path := writeConfig(t, `
handshake:
  akm: 8021x
  mppe:
    secret: radius-secret
    authenticator: "`+hex.EncodeToString(authenticator)+`"
    recv_key: "`+hex.EncodeToString(append(salt, enc...))+`"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	defer cfg.Destroy()
	assert.Empty(t, cfg.Handshake.MPPE.SecretStr)

	derived, err := cfg.Handshake.DerivePMK()
	require.NoError(t, err)
	assert.Equal(t, pmk, derived)
	assert.Equal(t, []rsne.Suite{rsne.AKM8021X}, cfg.Handshake.RSNE().AKMs)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no PMK source", "handshake:\n  ssid: x\n"},
		{"two PMK sources", "handshake:\n  ssid: x\n  passphrase: password\n  pmk: \"00ff\"\n"},
		{"passphrase without ssid", "handshake:\n  passphrase: password\n"},
		{"bad pmk hex", "handshake:\n  pmk: zz\n"},
		{"bad address", "handshake:\n  pmk: \"00ff\"\n  authenticator_addr: nope\n"},
		{"long address", "handshake:\n  pmk: \"00ff\"\n  supplicant_addr: 00:00:00:00:fe:80:00:00\n"},
		{"unknown cipher", "handshake:\n  pmk: \"00ff\"\n  pairwise_cipher: wep\n"},
		{"zero attempts", "handshake:\n  pmk: \"00ff\"\n  max_attempts: -1\n"},
		{"mppe without secret", "handshake:\n  mppe:\n    recv_key: \"00\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := Load(writeConfig(t, "handshake: [not, a, map"))
	assert.Error(t, err)
}

type recordingComponent struct {
	seen []int
	err  error
}

func (c *recordingComponent) Reconfigure(cfg *Config) error {
	c.seen = append(c.seen, cfg.Handshake.MaxAttempts)
	return c.err
}

func TestReloader(t *testing.T) {
	path := writeConfig(t, "handshake:\n  pmk: \"00ff\"\n  max_attempts: 7\n")
	r := NewReloader(path, zerolog.Nop())
	ok := &recordingComponent{}
	broken := &recordingComponent{err: errors.New("no")}
	r.Register(ok)
	r.Register(broken)

	failed, err := r.Reload()
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
	assert.Equal(t, []int{7}, ok.seen)
	assert.Equal(t, []int{7}, broken.seen)

	require.NoError(t, os.WriteFile(path, []byte("handshake:\n  ssid: x\n"), 0o600))
	_, err = r.Reload()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Len(t, ok.seen, 1, "an invalid file must not be applied")
}
