package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"wlanrsn-go/pkg/keys"
	"wlanrsn-go/pkg/rsne"
	"wlanrsn-go/pkg/securestore"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// LoggingConfig holds the configuration for the logging system.
type LoggingConfig struct {
	Level string `yaml:"level" envconfig:"LEVEL"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"ENABLED"`
	Listen  string `yaml:"listen" envconfig:"LISTEN"`
}

// MPPEConfig derives the PMK from an MS-MPPE-Recv-Key attribute of a RADIUS
// Access-Accept, as an 802.1X authenticator would.
type MPPEConfig struct {
	SecretStr     string              `yaml:"secret" envconfig:"SECRET"`
	Secret        *securestore.Secret `yaml:"-" ignored:"true"`
	Authenticator string              `yaml:"authenticator" envconfig:"AUTHENTICATOR"`
	RecvKey       string              `yaml:"recv_key" envconfig:"RECV_KEY"`
}

func (m MPPEConfig) configured() bool {
	return m.RecvKey != ""
}

// HandshakeConfig describes the two stations and their security parameters.
type HandshakeConfig struct {
	SSID              string              `yaml:"ssid" envconfig:"SSID"`
	PassphraseStr     string              `yaml:"passphrase" envconfig:"PASSPHRASE"`
	Passphrase        *securestore.Secret `yaml:"-" ignored:"true"`
	PMKStr            string              `yaml:"pmk" envconfig:"PMK"`
	PMK               *securestore.Secret `yaml:"-" ignored:"true"`
	MPPE              MPPEConfig          `yaml:"mppe"`
	AuthenticatorAddr string              `yaml:"authenticator_addr" envconfig:"AUTHENTICATOR_ADDR"`
	SupplicantAddr    string              `yaml:"supplicant_addr" envconfig:"SUPPLICANT_ADDR"`
	AKM               string              `yaml:"akm" envconfig:"AKM"`
	PairwiseCipher    string              `yaml:"pairwise_cipher" envconfig:"PAIRWISE_CIPHER"`
	GroupCipher       string              `yaml:"group_cipher" envconfig:"GROUP_CIPHER"`
	MFP               bool                `yaml:"mfp" envconfig:"MFP"`
	MaxAttempts       int                 `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS"`
	Timeout           time.Duration       `yaml:"timeout" envconfig:"TIMEOUT"`
	FrameRateLimit    float64             `yaml:"frame_rate_limit" envconfig:"FRAME_RATE_LIMIT"`
	FrameRateBurst    int                 `yaml:"frame_rate_burst" envconfig:"FRAME_RATE_BURST"`
	StrictMessage1MIC bool                `yaml:"strict_message1_mic" envconfig:"STRICT_MESSAGE1_MIC"`
}

// Config holds the simulator configuration.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Handshake HandshakeConfig `yaml:"handshake"`
}

var suites = map[string]rsne.Suite{
	"ccmp":   rsne.CipherCCMP128,
	"tkip":   rsne.CipherTKIP,
	"gcmp":   rsne.CipherGCMP128,
	"psk":    rsne.AKMPSK,
	"8021x":  rsne.AKM8021X,
	"sae":    rsne.AKMSAE,
	"ft-psk": rsne.AKMFTPSK,
}

// Load loads the configuration from a YAML file, and then overrides with environment variables.
func Load(path string) (*Config, error) {
	cfg := Config{
		Logging: LoggingConfig{Level: "info"},
		Metrics: MetricsConfig{Listen: ":9110"},
		Handshake: HandshakeConfig{
			AuthenticatorAddr: "02:00:00:00:00:01",
			SupplicantAddr:    "02:00:00:00:00:02",
			AKM:               "psk",
			PairwiseCipher:    "ccmp",
			GroupCipher:       "ccmp",
			MaxAttempts:       3,
			Timeout:           time.Second,
			FrameRateLimit:    10,
			FrameRateBurst:    5,
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config data: %w", err)
			}
		}
	}

	// For example, handshake.ssid can be set with RSNSIM_HANDSHAKE_SSID.
	if err := envconfig.Process("rsnsim", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	h := &cfg.Handshake
	if h.PassphraseStr != "" {
		h.Passphrase = securestore.NewSecret(h.PassphraseStr)
		h.PassphraseStr = ""
	}
	if h.PMKStr != "" {
		pmk, err := hex.DecodeString(h.PMKStr)
		if err != nil {
			return nil, fmt.Errorf("%w: handshake.pmk is not hex: %v", ErrInvalidConfig, err)
		}
		h.PMK = securestore.NewSecretFromBytes(pmk)
		h.PMKStr = ""
	}
	if h.MPPE.SecretStr != "" {
		h.MPPE.Secret = securestore.NewSecret(h.MPPE.SecretStr)
		h.MPPE.SecretStr = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the handshake section.
func (c *Config) Validate() error {
	h := &c.Handshake
	if _, err := h.Addresses(); err != nil {
		return err
	}

	sources := 0
	for _, set := range []bool{h.Passphrase.IsSet(), h.PMK.IsSet(), h.MPPE.configured()} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return fmt.Errorf("%w: exactly one of handshake.passphrase, handshake.pmk and handshake.mppe is required, got %d", ErrInvalidConfig, sources)
	}
	if h.Passphrase.IsSet() && h.SSID == "" {
		return fmt.Errorf("%w: handshake.ssid is required with a passphrase", ErrInvalidConfig)
	}
	if h.MPPE.configured() && !h.MPPE.Secret.IsSet() {
		return fmt.Errorf("%w: handshake.mppe.secret is required", ErrInvalidConfig)
	}

	for field, name := range map[string]string{
		"akm":             h.AKM,
		"pairwise_cipher": h.PairwiseCipher,
		"group_cipher":    h.GroupCipher,
	} {
		if _, ok := suites[strings.ToLower(name)]; !ok {
			return fmt.Errorf("%w: unknown handshake.%s %q", ErrInvalidConfig, field, name)
		}
	}
	if h.MaxAttempts < 1 {
		return fmt.Errorf("%w: handshake.max_attempts must be at least 1", ErrInvalidConfig)
	}
	if h.FrameRateLimit <= 0 || h.FrameRateBurst < 1 {
		return fmt.Errorf("%w: handshake frame rate limit and burst must be positive", ErrInvalidConfig)
	}
	return nil
}

// Addresses holds the parsed station addresses.
type Addresses struct {
	Authenticator net.HardwareAddr
	Supplicant    net.HardwareAddr
}

func (h *HandshakeConfig) Addresses() (Addresses, error) {
	var a Addresses
	var err error
	if a.Authenticator, err = parseMAC(h.AuthenticatorAddr); err != nil {
		return a, fmt.Errorf("%w: handshake.authenticator_addr: %v", ErrInvalidConfig, err)
	}
	if a.Supplicant, err = parseMAC(h.SupplicantAddr); err != nil {
		return a, fmt.Errorf("%w: handshake.supplicant_addr: %v", ErrInvalidConfig, err)
	}
	return a, nil
}

func parseMAC(s string) (net.HardwareAddr, error) {
	mac, err := net.ParseMAC(s)
	if err != nil {
		return nil, err
	}
	if len(mac) != 6 {
		return nil, fmt.Errorf("%s is not a 48-bit address", s)
	}
	return mac, nil
}

// RSNE builds the element both stations advertise.
func (h *HandshakeConfig) RSNE() *rsne.Rsne {
	var caps rsne.Capabilities
	if h.MFP {
		caps |= rsne.CapMFPC
	}
	return rsne.New(
		suites[strings.ToLower(h.GroupCipher)],
		[]rsne.Suite{suites[strings.ToLower(h.PairwiseCipher)]},
		[]rsne.Suite{suites[strings.ToLower(h.AKM)]},
		caps,
	)
}

// DerivePMK returns the PMK from whichever source is configured. The caller
// owns and should wipe the result.
func (h *HandshakeConfig) DerivePMK() ([]byte, error) {
	switch {
	case h.PMK.IsSet():
		return append([]byte(nil), h.PMK.Bytes()...), nil
	case h.Passphrase.IsSet():
		return keys.PSK(string(h.Passphrase.Bytes()), h.SSID)
	case h.MPPE.configured():
		auth, err := hex.DecodeString(h.MPPE.Authenticator)
		if err != nil || len(auth) != 16 {
			return nil, fmt.Errorf("%w: handshake.mppe.authenticator must be 16 hex octets", ErrInvalidConfig)
		}
		attr, err := hex.DecodeString(h.MPPE.RecvKey)
		if err != nil {
			return nil, fmt.Errorf("%w: handshake.mppe.recv_key is not hex: %v", ErrInvalidConfig, err)
		}
		return keys.PMKFromMPPEKey(attr, h.MPPE.Secret.Bytes(), auth)
	default:
		return nil, fmt.Errorf("%w: no PMK source", ErrInvalidConfig)
	}
}

// Destroy wipes the secrets held by the configuration.
func (c *Config) Destroy() {
	c.Handshake.Passphrase.Destroy()
	c.Handshake.PMK.Destroy()
	c.Handshake.MPPE.Secret.Destroy()
}
