package simulator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wlanrsn-go/pkg/config"
	"wlanrsn-go/pkg/eapol"
	"wlanrsn-go/pkg/link"
	"wlanrsn-go/pkg/metrics"
	"wlanrsn-go/pkg/rsna"
	"wlanrsn-go/pkg/rsna/fourway"
)

func loadConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rsnsim.yaml")
	content := "handshake:\n  ssid: IEEE\n  passphrase: password\n" + extra
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	t.Cleanup(cfg.Destroy)
	return cfg
}

func newSimulator(t *testing.T, cfg *config.Config, rec metrics.Recorder) *Simulator {
	t.Helper()
	s, err := New(cfg, rec, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func isMessage3(frame []byte) bool {
	_, _, payload, err := eapol.DecodeEthernet(frame)
	if err != nil {
		return false
	}
	kf, err := eapol.Decode(payload)
	return err == nil && fourway.Classify(kf) == fourway.Message3
}

func find(t *testing.T, keys []link.InstalledKey, kind rsna.UpdateKind) link.InstalledKey {
	t.Helper()
	for _, k := range keys {
		if k.Kind == kind {
			return k
		}
	}
	require.Failf(t, "key not installed", "%s", kind)
	return link.InstalledKey{}
}

func TestRunCompletes(t *testing.T) {
	cfg := loadConfig(t, "  mfp: true\n")
	rec := metrics.NewPrometheusRecorder()
	s := newSimulator(t, cfg, rec)

	require.NoError(t, s.Run(context.Background()))

	status := s.Status()
	require.Len(t, status, 2)
	assert.Equal(t, "authenticator", status[0].Role)
	assert.Equal(t, "supplicant", status[1].Role)
	for _, st := range status {
		assert.True(t, st.Completed)
		assert.Equal(t, 1, st.Attempts)
	}

	require.Len(t, s.Keys(rsna.RoleAuthenticator), 3)
	suppKeys := s.Keys(rsna.RoleSupplicant)
	require.Len(t, suppKeys, 3)
	for _, k := range suppKeys {
		peer := find(t, s.Keys(rsna.RoleAuthenticator), k.Kind)
		assert.Equal(t, peer.Material.Bytes(), k.Material.Bytes(), k.Kind.String())
	}
}

func TestRunRetriesLostMessage3(t *testing.T) {
	s := newSimulator(t, loadConfig(t, "  timeout: 10ms\n"), nil)
	dropped := false
	s.Medium().SetFilter(func(frame []byte) []byte {
		if !dropped && isMessage3(frame) {
			dropped = true
			return nil
		}
		return frame
	})

	require.NoError(t, s.Run(context.Background()))
	assert.True(t, dropped)
	assert.Equal(t, 2, s.Status()[0].Attempts)
}

func TestRunGivesUp(t *testing.T) {
	s := newSimulator(t, loadConfig(t, "  max_attempts: 2\n  timeout: 10ms\n"), nil)
	s.Medium().SetFilter(func([]byte) []byte { return nil })

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, link.ErrMaxAttempts)
	assert.True(t, s.Status()[0].Failed)
	assert.Empty(t, s.Keys(rsna.RoleSupplicant))
}

func TestRunHonoursContext(t *testing.T) {
	s := newSimulator(t, loadConfig(t, "  timeout: 1h\n"), nil)
	s.Medium().SetFilter(func([]byte) []byte { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Run(ctx), context.DeadlineExceeded)
}

func TestReconfigure(t *testing.T) {
	cfg := loadConfig(t, "")
	s := newSimulator(t, cfg, nil)

	cfg.Handshake.MaxAttempts = 9
	assert.NoError(t, s.Reconfigure(cfg))

	cfg.Handshake.FrameRateBurst = 0
	assert.ErrorIs(t, s.Reconfigure(cfg), config.ErrInvalidConfig)
}
