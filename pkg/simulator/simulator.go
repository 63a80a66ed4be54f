// Package simulator runs an authenticator and a supplicant against each other
// over a loopback medium, as configured by a config.Config.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"wlanrsn-go/pkg/config"
	"wlanrsn-go/pkg/link"
	"wlanrsn-go/pkg/metrics"
	"wlanrsn-go/pkg/rsna"
	"wlanrsn-go/pkg/rsna/exchange"
	"wlanrsn-go/pkg/rsna/fourway"
)

// ErrIncomplete is returned by Run when the authenticator finished but the
// supplicant did not install its keys.
var ErrIncomplete = errors.New("handshake incomplete")

// Simulator owns both stations, their key tables and the medium between them.
type Simulator struct {
	medium   *link.Loopback
	auth     *link.Endpoint
	supp     *link.Endpoint
	authKeys *link.KeyTable
	suppKeys *link.KeyTable
	timeout  time.Duration
	logger   zerolog.Logger
}

// New builds both stations from cfg. rec may be nil.
func New(cfg *config.Config, rec metrics.Recorder, logger zerolog.Logger) (*Simulator, error) {
	h := &cfg.Handshake
	addrs, err := h.Addresses()
	if err != nil {
		return nil, err
	}
	pmk, err := h.DerivePMK()
	if err != nil {
		return nil, fmt.Errorf("derive PMK: %w", err)
	}
	defer clear(pmk)

	ie := h.RSNE()
	authCfg, err := fourway.NewConfig(rsna.RoleAuthenticator, addrs.Authenticator, ie, addrs.Supplicant, ie)
	if err != nil {
		return nil, err
	}
	suppCfg, err := fourway.NewConfig(rsna.RoleSupplicant, addrs.Supplicant, ie, addrs.Authenticator, ie)
	if err != nil {
		return nil, err
	}

	opts := link.Options{
		MaxAttempts: h.MaxAttempts,
		RateLimit:   rate.Limit(h.FrameRateLimit),
		RateBurst:   h.FrameRateBurst,
		Logger:      logger,
		Metrics:     rec,
	}
	if h.StrictMessage1MIC {
		opts.Handshake = append(opts.Handshake, fourway.WithStrictMessage1MIC())
	}

	s := &Simulator{
		medium:   link.NewLoopback(),
		authKeys: link.NewKeyTable(),
		suppKeys: link.NewKeyTable(),
		timeout:  h.Timeout,
		logger:   logger.With().Str("component", "simulator").Logger(),
	}
	if s.timeout <= 0 {
		s.timeout = time.Second
	}

	apPort := s.medium.Port(addrs.Authenticator)
	staPort := s.medium.Port(addrs.Supplicant)
	s.auth, err = link.NewEndpoint(exchange.FourwayConfig{Handshake: authCfg, PMK: pmk}, apPort, s.authKeys, opts)
	if err != nil {
		return nil, fmt.Errorf("authenticator: %w", err)
	}
	s.supp, err = link.NewEndpoint(exchange.FourwayConfig{Handshake: suppCfg, PMK: pmk}, staPort, s.suppKeys, opts)
	if err != nil {
		s.auth.Close()
		return nil, fmt.Errorf("supplicant: %w", err)
	}
	apPort.Attach(s.auth)
	staPort.Attach(s.supp)
	return s, nil
}

// Medium exposes the loopback so callers can install a filter.
func (s *Simulator) Medium() *link.Loopback {
	return s.medium
}

// Run starts the handshake and retries it on every timeout until the
// authenticator completes, gives up, or ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) error {
	start := time.Now()
	if err := s.auth.Start(); err != nil {
		return fmt.Errorf("start authenticator: %w", err)
	}
	s.flush()

	ticker := time.NewTicker(s.timeout)
	defer ticker.Stop()
	for !s.auth.Done() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := s.auth.Timeout(); err != nil {
			return err
		}
		s.flush()
	}

	if !s.auth.Completed() || !s.supp.Completed() {
		return ErrIncomplete
	}
	s.logger.Info().Dur("elapsed", time.Since(start)).Msg("Handshake completed")
	return nil
}

func (s *Simulator) flush() {
	delivered, errs := s.medium.Flush()
	for _, err := range errs {
		s.logger.Debug().Err(err).Msg("Frame rejected")
	}
	s.logger.Debug().Int("delivered", delivered).Msg("Medium flushed")
}

// Status returns the authenticator and supplicant status, in that order.
func (s *Simulator) Status() []link.Status {
	return []link.Status{s.auth.Status(), s.supp.Status()}
}

// Keys returns the keys installed on the station playing role.
func (s *Simulator) Keys(role rsna.Role) []link.InstalledKey {
	if role == rsna.RoleAuthenticator {
		return s.authKeys.Keys()
	}
	return s.suppKeys.Keys()
}

// Reconfigure applies cfg to both stations.
func (s *Simulator) Reconfigure(cfg *config.Config) error {
	if err := s.auth.Reconfigure(cfg); err != nil {
		return err
	}
	return s.supp.Reconfigure(cfg)
}

// Close shuts down both stations and wipes installed keys.
func (s *Simulator) Close() {
	s.auth.Close()
	s.supp.Close()
	s.authKeys.Destroy()
	s.suppKeys.Destroy()
}
