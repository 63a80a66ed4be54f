package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"wlanrsn-go/pkg/config"
	"wlanrsn-go/pkg/metrics"
	"wlanrsn-go/pkg/rsna"
	"wlanrsn-go/pkg/simulator"
)

func runCmd() *cobra.Command {
	var serve bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a handshake between a simulated authenticator and supplicant",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			defer cfg.Destroy()
			applyLogLevel(cfg.Logging.Level)

			var (
				prom *metrics.PrometheusRecorder
				rec  metrics.Recorder
			)
			if cfg.Metrics.Enabled || serve {
				prom = metrics.NewPrometheusRecorder()
				rec = prom
			}

			sim, err := simulator.New(cfg, rec, log.Logger)
			if err != nil {
				return err
			}
			defer sim.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runErr := sim.Run(ctx)
			printSummary(cmd.OutOrStdout(), sim)
			if !serve {
				return runErr
			}
			if runErr != nil {
				log.Error().Err(runErr).Msg("Handshake did not complete")
			}
			return serveUntilDone(ctx, cfg.Metrics.Listen, sim, prom)
		},
	}
	cmd.Flags().BoolVar(&serve, "serve", false, "keep serving /status and /metrics after the handshake")
	return cmd
}

// printSummary writes the outcome per station. Key material is never printed.
func printSummary(w io.Writer, sim *simulator.Simulator) {
	roles := []rsna.Role{rsna.RoleAuthenticator, rsna.RoleSupplicant}
	for i, st := range sim.Status() {
		outcome := "incomplete"
		switch {
		case st.Completed:
			outcome = "completed"
		case st.Failed:
			outcome = "failed"
		}
		fmt.Fprintf(w, "%s %s: %s after %d attempt(s)\n", st.Role, st.Local, outcome, st.Attempts)
		for _, k := range sim.Keys(roles[i]) {
			fmt.Fprintf(w, "  %s id=%d cipher=%s len=%d\n", k.Kind, k.KeyID, k.Cipher, k.Material.Len())
		}
	}
}

// serveUntilDone serves the HTTP endpoints and reloads the configuration on
// SIGHUP until ctx is cancelled.
func serveUntilDone(ctx context.Context, listen string, sim *simulator.Simulator, prom *metrics.PrometheusRecorder) error {
	reloader := config.NewReloader(configPath, log.Logger)
	reloader.Register(sim)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if _, err := reloader.Reload(); err != nil {
					log.Error().Err(err).Msg("Configuration reload failed")
				}
			}
		}
	}()

	srv := newServer(listen, sim, prom)
	return srv.run(ctx)
}
