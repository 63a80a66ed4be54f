package commands

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rsnsim",
		Short:         "Simulate the IEEE 802.11 4-way handshake between two stations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "rsnsim.yaml", "path to the configuration file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(runCmd(), pskCmd())
	return root
}

func Execute() error {
	return newRootCmd().Execute()
}

// applyLogLevel sets the configured level unless --debug was given.
func applyLogLevel(level string) {
	if debug || level == "" {
		return
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Str("level", level).Msg("Unknown log level, keeping default")
		return
	}
	zerolog.SetGlobalLevel(lvl)
}
