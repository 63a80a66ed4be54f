package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"wlanrsn-go/cmd/rsnsim/commands"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := commands.Execute(); err != nil {
		log.Error().Err(err).Msg("rsnsim failed")
		os.Exit(1)
	}
}
