package commands

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"wlanrsn-go/pkg/keys"
)

func pskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "psk <passphrase> <ssid>",
		Short: "Print the PMK derived from a passphrase and SSID",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pmk, err := keys.PSK(args[0], args[1])
			if err != nil {
				return err
			}
			defer clear(pmk)
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(pmk))
			return nil
		},
	}
}
