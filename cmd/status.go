package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dazui0019/yokogawa/dlm"
	"github.com/dazui0019/yokogawa/transport"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the instrument status",
	Long:  "Print the identity, the condition register and the link settings.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		id, err := scope.Identify()
		if err != nil {
			checkErr(fmt.Errorf("failed to identify instrument: %w", err))
		}
		cond, err := scope.Status()
		if err != nil {
			checkErr(fmt.Errorf("failed to read condition register: %w", err))
		}

		fmt.Printf("Instrument: %s\n", id)
		bits := strings.Join(dlm.StatusBits(cond), ", ")
		if bits == "" {
			bits = "none"
		}
		fmt.Printf("Condition: %d (%s)\n", cond, bits)

		fmt.Printf("\nConfiguration profile: %s\n", profile.Name)
		fmt.Printf("Transport: %s", profile.Transport)
		switch profile.Transport {
		case transport.KindUSBTMC:
			fmt.Printf(", serial %s", profile.Serial)
		case transport.KindSocket:
			fmt.Printf(", address %s", profile.Address)
		case transport.KindSerial:
			fmt.Printf(", device %s", profile.Device)
		}
		if profile.Driver {
			fmt.Printf(", driver block transfer")
		}
		fmt.Printf("\n")
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
