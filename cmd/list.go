package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dazui0019/yokogawa/transport"
)

var listCmd = &cobra.Command{
	Use:         "list",
	Short:       "List attached instruments",
	Long:        "List USBTMC instruments and serial ports, with their identity where it can be queried.",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{offline: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		found, err := transport.List()
		if err != nil {
			log.Warn().Err(err).Msg("instrument discovery incomplete")
		}
		if len(found) == 0 {
			fmt.Printf("No instruments found.\n")
			return
		}
		for _, inst := range found {
			fmt.Println(inst)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
