package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var idnCmd = &cobra.Command{
	Use:   "idn",
	Short: "Print the instrument identity",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		id, err := scope.Identify()
		if err != nil {
			checkErr(fmt.Errorf("failed to identify instrument: %w", err))
		}
		fmt.Println(id)
	},
}

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Print the instrument error queue",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		msg, err := scope.ErrorLog()
		if err != nil {
			checkErr(fmt.Errorf("failed to read error queue: %w", err))
		}
		fmt.Println(msg)
	},
}

func init() {
	rootCmd.AddCommand(idnCmd)
	rootCmd.AddCommand(errorsCmd)
}
