package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var autosetupCmd = &cobra.Command{
	Use:   "autosetup",
	Short: "Run auto setup",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := scope.AutoSetup(); err != nil {
			checkErr(fmt.Errorf("failed to run auto setup: %w", err))
		}
		fmt.Printf("Auto setup done.\n")
	},
}

func init() {
	rootCmd.AddCommand(autosetupCmd)
}
