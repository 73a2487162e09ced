package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tdivCmd = &cobra.Command{
	Use:   "tdiv VALUE",
	Short: "Set the time per division",
	Long: `Set the time per division, for example "100ms" or "2us", and print
the value the instrument settled on.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		v, err := scope.SetTimebase(args[0])
		if err != nil {
			checkErr(fmt.Errorf("failed to set time/div: %w", err))
		}
		fmt.Printf("Time/div: %g s\n", v)
	},
}

func init() {
	rootCmd.AddCommand(tdivCmd)
}
