package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var measureChannel int

var measureCmd = &cobra.Command{
	Use:   "measure",
	Short: "Make a single acquisition and read measurement items",
	Long: `Make a single triggered acquisition and read the peak to peak,
average and frequency items of a channel.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		items, err := scope.Measure(measureChannel)
		if err != nil {
			checkErr(fmt.Errorf("failed to measure channel %d: %w", measureChannel, err))
		}
		for _, m := range items {
			fmt.Printf("CH%d %-10s = %g\n", measureChannel, m.Item, m.Value)
		}
	},
}

func init() {
	measureCmd.Flags().IntVarP(&measureChannel, "channel", "c", 1, "channel number")
	rootCmd.AddCommand(measureCmd)
}
