package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var saveCmd = &cobra.Command{
	Use:   "save NAME",
	Short: "Save the waveform to instrument storage",
	Long: `Run auto setup, then save the acquired waveform in binary format
to the storage of the instrument under NAME.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Saving waveform as '%s'...\n", args[0])
		if err := scope.SaveWaveform(args[0]); err != nil {
			checkErr(fmt.Errorf("failed to save waveform: %w", err))
		}
		fmt.Printf("Waveform saved.\n")
	},
}

func init() {
	rootCmd.AddCommand(saveCmd)
}
