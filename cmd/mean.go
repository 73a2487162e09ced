package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dazui0019/yokogawa/scpi"
)

var meanChannel int

var meanCmd = &cobra.Command{
	Use:   "mean",
	Short: "Read the mean value of a channel",
	Long: `Stop the acquisition, read the automated average of a channel and
restart the acquisition. By default only the value in milli-units is printed,
"NaN" when the instrument has no numeric result and "Error" on failure.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if flagVerbose {
			fmt.Printf("Reading mean value of channel %d...\n", meanChannel)
		}
		v, err := scope.Mean(meanChannel)
		switch {
		case errors.Is(err, scpi.ErrProtocol):
			if flagVerbose {
				fmt.Printf("CH%d Mean = not a number (%v)\n", meanChannel, err)
			} else {
				fmt.Println("NaN")
			}
		case err != nil:
			fmt.Println("Error")
			checkErr(fmt.Errorf("failed to read mean value: %w", err))
		case flagVerbose:
			fmt.Printf("CH%d Mean = %.3f (mUnit)\n", meanChannel, v*1000)
		default:
			fmt.Printf("%.3f\n", v*1000)
		}
	},
}

func init() {
	meanCmd.Flags().IntVarP(&meanChannel, "channel", "c", 1, "channel number")
	rootCmd.AddCommand(meanCmd)
}
