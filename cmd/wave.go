package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dazui0019/yokogawa/dlm"
	"github.com/dazui0019/yokogawa/sink"
)

var (
	waveTrace int
	waveStart int
	waveEnd   int
	waveCSV   string
)

var waveCmd = &cobra.Command{
	Use:   "wave",
	Short: "Transfer waveform samples",
	Long: `Stop the acquisition and transfer a range of samples of the latest
record as physical values. Values are printed one per line, or written as
CSV rows with --csv.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var rec sink.Measurement
		var flush func() error
		if waveCSV != "" {
			f, err := os.Create(waveCSV)
			if err != nil {
				checkErr(fmt.Errorf("failed to create %s: %w", waveCSV, err))
			}
			defer f.Close()
			c := sink.NewCSV(f, "index", "value")
			rec, flush = c, c.Flush
		} else {
			w := bufio.NewWriter(os.Stdout)
			rec, flush = &sink.Printer{W: w}, w.Flush
		}

		req := dlm.WaveformRequest{
			Trace:   waveTrace,
			Start:   waveStart,
			End:     waveEnd,
			Divisor: profile.Divisor,
		}
		scale, n, err := scope.Waveform(req, func(i int, v float64) error {
			return rec.Record(strconv.Itoa(waveStart+i), v)
		})
		if ferr := flush(); err == nil && ferr != nil {
			err = ferr
		}
		if err != nil {
			checkErr(fmt.Errorf("failed to transfer waveform: %w", err))
		}
		if waveCSV != "" {
			fmt.Printf("Saved %d samples to '%s' (%g V/div, offset %g V).\n", n, waveCSV, scale.VoltsPerDiv, scale.Offset)
		}
	},
}

func init() {
	waveCmd.Flags().IntVar(&waveTrace, "trace", 1, "trace (channel) number")
	waveCmd.Flags().IntVar(&waveStart, "start", 0, "first sample")
	waveCmd.Flags().IntVar(&waveEnd, "end", 999, "last sample")
	waveCmd.Flags().StringVar(&waveCSV, "csv", "", "write samples as CSV to this file")
	rootCmd.AddCommand(waveCmd)
}
