package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dazui0019/yokogawa/sink"
)

var (
	shotOutput string
	shotFormat string
)

// progressEvery is the number of chunks between progress lines.
const progressEvery = 10

var shotCmd = &cobra.Command{
	Use:   "shot",
	Short: "Capture the screen image",
	Long: `Capture the screen of the instrument and save it verbatim to a file.
By default the file is named DLM_YYYYmmdd_HHMMSS with the extension of the
image format.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		format := strings.ToUpper(shotFormat)
		if format == "" {
			format = strings.ToUpper(profile.ImageFormat)
		}
		filename := shotOutput
		if filename == "" {
			filename = defaultShotName(time.Now(), format)
		}

		out := sink.NewFile(filename)
		fmt.Printf("Capturing screen to '%s'\n", filename)

		s := scope.Session()
		calls := 0
		s.Progress = func(received, total uint64) {
			calls++
			if calls%progressEvery == 0 || received == total {
				fmt.Printf("\rReceived %d of %d bytes", received, total)
			}
		}
		n, err := scope.Screenshot(out, format)
		s.Progress = nil
		if calls > 0 {
			fmt.Printf("\n")
		}
		if err != nil {
			out.Close()
			checkErr(fmt.Errorf("failed to capture screen: %w", err))
		}
		checkErr(out.Close())
		fmt.Printf("Screen image saved to '%s', %d bytes.\n", out.Path(), n)
	},
}

func defaultShotName(now time.Time, format string) string {
	ext := strings.ToLower(format)
	if ext == "jpeg" {
		ext = "jpg"
	}
	return now.Format("DLM_20060102_150405.") + ext
}

func init() {
	shotCmd.Flags().StringVarP(&shotOutput, "output", "o", "", "output file name")
	shotCmd.Flags().StringVar(&shotFormat, "format", "", "image format: PNG, BMP or JPEG (default from config)")
	rootCmd.AddCommand(shotCmd)
}
