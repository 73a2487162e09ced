package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dazui0019/yokogawa/config"
	"github.com/dazui0019/yokogawa/dlm"
	"github.com/dazui0019/yokogawa/scpi"
	"github.com/dazui0019/yokogawa/transport"

	// Link kinds register themselves with the transport package.
	_ "github.com/dazui0019/yokogawa/rs232"
	_ "github.com/dazui0019/yokogawa/socket"
	_ "github.com/dazui0019/yokogawa/usbtmc"
)

var (
	profile *config.Instrument
	scope   *dlm.Scope
)

var (
	flagSerial    string
	flagIP        string
	flagDevice    string
	flagTransport string
	flagConfig    string
	flagProfile   string
	flagDriver    bool
	flagVerbose   bool
)

// offline marks commands that run without an open instrument.
const offline = "offline"

var rootCmd = &cobra.Command{
	Use:   "yokogawa",
	Short: "A CLI program which controls Yokogawa DLM oscilloscopes",
	Long: `The yokogawa tool controls a Yokogawa DLM series oscilloscope over
USBTMC, a TCP socket or RS-232. It reads measurements, captures screen
images and transfers waveforms.`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
		if cmd.Annotations[offline] != "" {
			return
		}

		var err error
		profile, err = loadProfile(cmd)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to initialize config: %w", err))
		}

		t, err := transport.Open(profile.Options())
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to connect to instrument: %w", err))
		}
		s := scpi.NewSession(t)
		profile.Configure(s)
		scope = dlm.New(s)
		log.Debug().Str("profile", profile.Name).Str("transport", profile.Transport).Bool("driver", profile.Driver).Msg("connected")
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeScope()
	},
}

// closeScope closes the instrument link, returning a driver link to local
// mode. It is safe to call more than once.
func closeScope() {
	if scope == nil {
		return
	}
	if err := scope.Session().Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close instrument link")
	}
	scope = nil
}

// checkErr closes the instrument link before cobra.CheckErr exits on err,
// since PersistentPostRun does not run after an exit.
func checkErr(err error) {
	if err == nil {
		return
	}
	closeScope()
	cobra.CheckErr(err)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagSerial, "serial", "", "USB serial number of the instrument")
	pf.StringVar(&flagIP, "ip", "", "connect over TCP to this address (raw socket port 10001, not VXI-11)")
	pf.StringVar(&flagDevice, "device", "", "connect over RS-232 through this serial port")
	pf.StringVar(&flagTransport, "transport", "", "link kind: usbtmc, socket or serial")
	pf.BoolVar(&flagDriver, "driver", false, "receive blocks through the driver header/body primitives")
	pf.StringVar(&flagConfig, "config", "", "config file, TOML or YAML (default ~/.yokogawa)")
	pf.StringVar(&flagProfile, "profile", "", "instrument profile name (default from config)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "verbose output with debug logging")
}

func setupLogging() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()
	if flagVerbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
}

// loadProfile selects the instrument profile and applies the link flags.
func loadProfile(cmd *cobra.Command) (*config.Instrument, error) {
	var inst *config.Instrument
	var err error
	switch {
	case flagConfig != "":
		conf, lerr := config.Load(flagConfig)
		if lerr != nil {
			return nil, lerr
		}
		if flagProfile != "" {
			inst, err = conf.Lookup(flagProfile)
		} else {
			inst, err = conf.Active()
		}
	case flagProfile != "":
		path, perr := config.Path()
		if perr != nil {
			return nil, perr
		}
		conf, lerr := config.Load(path)
		if lerr != nil {
			return nil, lerr
		}
		inst, err = conf.Lookup(flagProfile)
	default:
		inst, err = config.Initialize()
	}
	if err != nil {
		return nil, err
	}

	// A link flag selects its transport unless --transport says otherwise.
	switch {
	case flagIP != "":
		inst.Transport = transport.KindSocket
		inst.Address = flagIP
	case flagDevice != "":
		inst.Transport = transport.KindSerial
		inst.Device = flagDevice
	case flagSerial != "":
		inst.Transport = transport.KindUSBTMC
		inst.Serial = flagSerial
	}
	if flagTransport != "" {
		inst.Transport = flagTransport
	}
	if cmd.Flags().Changed("driver") {
		inst.Driver = flagDriver
	}
	if inst.Transport == transport.KindUSBTMC && inst.Serial == "" {
		inst.Serial = config.DefaultSerial
	}
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return inst, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
