// Package config reads instrument profiles. A default TOML file is written to
// the user's home directory on first use; an explicit file may be TOML or YAML.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/dazui0019/yokogawa/scpi"
	"github.com/dazui0019/yokogawa/transport"
)

//go:embed yokogawa.toml
var defaultConfigData []byte

// DefaultSerial is the USB serial number of the bench instrument.
const DefaultSerial = "90Y701585"

// Config represents the entire configuration file.
type Config struct {
	Default    string       `toml:"default" yaml:"default"`
	Instrument []Instrument `toml:"instrument" yaml:"instrument"`
}

// Instrument is one instrument profile.
type Instrument struct {
	Name      string `toml:"name" yaml:"name"`
	Transport string `toml:"transport" yaml:"transport"`
	Serial    string `toml:"serial" yaml:"serial"`
	Address   string `toml:"address" yaml:"address"`
	Port      int    `toml:"port" yaml:"port"`
	Device    string `toml:"device" yaml:"device"`
	Baud      int    `toml:"baud" yaml:"baud"`
	TimeoutMs int    `toml:"timeout_ms" yaml:"timeout_ms"`
	Driver    bool   `toml:"driver" yaml:"driver"`

	Chunk          int     `toml:"chunk" yaml:"chunk"`
	Divisor        float64 `toml:"divisor" yaml:"divisor"`
	PollIntervalMs int     `toml:"poll_interval_ms" yaml:"poll_interval_ms"`
	PollAttempts   int     `toml:"poll_attempts" yaml:"poll_attempts"`
	ImageFormat    string  `toml:"image_format" yaml:"image_format"`
}

// Path determines the config file path based on the operating system.
func Path() (string, error) {
	var configDir string
	var err error

	switch runtime.GOOS {
	case "windows":
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "yokogawa")
	default:
		configDir, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user home directory: %w", err)
		}
	}

	return filepath.Join(configDir, ".yokogawa"), nil
}

// Initialize returns the active profile of the user config file.
// If the file doesn't exist, it is created from the embedded default.
func Initialize() (*Instrument, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory %s: %w", dir, err)
		}
		if err := os.WriteFile(path, defaultConfigData, 0644); err != nil {
			return nil, fmt.Errorf("failed to create default config file at %s: %w", path, err)
		}
	}

	conf, err := Load(path)
	if err != nil {
		return nil, err
	}
	return conf.Active()
}

// Load parses a config file. Files ending in .yaml or .yml are YAML,
// anything else is TOML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseTOML(data)
	}
}

// ParseTOML decodes a TOML config.
func ParseTOML(data []byte) (*Config, error) {
	var conf Config
	if _, err := toml.Decode(string(data), &conf); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	return &conf, nil
}

// ParseYAML decodes a YAML config.
func ParseYAML(data []byte) (*Config, error) {
	var conf Config
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return &conf, nil
}

// Default returns the embedded default config.
func Default() *Config {
	conf, err := ParseTOML(defaultConfigData)
	if err != nil {
		panic(err)
	}
	return conf
}

// Active returns the validated profile named by the `default` key.
func (c *Config) Active() (*Instrument, error) {
	if c.Default == "" {
		return nil, errors.New("`default` key is missing or empty in config")
	}
	return c.Lookup(c.Default)
}

// Lookup returns the validated profile with the given name.
func (c *Config) Lookup(name string) (*Instrument, error) {
	for i := range c.Instrument {
		if c.Instrument[i].Name == name {
			inst := c.Instrument[i]
			inst.applyDefaults()
			if err := inst.Validate(); err != nil {
				return nil, err
			}
			return &inst, nil
		}
	}
	return nil, fmt.Errorf("instrument %q not found in instrument array", name)
}

func (in *Instrument) applyDefaults() {
	if in.Transport == "" {
		in.Transport = transport.KindUSBTMC
	}
	if in.Transport == transport.KindUSBTMC && in.Serial == "" {
		in.Serial = DefaultSerial
	}
	if in.TimeoutMs == 0 {
		in.TimeoutMs = 30000
	}
	if in.ImageFormat == "" {
		in.ImageFormat = "PNG"
	}
}

var imageFormats = []string{"PNG", "BMP", "JPEG"}

// Validate checks field ranges. Errors name the instrument and the field.
func (in *Instrument) Validate() error {
	switch in.Transport {
	case transport.KindUSBTMC:
		if in.Serial == "" {
			return fmt.Errorf("instrument %q: serial is required for transport %s", in.Name, in.Transport)
		}
	case transport.KindSocket:
		if in.Address == "" {
			return fmt.Errorf("instrument %q: address is required for transport %s", in.Name, in.Transport)
		}
		if in.Port < 0 || in.Port > 65535 {
			return fmt.Errorf("instrument %q has invalid port: %d", in.Name, in.Port)
		}
	case transport.KindSerial:
		if in.Device == "" {
			return fmt.Errorf("instrument %q: device is required for transport %s", in.Name, in.Transport)
		}
		if in.Baud < 0 {
			return fmt.Errorf("instrument %q has invalid baud: %d (must be positive)", in.Name, in.Baud)
		}
	default:
		return fmt.Errorf("instrument %q has invalid transport: %q", in.Name, in.Transport)
	}
	if in.TimeoutMs < 0 {
		return fmt.Errorf("instrument %q has invalid timeout_ms: %d (must be positive)", in.Name, in.TimeoutMs)
	}
	if in.Chunk < 0 {
		return fmt.Errorf("instrument %q has invalid chunk: %d (must be positive)", in.Name, in.Chunk)
	}
	if in.Divisor < 0 {
		return fmt.Errorf("instrument %q has invalid divisor: %g (must be positive)", in.Name, in.Divisor)
	}
	if in.PollIntervalMs < 0 {
		return fmt.Errorf("instrument %q has invalid poll_interval_ms: %d", in.Name, in.PollIntervalMs)
	}
	if in.PollAttempts < 0 {
		return fmt.Errorf("instrument %q has invalid poll_attempts: %d", in.Name, in.PollAttempts)
	}
	if !slices.Contains(imageFormats, strings.ToUpper(in.ImageFormat)) {
		return fmt.Errorf("instrument %q has invalid image_format: %q", in.Name, in.ImageFormat)
	}
	return nil
}

// Timeout returns the I/O timeout of the profile.
func (in *Instrument) Timeout() time.Duration {
	return time.Duration(in.TimeoutMs) * time.Millisecond
}

// Options returns the link options of the profile.
func (in *Instrument) Options() transport.Options {
	return transport.Options{
		Kind:    in.Transport,
		Serial:  in.Serial,
		Address: in.Address,
		Port:    in.Port,
		Device:  in.Device,
		Baud:    in.Baud,
		Timeout: in.Timeout(),
		Driver:  in.Driver,
	}
}

// Poller returns the status poller of the profile.
func (in *Instrument) Poller() *scpi.Poller {
	interval := scpi.DefaultPollInterval
	if in.PollIntervalMs > 0 {
		interval = time.Duration(in.PollIntervalMs) * time.Millisecond
	}
	attempts := scpi.DefaultPollAttempts
	if in.PollAttempts > 0 {
		attempts = in.PollAttempts
	}
	return scpi.NewPoller(interval, attempts)
}

// Configure applies the block and polling settings of the profile to s.
func (in *Instrument) Configure(s *scpi.Session) {
	s.Poller = in.Poller()
	if in.Chunk > 0 {
		s.ChunkSize = in.Chunk
	}
}
