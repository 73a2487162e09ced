package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dazui0019/yokogawa/scpi"
)

func TestDefault(t *testing.T) {
	inst, err := Default().Active()
	if err != nil {
		t.Fatalf("Active() error = %v", err)
	}
	if inst.Name != "dlm-usb" || inst.Transport != "usbtmc" || inst.Serial != DefaultSerial {
		t.Errorf("Active() = %+v", inst)
	}
	if !inst.Driver || inst.Chunk != 1000 {
		t.Errorf("Active() driver=%v chunk=%d, want true 1000", inst.Driver, inst.Chunk)
	}
	opts := inst.Options()
	if opts.Timeout != 30*time.Second || opts.Serial != DefaultSerial {
		t.Errorf("Options() = %+v", opts)
	}
}

func TestLoad(t *testing.T) {
	testCases := []struct {
		name string
		file string
		data string
	}{
		{
			name: "toml",
			file: "scope.toml",
			data: `default = "lab"

[[instrument]]
name = "lab"
transport = "socket"
address = "10.0.0.5"
port = 10001
chunk = 2048
poll_interval_ms = 50
poll_attempts = 20
`,
		},
		{
			name: "yaml",
			file: "scope.yml",
			data: `default: lab
instrument:
  - name: lab
    transport: socket
    address: 10.0.0.5
    port: 10001
    chunk: 2048
    poll_interval_ms: 50
    poll_attempts: 20
`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tc.file)
			if err := os.WriteFile(path, []byte(tc.data), 0644); err != nil {
				t.Fatal(err)
			}
			conf, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			inst, err := conf.Active()
			if err != nil {
				t.Fatalf("Active() error = %v", err)
			}
			if inst.Address != "10.0.0.5" || inst.Port != 10001 || inst.Chunk != 2048 {
				t.Errorf("Active() = %+v", inst)
			}
			if inst.ImageFormat != "PNG" || inst.TimeoutMs != 30000 {
				t.Errorf("defaults not applied: %+v", inst)
			}

			s := scpi.NewSession(nil)
			inst.Configure(s)
			if s.ChunkSize != 2048 || s.Poller.Interval != 50*time.Millisecond || s.Poller.Attempts != 20 {
				t.Errorf("Configure() chunk=%d poller=%+v", s.ChunkSize, s.Poller)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name  string
		inst  Instrument
		field string
	}{
		{"unknown transport", Instrument{Name: "a", Transport: "gpib"}, "transport"},
		{"socket without address", Instrument{Name: "a", Transport: "socket"}, "address"},
		{"serial without device", Instrument{Name: "a", Transport: "serial"}, "device"},
		{"bad port", Instrument{Name: "a", Transport: "socket", Address: "h", Port: 70000, ImageFormat: "PNG"}, "port"},
		{"negative chunk", Instrument{Name: "a", Transport: "usbtmc", Serial: "x", Chunk: -1, ImageFormat: "PNG"}, "chunk"},
		{"bad image format", Instrument{Name: "a", Transport: "usbtmc", Serial: "x", ImageFormat: "GIF"}, "image_format"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.inst.Validate()
			if err == nil {
				t.Fatal("Validate() error = nil")
			}
			if !strings.Contains(err.Error(), `"a"`) || !strings.Contains(err.Error(), tc.field) {
				t.Errorf("Validate() error = %q, want instrument and %s named", err, tc.field)
			}
		})
	}
}

func TestLookupMissing(t *testing.T) {
	conf := &Config{Default: "nope"}
	if _, err := conf.Active(); err == nil {
		t.Error("Active() error = nil for a missing profile")
	}
	if _, err := (&Config{}).Active(); err == nil {
		t.Error("Active() error = nil for an empty default")
	}
}
