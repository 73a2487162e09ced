// Package transport opens instrument links by kind and finds attached
// instruments. Link implementations register themselves from init, so the
// binary only needs to import them.
package transport

import (
	"fmt"
	"sort"
	"time"

	"github.com/dazui0019/yokogawa/driver"
	"github.com/dazui0019/yokogawa/scpi"
)

// Link kinds.
const (
	KindUSBTMC = "usbtmc"
	KindSocket = "socket"
	KindSerial = "serial"
)

// Options select and configure one instrument link.
type Options struct {
	Kind    string
	Serial  string // USB serial number
	Address string // host name or IP address
	Port    int    // TCP port
	Device  string // serial device name
	Baud    int
	Timeout time.Duration

	// Driver wraps the link in driver.Link so blocks are received through
	// the driver header/body primitives.
	Driver bool
}

// Factory opens a raw link.
type Factory func(opts Options) (scpi.Transport, error)

// Instrument describes a discovered instrument.
type Instrument struct {
	Kind     string
	Resource string // serial number, device name or address
	Vendor   uint16
	Product  uint16
	Identity string // *IDN? reply, empty if it could not be queried
}

func (i Instrument) String() string {
	if i.Vendor != 0 {
		return fmt.Sprintf("%-7s %-20s %04x:%04x %s", i.Kind, i.Resource, i.Vendor, i.Product, i.Identity)
	}
	return fmt.Sprintf("%-7s %-20s %9s %s", i.Kind, i.Resource, "", i.Identity)
}

// Lister enumerates attached instruments of one kind.
type Lister func() ([]Instrument, error)

type kindInfo struct {
	factory Factory
	lister  Lister
}

var registered = map[string]kindInfo{}

// Register makes a link kind available to Open. The lister may be nil.
func Register(kind string, factory Factory, lister Lister) {
	registered[kind] = kindInfo{factory: factory, lister: lister}
}

// Kinds returns the registered kinds in sorted order.
func Kinds() []string {
	kinds := make([]string, 0, len(registered))
	for k := range registered {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Open opens the link selected by opts.
func Open(opts Options) (scpi.Transport, error) {
	info, ok := registered[opts.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown transport %q, expected one of %v", opts.Kind, Kinds())
	}
	raw, err := info.factory(opts)
	if err != nil {
		return nil, err
	}
	if !opts.Driver {
		return raw, nil
	}
	l, err := driver.Open(raw, opts.Timeout)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("failed to connect driver: %w", err)
	}
	return l, nil
}

// List returns the instruments found by every registered lister. A failing
// lister does not hide the results of the others; its error is returned
// together with them.
func List() ([]Instrument, error) {
	var all []Instrument
	var firstErr error
	for _, kind := range Kinds() {
		info := registered[kind]
		if info.lister == nil {
			continue
		}
		found, err := info.lister()
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to list %s instruments: %w", kind, err)
		}
		all = append(all, found...)
	}
	return all, firstErr
}
