// Package usbtmc implements the USB Test and Measurement Class link used by
// Yokogawa instruments on their USB device port.
package usbtmc

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/gousb"
	"github.com/rs/zerolog/log"

	"github.com/dazui0019/yokogawa/scpi"
	"github.com/dazui0019/yokogawa/transport"
)

const (
	VendorYokogawa = 0x0b21

	ClassApplication = 0xfe
	SubclassTMC      = 0x03

	DefaultTimeout = 30 * time.Second
	ControlTimeout = 5 * time.Second
)

// Bulk message IDs.
const (
	msgDevDepOut       = 1
	msgRequestDevDepIn = 2
)

// Class specific control requests.
const (
	requestInitiateClear    = 5
	requestCheckClearStatus = 6

	statusSuccess = 0x01
	statusPending = 0x02

	// bmRequestType: device to host, class, interface.
	requestTypeClassIn = 0xa1
)

const headerSize = 12

// ErrNotFound is returned when no matching instrument is attached.
var ErrNotFound = errors.New("USBTMC instrument not found")

// Client is an open USBTMC link.
type Client struct {
	ctx     *gousb.Context
	dev     *gousb.Device
	intf    *gousb.Interface
	done    func()
	bulkOut *gousb.OutEndpoint
	bulkIn  *gousb.InEndpoint
	number  int // interface number
	tag     byte
	timeout time.Duration

	// Unread data of the current Bulk-IN transfer.
	pending []byte
	eom     bool
}

func init() {
	transport.Register(transport.KindUSBTMC, func(opts transport.Options) (scpi.Transport, error) {
		return Open(opts.Serial, opts.Timeout)
	}, List)
}

// MatchSerial reports whether a device serial number matches the wanted one.
// The wanted serial may be given as is or hex encoded, and the device may
// report either form.
func MatchSerial(device, wanted string) bool {
	if wanted == "" {
		return true
	}
	if strings.EqualFold(device, wanted) {
		return true
	}
	enc := strings.ToUpper(hex.EncodeToString([]byte(wanted)))
	if strings.EqualFold(device, enc) {
		return true
	}
	if dec, err := hex.DecodeString(wanted); err == nil && strings.EqualFold(device, string(dec)) {
		return true
	}
	return false
}

// findTMC returns the interface number and bulk endpoints of the first
// USBTMC interface of the device.
func findTMC(desc *gousb.DeviceDesc) (cfgNum, intfNum int, out, in gousb.EndpointDesc, ok bool) {
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class != gousb.Class(ClassApplication) || alt.SubClass != gousb.Class(SubclassTMC) {
					continue
				}
				var haveOut, haveIn bool
				for _, ep := range alt.Endpoints {
					if ep.TransferType != gousb.TransferTypeBulk {
						continue
					}
					if ep.Direction == gousb.EndpointDirectionIn && !haveIn {
						in, haveIn = ep, true
					} else if ep.Direction == gousb.EndpointDirectionOut && !haveOut {
						out, haveOut = ep, true
					}
				}
				if haveIn && haveOut {
					return cfg.Number, intf.Number, out, in, true
				}
			}
		}
	}
	return 0, 0, out, in, false
}

// Open opens the first Yokogawa USBTMC instrument whose serial number matches.
// An empty serial selects the first instrument found.
func Open(serial string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx := gousb.NewContext()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if uint16(desc.Vendor) != VendorYokogawa {
			return false
		}
		_, _, _, _, ok := findTMC(desc)
		return ok
	})
	if err != nil && len(devs) == 0 {
		ctx.Close()
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	var dev *gousb.Device
	for _, d := range devs {
		if dev != nil {
			d.Close()
			continue
		}
		sn, err := d.SerialNumber()
		if err != nil {
			log.Debug().Err(err).Stringer("device", d).Msg("failed to read serial number")
		}
		if MatchSerial(sn, serial) {
			dev = d
			continue
		}
		d.Close()
	}
	if dev == nil {
		ctx.Close()
		if serial != "" {
			return nil, fmt.Errorf("%w (serial %s)", ErrNotFound, serial)
		}
		return nil, ErrNotFound
	}

	c, err := open(ctx, dev, timeout)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}
	return c, nil
}

func open(ctx *gousb.Context, dev *gousb.Device, timeout time.Duration) (*Client, error) {
	cfgNum, intfNum, outDesc, inDesc, _ := findTMC(dev.Desc)

	if err := dev.SetAutoDetach(true); err != nil {
		log.Debug().Err(err).Msg("auto detach not supported")
	}

	cfg, err := dev.Config(cfgNum)
	if err != nil {
		return nil, fmt.Errorf("failed to get config %d: %w", cfgNum, err)
	}
	intf, err := cfg.Interface(intfNum, 0)
	if err != nil {
		cfg.Close()
		return nil, fmt.Errorf("failed to claim interface %d: %w", intfNum, err)
	}
	done := func() {
		intf.Close()
		cfg.Close()
	}

	bulkOut, err := intf.OutEndpoint(outDesc.Number)
	if err != nil {
		done()
		return nil, fmt.Errorf("failed to open bulk out endpoint: %w", err)
	}
	bulkIn, err := intf.InEndpoint(inDesc.Number)
	if err != nil {
		done()
		return nil, fmt.Errorf("failed to open bulk in endpoint: %w", err)
	}
	dev.ControlTimeout = ControlTimeout

	log.Debug().Int("interface", intfNum).Stringer("out", outDesc.Address).Stringer("in", inDesc.Address).Msg("usbtmc open")
	return &Client{
		ctx:     ctx,
		dev:     dev,
		intf:    intf,
		done:    done,
		bulkOut: bulkOut,
		bulkIn:  bulkIn,
		number:  intfNum,
		timeout: timeout,
	}, nil
}

// nextTag returns the next bTag, skipping zero.
func (c *Client) nextTag() byte {
	c.tag++
	if c.tag == 0 {
		c.tag = 1
	}
	return c.tag
}

func (c *Client) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

// deadline converts a context expiry into os.ErrDeadlineExceeded.
func deadline(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", op, os.ErrDeadlineExceeded)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// SetTimeout changes the timeout of every bulk transfer.
func (c *Client) SetTimeout(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: timeout %v", scpi.ErrInvariant, d)
	}
	c.timeout = d
	return nil
}

// Send writes one command as a single DEV_DEP_MSG_OUT transfer with EOM set.
func (c *Client) Send(cmd string) error {
	c.pending = nil
	c.eom = false
	msg := EncodeDevDepOut(c.nextTag(), []byte(cmd+string(scpi.Terminator)))
	ctx, cancel := c.context()
	defer cancel()
	if _, err := c.bulkOut.WriteContext(ctx, msg); err != nil {
		return deadline(ctx, "bulk out", err)
	}
	return nil
}

// Receive requests up to max bytes with REQUEST_DEV_DEP_MSG_IN and returns the
// data of the transfer.
func (c *Client) Receive(max int) ([]byte, error) {
	if max <= 0 {
		return nil, fmt.Errorf("%w: receive size %d", scpi.ErrInvariant, max)
	}
	if len(c.pending) > 0 {
		n := min(max, len(c.pending))
		out := c.pending[:n]
		c.pending = c.pending[n:]
		return out, nil
	}

	tag := c.nextTag()
	ctx, cancel := c.context()
	defer cancel()
	if _, err := c.bulkOut.WriteContext(ctx, EncodeRequestIn(tag, uint32(max))); err != nil {
		return nil, deadline(ctx, "bulk out", err)
	}

	packet := c.bulkIn.Desc.MaxPacketSize
	if packet <= 0 {
		packet = 512
	}
	size := (headerSize + max + 3 + packet - 1) / packet * packet
	buf := make([]byte, size)
	n, err := c.bulkIn.ReadContext(ctx, buf)
	if err != nil {
		return nil, deadline(ctx, "bulk in", err)
	}
	h, err := DecodeHeader(buf[:n], tag)
	if err != nil {
		return nil, err
	}
	data := buf[headerSize:n]
	for uint32(len(data)) < h.TransferSize {
		more := make([]byte, size)
		m, err := c.bulkIn.ReadContext(ctx, more)
		if err != nil {
			return nil, deadline(ctx, "bulk in", err)
		}
		if m == 0 {
			break
		}
		data = append(data, more[:m]...)
	}
	if uint32(len(data)) > h.TransferSize {
		data = data[:h.TransferSize] // alignment padding
	}
	c.eom = h.EOM
	if len(data) > max {
		c.pending = data[max:]
		data = data[:max]
	}
	return data, nil
}

// EndOfMessage reports whether the last transfer carried the EOM attribute.
func (c *Client) EndOfMessage() bool {
	return c.eom && len(c.pending) == 0
}

// Clear runs the INITIATE_CLEAR / CHECK_CLEAR_STATUS sequence.
func (c *Client) Clear() error {
	status := make([]byte, 1)
	if _, err := c.dev.Control(requestTypeClassIn, requestInitiateClear, 0, uint16(c.number), status); err != nil {
		return fmt.Errorf("failed to initiate clear: %w", err)
	}
	if status[0] != statusSuccess {
		return fmt.Errorf("initiate clear returned status 0x%02x", status[0])
	}
	reply := make([]byte, 2)
	for range 50 {
		if _, err := c.dev.Control(requestTypeClassIn, requestCheckClearStatus, 0, uint16(c.number), reply); err != nil {
			return fmt.Errorf("failed to check clear status: %w", err)
		}
		if reply[0] != statusPending {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if reply[0] != statusSuccess {
		return fmt.Errorf("clear status 0x%02x", reply[0])
	}
	c.pending = nil
	return nil
}

// Close releases the interface, the device and the USB context.
func (c *Client) Close() error {
	if c.done != nil {
		c.done()
	}
	var err error
	if c.dev != nil {
		err = c.dev.Close()
	}
	if c.ctx != nil {
		if cerr := c.ctx.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
